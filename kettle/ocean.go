/*
Copyright © 2019 the COSFlux authors.
This file is part of COSFlux.

COSFlux is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

COSFlux is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with COSFlux.  If not, see <http://www.gnu.org/licenses/>.
*/

package kettle

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/ctessum/sparse"
)

// OceanFlux is a gridded monthly ocean COS flux inventory.
type OceanFlux struct {
	// Lat and Lon are the cell center coordinates.
	Lat, Lon []float64

	// Mask is the land/ocean mask, with dimensions (lat, lon).
	Mask *sparse.DenseArray

	// Flux has dimensions (lat, lon, month).
	Flux *sparse.DenseArray
}

// ParseOceanFlux reads an ocean flux file. Header lines are skipped up to
// and including the line that gives the record format
// ("format=(2f8.2,i3,12e10.3)"), which is followed by one blank line and
// then one record per grid cell: longitude, latitude, mask and a flux for
// each month. Records run through longitude fastest.
func ParseOceanFlux(r io.Reader) (*OceanFlux, error) {
	s := bufio.NewScanner(r)
	var f *Format
	for f == nil && s.Scan() {
		line := s.Text()
		if !strings.Contains(strings.ToLower(line), "format") {
			continue
		}
		i := strings.Index(line, "=")
		if i < 0 {
			return nil, fmt.Errorf("kettle: format line %q has no '='", line)
		}
		var err error
		if f, err = ParseFormat(line[i+1:]); err != nil {
			return nil, err
		}
	}
	if f == nil {
		if err := s.Err(); err != nil {
			return nil, fmt.Errorf("kettle: reading ocean flux: %v", err)
		}
		return nil, fmt.Errorf("kettle: no format line in ocean flux file")
	}
	if f.NumValues() < 4 {
		return nil, fmt.Errorf("kettle: format has %d values; need longitude, latitude, mask and fluxes", f.NumValues())
	}
	s.Scan() // blank line

	var records [][]float64
	for s.Scan() {
		line := s.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, err := f.Read(line)
		if err != nil {
			return nil, fmt.Errorf("kettle: ocean flux record %d: %v", len(records)+1, err)
		}
		records = append(records, rec)
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("kettle: reading ocean flux: %v", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("kettle: no records in ocean flux file")
	}

	nx := 1
	for nx < len(records) && records[nx][1] == records[0][1] {
		nx++
	}
	if len(records)%nx != 0 {
		return nil, fmt.Errorf("kettle: %d records is not a whole number of rows of %d cells", len(records), nx)
	}
	ny := len(records) / nx
	nm := f.NumValues() - 3

	o := &OceanFlux{
		Lat:  make([]float64, ny),
		Lon:  make([]float64, nx),
		Mask: sparse.ZerosDense(ny, nx),
		Flux: sparse.ZerosDense(ny, nx, nm),
	}
	for i, rec := range records {
		j, k := i/nx, i%nx
		if j == 0 {
			o.Lon[k] = rec[0]
		} else if rec[0] != o.Lon[k] {
			return nil, fmt.Errorf("kettle: record %d has longitude %g; want %g", i+1, rec[0], o.Lon[k])
		}
		if k == 0 {
			o.Lat[j] = rec[1]
		}
		o.Mask.Set(rec[2], j, k)
		copy(o.Flux.Elements[i*nm:(i+1)*nm], rec[3:])
	}
	return o, nil
}

// Field returns the fluxes as a model flux field with dimensions
// (month, level, lat, lon).
func (o *OceanFlux) Field() *sparse.DenseArray {
	ny, nx, nm := o.Flux.Shape[0], o.Flux.Shape[1], o.Flux.Shape[2]
	out := sparse.ZerosDense(nm, 1, ny, nx)
	for j := 0; j < ny; j++ {
		for k := 0; k < nx; k++ {
			for m := 0; m < nm; m++ {
				out.Set(o.Flux.Get(j, k, m), m, 0, j, k)
			}
		}
	}
	return out
}
