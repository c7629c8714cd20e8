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

// Package noaa handles the NOAA flask sampling network: reading the site
// table, locating sites on the model grid, and extracting model time
// series at sites along the latitudinal gradients of the network.
package noaa

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/cosflux/cosflux/grid"
	"github.com/ctessum/sparse"
)

// ToPPT converts a mixing ratio [mol mol⁻¹] to parts per trillion.
const ToPPT = 1e12

// Site is a NOAA flask sampling site.
type Site struct {
	Code string
	Name string

	Lat, Lon float64

	// Row and Col are the indices of the grid cell nearest the site,
	// set by AssignCells.
	Row, Col int
}

// SouthernHemisphere returns whether the site is south of the equator.
func (s *Site) SouthernHemisphere() bool { return s.Lat < 0 }

// ReadSites reads a tab-separated site table whose first line holds the
// column names. The Code, Latitude and Longitude columns are required; a
// Name or Site column, if present, gives the site name.
func ReadSites(r io.Reader) ([]*Site, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("noaa: reading site table header: %v", err)
	}
	cols := map[string]int{"Name": -1}
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "Site" {
			h = "Name"
		}
		cols[h] = i
	}
	for _, c := range []string{"Code", "Latitude", "Longitude"} {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("noaa: site table has no %s column", c)
		}
	}

	var sites []*Site
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("noaa: reading site table: %v", err)
		}
		line := len(sites) + 2
		get := func(col string) (string, error) {
			i := cols[col]
			if i < 0 {
				return "", nil
			}
			if i >= len(row) {
				return "", fmt.Errorf("noaa: line %d has no %s", line, col)
			}
			return strings.TrimSpace(row[i]), nil
		}
		s := &Site{Row: -1, Col: -1}
		if s.Code, err = get("Code"); err != nil {
			return nil, err
		}
		if s.Name, err = get("Name"); err != nil {
			return nil, err
		}
		for _, c := range []struct {
			col string
			v   *float64
		}{{"Latitude", &s.Lat}, {"Longitude", &s.Lon}} {
			str, err := get(c.col)
			if err != nil {
				return nil, err
			}
			if *c.v, err = strconv.ParseFloat(str, 64); err != nil {
				return nil, fmt.Errorf("noaa: line %d: %s: %v", line, c.col, err)
			}
		}
		sites = append(sites, s)
	}
	return sites, nil
}

// AssignCells sets the grid row and column of each site to the cell
// nearest to it.
func AssignCells(sites []*Site, g *grid.Grid) {
	for _, s := range sites {
		s.Row, s.Col = g.Nearest(s.Lon, s.Lat)
	}
}

// Find returns the site with the given code.
func Find(sites []*Site, code string) (*Site, error) {
	for _, s := range sites {
		if s.Code == code {
			return s, nil
		}
	}
	return nil, fmt.Errorf("noaa: no site with code %s", code)
}

// Site codes along the Atlantic and Indian Ocean gradients, north to
// south.
var (
	AtlanticCodes = []string{"ZEP", "ICE", "MHD", "AZR", "IZO", "ASC", "HBA", "NMB", "CPT"}
	IndianCodes   = []string{"SEY", "CRZ", "SYO"}
)

// Gradient returns the sites with the given codes, in the order of codes.
func Gradient(sites []*Site, codes []string) ([]*Site, error) {
	out := make([]*Site, len(codes))
	for i, c := range codes {
		s, err := Find(sites, c)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// PacificGradient returns the sites more than 150 degrees east or west
// of Greenwich.
func PacificGradient(sites []*Site) []*Site {
	var out []*Site
	for _, s := range sites {
		if math.Abs(s.Lon) > 150 {
			out = append(out, s)
		}
	}
	return out
}

// AtlanticGradient returns the Atlantic gradient sites.
func AtlanticGradient(sites []*Site) ([]*Site, error) { return Gradient(sites, AtlanticCodes) }

// IndianGradient returns the Indian Ocean gradient sites.
func IndianGradient(sites []*Site) ([]*Site, error) { return Gradient(sites, IndianCodes) }

// SiteValues returns the time series of field, which has dimensions
// (time, level, lat, lon), at the given level of the site's grid cell.
func SiteValues(field *sparse.DenseArray, s *Site, level int) ([]float64, error) {
	if len(field.Shape) != 4 {
		return nil, fmt.Errorf("noaa: field has shape %v; need (time, level, lat, lon)", field.Shape)
	}
	if s.Row < 0 || s.Col < 0 {
		return nil, fmt.Errorf("noaa: site %s has not been assigned a grid cell", s.Code)
	}
	if level < 0 || level >= field.Shape[1] || s.Row >= field.Shape[2] || s.Col >= field.Shape[3] {
		return nil, fmt.Errorf("noaa: site %s cell (%d, %d, %d) is outside field of shape %v",
			s.Code, level, s.Row, s.Col, field.Shape)
	}
	out := make([]float64, field.Shape[0])
	for t := range out {
		out[t] = field.Get(t, level, s.Row, s.Col)
	}
	return out, nil
}

// SiteSeries is SiteValues for a field of mixing ratios, converted to ppt.
func SiteSeries(field *sparse.DenseArray, s *Site, level int) ([]float64, error) {
	out, err := SiteValues(field, s, level)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i] *= ToPPT
	}
	return out, nil
}

// Amplitude returns the difference between the largest and smallest
// values of a series, and whether it exceeds the measurement uncertainty.
func Amplitude(series []float64, uncertainty float64) (amplitude float64, detectable bool) {
	if len(series) == 0 {
		return 0, false
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range series {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	return hi - lo, hi-lo > uncertainty
}
