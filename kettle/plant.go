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
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// PlantHeaderLines is the number of lines before the column names in a
// plant flux table.
const PlantHeaderLines = 8

// PlantRecord is one row of a plant flux table.
type PlantRecord struct {
	Lon, Lat float64

	// Values holds the numeric columns of the row by column name.
	Values map[string]float64
}

var latLonExp = regexp.MustCompile(`[- ]*\d+\.\d+`)

// ParseLatLon parses a coordinate string such as "-179.5-89.5": a
// longitude followed by a latitude, each preceded by a minus sign for
// west or south or by a space for east or north.
func ParseLatLon(s string) (lon, lat float64, err error) {
	m := latLonExp.FindAllString(s, -1)
	if len(m) != 2 {
		return 0, 0, fmt.Errorf("kettle: %q is not a longitude and latitude", s)
	}
	v := make([]float64, 2)
	for i, ss := range m {
		if v[i], err = strconv.ParseFloat(strings.Replace(ss, " ", "", -1), 64); err != nil {
			return 0, 0, fmt.Errorf("kettle: parsing coordinate %q: %v", ss, err)
		}
	}
	return v[0], v[1], nil
}

// ParsePlantFlux reads a plant flux table. After PlantHeaderLines lines of
// description the table has a row of column names, and the coordinates of
// each row are in the column named "MAX". Columns that hold numbers are
// returned in PlantRecord.Values.
func ParsePlantFlux(r io.Reader) ([]PlantRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true
	for i := 0; i < PlantHeaderLines; i++ {
		if _, err := cr.Read(); err != nil {
			return nil, fmt.Errorf("kettle: reading plant flux header: %v", err)
		}
	}
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("kettle: reading plant flux column names: %v", err)
	}
	coordCol := -1
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
		if header[i] == "MAX" {
			coordCol = i
		}
	}
	if coordCol < 0 {
		return nil, fmt.Errorf("kettle: plant flux table has no MAX column")
	}

	var recs []PlantRecord
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("kettle: reading plant flux row %d: %v", len(recs)+1, err)
		}
		if len(row) <= coordCol {
			return nil, fmt.Errorf("kettle: plant flux row %d has %d columns", len(recs)+1, len(row))
		}
		rec := PlantRecord{Values: make(map[string]float64)}
		if rec.Lon, rec.Lat, err = ParseLatLon(row[coordCol]); err != nil {
			return nil, err
		}
		for i, v := range row {
			if i == coordCol || i >= len(header) {
				continue
			}
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				rec.Values[header[i]] = f
			}
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
