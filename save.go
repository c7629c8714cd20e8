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

package cosflux

import (
	"fmt"
	"os"
	"sort"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// FieldDims are the netCDF dimension names of a flux field or model
// time series.
var FieldDims = []string{"time", "level", "lat", "lon"}

// NCFVar is a variable to be written to a netCDF file.
type NCFVar struct {
	Dims        []string
	Description string
	Units       string
	Data        *sparse.DenseArray
}

// WriteNCF writes the given variables to w as a netCDF file. Dimension
// lengths are taken from the variables, which must agree on the length
// of every dimension they share. attributes are written as global
// attributes.
func WriteNCF(w *os.File, vars map[string]NCFVar, attributes map[string]interface{}) error {
	// Sort the names so they write in the same order every time.
	names := make([]string, 0, len(vars))
	for n := range vars {
		names = append(names, n)
	}
	sort.Strings(names)

	var dimNames []string
	dimLengths := make(map[string]int)
	for _, name := range names {
		v := vars[name]
		if len(v.Dims) != len(v.Data.Shape) {
			return fmt.Errorf("cosflux: variable %s has %d dimension names but %d dimensions",
				name, len(v.Dims), len(v.Data.Shape))
		}
		for i, d := range v.Dims {
			n, ok := dimLengths[d]
			if !ok {
				dimNames = append(dimNames, d)
				dimLengths[d] = v.Data.Shape[i]
			} else if n != v.Data.Shape[i] {
				return fmt.Errorf("cosflux: dimension %s of variable %s has length %d, but %d elsewhere: %w",
					d, name, v.Data.Shape[i], n, ErrShapeMismatch)
			}
		}
	}
	lengths := make([]int, len(dimNames))
	for i, d := range dimNames {
		lengths[i] = dimLengths[d]
	}

	h := cdf.NewHeader(dimNames, lengths)
	h.AddAttribute("", "comment", "COSFlux carbonyl sulfide isotope data file")
	h.AddAttribute("", "cosflux_version", Version)
	attrNames := make([]string, 0, len(attributes))
	for a := range attributes {
		attrNames = append(attrNames, a)
	}
	sort.Strings(attrNames)
	for _, a := range attrNames {
		h.AddAttribute("", a, attributes[a])
	}
	for _, name := range names {
		v := vars[name]
		h.AddVariable(name, v.Dims, []float32{0})
		if v.Description != "" {
			h.AddAttribute(name, "description", v.Description)
		}
		if v.Units != "" {
			h.AddAttribute(name, "units", v.Units)
		}
	}
	h.Define()

	f, err := cdf.Create(w, h) // writes the header to w
	if err != nil {
		return err
	}
	for _, name := range names {
		if err = writeNCF(f, name, vars[name].Data); err != nil {
			return fmt.Errorf("cosflux: writing variable %s to netcdf file: %v", name, err)
		}
	}
	return cdf.UpdateNumRecs(w)
}

func writeNCF(f *cdf.File, name string, data *sparse.DenseArray) error {
	if len(data.Elements) == 0 {
		return nil
	}
	data32 := make([]float32, len(data.Elements))
	for i, e := range data.Elements {
		data32[i] = float32(e)
	}
	end := f.Header.Lengths(name)
	start := make([]int, len(end))
	w := f.Writer(name, start, end)
	_, err := w.Write(data32)
	return err
}

// Write writes the model time series, and any output variables calculated
// by o, to w as a netCDF file with dimensions (time, level, lat, lon).
// o may be nil. If lat and lon have the lengths of the y and x dimensions
// they are written as coordinate variables.
func (m *ForwardModel) Write(w *os.File, o *Outputter, lat, lon []float64) error {
	vars := map[string]NCFVar{
		"OCS32": {Dims: FieldDims, Description: "COS-32 pool", Units: "pool units", Data: m.light},
		"OCS34": {Dims: FieldDims, Description: "COS-34 pool", Units: "pool units", Data: m.heavy},
		"Ratio": {Dims: FieldDims, Description: "COS-34 / COS-32 abundance ratio", Units: "-", Data: m.ratio},
		"Delta": {Dims: FieldDims, Description: "δ34S of COS", Units: "permil", Data: m.delta},
	}
	if o != nil {
		results, err := o.Evaluate(m.Variables())
		if err != nil {
			return err
		}
		for name, data := range results {
			if _, ok := vars[name]; ok {
				return fmt.Errorf("cosflux: output variable %s has the name of a model variable", name)
			}
			if !sameShape(data.Shape, m.shape) {
				return fmt.Errorf("cosflux: output variable %s has shape %v, not the domain shape %v: %w",
					name, data.Shape, m.shape, ErrShapeMismatch)
			}
			vars[name] = NCFVar{Dims: FieldDims, Description: o.outputVariables[name], Units: "-", Data: data}
		}
	}
	if len(lat) == m.shape[2] && len(lon) == m.shape[3] {
		latA, lonA := sparse.ZerosDense(len(lat)), sparse.ZerosDense(len(lon))
		copy(latA.Elements, lat)
		copy(lonA.Elements, lon)
		vars["lat"] = NCFVar{Dims: []string{"lat"}, Description: "latitude", Units: "degrees_north", Data: latA}
		vars["lon"] = NCFVar{Dims: []string{"lon"}, Description: "longitude", Units: "degrees_east", Data: lonA}
	}
	c := m.cfg
	return WriteNCF(w, vars, map[string]interface{}{
		"reference_ratio": []float64{c.ReferenceRatio},
		"initial_delta":   []float64{c.InitialDelta},
		"epsilon_anthro":  []float64{c.Epsilon.Anthro},
		"epsilon_ocean":   []float64{c.Epsilon.Ocean},
		"epsilon_plant":   []float64{c.Epsilon.Plant},
		"epsilon_soil":    []float64{c.Epsilon.Soil},
		"dt":              []float64{c.Dt},
	})
}
