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
	"io"
	"os"
	"strings"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
)

// NextData is an iterator over a sequence of arrays. It returns io.EOF
// after the last array.
type NextData func() (*sparse.DenseArray, error)

// ReadNCF reads variable varName from the netCDF file f. Variables with
// dimensions (time, lat, lon) are returned with an added level dimension
// of length one so that they can be used directly as flux fields; other
// variables keep their own shape.
func ReadNCF(f *os.File, varName string) (*sparse.DenseArray, error) {
	ff, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("cosflux: opening netcdf file %s: %v", f.Name(), err)
	}
	dims := ff.Header.Lengths(varName)
	if len(dims) == 0 {
		return nil, fmt.Errorf("cosflux: variable %s not in netcdf file %s", varName, f.Name())
	}
	dims = copyShape(dims)
	if ff.Header.IsRecordVariable(varName) {
		fi, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("cosflux: reading netcdf file %s: %v", f.Name(), err)
		}
		dims[0] = int(ff.Header.NumRecs(fi.Size()))
	}
	data := sparse.ZerosDense(copyShape(dims)...)
	if len(data.Elements) > 0 {
		start, end := make([]int, len(dims)), make([]int, len(dims))
		for i, d := range dims {
			end[i] = d - 1
		}
		r := ff.Reader(varName, start, end)
		buf := r.Zero(len(data.Elements))
		if _, err = r.Read(buf); err != nil {
			return nil, fmt.Errorf("cosflux: reading netcdf variable %s: %v", varName, err)
		}
		switch b := buf.(type) {
		case []float32:
			for i, v := range b {
				data.Elements[i] = float64(v)
			}
		case []float64:
			copy(data.Elements, b)
		case []int32:
			for i, v := range b {
				data.Elements[i] = float64(v)
			}
		case []int16:
			for i, v := range b {
				data.Elements[i] = float64(v)
			}
		default:
			return nil, fmt.Errorf("cosflux: netcdf variable %s has unsupported type %T", varName, buf)
		}
	}
	if len(dims) == 3 {
		promoted := sparse.ZerosDense(dims[0], 1, dims[1], dims[2])
		copy(promoted.Elements, data.Elements)
		return promoted, nil
	}
	return data, nil
}

// ReadNCFFile opens the named file and reads variable varName from it.
func ReadNCFFile(fileName, varName string) (*sparse.DenseArray, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("cosflux: %v", err)
	}
	defer f.Close()
	return ReadNCF(f, varName)
}

// Monthly advances a date by one calendar month.
func Monthly(t time.Time) time.Time { return t.AddDate(0, 1, 0) }

// NextDataNCF returns an iterator over variable varName in a series of
// netCDF files. fileTemplate names the files, with the [DATE] wildcard
// replaced by each date, formatted as dateFormat, from start up to but not
// including end; step gives the date of the file following a given date.
// Each call returns the entire contents of one file. log may be nil.
func NextDataNCF(fileTemplate, dateFormat, varName string, start, end time.Time, step func(time.Time) time.Time, log logrus.FieldLogger) NextData {
	date := start
	return func() (*sparse.DenseArray, error) {
		if !date.Before(end) {
			return nil, io.EOF
		}
		fileName := ncfFromTemplate(fileTemplate, dateFormat, date)
		data, err := ReadNCFFile(fileName, varName)
		if err != nil {
			return nil, err
		}
		if log != nil {
			log.WithFields(logrus.Fields{
				"file":     fileName,
				"variable": varName,
				"records":  data.Shape[0],
			}).Debug("read netcdf file")
		}
		date = step(date)
		return data, nil
	}
}

// ncfFromTemplate replaces the [DATE] wildcard in fileTemplate with date
// formatted as dateFormat.
func ncfFromTemplate(fileTemplate, dateFormat string, date time.Time) string {
	return strings.Replace(fileTemplate, "[DATE]", date.Format(dateFormat), -1)
}

// StackNCF concatenates the arrays returned by next along their first
// (time) dimension. All arrays must have the same trailing dimensions.
func StackNCF(next NextData) (*sparse.DenseArray, error) {
	var (
		parts []*sparse.DenseArray
		nt    int
	)
	for {
		data, err := next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(parts) > 0 && !sameShape(data.Shape[1:], parts[0].Shape[1:]) {
			return nil, fmt.Errorf("cosflux: stacking arrays with shapes %v and %v: %w",
				parts[0].Shape, data.Shape, ErrShapeMismatch)
		}
		parts = append(parts, data)
		nt += data.Shape[0]
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("cosflux: no data to stack")
	}
	shape := copyShape(parts[0].Shape)
	shape[0] = nt
	o := sparse.ZerosDense(shape...)
	i := 0
	for _, p := range parts {
		i += copy(o.Elements[i:], p.Elements)
	}
	return o, nil
}

// MeanNCF averages variable varName over every record of every file in
// fileNames, returning an array whose first (time) dimension has length one.
func MeanNCF(fileNames []string, varName string) (*sparse.DenseArray, error) {
	var (
		sum *sparse.DenseArray
		n   int
	)
	for _, fileName := range fileNames {
		data, err := ReadNCFFile(fileName, varName)
		if err != nil {
			return nil, err
		}
		if sum == nil {
			shape := copyShape(data.Shape)
			shape[0] = 1
			sum = sparse.ZerosDense(shape...)
		} else if !sameShape(data.Shape[1:], sum.Shape[1:]) {
			return nil, fmt.Errorf("cosflux: averaging %s: file %s has shape %v but earlier files have %v: %w",
				varName, fileName, data.Shape, sum.Shape, ErrShapeMismatch)
		}
		nc := len(sum.Elements)
		for t := 0; t < data.Shape[0]; t++ {
			for i, v := range data.Elements[t*nc : (t+1)*nc] {
				sum.Elements[i] += v
			}
		}
		n += data.Shape[0]
	}
	if n == 0 {
		return nil, fmt.Errorf("cosflux: no records of %s to average", varName)
	}
	sum.Scale(1 / float64(n))
	return sum, nil
}
