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
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ctessum/sparse"
)

// writeMonthlyFlux writes a (time, lat, lon) variable named COS_Flux
// whose every element equals v.
func writeMonthlyFlux(t *testing.T, fileName string, v float64, nt, ny, nx int) {
	data := sparse.ZerosDense(nt, ny, nx)
	for i := range data.Elements {
		data.Elements[i] = v
	}
	w, err := os.Create(fileName)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	err = WriteNCF(w, map[string]NCFVar{
		"COS_Flux": {Dims: []string{"time", "lat", "lon"}, Units: "mol m-2 s-1", Data: data},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
}

func TestNextDataNCF(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)
	for m := 0; m < 3; m++ {
		date := start.AddDate(0, m, 0)
		writeMonthlyFlux(t, filepath.Join(dir, date.Format("01")+".nc"), float64(m+1), 1, 2, 3)
	}
	next := NextDataNCF(filepath.Join(dir, "[DATE].nc"), "01", "COS_Flux",
		start, start.AddDate(0, 3, 0), Monthly, nil)
	for m := 0; m < 3; m++ {
		data, err := next()
		if err != nil {
			t.Fatal(err)
		}
		if len(data.Shape) != 4 || data.Shape[1] != 1 || data.Shape[2] != 2 || data.Shape[3] != 3 {
			t.Fatalf("month %d: shape %v", m, data.Shape)
		}
		if data.Elements[0] != float64(m+1) {
			t.Errorf("month %d: value %g", m, data.Elements[0])
		}
	}
	if _, err := next(); err != io.EOF {
		t.Errorf("have %v; want io.EOF", err)
	}

	stacked, err := StackNCF(NextDataNCF(filepath.Join(dir, "[DATE].nc"), "01", "COS_Flux",
		start, start.AddDate(0, 3, 0), Monthly, nil))
	if err != nil {
		t.Fatal(err)
	}
	if stacked.Shape[0] != 3 {
		t.Fatalf("stacked shape %v", stacked.Shape)
	}
	for m := 0; m < 3; m++ {
		if v := stacked.Get(m, 0, 1, 2); v != float64(m+1) {
			t.Errorf("stacked month %d = %g", m, v)
		}
	}
}

func TestNextDataNCFMissingFile(t *testing.T) {
	start := time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)
	next := NextDataNCF(filepath.Join(t.TempDir(), "[DATE].nc"), "01", "COS_Flux",
		start, start.AddDate(0, 1, 0), Monthly, nil)
	if _, err := next(); err == nil || err == io.EOF {
		t.Errorf("have %v; want a file error", err)
	}
}

func TestStackNCFShapes(t *testing.T) {
	arrays := []*sparse.DenseArray{sparse.ZerosDense(1, 1, 2, 2), sparse.ZerosDense(1, 1, 2, 3)}
	var i int
	next := func() (*sparse.DenseArray, error) {
		if i == len(arrays) {
			return nil, io.EOF
		}
		i++
		return arrays[i-1], nil
	}
	if _, err := StackNCF(next); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("have %v; want shape mismatch", err)
	}
}

func TestMeanNCF(t *testing.T) {
	dir := t.TempDir()
	var files []string
	for d, v := range []float64{1, 2, 6} {
		f := filepath.Join(dir, string(rune('a'+d))+".nc")
		writeMonthlyFlux(t, f, v, 2, 2, 2)
		files = append(files, f)
	}
	mean, err := MeanNCF(files, "COS_Flux")
	if err != nil {
		t.Fatal(err)
	}
	if mean.Shape[0] != 1 {
		t.Fatalf("shape %v", mean.Shape)
	}
	for i, v := range mean.Elements {
		if different(v, 3, 1e-6) {
			t.Errorf("element %d = %g; want 3", i, v)
		}
	}
	if _, err = MeanNCF(nil, "COS_Flux"); err == nil {
		t.Error("expected an error for no files")
	}
}
