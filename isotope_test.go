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
	"math"
	"testing"

	"github.com/ctessum/sparse"
)

const testTolerance = 1e-10

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

func TestDeltaRatioRoundTrip(t *testing.T) {
	for _, ref := range []float64{0.0422, 0.045, 1e-3, 1} {
		for _, delta := range []float64{-50, -5, 0, 3, 8, 20, 1000} {
			got := RatioToDelta(DeltaToRatio(delta, ref), ref)
			if math.Abs(got-delta) > 1e-9 {
				t.Errorf("ref %g: %g ‰ -> %g ‰", ref, delta, got)
			}
		}
	}
}

func TestDeltaToRatio(t *testing.T) {
	if r := DeltaToRatio(0, 0.0422); r != 0.0422 {
		t.Errorf("zero delta should give the reference ratio, got %g", r)
	}
	if r := DeltaToRatio(3, 0.0422); different(r, 0.0423266, testTolerance) {
		t.Errorf("have %g, want 0.0423266", r)
	}
}

func TestFractionateHeavyFlux(t *testing.T) {
	tests := []struct {
		flux, eps, ratio, want float64
	}{
		{flux: 10, eps: 0, ratio: 0.04, want: 0.4},
		{flux: 10, eps: 20, ratio: 0.04, want: 0.408},
		{flux: 25, eps: -5, ratio: 0.0422, want: 25 * 0.995 * 0.0422},
		{flux: 0, eps: 20, ratio: 0.04, want: 0},
	}
	for _, test := range tests {
		got := FractionateHeavyFlux(test.flux, test.eps, test.ratio)
		if math.Abs(got-test.want) > 1e-12 {
			t.Errorf("FractionateHeavyFlux(%g, %g, %g) = %g; want %g",
				test.flux, test.eps, test.ratio, got, test.want)
		}
	}
}

func TestIsotopeArrays(t *testing.T) {
	delta := sparse.ZerosDense(2, 3)
	copy(delta.Elements, []float64{-5, 0, 3, 8, 20, 100})
	ratio := DeltaToRatioArray(delta, 0.0422)
	back := RatioToDeltaArray(ratio, 0.0422)
	for i, want := range delta.Elements {
		if math.Abs(back.Elements[i]-want) > 1e-9 {
			t.Errorf("element %d: have %g, want %g", i, back.Elements[i], want)
		}
	}
	if ratio.Shape[0] != 2 || ratio.Shape[1] != 3 {
		t.Errorf("ratio shape %v", ratio.Shape)
	}

	flux := sparse.ZerosDense(2, 3)
	for i := range flux.Elements {
		flux.Elements[i] = float64(i)
	}
	heavy, err := FractionateHeavyFluxArray(flux, 20, ratio)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range heavy.Elements {
		want := FractionateHeavyFlux(flux.Elements[i], 20, ratio.Elements[i])
		if v != want {
			t.Errorf("element %d: have %g, want %g", i, v, want)
		}
	}

	if _, err := FractionateHeavyFluxArray(flux, 20, sparse.ZerosDense(3, 2)); err == nil {
		t.Error("expected an error for mismatched shapes")
	}
}
