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

package plant

import (
	"math"
	"testing"
	"time"

	"github.com/cosflux/cosflux"
	"github.com/ctessum/sparse"
	"github.com/ctessum/unit"
)

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

func TestCOSUptakeValue(t *testing.T) {
	want := 2 * 1.61 * (1.0 / 1.1) * 1e3 / 12.011 * 1e6 * 1e-12
	if have := COSUptakeValue(2, 1.61, 1.1, 1.0); different(have, want, 1e-12) {
		t.Errorf("have %g; want %g", have, want)
	}
	if have := COSUptakeValue(0, 1.61, 1.1, 1.0); have != 0 {
		t.Errorf("zero GEE gives %g", have)
	}
}

func TestCOSUptake(t *testing.T) {
	gee := sparse.ZerosDense(3, 2, 2)
	for i := range gee.Elements {
		gee.Elements[i] = 1
	}
	lru := sparse.ZerosDense(2, 2)
	copy(lru.Elements, []float64{1, 2, 3, 4})
	f, err := COSUptake(gee, lru, cosflux.Scalar(1), cosflux.Scalar(1))
	if err != nil {
		t.Fatal(err)
	}
	for tt := 0; tt < 3; tt++ {
		for i := 0; i < 4; i++ {
			want := COSUptakeValue(1, float64(i+1), 1, 1)
			if have := f.Get(tt, i/2, i%2); different(have, want, 1e-12) {
				t.Errorf("(%d, %d) = %g; want %g", tt, i, have, want)
			}
		}
	}
	if _, err = COSUptake(gee, sparse.ZerosDense(3), cosflux.Scalar(1), cosflux.Scalar(1)); err == nil {
		t.Error("expected an error for an incompatible LRU shape")
	}
}

func TestUptakeUnits(t *testing.T) {
	u, err := Uptake(unit.New(1, GEEUnits), DefaultParams)
	if err != nil {
		t.Fatal(err)
	}
	if err = u.Check(UptakeUnits); err != nil {
		t.Error(err)
	}
	if _, err = Uptake(unit.New(1, unit.Kilogram), DefaultParams); err == nil {
		t.Error("expected a units error")
	}
}

func TestAggregateMonthly(t *testing.T) {
	// 8 records on January 31 and 8 on February 1.
	gee := sparse.ZerosDense(16, 1, 2)
	for i := range gee.Elements {
		gee.Elements[i] = 1
	}
	start := time.Date(2015, time.January, 31, 0, 0, 0, 0, time.UTC)
	m, err := AggregateMonthly(gee, start, DefaultParams)
	if err != nil {
		t.Fatal(err)
	}
	if m.GEE.Shape[0] != 12 || len(m.GEE.Shape) != 3 {
		t.Fatalf("shape %v", m.GEE.Shape)
	}
	secs := Step.Seconds()
	rate := COSUptakeValue(1, DefaultParams.LRU, DefaultParams.CO2, DefaultParams.COS)
	for mon := 0; mon < 12; mon++ {
		wantGEE, wantFOCS := 0., 0.
		if mon < 2 {
			wantGEE, wantFOCS = 8*secs, 8*secs*rate
		}
		if have := m.GEE.Get(mon, 0, 1); have != wantGEE {
			t.Errorf("GEE month %d = %g; want %g", mon+1, have, wantGEE)
		}
		if have := m.FOCS.Get(mon, 0, 1); math.Abs(have-wantFOCS) > 1e-12*wantFOCS {
			t.Errorf("fOCS month %d = %g; want %g", mon+1, have, wantFOCS)
		}
	}

	areas := sparse.ZerosDense(1, 2)
	areas.Elements[0], areas.Elements[1] = 1, 2
	totals, err := m.GlobalUptake(areas)
	if err != nil {
		t.Fatal(err)
	}
	if err = totals[0].Check(unit.Dimensions{COS: 1}); err != nil {
		t.Error(err)
	}
	if want := 3e6 * 8 * secs * rate; different(totals[0].Value(), want, 1e-12) {
		t.Errorf("January total %g; want %g", totals[0].Value(), want)
	}
	if totals[5].Value() != 0 {
		t.Errorf("June total %g", totals[5].Value())
	}
	if _, err = m.GlobalUptake(sparse.ZerosDense(3)); err == nil {
		t.Error("expected an error for mismatched areas")
	}
	if _, err = AggregateMonthly(sparse.ZerosDense(4), start, DefaultParams); err == nil {
		t.Error("expected an error for a field without a time dimension")
	}
}
