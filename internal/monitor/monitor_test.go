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

package monitor

import (
	"testing"

	"github.com/cosflux/cosflux"
	"github.com/ctessum/sparse"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRunForward(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg, "cosflux")
	if err != nil {
		t.Fatal(err)
	}
	ocean := sparse.ZerosDense(4, 1, 1, 2)
	plant := sparse.ZerosDense(4, 1, 1, 2)
	for tt := 1; tt < 4; tt++ {
		plant.Set(300, tt, 0, 0, 1)
	}
	m, err := cosflux.NewForwardModel(cosflux.Fluxes{
		OceanProduction:  ocean,
		AnthroProduction: sparse.ZerosDense(4, 1, 1, 2),
		PlantUptake:      plant,
	}, cosflux.DefaultForwardConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err = c.RunForward(m); err != nil {
		t.Fatal(err)
	}
	if v := testutil.ToFloat64(c.StepsTotal); v != 4 {
		t.Errorf("steps = %g; want 4", v)
	}
	// 500 - 3*300 < 0 in the second cell.
	if v := testutil.ToFloat64(c.NonPositiveCells); v != 1 {
		t.Errorf("non-positive cells = %g; want 1", v)
	}
	if n := testutil.CollectAndCount(c.RunDuration); n != 1 {
		t.Errorf("%d run duration series; want 1", n)
	}
	if _, err = NewCollector(reg, "cosflux"); err == nil {
		t.Error("expected an error registering the metrics twice")
	}
}

func TestValues(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg, "cosflux")
	if err != nil {
		t.Fatal(err)
	}
	c.StepsTotal.Add(12)
	c.NonPositiveCells.Set(2)
	c.RunDuration.WithLabelValues("forward").Observe(0.5)
	c.RequestsTotal.WithLabelValues("/sites", "200").Inc()

	v, err := Values(reg)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]float64{
		"cosflux_forward_steps_total":                         12,
		"cosflux_nonpositive_cells":                           2,
		"cosflux_run_duration_seconds_count{model=forward}":   1,
		"cosflux_run_duration_seconds_sum{model=forward}":     0.5,
		"cosflux_api_requests_total{route=/sites,status=200}": 1,
		"cosflux_series_points_stored_total":                  0,
	}
	for k, w := range want {
		if have, ok := v[k]; !ok || have != w {
			t.Errorf("%s = %g (present %v); want %g", k, have, ok, w)
		}
	}
}

func TestTimer(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg, "test")
	if err != nil {
		t.Fatal(err)
	}
	timer := NewTimer(c.RequestDuration.WithLabelValues("/sites"))
	if d := timer.ObserveDuration(); d < 0 {
		t.Errorf("negative duration %v", d)
	}
	if n := testutil.CollectAndCount(c.RequestDuration); n != 1 {
		t.Errorf("%d request duration series; want 1", n)
	}
}
