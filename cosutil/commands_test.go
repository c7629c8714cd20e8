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

package cosutil

import (
	"context"
	"fmt"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cosflux/cosflux"
	"github.com/cosflux/cosflux/grid"
	"github.com/cosflux/cosflux/internal/monitor"
	"github.com/cosflux/cosflux/plant"
	"github.com/ctessum/sparse"
	"github.com/prometheus/client_golang/prometheus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

var (
	testLat = []float64{-45, 45}
	testLon = []float64{-135, -45, 45, 135}
)

// writeField writes data, whose last two dimensions are (lat, lon), to
// fileName as variable name along with the test coordinates.
func writeField(t *testing.T, fileName, name string, data *sparse.DenseArray) {
	dims := cosflux.FieldDims
	if len(data.Shape) == 3 {
		dims = []string{"time", "lat", "lon"}
	}
	vars := map[string]cosflux.NCFVar{name: {Dims: dims, Data: data}}
	addLatLon(vars, testLat, testLon)
	w, err := os.Create(fileName)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err = cosflux.WriteNCF(w, vars, nil); err != nil {
		t.Fatal(err)
	}
}

func filled(v float64, shape ...int) *sparse.DenseArray {
	a := sparse.ZerosDense(shape...)
	for i := range a.Elements {
		a.Elements[i] = v
	}
	return a
}

func tempDir(t *testing.T) string {
	dir, err := ioutil.TempDir("", "cosutil")
	if err != nil {
		t.Fatal(err)
	}
	return dir
}

const testSiteTable = "Code\tSite\tLatitude\tLongitude\n" +
	"MLO\tMauna Loa, Hawaii\t19.54\t-155.58\n" +
	"SMO\tTutuila, American Samoa\t-14.25\t-170.56\n" +
	"MHD\tMace Head, Ireland\t53.33\t-9.9\n"

func writeSites(t *testing.T, dir string) string {
	f := filepath.Join(dir, "sites.txt")
	if err := ioutil.WriteFile(f, []byte(testSiteTable), 0644); err != nil {
		t.Fatal(err)
	}
	return f
}

func TestForward(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	const nt = 3
	ny, nx := len(testLat), len(testLon)
	ocean := filepath.Join(dir, "ocean.nc")
	anthro := filepath.Join(dir, "anthro.nc")
	writeField(t, ocean, "COS_Flux", filled(1, nt, ny, nx))
	writeField(t, anthro, "COS_Flux", filled(0, nt, ny, nx))

	sc := DefaultScenario()
	sc.OceanScale = 2
	repo := &memStore{}
	in := &ForwardInput{
		Scenario:        sc,
		OceanFile:       ocean,
		AnthroFile:      anthro,
		FluxVariable:    "COS_Flux",
		OutputFile:      filepath.Join(dir, "out.nc"),
		OutputVariables: map[string]string{"TotalCOS": "OCS32 + OCS34"},
		SitesFile:       writeSites(t, dir),
		Store:           repo,
	}
	m, err := Forward(context.Background(), in, helperLog(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	if m.Cursor() != nt {
		t.Errorf("cursor %d", m.Cursor())
	}

	light, err := cosflux.ReadNCFFile(in.OutputFile, "OCS32")
	if err != nil {
		t.Fatal(err)
	}
	want := sc.InitialPool + 2*2*sc.Dt
	if v := light.Get(2, 0, 1, 3); different(v, want, 1e-6) {
		t.Errorf("OCS32 = %g; want %g", v, want)
	}
	if _, err = cosflux.ReadNCFFile(in.OutputFile, "TotalCOS"); err != nil {
		t.Error(err)
	}
	lat, err := cosflux.ReadNCFFile(in.OutputFile, "lat")
	if err != nil {
		t.Fatal(err)
	}
	if lat.Elements[1] != 45 {
		t.Errorf("lat %v", lat.Elements)
	}

	if len(repo.points) != 3*2*nt {
		t.Fatalf("stored %d points", len(repo.points))
	}
	sites, _ := repo.ListSites(context.Background(), sc.Key())
	if len(sites) != 3 {
		t.Errorf("sites %v", sites)
	}
	pts, _ := repo.Series(context.Background(), "MLO", sc.Key(), "OCS32")
	if len(pts) != nt || different(pts[2].Value, want, 1e-9) {
		t.Errorf("MLO series %+v", pts)
	}
}

func TestForwardMetrics(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	const nt = 4
	ny, nx := len(testLat), len(testLon)
	ocean := filepath.Join(dir, "ocean.nc")
	soil := filepath.Join(dir, "soil.nc")
	writeField(t, ocean, "COS_Flux", filled(0, nt, ny, nx))
	// Uptake of 300 per step empties the 500 pool by the second step.
	writeField(t, soil, "COS_Flux", filled(300, nt, ny, nx))

	reg := prometheus.NewRegistry()
	metrics, err := monitor.NewCollector(reg, "cosflux")
	if err != nil {
		t.Fatal(err)
	}
	in := &ForwardInput{
		Scenario:     DefaultScenario(),
		OceanFile:    ocean,
		AnthroFile:   ocean,
		SoilFile:     soil,
		FluxVariable: "COS_Flux",
		OutputFile:   filepath.Join(dir, "out.nc"),
	}
	log, hook := logtest.NewNullLogger()
	if _, err = Forward(context.Background(), in, log, metrics); err != nil {
		t.Fatal(err)
	}
	if err = logMetrics(reg, log); err != nil {
		t.Fatal(err)
	}
	e := hook.LastEntry()
	if e == nil || e.Message != "run metrics" {
		t.Fatalf("last log entry %+v", e)
	}
	if v := e.Data["cosflux_forward_steps_total"]; v != float64(nt) {
		t.Errorf("steps %v; want %d", v, nt)
	}
	if v := e.Data["cosflux_nonpositive_cells"]; v != float64(ny*nx) {
		t.Errorf("non-positive cells %v; want %d", v, ny*nx)
	}
}

func TestForwardMissingFlux(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	ocean := filepath.Join(dir, "ocean.nc")
	writeField(t, ocean, "COS_Flux", filled(1, 2, 2, 4))
	in := &ForwardInput{
		Scenario:     DefaultScenario(),
		OceanFile:    ocean,
		FluxVariable: "COS_Flux",
		OutputFile:   filepath.Join(dir, "out.nc"),
	}
	if _, err := Forward(context.Background(), in, helperLog(t), nil); err == nil {
		t.Error("expected an error for missing anthropogenic production")
	}
}

func TestBox(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	c := cosflux.DefaultBoxConfig()
	c.Years = 2
	r, err := Box(c, dir, helperLog(t))
	if err != nil {
		t.Fatal(err)
	}
	if len(r.COS) != 2 {
		t.Errorf("%d years", len(r.COS))
	}
	for _, f := range []string{"box.csv", "box_year_01.png", "box_year_02.png"} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Error(err)
		}
	}
	b, err := ioutil.ReadFile(filepath.Join(dir, "box.csv"))
	if err != nil {
		t.Fatal(err)
	}
	want := fmt.Sprintf("2,12,%g,%g\n", r.COS[1][11], r.Delta[1][11])
	if s := string(b); len(s) < len(want) || s[len(s)-len(want):] != want {
		t.Errorf("last line of box.csv is not %q", want)
	}
}

func TestPlantFlux(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	const g = 2e-8
	// Three days of 3-hourly records.
	geeFile := filepath.Join(dir, "gee.nc")
	writeField(t, geeFile, "GEE", filled(g, 24, len(testLat), len(testLon)))
	start := time.Date(2001, time.January, 31, 0, 0, 0, 0, time.UTC)
	out := filepath.Join(dir, "plant.nc")
	m, err := PlantFlux(geeFile, "GEE", start, plant.DefaultParams, out, helperLog(t))
	if err != nil {
		t.Fatal(err)
	}
	secs := plant.Step.Seconds()
	for mon, want := range map[int]float64{0: 8 * g * secs, 1: 16 * g * secs} {
		if v := m.GEE.Get(mon, 0, 0, 0); different(v, want, 1e-9) {
			t.Errorf("month %d GEE = %g; want %g", mon, v, want)
		}
	}
	focs, err := cosflux.ReadNCFFile(out, "FOCS")
	if err != nil {
		t.Fatal(err)
	}
	if focs.Shape[0] != 12 {
		t.Fatalf("FOCS shape %v", focs.Shape)
	}
	p := plant.DefaultParams
	want := 16 * secs * plant.COSUptakeValue(g, p.LRU, p.CO2, p.COS)
	if v := focs.Get(1, 0, 1, 2); different(v, want, 1e-5) {
		t.Errorf("February FOCS = %g; want %g", v, want)
	}
}

func TestTotals(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	const v = 1e-12
	f := filepath.Join(dir, "monthly.nc")
	writeField(t, f, "COS_Flux", filled(v, 12, len(testLat), len(testLon)))
	total, err := Totals(f, "COS_Flux", 2001, helperLog(t))
	if err != nil {
		t.Fatal(err)
	}
	earth := 4 * math.Pi * grid.EarthRadius * grid.EarthRadius * 1e6
	want := v * 365 * 24 * 3600 * earth
	if different(total, want, 1e-5) {
		t.Errorf("total = %g; want %g", total, want)
	}
	if _, err = Totals(f, "missing", 2001, helperLog(t)); err == nil {
		t.Error("expected an error for a missing variable")
	}
}

func TestSites(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	delta := sparse.ZerosDense(12, 1, len(testLat), len(testLon))
	nc := len(delta.Elements) / 12
	for i := range delta.Elements {
		delta.Elements[i] = float64(i / nc)
	}
	dataFile := filepath.Join(dir, "out.nc")
	writeField(t, dataFile, "Delta", delta)

	amps, err := Sites(writeSites(t, dir), dataFile, "Delta", 0, false, 0.2, dir, helperLog(t))
	if err != nil {
		t.Fatal(err)
	}
	if len(amps) != 3 {
		t.Fatalf("%d amplitudes", len(amps))
	}
	for _, a := range amps {
		if different(a.Amplitude, 11, 1e-6) || !a.Detectable {
			t.Errorf("%+v", a)
		}
	}
	if _, err = os.Stat(filepath.Join(dir, "Delta_pacific.png")); err != nil {
		t.Error(err)
	}

	amps, err = Sites(filepath.Join(dir, "sites.txt"), dataFile, "Delta", 0, false, 20, dir, helperLog(t))
	if err != nil {
		t.Fatal(err)
	}
	if amps[0].Detectable {
		t.Error("amplitude below the uncertainty should not be detectable")
	}
}

func TestStack(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	feb := filepath.Join(dir, "2001", "02")
	mar := filepath.Join(dir, "2001", "03")
	for _, d := range []string{feb, mar} {
		if err := os.MkdirAll(d, os.ModePerm); err != nil {
			t.Fatal(err)
		}
	}
	for day := 1; day <= 28; day++ {
		writeField(t, filepath.Join(feb, fmt.Sprintf("%02d.nc", day)), "COS_Flux",
			filled(float64(day), 1, len(testLat), len(testLon)))
	}
	// March is incomplete.
	writeField(t, filepath.Join(mar, "01.nc"), "COS_Flux", filled(100, 1, len(testLat), len(testLon)))

	out := filepath.Join(dir, "stacked.nc")
	stacked, err := Stack(dir, "COS_Flux", out, helperLog(t))
	if err != nil {
		t.Fatal(err)
	}
	if stacked.Shape[0] != 1 {
		t.Fatalf("shape %v", stacked.Shape)
	}
	read, err := cosflux.ReadNCFFile(out, "COS_Flux")
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range read.Elements {
		if different(v, 14.5, 1e-6) {
			t.Errorf("element %d = %g; want 14.5", i, v)
		}
	}

	if _, err = Stack(mar, "COS_Flux", out, helperLog(t)); err == nil {
		t.Error("expected an error when there are no complete months")
	}
}

func TestVersionCommand(t *testing.T) {
	Root.SetArgs([]string{"version"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
}
