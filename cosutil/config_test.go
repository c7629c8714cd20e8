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
	"strings"
	"testing"

	"github.com/cosflux/cosflux"
	"github.com/kr/pretty"
	"github.com/lnashier/viper"
)

func TestReadScenario(t *testing.T) {
	s, err := ReadScenario(strings.NewReader(`
Name = "high ocean"
OceanScale = 2.0
FixedSourceRatio = true

[Epsilon]
Plant = -1.9
Ocean = 13.0
`))
	if err != nil {
		t.Fatal(err)
	}
	want := DefaultScenario()
	want.Name = "high ocean"
	want.OceanScale = 2
	want.FixedSourceRatio = true
	want.Epsilon.Plant = -1.9
	want.Epsilon.Ocean = 13
	if diff := pretty.Diff(s, want); len(diff) > 0 {
		t.Error(strings.Join(diff, "\n"))
	}

	c := s.ForwardConfig()
	if c.InitialLightPool != cosflux.DefaultForwardConfig().InitialLightPool || !c.FixedSourceRatio || c.Epsilon.Plant != -1.9 {
		t.Errorf("forward config %+v", c)
	}
}

func TestReadScenarioErrors(t *testing.T) {
	for _, in := range []string{
		"OceanScale = -1.0",
		"InstrumentUncertainty = -0.1",
		"Name = ",
	} {
		if _, err := ReadScenario(strings.NewReader(in)); err == nil {
			t.Errorf("%q: expected an error", in)
		}
	}
}

func TestScenarioKey(t *testing.T) {
	a, b := DefaultScenario(), DefaultScenario()
	if a.Key() != b.Key() {
		t.Errorf("equal scenarios have keys %s and %s", a.Key(), b.Key())
	}
	if !strings.HasPrefix(a.Key(), "default-") {
		t.Errorf("key %s does not start with the scenario name", a.Key())
	}
	b.Epsilon.Soil = -4
	if a.Key() == b.Key() {
		t.Error("different scenarios have the same key")
	}
}

func TestGetStringMapString(t *testing.T) {
	cfg := viper.New()
	cfg.Set("a", `{"TotalCOS":"OCS32 + OCS34"}`)
	cfg.Set("b", map[string]interface{}{"x": "Delta"})
	cfg.Set("c", "")
	cfg.Set("d", 3)
	tests := []struct {
		name string
		want map[string]string
	}{
		{"a", map[string]string{"TotalCOS": "OCS32 + OCS34"}},
		{"b", map[string]string{"x": "Delta"}},
		{"c", map[string]string{}},
		{"missing", map[string]string{}},
	}
	for _, test := range tests {
		have, err := GetStringMapString(test.name, cfg)
		if err != nil {
			t.Errorf("%s: %v", test.name, err)
			continue
		}
		if diff := pretty.Diff(have, test.want); len(diff) > 0 {
			t.Errorf("%s: %s", test.name, strings.Join(diff, "\n"))
		}
	}
	if _, err := GetStringMapString("d", cfg); err == nil {
		t.Error("expected an error for an integer")
	}
}

func TestCheckOutputVars(t *testing.T) {
	have := checkOutputVars(map[string]string{"TotalCOS": "OCS32 +\nOCS34"})
	if have["TotalCOS"] != "OCS32 + OCS34" {
		t.Errorf("have %q", have["TotalCOS"])
	}
}

func TestCheckDate(t *testing.T) {
	d, err := checkDate("start", "2010-02-28")
	if err != nil {
		t.Fatal(err)
	}
	if d.Year() != 2010 || d.Month() != 2 || d.Day() != 28 {
		t.Errorf("date %v", d)
	}
	if _, err = checkDate("start", "28/02/2010"); err == nil {
		t.Error("expected an error")
	}
}

func TestCheckLogFile(t *testing.T) {
	if f := checkLogFile("", "/tmp/out.nc"); f != "/tmp/out.log" {
		t.Errorf("have %s", f)
	}
	if f := checkLogFile("run.log", "/tmp/out.nc"); f != "run.log" {
		t.Errorf("have %s", f)
	}
}
