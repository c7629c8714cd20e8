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

package noaa

import (
	"strings"
	"testing"

	"github.com/cosflux/cosflux/grid"
	"github.com/ctessum/sparse"
	"github.com/kr/pretty"
)

const siteTable = "Code\tSite\tLatitude\tLongitude\n" +
	"MLO\tMauna Loa, Hawaii\t19.54\t-155.58\n" +
	"SMO\tTutuila, American Samoa\t-14.25\t-170.56\n" +
	"MHD\tMace Head, Ireland\t53.33\t-9.9\n" +
	"CPT\tCape Point, South Africa\t-34.35\t18.49\n" +
	"ZEP\tNy-Alesund, Svalbard\t78.91\t11.89\n" +
	"SEY\tMahe Island, Seychelles\t-4.68\t55.53\n"

func testSites(t *testing.T) []*Site {
	sites, err := ReadSites(strings.NewReader(siteTable))
	if err != nil {
		t.Fatal(err)
	}
	return sites
}

func TestReadSites(t *testing.T) {
	sites := testSites(t)
	if len(sites) != 6 {
		t.Fatalf("read %d sites", len(sites))
	}
	want := &Site{Code: "SMO", Name: "Tutuila, American Samoa", Lat: -14.25, Lon: -170.56, Row: -1, Col: -1}
	if diff := pretty.Diff(sites[1], want); len(diff) > 0 {
		t.Error(strings.Join(diff, "\n"))
	}
	if !sites[1].SouthernHemisphere() || sites[0].SouthernHemisphere() {
		t.Error("wrong hemisphere")
	}
	if _, err := ReadSites(strings.NewReader("Code\tLatitude\nMLO\t19.5\n")); err == nil {
		t.Error("expected an error for a missing Longitude column")
	}
	if _, err := ReadSites(strings.NewReader("Code\tLatitude\tLongitude\nMLO\tnorth\t1\n")); err == nil {
		t.Error("expected an error for a bad latitude")
	}
}

func TestGradients(t *testing.T) {
	sites := testSites(t)
	var codes []string
	for _, s := range PacificGradient(sites) {
		codes = append(codes, s.Code)
	}
	if diff := pretty.Diff(codes, []string{"MLO", "SMO"}); len(diff) > 0 {
		t.Errorf("Pacific: %v", diff)
	}
	if _, err := AtlanticGradient(sites); err == nil {
		t.Error("expected an error for missing Atlantic sites")
	}
	g, err := Gradient(sites, []string{"ZEP", "MHD", "CPT"})
	if err != nil {
		t.Fatal(err)
	}
	if g[2].Code != "CPT" {
		t.Errorf("have %s; want CPT", g[2].Code)
	}
	if _, err = IndianGradient(sites); err == nil {
		t.Error("expected an error for missing Indian Ocean sites")
	}
}

func TestSiteSeries(t *testing.T) {
	sites := testSites(t)
	g, err := grid.Regular(36, 72, -180)
	if err != nil {
		t.Fatal(err)
	}
	AssignCells(sites, g)
	mlo, err := Find(sites, "MLO")
	if err != nil {
		t.Fatal(err)
	}
	if mlo.Row != 21 || mlo.Col != 4 {
		t.Errorf("MLO cell (%d, %d); want (21, 4)", mlo.Row, mlo.Col)
	}

	field := sparse.ZerosDense(3, 1, 36, 72)
	for tt := 0; tt < 3; tt++ {
		field.Set(float64(tt+1)*1e-12, tt, 0, 21, 4)
	}
	series, err := SiteSeries(field, mlo, 0)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range series {
		if v < float64(i+1)-1e-9 || v > float64(i+1)+1e-9 {
			t.Errorf("month %d = %g ppt; want %d", i, v, i+1)
		}
	}
	if _, err = SiteSeries(field, mlo, 1); err == nil {
		t.Error("expected an error for a missing level")
	}
	if _, err = SiteSeries(field, &Site{Code: "XXX", Row: -1, Col: -1}, 0); err == nil {
		t.Error("expected an error for an unassigned site")
	}
	if _, err = Find(sites, "XXX"); err == nil {
		t.Error("expected an error for an unknown site")
	}
}

func TestAmplitude(t *testing.T) {
	a, ok := Amplitude([]float64{3.1, 3.4, 2.9}, 0.2)
	if a < 0.5-1e-12 || a > 0.5+1e-12 || !ok {
		t.Errorf("have %g, %v; want 0.5, true", a, ok)
	}
	if _, ok = Amplitude([]float64{3.1, 3.2}, 0.2); ok {
		t.Error("amplitude within the uncertainty should not be detectable")
	}
	if a, ok = Amplitude(nil, 0.2); a != 0 || ok {
		t.Errorf("empty series: %g, %v", a, ok)
	}
}
