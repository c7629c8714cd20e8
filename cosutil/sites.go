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
	"fmt"
	"os"
	"path/filepath"

	"github.com/cosflux/cosflux"
	"github.com/cosflux/cosflux/cosplot"
	"github.com/cosflux/cosflux/grid"
	"github.com/cosflux/cosflux/noaa"
	"github.com/sirupsen/logrus"
)

// SiteAmplitude is the seasonal amplitude of a variable at one site.
type SiteAmplitude struct {
	Code       string
	Amplitude  float64
	Detectable bool
}

// Sites samples variable varName of the model output dataFile at the
// NOAA sites listed in sitesFile, draws the Pacific, Atlantic and Indian
// Ocean gradients into outputDir, and returns the seasonal amplitude at
// every site. If anomaly is true the mean of the field is removed first.
func Sites(sitesFile, dataFile, varName string, level int, anomaly bool, uncertainty float64, outputDir string, log logrus.FieldLogger) ([]SiteAmplitude, error) {
	field, err := cosflux.ReadNCFFile(dataFile, varName)
	if err != nil {
		return nil, err
	}
	if anomaly {
		field = grid.Anomaly(field)
	}
	lat, lon := readLatLon(dataFile)
	if lat == nil {
		return nil, fmt.Errorf("cosutil: %s has no lat and lon variables", dataFile)
	}
	g, err := grid.FromCenters(lat, lon)
	if err != nil {
		return nil, err
	}
	sites, err := readSites(sitesFile)
	if err != nil {
		return nil, err
	}
	noaa.AssignCells(sites, g)

	series := make(map[string][]float64, len(sites))
	var amps []SiteAmplitude
	for _, s := range sites {
		v, err := noaa.SiteValues(field, s, level)
		if err != nil {
			return nil, err
		}
		series[s.Code] = v
		a, ok := noaa.Amplitude(v, uncertainty)
		amps = append(amps, SiteAmplitude{Code: s.Code, Amplitude: a, Detectable: ok})
		log.WithFields(logrus.Fields{
			"site":       s.Code,
			"row":        s.Row,
			"col":        s.Col,
			"amplitude":  a,
			"detectable": ok,
		}).Info("site seasonal amplitude")
	}

	gradients := []struct {
		name string
		get  func([]*noaa.Site) ([]*noaa.Site, error)
	}{
		{"pacific", func(s []*noaa.Site) ([]*noaa.Site, error) { return noaa.PacificGradient(s), nil }},
		{"atlantic", noaa.AtlanticGradient},
		{"indian", noaa.IndianGradient},
	}
	for _, gr := range gradients {
		gs, err := gr.get(sites)
		if err != nil {
			log.WithField("gradient", gr.name).Warnf("skipping gradient: %v", err)
			continue
		}
		if len(gs) == 0 {
			continue
		}
		var lines []cosplot.Series
		for _, s := range gs {
			lines = append(lines, cosplot.NewSiteSeries(s, series[s.Code]))
		}
		fileName := filepath.Join(outputDir, fmt.Sprintf("%s_%s.png", varName, gr.name))
		title := fmt.Sprintf("%s, %s gradient", varName, gr.name)
		err = plotFile(fileName, func(f *os.File) error { return cosplot.SiteSeries(f, title, varName, lines) })
		if err != nil {
			return nil, err
		}
	}
	return amps, nil
}
