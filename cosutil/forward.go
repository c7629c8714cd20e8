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
	"os"

	"github.com/cosflux/cosflux"
	"github.com/cosflux/cosflux/grid"
	"github.com/cosflux/cosflux/internal/monitor"
	"github.com/cosflux/cosflux/internal/store"
	"github.com/cosflux/cosflux/noaa"
	"github.com/ctessum/sparse"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// ForwardInput holds the inputs of a forward model run.
type ForwardInput struct {
	Scenario *Scenario

	// OceanFile and AnthroFile are required netCDF flux files;
	// PlantFile and SoilFile may be empty.
	OceanFile, AnthroFile, PlantFile, SoilFile string

	// FluxVariable is the name of the flux variable in the flux files.
	FluxVariable string

	OutputFile      string
	OutputVariables map[string]string

	// If SitesFile and Store are both set, the COS-32 and δ34S series at
	// the sites in SitesFile are saved to Store.
	SitesFile string
	Store     store.Repository
}

// readFlux reads a flux field, returning nil if fileName is empty.
func readFlux(fileName, varName string, log logrus.FieldLogger) (*sparse.DenseArray, error) {
	if fileName == "" {
		return nil, nil
	}
	data, err := cosflux.ReadNCFFile(fileName, varName)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"file": fileName, "variable": varName, "shape": data.Shape}).Info("read flux field")
	return data, nil
}

// readLatLon reads the lat and lon coordinate variables from fileName,
// returning nil slices if they are not there.
func readLatLon(fileName string) (lat, lon []float64) {
	latA, err := cosflux.ReadNCFFile(fileName, "lat")
	if err != nil {
		return nil, nil
	}
	lonA, err := cosflux.ReadNCFFile(fileName, "lon")
	if err != nil {
		return nil, nil
	}
	return latA.Elements, lonA.Elements
}

// Forward runs the forward model on the fluxes in in, writes the results
// to in.OutputFile and returns the model. metrics may be nil.
func Forward(ctx context.Context, in *ForwardInput, log logrus.FieldLogger, metrics *monitor.Collector) (*cosflux.ForwardModel, error) {
	var (
		f   cosflux.Fluxes
		err error
	)
	for _, x := range []struct {
		file string
		dst  **sparse.DenseArray
	}{
		{in.OceanFile, &f.OceanProduction},
		{in.AnthroFile, &f.AnthroProduction},
		{in.PlantFile, &f.PlantUptake},
		{in.SoilFile, &f.SoilUptake},
	} {
		if *x.dst, err = readFlux(x.file, in.FluxVariable, log); err != nil {
			return nil, err
		}
	}
	if f.OceanProduction != nil && in.Scenario.OceanScale != 1 {
		f.OceanProduction.Scale(in.Scenario.OceanScale)
	}

	m, err := cosflux.NewForwardModel(f, in.Scenario.ForwardConfig())
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"scenario": in.Scenario.Key(),
		"shape":    m.Shape(),
	}).Info("running forward model")
	if metrics != nil {
		err = metrics.RunForward(m)
	} else {
		err = m.Resume()
	}
	if err != nil {
		return nil, err
	}
	for t := 0; t < m.Cursor(); t++ {
		if cells := m.NonPositiveCells(t); len(cells) > 0 {
			log.WithFields(logrus.Fields{"step": t, "cells": len(cells)}).Warn("COS-32 pool is not positive; ratio and δ34S are undefined in these cells")
			break
		}
	}

	o, err := cosflux.NewOutputter(in.OutputVariables, in.Scenario.ReferenceRatio, nil)
	if err != nil {
		return nil, err
	}
	lat, lon := readLatLon(in.OceanFile)
	w, err := os.Create(in.OutputFile)
	if err != nil {
		return nil, fmt.Errorf("cosutil: creating output file: %v", err)
	}
	if err = m.Write(w, o, lat, lon); err != nil {
		w.Close()
		return nil, err
	}
	if err = w.Close(); err != nil {
		return nil, err
	}
	log.WithField("file", in.OutputFile).Info("wrote model output")

	if in.SitesFile != "" && in.Store != nil {
		if err = storeSites(ctx, m, in, lat, lon, log); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// storeSites saves the COS-32 and δ34S series at each site to in.Store.
func storeSites(ctx context.Context, m *cosflux.ForwardModel, in *ForwardInput, lat, lon []float64, log logrus.FieldLogger) error {
	if lat == nil {
		return fmt.Errorf("cosutil: storing site series: %s has no lat and lon variables", in.OceanFile)
	}
	g, err := grid.FromCenters(lat, lon)
	if err != nil {
		return err
	}
	sites, err := readSites(in.SitesFile)
	if err != nil {
		return err
	}
	noaa.AssignCells(sites, g)
	key := in.Scenario.Key()
	light, delta := m.LightPool(), m.Delta()
	var pts []store.Point
	for _, s := range sites {
		for _, v := range []struct {
			name string
			data *sparse.DenseArray
		}{{"OCS32", light}, {"Delta", delta}} {
			series, err := noaa.SiteValues(v.data, s, 0)
			if err != nil {
				return err
			}
			pts = append(pts, store.SeriesPoints(s.Code, key, v.name, series)...)
		}
	}
	if err = in.Store.InsertSeries(ctx, pts); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"sites": len(sites), "scenario": key}).Info("stored site series")
	return nil
}

// readSites reads a NOAA site table.
func readSites(fileName string) ([]*noaa.Site, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("cosutil: opening site table: %v", err)
	}
	defer f.Close()
	return noaa.ReadSites(f)
}

// logMetrics logs the current value of every metric in g.
func logMetrics(g prometheus.Gatherer, log logrus.FieldLogger) error {
	values, err := monitor.Values(g)
	if err != nil {
		return fmt.Errorf("cosutil: gathering metrics: %v", err)
	}
	fields := make(logrus.Fields, len(values))
	for k, v := range values {
		fields[k] = v
	}
	log.WithFields(fields).Info("run metrics")
	return nil
}
