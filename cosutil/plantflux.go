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
	"time"

	"github.com/cosflux/cosflux"
	"github.com/cosflux/cosflux/grid"
	"github.com/cosflux/cosflux/plant"
	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
)

// PlantFlux reads 3-hourly GEE [kgC m⁻² s⁻¹] starting at start from
// variable geeVar of geeFile, and writes monthly GEE and COS plant uptake
// totals to outputFile as variables GEE and FOCS. If geeFile has lat and
// lon coordinates the global uptake of each month is logged.
func PlantFlux(geeFile, geeVar string, start time.Time, p plant.Params, outputFile string, log logrus.FieldLogger) (*plant.Monthly, error) {
	gee, err := cosflux.ReadNCFFile(geeFile, geeVar)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"file": geeFile, "records": gee.Shape[0], "start": start}).Info("aggregating GEE")
	m, err := plant.AggregateMonthly(gee, start, p)
	if err != nil {
		return nil, err
	}

	vars := map[string]cosflux.NCFVar{
		"GEE":  {Dims: monthDims(m.GEE), Description: "monthly gross ecosystem exchange", Units: "kgC m-2 month-1", Data: m.GEE},
		"FOCS": {Dims: monthDims(m.FOCS), Description: "monthly COS plant uptake", Units: "pmol m-2 month-1", Data: m.FOCS},
	}
	lat, lon := readLatLon(geeFile)
	if lat != nil {
		addLatLon(vars, lat, lon)
		g, err := grid.FromCenters(lat, lon)
		if err != nil {
			return nil, err
		}
		totals, err := m.GlobalUptake(g.Areas())
		if err != nil {
			return nil, err
		}
		for mon, t := range totals {
			log.WithFields(logrus.Fields{"month": time.Month(mon + 1), "uptake": t}).Info("global COS plant uptake")
		}
	}
	w, err := os.Create(outputFile)
	if err != nil {
		return nil, fmt.Errorf("cosutil: creating plant flux output: %v", err)
	}
	if err = cosflux.WriteNCF(w, vars, map[string]interface{}{
		"lru":        []float64{p.LRU},
		"co2":        []float64{p.CO2},
		"cos":        []float64{p.COS},
		"start_date": start.Format("2006-01-02"),
	}); err != nil {
		w.Close()
		return nil, err
	}
	return m, w.Close()
}

// monthDims returns the netCDF dimensions of a monthly field.
func monthDims(a *sparse.DenseArray) []string {
	if len(a.Shape) == 4 {
		return cosflux.FieldDims
	}
	return []string{"time", "lat", "lon"}[:len(a.Shape)]
}

// addLatLon adds lat and lon coordinate variables to vars.
func addLatLon(vars map[string]cosflux.NCFVar, lat, lon []float64) {
	latA, lonA := sparse.ZerosDense(len(lat)), sparse.ZerosDense(len(lon))
	copy(latA.Elements, lat)
	copy(lonA.Elements, lon)
	vars["lat"] = cosflux.NCFVar{Dims: []string{"lat"}, Description: "latitude", Units: "degrees_north", Data: latA}
	vars["lon"] = cosflux.NCFVar{Dims: []string{"lon"}, Description: "longitude", Units: "degrees_east", Data: lonA}
}
