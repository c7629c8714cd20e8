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
	"fmt"

	"github.com/ctessum/sparse"
)

// BoxConfig describes a single well-mixed atmospheric box driven by a
// monthly climatology of production and uptake that repeats every year.
type BoxConfig struct {
	// Years is the number of years to simulate.
	Years int

	// Production and Uptake are the COS-32 fluxes for each month, in
	// pool units per unit time.
	Production, Uptake [12]float64

	// Dt is the length of each monthly step in flux time units.
	Dt float64

	// InitialPool is the starting COS-32 amount.
	InitialPool float64

	ReferenceRatio float64

	// InitialDelta is the starting δ34S [‰].
	InitialDelta float64

	// SourceDelta is the δ34S [‰] of all production combined.
	SourceDelta float64

	// UptakeEpsilon is the fractionation of uptake [‰].
	UptakeEpsilon float64
}

// DefaultBoxConfig returns a twenty-year run with an arbitrary seasonal
// cycle in which production peaks in August and uptake in July.
func DefaultBoxConfig() BoxConfig {
	return BoxConfig{
		Years:          20,
		Production:     [12]float64{50, 110, 130, 140, 150, 200, 250, 300, 250, 200, 150, 50},
		Uptake:         [12]float64{25, 50, 60, 70, 100, 300, 500, 400, 200, 150, 100, 25},
		Dt:             0.1,
		InitialPool:    500,
		ReferenceRatio: 0.0422,
		InitialDelta:   3,
		SourceDelta:    8,
		UptakeEpsilon:  -5,
	}
}

// BoxResult holds the state of the box at the end of every month.
type BoxResult struct {
	// COS is the COS-32 amount, indexed [year][month].
	COS [][12]float64

	// Delta is δ34S [‰], indexed [year][month].
	Delta [][12]float64
}

// RunBox runs the seasonal box model.
func RunBox(cfg BoxConfig) (*BoxResult, error) {
	if cfg.Years < 1 {
		return nil, fmt.Errorf("cosflux: box model needs at least one year, got %d", cfg.Years)
	}
	nt := cfg.Years*12 + 1
	prod := sparse.ZerosDense(nt, 1, 1, 1)
	uptake := sparse.ZerosDense(nt, 1, 1, 1)
	for t := 1; t < nt; t++ {
		m := (t - 1) % 12
		prod.Elements[t] = cfg.Production[m]
		uptake.Elements[t] = cfg.Uptake[m]
	}

	fc := ForwardConfig{
		InitialLightPool: cfg.InitialPool,
		ReferenceRatio:   cfg.ReferenceRatio,
		InitialDelta:     cfg.InitialDelta,
		Epsilon:          Fractionation{Ocean: cfg.SourceDelta, Plant: cfg.UptakeEpsilon},
		Dt:               cfg.Dt,
		FixedSourceRatio: true,
	}
	model, err := NewForwardModel(Fluxes{
		OceanProduction:  prod,
		AnthroProduction: sparse.ZerosDense(nt, 1, 1, 1),
		PlantUptake:      uptake,
	}, fc)
	if err != nil {
		return nil, err
	}
	if err = model.Resume(); err != nil {
		return nil, err
	}

	r := &BoxResult{
		COS:   make([][12]float64, cfg.Years),
		Delta: make([][12]float64, cfg.Years),
	}
	for t := 1; t < nt; t++ {
		y, m := (t-1)/12, (t-1)%12
		r.COS[y][m] = model.light.Elements[t]
		r.Delta[y][m] = model.delta.Elements[t]
	}
	return r, nil
}
