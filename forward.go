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
	"math"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
)

const (
	// FromCursor can be given as the start of RunForward to continue from
	// the first step that has not been computed yet.
	FromCursor = -1

	// ToEnd can be given as the end of RunForward to run through the last
	// time step.
	ToEnd = -1
)

// Fluxes holds the light isotopologue (COS-32) flux fields driving a
// ForwardModel. Each field is indexed (time, level, y, x). Fluxes are
// amounts per time step in the same units as the pools.
type Fluxes struct {
	// OceanProduction is required and sets the domain shape.
	OceanProduction *sparse.DenseArray

	// AnthroProduction is required.
	AnthroProduction *sparse.DenseArray

	// PlantUptake and SoilUptake are optional; nil means no uptake.
	PlantUptake *sparse.DenseArray
	SoilUptake  *sparse.DenseArray
}

// Fractionation holds a per-mil fractionation factor for each process.
type Fractionation struct {
	Anthro, Ocean, Plant, Soil float64
}

// ForwardConfig holds the scalar parameters of a ForwardModel.
// Start from DefaultForwardConfig and change what is needed.
type ForwardConfig struct {
	// InitialLightPool is the COS-32 pool in every cell at time index 0.
	InitialLightPool float64

	// InitialLightPoolField, if not nil, replaces InitialLightPool with a
	// spatially varying field that can be broadcast to (level, y, x).
	InitialLightPoolField *sparse.DenseArray

	// ReferenceRatio is the 34S/32S ratio of the isotope standard.
	ReferenceRatio float64

	// InitialDelta is the δ34S [‰] of the atmosphere at time index 0.
	InitialDelta float64

	// Epsilon holds the fractionation factor of each process [‰].
	Epsilon Fractionation

	// Dt multiplies the fluxes at each step.
	Dt float64

	// FixedSourceRatio, when true, gives production a fixed isotopic
	// signature equal to DeltaToRatio(Epsilon.<process>, ReferenceRatio)
	// instead of fractionating the current atmospheric ratio.
	// Uptake always fractionates the atmospheric ratio.
	FixedSourceRatio bool
}

// DefaultForwardConfig returns the default model parameters.
func DefaultForwardConfig() ForwardConfig {
	return ForwardConfig{
		InitialLightPool: 500,
		ReferenceRatio:   0.0422,
		InitialDelta:     3,
		Epsilon:          Fractionation{Anthro: 3},
		Dt:               1,
	}
}

// ForwardModel advances the COS-32 and COS-34 pools of every cell of a
// (time, level, y, x) domain through time. Each cell is an independent
// box; there is no transport between cells.
//
// Time index 0 holds the initial state and the fluxes at index 0 are not
// applied. Step t (t ≥ 1) fractionates using the heavy/light ratio of step
// t-1, then adds the net flux at t to the pools of step t-1.
//
// Pools that reach zero or below are not clamped: the ratio and delta at
// such cells become NaN, infinite, or change sign, and propagate to later
// steps. Use NonPositiveCells to find them.
//
// A ForwardModel is not safe for concurrent use, and the flux fields must
// not be modified while it is running.
type ForwardModel struct {
	f     Fluxes
	cfg   ForwardConfig
	shape []int
	nCell int // cells per time step

	initialRatio       float64
	oceanSourceRatio   float64
	anthroSourceRatio  float64
	initLight          []float64
	initHeavy          []float64
	light, heavy       *sparse.DenseArray
	ratio, delta       *sparse.DenseArray
	prodLight, upLight []float64

	cursor int
}

// NewForwardModel checks the flux fields and parameters and allocates the
// pool, ratio and delta time series for the domain.
func NewForwardModel(f Fluxes, cfg ForwardConfig) (*ForwardModel, error) {
	if f.OceanProduction == nil {
		return nil, fmt.Errorf("cosflux: ocean production: %w", ErrMissingInput)
	}
	if f.AnthroProduction == nil {
		return nil, fmt.Errorf("cosflux: anthropogenic production: %w", ErrMissingInput)
	}
	shape := copyShape(f.OceanProduction.Shape)
	if len(shape) != 4 {
		return nil, fmt.Errorf("cosflux: ocean production must have dimensions "+
			"(time, level, y, x) but has shape %v: %w", shape, ErrShapeMismatch)
	}
	if !sameShape(f.AnthroProduction.Shape, shape) {
		return nil, shapeError("anthropogenic production", f.AnthroProduction.Shape, shape)
	}
	if f.PlantUptake == nil {
		f.PlantUptake = sparse.ZerosDense(copyShape(shape)...)
	} else if !sameShape(f.PlantUptake.Shape, shape) {
		return nil, shapeError("plant uptake", f.PlantUptake.Shape, shape)
	}
	if f.SoilUptake == nil {
		f.SoilUptake = sparse.ZerosDense(copyShape(shape)...)
	} else if !sameShape(f.SoilUptake.Shape, shape) {
		return nil, shapeError("soil uptake", f.SoilUptake.Shape, shape)
	}
	if !(cfg.ReferenceRatio > 0) {
		return nil, fmt.Errorf("cosflux: reference ratio must be positive but is %g", cfg.ReferenceRatio)
	}
	if !(cfg.Dt > 0) {
		return nil, fmt.Errorf("cosflux: time step must be positive but is %g", cfg.Dt)
	}

	m := &ForwardModel{
		f:     f,
		cfg:   cfg,
		shape: shape,
		nCell: shape[1] * shape[2] * shape[3],
	}
	m.initLight = make([]float64, m.nCell)
	if cfg.InitialLightPoolField != nil {
		init, err := Broadcast(cfg.InitialLightPoolField, shape[1:])
		if err != nil {
			return nil, fmt.Errorf("cosflux: initial light pool: %w", err)
		}
		copy(m.initLight, init.Elements)
	} else {
		for i := range m.initLight {
			m.initLight[i] = cfg.InitialLightPool
		}
	}
	m.initialRatio = DeltaToRatio(cfg.InitialDelta, cfg.ReferenceRatio)
	m.initHeavy = make([]float64, m.nCell)
	for i, l := range m.initLight {
		m.initHeavy[i] = l * m.initialRatio
	}
	m.oceanSourceRatio = DeltaToRatio(cfg.Epsilon.Ocean, cfg.ReferenceRatio)
	m.anthroSourceRatio = DeltaToRatio(cfg.Epsilon.Anthro, cfg.ReferenceRatio)

	m.light = sparse.ZerosDense(copyShape(shape)...)
	m.heavy = sparse.ZerosDense(copyShape(shape)...)
	m.ratio = sparse.ZerosDense(copyShape(shape)...)
	m.delta = sparse.ZerosDense(copyShape(shape)...)
	for _, a := range []*sparse.DenseArray{m.light, m.heavy, m.ratio, m.delta} {
		for i := range a.Elements {
			a.Elements[i] = math.NaN()
		}
	}
	m.prodLight = make([]float64, m.nCell)
	m.upLight = make([]float64, m.nCell)
	m.step(0)
	return m, nil
}

// RunForward computes time steps tStart through tEnd-1. A negative tStart
// (FromCursor) starts at the first step not yet computed, and a negative
// tEnd (ToEnd) runs through the end of the time axis. Steps earlier than
// the cursor may be recomputed, but steps cannot be skipped: tStart may not
// be later than the cursor.
func (m *ForwardModel) RunForward(tStart, tEnd int) error {
	if tStart < 0 {
		tStart = m.cursor
	}
	if tEnd < 0 {
		tEnd = m.shape[0]
	}
	if tStart > tEnd {
		return fmt.Errorf("cosflux: start %d is after end %d: %w", tStart, tEnd, ErrInvalidRange)
	}
	if tEnd > m.shape[0] {
		return fmt.Errorf("cosflux: end %d is beyond the %d time steps in the domain: %w",
			tEnd, m.shape[0], ErrInvalidRange)
	}
	if tStart > m.cursor {
		return fmt.Errorf("cosflux: start %d skips uncomputed steps beginning at %d: %w",
			tStart, m.cursor, ErrInvalidRange)
	}
	for t := tStart; t < tEnd; t++ {
		m.step(t)
		m.cursor = t + 1
	}
	return nil
}

// Resume runs from the cursor through the end of the time axis.
func (m *ForwardModel) Resume() error {
	return m.RunForward(FromCursor, ToEnd)
}

// Cursor returns the index of the first time step that has not been computed.
func (m *ForwardModel) Cursor() int { return m.cursor }

// Shape returns the (time, level, y, x) shape of the domain.
func (m *ForwardModel) Shape() []int { return copyShape(m.shape) }

// Config returns the parameters the model was created with.
func (m *ForwardModel) Config() ForwardConfig { return m.cfg }

// step computes time index t.
func (m *ForwardModel) step(t int) {
	n := m.nCell
	lo, hi := t*n, (t+1)*n
	curL := m.light.Elements[lo:hi]
	curH := m.heavy.Elements[lo:hi]
	curR := m.ratio.Elements[lo:hi]
	curD := m.delta.Elements[lo:hi]

	if t == 0 {
		copy(curL, m.initLight)
		copy(curH, m.initHeavy)
		for i := range curR {
			curR[i] = m.initialRatio
			curD[i] = m.cfg.InitialDelta
		}
		return
	}

	prevL := m.light.Elements[lo-n : lo]
	prevH := m.heavy.Elements[lo-n : lo]
	prevR := m.ratio.Elements[lo-n : lo]
	ocean := m.f.OceanProduction.Elements[lo:hi]
	anthro := m.f.AnthroProduction.Elements[lo:hi]
	plant := m.f.PlantUptake.Elements[lo:hi]
	soil := m.f.SoilUptake.Elements[lo:hi]
	eps := m.cfg.Epsilon
	dt := m.cfg.Dt

	floats.AddTo(m.prodLight, ocean, anthro)
	floats.AddTo(m.upLight, plant, soil)
	for i, r := range prevR {
		var prodHeavy float64
		if m.cfg.FixedSourceRatio {
			prodHeavy = ocean[i]*m.oceanSourceRatio + anthro[i]*m.anthroSourceRatio
		} else {
			prodHeavy = FractionateHeavyFlux(ocean[i], eps.Ocean, r) +
				FractionateHeavyFlux(anthro[i], eps.Anthro, r)
		}
		upHeavy := FractionateHeavyFlux(plant[i], eps.Plant, r) +
			FractionateHeavyFlux(soil[i], eps.Soil, r)

		curL[i] = prevL[i] + (m.prodLight[i]-m.upLight[i])*dt
		curH[i] = prevH[i] + (prodHeavy-upHeavy)*dt
	}
	floats.DivTo(curR, curH, curL)
	for i, r := range curR {
		curD[i] = RatioToDelta(r, m.cfg.ReferenceRatio)
	}
}

// LightPool returns a copy of the COS-32 pool time series.
func (m *ForwardModel) LightPool() *sparse.DenseArray { return m.light.Copy() }

// HeavyPool returns a copy of the COS-34 pool time series.
func (m *ForwardModel) HeavyPool() *sparse.DenseArray { return m.heavy.Copy() }

// Ratio returns a copy of the COS-34/COS-32 ratio time series.
func (m *ForwardModel) Ratio() *sparse.DenseArray { return m.ratio.Copy() }

// Delta returns a copy of the δ34S [‰] time series. Steps that have not
// been computed are NaN.
func (m *ForwardModel) Delta() *sparse.DenseArray { return m.delta.Copy() }

// DeltaAt returns a copy of the δ34S values of every cell at time index t,
// ordered (level, y, x).
func (m *ForwardModel) DeltaAt(t int) ([]float64, error) {
	if t < 0 || t >= m.shape[0] {
		return nil, fmt.Errorf("cosflux: time index %d outside of [0, %d): %w", t, m.shape[0], ErrInvalidRange)
	}
	o := make([]float64, m.nCell)
	copy(o, m.delta.Elements[t*m.nCell:(t+1)*m.nCell])
	return o, nil
}

// NonPositiveCells returns the indices, within the (level, y, x) slice at
// time index t, of cells whose COS-32 pool is zero, negative or NaN.
func (m *ForwardModel) NonPositiveCells(t int) []int {
	if t < 0 || t >= m.cursor {
		return nil
	}
	var o []int
	for i, v := range m.light.Elements[t*m.nCell : (t+1)*m.nCell] {
		if !(v > 0) {
			o = append(o, i)
		}
	}
	return o
}

// Variables returns the model state and inputs by name. The arrays are
// the model's own and must not be modified.
func (m *ForwardModel) Variables() map[string]*sparse.DenseArray {
	return map[string]*sparse.DenseArray{
		"OCS32":            m.light,
		"OCS34":            m.heavy,
		"Ratio":            m.ratio,
		"Delta":            m.delta,
		"OceanProduction":  m.f.OceanProduction,
		"AnthroProduction": m.f.AnthroProduction,
		"PlantUptake":      m.f.PlantUptake,
		"SoilUptake":       m.f.SoilUptake,
	}
}
