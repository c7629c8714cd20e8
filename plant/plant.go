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

// Package plant calculates carbonyl sulfide (COS) uptake by plants from
// CO2 gross ecosystem exchange (GEE) using the leaf relative uptake (LRU)
// approach, and aggregates 3-hourly fields to monthly totals.
package plant

import (
	"fmt"
	"time"

	"github.com/cosflux/cosflux"
	"github.com/ctessum/sparse"
	"github.com/ctessum/unit"
)

// Dimensions for carbon mass and amount of COS, which are tracked
// separately from the SI base dimensions.
var (
	Carbon = unit.NewDimension("kgC")
	COS    = unit.NewDimension("pmolCOS")
)

var (
	// GEEUnits are the units of a GEE rate [kgC m⁻² s⁻¹].
	GEEUnits = unit.Dimensions{Carbon: 1, unit.LengthDim: -2, unit.TimeDim: -1}

	// UptakeUnits are the units of a COS uptake rate [pmol m⁻² s⁻¹].
	UptakeUnits = unit.Dimensions{COS: 1, unit.LengthDim: -2, unit.TimeDim: -1}
)

// Unit conversions for COSUptake.
const (
	gramsPerKilogram = 1e3
	molCPerGramC     = 1 / 12.011
	umolPerMol       = 1e6
	molPerPmol       = 1e-12
)

// Params hold the plant uptake parameters.
type Params struct {
	// LRU is the leaf relative uptake
	// [(pmol COS m⁻² s⁻¹ (ppt COS)⁻¹) / (μmol CO2 m⁻² s⁻¹ (ppm CO2)⁻¹)].
	LRU float64

	// CO2 is the atmospheric CO2 concentration [ppm].
	CO2 float64

	// COS is the atmospheric COS concentration [ppt].
	COS float64
}

// DefaultParams are the parameters used to convert CASA-GFED GEE.
var DefaultParams = Params{LRU: 1.61, CO2: 1.1, COS: 1.0}

// COSUptakeValue returns the plant COS flux [pmol m⁻² s⁻¹] for a single
// GEE value [kgC m⁻² s⁻¹].
func COSUptakeValue(gee, lru, co2, cos float64) float64 {
	return gee * lru * (cos / co2) * gramsPerKilogram * molCPerGramC * umolPerMol * molPerPmol
}

// COSUptake returns the plant COS flux [pmol m⁻² s⁻¹] for every element of
// gee [kgC m⁻² s⁻¹]. lru, co2 and cos may be scalars (see cosflux.Scalar)
// or arrays of any shape that broadcasts to the shape of gee.
func COSUptake(gee, lru, co2, cos *sparse.DenseArray) (*sparse.DenseArray, error) {
	var err error
	args := []*sparse.DenseArray{lru, co2, cos}
	for i, a := range args {
		if args[i], err = cosflux.Broadcast(a, gee.Shape); err != nil {
			return nil, fmt.Errorf("plant: %v", err)
		}
	}
	out := sparse.ZerosDense(append([]int{}, gee.Shape...)...)
	for i, g := range gee.Elements {
		out.Elements[i] = COSUptakeValue(g, args[0].Elements[i], args[1].Elements[i], args[2].Elements[i])
	}
	return out, nil
}

// Uptake is COSUptakeValue with units checking.
func Uptake(gee *unit.Unit, p Params) (*unit.Unit, error) {
	if err := gee.Check(GEEUnits); err != nil {
		return nil, fmt.Errorf("plant: GEE: %v", err)
	}
	return unit.New(COSUptakeValue(gee.Value(), p.LRU, p.CO2, p.COS), UptakeUnits), nil
}

// Step is the time step of the GEE fields read by AggregateMonthly.
const Step = 3 * time.Hour

// Monthly holds monthly totals of GEE and COS plant uptake. Both arrays
// have 12 elements along their first dimension, one per calendar month.
type Monthly struct {
	// GEE is in kgC m⁻² month⁻¹.
	GEE *sparse.DenseArray

	// FOCS is in pmol COS m⁻² month⁻¹.
	FOCS *sparse.DenseArray
}

// AggregateMonthly converts GEE rates [kgC m⁻² s⁻¹] at 3-hour intervals,
// with the first record at start, into monthly totals of GEE and plant COS
// uptake. Records falling in the same calendar month are summed regardless
// of year. Months with no records are zero.
func AggregateMonthly(gee3h *sparse.DenseArray, start time.Time, p Params) (*Monthly, error) {
	if len(gee3h.Shape) < 2 {
		return nil, fmt.Errorf("plant: GEE must have a time dimension; has shape %v", gee3h.Shape)
	}
	if p.CO2 == 0 {
		return nil, fmt.Errorf("plant: CO2 concentration is zero")
	}
	shape := append([]int{12}, gee3h.Shape[1:]...)
	m := &Monthly{
		GEE:  sparse.ZerosDense(shape...),
		FOCS: sparse.ZerosDense(append([]int{}, shape...)...),
	}
	secs := Step.Seconds()
	nc := len(gee3h.Elements) / gee3h.Shape[0]
	for t := 0; t < gee3h.Shape[0]; t++ {
		month := int(start.Add(time.Duration(t)*Step).Month()) - 1
		gee := m.GEE.Elements[month*nc : (month+1)*nc]
		focs := m.FOCS.Elements[month*nc : (month+1)*nc]
		for i, g := range gee3h.Elements[t*nc : (t+1)*nc] {
			gee[i] += g * secs
			focs[i] += COSUptakeValue(g, p.LRU, p.CO2, p.COS) * secs
		}
	}
	return m, nil
}

// GlobalUptake multiplies the monthly COS uptake by the area of each cell
// [km², see grid.Grid.Areas] and sums over cells, returning the total
// uptake in each month [pmol COS].
func (m *Monthly) GlobalUptake(areas *sparse.DenseArray) ([12]*unit.Unit, error) {
	var totals [12]*unit.Unit
	nc := len(m.FOCS.Elements) / 12
	if len(areas.Elements) != nc {
		return totals, fmt.Errorf("plant: %d cell areas for %d cells", len(areas.Elements), nc)
	}
	perMonth := unit.Dimensions{COS: 1, unit.LengthDim: -2}
	for mon := range totals {
		total := unit.New(0, unit.Dimensions{COS: 1})
		for i, f := range m.FOCS.Elements[mon*nc : (mon+1)*nc] {
			area := unit.New(areas.Elements[i]*1e6, unit.Meter2)
			total.Add(unit.Mul(unit.New(f, perMonth), area))
		}
		totals[mon] = total
	}
	return totals, nil
}
