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

import "github.com/ctessum/sparse"

// DeltaToRatio converts an isotope delta value [‰] to an abundance
// ratio relative to the reference ratio ref.
func DeltaToRatio(delta, ref float64) float64 {
	return ref * (delta/1000 + 1)
}

// RatioToDelta converts an abundance ratio to a delta value [‰]
// relative to the reference ratio ref.
func RatioToDelta(ratio, ref float64) float64 {
	return (ratio/ref - 1) * 1000
}

// FractionateHeavyFlux returns the heavy isotopologue flux that accompanies
// lightFlux for a process with fractionation factor eps [‰] acting on a
// pool with heavy/light ratio ratio.
func FractionateHeavyFlux(lightFlux, eps, ratio float64) float64 {
	return lightFlux * (1 + eps/1000) * ratio
}

// DeltaToRatioArray applies DeltaToRatio to every element of delta.
func DeltaToRatioArray(delta *sparse.DenseArray, ref float64) *sparse.DenseArray {
	o := sparse.ZerosDense(copyShape(delta.Shape)...)
	for i, d := range delta.Elements {
		o.Elements[i] = DeltaToRatio(d, ref)
	}
	return o
}

// RatioToDeltaArray applies RatioToDelta to every element of ratio.
func RatioToDeltaArray(ratio *sparse.DenseArray, ref float64) *sparse.DenseArray {
	o := sparse.ZerosDense(copyShape(ratio.Shape)...)
	for i, r := range ratio.Elements {
		o.Elements[i] = RatioToDelta(r, ref)
	}
	return o
}

// FractionateHeavyFluxArray applies FractionateHeavyFlux elementwise.
// lightFlux and ratio must have the same shape.
func FractionateHeavyFluxArray(lightFlux *sparse.DenseArray, eps float64, ratio *sparse.DenseArray) (*sparse.DenseArray, error) {
	if !sameShape(lightFlux.Shape, ratio.Shape) {
		return nil, shapeError("ratio", ratio.Shape, lightFlux.Shape)
	}
	o := sparse.ZerosDense(copyShape(lightFlux.Shape)...)
	for i, f := range lightFlux.Elements {
		o.Elements[i] = FractionateHeavyFlux(f, eps, ratio.Elements[i])
	}
	return o, nil
}
