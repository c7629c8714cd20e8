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

package grid

import (
	"fmt"
	"time"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const secondsPerDay = 24 * 60 * 60

// SecondsPerMonth returns the number of seconds in each month of year.
func SecondsPerMonth(year int) [12]float64 {
	var s [12]float64
	for m := range s {
		first := time.Date(year, time.Month(m+1), 1, 0, 0, 0, 0, time.UTC)
		s[m] = float64(first.AddDate(0, 1, -1).Day() * secondsPerDay)
	}
	return s
}

// AnnualTotal converts monthly mean fluxes [amount s⁻¹] for the given year
// into annual totals [amount]. The first dimension of monthly must have
// length 12; the result has the remaining dimensions.
func AnnualTotal(monthly *sparse.DenseArray, year int) (*sparse.DenseArray, error) {
	if len(monthly.Shape) < 2 || monthly.Shape[0] != 12 {
		return nil, fmt.Errorf("grid: monthly field has shape %v; need 12 months first", monthly.Shape)
	}
	out := sparse.ZerosDense(append([]int{}, monthly.Shape[1:]...)...)
	secs := SecondsPerMonth(year)
	nc := len(out.Elements)
	for m, s := range secs {
		for i, v := range monthly.Elements[m*nc : (m+1)*nc] {
			out.Elements[i] += s * v
		}
	}
	return out, nil
}

// Anomaly returns field minus the mean of all its elements.
func Anomaly(field *sparse.DenseArray) *sparse.DenseArray {
	out := field.Copy()
	floats.AddConst(-stat.Mean(field.Elements, nil), out.Elements)
	return out
}

// TimeAnomaly returns field minus, at each index of the first (time)
// dimension, the mean over the remaining dimensions.
func TimeAnomaly(field *sparse.DenseArray) *sparse.DenseArray {
	out := field.Copy()
	if len(field.Shape) == 0 || field.Shape[0] == 0 {
		return out
	}
	nc := len(field.Elements) / field.Shape[0]
	for t := 0; t < field.Shape[0]; t++ {
		slice := out.Elements[t*nc : (t+1)*nc]
		floats.AddConst(-stat.Mean(slice, nil), slice)
	}
	return out
}
