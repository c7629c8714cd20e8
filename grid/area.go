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
	"math"

	"github.com/ctessum/sparse"
)

// EarthRadius is the radius of the spherical Earth used for areas and
// distances [km].
const EarthRadius = 6370.997

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// CellArea returns the area [km²] of a cell centered at latitude lat that
// spans dLat by dLon degrees.
func CellArea(lat, dLat, dLon float64) float64 {
	south := math.Max(lat-dLat/2, -90)
	north := math.Min(lat+dLat/2, 90)
	return EarthRadius * EarthRadius * radians(dLon) *
		math.Abs(math.Sin(radians(north))-math.Sin(radians(south)))
}

// Areas returns the area [km²] of every cell in the grid as an array of
// shape (rows, cols).
func (g *Grid) Areas() *sparse.DenseArray {
	ny, nx := g.Shape()
	a := sparse.ZerosDense(ny, nx)
	for j, lat := range g.Lat {
		area := CellArea(lat, g.DLat, g.DLon)
		for i := 0; i < nx; i++ {
			a.Set(area, j, i)
		}
	}
	return a
}

// Integrate multiplies each cell of field by its area and sums over the
// last two (latitude, longitude) dimensions. The result has the leading
// dimensions of field, or a single element if field is two-dimensional.
// The units are the units of field times km².
func (g *Grid) Integrate(field *sparse.DenseArray) (*sparse.DenseArray, error) {
	ny, nx := g.Shape()
	n := len(field.Shape)
	if n < 2 || field.Shape[n-2] != ny || field.Shape[n-1] != nx {
		return nil, fmt.Errorf("grid: field of shape %v does not match %d by %d grid", field.Shape, ny, nx)
	}
	lead := []int{1}
	if n > 2 {
		lead = append([]int{}, field.Shape[:n-2]...)
	}
	out := sparse.ZerosDense(lead...)
	areas := g.Areas().Elements
	nc := ny * nx
	for k := range out.Elements {
		var sum float64
		for i, v := range field.Elements[k*nc : (k+1)*nc] {
			sum += v * areas[i]
		}
		out.Elements[k] = sum
	}
	return out, nil
}

// Distance returns the great-circle distance [km] between two locations
// given in degrees.
func Distance(lon1, lat1, lon2, lat2 float64) float64 {
	φ1, φ2 := radians(lat1), radians(lat2)
	dφ := φ2 - φ1
	dλ := radians(lon2 - lon1)
	h := math.Sin(dφ/2)*math.Sin(dφ/2) + math.Cos(φ1)*math.Cos(φ2)*math.Sin(dλ/2)*math.Sin(dλ/2)
	return 2 * EarthRadius * math.Asin(math.Min(1, math.Sqrt(h)))
}
