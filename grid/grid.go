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

// Package grid holds a regular latitude/longitude grid and the
// calculations that depend on it: finding the cell containing a
// location, cell areas, and time integrals of gridded fluxes.
package grid

import (
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
)

// Cell is one grid cell. Its polygon is in degrees longitude (X) and
// latitude (Y).
type Cell struct {
	geom.Polygon

	// Row and Col are the indices of the cell along the latitude and
	// longitude dimensions.
	Row, Col int

	// Lat and Lon are the coordinates of the cell center.
	Lat, Lon float64
}

// Grid is a regular grid of cells with the given centers.
type Grid struct {
	Lat, Lon   []float64
	DLat, DLon float64

	cells []*Cell // row-major
	index *rtree.Rtree
}

// New creates a grid whose cell centers are at lat and lon and whose
// cells are dLat by dLon degrees.
func New(lat, lon []float64, dLat, dLon float64) (*Grid, error) {
	if len(lat) == 0 || len(lon) == 0 {
		return nil, fmt.Errorf("grid: empty coordinates (%d lat, %d lon)", len(lat), len(lon))
	}
	if dLat <= 0 || dLon <= 0 {
		return nil, fmt.Errorf("grid: cell size must be positive, got %g by %g", dLat, dLon)
	}
	g := &Grid{
		Lat:   append([]float64{}, lat...),
		Lon:   append([]float64{}, lon...),
		DLat:  dLat,
		DLon:  dLon,
		cells: make([]*Cell, 0, len(lat)*len(lon)),
		index: rtree.NewTree(25, 50),
	}
	for j, y := range lat {
		for i, x := range lon {
			c := &Cell{
				Polygon: geom.Polygon{{
					{X: x - dLon/2, Y: y - dLat/2},
					{X: x + dLon/2, Y: y - dLat/2},
					{X: x + dLon/2, Y: y + dLat/2},
					{X: x - dLon/2, Y: y + dLat/2},
					{X: x - dLon/2, Y: y - dLat/2},
				}},
				Row: j,
				Col: i,
				Lat: y,
				Lon: x,
			}
			g.cells = append(g.cells, c)
			g.index.Insert(c)
		}
	}
	return g, nil
}

// Regular creates a grid of ny by nx cells covering the globe, with the
// first cell's south-west corner at (-90, lon0).
func Regular(ny, nx int, lon0 float64) (*Grid, error) {
	if ny <= 0 || nx <= 0 {
		return nil, fmt.Errorf("grid: invalid grid size %d by %d", ny, nx)
	}
	dLat, dLon := 180/float64(ny), 360/float64(nx)
	lat, lon := make([]float64, ny), make([]float64, nx)
	for j := range lat {
		lat[j] = -90 + dLat*(float64(j)+0.5)
	}
	for i := range lon {
		lon[i] = lon0 + dLon*(float64(i)+0.5)
	}
	return New(lat, lon, dLat, dLon)
}

// FromCenters creates a grid from evenly spaced cell center coordinates,
// such as the lat and lon variables of a model output file. A single
// center along a dimension is taken to be one degree wide.
func FromCenters(lat, lon []float64) (*Grid, error) {
	spacing := func(c []float64) float64 {
		if len(c) < 2 {
			return 1
		}
		return math.Abs(c[1] - c[0])
	}
	return New(lat, lon, spacing(lat), spacing(lon))
}

// Shape returns the number of rows and columns in the grid.
func (g *Grid) Shape() (ny, nx int) { return len(g.Lat), len(g.Lon) }

// Cell returns the cell at the given row and column.
func (g *Grid) Cell(row, col int) *Cell { return g.cells[row*len(g.Lon)+col] }

// GetIndex returns the row and column of the cell that contains the given
// location. Longitudes are shifted by whole turns to fall within the grid.
// A point on a shared edge belongs to the cell with the lowest row, then
// column. ok is false if no cell contains the location.
func (g *Grid) GetIndex(lon, lat float64) (row, col int, ok bool) {
	if math.IsNaN(lon) || math.IsInf(lon, 0) || math.IsNaN(lat) {
		return -1, -1, false
	}
	west := g.Lon[0] - g.DLon/2
	east := g.Lon[len(g.Lon)-1] + g.DLon/2
	for lon < west {
		lon += 360
	}
	for lon > east {
		lon -= 360
	}
	p := geom.Point{X: lon, Y: lat}
	var found []*Cell
	for _, gg := range g.index.SearchIntersect(p.Bounds()) {
		c := gg.(*Cell)
		if p.Within(c.Polygon) != geom.Outside {
			found = append(found, c)
		}
	}
	if len(found) == 0 {
		return -1, -1, false
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].Row != found[j].Row {
			return found[i].Row < found[j].Row
		}
		return found[i].Col < found[j].Col
	})
	return found[0].Row, found[0].Col, true
}

// Nearest returns the row and column of the cell containing the given
// location or, if there is none, the cell whose center is nearest to it
// by great-circle distance.
func (g *Grid) Nearest(lon, lat float64) (row, col int) {
	if r, c, ok := g.GetIndex(lon, lat); ok {
		return r, c
	}
	best := math.Inf(1)
	for _, c := range g.cells {
		if d := Distance(lon, lat, c.Lon, c.Lat); d < best {
			best = d
			row, col = c.Row, c.Col
		}
	}
	return row, col
}

// MeshGrid returns the latitude and longitude of every cell center as
// arrays of [row][col].
func (g *Grid) MeshGrid() (lat, lon [][]float64) {
	return MeshGrid(g.Lat, g.Lon)
}

// MeshGrid expands one-dimensional latitude and longitude coordinates
// into two-dimensional arrays of [len(lat)][len(lon)].
func MeshGrid(lat, lon []float64) (latGrid, lonGrid [][]float64) {
	latGrid = make([][]float64, len(lat))
	lonGrid = make([][]float64, len(lat))
	for j, y := range lat {
		latGrid[j] = make([]float64, len(lon))
		lonGrid[j] = make([]float64, len(lon))
		for i, x := range lon {
			latGrid[j][i] = y
			lonGrid[j][i] = x
		}
	}
	return latGrid, lonGrid
}
