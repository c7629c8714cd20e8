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

// Package cosplot draws the figures of the COS analyses as PNG images.
package cosplot

import (
	"fmt"
	"image/color"
	"io"

	"github.com/cosflux/cosflux"
	"github.com/cosflux/cosflux/noaa"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

const (
	figWidth  = 6 * vg.Inch
	figHeight = 4 * vg.Inch
)

// Series is one line on a time series plot.
type Series struct {
	Label  string
	Values []float64
	Dashed bool
}

// NewSiteSeries creates a Series from the time series of a site,
// dashed if the site is in the southern hemisphere.
func NewSiteSeries(s *noaa.Site, values []float64) Series {
	return Series{Label: s.Code, Values: values, Dashed: s.SouthernHemisphere()}
}

// SiteSeries draws monthly time series, one line per series, and writes
// the figure to w as a PNG image.
func SiteSeries(w io.Writer, title, yLabel string, series []Series) error {
	if len(series) == 0 {
		return fmt.Errorf("cosplot: no series to plot")
	}
	p, err := plot.New()
	if err != nil {
		return err
	}
	p.Title.Text = title
	p.X.Label.Text = "month"
	p.Y.Label.Text = yLabel
	p.Legend.Top = true
	p.Legend.ThumbnailWidth = 0.3 * vg.Inch
	for i, s := range series {
		l, err := plotter.NewLine(monthly(s.Values))
		if err != nil {
			return fmt.Errorf("cosplot: series %s: %v", s.Label, err)
		}
		l.Color = plotutil.Color(i)
		if s.Dashed {
			l.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		}
		p.Add(l)
		p.Legend.Add(s.Label, l)
	}
	c := vgimg.New(figWidth, figHeight)
	p.Draw(draw.New(c))
	_, err = vgimg.PngCanvas{Canvas: c}.WriteTo(w)
	return err
}

// monthly returns the points (1, v[0]), (2, v[1]), ...
func monthly(v []float64) plotter.XYs {
	xy := make(plotter.XYs, len(v))
	for i, y := range v {
		xy[i].X = float64(i + 1)
		xy[i].Y = y
	}
	return xy
}

// BoxModelYear draws the COS concentration and δ34S of one year of a box
// model run in two panels and writes the figure to w as a PNG image. The
// vertical axes span the whole run so that years can be compared.
func BoxModelYear(w io.Writer, r *cosflux.BoxResult, year int) error {
	if year < 0 || year >= len(r.COS) {
		return fmt.Errorf("cosplot: year %d not in %d-year run", year, len(r.COS))
	}
	c := vgimg.New(figWidth, figHeight)
	dc := draw.New(c)
	tiles := draw.Tiles{
		Rows:      2,
		Cols:      1,
		PadTop:    vg.Points(4),
		PadBottom: vg.Points(4),
		PadLeft:   vg.Points(4),
		PadRight:  vg.Points(4),
		PadY:      vg.Points(6),
	}
	panels := []struct {
		label string
		all   [][12]float64
	}{
		{label: "[COS]", all: r.COS},
		{label: "δ34S (‰)", all: r.Delta},
	}
	for i, panel := range panels {
		p, err := plot.New()
		if err != nil {
			return err
		}
		if i == 0 {
			p.Title.Text = fmt.Sprintf("year %d", year+1)
		} else {
			p.X.Label.Text = "month"
		}
		p.Y.Label.Text = panel.label
		p.Y.Min, p.Y.Max = yRange(panel.all)
		l, err := plotter.NewLine(monthly(panel.all[year][:]))
		if err != nil {
			return fmt.Errorf("cosplot: %s: %v", panel.label, err)
		}
		l.Color = color.Black
		p.Add(l)
		p.Draw(tiles.At(dc, 0, i))
	}
	_, err := vgimg.PngCanvas{Canvas: c}.WriteTo(w)
	return err
}

// yRange returns the minimum and maximum of all years.
func yRange(all [][12]float64) (min, max float64) {
	flat := make([]float64, 0, 12*len(all))
	for _, y := range all {
		flat = append(flat, y[:]...)
	}
	min, max = floats.Min(flat), floats.Max(flat)
	if min == max {
		min, max = min-1, max+1
	}
	return min, max
}
