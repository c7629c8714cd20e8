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
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cosflux/cosflux"
	"github.com/cosflux/cosflux/cosplot"
	"github.com/sirupsen/logrus"
)

// Box runs the seasonal box model and writes the end-of-month COS and δ34S
// to box.csv in outputDir, along with a figure of each year named
// box_year_NN.png.
func Box(cfg cosflux.BoxConfig, outputDir string, log logrus.FieldLogger) (*cosflux.BoxResult, error) {
	r, err := cosflux.RunBox(cfg)
	if err != nil {
		return nil, err
	}
	if err = writeBoxCSV(filepath.Join(outputDir, "box.csv"), r); err != nil {
		return nil, err
	}
	for y := range r.COS {
		fileName := filepath.Join(outputDir, fmt.Sprintf("box_year_%02d.png", y+1))
		if err = plotFile(fileName, func(f *os.File) error { return cosplot.BoxModelYear(f, r, y) }); err != nil {
			return nil, err
		}
	}
	last := len(r.Delta) - 1
	log.WithFields(logrus.Fields{
		"years":      cfg.Years,
		"final_cos":  r.COS[last][11],
		"final_d34s": r.Delta[last][11],
		"output_dir": outputDir,
	}).Info("box model finished")
	return r, nil
}

func writeBoxCSV(fileName string, r *cosflux.BoxResult) error {
	f, err := os.Create(fileName)
	if err != nil {
		return fmt.Errorf("cosutil: creating box model output: %v", err)
	}
	w := csv.NewWriter(f)
	w.Write([]string{"year", "month", "cos", "d34s"})
	for y := range r.COS {
		for m := 0; m < 12; m++ {
			w.Write([]string{
				strconv.Itoa(y + 1),
				strconv.Itoa(m + 1),
				strconv.FormatFloat(r.COS[y][m], 'g', -1, 64),
				strconv.FormatFloat(r.Delta[y][m], 'g', -1, 64),
			})
		}
	}
	w.Flush()
	if err = w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("cosutil: writing box model output: %v", err)
	}
	return f.Close()
}

// plotFile creates fileName and draws into it with draw.
func plotFile(fileName string, draw func(*os.File) error) error {
	f, err := os.Create(fileName)
	if err != nil {
		return fmt.Errorf("cosutil: creating figure: %v", err)
	}
	if err = draw(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
