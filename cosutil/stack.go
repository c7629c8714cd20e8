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
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/cosflux/cosflux"
	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
)

// Stack averages the daily files in dir, which are organized as
// dir/YYYY/MM/*.nc, into monthly means of variable varName and writes them
// in date order to outputFile. Months that do not have one file for every
// day are skipped.
func Stack(dir, varName, outputFile string, log logrus.FieldLogger) (*sparse.DenseArray, error) {
	months, err := monthDirs(dir)
	if err != nil {
		return nil, err
	}
	var (
		means  []*sparse.DenseArray
		coords string
	)
	for _, m := range months {
		files, err := filepath.Glob(filepath.Join(m.dir, "*.nc"))
		if err != nil {
			return nil, err
		}
		sort.Strings(files)
		days := time.Date(m.date.Year(), m.date.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
		if len(files) != days {
			log.WithFields(logrus.Fields{"month": m.date.Format("2006-01"), "files": len(files), "days": days}).
				Warn("skipping incomplete month")
			continue
		}
		mean, err := cosflux.MeanNCF(files, varName)
		if err != nil {
			return nil, err
		}
		log.WithFields(logrus.Fields{"month": m.date.Format("2006-01"), "files": len(files)}).Debug("averaged month")
		means = append(means, mean)
		if coords == "" {
			coords = files[0]
		}
	}
	if len(means) == 0 {
		return nil, fmt.Errorf("cosutil: no complete months of %s in %s", varName, dir)
	}
	var i int
	stacked, err := cosflux.StackNCF(func() (*sparse.DenseArray, error) {
		if i == len(means) {
			return nil, io.EOF
		}
		i++
		return means[i-1], nil
	})
	if err != nil {
		return nil, err
	}

	vars := map[string]cosflux.NCFVar{
		varName: {Dims: monthDims(stacked), Description: "monthly mean of " + varName, Data: stacked},
	}
	if lat, lon := readLatLon(coords); lat != nil {
		addLatLon(vars, lat, lon)
	}
	w, err := os.Create(outputFile)
	if err != nil {
		return nil, fmt.Errorf("cosutil: creating stacked output: %v", err)
	}
	if err = cosflux.WriteNCF(w, vars, map[string]interface{}{"months": []int32{int32(len(means))}}); err != nil {
		w.Close()
		return nil, err
	}
	log.WithFields(logrus.Fields{"months": len(means), "file": outputFile}).Info("wrote monthly means")
	return stacked, w.Close()
}

type monthDir struct {
	dir  string
	date time.Time
}

// monthDirs returns the YYYY/MM subdirectories of dir in date order.
func monthDirs(dir string) ([]monthDir, error) {
	years, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cosutil: reading stack directory: %v", err)
	}
	var out []monthDir
	for _, y := range years {
		year, err := strconv.Atoi(y.Name())
		if !y.IsDir() || err != nil {
			continue
		}
		months, err := os.ReadDir(filepath.Join(dir, y.Name()))
		if err != nil {
			return nil, err
		}
		for _, m := range months {
			month, err := strconv.Atoi(m.Name())
			if !m.IsDir() || err != nil || month < 1 || month > 12 {
				continue
			}
			out = append(out, monthDir{
				dir:  filepath.Join(dir, y.Name(), m.Name()),
				date: time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].date.Before(out[j].date) })
	return out, nil
}
