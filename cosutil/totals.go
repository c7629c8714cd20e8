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

	"github.com/cosflux/cosflux"
	"github.com/cosflux/cosflux/grid"
	"github.com/sirupsen/logrus"
)

// Totals reads a monthly mean flux [amount m⁻² s⁻¹] for the given year
// from variable varName of fileName and returns its global annual total
// [amount]. The file must have lat and lon coordinate variables.
func Totals(fileName, varName string, year int, log logrus.FieldLogger) (float64, error) {
	flux, err := cosflux.ReadNCFFile(fileName, varName)
	if err != nil {
		return 0, err
	}
	lat, lon := readLatLon(fileName)
	if lat == nil {
		return 0, fmt.Errorf("cosutil: %s has no lat and lon variables", fileName)
	}
	g, err := grid.FromCenters(lat, lon)
	if err != nil {
		return 0, err
	}
	annual, err := grid.AnnualTotal(flux, year)
	if err != nil {
		return 0, err
	}
	total, err := g.Integrate(annual)
	if err != nil {
		return 0, err
	}
	// Areas are in km².
	t := total.Sum() * 1e6
	log.WithFields(logrus.Fields{"file": fileName, "variable": varName, "year": year, "total": t}).Info("global annual total")
	return t, nil
}
