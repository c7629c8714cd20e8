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

// Package cosflux is a forward box model for the sulfur isotope
// composition (δ34S) of atmospheric carbonyl sulfide (COS, also written OCS).
//
// Each grid cell of a (time, level, y, x) domain is treated as an
// independent box holding a light (COS-32) and a heavy (COS-34) pool.
// Ocean and anthropogenic production add to the pools and plant and soil
// uptake remove from them; every process carries its own fractionation
// factor, so the pools drift apart isotopically as the simulation advances.
package cosflux

import "errors"

// Version gives the version number.
const Version = "0.3.0"

var (
	// ErrMissingInput is returned when a required flux field is not supplied.
	ErrMissingInput = errors.New("missing input")

	// ErrShapeMismatch is returned when the flux fields given to a model
	// do not share the same shape.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrInvalidRange is returned when a simulation is asked to run over a
	// time range that is empty backwards or extends past the time axis.
	ErrInvalidRange = errors.New("invalid time range")
)
