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

// Package hash creates short keys that identify model scenarios, so that
// results from runs with the same inputs and parameters can be found.
package hash

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"

	"github.com/davecgh/go-spew/spew"
)

var printer = spew.ConfigState{
	Indent:                  " ",
	SortKeys:                true,
	DisableMethods:          true,
	SpewKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// Key returns a hexadecimal key for v. Values with the same contents have
// the same key, including maps and values holding NaN.
func Key(v interface{}) string {
	h := fnv.New64a()
	printer.Fprintf(h, "%#v", v)
	return fmt.Sprintf("%016x", h.Sum64())
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// Scenario returns a key for scenario parameters v that begins with a
// cleaned-up version of name, such as "base_run-3f2a9c1d".
func Scenario(name string, v interface{}) string {
	name = strings.Trim(unsafeChars.ReplaceAllString(name, "_"), "_")
	if name == "" {
		name = "scenario"
	}
	return name + "-" + Key(v)[:8]
}
