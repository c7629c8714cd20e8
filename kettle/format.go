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

// Package kettle reads the carbonyl sulfide flux inventories of
// Kettle et al. (2002): the gridded monthly ocean flux file, which is
// stored as Fortran formatted records, and the CSV plant flux table.
package kettle

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// editKind is the type of a Fortran edit descriptor.
type editKind int

const (
	skip    editKind = iota // nX
	integer                 // Iw
	fixed                   // Fw.d
	expo                    // Ew.d, Dw.d
)

type edit struct {
	kind     editKind
	width    int
	decimals int
}

// Format is a parsed Fortran format specification such as
// "(2f8.2,i3,12e10.3)". It supports the X, I, F, E and D edit descriptors
// with repeat counts and parenthesized groups.
type Format struct {
	edits []edit
}

// ParseFormat parses a Fortran format specification. The enclosing
// parentheses are optional.
func ParseFormat(s string) (*Format, error) {
	s = strings.ToUpper(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s))
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = s[1 : len(s)-1]
	}
	edits, err := parseItems(s)
	if err != nil {
		return nil, fmt.Errorf("kettle: format %q: %v", s, err)
	}
	if len(edits) == 0 {
		return nil, fmt.Errorf("kettle: empty format %q", s)
	}
	return &Format{edits: edits}, nil
}

// parseItems parses a comma-separated list of edit descriptors and groups.
func parseItems(s string) ([]edit, error) {
	var edits []edit
	for _, item := range splitTopLevel(s) {
		if item == "" {
			continue
		}
		n, rest := leadingInt(item)
		repeat := 1
		if n > 0 {
			repeat = n
		}
		var e []edit
		switch {
		case strings.HasPrefix(rest, "("):
			if !strings.HasSuffix(rest, ")") {
				return nil, fmt.Errorf("unbalanced parentheses in %q", item)
			}
			var err error
			if e, err = parseItems(rest[1 : len(rest)-1]); err != nil {
				return nil, err
			}
		case rest == "X":
			e = []edit{{kind: skip, width: repeat}}
			repeat = 1
		default:
			d, err := parseDescriptor(rest)
			if err != nil {
				return nil, err
			}
			e = []edit{d}
		}
		for i := 0; i < repeat; i++ {
			edits = append(edits, e...)
		}
	}
	return edits, nil
}

// splitTopLevel splits s on commas that are not inside parentheses.
func splitTopLevel(s string) []string {
	var (
		parts []string
		depth int
		start int
	)
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// leadingInt returns the integer at the start of s, or 0 if there is none,
// and the rest of s.
func leadingInt(s string) (int, string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, s
	}
	n, _ := strconv.Atoi(s[:i])
	return n, s[i:]
}

func parseDescriptor(s string) (edit, error) {
	if s == "" {
		return edit{}, fmt.Errorf("missing edit descriptor")
	}
	var kind editKind
	switch s[0] {
	case 'I':
		kind = integer
	case 'F':
		kind = fixed
	case 'E', 'D':
		kind = expo
	default:
		return edit{}, fmt.Errorf("unsupported edit descriptor %q", s)
	}
	spec := s[1:]
	var (
		w, d int
		err  error
	)
	if i := strings.Index(spec, "."); i >= 0 {
		if w, err = strconv.Atoi(spec[:i]); err != nil {
			return edit{}, fmt.Errorf("invalid width in %q", s)
		}
		if d, err = strconv.Atoi(spec[i+1:]); err != nil {
			return edit{}, fmt.Errorf("invalid decimals in %q", s)
		}
	} else if w, err = strconv.Atoi(spec); err != nil {
		return edit{}, fmt.Errorf("invalid width in %q", s)
	}
	if w <= 0 {
		return edit{}, fmt.Errorf("zero width in %q", s)
	}
	if kind != integer && !strings.Contains(spec, ".") {
		return edit{}, fmt.Errorf("missing decimals in %q", s)
	}
	return edit{kind: kind, width: w, decimals: d}, nil
}

// NumValues returns the number of values in one record.
func (f *Format) NumValues() int {
	var n int
	for _, e := range f.edits {
		if e.kind != skip {
			n++
		}
	}
	return n
}

// Width returns the number of characters in one record.
func (f *Format) Width() int {
	var n int
	for _, e := range f.edits {
		n += e.width
	}
	return n
}

// Read reads one record from line. A line shorter than the record is
// treated as if padded with blanks, and blank fields read as zero.
func (f *Format) Read(line string) ([]float64, error) {
	line = strings.TrimRight(line, "\r\n")
	vals := make([]float64, 0, f.NumValues())
	pos := 0
	for _, e := range f.edits {
		field := ""
		if pos < len(line) {
			field = line[pos:min(pos+e.width, len(line))]
		}
		pos += e.width
		if e.kind == skip {
			continue
		}
		v, err := e.read(field)
		if err != nil {
			return nil, fmt.Errorf("kettle: characters %d-%d: %v", pos-e.width+1, pos, err)
		}
		vals = append(vals, v)
	}
	return vals, nil
}

func (e edit) read(field string) (float64, error) {
	s := strings.TrimSpace(field)
	if s == "" {
		return 0, nil
	}
	if e.kind == integer {
		i, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("invalid integer %q", s)
		}
		return float64(i), nil
	}
	s = strings.Replace(strings.ToUpper(s), "D", "E", 1)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	// Without a decimal point the last d digits of the mantissa are the
	// fraction.
	if !strings.Contains(s, ".") {
		v /= math.Pow(10, float64(e.decimals))
	}
	return v, nil
}
