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

package cosflux

import (
	"fmt"

	"github.com/ctessum/sparse"
)

// Scalar returns a one-element array holding v, which can be
// broadcast to any shape.
func Scalar(v float64) *sparse.DenseArray {
	o := sparse.ZerosDense(1)
	o.Elements[0] = v
	return o
}

// Broadcast expands a to the given shape. Shapes are aligned on their
// trailing dimensions, and each dimension of a must either equal the
// corresponding dimension of shape or be 1. A scalar, a (y, x) map,
// a (level, y, x) field, or a full (time, level, y, x) field can therefore
// all be expanded to a (time, level, y, x) domain. The result never shares
// memory with a.
func Broadcast(a *sparse.DenseArray, shape []int) (*sparse.DenseArray, error) {
	if len(a.Shape) > len(shape) {
		return nil, fmt.Errorf("cosflux: broadcasting shape %v to %v: %w",
			a.Shape, shape, ErrShapeMismatch)
	}
	offset := len(shape) - len(a.Shape)
	srcStrides := strides(a.Shape)
	// Stride into a for each dimension of shape; 0 where a is being stretched.
	step := make([]int, len(shape))
	for i, n := range a.Shape {
		switch {
		case n == shape[offset+i]:
			step[offset+i] = srcStrides[i]
		case n == 1:
		default:
			return nil, fmt.Errorf("cosflux: broadcasting shape %v to %v: %w",
				a.Shape, shape, ErrShapeMismatch)
		}
	}
	o := sparse.ZerosDense(copyShape(shape)...)
	idx := make([]int, len(shape))
	for i := range o.Elements {
		src := 0
		for d, j := range idx {
			src += j * step[d]
		}
		o.Elements[i] = a.Elements[src]
		// Advance the multi-dimensional index, last dimension fastest.
		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < shape[d] {
				break
			}
			idx[d] = 0
		}
	}
	return o, nil
}

func strides(shape []int) []int {
	s := make([]int, len(shape))
	n := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = n
		n *= shape[i]
	}
	return s
}

func copyShape(s []int) []int {
	o := make([]int, len(s))
	copy(o, s)
	return o
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i, v := range a {
		if v != b[i] {
			return false
		}
	}
	return true
}

func shapeError(name string, got, want []int) error {
	return fmt.Errorf("cosflux: %s has shape %v but the domain shape is %v: %w",
		name, got, want, ErrShapeMismatch)
}
