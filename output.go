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
	"math"
	"sort"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/ctessum/sparse"
)

// Outputter calculates derived output variables from model variables.
//
// outputVariables maps the names of the variables to be calculated to
// expressions that define them. Expressions can use the model variables
// (see ForwardModel.Variables), other output variables, and functions.
// They are evaluated separately for every element of the domain.
type Outputter struct {
	outputVariables map[string]string
	expressions     map[string]*govaluate.EvaluableExpression
	outputFunctions map[string]govaluate.ExpressionFunction
}

// NewOutputter initializes a new Outputter and adds a set of default
// functions to any given in outputFunctions:
//
// 'exp(x)', 'log(x)' and 'abs(x)' apply the corresponding math functions.
//
// 'delta(r)' converts an abundance ratio to δ34S [‰] using refRatio.
//
// 'ratio(d)' converts δ34S [‰] to an abundance ratio using refRatio.
func NewOutputter(outputVariables map[string]string, refRatio float64, outputFunctions map[string]govaluate.ExpressionFunction) (*Outputter, error) {
	oneArg := func(name string, f func(float64) float64) govaluate.ExpressionFunction {
		return func(args ...interface{}) (interface{}, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("cosflux: got %d arguments for function '%s', but needs 1", len(args), name)
			}
			v, ok := args[0].(float64)
			if !ok {
				return nil, fmt.Errorf("cosflux: argument to '%s' is %T, not a number", name, args[0])
			}
			return f(v), nil
		}
	}
	funcs := map[string]govaluate.ExpressionFunction{
		"exp":   oneArg("exp", math.Exp),
		"log":   oneArg("log", math.Log),
		"abs":   oneArg("abs", math.Abs),
		"delta": oneArg("delta", func(r float64) float64 { return RatioToDelta(r, refRatio) }),
		"ratio": oneArg("ratio", func(d float64) float64 { return DeltaToRatio(d, refRatio) }),
	}
	for k, f := range outputFunctions {
		funcs[k] = f
	}

	o := &Outputter{
		outputVariables: make(map[string]string),
		expressions:     make(map[string]*govaluate.EvaluableExpression),
		outputFunctions: funcs,
	}
	for name, expr := range outputVariables {
		expr = strings.Replace(expr, "\r\n", " ", -1)
		expr = strings.Replace(expr, "\n", " ", -1)
		e, err := govaluate.NewEvaluableExpressionWithFunctions(expr, funcs)
		if err != nil {
			return nil, fmt.Errorf("cosflux: output variable %s: %v", name, err)
		}
		o.outputVariables[name] = expr
		o.expressions[name] = e
	}
	return o, nil
}

// Names returns the sorted names of the output variables.
func (o *Outputter) Names() []string {
	names := make([]string, 0, len(o.outputVariables))
	for n := range o.outputVariables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Evaluate calculates every output variable from the given model
// variables. Model variables used together in one expression must have
// the same shape.
func (o *Outputter) Evaluate(vars map[string]*sparse.DenseArray) (map[string]*sparse.DenseArray, error) {
	results := make(map[string]*sparse.DenseArray)
	inProgress := make(map[string]bool)
	for _, name := range o.Names() {
		if _, err := o.evaluate(name, vars, results, inProgress); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// evaluate calculates output variable name, first calculating any output
// variables it depends on.
func (o *Outputter) evaluate(name string, vars, results map[string]*sparse.DenseArray, inProgress map[string]bool) (*sparse.DenseArray, error) {
	if r, ok := results[name]; ok {
		return r, nil
	}
	if inProgress[name] {
		return nil, fmt.Errorf("cosflux: output variable %s is defined in terms of itself", name)
	}
	inProgress[name] = true
	defer delete(inProgress, name)

	e := o.expressions[name]
	inputs := make(map[string]*sparse.DenseArray)
	var shape []int
	for _, v := range removeDuplicates(e.Vars()) {
		var data *sparse.DenseArray
		if d, ok := vars[v]; ok {
			data = d
		} else if _, ok := o.expressions[v]; ok {
			var err error
			if data, err = o.evaluate(v, vars, results, inProgress); err != nil {
				return nil, err
			}
		} else {
			return nil, fmt.Errorf("cosflux: output variable %s uses undefined variable '%s'", name, v)
		}
		if shape == nil {
			shape = data.Shape
		} else if !sameShape(shape, data.Shape) {
			return nil, fmt.Errorf("cosflux: output variable %s combines variables of shape %v and %v: %w",
				name, shape, data.Shape, ErrShapeMismatch)
		}
		inputs[v] = data
	}
	if shape == nil {
		return nil, fmt.Errorf("cosflux: output variable %s does not use any model variables", name)
	}

	out := sparse.ZerosDense(copyShape(shape)...)
	params := make(map[string]interface{}, len(inputs))
	for i := range out.Elements {
		for v, data := range inputs {
			params[v] = data.Elements[i]
		}
		r, err := e.Evaluate(params)
		if err != nil {
			return nil, fmt.Errorf("cosflux: evaluating output variable %s: %v", name, err)
		}
		f, ok := r.(float64)
		if !ok {
			return nil, fmt.Errorf("cosflux: output variable %s evaluates to %T, not a number", name, r)
		}
		out.Elements[i] = f
	}
	results[name] = out
	return out, nil
}

// removeDuplicates returns the unique strings in s, in order of first
// appearance.
func removeDuplicates(s []string) []string {
	result := make([]string, 0, len(s))
	seen := make(map[string]bool)
	for _, val := range s {
		if !seen[val] {
			result = append(result, val)
			seen[val] = true
		}
	}
	return result
}
