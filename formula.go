/*
Copyright © 2019 the retinotopy authors.
This file is part of retinotopy.

retinotopy is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

retinotopy is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with retinotopy.  If not, see <http://www.gnu.org/licenses/>.
*/

package retinotopy

import (
	"fmt"
	"math"
	"sort"

	"github.com/Knetic/govaluate"
	"github.com/ctessum/geom"
)

// FormulaSpec describes a closed-form retinotopy model as five
// expressions. X and Y give the cortical position of a visual-field
// position and may refer to theta, rho, and area; PolarAngle,
// Eccentricity, and AreaLabel give the visual-field position of a
// cortical point and may refer to x and y. All expressions may refer
// to the entries of Parameters and to the built-in math functions
// (sin, cos, tan, asin, acos, atan, atan2, sqrt, exp, log, pow, abs,
// min, max, deg2rad, rad2deg; angles in radians).
type FormulaSpec struct {
	// Areas lists the visual area labels the model maps. Labels
	// must be non-zero and distinct.
	Areas []int

	X, Y string

	PolarAngle   string
	Eccentricity string
	AreaLabel    string

	Parameters map[string]float64
}

// FormulaModel is a retinotopy mapping computed from closed-form
// expressions instead of a mesh. Unlike MeshModel it is defined
// everywhere its expressions are, so it performs no eccentricity
// fallback and no affine transform.
//
// A FormulaModel never changes after construction and may be queried
// concurrently. Expression evaluation failures surface as errors
// from the batch methods; the scalar methods report them as the
// "no signal" results.
type FormulaModel struct {
	areas  []int
	params map[string]interface{}

	x, y  *govaluate.EvaluableExpression
	angle *govaluate.EvaluableExpression
	eccen *govaluate.EvaluableExpression
	label *govaluate.EvaluableExpression
}

var _ Model = &FormulaModel{}

// NewFormulaModel compiles spec's expressions. Construction fails on
// an empty, zero, or repeated area list, on an expression that does
// not parse, and on an expression that does not produce a number.
func NewFormulaModel(spec FormulaSpec) (*FormulaModel, error) {
	if len(spec.Areas) == 0 {
		return nil, fmt.Errorf("retinotopy: formula model needs at least one area")
	}
	areas := make([]int, len(spec.Areas))
	copy(areas, spec.Areas)
	sort.Ints(areas)
	for i, a := range areas {
		if a == 0 {
			return nil, fmt.Errorf("retinotopy: area label 0 is reserved for boundaries")
		}
		if i > 0 && areas[i-1] == a {
			return nil, fmt.Errorf("retinotopy: repeated area label %d", a)
		}
	}

	m := &FormulaModel{
		areas:  areas,
		params: make(map[string]interface{}, len(spec.Parameters)),
	}
	for name, v := range spec.Parameters {
		m.params[name] = v
	}

	funcs := formulaFunctions()
	var err error
	compile := func(name, expr string) *govaluate.EvaluableExpression {
		if err != nil {
			return nil
		}
		if expr == "" {
			err = fmt.Errorf("retinotopy: missing %s expression", name)
			return nil
		}
		e, cerr := govaluate.NewEvaluableExpressionWithFunctions(expr, funcs)
		if cerr != nil {
			err = fmt.Errorf("retinotopy: %s expression: %w", name, cerr)
		}
		return e
	}
	m.x = compile("x", spec.X)
	m.y = compile("y", spec.Y)
	m.angle = compile("polar angle", spec.PolarAngle)
	m.eccen = compile("eccentricity", spec.Eccentricity)
	m.label = compile("area label", spec.AreaLabel)
	if err != nil {
		return nil, err
	}

	// Probe every expression once in its query-time scope so that
	// type mistakes and misspelled identifiers fail here rather
	// than on first query.
	fieldVars := m.vars()
	fieldVars["theta"], fieldVars["rho"], fieldVars["area"] = 1.0, 1.0, float64(areas[0])
	cortexVars := m.vars()
	cortexVars["x"], cortexVars["y"] = 0.0, 0.0
	for _, probe := range []struct {
		name string
		expr *govaluate.EvaluableExpression
		vars map[string]interface{}
	}{
		{"x", m.x, fieldVars}, {"y", m.y, fieldVars},
		{"polar angle", m.angle, cortexVars},
		{"eccentricity", m.eccen, cortexVars},
		{"area label", m.label, cortexVars},
	} {
		if _, err := evalFloat(probe.expr, probe.vars); err != nil {
			return nil, fmt.Errorf("retinotopy: %s expression: %w", probe.name, err)
		}
	}
	return m, nil
}

// Areas returns the visual area labels the model maps, in increasing
// order.
func (m *FormulaModel) Areas() []int {
	a := make([]int, len(m.areas))
	copy(a, m.areas)
	return a
}

// vars returns a fresh evaluation scope seeded with the model
// parameters.
func (m *FormulaModel) vars() map[string]interface{} {
	vars := make(map[string]interface{}, len(m.params)+3)
	for name, v := range m.params {
		vars[name] = v
	}
	return vars
}

func evalFloat(expr *govaluate.EvaluableExpression, vars map[string]interface{}) (float64, error) {
	res, err := expr.Evaluate(vars)
	if err != nil {
		return 0, err
	}
	v, ok := res.(float64)
	if !ok {
		return 0, fmt.Errorf("result %v is not a number", res)
	}
	return v, nil
}

// CortexToAngle returns the visual-field position the expressions
// give for the cortical point (x, y), or the zero AnglePoint if
// evaluation fails.
func (m *FormulaModel) CortexToAngle(x, y float64) AnglePoint {
	out, err := m.CortexToAngleAll([]float64{x}, []float64{y})
	if err != nil {
		return AnglePoint{}
	}
	return out[0]
}

// CortexToAngleAll answers CortexToAngle for each (x[i], y[i]) pair.
// It returns ErrLengthMismatch if len(x) != len(y), and surfaces
// expression evaluation failures.
func (m *FormulaModel) CortexToAngleAll(x, y []float64) ([]AnglePoint, error) {
	if len(x) != len(y) {
		return nil, lengthMismatch(len(x), len(y))
	}
	out := make([]AnglePoint, len(x))
	vars := m.vars()
	for i := range x {
		vars["x"], vars["y"] = x[i], y[i]
		ang, err := evalFloat(m.angle, vars)
		if err != nil {
			return nil, fmt.Errorf("retinotopy: polar angle expression: %w", err)
		}
		ecc, err := evalFloat(m.eccen, vars)
		if err != nil {
			return nil, fmt.Errorf("retinotopy: eccentricity expression: %w", err)
		}
		lbl, err := evalFloat(m.label, vars)
		if err != nil {
			return nil, fmt.Errorf("retinotopy: area label expression: %w", err)
		}
		out[i] = AnglePoint{PolarAngle: ang, Eccentricity: ecc, AreaLabel: lbl}
	}
	return out, nil
}

// AngleToCortex returns the cortical point the expressions give for
// the visual-field position (theta, rho) in each area, ordered by
// increasing area label. If evaluation fails every area reports
// NoPoint.
func (m *FormulaModel) AngleToCortex(theta, rho float64) []geom.Point {
	all, err := m.AngleToCortexAll([]float64{theta}, []float64{rho})
	if err != nil {
		out := make([]geom.Point, len(m.areas))
		for i := range out {
			out[i] = NoPoint
		}
		return out
	}
	out := make([]geom.Point, len(all))
	for ai, row := range all {
		out[ai] = row[0]
	}
	return out
}

// AngleToCortexAll answers AngleToCortex for each (theta[i], rho[i])
// pair; result[a][i] is the point for the a'th area and the i'th
// pair. It returns ErrLengthMismatch if len(theta) != len(rho), and
// surfaces expression evaluation failures.
func (m *FormulaModel) AngleToCortexAll(theta, rho []float64) ([][]geom.Point, error) {
	if len(theta) != len(rho) {
		return nil, lengthMismatch(len(theta), len(rho))
	}
	out := make([][]geom.Point, len(m.areas))
	vars := m.vars()
	for ai, area := range m.areas {
		row := make([]geom.Point, len(theta))
		vars["area"] = float64(area)
		for i := range theta {
			vars["theta"], vars["rho"] = theta[i], rho[i]
			px, err := evalFloat(m.x, vars)
			if err != nil {
				return nil, fmt.Errorf("retinotopy: x expression: %w", err)
			}
			py, err := evalFloat(m.y, vars)
			if err != nil {
				return nil, fmt.Errorf("retinotopy: y expression: %w", err)
			}
			row[i] = geom.Point{X: px, Y: py}
		}
		out[ai] = row
	}
	return out, nil
}

// formulaFunctions is the function table FormulaSpec expressions are
// compiled against.
func formulaFunctions() map[string]govaluate.ExpressionFunction {
	unary := func(name string, f func(float64) float64) govaluate.ExpressionFunction {
		return func(args ...interface{}) (interface{}, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("%s takes 1 argument, got %d", name, len(args))
			}
			x, ok := args[0].(float64)
			if !ok {
				return nil, fmt.Errorf("%s: argument %v is not a number", name, args[0])
			}
			return f(x), nil
		}
	}
	binary := func(name string, f func(a, b float64) float64) govaluate.ExpressionFunction {
		return func(args ...interface{}) (interface{}, error) {
			if len(args) != 2 {
				return nil, fmt.Errorf("%s takes 2 arguments, got %d", name, len(args))
			}
			a, aok := args[0].(float64)
			b, bok := args[1].(float64)
			if !aok || !bok {
				return nil, fmt.Errorf("%s: arguments are not numbers", name)
			}
			return f(a, b), nil
		}
	}
	return map[string]govaluate.ExpressionFunction{
		"sin":     unary("sin", math.Sin),
		"cos":     unary("cos", math.Cos),
		"tan":     unary("tan", math.Tan),
		"asin":    unary("asin", math.Asin),
		"acos":    unary("acos", math.Acos),
		"atan":    unary("atan", math.Atan),
		"atan2":   binary("atan2", math.Atan2),
		"sqrt":    unary("sqrt", math.Sqrt),
		"exp":     unary("exp", math.Exp),
		"log":     unary("log", math.Log),
		"pow":     binary("pow", math.Pow),
		"abs":     unary("abs", math.Abs),
		"min":     binary("min", math.Min),
		"max":     binary("max", math.Max),
		"deg2rad": unary("deg2rad", func(d float64) float64 { return d * math.Pi / 180 }),
		"rad2deg": unary("rad2deg", func(r float64) float64 { return r * 180 / math.Pi }),
	}
}
