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

/*
Package retinotopy maps between positions on a flattened cortical
surface and visual-field coordinates.

A visual-field coordinate is a polar angle theta in degrees (0 at the
upper vertical meridian, 180 at the lower vertical meridian) and an
eccentricity rho (distance from fixation), together with an integer
label naming the visual area (V1, V2, ...) the position falls in.
Label 0 means boundary or unlabeled cortex.

The central type is MeshModel, which is built from a triangulated
flat map of the cortex with per-vertex retinotopy measurements and
answers queries in both directions through piecewise-linear mesh
interpolation. FormulaModel answers the same queries from closed-form
expressions instead of a mesh. Both satisfy Model.
*/
package retinotopy

import (
	"errors"
	"fmt"
	"math"

	"github.com/ctessum/geom"
)

// ErrLengthMismatch indicates that the two input sequences of a
// batch query have different lengths.
var ErrLengthMismatch = errors.New("retinotopy: sequence lengths do not match")

// lengthMismatch wraps ErrLengthMismatch with the offending lengths.
func lengthMismatch(n1, n2 int) error {
	return fmt.Errorf("%w: %d and %d", ErrLengthMismatch, n1, n2)
}

// NoPoint is the "no value" result for angle-to-cortex queries whose
// visual-field position lies outside an area's mesh coverage.
var NoPoint = geom.Point{X: math.NaN(), Y: math.NaN()}

// IsNoPoint reports whether p is a "no value" result.
func IsNoPoint(p geom.Point) bool {
	return math.IsNaN(p.X) || math.IsNaN(p.Y)
}

// AnglePoint is a position in the visual field: polar angle and
// eccentricity plus the label of the visual area it belongs to. The
// zero value is the canonical "no area / no signal" result, returned
// by cortex-to-angle queries for points outside the mapped cortex.
//
// AreaLabel is usually a whole number, but for vertices on area
// boundaries it is the mean of the adjacent areas' labels and may be
// fractional.
type AnglePoint struct {
	PolarAngle   float64
	Eccentricity float64
	AreaLabel    float64
}

// Model is a bidirectional retinotopy mapping. Every implementation
// answers the same two questions: which visual-field position does a
// cortical surface point represent, and where on the cortical
// surface is a given visual-field position represented.
//
// Scalar and batch forms are separate methods; a scalar mixed with a
// batch is expressed by the caller repeating the scalar.
type Model interface {
	// CortexToAngle returns the visual-field position represented
	// at the cortical surface point (x, y). Points outside the
	// mapped region return the zero AnglePoint.
	CortexToAngle(x, y float64) AnglePoint

	// CortexToAngleAll answers CortexToAngle for each (x[i], y[i])
	// pair. It returns ErrLengthMismatch if len(x) != len(y).
	CortexToAngleAll(x, y []float64) ([]AnglePoint, error)

	// AngleToCortex returns the cortical surface point representing
	// the visual-field position (theta, rho) in each visual area,
	// ordered by increasing area label. Areas that do not represent
	// the position return NoPoint.
	AngleToCortex(theta, rho float64) []geom.Point

	// AngleToCortexAll answers AngleToCortex for each
	// (theta[i], rho[i]) pair; result[a][i] is the point for the
	// a'th area and the i'th pair. It returns ErrLengthMismatch if
	// len(theta) != len(rho).
	AngleToCortexAll(theta, rho []float64) ([][]geom.Point, error)
}
