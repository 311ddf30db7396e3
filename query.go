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
	"math"

	"github.com/ctessum/geom"
)

// modelSmoothing is the number of data-smoothing passes applied in
// every mesh interpolation the model performs.
const modelSmoothing = 1

// Eccentricities this close to the simulated visual-field edge often
// fall just outside mesh coverage, so angle-to-cortex queries with a
// requested rho in (fallbackLow, fallbackHigh] that miss are retried
// at rho reduced by fallbackStep until they hit or pass fallbackLow.
const (
	fallbackLow  = 86.0
	fallbackHigh = 90.0
	fallbackStep = 0.5
)

// CortexToAngle returns the visual-field position represented at the
// cortical surface point (x, y), or the zero AnglePoint if the point
// is outside the mapped region.
func (m *MeshModel) CortexToAngle(x, y float64) AnglePoint {
	out, err := m.CortexToAngleAll([]float64{x}, []float64{y})
	if err != nil {
		// Equal-length inputs cannot mismatch.
		panic(err)
	}
	return out[0]
}

// CortexToAngleAll answers CortexToAngle for each (x[i], y[i]) pair.
// It returns ErrLengthMismatch if len(x) != len(y).
func (m *MeshModel) CortexToAngleAll(x, y []float64) ([]AnglePoint, error) {
	if len(x) != len(y) {
		return nil, lengthMismatch(len(x), len(y))
	}
	pts := make([]geom.Point, len(x))
	for i := range x {
		p := geom.Point{X: x[i], Y: y[i]}
		if m.ixfm != nil {
			p = applyAffine(m.ixfm, p)
		}
		pts[i] = p
	}
	ang, err := m.forward.Interpolate(pts, m.angles, modelSmoothing)
	if err != nil {
		return nil, err
	}
	ecc, err := m.forward.Interpolate(pts, m.eccens, modelSmoothing)
	if err != nil {
		return nil, err
	}
	lbl, err := m.forward.Interpolate(pts, m.labels, modelSmoothing)
	if err != nil {
		return nil, err
	}
	out := make([]AnglePoint, len(pts))
	for i := range out {
		if math.IsNaN(lbl[i]) {
			continue // outside the mesh; zero value stands
		}
		out[i] = AnglePoint{
			PolarAngle:   ang[i],
			Eccentricity: ecc[i],
			AreaLabel:    lbl[i],
		}
	}
	return out, nil
}

// AngleToCortex returns the cortical surface point representing the
// visual-field position (theta, rho) in each visual area, ordered by
// increasing area label. Areas not representing the position return
// NoPoint.
func (m *MeshModel) AngleToCortex(theta, rho float64) []geom.Point {
	all, err := m.AngleToCortexAll([]float64{theta}, []float64{rho})
	if err != nil {
		// Equal-length inputs cannot mismatch.
		panic(err)
	}
	out := make([]geom.Point, len(all))
	for ai, row := range all {
		out[ai] = row[0]
	}
	return out
}

// AngleToCortexAll answers AngleToCortex for each (theta[i], rho[i])
// pair; result[a][i] is the point for the a'th area and the i'th
// pair. It returns ErrLengthMismatch if len(theta) != len(rho).
func (m *MeshModel) AngleToCortexAll(theta, rho []float64) ([][]geom.Point, error) {
	if len(theta) != len(rho) {
		return nil, lengthMismatch(len(theta), len(rho))
	}
	pts := make([]geom.Point, len(theta))
	for i := range theta {
		pts[i] = encodeVisualField(theta[i], rho[i])
	}
	out := make([][]geom.Point, len(m.inverse))
	for ai, im := range m.inverse {
		xs, err := im.Interpolate(pts, m.xs, modelSmoothing)
		if err != nil {
			return nil, err
		}
		ys, err := im.Interpolate(pts, m.ys, modelSmoothing)
		if err != nil {
			return nil, err
		}
		row := make([]geom.Point, len(pts))
		for i := range row {
			p := geom.Point{X: xs[i], Y: ys[i]}
			if IsNoPoint(p) {
				p = m.reducedRho(ai, theta[i], rho[i])
			}
			if !IsNoPoint(p) && m.xfm != nil {
				p = applyAffine(m.xfm, p)
			}
			row[i] = p
		}
		out[ai] = row
	}
	return out, nil
}

// reducedRho retries a missed angle-to-cortex query for one area at
// eccentricities reduced by fallbackStep at a time. The retries only
// run when the requested rho is in (fallbackLow, fallbackHigh]; they
// stop at the first hit, or with NoPoint once a missing attempt was
// made at rho ≤ fallbackLow.
func (m *MeshModel) reducedRho(ai int, theta, rho float64) geom.Point {
	// The comparison is written so that a NaN rho fails it.
	if !(rho > fallbackLow && rho <= fallbackHigh) {
		return NoPoint
	}
	for r := rho - fallbackStep; ; r -= fallbackStep {
		if p := m.queryInverse(ai, theta, r); !IsNoPoint(p) {
			return p
		}
		if r <= fallbackLow {
			return NoPoint
		}
	}
}

// queryInverse interpolates the untransformed cortical position of
// one visual-field point from one area's inverse mesh.
func (m *MeshModel) queryInverse(ai int, theta, rho float64) geom.Point {
	pt := []geom.Point{encodeVisualField(theta, rho)}
	xs, err := m.inverse[ai].Interpolate(pt, m.xs, modelSmoothing)
	if err != nil {
		panic(err) // data arrays are vertex-aligned by construction
	}
	ys, err := m.inverse[ai].Interpolate(pt, m.ys, modelSmoothing)
	if err != nil {
		panic(err)
	}
	return geom.Point{X: xs[0], Y: ys[0]}
}
