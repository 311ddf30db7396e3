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

	"github.com/golang/geo/r3"

	"github.com/visualmodel/retinotopy/projection"
)

// RegisteredModel ties a retinotopy model to the map projection that
// produced its flat cortical coordinates, so that queries can be
// asked directly in positions on the spherical registration surface.
// The embedded Model still answers flat-map queries unchanged.
type RegisteredModel struct {
	Model
	proj *projection.MapProjection
}

// NewRegisteredModel pairs a model with the projection relating its
// flat map to the registration sphere.
func NewRegisteredModel(m Model, p *projection.MapProjection) (*RegisteredModel, error) {
	if m == nil {
		return nil, fmt.Errorf("retinotopy: registered model needs a model")
	}
	if p == nil {
		return nil, fmt.Errorf("retinotopy: registered model needs a projection")
	}
	return &RegisteredModel{Model: m, proj: p}, nil
}

// Projection returns the projection relating the model's flat map to
// the registration sphere.
func (m *RegisteredModel) Projection() *projection.MapProjection { return m.proj }

// CortexToAngle3D answers CortexToAngle for positions on the
// registration sphere. Each (x[i], y[i], z[i]) is projected into the
// flat map and queried there; positions outside the projected region
// return the zero AnglePoint. It returns ErrLengthMismatch if the
// three slices do not share one length.
func (m *RegisteredModel) CortexToAngle3D(x, y, z []float64) ([]AnglePoint, error) {
	if len(x) != len(y) {
		return nil, lengthMismatch(len(x), len(y))
	}
	if len(x) != len(z) {
		return nil, lengthMismatch(len(x), len(z))
	}
	// Query only the vertices the projection covers, then scatter
	// the answers back into place.
	var px, py []float64
	at := make([]int, 0, len(x))
	for i := range x {
		p, ok := m.proj.Forward(r3.Vector{X: x[i], Y: y[i], Z: z[i]})
		if !ok {
			continue
		}
		px = append(px, p.X)
		py = append(py, p.Y)
		at = append(at, i)
	}
	flat, err := m.CortexToAngleAll(px, py)
	if err != nil {
		return nil, err
	}
	out := make([]AnglePoint, len(x))
	for j, i := range at {
		out[i] = flat[j]
	}
	return out, nil
}

// AngleToSphere answers AngleToCortex with results lifted back onto
// the registration sphere: pts[a][i] is the sphere position for the
// a'th area and the i'th (theta, rho) pair, and ok[a][i] reports
// whether one exists (false for visual-field positions the area does
// not represent and for flat-map points outside the projection's
// image). It returns ErrLengthMismatch if len(theta) != len(rho).
func (m *RegisteredModel) AngleToSphere(theta, rho []float64) (pts [][]r3.Vector, ok [][]bool, err error) {
	flat, err := m.AngleToCortexAll(theta, rho)
	if err != nil {
		return nil, nil, err
	}
	pts = make([][]r3.Vector, len(flat))
	ok = make([][]bool, len(flat))
	for ai, row := range flat {
		pts[ai] = make([]r3.Vector, len(row))
		ok[ai] = make([]bool, len(row))
		for i, p := range row {
			if IsNoPoint(p) {
				continue
			}
			pts[ai][i], ok[ai][i] = m.proj.Inverse(p)
		}
	}
	return pts, ok, nil
}
