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
Package projection flattens a neighborhood of a point on a sphere
into the plane and back. Retinotopy models are defined over such
flat maps; the projection relates them to positions on the spherical
registration surface cortical meshes are aligned to.
*/
package projection

import (
	"fmt"
	"math"
	"strings"

	"github.com/ctessum/geom"
	"github.com/golang/geo/r3"
)

// Method selects the projection formula.
type Method int

const (
	// Orthographic projects onto the plane tangent at the center,
	// viewing the sphere from infinitely far away.
	Orthographic Method = iota
	// Equirectangular maps longitude and latitude around the
	// center linearly to the plane.
	Equirectangular
)

// String returns the name used in model files.
func (m Method) String() string {
	switch m {
	case Orthographic:
		return "orthographic"
	case Equirectangular:
		return "equirectangular"
	}
	return fmt.Sprintf("method(%d)", int(m))
}

// ParseMethod is the inverse of Method.String.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "orthographic":
		return Orthographic, nil
	case "equirectangular":
		return Equirectangular, nil
	}
	return 0, fmt.Errorf("projection: unknown method %q", s)
}

// Defaults for MapProjection parameters left zero.
const (
	// DefaultRadius is the default angular extent of the projected
	// region.
	DefaultRadius = math.Pi / 3
	// DefaultSphereRadius matches the registration spheres cortical
	// surfaces are usually aligned to.
	DefaultSphereRadius = 100.0
)

// degenerate is the squared length below which a direction gives no
// usable frame axis.
const degenerate = 1e-12

// MapProjection maps between points near a center direction on a
// sphere and 2D map coordinates. The projected region is the
// spherical cap of angular radius Radius around Center; OnXAxis
// fixes the direction of the map's +x axis. A MapProjection is
// immutable and safe for concurrent use.
type MapProjection struct {
	center  r3.Vector
	onXAxis r3.Vector
	method  Method
	radius  float64
	sphere  float64

	// Orthonormal frame: ez points at the center, ex along the
	// map's +x axis.
	ex, ey, ez r3.Vector
}

// New creates a MapProjection centered on the direction of center
// with the map +x axis toward onXAxis. A radius of 0 means
// DefaultRadius; a sphereRadius of 0 means DefaultSphereRadius.
// center and onXAxis must be non-zero and non-parallel.
func New(center, onXAxis r3.Vector, method Method, radius, sphereRadius float64) (*MapProjection, error) {
	if method != Orthographic && method != Equirectangular {
		return nil, fmt.Errorf("projection: unknown method %d", int(method))
	}
	if radius == 0 {
		radius = DefaultRadius
	}
	if radius < 0 || radius > math.Pi {
		return nil, fmt.Errorf("projection: radius %g outside (0, π]", radius)
	}
	if sphereRadius == 0 {
		sphereRadius = DefaultSphereRadius
	}
	if sphereRadius < 0 {
		return nil, fmt.Errorf("projection: negative sphere radius %g", sphereRadius)
	}
	if center.Norm2() < degenerate {
		return nil, fmt.Errorf("projection: center direction is zero")
	}
	ez := center.Normalize()
	rej := onXAxis.Sub(ez.Mul(onXAxis.Dot(ez)))
	if rej.Norm2() < degenerate {
		return nil, fmt.Errorf("projection: on-x-axis direction %v is parallel to the center", onXAxis)
	}
	ex := rej.Normalize()
	return &MapProjection{
		center:  center,
		onXAxis: onXAxis,
		method:  method,
		radius:  radius,
		sphere:  sphereRadius,
		ex:      ex,
		ey:      ez.Cross(ex),
		ez:      ez,
	}, nil
}

// Center returns the direction the projection is centered on.
func (p *MapProjection) Center() r3.Vector { return p.center }

// OnXAxis returns the direction fixing the map's +x axis.
func (p *MapProjection) OnXAxis() r3.Vector { return p.onXAxis }

// Method returns the projection formula.
func (p *MapProjection) Method() Method { return p.method }

// Radius returns the angular extent of the projected region.
func (p *MapProjection) Radius() float64 { return p.radius }

// SphereRadius returns the radius of the sphere Inverse places
// points on.
func (p *MapProjection) SphereRadius() float64 { return p.sphere }

// Forward projects a position (any non-zero length; only its
// direction matters) into map coordinates. ok is false for the zero
// vector and for directions outside the projected region.
func (p *MapProjection) Forward(v r3.Vector) (geom.Point, bool) {
	if v.Norm2() < degenerate {
		return geom.Point{}, false
	}
	u := v.Normalize()
	x, y, z := u.Dot(p.ex), u.Dot(p.ey), u.Dot(p.ez)
	if math.Acos(clamp(z)) > p.radius {
		return geom.Point{}, false
	}
	switch p.method {
	case Equirectangular:
		lon := math.Atan2(x, z)
		lat := math.Asin(clamp(y))
		return geom.Point{X: p.sphere * lon, Y: p.sphere * lat}, true
	default: // Orthographic
		if z <= 0 {
			return geom.Point{}, false
		}
		return geom.Point{X: p.sphere * x, Y: p.sphere * y}, true
	}
}

// Inverse maps map coordinates back to a position on the sphere of
// radius SphereRadius. ok is false for map points outside the
// projected region's image.
func (p *MapProjection) Inverse(pt geom.Point) (r3.Vector, bool) {
	var u r3.Vector
	switch p.method {
	case Equirectangular:
		lon := pt.X / p.sphere
		lat := pt.Y / p.sphere
		if math.Abs(lon) > math.Pi || math.Abs(lat) > math.Pi/2 {
			return r3.Vector{}, false
		}
		c := math.Cos(lat)
		u = p.ex.Mul(c * math.Sin(lon)).
			Add(p.ey.Mul(math.Sin(lat))).
			Add(p.ez.Mul(c * math.Cos(lon)))
	default: // Orthographic
		x := pt.X / p.sphere
		y := pt.Y / p.sphere
		s := x*x + y*y
		if s > 1 {
			return r3.Vector{}, false
		}
		u = p.ex.Mul(x).
			Add(p.ey.Mul(y)).
			Add(p.ez.Mul(math.Sqrt(1 - s)))
	}
	if math.Acos(clamp(u.Dot(p.ez))) > p.radius {
		return r3.Vector{}, false
	}
	return u.Mul(p.sphere), true
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
