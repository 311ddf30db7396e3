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

package projection

import (
	"fmt"
	"math"
	"testing"

	"github.com/ctessum/geom"
	"github.com/golang/geo/r3"
)

func geomPt(x, y float64) geom.Point { return geom.Point{X: x, Y: y} }

func TestNewErrors(t *testing.T) {
	center := r3.Vector{X: 1, Y: 1, Z: 1}
	tests := []struct {
		name string
		run  func() error
	}{
		{"zero center", func() error {
			_, err := New(r3.Vector{}, r3.Vector{X: 1}, Orthographic, 0, 0)
			return err
		}},
		{"parallel x axis", func() error {
			_, err := New(center, center.Mul(-2.5), Orthographic, 0, 0)
			return err
		}},
		{"zero x axis", func() error {
			_, err := New(center, r3.Vector{}, Orthographic, 0, 0)
			return err
		}},
		{"unknown method", func() error {
			_, err := New(center, r3.Vector{X: 1}, Method(99), 0, 0)
			return err
		}},
		{"negative radius", func() error {
			_, err := New(center, r3.Vector{X: 1}, Orthographic, -1, 0)
			return err
		}},
		{"radius beyond pi", func() error {
			_, err := New(center, r3.Vector{X: 1}, Orthographic, 4, 0)
			return err
		}},
		{"negative sphere radius", func() error {
			_, err := New(center, r3.Vector{X: 1}, Orthographic, 0, -100)
			return err
		}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if test.run() == nil {
				t.Error("no error")
			}
		})
	}
}

func TestParseMethod(t *testing.T) {
	for _, m := range []Method{Orthographic, Equirectangular} {
		got, err := ParseMethod(m.String())
		if err != nil || got != m {
			t.Errorf("ParseMethod(%q) = %v, %v", m.String(), got, err)
		}
	}
	if _, err := ParseMethod("stereographic"); err == nil {
		t.Error("unknown method name: no error")
	}
}

func TestForwardInverseRoundTrip(t *testing.T) {
	// A center and x axis in general position.
	p := func(t *testing.T, m Method) *MapProjection {
		t.Helper()
		proj, err := New(r3.Vector{X: 1, Y: -2, Z: 2}, r3.Vector{X: 1, Y: 1, Z: 0}, m, 0, 0)
		if err != nil {
			t.Fatal(err)
		}
		return proj
	}
	for _, method := range []Method{Orthographic, Equirectangular} {
		t.Run(method.String(), func(t *testing.T) {
			proj := p(t, method)
			for _, pt := range []struct{ x, y float64 }{
				{0, 0}, {10, 5}, {-20, 30}, {40, -25},
			} {
				v, ok := proj.Inverse(geomPt(pt.x, pt.y))
				if !ok {
					t.Fatalf("map point (%g,%g) not invertible", pt.x, pt.y)
				}
				if r := v.Norm(); math.Abs(r-proj.SphereRadius()) > 1e-9 {
					t.Errorf("lifted point has radius %g, want %g", r, proj.SphereRadius())
				}
				back, ok := proj.Forward(v)
				if !ok {
					t.Fatalf("lifted point %v does not project", v)
				}
				if math.Abs(back.X-pt.x) > 1e-9 || math.Abs(back.Y-pt.y) > 1e-9 {
					t.Errorf("round trip (%g,%g) -> (%g,%g)", pt.x, pt.y, back.X, back.Y)
				}
			}
		})
	}
}

func TestForwardCenterAndAxes(t *testing.T) {
	proj, err := New(r3.Vector{Z: 2}, r3.Vector{X: 9, Z: 1}, Orthographic, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	// The center lands on the origin.
	c, ok := proj.Forward(r3.Vector{Z: 5})
	if !ok || math.Abs(c.X) > 1e-12 || math.Abs(c.Y) > 1e-12 {
		t.Errorf("center projects to (%g,%g), ok=%v", c.X, c.Y, ok)
	}
	// A direction tilted toward OnXAxis lands on the +x axis.
	x, ok := proj.Forward(r3.Vector{X: 0.1, Z: 1})
	if !ok || x.X <= 0 || math.Abs(x.Y) > 1e-12 {
		t.Errorf("tilted direction projects to (%g,%g), ok=%v", x.X, x.Y, ok)
	}
}

func TestForwardRejections(t *testing.T) {
	proj, err := New(r3.Vector{Z: 1}, r3.Vector{X: 1}, Orthographic, math.Pi/2, 0)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		v    r3.Vector
	}{
		{"zero vector", r3.Vector{}},
		{"far hemisphere", r3.Vector{Z: -1}},
		{"beyond the cap", r3.Vector{X: 1, Z: -0.1}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, ok := proj.Forward(test.v); ok {
				t.Errorf("%v projected", test.v)
			}
		})
	}

	// A tighter cap rejects directions a wide one accepts.
	tight, err := New(r3.Vector{Z: 1}, r3.Vector{X: 1}, Orthographic, 0.1, 0)
	if err != nil {
		t.Fatal(err)
	}
	v := r3.Vector{X: 0.5, Z: 1}
	if _, ok := proj.Forward(v); !ok {
		t.Fatalf("wide cap rejected %v", v)
	}
	if _, ok := tight.Forward(v); ok {
		t.Errorf("tight cap projected %v", v)
	}
}

func TestInverseRejections(t *testing.T) {
	for _, method := range []Method{Orthographic, Equirectangular} {
		t.Run(method.String(), func(t *testing.T) {
			proj, err := New(r3.Vector{Z: 1}, r3.Vector{X: 1}, method, 0.25, 10)
			if err != nil {
				t.Fatal(err)
			}
			// Far outside the image of the projected cap.
			if _, ok := proj.Inverse(geomPt(1e3, 0)); ok {
				t.Error("distant map point inverted")
			}
			if _, ok := proj.Inverse(geomPt(9, 0)); ok {
				t.Error("map point beyond the cap inverted")
			}
		})
	}
}

func TestMethodString(t *testing.T) {
	if got := fmt.Sprint(Method(7)); got != "method(7)" {
		t.Errorf("got %q", got)
	}
}
