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

package trimesh

import (
	"fmt"
	"math"
	"reflect"
	"testing"

	"github.com/ctessum/geom"
	"gonum.org/v1/gonum/floats/scalar"
)

// squareMesh is a unit square split along the diagonal from (0,0)
// to (1,1), with one extra vertex that belongs to no triangle.
func squareMesh(t *testing.T) *Mesh {
	t.Helper()
	coords := []geom.Point{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1},
		{X: 5, Y: 5},
	}
	m, err := New([][3]int{{0, 1, 2}, {0, 2, 3}}, coords)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestNewBadIndex(t *testing.T) {
	coords := []geom.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}
	tests := [][3]int{{0, 1, 3}, {-1, 1, 2}, {0, 1, 100}}
	for i, tri := range tests {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			if _, err := New([][3]int{tri}, coords); err == nil {
				t.Errorf("triangle %v: expected error", tri)
			}
		})
	}
}

func TestAdjacency(t *testing.T) {
	m := squareMesh(t)
	wantNeighbors := [][]int{
		{1, 2, 3},
		{0, 2},
		{0, 1, 3},
		{0, 2},
		{},
	}
	for v, want := range wantNeighbors {
		got := m.Neighbors(v)
		if len(got) == 0 && len(want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("vertex %d neighbors: %v != %v", v, got, want)
		}
	}
	wantEdges := [][2]int{{0, 1}, {0, 2}, {0, 3}, {1, 2}, {2, 3}}
	if got := m.Edges(); !reflect.DeepEqual(got, wantEdges) {
		t.Errorf("edges: %v != %v", got, wantEdges)
	}
}

func TestBounds(t *testing.T) {
	m := squareMesh(t)
	// The isolated vertex at (5,5) is not part of any triangle and
	// must not contribute to the bounds.
	want := &geom.Bounds{Min: geom.Point{X: 0, Y: 0}, Max: geom.Point{X: 1, Y: 1}}
	if got := m.Bounds(); !reflect.DeepEqual(got, want) {
		t.Errorf("bounds: %v != %v", got, want)
	}

	empty, err := New(nil, []geom.Point{{X: 0, Y: 0}})
	if err != nil {
		t.Fatal(err)
	}
	if b := empty.Bounds(); b != nil {
		t.Errorf("empty mesh bounds: %v != nil", b)
	}
}

func TestLocate(t *testing.T) {
	m := squareMesh(t)
	tests := []struct {
		p  geom.Point
		ok bool
	}{
		{geom.Point{X: 0.75, Y: 0.25}, true},  // inside lower triangle
		{geom.Point{X: 0.25, Y: 0.75}, true},  // inside upper triangle
		{geom.Point{X: 0.5, Y: 0.5}, true},    // on the shared diagonal
		{geom.Point{X: 0, Y: 0}, true},        // on a vertex
		{geom.Point{X: 0.5, Y: 0}, true},      // on a boundary edge
		{geom.Point{X: 1.5, Y: 0.5}, false},   // outside, within x range of nothing
		{geom.Point{X: 0.5, Y: -0.01}, false}, // just below the bottom edge
		{geom.Point{X: 5, Y: 5}, false},       // the isolated vertex
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v,%v", test.p.X, test.p.Y), func(t *testing.T) {
			tri, w, ok := m.Locate(test.p)
			if ok != test.ok {
				t.Fatalf("ok: %v != %v", ok, test.ok)
			}
			if !ok {
				return
			}
			// The barycentric coordinates must reconstruct the point.
			v := m.Triangle(tri)
			a, b, c := m.Vertex(v[0]), m.Vertex(v[1]), m.Vertex(v[2])
			x := w[0]*a.X + w[1]*b.X + w[2]*c.X
			y := w[0]*a.Y + w[1]*b.Y + w[2]*c.Y
			if !scalar.EqualWithinAbs(x, test.p.X, 1e-12) || !scalar.EqualWithinAbs(y, test.p.Y, 1e-12) {
				t.Errorf("reconstructed point (%g,%g) != (%g,%g)", x, y, test.p.X, test.p.Y)
			}
			if sum := w[0] + w[1] + w[2]; !scalar.EqualWithinAbs(sum, 1, 1e-12) {
				t.Errorf("weights sum to %g", sum)
			}
		})
	}
}

func TestLocateDegenerate(t *testing.T) {
	// All three vertices on one line: the triangle has no interior.
	coords := []geom.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}}
	m, err := New([][3]int{{0, 1, 2}}, coords)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, ok := m.Locate(geom.Point{X: 1, Y: 0}); ok {
		t.Error("point matched a degenerate triangle")
	}
}

func TestInterpolateLinear(t *testing.T) {
	m := squareMesh(t)
	// A linear field is reproduced exactly by barycentric
	// interpolation, regardless of which triangle a point lands in.
	f := func(p geom.Point) float64 { return 2*p.X + 3*p.Y + 1 }
	data := make([]float64, m.NumVertices())
	for i := range data {
		data[i] = f(m.Vertex(i))
	}
	pts := []geom.Point{
		{X: 0.1, Y: 0.1}, {X: 0.9, Y: 0.3}, {X: 0.5, Y: 0.5},
		{X: 0, Y: 1}, {X: 0.25, Y: 0.75},
	}
	got, err := m.Interpolate(pts, data, 0)
	if err != nil {
		t.Fatal(err)
	}
	for i, p := range pts {
		if want := f(p); !scalar.EqualWithinAbs(got[i], want, 1e-12) {
			t.Errorf("point %v: %g != %g", p, got[i], want)
		}
	}
}

func TestInterpolateOutside(t *testing.T) {
	m := squareMesh(t)
	data := []float64{1, 2, 3, 4, 5}
	got, err := m.Interpolate([]geom.Point{{X: -1, Y: -1}, {X: 0.5, Y: 0.25}}, data, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(got[0]) {
		t.Errorf("outside point: %g is not NaN", got[0])
	}
	if math.IsNaN(got[1]) {
		t.Error("inside point: unexpected NaN")
	}
}

func TestInterpolateBadData(t *testing.T) {
	m := squareMesh(t)
	if _, err := m.Interpolate([]geom.Point{{X: 0.5, Y: 0.5}}, []float64{1, 2}, 0); err == nil {
		t.Error("expected error for short data")
	}
	if _, err := m.Smooth([]float64{1, 2}, 1); err == nil {
		t.Error("expected error for short data")
	}
}

func TestSmooth(t *testing.T) {
	m := squareMesh(t)
	data := []float64{0, 4, 8, 4, 7}

	got, err := m.Smooth(data, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, data) {
		t.Errorf("zero passes: %v != %v", got, data)
	}
	if &got[0] == &data[0] {
		t.Error("zero passes must still copy")
	}

	got, err = m.Smooth(data, 1)
	if err != nil {
		t.Fatal(err)
	}
	// Neighbor averages: vertex 0 sees {1,2,3}, vertex 1 sees {0,2},
	// vertex 2 sees {0,1,3}, vertex 3 sees {0,2}; vertex 4 has no
	// neighbors and keeps its value.
	want := []float64{
		0.5*0 + 0.5*(4+8+4)/3,
		0.5*4 + 0.5*(0+8)/2,
		0.5*8 + 0.5*(0+4+4)/3,
		0.5*4 + 0.5*(0+8)/2,
		7,
	}
	for i := range want {
		if !scalar.EqualWithinAbs(got[i], want[i], 1e-12) {
			t.Errorf("vertex %d: %g != %g", i, got[i], want[i])
		}
	}
}

// gridMesh builds an n-by-n mesh of squares, each split into two
// triangles along its up-right diagonal.
func gridMesh(t *testing.T, n int) *Mesh {
	t.Helper()
	coords := make([]geom.Point, 0, (n+1)*(n+1))
	for iy := 0; iy <= n; iy++ {
		for ix := 0; ix <= n; ix++ {
			coords = append(coords, geom.Point{X: float64(ix), Y: float64(iy)})
		}
	}
	var triangles [][3]int
	at := func(ix, iy int) int { return iy*(n+1) + ix }
	for iy := 0; iy < n; iy++ {
		for ix := 0; ix < n; ix++ {
			triangles = append(triangles,
				[3]int{at(ix, iy), at(ix+1, iy), at(ix+1, iy+1)},
				[3]int{at(ix, iy), at(ix+1, iy+1), at(ix, iy+1)})
		}
	}
	m, err := New(triangles, coords)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestInterpolateParallel(t *testing.T) {
	// Enough query points to exercise the multi-goroutine path.
	m := gridMesh(t, 8)
	f := func(p geom.Point) float64 { return 0.5*p.X - 1.5*p.Y }
	data := make([]float64, m.NumVertices())
	for i := range data {
		data[i] = f(m.Vertex(i))
	}
	var pts []geom.Point
	for i := 0; i < 1200; i++ {
		x := 8 * float64(i%35) / 34
		y := 8 * float64(i%53) / 52
		pts = append(pts, geom.Point{X: x, Y: y})
	}
	got, err := m.Interpolate(pts, data, 0)
	if err != nil {
		t.Fatal(err)
	}
	for i, p := range pts {
		if want := f(p); !scalar.EqualWithinAbs(got[i], want, 1e-9) {
			t.Fatalf("point %d %v: %g != %g", i, p, got[i], want)
		}
	}
}
