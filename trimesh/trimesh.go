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
Package trimesh provides immutable 2D triangulated meshes with
spatially indexed point location and linear barycentric interpolation
of per-vertex fields.
*/
package trimesh

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/ctessum/geom/proj"
)

// degenerateArea is twice the smallest triangle area considered
// usable for barycentric coordinates. Triangles below it never
// match a query point.
const degenerateArea = 1.0e-12

// insideTolerance is how far (in barycentric units) a point may sit
// outside an edge and still count as inside, so that points exactly
// on shared edges are not lost to roundoff.
const insideTolerance = 1.0e-12

// parallelThreshold is the query count above which Interpolate
// spreads work across GOMAXPROCS goroutines.
const parallelThreshold = 512

// Mesh is a triangulation of points in the plane together with a
// spatial index over its triangles and the vertex adjacency derived
// from its edges. All fields are computed during construction and
// never change afterward, so a Mesh may be shared freely between
// goroutines.
type Mesh struct {
	triangles [][3]int
	coords    []geom.Point
	neighbors [][]int
	edges     [][2]int
	index     *rtree.Rtree
	bounds    *geom.Bounds
}

// triangleRef is the rtree entry for one triangle.
type triangleRef struct {
	i int
	b *geom.Bounds
}

// Bounds returns the bounding box of the triangle.
func (t *triangleRef) Bounds() *geom.Bounds { return t.b }

// Len, Points, Similar, and Transform delegate to the bounding box so
// that triangleRef satisfies geom.Geom, which rtree.Insert requires;
// the index only ever uses Bounds.
func (t *triangleRef) Len() int { return t.b.Len() }

func (t *triangleRef) Points() func() geom.Point { return t.b.Points() }

func (t *triangleRef) Similar(g geom.Geom, tolerance float64) bool {
	return t.b.Similar(g, tolerance)
}

func (t *triangleRef) Transform(tr proj.Transformer) (geom.Geom, error) {
	return t.b.Transform(tr)
}

// New creates a Mesh from triangles specified as triples of indexes
// into coords. Every index must be in [0, len(coords)); otherwise an
// error is returned. The input slices are copied, so later changes to
// them do not affect the Mesh. Vertices that appear in no triangle
// are allowed; they simply lie outside the triangulation.
func New(triangles [][3]int, coords []geom.Point) (*Mesh, error) {
	m := &Mesh{
		triangles: make([][3]int, len(triangles)),
		coords:    make([]geom.Point, len(coords)),
	}
	copy(m.coords, coords)
	for i, t := range triangles {
		for _, v := range t {
			if v < 0 || v >= len(coords) {
				return nil, fmt.Errorf("trimesh: triangle %d references vertex %d, but there are %d vertices", i, v, len(coords))
			}
		}
		m.triangles[i] = t
	}
	m.build()
	return m, nil
}

// build creates the triangle index, the vertex adjacency lists,
// and the deduplicated edge list.
func (m *Mesh) build() {
	m.index = rtree.NewTree(25, 50)
	adj := make([]map[int]struct{}, len(m.coords))
	for i, t := range m.triangles {
		b := m.triangleBounds(t)
		m.index.Insert(&triangleRef{i: i, b: b})
		if m.bounds == nil {
			m.bounds = &geom.Bounds{Min: b.Min, Max: b.Max}
		} else {
			m.bounds.Min.X = math.Min(m.bounds.Min.X, b.Min.X)
			m.bounds.Min.Y = math.Min(m.bounds.Min.Y, b.Min.Y)
			m.bounds.Max.X = math.Max(m.bounds.Max.X, b.Max.X)
			m.bounds.Max.Y = math.Max(m.bounds.Max.Y, b.Max.Y)
		}
		for j, a := range t {
			for _, b := range t[j+1:] {
				if a == b {
					continue
				}
				if adj[a] == nil {
					adj[a] = make(map[int]struct{})
				}
				if adj[b] == nil {
					adj[b] = make(map[int]struct{})
				}
				adj[a][b] = struct{}{}
				adj[b][a] = struct{}{}
			}
		}
	}
	m.neighbors = make([][]int, len(m.coords))
	for v, set := range adj {
		if len(set) == 0 {
			continue
		}
		nb := make([]int, 0, len(set))
		for u := range set {
			nb = append(nb, u)
		}
		sort.Ints(nb)
		m.neighbors[v] = nb
		for _, u := range nb {
			// Each edge is recorded once, from its lesser vertex.
			if v < u {
				m.edges = append(m.edges, [2]int{v, u})
			}
		}
	}
}

// triangleBounds returns the bounding box of triangle t.
func (m *Mesh) triangleBounds(t [3]int) *geom.Bounds {
	a, b, c := m.coords[t[0]], m.coords[t[1]], m.coords[t[2]]
	return &geom.Bounds{
		Min: geom.Point{
			X: math.Min(a.X, math.Min(b.X, c.X)),
			Y: math.Min(a.Y, math.Min(b.Y, c.Y)),
		},
		Max: geom.Point{
			X: math.Max(a.X, math.Max(b.X, c.X)),
			Y: math.Max(a.Y, math.Max(b.Y, c.Y)),
		},
	}
}

// NumVertices returns the number of vertices in the mesh, including
// any that appear in no triangle.
func (m *Mesh) NumVertices() int { return len(m.coords) }

// NumTriangles returns the number of triangles in the mesh.
func (m *Mesh) NumTriangles() int { return len(m.triangles) }

// Vertex returns the coordinates of vertex i.
func (m *Mesh) Vertex(i int) geom.Point { return m.coords[i] }

// Triangle returns the vertex indexes of triangle i.
func (m *Mesh) Triangle(i int) [3]int { return m.triangles[i] }

// Bounds returns the bounding box of all triangles, or nil if the
// mesh has no triangles.
func (m *Mesh) Bounds() *geom.Bounds {
	if m.bounds == nil {
		return nil
	}
	return &geom.Bounds{Min: m.bounds.Min, Max: m.bounds.Max}
}

// Neighbors returns the vertices that share an edge with vertex i,
// in increasing order. The result is a copy.
func (m *Mesh) Neighbors(i int) []int {
	nb := make([]int, len(m.neighbors[i]))
	copy(nb, m.neighbors[i])
	return nb
}

// Edges returns every undirected edge of the mesh exactly once, each
// as a pair with the lesser vertex first. The result is a copy.
func (m *Mesh) Edges() [][2]int {
	e := make([][2]int, len(m.edges))
	copy(e, m.edges)
	return e
}

// Locate finds a triangle containing p, returning the triangle index
// and the barycentric coordinates of p with respect to its three
// vertices. When p lies outside every triangle, ok is false. Points
// on shared edges belong to all adjoining triangles; which one is
// reported is unspecified, but the interpolated value is the same
// either way.
func (m *Mesh) Locate(p geom.Point) (tri int, w [3]float64, ok bool) {
	pb := &geom.Bounds{Min: p, Max: p}
	for _, sI := range m.index.SearchIntersect(pb) {
		ref := sI.(*triangleRef)
		if w, inside := m.barycentric(m.triangles[ref.i], p); inside {
			return ref.i, w, true
		}
	}
	return 0, [3]float64{}, false
}

// barycentric computes the barycentric coordinates of p in the
// triangle with vertex indexes t. inside reports whether p lies in
// the triangle (within insideTolerance). Degenerate triangles
// contain nothing.
func (m *Mesh) barycentric(t [3]int, p geom.Point) (w [3]float64, inside bool) {
	a, b, c := m.coords[t[0]], m.coords[t[1]], m.coords[t[2]]
	abX, abY := b.X-a.X, b.Y-a.Y
	acX, acY := c.X-a.X, c.Y-a.Y
	apX, apY := p.X-a.X, p.Y-a.Y
	den := abX*acY - abY*acX
	if math.Abs(den) < degenerateArea {
		return w, false
	}
	w[1] = (apX*acY - apY*acX) / den
	w[2] = (abX*apY - abY*apX) / den
	w[0] = 1 - w[1] - w[2]
	inside = w[0] >= -insideTolerance &&
		w[1] >= -insideTolerance &&
		w[2] >= -insideTolerance
	return w, inside
}

// Smooth returns a copy of the per-vertex field data after the given
// number of neighbor-averaging passes. Each pass replaces every
// vertex value with the mean of its current value and the average of
// its edge neighbors' current values; all updates within a pass read
// the values from before the pass. Vertices with no neighbors are
// left unchanged. Smooth returns an error if len(data) does not
// match the vertex count.
func (m *Mesh) Smooth(data []float64, passes int) ([]float64, error) {
	if len(data) != len(m.coords) {
		return nil, fmt.Errorf("trimesh: data has %d values for %d vertices", len(data), len(m.coords))
	}
	out := make([]float64, len(data))
	copy(out, data)
	if passes <= 0 {
		return out, nil
	}
	prev := make([]float64, len(out))
	for pass := 0; pass < passes; pass++ {
		copy(prev, out)
		for v, nb := range m.neighbors {
			if len(nb) == 0 {
				continue
			}
			var sum float64
			for _, u := range nb {
				sum += prev[u]
			}
			out[v] = 0.5*prev[v] + 0.5*sum/float64(len(nb))
		}
	}
	return out, nil
}

// Interpolate evaluates the per-vertex field data at each query
// point, after applying the given number of smoothing passes to the
// field. Within a triangle the field varies linearly between the
// triangle's vertex values. Query points outside every triangle get
// NaN. Interpolate returns an error if len(data) does not match the
// vertex count.
func (m *Mesh) Interpolate(pts []geom.Point, data []float64, smoothing int) ([]float64, error) {
	field, err := m.Smooth(data, smoothing)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(pts))
	eval := func(i int) {
		tri, w, ok := m.Locate(pts[i])
		if !ok {
			out[i] = math.NaN()
			return
		}
		t := m.triangles[tri]
		out[i] = w[0]*field[t[0]] + w[1]*field[t[1]] + w[2]*field[t[2]]
	}
	if len(pts) < parallelThreshold {
		for i := range pts {
			eval(i)
		}
		return out, nil
	}
	nprocs := runtime.GOMAXPROCS(0)
	var wg sync.WaitGroup
	wg.Add(nprocs)
	for pi := 0; pi < nprocs; pi++ {
		go func(pi int) {
			defer wg.Done()
			for i := pi; i < len(pts); i += nprocs {
				eval(i)
			}
		}(pi)
	}
	wg.Wait()
	return out, nil
}
