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

	"github.com/ctessum/geom"
	"gonum.org/v1/gonum/mat"

	"github.com/visualmodel/retinotopy/trimesh"
)

// MeshModel is a retinotopy mapping defined by measurements on a
// triangulated flat map of the cortex. The forward direction
// interpolates polar angle, eccentricity, and area label over the
// cortical mesh; the inverse direction interpolates cortical x and y
// over one mesh per visual area, laid out in the visual field.
//
// A MeshModel never changes after construction, so any number of
// queries may run concurrently on the same model.
type MeshModel struct {
	forward *trimesh.Mesh

	// Per-vertex data, index-aligned with the forward mesh.
	xs     []float64
	ys     []float64
	angles []float64
	eccens []float64
	labels []float64 // area labels after boundary repair

	// Inverse meshes, one per entry of areas, in increasing label
	// order. All share the visual-field vertex layout; each holds
	// only its own area's triangles.
	areas   []int
	inverse []*trimesh.Mesh

	// Affine cortical coordinate transform and its inverse, or nil
	// for the identity.
	xfm  *mat.Dense
	ixfm *mat.Dense
}

var _ Model = &MeshModel{}

// NewMeshModel builds a MeshModel from a triangulation of the
// flattened cortex and per-vertex measurements. triangles holds
// vertex index triples and coordinates holds (x, y) pairs; either may
// be supplied transposed (3×m or 2×n) and is detected by shape.
// angles, eccens, and areaLabels give each vertex's polar angle
// (degrees), eccentricity, and visual area label, where label 0 marks
// boundary or unlabeled vertices.
//
// transform, if non-nil, is a 3×3 homogeneous affine matrix mapping
// internal mesh coordinates to the caller's cortical coordinates. It
// must be invertible.
//
// Construction fails, returning no model, on ragged or misshapen
// arrays, per-vertex arrays whose length differs from the vertex
// count, triangle indexes out of range, or a singular transform.
func NewMeshModel(triangles [][]int, coordinates [][]float64, angles, eccens []float64, areaLabels []int, transform mat.Matrix) (*MeshModel, error) {
	tris, err := orientTriangles(triangles)
	if err != nil {
		return nil, err
	}
	coords, err := orientCoordinates(coordinates)
	if err != nil {
		return nil, err
	}
	n := len(coords)
	if len(angles) != n || len(eccens) != n || len(areaLabels) != n {
		return nil, fmt.Errorf("retinotopy: %d vertices but %d angles, %d eccentricities, %d area labels",
			n, len(angles), len(eccens), len(areaLabels))
	}

	m := &MeshModel{
		xs:     make([]float64, n),
		ys:     make([]float64, n),
		angles: make([]float64, n),
		eccens: make([]float64, n),
	}
	for i, p := range coords {
		m.xs[i], m.ys[i] = p.X, p.Y
	}
	copy(m.angles, angles)
	copy(m.eccens, eccens)

	m.forward, err = trimesh.New(tris, coords)
	if err != nil {
		return nil, err
	}

	// Lay the vertices out in the visual field.
	field := make([]geom.Point, n)
	for i := range field {
		field[i] = encodeVisualField(angles[i], eccens[i])
	}

	// One inverse mesh per distinct non-zero label, in increasing
	// order. An area's mesh holds exactly the triangles whose three
	// vertices all carry that label; triangles straddling a
	// boundary belong to no area.
	m.areas = distinctAreas(areaLabels)
	m.inverse = make([]*trimesh.Mesh, len(m.areas))
	for ai, area := range m.areas {
		var areaTris [][3]int
		for _, t := range tris {
			if areaLabels[t[0]] == area && areaLabels[t[1]] == area && areaLabels[t[2]] == area {
				areaTris = append(areaTris, t)
			}
		}
		if m.inverse[ai], err = trimesh.New(areaTris, field); err != nil {
			return nil, err
		}
	}

	m.labels = repairLabels(tris, areaLabels)

	if transform != nil {
		if r, c := transform.Dims(); r != 3 || c != 3 {
			return nil, fmt.Errorf("retinotopy: transform is %d×%d, want 3×3", r, c)
		}
		m.xfm = mat.DenseCopyOf(transform)
		m.ixfm = new(mat.Dense)
		if err := m.ixfm.Inverse(m.xfm); err != nil {
			return nil, fmt.Errorf("retinotopy: transform is not invertible: %w", err)
		}
	}
	return m, nil
}

// orientTriangles normalizes a triangle array to one index triple
// per entry, accepting either m×3 or 3×m input.
func orientTriangles(triangles [][]int) ([][3]int, error) {
	if len(triangles) == 0 {
		return nil, fmt.Errorf("retinotopy: no triangles")
	}
	width := len(triangles[0])
	for i, row := range triangles {
		if len(row) != width {
			return nil, fmt.Errorf("retinotopy: ragged triangle array: row %d has %d values, row 0 has %d",
				i, len(row), width)
		}
	}
	if width != 3 {
		if len(triangles) != 3 {
			return nil, fmt.Errorf("retinotopy: triangle array is %d×%d; neither dimension is 3",
				len(triangles), width)
		}
		out := make([][3]int, width)
		for i := range out {
			out[i] = [3]int{triangles[0][i], triangles[1][i], triangles[2][i]}
		}
		return out, nil
	}
	out := make([][3]int, len(triangles))
	for i, row := range triangles {
		out[i] = [3]int{row[0], row[1], row[2]}
	}
	return out, nil
}

// orientCoordinates normalizes a coordinate array to one point per
// entry, accepting either n×2 or 2×n input.
func orientCoordinates(coordinates [][]float64) ([]geom.Point, error) {
	if len(coordinates) == 0 {
		return nil, fmt.Errorf("retinotopy: no coordinates")
	}
	width := len(coordinates[0])
	for i, row := range coordinates {
		if len(row) != width {
			return nil, fmt.Errorf("retinotopy: ragged coordinate array: row %d has %d values, row 0 has %d",
				i, len(row), width)
		}
	}
	if width != 2 {
		if len(coordinates) != 2 {
			return nil, fmt.Errorf("retinotopy: coordinate array is %d×%d; neither dimension is 2",
				len(coordinates), width)
		}
		out := make([]geom.Point, width)
		for i := range out {
			out[i] = geom.Point{X: coordinates[0][i], Y: coordinates[1][i]}
		}
		return out, nil
	}
	out := make([]geom.Point, len(coordinates))
	for i, row := range coordinates {
		out[i] = geom.Point{X: row[0], Y: row[1]}
	}
	return out, nil
}

// encodeVisualField converts a polar angle (degrees, 0 at the upper
// vertical meridian) and eccentricity into the Cartesian layout used
// by the inverse meshes.
func encodeVisualField(theta, rho float64) geom.Point {
	rad := (90 - theta) * math.Pi / 180
	return geom.Point{X: rho * math.Cos(rad), Y: rho * math.Sin(rad)}
}

// distinctAreas returns the distinct non-zero labels in increasing
// order.
func distinctAreas(areaLabels []int) []int {
	seen := make(map[int]struct{})
	var areas []int
	for _, a := range areaLabels {
		if a == 0 {
			continue
		}
		if _, ok := seen[a]; !ok {
			seen[a] = struct{}{}
			areas = append(areas, a)
		}
	}
	sort.Ints(areas)
	return areas
}

// repairLabels converts the integer area labels to float64,
// replacing each label-0 vertex's value with the mean label of its
// non-zero-labeled triangle neighbors. The neighbor set of a
// boundary vertex is the union, over the triangles containing it, of
// each triangle's non-zero-labeled vertices. Vertices with no such
// neighbors keep label 0.
func repairLabels(tris [][3]int, areaLabels []int) []float64 {
	labels := make([]float64, len(areaLabels))
	for i, a := range areaLabels {
		labels[i] = float64(a)
	}
	neighbors := make(map[int]map[int]struct{})
	for _, t := range tris {
		inside := -1
		boundary := false
		for _, v := range t {
			if areaLabels[v] == 0 {
				boundary = true
			} else {
				inside = v
			}
		}
		if !boundary || inside < 0 {
			continue
		}
		for _, v := range t {
			if areaLabels[v] != 0 {
				continue
			}
			set := neighbors[v]
			if set == nil {
				set = make(map[int]struct{})
				neighbors[v] = set
			}
			for _, u := range t {
				if areaLabels[u] != 0 {
					set[u] = struct{}{}
				}
			}
		}
	}
	for v, set := range neighbors {
		var sum float64
		for u := range set {
			sum += float64(areaLabels[u])
		}
		labels[v] = sum / float64(len(set))
	}
	return labels
}

// applyAffine applies the affine part of a 3×3 homogeneous matrix to
// a 2D point.
func applyAffine(t *mat.Dense, p geom.Point) geom.Point {
	return geom.Point{
		X: t.At(0, 0)*p.X + t.At(0, 1)*p.Y + t.At(0, 2),
		Y: t.At(1, 0)*p.X + t.At(1, 1)*p.Y + t.At(1, 2),
	}
}

// Forward returns the cortical surface mesh.
func (m *MeshModel) Forward() *trimesh.Mesh { return m.forward }

// Areas returns the visual area labels the model knows, in
// increasing order.
func (m *MeshModel) Areas() []int {
	a := make([]int, len(m.areas))
	copy(a, m.areas)
	return a
}

// Inverse returns the visual-field mesh for the given area label, or
// nil if the label is not one of Areas.
func (m *MeshModel) Inverse(area int) *trimesh.Mesh {
	for ai, a := range m.areas {
		if a == area {
			return m.inverse[ai]
		}
	}
	return nil
}

// PolarAngles returns a copy of the per-vertex polar angles.
func (m *MeshModel) PolarAngles() []float64 { return copyFloats(m.angles) }

// Eccentricities returns a copy of the per-vertex eccentricities.
func (m *MeshModel) Eccentricities() []float64 { return copyFloats(m.eccens) }

// AreaLabels returns a copy of the per-vertex area labels after
// boundary repair. Labels of original boundary vertices are means of
// their neighboring areas' labels and may be fractional.
func (m *MeshModel) AreaLabels() []float64 { return copyFloats(m.labels) }

// Transform returns a copy of the cortical coordinate transform, or
// nil if the model uses the identity.
func (m *MeshModel) Transform() mat.Matrix {
	if m.xfm == nil {
		return nil
	}
	return mat.DenseCopyOf(m.xfm)
}

// Bounds returns the bounding box of the cortical surface mesh in
// internal (untransformed) coordinates.
func (m *MeshModel) Bounds() *geom.Bounds { return m.forward.Bounds() }

func copyFloats(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
