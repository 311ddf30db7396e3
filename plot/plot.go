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

// Package plot draws retinotopy models: mesh wireframes, visual area
// maps, and sampled field heat maps.
package plot

import (
	"fmt"
	"math"

	gplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"

	"github.com/visualmodel/retinotopy"
	"github.com/visualmodel/retinotopy/trimesh"
)

// XYs implements the gonum.org/v1/plot/plotter.XYer interface.
type XYs []XY

// XY is an x and y value.
type XY struct{ X, Y float64 }

// Len returns the number of X,Y pairs.
func (xys XYs) Len() int {
	return len(xys)
}

// XY return the x and y values at index i, where i < Len()
func (xys XYs) XY(i int) (float64, float64) {
	return xys[i].X, xys[i].Y
}

// MeshEdges returns the edges of m as two-point polylines, one per
// undirected edge.
func MeshEdges(m *trimesh.Mesh) []XYs {
	edges := m.Edges()
	out := make([]XYs, len(edges))
	for i, e := range edges {
		a, b := m.Vertex(e[0]), m.Vertex(e[1])
		out[i] = XYs{{X: a.X, Y: a.Y}, {X: b.X, Y: b.Y}}
	}
	return out
}

// AreaOutlines returns the cortical mesh edges separating one visual
// area from another or from unassigned cortex, as two-point
// polylines. An edge separates areas when the triangles on its two
// sides belong to different areas, counting boundary-straddling
// triangles, and the mesh border, as "no area".
func AreaOutlines(model *retinotopy.MeshModel) []XYs {
	m := model.Forward()
	labels := model.AreaLabels()

	// Area of a triangle, or 0 when its vertices' labels are not one
	// whole number.
	triArea := func(t [3]int) float64 {
		a := labels[t[0]]
		if a != math.Trunc(a) || labels[t[1]] != a || labels[t[2]] != a {
			return 0
		}
		return a
	}
	type sides struct {
		areas [2]float64
		n     int
	}
	edges := make(map[[2]int]*sides)
	for i := 0; i < m.NumTriangles(); i++ {
		t := m.Triangle(i)
		a := triArea(t)
		for j, v := range t {
			u := t[(j+1)%3]
			if u < v {
				v, u = u, v
			}
			e := [2]int{v, u}
			s := edges[e]
			if s == nil {
				s = new(sides)
				edges[e] = s
			}
			if s.n < len(s.areas) {
				s.areas[s.n] = a
			}
			s.n++
		}
	}
	var out []XYs
	for e, s := range edges {
		left := s.areas[0]
		right := 0.0 // a mesh border edge has no second side
		if s.n > 1 {
			right = s.areas[1]
		}
		if left == right {
			continue
		}
		a, b := m.Vertex(e[0]), m.Vertex(e[1])
		out = append(out, XYs{{X: a.X, Y: a.Y}, {X: b.X, Y: b.Y}})
	}
	return out
}

// Map plots a mesh model's cortical surface: the triangulation as a
// wireframe, vertices colored per visual area, and heavier lines
// along area outlines.
func Map(model *retinotopy.MeshModel) (*gplot.Plot, error) {
	p := gplot.New()
	p.Title.Text = "cortical map"
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	mesh := model.Forward()
	for _, e := range MeshEdges(mesh) {
		line, err := plotter.NewLine(e)
		if err != nil {
			return nil, fmt.Errorf("plot: %w", err)
		}
		line.Color = plotutil.Color(len(model.Areas()))
		p.Add(line)
	}

	labels := model.AreaLabels()
	for ci, area := range model.Areas() {
		var pts XYs
		for i := 0; i < mesh.NumVertices(); i++ {
			if labels[i] == float64(area) {
				v := mesh.Vertex(i)
				pts = append(pts, XY{X: v.X, Y: v.Y})
			}
		}
		scatter, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, fmt.Errorf("plot: %w", err)
		}
		scatter.GlyphStyle.Color = plotutil.Color(ci)
		scatter.GlyphStyle.Shape = plotutil.Shape(ci)
		p.Add(scatter)
		p.Legend.Add(fmt.Sprintf("area %d", area), scatter)
	}

	for _, e := range AreaOutlines(model) {
		line, err := plotter.NewLine(e)
		if err != nil {
			return nil, fmt.Errorf("plot: %w", err)
		}
		line.Width *= 2
		p.Add(line)
	}
	return p, nil
}

// Component selects which part of a sampled field to draw.
type Component int

const (
	PolarAngle Component = iota
	Eccentricity
	AreaLabel
)

// String returns the name used on the command line.
func (c Component) String() string {
	switch c {
	case PolarAngle:
		return "angle"
	case Eccentricity:
		return "eccen"
	case AreaLabel:
		return "area"
	}
	return fmt.Sprintf("component(%d)", int(c))
}

// ParseComponent is the inverse of Component.String.
func ParseComponent(s string) (Component, error) {
	switch s {
	case "angle":
		return PolarAngle, nil
	case "eccen":
		return Eccentricity, nil
	case "area":
		return AreaLabel, nil
	}
	return 0, fmt.Errorf("plot: unknown field component %q", s)
}

// fieldGridXYZ adapts one component of a sampled field to the
// plotter.GridXYZ interface.
type fieldGridXYZ struct {
	g         *retinotopy.FieldGrid
	component Component
}

func (f fieldGridXYZ) Dims() (int, int) { return f.g.Nx, f.g.Ny }

func (f fieldGridXYZ) X(c int) float64 { return f.g.Center(0, c).X }

func (f fieldGridXYZ) Y(r int) float64 { return f.g.Center(r, 0).Y }

func (f fieldGridXYZ) Z(c, r int) float64 {
	switch f.component {
	case Eccentricity:
		return f.g.Eccentricity.Get(r, c)
	case AreaLabel:
		return f.g.AreaLabel.Get(r, c)
	default:
		return f.g.PolarAngle.Get(r, c)
	}
}

// Field plots one component of a sampled field as a heat map over
// the sampled cortical region.
func Field(grid *retinotopy.FieldGrid, component Component) (*gplot.Plot, error) {
	p := gplot.New()
	p.Title.Text = component.String()
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"
	hm := plotter.NewHeatMap(fieldGridXYZ{g: grid, component: component},
		moreland.SmoothBlueRed().Palette(64))
	p.Add(hm)
	return p, nil
}
