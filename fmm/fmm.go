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
Package fmm reads and writes flat mesh model files, the text format
retinotopy mesh models are published in.

A file holds a fixed header followed by one line per vertex and one
line per triangle:

	Flat Mesh Model Version: 1.0
	Points: 4
	Triangles: 2
	Registration: fsaverage_sym
	Hemisphere: LH
	Center: 0.5,-0.8,0.1
	OnXAxis: 0.1,0.2,0.9
	Method: orthographic
	Transform: [1,0,0;0,1,0;0,0,1]
	<x>,<y> :: <theta>,<rho>,<area>
	...
	<a>,<b>,<c>
	...

Vertex lines give the flat-map position and its visual-field
measurement; triangle lines give vertex indexes. The header's center,
x-axis direction, and method describe the map projection (package
projection) that produced the flat coordinates from the named
spherical registration.
*/
package fmm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/visualmodel/retinotopy"
	"github.com/visualmodel/retinotopy/projection"
)

// Version is the only file format version this package understands.
const Version = "1.0"

// Document is the contents of one flat mesh model file.
type Document struct {
	Registration string
	Hemisphere   string
	Center       r3.Vector
	OnXAxis      r3.Vector
	Method       projection.Method

	// Transform is the 3×3 homogeneous affine matrix mapping the
	// mesh's internal flat coordinates to the published cortical
	// coordinates. Encode writes the identity if it is nil.
	Transform *mat.Dense

	Coordinates []geom.Point
	PolarAngles []float64
	Eccens      []float64
	Areas       []int
	Triangles   [][3]int
}

// Model builds the document's retinotopy mesh model.
func (d *Document) Model() (*retinotopy.MeshModel, error) {
	coords := make([][]float64, len(d.Coordinates))
	for i, p := range d.Coordinates {
		coords[i] = []float64{p.X, p.Y}
	}
	tris := make([][]int, len(d.Triangles))
	for i, t := range d.Triangles {
		tris[i] = []int{t[0], t[1], t[2]}
	}
	var xfm mat.Matrix
	if d.Transform != nil {
		xfm = d.Transform
	}
	return retinotopy.NewMeshModel(tris, coords, d.PolarAngles, d.Eccens, d.Areas, xfm)
}

// Projection builds the map projection described by the document
// header, with the package projection defaults for radius and sphere
// radius.
func (d *Document) Projection() (*projection.MapProjection, error) {
	return projection.New(d.Center, d.OnXAxis, d.Method, 0, 0)
}

// Registered builds the document's mesh model tied to its projection.
func (d *Document) Registered() (*retinotopy.RegisteredModel, error) {
	m, err := d.Model()
	if err != nil {
		return nil, err
	}
	p, err := d.Projection()
	if err != nil {
		return nil, err
	}
	return retinotopy.NewRegisteredModel(m, p)
}

// Load decodes the file at path.
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fmm: %w", err)
	}
	defer f.Close()
	d, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	return d, nil
}

// Save encodes d to the file at path.
func Save(path string, d *Document) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("fmm: %w", err)
	}
	if err := Encode(f, d); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("fmm: %w", err)
	}
	return nil
}

// lineReader reads lines one at a time and remembers the number of
// the last line read, for error messages.
type lineReader struct {
	s *bufio.Scanner
	n int
}

func (r *lineReader) next() (string, error) {
	if !r.s.Scan() {
		if err := r.s.Err(); err != nil {
			return "", fmt.Errorf("fmm: line %d: %w", r.n+1, err)
		}
		return "", fmt.Errorf("fmm: line %d: unexpected end of file", r.n+1)
	}
	r.n++
	return strings.TrimSpace(r.s.Text()), nil
}

func (r *lineReader) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("fmm: line %d: %s", r.n, fmt.Sprintf(format, args...))
}

// header reads one "Name: value" line and checks the name.
func (r *lineReader) header(name string) (string, error) {
	line, err := r.next()
	if err != nil {
		return "", err
	}
	prefix := name + ":"
	if !strings.HasPrefix(line, prefix) {
		return "", r.errorf("expected %q header, got %q", name, line)
	}
	return strings.TrimSpace(line[len(prefix):]), nil
}

// Decode reads one flat mesh model document. Errors name the line
// they were found on.
func Decode(r io.Reader) (*Document, error) {
	lr := &lineReader{s: bufio.NewScanner(r)}
	d := new(Document)

	version, err := lr.header("Flat Mesh Model Version")
	if err != nil {
		return nil, err
	}
	if version != Version {
		return nil, lr.errorf("unsupported version %q", version)
	}
	npoints, err := headerInt(lr, "Points")
	if err != nil {
		return nil, err
	}
	ntris, err := headerInt(lr, "Triangles")
	if err != nil {
		return nil, err
	}
	if d.Registration, err = lr.header("Registration"); err != nil {
		return nil, err
	}
	if d.Hemisphere, err = lr.header("Hemisphere"); err != nil {
		return nil, err
	}
	if d.Hemisphere != "LH" && d.Hemisphere != "RH" {
		return nil, lr.errorf("hemisphere %q is neither LH nor RH", d.Hemisphere)
	}
	if d.Center, err = headerVector(lr, "Center"); err != nil {
		return nil, err
	}
	if d.OnXAxis, err = headerVector(lr, "OnXAxis"); err != nil {
		return nil, err
	}
	method, err := lr.header("Method")
	if err != nil {
		return nil, err
	}
	if d.Method, err = projection.ParseMethod(method); err != nil {
		return nil, lr.errorf("%v", err)
	}
	if d.Transform, err = headerTransform(lr); err != nil {
		return nil, err
	}
	if identity(d.Transform) {
		d.Transform = nil
	}

	for i := 0; i < npoints; i++ {
		line, err := lr.next()
		if err != nil {
			return nil, err
		}
		halves := strings.SplitN(line, "::", 2)
		if len(halves) != 2 {
			return nil, lr.errorf("vertex line %q has no \"::\" separator", line)
		}
		xy, err := floatFields(halves[0], 2)
		if err != nil {
			return nil, lr.errorf("%v", err)
		}
		tra, err := floatFields(halves[1], 3)
		if err != nil {
			return nil, lr.errorf("%v", err)
		}
		area := int(tra[2])
		if float64(area) != tra[2] || area < 0 {
			return nil, lr.errorf("area label %g is not a whole non-negative number", tra[2])
		}
		d.Coordinates = append(d.Coordinates, geom.Point{X: xy[0], Y: xy[1]})
		d.PolarAngles = append(d.PolarAngles, tra[0])
		d.Eccens = append(d.Eccens, tra[1])
		d.Areas = append(d.Areas, area)
	}

	for i := 0; i < ntris; i++ {
		line, err := lr.next()
		if err != nil {
			return nil, err
		}
		var t [3]int
		fields := strings.Split(line, ",")
		if len(fields) != 3 {
			return nil, lr.errorf("triangle line %q does not have 3 fields", line)
		}
		for j, f := range fields {
			v, err := strconv.Atoi(strings.TrimSpace(f))
			if err != nil {
				return nil, lr.errorf("bad vertex index %q", f)
			}
			if v < 0 || v >= npoints {
				return nil, lr.errorf("vertex index %d outside the %d points", v, npoints)
			}
			t[j] = v
		}
		d.Triangles = append(d.Triangles, t)
	}
	return d, nil
}

func headerInt(lr *lineReader, name string) (int, error) {
	v, err := lr.header(name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, lr.errorf("bad %s count %q", strings.ToLower(name), v)
	}
	return n, nil
}

func headerVector(lr *lineReader, name string) (r3.Vector, error) {
	v, err := lr.header(name)
	if err != nil {
		return r3.Vector{}, err
	}
	f, err := floatFields(v, 3)
	if err != nil {
		return r3.Vector{}, lr.errorf("%v", err)
	}
	return r3.Vector{X: f[0], Y: f[1], Z: f[2]}, nil
}

// identity reports whether t is the identity matrix, which Encode
// writes for models without a transform of their own.
func identity(t *mat.Dense) bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			if t.At(i, j) != want {
				return false
			}
		}
	}
	return true
}

// headerTransform parses "Transform: [a,b,c;d,e,f;g,h,i]".
func headerTransform(lr *lineReader) (*mat.Dense, error) {
	v, err := lr.header("Transform")
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(v, "[") || !strings.HasSuffix(v, "]") {
		return nil, lr.errorf("transform %q is not bracketed", v)
	}
	rows := strings.Split(v[1:len(v)-1], ";")
	if len(rows) != 3 {
		return nil, lr.errorf("transform has %d rows, want 3", len(rows))
	}
	data := make([]float64, 0, 9)
	for _, row := range rows {
		f, err := floatFields(row, 3)
		if err != nil {
			return nil, lr.errorf("transform row %q: %v", row, err)
		}
		data = append(data, f...)
	}
	return mat.NewDense(3, 3, data), nil
}

// floatFields parses exactly n comma-separated numbers.
func floatFields(s string, n int) ([]float64, error) {
	fields := strings.Split(s, ",")
	if len(fields) != n {
		return nil, fmt.Errorf("%q has %d fields, want %d", strings.TrimSpace(s), len(fields), n)
	}
	out := make([]float64, n)
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", strings.TrimSpace(f))
		}
		out[i] = v
	}
	return out, nil
}

// Encode writes d in the format Decode reads. It fails if the
// document's array lengths disagree or a triangle indexes a missing
// vertex, so that an unreadable file is never produced.
func Encode(w io.Writer, d *Document) error {
	n := len(d.Coordinates)
	if len(d.PolarAngles) != n || len(d.Eccens) != n || len(d.Areas) != n {
		return fmt.Errorf("fmm: %d points but %d angles, %d eccentricities, %d areas",
			n, len(d.PolarAngles), len(d.Eccens), len(d.Areas))
	}
	for i, t := range d.Triangles {
		for _, v := range t {
			if v < 0 || v >= n {
				return fmt.Errorf("fmm: triangle %d references vertex %d, but there are %d points", i, v, n)
			}
		}
	}
	xfm := d.Transform
	if xfm == nil {
		xfm = mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	} else if r, c := xfm.Dims(); r != 3 || c != 3 {
		return fmt.Errorf("fmm: transform is %d×%d, want 3×3", r, c)
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Flat Mesh Model Version: %s\n", Version)
	fmt.Fprintf(bw, "Points: %d\n", n)
	fmt.Fprintf(bw, "Triangles: %d\n", len(d.Triangles))
	fmt.Fprintf(bw, "Registration: %s\n", d.Registration)
	fmt.Fprintf(bw, "Hemisphere: %s\n", d.Hemisphere)
	fmt.Fprintf(bw, "Center: %s\n", vectorString(d.Center))
	fmt.Fprintf(bw, "OnXAxis: %s\n", vectorString(d.OnXAxis))
	fmt.Fprintf(bw, "Method: %s\n", d.Method)
	fmt.Fprintf(bw, "Transform: [%g,%g,%g;%g,%g,%g;%g,%g,%g]\n",
		xfm.At(0, 0), xfm.At(0, 1), xfm.At(0, 2),
		xfm.At(1, 0), xfm.At(1, 1), xfm.At(1, 2),
		xfm.At(2, 0), xfm.At(2, 1), xfm.At(2, 2))
	for i, p := range d.Coordinates {
		fmt.Fprintf(bw, "%g,%g :: %g,%g,%d\n", p.X, p.Y, d.PolarAngles[i], d.Eccens[i], d.Areas[i])
	}
	for _, t := range d.Triangles {
		fmt.Fprintf(bw, "%d,%d,%d\n", t[0], t[1], t[2])
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("fmm: %w", err)
	}
	return nil
}

func vectorString(v r3.Vector) string {
	return fmt.Sprintf("%g,%g,%g", v.X, v.Y, v.Z)
}
