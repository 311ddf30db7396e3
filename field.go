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
	"runtime"
	"sync"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
)

// FieldGrid holds a retinotopy model sampled on a regular grid of
// cortical positions: the visual-field triple at the center of each
// cell, one array per component, each with shape (Ny, Nx). Cells
// outside the mapped region hold the zero triple.
type FieldGrid struct {
	Bounds *geom.Bounds
	Nx, Ny int

	PolarAngle   *sparse.DenseArray
	Eccentricity *sparse.DenseArray
	AreaLabel    *sparse.DenseArray
}

// Center returns the cortical position of the center of cell
// (row i, column j).
func (g *FieldGrid) Center(i, j int) geom.Point {
	dx := (g.Bounds.Max.X - g.Bounds.Min.X) / float64(g.Nx)
	dy := (g.Bounds.Max.Y - g.Bounds.Min.Y) / float64(g.Ny)
	return geom.Point{
		X: g.Bounds.Min.X + (float64(j)+0.5)*dx,
		Y: g.Bounds.Min.Y + (float64(i)+0.5)*dy,
	}
}

// SampleField evaluates the model at the centers of a regular nx×ny
// grid of cells covering b. Rows are spread across GOMAXPROCS
// goroutines; each row is one batch query against the model.
func SampleField(model Model, b *geom.Bounds, nx, ny int) (*FieldGrid, error) {
	if b == nil {
		return nil, fmt.Errorf("retinotopy: nil sample bounds")
	}
	if nx < 1 || ny < 1 {
		return nil, fmt.Errorf("retinotopy: sample grid is %d×%d cells", nx, ny)
	}
	dx := (b.Max.X - b.Min.X) / float64(nx)
	dy := (b.Max.Y - b.Min.Y) / float64(ny)
	if !(dx > 0) || !(dy > 0) {
		return nil, fmt.Errorf("retinotopy: sample bounds %v have no extent", b)
	}
	g := &FieldGrid{
		Bounds:       &geom.Bounds{Min: b.Min, Max: b.Max},
		Nx:           nx,
		Ny:           ny,
		PolarAngle:   sparse.ZerosDense(ny, nx),
		Eccentricity: sparse.ZerosDense(ny, nx),
		AreaLabel:    sparse.ZerosDense(ny, nx),
	}
	xs := make([]float64, nx)
	for j := range xs {
		xs[j] = b.Min.X + (float64(j)+0.5)*dx
	}
	nprocs := runtime.GOMAXPROCS(0)
	errs := make([]error, nprocs)
	var wg sync.WaitGroup
	for p := 0; p < nprocs; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			ys := make([]float64, nx)
			for i := p; i < ny; i += nprocs {
				y := b.Min.Y + (float64(i)+0.5)*dy
				for j := range ys {
					ys[j] = y
				}
				row, err := model.CortexToAngleAll(xs, ys)
				if err != nil {
					errs[p] = err
					return
				}
				for j, ap := range row {
					g.PolarAngle.Set(ap.PolarAngle, i, j)
					g.Eccentricity.Set(ap.Eccentricity, i, j)
					g.AreaLabel.Set(ap.AreaLabel, i, j)
				}
			}
		}(p)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return g, nil
}
