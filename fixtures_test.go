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
	"testing"

	"gonum.org/v1/gonum/mat"
)

// gridArrays builds construction inputs for a rectangular grid of
// (nx+1)×(ny+1) vertices at integer cortical coordinates, each cell
// split into two triangles along its up-right diagonal. Per-vertex
// values come from the three index functions.
func gridArrays(nx, ny int, angle, eccen func(ix, iy int) float64, area func(ix, iy int) int) (tris [][]int, coords [][]float64, angles, eccens []float64, areas []int) {
	for iy := 0; iy <= ny; iy++ {
		for ix := 0; ix <= nx; ix++ {
			coords = append(coords, []float64{float64(ix), float64(iy)})
			angles = append(angles, angle(ix, iy))
			eccens = append(eccens, eccen(ix, iy))
			areas = append(areas, area(ix, iy))
		}
	}
	at := func(ix, iy int) int { return iy*(nx+1) + ix }
	for iy := 0; iy < ny; iy++ {
		for ix := 0; ix < nx; ix++ {
			tris = append(tris,
				[]int{at(ix, iy), at(ix+1, iy), at(ix+1, iy+1)},
				[]int{at(ix, iy), at(ix+1, iy+1), at(ix, iy+1)})
		}
	}
	return tris, coords, angles, eccens, areas
}

// twoAreaArrays describes an 11×7 vertex map with two visual areas
// separated by a boundary column: columns 0-4 are area 1 mapping
// eccentricities 2-6, column 5 is unlabeled, and columns 6-10 are
// area 2 mapping eccentricities 2-6 again. Polar angle runs 60-120
// degrees down the rows in both areas.
func twoAreaArrays() (tris [][]int, coords [][]float64, angles, eccens []float64, areas []int) {
	return gridArrays(10, 6,
		func(ix, iy int) float64 { return 60 + 10*float64(iy) },
		func(ix, iy int) float64 {
			if ix <= 5 {
				return 2 + float64(ix)
			}
			return float64(ix) - 4
		},
		func(ix, iy int) int {
			switch {
			case ix < 5:
				return 1
			case ix == 5:
				return 0
			default:
				return 2
			}
		})
}

func twoAreaModel(t *testing.T) *MeshModel {
	t.Helper()
	tris, coords, angles, eccens, areas := twoAreaArrays()
	m, err := NewMeshModel(tris, coords, angles, eccens, areas, nil)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

// annulusArrays describes a single-area 8×9 vertex map covering
// polar angles 80-100 degrees and eccentricities 80-87, right at the
// simulated visual-field edge.
func annulusArrays() (tris [][]int, coords [][]float64, angles, eccens []float64, areas []int) {
	return gridArrays(7, 8,
		func(ix, iy int) float64 { return 80 + 2.5*float64(iy) },
		func(ix, iy int) float64 { return 80 + float64(ix) },
		func(ix, iy int) int { return 1 })
}

func annulusModel(t *testing.T, transform mat.Matrix) *MeshModel {
	t.Helper()
	tris, coords, angles, eccens, areas := annulusArrays()
	m, err := NewMeshModel(tris, coords, angles, eccens, areas, transform)
	if err != nil {
		t.Fatal(err)
	}
	return m
}
