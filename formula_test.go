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
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

// bandedFormula mirrors the two-area mesh fixture in closed form:
// each area occupies a six-unit band of cortex, x encodes the
// eccentricity and the band, y the polar angle.
func bandedFormula(t *testing.T) *FormulaModel {
	t.Helper()
	m, err := NewFormulaModel(FormulaSpec{
		Areas:        []int{2, 1}, // order must not matter
		X:            "(rho - 2) + bandwidth*(area - 1)",
		Y:            "(theta - 60)/10",
		PolarAngle:   "60 + 10*y",
		Eccentricity: "x < 4.5 ? x + 2 : x - 4",
		AreaLabel:    "x < 4.5 ? 1 : 2",
		Parameters:   map[string]float64{"bandwidth": 6},
	})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestFormulaRoundTrip(t *testing.T) {
	m := bandedFormula(t)
	if got, want := m.Areas(), []int{1, 2}; got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("areas: %v != %v", got, want)
	}
	tests := []struct{ theta, rho float64 }{
		{75, 3.5},
		{90, 4.2},
		{110, 2.0},
	}
	for _, test := range tests {
		pts := m.AngleToCortex(test.theta, test.rho)
		if len(pts) != 2 {
			t.Fatalf("got %d points, want 2", len(pts))
		}
		for ai, p := range pts {
			wantX := test.rho - 2 + 6*float64(ai)
			wantY := (test.theta - 60) / 10
			if !scalar.EqualWithinAbs(p.X, wantX, 1e-12) || !scalar.EqualWithinAbs(p.Y, wantY, 1e-12) {
				t.Errorf("area %d: (%g,%g) != (%g,%g)", ai+1, p.X, p.Y, wantX, wantY)
			}
			back := m.CortexToAngle(p.X, p.Y)
			if !scalar.EqualWithinAbs(back.PolarAngle, test.theta, 1e-12) ||
				!scalar.EqualWithinAbs(back.Eccentricity, test.rho, 1e-12) ||
				back.AreaLabel != float64(ai+1) {
				t.Errorf("area %d: round trip of (%g,%g) gave %+v", ai+1, test.theta, test.rho, back)
			}
		}
	}
}

func TestFormulaVectorization(t *testing.T) {
	m := bandedFormula(t)
	theta := []float64{75, 90, 110}
	rho := []float64{3.5, 4.2, 2}
	all, err := m.AngleToCortexAll(theta, rho)
	if err != nil {
		t.Fatal(err)
	}
	for i := range theta {
		pts := m.AngleToCortex(theta[i], rho[i])
		for ai := range all {
			if all[ai][i] != pts[ai] {
				t.Errorf("area %d input %d: %v != %v", ai, i, all[ai][i], pts[ai])
			}
		}
	}

	if _, err := m.AngleToCortexAll(theta, rho[:2]); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("error: %v", err)
	}
	if _, err := m.CortexToAngleAll([]float64{1}, nil); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("error: %v", err)
	}
}

func TestFormulaFunctions(t *testing.T) {
	// The built-in function table covers the visual-field encoding.
	m, err := NewFormulaModel(FormulaSpec{
		Areas:        []int{1},
		X:            "rho * cos(deg2rad(90 - theta))",
		Y:            "rho * sin(deg2rad(90 - theta))",
		PolarAngle:   "90 - rad2deg(atan2(y, x))",
		Eccentricity: "sqrt(pow(x, 2) + pow(y, 2))",
		AreaLabel:    "max(1, min(1, abs(1)))",
	})
	if err != nil {
		t.Fatal(err)
	}
	theta, rho := 73.0, 5.25
	p := m.AngleToCortex(theta, rho)[0]
	rad := (90 - theta) * math.Pi / 180
	if !scalar.EqualWithinAbs(p.X, rho*math.Cos(rad), 1e-12) ||
		!scalar.EqualWithinAbs(p.Y, rho*math.Sin(rad), 1e-12) {
		t.Errorf("encoded point (%g,%g)", p.X, p.Y)
	}
	back := m.CortexToAngle(p.X, p.Y)
	if !scalar.EqualWithinAbs(back.PolarAngle, theta, 1e-9) ||
		!scalar.EqualWithinAbs(back.Eccentricity, rho, 1e-9) ||
		back.AreaLabel != 1 {
		t.Errorf("round trip gave %+v", back)
	}
}

func TestFormulaConstructionErrors(t *testing.T) {
	base := func() FormulaSpec {
		return FormulaSpec{
			Areas:        []int{1},
			X:            "rho",
			Y:            "theta",
			PolarAngle:   "y",
			Eccentricity: "x",
			AreaLabel:    "1",
		}
	}
	tests := []struct {
		name   string
		mutate func(*FormulaSpec)
	}{
		{"no areas", func(s *FormulaSpec) { s.Areas = nil }},
		{"zero area", func(s *FormulaSpec) { s.Areas = []int{0, 1} }},
		{"repeated area", func(s *FormulaSpec) { s.Areas = []int{1, 1} }},
		{"missing expression", func(s *FormulaSpec) { s.X = "" }},
		{"unparsable expression", func(s *FormulaSpec) { s.Y = "theta +" }},
		{"unknown identifier", func(s *FormulaSpec) { s.Eccentricity = "eccen" }},
		{"wrong direction identifier", func(s *FormulaSpec) { s.PolarAngle = "theta" }},
		{"non-numeric result", func(s *FormulaSpec) { s.AreaLabel = "'v1'" }},
		{"bad function arity", func(s *FormulaSpec) { s.X = "sin(rho, theta)" }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			spec := base()
			test.mutate(&spec)
			if _, err := NewFormulaModel(spec); err == nil {
				t.Error("expected error")
			}
		})
	}
}
