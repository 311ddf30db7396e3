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

	"github.com/GaryBoone/GoStats/stats"
)

// RoundTripStats summarizes how well a model's two directions agree:
// visual-field positions are mapped to the cortex and the resulting
// cortical points are mapped back. Errors on mesh models come from
// triangle-level linearization and data smoothing, so the magnitudes
// scale with mesh resolution.
type RoundTripStats struct {
	// Queries counts (area, input pair) cells attempted; Hits counts
	// cells where the area represents the visual-field position.
	Queries int
	Hits    int

	// AreaMatches counts hits whose re-queried area label, rounded
	// to the nearest whole number, is the area that was asked for.
	AreaMatches int

	// Absolute polar angle (degrees) and eccentricity differences
	// between the requested and re-queried positions, over all hits.
	PolarAngle   stats.Stats
	Eccentricity stats.Stats
}

// HitRate returns the fraction of queries that found a cortical
// image, or 0 for an empty run.
func (s *RoundTripStats) HitRate() float64 {
	if s.Queries == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Queries)
}

// AreaMatchRate returns the fraction of hits that came back with the
// queried area's label, or 0 for a run with no hits.
func (s *RoundTripStats) AreaMatchRate() float64 {
	if s.Hits == 0 {
		return 0
	}
	return float64(s.AreaMatches) / float64(s.Hits)
}

// String formats the statistics for the command line.
func (s *RoundTripStats) String() string {
	if s.Hits == 0 {
		return fmt.Sprintf("%d/%d queries hit", s.Hits, s.Queries)
	}
	return fmt.Sprintf(
		"%d/%d queries hit; %.1f%% area labels match; |Δθ| mean %.4g max %.4g sd %.4g; |Δρ| mean %.4g max %.4g sd %.4g",
		s.Hits, s.Queries, 100*s.AreaMatchRate(),
		s.PolarAngle.Mean(), s.PolarAngle.Max(), s.PolarAngle.SampleStandardDeviation(),
		s.Eccentricity.Mean(), s.Eccentricity.Max(), s.Eccentricity.SampleStandardDeviation())
}

// areaLister is satisfied by the model types in this package; round
// tripping needs to know which area each result row belongs to.
type areaLister interface {
	Areas() []int
}

// RoundTrip maps each (theta[i], rho[i]) pair to the cortex in every
// area of m and back, accumulating the disagreement between the
// requested and recovered visual-field positions. It returns
// ErrLengthMismatch if len(theta) != len(rho), and an error if m does
// not report its area labels (all models in this package do).
func RoundTrip(m Model, theta, rho []float64) (*RoundTripStats, error) {
	lister, ok := m.(areaLister)
	if !ok {
		return nil, fmt.Errorf("retinotopy: %T does not report its area labels", m)
	}
	areas := lister.Areas()
	fwd, err := m.AngleToCortexAll(theta, rho)
	if err != nil {
		return nil, err
	}
	if len(fwd) != len(areas) {
		panic(fmt.Errorf("retinotopy: %d result rows for %d areas", len(fwd), len(areas)))
	}
	s := new(RoundTripStats)
	for ai, row := range fwd {
		var xs, ys, wantTheta, wantRho []float64
		for i, p := range row {
			s.Queries++
			if IsNoPoint(p) {
				continue
			}
			xs = append(xs, p.X)
			ys = append(ys, p.Y)
			wantTheta = append(wantTheta, theta[i])
			wantRho = append(wantRho, rho[i])
		}
		back, err := m.CortexToAngleAll(xs, ys)
		if err != nil {
			return nil, err
		}
		for i, ap := range back {
			s.Hits++
			s.PolarAngle.Update(math.Abs(ap.PolarAngle - wantTheta[i]))
			s.Eccentricity.Update(math.Abs(ap.Eccentricity - wantRho[i]))
			if int(math.Round(ap.AreaLabel)) == areas[ai] {
				s.AreaMatches++
			}
		}
	}
	return s, nil
}
