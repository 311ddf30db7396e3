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

package main

import (
	"encoding/csv"
	"encoding/gob"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot/vg"

	"github.com/visualmodel/retinotopy"
	"github.com/visualmodel/retinotopy/plot"
	"github.com/visualmodel/retinotopy/registry"
)

func init() {
	rootCmd.AddCommand(infoCmd, convertCmd, sampleCmd, plotCmd, fetchCmd)
}

var checkPoints int

var infoCmd = &cobra.Command{
	Use:   "info <model>",
	Short: "describe a model",
	Long: `info prints a model's size, visual areas, coordinate bounds, and
transform. With --check it also maps a grid of visual-field positions
to the cortex and back and reports how well the two directions agree.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		model, err := loadModel(args[0])
		if err != nil {
			return err
		}
		mm, ok := meshModel(model)
		if !ok {
			return fmt.Errorf("%s is not a mesh model", args[0])
		}
		w := cmd.OutOrStdout()
		fwd := mm.Forward()
		fmt.Fprintf(w, "model: %s\n", args[0])
		fmt.Fprintf(w, "vertices: %d\n", fwd.NumVertices())
		fmt.Fprintf(w, "triangles: %d\n", fwd.NumTriangles())
		areas := mm.Areas()
		fmt.Fprintf(w, "areas: %v\n", areas)
		for _, a := range areas {
			fmt.Fprintf(w, "  area %d: %d triangles\n", a, mm.Inverse(a).NumTriangles())
		}
		b := mm.Bounds()
		fmt.Fprintf(w, "bounds: x %g to %g, y %g to %g\n", b.Min.X, b.Max.X, b.Min.Y, b.Max.Y)
		if t := mm.Transform(); t != nil {
			fmt.Fprintf(w, "transform:\n  %v\n", mat.Formatted(t, mat.Prefix("  "), mat.Squeeze()))
		} else {
			fmt.Fprintln(w, "transform: identity")
		}
		proj := model.Projection()
		fmt.Fprintf(w, "projection: %s centered on (%g,%g,%g)\n",
			proj.Method(), proj.Center().X, proj.Center().Y, proj.Center().Z)

		if checkPoints > 0 {
			stats, err := checkRoundTrip(mm, checkPoints)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "round trip: %v\n", stats)
		}
		return nil
	},
}

func init() {
	infoCmd.Flags().IntVar(&checkPoints, "check", 0,
		"round-trip roughly this many visual-field positions and report the error")
}

// checkRoundTrip round-trips a grid of roughly n visual-field
// positions spanning the model's measured angle and eccentricity
// ranges.
func checkRoundTrip(mm *retinotopy.MeshModel, n int) (*retinotopy.RoundTripStats, error) {
	angles := mm.PolarAngles()
	eccens := mm.Eccentricities()
	minT, maxT := floats.Min(angles), floats.Max(angles)
	minR, maxR := floats.Min(eccens), floats.Max(eccens)
	side := int(math.Ceil(math.Sqrt(float64(n))))
	var theta, rho []float64
	for i := 0; i < side; i++ {
		t := minT + (maxT-minT)*(float64(i)+0.5)/float64(side)
		for j := 0; j < side; j++ {
			theta = append(theta, t)
			rho = append(rho, minR+(maxR-minR)*(float64(j)+0.5)/float64(side))
		}
	}
	return retinotopy.RoundTrip(mm, theta, rho)
}

var (
	convertModel     *string
	convertDirection string
	convertIn        string
	convertOut       string
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "convert coordinates between the cortex and the visual field",
	Long: `convert reads two-column CSV records and writes one converted record
per input. Direction cortex-to-angle reads x,y and writes
x,y,angle,eccen,area; direction angle-to-cortex reads theta,rho and
writes theta,rho,area,x,y with one record per visual area (missing
positions write empty x and y).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		model, err := loadModel(*convertModel)
		if err != nil {
			return err
		}
		in := io.Reader(os.Stdin)
		if convertIn != "" {
			f, err := os.Open(convertIn)
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		out := io.Writer(cmd.OutOrStdout())
		if convertOut != "" {
			f, err := os.Create(convertOut)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		a, b, err := readPairs(in)
		if err != nil {
			return err
		}
		w := csv.NewWriter(out)
		defer w.Flush()
		switch convertDirection {
		case "cortex-to-angle":
			res, err := model.CortexToAngleAll(a, b)
			if err != nil {
				return err
			}
			for i, ap := range res {
				err := w.Write([]string{
					formatFloat(a[i]), formatFloat(b[i]),
					formatFloat(ap.PolarAngle), formatFloat(ap.Eccentricity), formatFloat(ap.AreaLabel),
				})
				if err != nil {
					return err
				}
			}
		case "angle-to-cortex":
			res, err := model.AngleToCortexAll(a, b)
			if err != nil {
				return err
			}
			areas := modelAreas(model)
			for i := range a {
				for ai, row := range res {
					rec := []string{formatFloat(a[i]), formatFloat(b[i]), strconv.Itoa(areas[ai]), "", ""}
					if p := row[i]; !retinotopy.IsNoPoint(p) {
						rec[3], rec[4] = formatFloat(p.X), formatFloat(p.Y)
					}
					if err := w.Write(rec); err != nil {
						return err
					}
				}
			}
		default:
			return fmt.Errorf("unknown direction %q; want cortex-to-angle or angle-to-cortex", convertDirection)
		}
		return nil
	},
}

func init() {
	convertModel = modelFlag(convertCmd.Flags())
	convertCmd.Flags().StringVar(&convertDirection, "direction", "cortex-to-angle",
		"cortex-to-angle or angle-to-cortex")
	convertCmd.Flags().StringVar(&convertIn, "in", "", "input CSV file (default standard input)")
	convertCmd.Flags().StringVar(&convertOut, "out", "", "output CSV file (default standard output)")
}

// modelAreas returns the area labels of a model known to report them.
func modelAreas(model *retinotopy.RegisteredModel) []int {
	if mm, ok := meshModel(model); ok {
		return mm.Areas()
	}
	if fm, ok := model.Model.(*retinotopy.FormulaModel); ok {
		return fm.Areas()
	}
	return nil
}

// readPairs reads two-column CSV records into two slices.
func readPairs(in io.Reader) (a, b []float64, err error) {
	r := csv.NewReader(in)
	r.FieldsPerRecord = 2
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return a, b, nil
		}
		if err != nil {
			return nil, nil, err
		}
		va, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
		if err != nil {
			return nil, nil, fmt.Errorf("bad number %q", rec[0])
		}
		vb, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return nil, nil, fmt.Errorf("bad number %q", rec[1])
		}
		a = append(a, va)
		b = append(b, vb)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

var (
	sampleModel  *string
	sampleNx     int
	sampleNy     int
	sampleBounds string
	sampleOut    string
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "sample a model on a regular cortical grid",
	Long: `sample evaluates the model at the centers of a regular grid of
cortical positions and writes the sampled field. Output files ending
in .gob are written as gob; everything else is CSV records of
row,column,x,y,angle,eccen,area.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		model, err := loadModel(*sampleModel)
		if err != nil {
			return err
		}
		b, err := sampleRegion(model, sampleBounds)
		if err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{"nx": sampleNx, "ny": sampleNy}).
			Debug("sampling field")
		grid, err := retinotopy.SampleField(model, b, sampleNx, sampleNy)
		if err != nil {
			return err
		}
		out := io.Writer(cmd.OutOrStdout())
		if sampleOut != "" {
			f, err := os.Create(sampleOut)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		if strings.HasSuffix(sampleOut, ".gob") {
			return gob.NewEncoder(out).Encode(grid)
		}
		return writeGridCSV(out, grid)
	},
}

func init() {
	sampleModel = modelFlag(sampleCmd.Flags())
	sampleCmd.Flags().IntVar(&sampleNx, "nx", 100, "grid columns")
	sampleCmd.Flags().IntVar(&sampleNy, "ny", 100, "grid rows")
	sampleCmd.Flags().StringVar(&sampleBounds, "bounds", "",
		"cortical region minx,miny,maxx,maxy (default the model's bounds)")
	sampleCmd.Flags().StringVar(&sampleOut, "out", "", "output file (default standard output)")
}

// sampleRegion picks the cortical region to sample: the --bounds flag
// if given, the model's own bounds otherwise.
func sampleRegion(model *retinotopy.RegisteredModel, flag string) (*geom.Bounds, error) {
	if flag != "" {
		fields := strings.Split(flag, ",")
		if len(fields) != 4 {
			return nil, fmt.Errorf("bounds %q do not have 4 fields", flag)
		}
		var v [4]float64
		for i, f := range fields {
			var err error
			if v[i], err = strconv.ParseFloat(strings.TrimSpace(f), 64); err != nil {
				return nil, fmt.Errorf("bad bounds number %q", f)
			}
		}
		return &geom.Bounds{
			Min: geom.Point{X: v[0], Y: v[1]},
			Max: geom.Point{X: v[2], Y: v[3]},
		}, nil
	}
	mm, ok := meshModel(model)
	if !ok {
		return nil, fmt.Errorf("the model has no bounds of its own; use --bounds")
	}
	return mm.Bounds(), nil
}

func writeGridCSV(out io.Writer, grid *retinotopy.FieldGrid) error {
	w := csv.NewWriter(out)
	defer w.Flush()
	for i := 0; i < grid.Ny; i++ {
		for j := 0; j < grid.Nx; j++ {
			c := grid.Center(i, j)
			err := w.Write([]string{
				strconv.Itoa(i), strconv.Itoa(j),
				formatFloat(c.X), formatFloat(c.Y),
				formatFloat(grid.PolarAngle.Get(i, j)),
				formatFloat(grid.Eccentricity.Get(i, j)),
				formatFloat(grid.AreaLabel.Get(i, j)),
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

var (
	plotModel *string
	plotOut   string
	plotField string
	plotNx    int
	plotNy    int
)

var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "draw a model",
	Long: `plot draws the model's cortical map: by default the triangulation
with vertices colored per visual area, or with --field a heat map of
one sampled field component (angle, eccen, or area). The output
format follows the file extension (png, pdf, svg, ...).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		model, err := loadModel(*plotModel)
		if err != nil {
			return err
		}
		mm, ok := meshModel(model)
		if !ok {
			return fmt.Errorf("%s is not a mesh model", *plotModel)
		}
		if plotField != "" {
			component, err := plot.ParseComponent(plotField)
			if err != nil {
				return err
			}
			grid, err := retinotopy.SampleField(model, mm.Bounds(), plotNx, plotNy)
			if err != nil {
				return err
			}
			p, err := plot.Field(grid, component)
			if err != nil {
				return err
			}
			return p.Save(8*vg.Inch, 6*vg.Inch, plotOut)
		}
		p, err := plot.Map(mm)
		if err != nil {
			return err
		}
		return p.Save(8*vg.Inch, 6*vg.Inch, plotOut)
	},
}

func init() {
	plotModel = modelFlag(plotCmd.Flags())
	plotCmd.Flags().StringVar(&plotOut, "out", "map.png", "output image file")
	plotCmd.Flags().StringVar(&plotField, "field", "",
		"draw a sampled field component (angle, eccen, or area) instead of the mesh")
	plotCmd.Flags().IntVar(&plotNx, "nx", 200, "field sample columns")
	plotCmd.Flags().IntVar(&plotNy, "ny", 200, "field sample rows")
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <name>",
	Short: "download a model file into the cache",
	Long: `fetch resolves a model name and makes sure its file is available
locally, downloading it into the cache directory if need be, and
prints the local path. Built-in model names:

  ` + strings.Join(sortedBuiltins(), "\n  "),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := loader.Fetch(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func sortedBuiltins() []string {
	names := registry.BuiltinNames()
	sort.Strings(names)
	return names
}
