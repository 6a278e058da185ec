// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package widthsweep

import (
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Plot writes a PNG chart of the mean test loss against the number of
// parameters, one point per swept width, with a log-scaled X axis.
func Plot(results []Result, filePath string) error {
	if len(results) == 0 {
		return errors.New("no sweep results to plot")
	}
	p := plot.New()
	p.Title.Text = "Test loss vs model size (UCI Abalone)"
	p.X.Label.Text = "Number of parameters"
	p.X.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Y.Label.Text = "Mean test loss (MSE)"

	pts := make(plotter.XYs, len(results))
	for ii, r := range results {
		pts[ii].X = float64(r.NumParameters)
		pts[ii].Y = r.TestLoss
	}
	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return errors.Wrap(err, "failed to build test loss plot")
	}
	p.Add(plotter.NewGrid(), line, points)
	if err := p.Save(8*vg.Inch, 5*vg.Inch, filePath); err != nil {
		return errors.Wrapf(err, "failed to save plot to %q", filePath)
	}
	return nil
}
