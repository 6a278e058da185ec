// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// widthsweep trains two-layer bias-free MLPs of increasing hidden-layer width
// on the UCI Abalone regression task and reports the mean held-out test loss
// per model size, demonstrating implicit regularization: test loss keeps
// improving (or at least does not blow up) well past the point where the
// model can memorize the training data.
//
// Hyperparameters can be set with --set, e.g.:
//
//	widthsweep --set="learning_rate=0.003;sweep_epochs=200"
package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/train/optimizers"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/janpfeifer/must"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"

	_ "github.com/gomlx/gomlx/backends/simplego"

	"github.com/gomlx/dllabs/abalone"
	"github.com/gomlx/dllabs/widthsweep"
)

var (
	flagDataDir      = flag.String("data", "~/work/abalone", "Directory to cache the downloaded dataset file.")
	flagForce        = flag.Bool("force_download", false, "Force re-download of the dataset file.")
	flagWidths       = flag.String("widths", "", "Comma-separated hidden-layer widths to sweep. Empty uses the default doubling sequence.")
	flagTestFraction = flag.Float64("test_fraction", 0.25, "Fraction of the data held out for testing.")
	flagSeed         = flag.Int64("seed", 42, "Seed for the train/test split, so all widths see the same split.")
	flagPlot         = flag.String("plot", "abalone_sweep.png", "File to save the test-loss-vs-parameters plot to. Empty to skip plotting.")
)

// createDefaultContext sets the context with default hyperparameters.
func createDefaultContext() *context.Context {
	ctx := context.New()
	ctx.SetParams(map[string]any{
		optimizers.ParamOptimizer:    "adam",
		optimizers.ParamLearningRate: 0.001,

		"batch_size":      128,
		"eval_batch_size": 1000,

		widthsweep.ParamEpochs:          100,
		widthsweep.ParamRuns:            5,
		widthsweep.ParamMaxAttempts:     20,
		widthsweep.ParamRejectThreshold: 10.0,
	})
	return ctx
}

func main() {
	settings := commandline.CreateContextSettingsFlag(createDefaultContext(), "")
	klog.InitFlags(nil)
	flag.Parse()
	newCtx := func() *context.Context {
		ctx := createDefaultContext()
		must.M1(commandline.ParseContextSettings(ctx, *settings))
		return ctx
	}

	backend := backends.MustNew()
	fmt.Printf("Backend %q:\t%s\n", backend.Name(), backend.Description())

	allData := must.M1(abalone.Load(*flagDataDir, *flagForce))
	trainData, testData := allData.Split(*flagTestFraction, *flagSeed)
	fmt.Printf("UCI Abalone: %d examples (%d train, %d test), %d features each.\n\n",
		allData.NumRows, trainData.NumRows, testData.NumRows, abalone.NumFeatures)

	widths := parseWidths(*flagWidths)
	bar := progressbar.Default(int64(len(widths)), "sweeping widths")
	results := must.M1(widthsweep.Sweep(backend, newCtx, trainData, testData, widths,
		func(widthsweep.Result) { _ = bar.Add(1) }))
	_ = bar.Finish()

	fmt.Printf("\n%8s  %12s  %14s  %8s\n", "Width", "Params", "Mean test loss", "Attempts")
	for _, r := range results {
		fmt.Printf("%8d  %12s  %14.4f  %8d\n",
			r.Width, humanize.Comma(int64(r.NumParameters)), r.TestLoss, r.Attempts)
	}

	if *flagPlot != "" {
		must.M(widthsweep.Plot(results, *flagPlot))
		fmt.Printf("\nPlot saved to %s\n", *flagPlot)
	}
}

func parseWidths(spec string) []int {
	if spec == "" {
		return widthsweep.DefaultWidths
	}
	parts := strings.Split(spec, ",")
	widths := make([]int, 0, len(parts))
	for _, part := range parts {
		width, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || width <= 0 {
			klog.Fatalf("Invalid width %q in --widths=%q: must be positive integers.", part, spec)
		}
		widths = append(widths, width)
	}
	return widths
}
