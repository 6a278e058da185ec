// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package widthsweep implements the implicit-regularization lab: train a
// series of two-layer bias-free MLPs of increasing hidden-layer width on the
// UCI Abalone regression task, and report the mean held-out test loss per
// model size.
//
// Classical learning theory predicts the test loss curve to be U-shaped in the
// number of parameters; in practice (and in this lab) overparameterized models
// keep generalizing well. Each width is trained several times from fresh
// random initializations, divergent runs are rejected and retried, and the
// accepted test losses are averaged.
package widthsweep

import (
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gomlx/ml/layers/activations"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/ml/train/losses"
	"github.com/gomlx/gomlx/ml/train/optimizers"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/dllabs/abalone"
)

// Hyperparameters used by the sweep, set in the context.
const (
	// ParamEpochs is the number of training epochs per run.
	ParamEpochs = "sweep_epochs"

	// ParamRuns is the number of accepted runs averaged per width.
	ParamRuns = "sweep_runs"

	// ParamMaxAttempts bounds the total number of training attempts per width,
	// including the rejected ones. The sweep fails for a width that cannot
	// collect ParamRuns accepted runs within this budget.
	ParamMaxAttempts = "sweep_max_attempts"

	// ParamRejectThreshold is the test loss (MSE) above which a run is
	// considered diverged, discarded and retried with a fresh initialization.
	ParamRejectThreshold = "sweep_reject_threshold"
)

// DefaultWidths swept when none are given: doubling hidden-layer widths, from
// underparameterized to heavily overparameterized relative to the ~4K example
// dataset.
var DefaultWidths = []int{1, 2, 4, 8, 16, 32, 64, 128, 256, 512}

// NewModelGraph returns a train.ModelFn for a two-layer MLP with the given
// hidden-layer width and no bias terms anywhere: a dense layer from
// abalone.NumFeatures inputs to width hidden units, a ReLU, and a dense layer
// to a single output, again followed by a ReLU since ring counts are
// non-negative.
func NewModelGraph(width int) train.ModelFn {
	return func(ctx *context.Context, spec any, inputs []*Node) []*Node {
		x := inputs[0]
		batchSize := x.Shape().Dimensions[0]
		x.AssertDims(batchSize, abalone.NumFeatures)
		x = layers.Dense(ctx.In("hidden"), x, false, width)
		x = activations.Relu(x)
		x = layers.Dense(ctx.In("output"), x, false, 1)
		x = activations.Relu(x)
		x.AssertDims(batchSize, 1)
		return []*Node{x}
	}
}

// NumParameters of the model created by NewModelGraph for the given width:
// with no biases, (abalone.NumFeatures+1)*width.
func NumParameters(width int) int {
	return (abalone.NumFeatures + 1) * width
}

// Result of the sweep at one width.
type Result struct {
	Width         int
	NumParameters int

	// TestLoss is the mean squared error on the test split, averaged over the
	// accepted runs.
	TestLoss float64

	// Attempts used to collect the accepted runs, including rejected ones.
	Attempts int
}

// TrainOnce trains a fresh model of the given width on trainDS and returns its
// final mean squared error on testDS. Hyperparameters (epochs, learning rate,
// optimizer) are read from ctx, whose variables must not have been created yet.
func TrainOnce(backend backends.Backend, ctx *context.Context, trainDS, testDS train.Dataset, width int) (float64, error) {
	trainer := train.NewTrainer(backend, ctx, NewModelGraph(width),
		losses.MeanSquaredError,
		optimizers.FromContext(ctx),
		nil, nil) // trainMetrics, evalMetrics: the default loss metrics suffice.
	loop := train.NewLoop(trainer)
	epochs := context.GetParamOr(ctx, ParamEpochs, 100)
	if _, err := loop.RunEpochs(trainDS, epochs); err != nil {
		return 0, errors.WithMessagef(err, "failed training width=%d", width)
	}

	var loss float64
	err := exceptions.TryCatch[error](func() {
		loss = metricToFloat(trainer.Eval(testDS)[0])
	})
	if err != nil {
		return 0, errors.WithMessagef(err, "failed evaluating width=%d", width)
	}
	return loss, nil
}

// runTrials calls runFn until `runs` results below threshold are collected,
// giving up after maxAttempts total calls. It returns the mean of the accepted
// results and the number of attempts used.
func runTrials(runFn func() (float64, error), runs, maxAttempts int, threshold float64) (meanLoss float64, attempts int, err error) {
	if runs <= 0 {
		return 0, 0, errors.Errorf("%q must be positive, got %d", ParamRuns, runs)
	}
	var accepted []float64
	for len(accepted) < runs {
		if attempts >= maxAttempts {
			return 0, attempts, errors.Errorf(
				"only %d of %d runs reached test loss below %g after %d attempts -- "+
					"increase %q or loosen %q", len(accepted), runs, threshold, attempts,
				ParamMaxAttempts, ParamRejectThreshold)
		}
		attempts++
		loss, runErr := runFn()
		if runErr != nil {
			return 0, attempts, runErr
		}
		if math.IsNaN(loss) || loss >= threshold {
			// Diverged run: discard and retry with a fresh initialization.
			klog.V(1).Infof("rejected run with test loss %g (threshold %g), attempt %d of %d",
				loss, threshold, attempts, maxAttempts)
			continue
		}
		accepted = append(accepted, loss)
	}
	for _, loss := range accepted {
		meanLoss += loss
	}
	meanLoss /= float64(len(accepted))
	return meanLoss, attempts, nil
}

// SweepWidth trains one width, retrying and averaging per the sweep
// hyperparameters. newCtx must return a fresh context with the hyperparameters
// set: each attempt gets its own context, with the RNG state reset so retried
// runs draw different initializations.
func SweepWidth(backend backends.Backend, newCtx func() *context.Context, trainData, testData *abalone.Data, width int) (Result, error) {
	hyperCtx := newCtx()
	runs := context.GetParamOr(hyperCtx, ParamRuns, 5)
	maxAttempts := context.GetParamOr(hyperCtx, ParamMaxAttempts, 20)
	threshold := context.GetParamOr(hyperCtx, ParamRejectThreshold, 10.0)
	batchSize := context.GetParamOr(hyperCtx, "batch_size", 128)
	evalBatchSize := context.GetParamOr(hyperCtx, "eval_batch_size", batchSize)

	baseTrain := abalone.NewDataset(backend, "abalone-train", trainData)
	baseTest := abalone.NewDataset(backend, "abalone-test", testData)
	runFn := func() (float64, error) {
		ctx := newCtx()
		ctx.RngStateReset()
		trainDS := baseTrain.Copy().BatchSize(batchSize, true).Shuffle()
		testDS := baseTest.Copy().BatchSize(evalBatchSize, false)
		return TrainOnce(backend, ctx, trainDS, testDS, width)
	}

	meanLoss, attempts, err := runTrials(runFn, runs, maxAttempts, threshold)
	return Result{
		Width:         width,
		NumParameters: NumParameters(width),
		TestLoss:      meanLoss,
		Attempts:      attempts,
	}, err
}

// Sweep runs SweepWidth for each of the widths, in order. If onResult is not
// nil it is called after each width finishes, for progress reporting.
func Sweep(backend backends.Backend, newCtx func() *context.Context, trainData, testData *abalone.Data, widths []int, onResult func(Result)) ([]Result, error) {
	if len(widths) == 0 {
		widths = DefaultWidths
	}
	results := make([]Result, 0, len(widths))
	for _, width := range widths {
		r, err := SweepWidth(backend, newCtx, trainData, testData, width)
		if err != nil {
			return results, err
		}
		results = append(results, r)
		if onResult != nil {
			onResult(r)
		}
	}
	return results, nil
}

func metricToFloat(t *tensors.Tensor) float64 {
	switch v := t.Value().(type) {
	case float32:
		return float64(v)
	case float64:
		return v
	default:
		exceptions.Panicf("unexpected metric tensor %s, wanted a float scalar", t.Shape())
	}
	return 0 // Never reached.
}
