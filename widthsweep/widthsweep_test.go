// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package widthsweep

import (
	"math"
	"math/rand"
	"os"
	"testing"

	"github.com/gomlx/gomlx/backends"
	_ "github.com/gomlx/gomlx/backends/simplego"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/train/optimizers"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/dllabs/abalone"
)

func init() {
	// Tests run on the pure Go backend, if not otherwise configured.
	if os.Getenv(backends.ConfigEnvVar) == "" {
		_ = os.Setenv(backends.ConfigEnvVar, "go")
	}
}

func TestNumParameters(t *testing.T) {
	backend := backends.MustNew()
	for _, width := range []int{1, 4, 32} {
		ctx := context.New()
		exec := context.NewExec(backend, ctx, func(ctx *context.Context, x *Node) *Node {
			return NewModelGraph(width)(ctx, nil, []*Node{x})[0]
		})
		exec.Call(tensors.FromShape(shapes.Make(dtypes.Float32, 3, abalone.NumFeatures)))

		// Bias-free: (NumFeatures+1)*width weights, and nothing else.
		assert.Equal(t, NumParameters(width), ctx.NumParameters(), "width=%d", width)
		assert.Equal(t, (abalone.NumFeatures+1)*width, NumParameters(width))
	}
}

func TestRunTrials(t *testing.T) {
	t.Run("all accepted", func(t *testing.T) {
		losses := []float64{2, 4, 6}
		next := 0
		mean, attempts, err := runTrials(func() (float64, error) {
			loss := losses[next]
			next++
			return loss, nil
		}, 3, 10, 10.0)
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
		assert.InDelta(t, 4.0, mean, 1e-9)
	})

	t.Run("rejected runs are retried", func(t *testing.T) {
		losses := []float64{50, math.NaN(), 2, 100, 4}
		next := 0
		mean, attempts, err := runTrials(func() (float64, error) {
			loss := losses[next]
			next++
			return loss, nil
		}, 2, 10, 10.0)
		require.NoError(t, err)
		assert.Equal(t, 5, attempts)
		assert.InDelta(t, 3.0, mean, 1e-9)
	})

	t.Run("attempts budget exhausted", func(t *testing.T) {
		_, attempts, err := runTrials(func() (float64, error) {
			return 999, nil // Always above threshold.
		}, 2, 4, 10.0)
		require.Error(t, err)
		assert.Equal(t, 4, attempts)
		assert.Contains(t, err.Error(), ParamMaxAttempts)
	})

	t.Run("non-positive runs rejected", func(t *testing.T) {
		mean, attempts, err := runTrials(func() (float64, error) {
			t.Fatal("runFn must not be called")
			return 0, nil
		}, 0, 10, 10.0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), ParamRuns)
		assert.Zero(t, attempts)
		assert.False(t, math.IsNaN(mean))
	})

	t.Run("run errors abort", func(t *testing.T) {
		brokenErr := errors.New("backend exploded")
		_, _, err := runTrials(func() (float64, error) {
			return 0, brokenErr
		}, 2, 10, 10.0)
		require.ErrorIs(t, err, brokenErr)
	})
}

// syntheticData builds a small dataset with the abalone layout and labels that
// are a noiseless linear function of the features, so even tiny models can fit
// it in a few epochs.
func syntheticData(numRows int, seed int64) *abalone.Data {
	d := &abalone.Data{
		NumRows:  numRows,
		Features: make([]float32, numRows*abalone.NumFeatures),
		Labels:   make([]float32, numRows),
	}
	rng := rand.New(rand.NewSource(seed))
	for row := 0; row < numRows; row++ {
		var sum float32
		for colNum := 0; colNum < abalone.NumFeatures; colNum++ {
			v := rng.Float32()
			d.Features[row*abalone.NumFeatures+colNum] = v
			sum += v
		}
		d.Labels[row] = sum
	}
	return d
}

func TestSweepWidth(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping training in -short mode")
	}
	backend := backends.MustNew()
	newCtx := func() *context.Context {
		ctx := context.New()
		ctx.SetParams(map[string]any{
			optimizers.ParamOptimizer:    "adam",
			optimizers.ParamLearningRate: 0.01,
			"batch_size":                 16,
			ParamEpochs:                  20,
			ParamRuns:                    1,
			ParamMaxAttempts:             3,
			ParamRejectThreshold:         1e6, // Accept any run, the test only checks plumbing.
		})
		return ctx
	}
	trainData := syntheticData(128, 1)
	testData := syntheticData(32, 2)

	r, err := SweepWidth(backend, newCtx, trainData, testData, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, r.Width)
	assert.Equal(t, NumParameters(4), r.NumParameters)
	assert.Equal(t, 1, r.Attempts)
	assert.False(t, math.IsNaN(r.TestLoss))
	assert.GreaterOrEqual(t, r.TestLoss, 0.0)
}
