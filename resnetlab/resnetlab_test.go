// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package resnetlab

import (
	"os"
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	_ "github.com/gomlx/gomlx/backends/simplego"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	// Tests run on the pure Go backend, if not otherwise configured.
	if os.Getenv(backends.ConfigEnvVar) == "" {
		_ = os.Setenv(backends.ConfigEnvVar, "go")
	}
}

func TestBlockPreservesShape(t *testing.T) {
	backend := backends.MustNew()
	ctx := context.New()
	exec := context.NewExec(backend, ctx, func(ctx *context.Context, x *Node) *Node {
		return Block(ctx, x, 8, false)
	})
	input := tensors.FromShape(shapes.Make(dtypes.Float32, 2, 50, 50, 8))
	outputs := exec.Call(input)
	require.Len(t, outputs, 1)
	assert.Equal(t, []int{2, 50, 50, 8}, outputs[0].Shape().Dimensions)
}

func TestUnpaddedBlockFails(t *testing.T) {
	backend := backends.MustNew()
	ctx := context.New()
	// Each unpadded 3x3 convolution shrinks 50x50 to 48x48 and then 46x46, so
	// the skip connection's addition must fail at graph building time.
	err := exceptions.TryCatch[error](func() {
		exec := context.NewExec(backend, ctx, func(ctx *context.Context, x *Node) *Node {
			return UnpaddedBlock(ctx, x, 8, false)
		})
		exec.Call(tensors.FromShape(shapes.Make(dtypes.Float32, 2, 50, 50, 8)))
	})
	require.Error(t, err)
}

func TestBlockChannelMismatch(t *testing.T) {
	backend := backends.MustNew()
	ctx := context.New()
	err := exceptions.TryCatch[error](func() {
		exec := context.NewExec(backend, ctx, func(ctx *context.Context, x *Node) *Node {
			return Block(ctx, x, 16, false) // Input has 8 channels.
		})
		exec.Call(tensors.FromShape(shapes.Make(dtypes.Float32, 2, 50, 50, 8)))
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no projection path")
}

func TestModelSizes(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping model building in -short mode: full forward pass on the Go backend")
	}
	backend := backends.MustNew()
	vgg := Summarize(backend, "VGG-16 (scaled to 32x32)", VGGModelGraph)
	resnet := Summarize(backend, "ResNet-18 (scaled to 32x32)", ResNetModelGraph)

	// Both are many-million-parameter models, but the residual model is much
	// smaller: no large dense head thanks to global average pooling.
	assert.Greater(t, vgg.NumParameters, 20_000_000)
	assert.Greater(t, resnet.NumParameters, 5_000_000)
	assert.Greater(t, vgg.NumParameters, 2*resnet.NumParameters)

	// All parameters are float32.
	assert.Equal(t, int64(4*vgg.NumParameters), vgg.Memory)
}
