// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package resnetlab

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/backends"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/data"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gomlx/ml/layers/activations"
	"github.com/gomlx/gomlx/ml/layers/batchnorm"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
)

// Input images for the model-comparison part of the lab, CIFAR-scale,
// channels-last.
const (
	InputImageSize = 32
	NumChannels    = 3
	NumClasses     = 10
)

// VGGModelGraph implements train.ModelFn. It is a VGG-16 style stack of plain
// convolutions scaled down to 32x32 inputs: five stages of 3x3 convolutions
// each followed by a 2x2 max-pooling, then two large dense layers. No skip
// connections anywhere. Most of its parameters live in the dense head, which
// is why it is so much larger than the residual model of similar depth.
func VGGModelGraph(ctx *context.Context, spec any, inputs []*Node) []*Node {
	x := inputs[0]
	batchSize := x.Shape().Dimensions[0]

	layerIdx := 0
	nextCtx := func(name string) *context.Context {
		newCtx := ctx.Inf("%03d_%s", layerIdx, name)
		layerIdx++
		return newCtx
	}

	stage := func(numConvs, channels int) {
		for ii := 0; ii < numConvs; ii++ {
			x = layers.Convolution(nextCtx("conv"), x).Filters(channels).KernelSize(3).PadSame().Done()
			x = activations.Relu(x)
		}
		x = MaxPool(x).Window(2).Done()
	}
	stage(2, 64)
	stage(2, 128)
	stage(3, 256)
	stage(3, 512)
	stage(3, 512)
	x.AssertDims(batchSize, 1, 1, 512)

	x = Reshape(x, batchSize, -1)
	x = layers.DenseWithBias(nextCtx("dense"), x, 4096)
	x = activations.Relu(x)
	x = layers.DenseWithBias(nextCtx("dense"), x, 4096)
	x = activations.Relu(x)
	logits := layers.DenseWithBias(nextCtx("dense"), x, NumClasses)
	logits.AssertDims(batchSize, NumClasses)
	return []*Node{logits}
}

// ResNetModelGraph implements train.ModelFn. It is a ResNet-18 style model
// scaled down to 32x32 inputs: a small convolutional stem, four stages of two
// residual blocks each (see Block), strided transition convolutions between
// stages, and a global average pooling before a single dense layer.
//
// Despite a similar depth to VGGModelGraph, it has roughly a third of the
// parameters: global average pooling removes the need for large dense layers.
func ResNetModelGraph(ctx *context.Context, spec any, inputs []*Node) []*Node {
	x := inputs[0]
	batchSize := x.Shape().Dimensions[0]

	layerIdx := 0
	nextCtx := func(name string) *context.Context {
		newCtx := ctx.Inf("%03d_%s", layerIdx, name)
		layerIdx++
		return newCtx
	}

	stemCtx := nextCtx("stem")
	x = layers.Convolution(stemCtx, x).Filters(64).KernelSize(3).PadSame().UseBias(false).Done()
	x = batchnorm.New(stemCtx, x, -1).Done()
	x = activations.Relu(x)

	for stageIdx, channels := range []int{64, 128, 256, 512} {
		if stageIdx > 0 {
			// Strided transition: halves the spatial dimensions and changes
			// the channel count, which the residual blocks cannot do.
			transitionCtx := nextCtx("transition")
			x = layers.Convolution(transitionCtx, x).
				Filters(channels).KernelSize(3).Strides(2).PadSame().UseBias(false).Done()
			x = batchnorm.New(transitionCtx, x, -1).Done()
			x = activations.Relu(x)
		}
		for ii := 0; ii < 2; ii++ {
			x = Block(nextCtx("block"), x, channels, false)
		}
	}
	x.AssertDims(batchSize, 4, 4, 512)

	x = ReduceMean(x, 1, 2)
	logits := layers.DenseWithBias(nextCtx("dense"), x, NumClasses)
	logits.AssertDims(batchSize, NumClasses)
	return []*Node{logits}
}

// Summary of a model's size.
type Summary struct {
	Name          string
	NumParameters int
	Memory        int64
}

// String implements fmt.Stringer.
func (s Summary) String() string {
	return fmt.Sprintf("%s: %s parameters (%s)",
		s.Name, humanize.Comma(int64(s.NumParameters)), data.ByteCountIEC(s.Memory))
}

// Summarize builds modelFn once, on a dummy batch with one image, and reports
// the number of parameters of the created model and their memory usage.
// Variables are created as a side effect of building the graph, so no training
// is needed.
func Summarize(backend backends.Backend, name string, modelFn train.ModelFn) Summary {
	ctx := context.New()
	exec := context.NewExec(backend, ctx, func(ctx *context.Context, image *Node) *Node {
		return modelFn(ctx, nil, []*Node{image})[0]
	})
	dummy := tensors.FromShape(shapes.Make(dtypes.Float32, 1, InputImageSize, InputImageSize, NumChannels))
	exec.Call(dummy)
	return Summary{Name: name, NumParameters: ctx.NumParameters(), Memory: int64(ctx.Memory())}
}
