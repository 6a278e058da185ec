// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package resnetlab implements the building blocks for the residual-networks
// lab: a minimal residual ("skip connection") block, a deliberately broken
// variant without padding, and VGG-style vs ResNet-style model graphs used to
// compare trainable-parameter counts and memory footprints.
//
// The lab's teaching point: each weight layer (convolution + batch
// normalization) must preserve spatial dimensions, otherwise the element-wise
// addition of the skip connection fails with a shape mismatch.
package resnetlab

import (
	"fmt"

	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gomlx/ml/layers/activations"
	"github.com/gomlx/gomlx/ml/layers/batchnorm"
)

// Block applies a minimal residual block to x, shaped `[batch, height, width, channels]`
// (channels-last): two sequential weight layers (3x3 convolution + batch
// normalization), a ReLU in between, then the original x added element-wise to
// the second weight layer's output, and a final ReLU. Both convolutions use
// "same" padding, so spatial dimensions are preserved and the output shape
// equals the input shape.
//
// channels must match the input's channel count: this simplified block has no
// projection path to change the number of channels.
//
// With verbose set, it prints the shape after each stage -- shapes are static
// at graph building time, so the trace is printed when the graph is built.
func Block(ctx *context.Context, x *Node, channels int, verbose bool) *Node {
	return block(ctx, x, channels, true, verbose)
}

// UnpaddedBlock is Block without the padding fix: each 3x3 convolution shrinks
// the spatial dimensions by 2, so the skip connection's element-wise addition
// fails with a shape mismatch, raised as a graph-building panic (an exception,
// see github.com/gomlx/exceptions). This is the lab's deliberate failure, kept
// to demonstrate why padding matters.
func UnpaddedBlock(ctx *context.Context, x *Node, channels int, verbose bool) *Node {
	return block(ctx, x, channels, false, verbose)
}

func block(ctx *context.Context, x *Node, channels int, padSame, verbose bool) *Node {
	inputChannels := x.Shape().Dimensions[x.Rank()-1]
	if inputChannels != channels {
		exceptions.Panicf(
			"residual block configured for %d channels, but input has %d channels -- "+
				"this simplified block has no projection path", channels, inputChannels)
	}
	if verbose {
		fmt.Printf("\tinput:                %s\n", x.Shape())
	}
	residual := x
	for ii := 0; ii < 2; ii++ {
		layerCtx := ctx.Inf("weight_layer_%d", ii)
		conv := layers.Convolution(layerCtx, x).Filters(channels).KernelSize(3).UseBias(false)
		if padSame {
			conv = conv.PadSame()
		}
		x = conv.Done()
		x = batchnorm.New(layerCtx, x, -1).Done()
		if verbose {
			fmt.Printf("\tafter weight layer %d: %s\n", ii, x.Shape())
		}
		if ii == 0 {
			x = activations.Relu(x)
		}
	}
	// The skip connection: this is where the shape mismatch surfaces when
	// padding was dropped.
	x = Add(x, residual)
	x = activations.Relu(x)
	if verbose {
		fmt.Printf("\toutput:               %s\n", x.Shape())
	}
	return x
}
