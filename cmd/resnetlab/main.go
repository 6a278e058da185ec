// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// resnetlab demonstrates residual blocks: why each weight layer must preserve
// spatial dimensions ("same" padding), and how a residual architecture
// compares to a plain VGG-style one in parameter count and memory.
//
// It runs three demonstrations:
//
//  1. A residual block applied to a dummy image batch, tracing the shape
//     after every stage.
//  2. The same block without padding: the skip connection fails with a shape
//     mismatch, reported and explained.
//  3. Parameter counts of a VGG-16 style model vs a ResNet-18 style model,
//     both scaled to 32x32 inputs.
//
// To explore how skip connections smooth the loss surface, feed a trained
// model to the loss-landscape visualizer from "Visualizing the Loss Landscape
// of Neural Nets" (Li et al., 2018), https://github.com/tomgoldstein/loss-landscape.
package main

import (
	"flag"
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"k8s.io/klog/v2"

	_ "github.com/gomlx/gomlx/backends/simplego"

	"github.com/gomlx/dllabs/resnetlab"
)

var (
	flagImageSize = flag.Int("image_size", 50, "Spatial size of the dummy input images for the block demonstrations.")
	flagChannels  = flag.Int("channels", 8, "Number of channels of the dummy input images.")
	flagModels    = flag.Bool("models", true, "Whether to build the VGG and ResNet models and compare their sizes (the slow part).")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	backend := backends.MustNew()
	fmt.Printf("Backend %q:\t%s\n\n", backend.Name(), backend.Description())

	demoPaddedBlock(backend)
	demoUnpaddedBlock(backend)
	if *flagModels {
		compareModels(backend)
	}
}

func demoPaddedBlock(backend backends.Backend) {
	fmt.Printf("Residual block with \"same\" padding on a [1, %d, %d, %d] input:\n",
		*flagImageSize, *flagImageSize, *flagChannels)
	ctx := context.New()
	exec := context.NewExec(backend, ctx, func(ctx *context.Context, x *Node) *Node {
		return resnetlab.Block(ctx, x, *flagChannels, true)
	})
	exec.Call(dummyImages())
	fmt.Printf("The output shape matches the input shape, so blocks can be stacked freely.\n\n")
}

func demoUnpaddedBlock(backend backends.Backend) {
	fmt.Printf("The same block without padding -- each 3x3 convolution shrinks the image by 2:\n")
	err := exceptions.TryCatch[error](func() {
		ctx := context.New()
		exec := context.NewExec(backend, ctx, func(ctx *context.Context, x *Node) *Node {
			return resnetlab.UnpaddedBlock(ctx, x, *flagChannels, true)
		})
		exec.Call(dummyImages())
	})
	if err == nil {
		klog.Fatal("unpadded block unexpectedly built fine!?")
	}
	fmt.Printf("\tskip connection failed, as expected: %v\n", err)
	fmt.Printf("The residual addition needs both operands with the same shape, hence the padding.\n\n")
}

func compareModels(backend backends.Backend) {
	fmt.Println("Model sizes at 32x32 inputs:")
	vgg := resnetlab.Summarize(backend, "VGG-16 style (plain)", resnetlab.VGGModelGraph)
	resnet := resnetlab.Summarize(backend, "ResNet-18 style (residual)", resnetlab.ResNetModelGraph)
	fmt.Printf("\t%s\n", vgg)
	fmt.Printf("\t%s\n", resnet)
	fmt.Printf("The residual model is deeper in effect but ~%.1fx smaller: global average\n"+
		"pooling replaces the large dense head of the VGG-style model.\n\n",
		float64(vgg.NumParameters)/float64(resnet.NumParameters))
	fmt.Println("To see how the skip connections smooth the loss surface, try the visualizer at")
	fmt.Println("https://github.com/tomgoldstein/loss-landscape (Li et al., 2018).")
}

func dummyImages() *tensors.Tensor {
	return tensors.FromShape(shapes.Make(dtypes.Float32, 1, *flagImageSize, *flagImageSize, *flagChannels))
}
