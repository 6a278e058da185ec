// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package abalone

import (
	"fmt"

	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/ml/data"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/pkg/errors"
)

// Tensors converts the data to a features tensor shaped
// `(float32)[NumRows, NumFeatures]` and a labels tensor shaped `(float32)[NumRows, 1]`.
func (d *Data) Tensors() (features, labels *tensors.Tensor) {
	features = tensors.FromFlatDataAndDimensions(d.Features, d.NumRows, NumFeatures)
	labels = tensors.FromFlatDataAndDimensions(d.Labels, d.NumRows, 1)
	return
}

// NewDataset creates a `data.InMemoryDataset` (usable for training and
// evaluation) from the given split. It is returned unbatched and not shuffled;
// configure it with the InMemoryDataset methods.
func NewDataset(backend backends.Backend, name string, d *Data) *data.InMemoryDataset {
	features, labels := d.Tensors()
	ds, err := data.InMemoryFromData(backend, name, []any{features}, []any{labels})
	if err != nil {
		panic(errors.WithMessagef(err, "failed to create abalone dataset %q", name))
	}
	return ds
}

// PrintBatchSamples generates a couple of batches of size 3 and prints them.
// Just for debugging.
func PrintBatchSamples(backend backends.Backend, d *Data) {
	sampler := NewDataset(backend, "batched sample dataset", d).BatchSize(3, true)
	for ii := 0; ii < 2; ii++ {
		fmt.Printf("\nSample batch %d:\n", ii)
		_, inputs, labels, err := sampler.Yield()
		if err != nil {
			panic(errors.WithMessagef(err, "failed to sample batches"))
		}
		fmt.Printf("\tfeatures=%v\n", inputs[0])
		fmt.Printf("\tlabels=%v\n", labels)
	}
}
