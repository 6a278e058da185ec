// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package abalone downloads and parses the UCI Abalone dataset, and wraps it
// into `data.InMemoryDataset` objects for training and evaluation.
//
// The dataset is a small tabular regression task: predict the number of shell
// rings (a proxy for age) from one categorical field (sex) and seven numeric
// morphometric measurements. After encoding sex as a single binary feature,
// each example is a vector of NumFeatures float32 values.
//
// Mostly one will want to call Load to download (or reuse a cached copy of)
// the CSV file and parse it, Data.Split to separate train and test splits,
// and NewDataset to create datasets for training and evaluating.
package abalone

import (
	"io"
	"math/rand"
	"os"
	"path"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/gomlx/gomlx/ml/data"
	"github.com/pkg/errors"
)

const (
	// DataURL is where the dataset file is downloaded from.
	DataURL = "https://archive.ics.uci.edu/ml/machine-learning-databases/abalone/abalone.data"

	// DataFile is the name used to save the downloaded dataset in the data directory.
	DataFile = "abalone.data"

	// NumFeatures per example, after the sex column is encoded as one binary value.
	NumFeatures = 8
)

// Column names:
const (
	SexCol   = "sex"   // Categorical: "M", "F" or "I" (infant).
	RingsCol = "rings" // The target prediction column.
)

var (
	// FieldNames in the dataset file, in column order. The file has no header row.
	FieldNames = []string{
		SexCol, "length", "diameter", "height", "whole-weight",
		"shucked-weight", "viscera-weight", "shell-weight", RingsCol,
	}

	// fieldTypes maps each field (column) name to its format.
	fieldTypes = map[string]series.Type{
		SexCol:           series.String,
		"length":         series.Float,
		"diameter":       series.Float,
		"height":         series.Float,
		"whole-weight":   series.Float,
		"shucked-weight": series.Float,
		"viscera-weight": series.Float,
		"shell-weight":   series.Float,
		RingsCol:         series.Float,
	}
)

// Data holds the dataset stripped of all metadata: the sex column encoded to
// a binary float, everything in flat slices ready to be converted to tensors.
type Data struct {
	NumRows int

	// Features is shaped `[NumRows, NumFeatures]`: column 0 is the binary
	// encoding of sex, followed by the seven numeric fields in FieldNames order.
	Features []float32

	// Labels is shaped `[NumRows]`: the number of rings.
	Labels []float32
}

// Download the dataset file into dir, reusing a previously downloaded copy if
// present -- except if force is set. It returns the path of the local file.
func Download(dir string, force bool) (string, error) {
	dir = data.ReplaceTildeInDir(dir)
	if !data.FileExists(dir) {
		if err := os.MkdirAll(dir, 0777); err != nil {
			return "", errors.Wrapf(err, "failed to create data directory %q", dir)
		}
	}
	filePath := path.Join(dir, DataFile)
	if force {
		if _, err := data.Download(DataURL, filePath, true); err != nil {
			return "", err
		}
		return filePath, nil
	}
	if err := data.DownloadIfMissing(DataURL, filePath, ""); err != nil {
		return "", err
	}
	return filePath, nil
}

// ReadDataFrame parses the raw CSV contents of the dataset.
func ReadDataFrame(r io.Reader) dataframe.DataFrame {
	return dataframe.ReadCSV(r, dataframe.HasHeader(false),
		dataframe.Names(FieldNames...), dataframe.WithTypes(fieldTypes))
}

// FromDataFrame converts the parsed dataframe to flat Data, encoding the sex
// column as a single binary feature: 1.0 for male, 0.0 otherwise.
func FromDataFrame(df dataframe.DataFrame) *Data {
	d := &Data{NumRows: df.Nrow()}
	d.Features = make([]float32, d.NumRows*NumFeatures)
	d.Labels = make([]float32, d.NumRows)

	for rowNum, value := range df.Col(SexCol).Records() {
		if value == "M" {
			d.Features[rowNum*NumFeatures] = 1.0
		}
	}
	for colNum, featureName := range FieldNames[1 : len(FieldNames)-1] {
		col := df.Col(featureName)
		for rowNum := 0; rowNum < d.NumRows; rowNum++ {
			d.Features[rowNum*NumFeatures+colNum+1] = float32(col.Elem(rowNum).Float())
		}
	}
	for rowNum, value := range df.Col(RingsCol).Float() {
		d.Labels[rowNum] = float32(value)
	}
	return d
}

// Load downloads (if needed) and parses the dataset from dir.
func Load(dir string, force bool) (*Data, error) {
	filePath, err := Download(dir, force)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open dataset file %q", filePath)
	}
	defer func() { _ = f.Close() }()
	df := ReadDataFrame(f)
	if df.Err != nil {
		return nil, errors.Wrapf(df.Err, "failed to parse dataset file %q", filePath)
	}
	return FromDataFrame(df), nil
}

// FeatureRow returns the feature vector of the given row, a slice into Features.
func (d *Data) FeatureRow(rowNum int) []float32 {
	start := rowNum * NumFeatures
	return d.Features[start : start+NumFeatures]
}

// Split separates the data into a training and a held-out test split.
// The rows are shuffled with the given seed, so splits are deterministic for a
// fixed seed. testFraction must be in (0, 1).
func (d *Data) Split(testFraction float64, seed int64) (train, test *Data) {
	numTest := int(float64(d.NumRows) * testFraction)
	perm := rand.New(rand.NewSource(seed)).Perm(d.NumRows)
	test = newData(numTest)
	train = newData(d.NumRows - numTest)
	for ii, rowNum := range perm {
		target, targetRow := train, ii-numTest
		if ii < numTest {
			target, targetRow = test, ii
		}
		copy(target.FeatureRow(targetRow), d.FeatureRow(rowNum))
		target.Labels[targetRow] = d.Labels[rowNum]
	}
	return
}

func newData(numRows int) *Data {
	return &Data{
		NumRows:  numRows,
		Features: make([]float32, numRows*NumFeatures),
		Labels:   make([]float32, numRows),
	}
}
