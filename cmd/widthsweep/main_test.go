// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gomlx/dllabs/widthsweep"
)

func TestParseWidths(t *testing.T) {
	assert.Equal(t, widthsweep.DefaultWidths, parseWidths(""))
	assert.Equal(t, []int{1, 8, 64}, parseWidths("1, 8,64"))
}
