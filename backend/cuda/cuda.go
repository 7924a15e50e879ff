// Copyright 2026 The Candle Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cuda enables the CUDA accelerator on builds carrying the "cuda"
// build tag. Importing it registers the driver; tensor.NewCUDA then opens a
// device by ordinal. On builds without the tag the import is a no-op and
// Available is false.
package cuda

import (
	internalcuda "github.com/lo-ferris/candle/internal/backend/cuda"
)

// Available reports whether this build carries the CUDA driver.
const Available = internalcuda.Available
