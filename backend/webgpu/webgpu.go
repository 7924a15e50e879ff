// Copyright 2026 The Candle Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu enables the WebGPU accelerator. Importing it registers the
// driver; tensor.NewWebGPU then opens the default adapter.
//
// Example:
//
//	import (
//	    "github.com/lo-ferris/candle/backend/webgpu"
//	    "github.com/lo-ferris/candle/tensor"
//	)
//
//	func main() {
//	    if !webgpu.IsAvailable() {
//	        log.Fatal("no WebGPU adapter")
//	    }
//	    dev, err := tensor.NewWebGPU(0)
//	    ...
//	}
package webgpu

import (
	internalwebgpu "github.com/lo-ferris/candle/internal/backend/webgpu"
)

// IsAvailable checks if WebGPU is usable on this system.
func IsAvailable() bool {
	return internalwebgpu.IsAvailable()
}
