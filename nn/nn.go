// Copyright 2026 The Candle Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the public API for named-variable storage and
// resolution: VarStore for trainable parameters and VarBuilder for loading
// weights from SafeTensors files, GGUF archives, tensor maps, or stores.
//
// Example:
//
//	vs := nn.NewVarStore()
//	vb := nn.NewVarBuilderFromVarStore(vs, tensor.Float32, tensor.CPU)
//	w, err := vb.PP("linear").GetOrInit(tensor.Shape{64, 64}, "weight", nn.KaimingUniform(64))
package nn

import (
	"github.com/lo-ferris/candle/internal/nn"
	"github.com/lo-ferris/candle/tensor"
)

// VarStore is a concurrent registry of mutable named tensors.
type VarStore = nn.VarStore

// VarBuilder resolves named tensors from a backing source.
type VarBuilder = nn.VarBuilder

// Shard identifies one member of a tensor-parallel group.
type Shard = nn.Shard

// Init selects an initialization policy for created variables.
type Init = nn.Init

// Initialization policies.
var (
	Zeros = nn.Zeros
	Ones  = nn.Ones
)

// Const initializes every element to v.
func Const(v float64) Init { return nn.Const(v) }

// Uniform initializes with uniform samples in [lo, up).
func Uniform(lo, up float64) Init { return nn.Uniform(lo, up) }

// Randn initializes with gaussian samples.
func Randn(mean, std float64) Init { return nn.Randn(mean, std) }

// KaimingUniform initializes with the fan-in scaled uniform policy.
func KaimingUniform(fanIn int) Init { return nn.KaimingUniform(fanIn) }

// Error types reported by lookups.
type (
	NotFoundError           = nn.NotFoundError
	ShapeMismatchError      = nn.ShapeMismatchError
	ShapeMismatchSplitError = nn.ShapeMismatchSplitError
	UnsupportedOpError      = nn.UnsupportedOpError
)

// NewVarStore creates an empty variable store.
func NewVarStore() VarStore { return nn.NewVarStore() }

// NewVarBuilderFromSafetensors opens SafeTensors files as a lazily loading
// backing source with first-file routing for duplicate names.
func NewVarBuilderFromSafetensors(dtype tensor.DataType, device tensor.Device, paths ...string) (VarBuilder, error) {
	return nn.NewVarBuilderFromSafetensors(dtype, device, paths...)
}

// NewVarBuilderFromGGUF opens a GGUF archive as the backing source.
func NewVarBuilderFromGGUF(path string, dtype tensor.DataType, device tensor.Device) (VarBuilder, error) {
	return nn.NewVarBuilderFromGGUF(path, dtype, device)
}

// NewVarBuilderFromTensors serves lookups from an in-memory map.
func NewVarBuilderFromTensors(tensors map[string]*tensor.Tensor, dtype tensor.DataType, device tensor.Device) VarBuilder {
	return nn.NewVarBuilderFromTensors(tensors, dtype, device)
}

// NewVarBuilderZeros answers every lookup with a fresh zero tensor.
func NewVarBuilderZeros(dtype tensor.DataType, device tensor.Device) VarBuilder {
	return nn.NewVarBuilderZeros(dtype, device)
}

// NewVarBuilderFromVarStore backs the builder with a mutable VarStore.
func NewVarBuilderFromVarStore(vs VarStore, dtype tensor.DataType, device tensor.Device) VarBuilder {
	return nn.NewVarBuilderFromVarStore(vs, dtype, device)
}
