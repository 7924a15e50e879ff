// Copyright 2026 The Candle Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public API for tensors, devices and variables.
//
// Tensors are immutable handles over device storage. Variables wrap a tensor
// with in-place update semantics for trainable parameters.
//
// Example:
//
//	x, err := tensor.Zeros(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
//	if err != nil {
//	    log.Fatal(err)
//	}
package tensor

import (
	"github.com/lo-ferris/candle/internal/tensor"
)

// DType is a constraint for element types backing typed tensor views.
type DType = tensor.DType

// DataType identifies the element encoding of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32  DataType = tensor.Float32
	Float64  DataType = tensor.Float64
	Float16  DataType = tensor.Float16
	BFloat16 DataType = tensor.BFloat16
	Int32    DataType = tensor.Int32
	Int64    DataType = tensor.Int64
	Uint8    DataType = tensor.Uint8
)

// Device places tensor data on the CPU or on an accelerator.
type Device = tensor.Device

// DeviceKind identifies a device family.
type DeviceKind = tensor.DeviceKind

// Device kind constants.
const (
	KindCPU    DeviceKind = tensor.KindCPU
	KindCUDA   DeviceKind = tensor.KindCUDA
	KindWebGPU DeviceKind = tensor.KindWebGPU
)

// CPU is the host device.
var CPU = tensor.CPU

// NewCUDA opens CUDA device ordinal. The CUDA driver must be compiled in;
// see the backend/cuda package.
func NewCUDA(ordinal int) (Device, error) { return tensor.NewCUDA(ordinal) }

// NewWebGPU opens the default WebGPU adapter; see the backend/webgpu package.
func NewWebGPU(ordinal int) (Device, error) { return tensor.NewWebGPU(ordinal) }

// CUDAIfAvailable opens the CUDA device, falling back to CPU when the
// driver is unavailable.
func CUDAIfAvailable(ordinal int) Device { return tensor.CUDAIfAvailable(ordinal) }

// ErrAccelUnavailable reports a device kind with no compiled-in driver.
var ErrAccelUnavailable = tensor.ErrAccelUnavailable

// Shape holds tensor dimensions, e.g. Shape{2, 3, 4}.
type Shape = tensor.Shape

// Tensor is an immutable handle over device storage.
type Tensor = tensor.Tensor

// Variable wraps a tensor with in-place update semantics.
type Variable = tensor.Variable

// NdArray is implemented by host values that can be ingested as tensors.
type NdArray = tensor.NdArray

// Host-value adapters implementing NdArray.
type (
	Scalar[T DType] = tensor.Scalar[T]
	Vec[T DType]    = tensor.Vec[T]
	Mat[T DType]    = tensor.Mat[T]
	Cube[T DType]   = tensor.Cube[T]
)

// Zeros creates a zero-filled tensor on device.
func Zeros(shape Shape, dtype DataType, device Device) (*Tensor, error) {
	return tensor.Zeros(shape, dtype, device)
}

// Ones creates a one-filled tensor on device.
func Ones(shape Shape, dtype DataType, device Device) (*Tensor, error) {
	return tensor.Ones(shape, dtype, device)
}

// RandUniform creates a tensor of uniform samples in [lo, up).
func RandUniform(shape Shape, dtype DataType, lo, up float64, device Device) (*Tensor, error) {
	return tensor.RandUniform(shape, dtype, lo, up, device)
}

// RandNormal creates a tensor of gaussian samples.
func RandNormal(shape Shape, dtype DataType, mean, std float64, device Device) (*Tensor, error) {
	return tensor.RandNormal(shape, dtype, mean, std, device)
}

// New ingests a host value (scalar, slice, nested slices) as a tensor.
func New(array NdArray, device Device) (*Tensor, error) {
	return tensor.New(array, device)
}

// FromSlice creates a tensor from a flat slice reshaped to shape.
func FromSlice[T DType](data []T, shape Shape, device Device) (*Tensor, error) {
	return tensor.FromSlice(data, shape, device)
}

// FromRawBuffer creates a tensor over raw little-endian bytes.
func FromRawBuffer(data []byte, dtype DataType, shape Shape, device Device) (*Tensor, error) {
	return tensor.FromRawBuffer(data, dtype, shape, device)
}

// NewVariable wraps a tensor as a mutable variable.
func NewVariable(t *Tensor) *Variable { return tensor.NewVariable(t) }
