//go:build !linux || !cuda

// Package cuda provides a CUDA accelerator driver behind the "cuda" build
// tag. Default builds compile this registration-free stub, so requesting a
// CUDA device reports the driver as unavailable.
package cuda

// Available reports whether the build carries the CUDA driver.
const Available = false
