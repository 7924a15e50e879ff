// Package safetensors reads and writes the SafeTensors weight file format.
//
// Format layout:
//
//	[8 bytes: header_size (uint64 LE)]
//	[header_size bytes: JSON header]
//	[tensor data: raw bytes, row-major, little-endian]
//
// The reader exposes name-indexed, shape/dtype-tagged views with byte-range
// slicing, which the resolver's sharded read path relies on to fetch tensor
// partitions without materializing whole tensors. The writer produces files
// readable by the wider SafeTensors ecosystem (tensors in alphabetical
// order, offsets relative to the data section).
package safetensors
