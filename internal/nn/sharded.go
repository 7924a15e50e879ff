package nn

import (
	"fmt"

	"github.com/lo-ferris/candle/internal/safetensors"
	"github.com/lo-ferris/candle/internal/tensor"
)

// Shard identifies one member of a tensor-parallel group: this process holds
// slice Rank of WorldSize along Dim.
type Shard struct {
	Dim       int
	Rank      int
	WorldSize int
}

// GetSharded loads only this rank's slice of a stored tensor, reading just
// the byte ranges the slice covers. Slicing needs byte-addressable layout
// metadata, so only the SafeTensors source supports it, and the layout is
// assumed row-major (the SafeTensors storage order). Dim 0 is a single
// contiguous range; dim 1 gathers one sub-range per leading row. Higher dims
// are not supported.
//
// The stored extent along Dim must divide evenly by WorldSize; the check runs
// before any data is read. The slice keeps the stored dtype rather than
// converting to the builder's default, so that concatenating all ranks'
// slices along Dim reproduces the stored tensor bit for bit.
func (vb VarBuilder) GetSharded(name string, shard Shard) (*tensor.Tensor, error) {
	path := vb.Path(name)
	if vb.data.kind != sourceSafetensors {
		return nil, &UnsupportedOpError{Op: "GetSharded", Reason: "backing source has no byte-range reads"}
	}
	if shard.Dim != 0 && shard.Dim != 1 {
		return nil, &UnsupportedOpError{Op: "GetSharded", Reason: fmt.Sprintf("dim %d, only dims 0 and 1 can be sliced", shard.Dim)}
	}
	if shard.WorldSize < 1 || shard.Rank < 0 || shard.Rank >= shard.WorldSize {
		return nil, &UnsupportedOpError{Op: "GetSharded", Reason: fmt.Sprintf("rank %d out of range for world size %d", shard.Rank, shard.WorldSize)}
	}

	idx, ok := vb.data.routing[path]
	if !ok {
		return nil, &NotFoundError{Path: path}
	}
	f := vb.data.files[idx]
	info, err := f.Info(path)
	if err != nil {
		return nil, err
	}
	dtype, err := safetensors.ToDataType(info.DType)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	shape := tensor.Shape(info.Shape)
	if shard.Dim >= len(shape) {
		return nil, &UnsupportedOpError{Op: "GetSharded", Reason: fmt.Sprintf("dim %d out of range for shape %v", shard.Dim, shape)}
	}
	if shape[shard.Dim]%shard.WorldSize != 0 {
		return nil, &ShapeMismatchSplitError{Shape: shape.Clone(), Dim: shard.Dim, WorldSize: shard.WorldSize}
	}

	block := shape[shard.Dim] / shard.WorldSize
	elemSize := int64(dtype.Size())

	var raw []byte
	switch shard.Dim {
	case 0:
		// trailing dims are contiguous, the slice is one range
		rowBytes := elemSize
		for _, d := range shape[1:] {
			rowBytes *= int64(d)
		}
		start := int64(shard.Rank) * int64(block) * rowBytes
		raw, err = f.ReadRange(path, start, start+int64(block)*rowBytes)
		if err != nil {
			return nil, err
		}
	case 1:
		// one contiguous sub-range per leading row
		innerBytes := elemSize
		for _, d := range shape[2:] {
			innerBytes *= int64(d)
		}
		rowBytes := int64(shape[1]) * innerBytes
		sliceBytes := int64(block) * innerBytes
		offset := int64(shard.Rank) * sliceBytes
		raw = make([]byte, 0, int64(shape[0])*sliceBytes)
		for row := 0; row < shape[0]; row++ {
			start := int64(row)*rowBytes + offset
			chunk, err := f.ReadRange(path, start, start+sliceBytes)
			if err != nil {
				return nil, err
			}
			raw = append(raw, chunk...)
		}
	}

	outShape := shape.Clone()
	outShape[shard.Dim] = block
	return tensor.FromRawBuffer(raw, dtype, outShape, vb.data.device)
}
