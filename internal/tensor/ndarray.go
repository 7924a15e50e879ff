package tensor

import "fmt"

// NdArray is the capability a fixed-shape host array must expose so a device
// can ingest it: its shape, and a conversion into a host-resident buffer.
// Shape is consulted first; HostBuffer is only called on validated arrays.
type NdArray interface {
	Shape() (Shape, error)
	HostBuffer() *HostBuffer
}

// Scalar adapts a single value as a 0-dimensional NdArray.
type Scalar[T DType] struct {
	Value T
}

// Shape returns the scalar shape.
func (s Scalar[T]) Shape() (Shape, error) {
	return Shape{}, nil
}

// HostBuffer converts the scalar into a one-element host buffer.
func (s Scalar[T]) HostBuffer() *HostBuffer {
	return HostBufferFromSlice([]T{s.Value})
}

// Vec adapts a slice as a 1-dimensional NdArray. The slice memory is used
// directly, without copying.
type Vec[T DType] []T

// Shape returns the vector shape.
func (v Vec[T]) Shape() (Shape, error) {
	return Shape{len(v)}, nil
}

// HostBuffer wraps the slice as a host buffer.
func (v Vec[T]) HostBuffer() *HostBuffer {
	return HostBufferFromSlice([]T(v))
}

// Mat adapts a slice of rows as a 2-dimensional NdArray.
// All rows must have the same length.
type Mat[T DType] [][]T

// Shape returns the matrix shape, failing on ragged rows.
func (m Mat[T]) Shape() (Shape, error) {
	if len(m) == 0 {
		return nil, fmt.Errorf("ndarray: empty matrix")
	}
	cols := len(m[0])
	for i, row := range m {
		if len(row) != cols {
			return nil, fmt.Errorf("ndarray: ragged matrix: row %d has %d elements, want %d", i, len(row), cols)
		}
	}
	return Shape{len(m), cols}, nil
}

// HostBuffer concatenates the rows into a contiguous host buffer.
func (m Mat[T]) HostBuffer() *HostBuffer {
	flat := make([]T, 0, len(m)*len(m[0]))
	for _, row := range m {
		flat = append(flat, row...)
	}
	return HostBufferFromSlice(flat)
}

// Cube adapts a nested slice as a 3-dimensional NdArray.
// Every plane and row must have matching lengths.
type Cube[T DType] [][][]T

// Shape returns the cube shape, failing on ragged input.
func (c Cube[T]) Shape() (Shape, error) {
	if len(c) == 0 || len(c[0]) == 0 {
		return nil, fmt.Errorf("ndarray: empty cube")
	}
	rows, cols := len(c[0]), len(c[0][0])
	for i, plane := range c {
		if len(plane) != rows {
			return nil, fmt.Errorf("ndarray: ragged cube: plane %d has %d rows, want %d", i, len(plane), rows)
		}
		for j, row := range plane {
			if len(row) != cols {
				return nil, fmt.Errorf("ndarray: ragged cube: plane %d row %d has %d elements, want %d", i, j, len(row), cols)
			}
		}
	}
	return Shape{len(c), rows, cols}, nil
}

// HostBuffer concatenates the planes row by row into a contiguous host buffer.
func (c Cube[T]) HostBuffer() *HostBuffer {
	flat := make([]T, 0, len(c)*len(c[0])*len(c[0][0]))
	for _, plane := range c {
		for _, row := range plane {
			flat = append(flat, row...)
		}
	}
	return HostBufferFromSlice(flat)
}
