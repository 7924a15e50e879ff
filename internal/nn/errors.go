package nn

import (
	"fmt"

	"github.com/lo-ferris/candle/internal/tensor"
)

// NotFoundError reports a tensor name absent from a non-creating backing
// source.
type NotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("cannot find tensor %s", e.Path)
}

// ShapeMismatchError reports a resolved tensor whose shape disagrees with
// the caller-declared shape.
type ShapeMismatchError struct {
	Path     string
	Expected tensor.Shape
	Got      tensor.Shape
}

// Error implements the error interface.
func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch for %s: expected %v, got %v", e.Path, e.Expected, e.Got)
}

// ShapeMismatchSplitError reports a sharded read whose dimension does not
// divide evenly into world-size blocks.
type ShapeMismatchSplitError struct {
	Shape     tensor.Shape
	Dim       int
	WorldSize int
}

// Error implements the error interface.
func (e *ShapeMismatchSplitError) Error() string {
	return fmt.Sprintf("cannot split shape %v along dim %d into %d parts", e.Shape, e.Dim, e.WorldSize)
}

// UnsupportedOpError reports an operation the backing source cannot perform.
type UnsupportedOpError struct {
	Op     string
	Reason string
}

// Error implements the error interface.
func (e *UnsupportedOpError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}
