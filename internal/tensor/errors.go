package tensor

import (
	"errors"
	"fmt"
)

// ErrAccelUnavailable is returned when constructing an accelerator device
// whose driver is not registered (e.g. a binary built without CUDA support).
var ErrAccelUnavailable = errors.New("accelerator driver not available")

// InvalidShapeError reports a shape with a non-positive dimension.
type InvalidShapeError struct {
	Shape Shape
	Index int
}

// Error implements the error interface.
func (e *InvalidShapeError) Error() string {
	return fmt.Sprintf("invalid shape %v: dimension %d must be positive", e.Shape, e.Index)
}

// DeviceMismatchError reports an operation mixing incompatible device handles.
type DeviceMismatchError struct {
	Expected Device
	Got      Device
}

// Error implements the error interface.
func (e *DeviceMismatchError) Error() string {
	return fmt.Sprintf("device mismatch: expected %s, got %s", e.Expected, e.Got)
}

// SetShapeError reports a variable replacement whose shape disagrees with
// the shape fixed at creation.
type SetShapeError struct {
	Expected Shape
	Got      Shape
}

// Error implements the error interface.
func (e *SetShapeError) Error() string {
	return fmt.Sprintf("cannot change variable shape %v to %v", e.Expected, e.Got)
}

// DTypeMismatchError reports an operation mixing incompatible element types.
type DTypeMismatchError struct {
	Expected DataType
	Got      DataType
}

// Error implements the error interface.
func (e *DTypeMismatchError) Error() string {
	return fmt.Sprintf("dtype mismatch: expected %s, got %s", e.Expected, e.Got)
}
