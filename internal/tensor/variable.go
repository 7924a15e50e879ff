package tensor

// Variable is a mutable single-slot container owning one tensor value.
// Tensors are immutable; a Variable is the only way a named value changes
// after creation. Replacement preserves shape, dtype and device.
type Variable struct {
	value *Tensor
}

// NewVariable wraps an initial tensor value.
func NewVariable(t *Tensor) *Variable {
	return &Variable{value: t}
}

// AsTensor returns the current value.
func (v *Variable) AsTensor() *Tensor {
	return v.value
}

// Set atomically replaces the value. The replacement must match the current
// value's shape, dtype and device exactly; on failure the old value is kept.
func (v *Variable) Set(t *Tensor) error {
	cur := v.value
	if !cur.Shape().Equal(t.Shape()) {
		return &SetShapeError{Expected: cur.Shape(), Got: t.Shape()}
	}
	if cur.DType() != t.DType() {
		return &DTypeMismatchError{Expected: cur.DType(), Got: t.DType()}
	}
	if !cur.Device().SameDevice(t.Device()) {
		return &DeviceMismatchError{Expected: cur.Device(), Got: t.Device()}
	}
	v.value = t
	return nil
}
