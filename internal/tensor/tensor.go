package tensor

import "fmt"

// Tensor is an immutable handle over device-resident storage: a shape, an
// element type, a device placement and the backing data buffer. Handles are
// cheap to copy and share storage; the data itself is never mutated through
// a Tensor.
type Tensor struct {
	storage *Storage
	shape   Shape
}

// NewFromStorage wraps existing storage with a shape. The element count of
// the storage must match the shape exactly.
func NewFromStorage(storage *Storage, shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	want := shape.NumElements() * storage.DType().Size()
	if storage.ByteSize() != want {
		return nil, fmt.Errorf("storage of %d bytes cannot back shape %v with dtype %s (%d bytes)",
			storage.ByteSize(), shape, storage.DType(), want)
	}
	return &Tensor{storage: storage, shape: shape.Clone()}, nil
}

// Zeros creates a zero-filled tensor on the device.
func Zeros(shape Shape, dtype DataType, device Device) (*Tensor, error) {
	storage, err := device.Zeros(shape, dtype)
	if err != nil {
		return nil, err
	}
	return &Tensor{storage: storage, shape: shape.Clone()}, nil
}

// Ones creates a tensor filled with ones on the device.
func Ones(shape Shape, dtype DataType, device Device) (*Tensor, error) {
	storage, err := device.Ones(shape, dtype)
	if err != nil {
		return nil, err
	}
	return &Tensor{storage: storage, shape: shape.Clone()}, nil
}

// RandUniform creates a tensor with uniform random values in [lo, up).
func RandUniform(shape Shape, dtype DataType, lo, up float64, device Device) (*Tensor, error) {
	storage, err := device.RandUniform(shape, dtype, lo, up)
	if err != nil {
		return nil, err
	}
	return &Tensor{storage: storage, shape: shape.Clone()}, nil
}

// RandNormal creates a tensor with normally distributed random values.
func RandNormal(shape Shape, dtype DataType, mean, std float64, device Device) (*Tensor, error) {
	storage, err := device.RandNormal(shape, dtype, mean, std)
	if err != nil {
		return nil, err
	}
	return &Tensor{storage: storage, shape: shape.Clone()}, nil
}

// New ingests a fixed-shape host array (see NdArray) onto the device.
func New(array NdArray, device Device) (*Tensor, error) {
	shape, err := array.Shape()
	if err != nil {
		return nil, err
	}
	storage, err := device.Storage(array)
	if err != nil {
		return nil, err
	}
	return &Tensor{storage: storage, shape: shape}, nil
}

// FromSlice creates a tensor from a typed slice reshaped to the given shape.
func FromSlice[T DType](data []T, shape Shape, device Device) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	storage, err := device.StorageOwned(HostBufferFromSlice(data))
	if err != nil {
		return nil, err
	}
	return &Tensor{storage: storage, shape: shape.Clone()}, nil
}

// FromRawBuffer reconstructs a tensor from raw little-endian bytes tagged
// with a dtype and shape, placed on the device. The byte length must equal
// the shape's element count times the dtype size.
func FromRawBuffer(data []byte, dtype DataType, shape Shape, device Device) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	host, err := HostBufferFromBytes(dtype, data)
	if err != nil {
		return nil, err
	}
	if host.Len() != shape.NumElements() {
		return nil, fmt.Errorf("raw buffer of %d %s elements cannot back shape %v", host.Len(), dtype, shape)
	}
	storage, err := device.StorageOwned(host)
	if err != nil {
		return nil, err
	}
	return &Tensor{storage: storage, shape: shape.Clone()}, nil
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// DType returns the tensor's element type.
func (t *Tensor) DType() DataType {
	return t.storage.DType()
}

// Device returns the tensor's device placement.
func (t *Tensor) Device() Device {
	return t.storage.Device()
}

// Storage returns the underlying storage.
func (t *Tensor) Storage() *Storage {
	return t.storage
}

// NumElements returns the total number of elements.
func (t *Tensor) NumElements() int {
	return t.shape.NumElements()
}

// Clone returns a new handle sharing the same storage. O(1).
func (t *Tensor) Clone() *Tensor {
	return &Tensor{storage: t.storage, shape: t.shape.Clone()}
}

// Host returns the tensor data as a host buffer, reading back from the
// accelerator when necessary.
func (t *Tensor) Host() (*HostBuffer, error) {
	return t.storage.Host()
}

// Float32s returns the tensor data as a []float32.
// Fails unless the tensor's dtype is Float32.
func (t *Tensor) Float32s() ([]float32, error) {
	host, err := t.Host()
	if err != nil {
		return nil, err
	}
	if host.DType() != Float32 {
		return nil, &DTypeMismatchError{Expected: Float32, Got: host.DType()}
	}
	return host.AsFloat32(), nil
}

// ToDevice copies the tensor to another device. Copying to the same physical
// device returns a shared-storage clone.
func (t *Tensor) ToDevice(device Device) (*Tensor, error) {
	if t.Device().SameDevice(device) {
		return t.Clone(), nil
	}
	host, err := t.Host()
	if err != nil {
		return nil, err
	}
	if t.Device().IsAccel() {
		// The read-back buffer aliases nothing, safe to hand over.
		host = host.Clone()
	}
	storage, err := device.StorageOwned(host)
	if err != nil {
		return nil, err
	}
	return &Tensor{storage: storage, shape: t.shape.Clone()}, nil
}

// ToDType converts the tensor to another element type on the same device.
func (t *Tensor) ToDType(dtype DataType) (*Tensor, error) {
	if t.DType() == dtype {
		return t.Clone(), nil
	}
	host, err := t.Host()
	if err != nil {
		return nil, err
	}
	converted, err := Convert(host, dtype)
	if err != nil {
		return nil, err
	}
	storage, err := t.Device().StorageOwned(converted)
	if err != nil {
		return nil, err
	}
	return &Tensor{storage: storage, shape: t.shape.Clone()}, nil
}

// String returns a human-readable representation of the tensor.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor[%s]%v on %s", t.DType(), t.shape, t.Device())
}
