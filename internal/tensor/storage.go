package tensor

import (
	"fmt"
	"unsafe"
)

// HostBuffer is a flat host-resident data buffer tagged with its element type.
// It is the host half of the storage dispatch: CPU storage wraps one directly,
// accelerator backends upload from and read back into one.
type HostBuffer struct {
	dtype DataType
	data  []byte
}

// NewHostBuffer allocates a zero-initialized host buffer for n elements.
func NewHostBuffer(dtype DataType, n int) *HostBuffer {
	return &HostBuffer{
		dtype: dtype,
		data:  make([]byte, n*dtype.Size()),
	}
}

// HostBufferFromBytes wraps raw bytes as a host buffer without copying.
// The byte length must be a multiple of the dtype's element size.
func HostBufferFromBytes(dtype DataType, data []byte) (*HostBuffer, error) {
	if len(data)%dtype.Size() != 0 {
		return nil, fmt.Errorf("host buffer: %d bytes is not a multiple of %s element size %d",
			len(data), dtype, dtype.Size())
	}
	return &HostBuffer{dtype: dtype, data: data}, nil
}

// HostBufferFromSlice wraps a typed slice as a host buffer without copying.
// The slice memory is aliased; the caller hands over ownership.
func HostBufferFromSlice[T DType](data []T) *HostBuffer {
	var dummy T
	dtype := inferDataType(dummy)
	if len(data) == 0 {
		return &HostBuffer{dtype: dtype}
	}
	bytes := unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(data)*dtype.Size())
	return &HostBuffer{dtype: dtype, data: bytes}
}

// DType returns the buffer's element type.
func (b *HostBuffer) DType() DataType {
	return b.dtype
}

// Len returns the number of elements.
func (b *HostBuffer) Len() int {
	return len(b.data) / b.dtype.Size()
}

// ByteSize returns the buffer size in bytes.
func (b *HostBuffer) ByteSize() int {
	return len(b.data)
}

// Bytes returns the raw byte slice.
// WARNING: Direct access to underlying memory. Use with caution.
func (b *HostBuffer) Bytes() []byte {
	return b.data
}

// Clone creates a deep copy of the buffer.
func (b *HostBuffer) Clone() *HostBuffer {
	data := make([]byte, len(b.data))
	copy(data, b.data)
	return &HostBuffer{dtype: b.dtype, data: data}
}

// AsFloat32 interprets the data as []float32.
// Panics if the buffer's dtype is not Float32.
func (b *HostBuffer) AsFloat32() []float32 {
	if b.dtype != Float32 {
		panic(fmt.Sprintf("host buffer dtype is %s, not float32", b.dtype))
	}
	if len(b.data) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b.data[0])), b.Len())
}

// AsFloat64 interprets the data as []float64.
// Panics if the buffer's dtype is not Float64.
func (b *HostBuffer) AsFloat64() []float64 {
	if b.dtype != Float64 {
		panic(fmt.Sprintf("host buffer dtype is %s, not float64", b.dtype))
	}
	if len(b.data) == 0 {
		return nil
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(&b.data[0])), b.Len())
}

// AsInt32 interprets the data as []int32.
// Panics if the buffer's dtype is not Int32.
func (b *HostBuffer) AsInt32() []int32 {
	if b.dtype != Int32 {
		panic(fmt.Sprintf("host buffer dtype is %s, not int32", b.dtype))
	}
	if len(b.data) == 0 {
		return nil
	}
	return unsafe.Slice((*int32)(unsafe.Pointer(&b.data[0])), b.Len())
}

// AsInt64 interprets the data as []int64.
// Panics if the buffer's dtype is not Int64.
func (b *HostBuffer) AsInt64() []int64 {
	if b.dtype != Int64 {
		panic(fmt.Sprintf("host buffer dtype is %s, not int64", b.dtype))
	}
	if len(b.data) == 0 {
		return nil
	}
	return unsafe.Slice((*int64)(unsafe.Pointer(&b.data[0])), b.Len())
}

// AsUint8 interprets the data as []uint8.
// Panics if the buffer's dtype is not Uint8.
func (b *HostBuffer) AsUint8() []uint8 {
	if b.dtype != Uint8 {
		panic(fmt.Sprintf("host buffer dtype is %s, not uint8", b.dtype))
	}
	return b.data
}

// AsUint16 interprets the data as []uint16 raw bit patterns.
// Panics unless the buffer's dtype is Float16 or BFloat16.
func (b *HostBuffer) AsUint16() []uint16 {
	if b.dtype != Float16 && b.dtype != BFloat16 {
		panic(fmt.Sprintf("host buffer dtype is %s, not a 16-bit float", b.dtype))
	}
	if len(b.data) == 0 {
		return nil
	}
	return unsafe.Slice((*uint16)(unsafe.Pointer(&b.data[0])), b.Len())
}

// Storage is a device-resident data buffer backing a tensor: either a host
// buffer on the CPU device or an accelerator buffer tagged with its device.
type Storage struct {
	device Device
	dtype  DataType
	host   *HostBuffer // set when device is CPU
	accel  AccelBuffer // set when device is an accelerator
}

func newHostStorage(device Device, host *HostBuffer) *Storage {
	return &Storage{device: device, dtype: host.DType(), host: host}
}

func newAccelStorage(device Device, dtype DataType, accel AccelBuffer) *Storage {
	return &Storage{device: device, dtype: dtype, accel: accel}
}

// Device returns the device the storage lives on.
func (s *Storage) Device() Device {
	return s.device
}

// DType returns the element type of the storage.
func (s *Storage) DType() DataType {
	return s.dtype
}

// ByteSize returns the storage size in bytes.
func (s *Storage) ByteSize() int {
	if s.host != nil {
		return s.host.ByteSize()
	}
	return s.accel.ByteSize()
}

// Host returns the storage contents as a host buffer. For CPU storage this is
// the underlying buffer itself (no copy); accelerator storage is read back.
func (s *Storage) Host() (*HostBuffer, error) {
	if s.host != nil {
		return s.host, nil
	}
	return s.accel.ToHost()
}
