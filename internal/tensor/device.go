package tensor

import (
	"fmt"
	"sync"
)

// DeviceKind identifies a device backend.
type DeviceKind int

// Supported device kinds.
const (
	KindCPU DeviceKind = iota
	KindCUDA
	KindWebGPU
)

// String returns a human-readable kind name.
func (k DeviceKind) String() string {
	switch k {
	case KindCPU:
		return "cpu"
	case KindCUDA:
		return "cuda"
	case KindWebGPU:
		return "webgpu"
	default:
		return "unknown"
	}
}

// AccelDevice is the contract an accelerator backend must implement.
// Every storage-producing operation of Device has an identical counterpart
// here; the dispatch layer calls it and tags the result with the device.
type AccelDevice interface {
	// Kind returns the backend kind (KindCUDA, KindWebGPU).
	Kind() DeviceKind

	// Ordinal returns the physical device index this backend is bound to.
	Ordinal() int

	// Zeros allocates a zero-filled device buffer.
	Zeros(shape Shape, dtype DataType) (AccelBuffer, error)

	// Ones allocates a device buffer filled with ones.
	Ones(shape Shape, dtype DataType) (AccelBuffer, error)

	// RandUniform fills a device buffer with uniform random values in [lo, up).
	RandUniform(shape Shape, dtype DataType, lo, up float64) (AccelBuffer, error)

	// RandNormal fills a device buffer with normally distributed random values.
	RandNormal(shape Shape, dtype DataType, mean, std float64) (AccelBuffer, error)

	// FromHost uploads a host buffer to device memory.
	FromHost(buf *HostBuffer) (AccelBuffer, error)
}

// AccelBuffer is a device-resident data buffer owned by an accelerator backend.
type AccelBuffer interface {
	// ByteSize returns the buffer size in bytes.
	ByteSize() int

	// ToHost transfers the buffer contents back to host memory.
	ToHost() (*HostBuffer, error)
}

// Driver constructs an accelerator backend bound to a physical ordinal.
// Backend packages register a Driver from their init function.
type Driver func(ordinal int) (AccelDevice, error)

var (
	driverMu sync.RWMutex
	drivers  = make(map[DeviceKind]Driver)
)

// RegisterDriver registers an accelerator driver for a device kind.
// Registering the same kind twice panics; drivers are process-wide.
func RegisterDriver(kind DeviceKind, d Driver) {
	driverMu.Lock()
	defer driverMu.Unlock()
	if _, dup := drivers[kind]; dup {
		panic(fmt.Sprintf("tensor: driver already registered for %s", kind))
	}
	drivers[kind] = d
}

// DriverAvailable reports whether a driver is registered for the given kind.
func DriverAvailable(kind DeviceKind) bool {
	driverMu.RLock()
	defer driverMu.RUnlock()
	_, ok := drivers[kind]
	return ok
}

// Device is a compute target: the host CPU, or an accelerator bound to a
// specific physical ordinal. The zero value is the CPU device.
type Device struct {
	kind  DeviceKind
	accel AccelDevice // nil for CPU
}

// CPU is the host device.
var CPU = Device{kind: KindCPU}

// NewCUDA returns a device handle for the CUDA ordinal.
// Fails with ErrAccelUnavailable if no CUDA driver is compiled in.
func NewCUDA(ordinal int) (Device, error) {
	return newAccelDevice(KindCUDA, ordinal)
}

// NewWebGPU returns a device handle for the WebGPU adapter ordinal.
func NewWebGPU(ordinal int) (Device, error) {
	return newAccelDevice(KindWebGPU, ordinal)
}

// CUDAIfAvailable returns the CUDA device for the ordinal when a driver is
// registered and initializes successfully, and the CPU device otherwise.
func CUDAIfAvailable(ordinal int) Device {
	d, err := NewCUDA(ordinal)
	if err != nil {
		return CPU
	}
	return d
}

func newAccelDevice(kind DeviceKind, ordinal int) (Device, error) {
	driverMu.RLock()
	driver, ok := drivers[kind]
	driverMu.RUnlock()
	if !ok {
		return Device{}, fmt.Errorf("%s device %d: %w", kind, ordinal, ErrAccelUnavailable)
	}
	accel, err := driver(ordinal)
	if err != nil {
		return Device{}, fmt.Errorf("%s device %d: %w", kind, ordinal, err)
	}
	return Device{kind: kind, accel: accel}, nil
}

// Kind returns the device kind.
func (d Device) Kind() DeviceKind {
	return d.kind
}

// Ordinal returns the physical ordinal of an accelerator device, or 0 for CPU.
func (d Device) Ordinal() int {
	if d.accel == nil {
		return 0
	}
	return d.accel.Ordinal()
}

// IsCPU reports whether the device is the host CPU.
func (d Device) IsCPU() bool {
	return d.kind == KindCPU
}

// IsAccel reports whether the device is an accelerator.
func (d Device) IsAccel() bool {
	return d.kind != KindCPU
}

// SameDevice reports whether two device handles refer to the same physical
// device: CPU matches CPU, accelerators match on kind and ordinal.
func (d Device) SameDevice(other Device) bool {
	if d.kind != other.kind {
		return false
	}
	if d.kind == KindCPU {
		return true
	}
	return d.Ordinal() == other.Ordinal()
}

// String returns "cpu" or "<kind>:<ordinal>".
func (d Device) String() string {
	if d.kind == KindCPU {
		return "cpu"
	}
	return fmt.Sprintf("%s:%d", d.kind, d.Ordinal())
}

// Zeros produces zero-filled storage of the given shape and dtype.
func (d Device) Zeros(shape Shape, dtype DataType) (*Storage, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("zeros: %w", err)
	}
	if d.accel == nil {
		return newHostStorage(d, cpuZeros(shape, dtype)), nil
	}
	buf, err := d.accel.Zeros(shape, dtype)
	if err != nil {
		return nil, err
	}
	return newAccelStorage(d, dtype, buf), nil
}

// Ones produces storage filled with ones.
func (d Device) Ones(shape Shape, dtype DataType) (*Storage, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("ones: %w", err)
	}
	if d.accel == nil {
		host, err := cpuOnes(shape, dtype)
		if err != nil {
			return nil, err
		}
		return newHostStorage(d, host), nil
	}
	buf, err := d.accel.Ones(shape, dtype)
	if err != nil {
		return nil, err
	}
	return newAccelStorage(d, dtype, buf), nil
}

// RandUniform produces storage filled with uniform random values in [lo, up).
// Only floating point dtypes are supported.
func (d Device) RandUniform(shape Shape, dtype DataType, lo, up float64) (*Storage, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("rand_uniform: %w", err)
	}
	if d.accel == nil {
		host, err := cpuRandUniform(shape, dtype, lo, up)
		if err != nil {
			return nil, err
		}
		return newHostStorage(d, host), nil
	}
	buf, err := d.accel.RandUniform(shape, dtype, lo, up)
	if err != nil {
		return nil, err
	}
	return newAccelStorage(d, dtype, buf), nil
}

// RandNormal produces storage filled with normally distributed random values.
// Only floating point dtypes are supported.
func (d Device) RandNormal(shape Shape, dtype DataType, mean, std float64) (*Storage, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("rand_normal: %w", err)
	}
	if d.accel == nil {
		host, err := cpuRandNormal(shape, dtype, mean, std)
		if err != nil {
			return nil, err
		}
		return newHostStorage(d, host), nil
	}
	buf, err := d.accel.RandNormal(shape, dtype, mean, std)
	if err != nil {
		return nil, err
	}
	return newAccelStorage(d, dtype, buf), nil
}

// Storage ingests a fixed-shape host array. The CPU device consumes the
// array's host buffer directly; accelerators upload it after construction.
func (d Device) Storage(array NdArray) (*Storage, error) {
	if _, err := array.Shape(); err != nil {
		return nil, err
	}
	host := array.HostBuffer()
	return d.StorageOwned(host)
}

// StorageOwned wraps an owned host buffer into device storage.
// The buffer must not be modified by the caller afterwards.
func (d Device) StorageOwned(host *HostBuffer) (*Storage, error) {
	if d.accel == nil {
		return newHostStorage(d, host), nil
	}
	buf, err := d.accel.FromHost(host)
	if err != nil {
		return nil, err
	}
	return newAccelStorage(d, host.DType(), buf), nil
}
