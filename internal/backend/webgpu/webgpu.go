// Package webgpu provides a WebGPU accelerator driver using zero-CGO
// wgpu-native bindings. Tensor fills are generated host-side and uploaded;
// device buffers are read back through a staging buffer.
package webgpu

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/lo-ferris/candle/internal/tensor"
)

func init() {
	tensor.RegisterDriver(tensor.KindWebGPU, open)
}

// open brings up instance, adapter, device and queue for the accelerator.
// WebGPU exposes a single default adapter, so any ordinal but 0 is rejected.
func open(ordinal int) (dev tensor.AccelDevice, err error) {
	if ordinal != 0 {
		return nil, fmt.Errorf("webgpu: adapter %d not available, only the default adapter is exposed", ordinal)
	}
	// Recover from panic if the wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			dev = nil
			err = fmt.Errorf("webgpu: native library not available: %v", r)
		}
	}()

	a := &accel{instance: wgpu.CreateInstance(nil)}

	a.adapter, err = a.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		a.Release()
		return nil, fmt.Errorf("webgpu: failed to request adapter: %w", err)
	}

	a.device, err = a.adapter.RequestDevice(nil)
	if err != nil {
		a.Release()
		return nil, fmt.Errorf("webgpu: failed to request device: %w", err)
	}

	a.queue = a.device.GetQueue()
	if a.queue == nil {
		a.Release()
		return nil, fmt.Errorf("webgpu: failed to get queue")
	}

	return a, nil
}

// IsAvailable checks if WebGPU is usable on this system.
func IsAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()

	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()
	return true
}

type accel struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
}

var _ tensor.AccelDevice = (*accel)(nil)

func (a *accel) Kind() tensor.DeviceKind { return tensor.KindWebGPU }

func (a *accel) Ordinal() int { return 0 }

// Release frees all WebGPU resources, in reverse acquisition order. Safe on
// a partially constructed accelerator; buffers created on this accelerator
// must not be used afterwards.
func (a *accel) Release() {
	if a.queue != nil {
		a.queue.Release()
		a.queue = nil
	}
	if a.device != nil {
		a.device.Release()
		a.device = nil
	}
	if a.adapter != nil {
		a.adapter.Release()
		a.adapter = nil
	}
	if a.instance != nil {
		a.instance.Release()
		a.instance = nil
	}
}

func (a *accel) Zeros(shape tensor.Shape, dtype tensor.DataType) (tensor.AccelBuffer, error) {
	host, err := tensor.CPUZeros(shape, dtype)
	if err != nil {
		return nil, err
	}
	return a.FromHost(host)
}

func (a *accel) Ones(shape tensor.Shape, dtype tensor.DataType) (tensor.AccelBuffer, error) {
	host, err := tensor.CPUOnes(shape, dtype)
	if err != nil {
		return nil, err
	}
	return a.FromHost(host)
}

func (a *accel) RandUniform(shape tensor.Shape, dtype tensor.DataType, lo, up float64) (tensor.AccelBuffer, error) {
	host, err := tensor.CPURandUniform(shape, dtype, lo, up)
	if err != nil {
		return nil, err
	}
	return a.FromHost(host)
}

func (a *accel) RandNormal(shape tensor.Shape, dtype tensor.DataType, mean, std float64) (tensor.AccelBuffer, error) {
	host, err := tensor.CPURandNormal(shape, dtype, mean, std)
	if err != nil {
		return nil, err
	}
	return a.FromHost(host)
}

// FromHost uploads host bytes into a storage buffer created MappedAtCreation.
func (a *accel) FromHost(host *tensor.HostBuffer) (tensor.AccelBuffer, error) {
	data := host.Bytes()
	size := uint64(len(data))

	buffer, err := a.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc,
		Size:             size,
		MappedAtCreation: true,
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: failed to create buffer: %w", err)
	}

	copy(buffer.GetMappedRange(0, uint(size)), data)
	buffer.Unmap()

	b := &buf{accel: a, buffer: buffer, dtype: host.DType(), size: size}
	runtime.SetFinalizer(b, func(b *buf) { b.Release() })
	return b, nil
}

type buf struct {
	accel  *accel
	buffer *wgpu.Buffer
	dtype  tensor.DataType
	size   uint64
}

func (b *buf) ByteSize() int { return int(b.size) }

// ToHost copies the buffer back through a staging buffer, since storage
// buffers cannot be mapped directly.
func (b *buf) ToHost() (*tensor.HostBuffer, error) {
	a := b.accel

	stagingBuffer, err := a.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  b.size,
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: failed to create staging buffer: %w", err)
	}
	defer stagingBuffer.Release()

	encoder, err := a.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("webgpu: failed to create command encoder: %w", err)
	}
	defer encoder.Release()
	encoder.CopyBufferToBuffer(b.buffer, 0, stagingBuffer, 0, b.size)
	cmdBuffer, err := encoder.Finish(nil)
	if err != nil {
		return nil, fmt.Errorf("webgpu: failed to finish command encoder: %w", err)
	}
	defer cmdBuffer.Release()
	a.queue.Submit(cmdBuffer)

	var mapStatus wgpu.BufferMapAsyncStatus
	err = stagingBuffer.MapAsync(wgpu.MapModeRead, 0, b.size, func(status wgpu.BufferMapAsyncStatus) {
		mapStatus = status
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: failed to map staging buffer: %w", err)
	}
	a.device.Poll(true, nil)
	if mapStatus != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("webgpu: staging buffer map failed with status %v", mapStatus)
	}

	result := make([]byte, b.size)
	copy(result, stagingBuffer.GetMappedRange(0, uint(b.size)))
	stagingBuffer.Unmap()

	return tensor.HostBufferFromBytes(b.dtype, result)
}

// Release frees the device buffer. Safe to call more than once; also runs as
// the buffer's finalizer.
func (b *buf) Release() {
	if b.buffer != nil {
		b.buffer.Release()
		b.buffer = nil
	}
}
