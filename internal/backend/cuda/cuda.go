//go:build linux && cuda

package cuda

/*
#cgo LDFLAGS: -lcudart -L/usr/local/cuda/lib64
#cgo CFLAGS: -I/usr/local/cuda/include
#include <cuda_runtime.h>
#include <stdlib.h>
*/
import "C"
import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/lo-ferris/candle/internal/tensor"
)

func init() {
	tensor.RegisterDriver(tensor.KindCUDA, open)
}

// Available reports whether the build carries the CUDA driver.
const Available = true

type accel struct {
	ordinal int
	stream  C.cudaStream_t
	mu      sync.Mutex
}

func open(ordinal int) (tensor.AccelDevice, error) {
	var count C.int
	if result := C.cudaGetDeviceCount(&count); result != C.cudaSuccess {
		return nil, fmt.Errorf("cuda: cudaGetDeviceCount failed: %s", C.GoString(C.cudaGetErrorString(result)))
	}
	if ordinal < 0 || ordinal >= int(count) {
		return nil, fmt.Errorf("cuda: device %d out of range, %d device(s) present", ordinal, int(count))
	}
	if result := C.cudaSetDevice(C.int(ordinal)); result != C.cudaSuccess {
		return nil, fmt.Errorf("cuda: cudaSetDevice(%d) failed: %s", ordinal, C.GoString(C.cudaGetErrorString(result)))
	}

	a := &accel{ordinal: ordinal}
	if result := C.cudaStreamCreate(&a.stream); result != C.cudaSuccess {
		return nil, fmt.Errorf("cuda: cudaStreamCreate failed: %s", C.GoString(C.cudaGetErrorString(result)))
	}
	runtime.SetFinalizer(a, func(a *accel) { a.free() })
	return a, nil
}

func (a *accel) free() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stream != nil {
		C.cudaStreamDestroy(a.stream)
		a.stream = nil
	}
}

func (a *accel) Kind() tensor.DeviceKind { return tensor.KindCUDA }

func (a *accel) Ordinal() int { return a.ordinal }

func (a *accel) Zeros(shape tensor.Shape, dtype tensor.DataType) (tensor.AccelBuffer, error) {
	buf, err := a.alloc(dtype, int64(shape.NumElements())*int64(dtype.Size()))
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if result := C.cudaMemsetAsync(buf.devPtr, 0, C.size_t(buf.size), a.stream); result != C.cudaSuccess {
		buf.Release()
		return nil, fmt.Errorf("cuda: cudaMemsetAsync failed: %s", C.GoString(C.cudaGetErrorString(result)))
	}
	return buf, nil
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

func (a *accel) FromHost(host *tensor.HostBuffer) (tensor.AccelBuffer, error) {
	data := host.Bytes()
	buf, err := a.alloc(host.DType(), int64(len(data)))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return buf, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	result := C.cudaMemcpyAsync(buf.devPtr, unsafe.Pointer(&data[0]), C.size_t(len(data)), C.cudaMemcpyHostToDevice, a.stream)
	if result != C.cudaSuccess {
		buf.Release()
		return nil, fmt.Errorf("cuda: upload failed: %s", C.GoString(C.cudaGetErrorString(result)))
	}
	C.cudaStreamSynchronize(a.stream)
	return buf, nil
}

func (a *accel) alloc(dtype tensor.DataType, size int64) (*buf, error) {
	var devPtr unsafe.Pointer
	if result := C.cudaMalloc(&devPtr, C.size_t(size)); result != C.cudaSuccess {
		return nil, fmt.Errorf("cuda: cudaMalloc of %d bytes failed: %s", size, C.GoString(C.cudaGetErrorString(result)))
	}
	b := &buf{accel: a, devPtr: devPtr, dtype: dtype, size: size}
	runtime.SetFinalizer(b, func(b *buf) { b.Release() })
	return b, nil
}

type buf struct {
	accel  *accel
	devPtr unsafe.Pointer
	dtype  tensor.DataType
	size   int64
}

func (b *buf) ByteSize() int { return int(b.size) }

func (b *buf) ToHost() (*tensor.HostBuffer, error) {
	result := make([]byte, b.size)
	if b.size > 0 {
		a := b.accel
		a.mu.Lock()
		status := C.cudaMemcpyAsync(unsafe.Pointer(&result[0]), b.devPtr, C.size_t(b.size), C.cudaMemcpyDeviceToHost, a.stream)
		if status == C.cudaSuccess {
			status = C.cudaStreamSynchronize(a.stream)
		}
		a.mu.Unlock()
		if status != C.cudaSuccess {
			return nil, fmt.Errorf("cuda: readback failed: %s", C.GoString(C.cudaGetErrorString(status)))
		}
	}
	return tensor.HostBufferFromBytes(b.dtype, result)
}

// Release frees the device allocation. Safe to call more than once.
func (b *buf) Release() {
	if b.devPtr != nil {
		C.cudaFree(b.devPtr)
		b.devPtr = nil
	}
}
