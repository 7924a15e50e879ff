package tensor

import (
	"fmt"
	"math"
	"math/rand"
)

// In-process implementations of the storage-producing operations.
// The accelerator kinds provide the same operations behind AccelDevice.

func cpuZeros(shape Shape, dtype DataType) *HostBuffer {
	// make() already zero-fills, which is also the correct bit pattern for
	// every supported float encoding.
	return NewHostBuffer(dtype, shape.NumElements())
}

func cpuOnes(shape Shape, dtype DataType) (*HostBuffer, error) {
	buf := NewHostBuffer(dtype, shape.NumElements())
	switch dtype {
	case Float32:
		for i, data := 0, buf.AsFloat32(); i < len(data); i++ {
			data[i] = 1
		}
	case Float64:
		for i, data := 0, buf.AsFloat64(); i < len(data); i++ {
			data[i] = 1
		}
	case Float16:
		for i, data := 0, buf.AsUint16(); i < len(data); i++ {
			data[i] = 0x3C00 // 1.0 in IEEE 754 half precision
		}
	case BFloat16:
		for i, data := 0, buf.AsUint16(); i < len(data); i++ {
			data[i] = 0x3F80 // 1.0 in bfloat16
		}
	case Int32:
		for i, data := 0, buf.AsInt32(); i < len(data); i++ {
			data[i] = 1
		}
	case Int64:
		for i, data := 0, buf.AsInt64(); i < len(data); i++ {
			data[i] = 1
		}
	case Uint8:
		for i, data := 0, buf.AsUint8(); i < len(data); i++ {
			data[i] = 1
		}
	default:
		return nil, fmt.Errorf("ones: unsupported dtype %s", dtype)
	}
	return buf, nil
}

// cpuRandUniform fills a buffer with uniform random values in [lo, up).
// Note: Uses math/rand (not crypto/rand) - appropriate for weight initialization.
func cpuRandUniform(shape Shape, dtype DataType, lo, up float64) (*HostBuffer, error) {
	buf := NewHostBuffer(dtype, shape.NumElements())
	switch dtype {
	case Float32:
		data := buf.AsFloat32()
		for i := range data {
			data[i] = float32(lo + rand.Float64()*(up-lo)) //nolint:gosec // G404: weight init
		}
	case Float64:
		data := buf.AsFloat64()
		for i := range data {
			data[i] = lo + rand.Float64()*(up-lo) //nolint:gosec // G404: weight init
		}
	default:
		return nil, fmt.Errorf("rand_uniform: unsupported dtype %s", dtype)
	}
	return buf, nil
}

// cpuRandNormal fills a buffer with normally distributed random values using
// the Box-Muller transform.
func cpuRandNormal(shape Shape, dtype DataType, mean, std float64) (*HostBuffer, error) {
	buf := NewHostBuffer(dtype, shape.NumElements())
	switch dtype {
	case Float32:
		data := buf.AsFloat32()
		for i := 0; i < len(data); i += 2 {
			z0, z1 := boxMuller()
			data[i] = float32(mean + std*z0)
			if i+1 < len(data) {
				data[i+1] = float32(mean + std*z1)
			}
		}
	case Float64:
		data := buf.AsFloat64()
		for i := 0; i < len(data); i += 2 {
			z0, z1 := boxMuller()
			data[i] = mean + std*z0
			if i+1 < len(data) {
				data[i+1] = mean + std*z1
			}
		}
	default:
		return nil, fmt.Errorf("rand_normal: unsupported dtype %s", dtype)
	}
	return buf, nil
}

// Host-side fill entry points for accelerator drivers that generate values
// on the CPU and upload them.

// CPUZeros allocates a zero-filled host buffer for shape.
func CPUZeros(shape Shape, dtype DataType) (*HostBuffer, error) {
	return cpuZeros(shape, dtype), nil
}

// CPUOnes allocates a one-filled host buffer for shape.
func CPUOnes(shape Shape, dtype DataType) (*HostBuffer, error) {
	return cpuOnes(shape, dtype)
}

// CPURandUniform allocates a host buffer of uniform samples in [lo, up).
func CPURandUniform(shape Shape, dtype DataType, lo, up float64) (*HostBuffer, error) {
	return cpuRandUniform(shape, dtype, lo, up)
}

// CPURandNormal allocates a host buffer of gaussian samples.
func CPURandNormal(shape Shape, dtype DataType, mean, std float64) (*HostBuffer, error) {
	return cpuRandNormal(shape, dtype, mean, std)
}

func boxMuller() (float64, float64) {
	u1 := rand.Float64() //nolint:gosec // G404: weight init
	u2 := rand.Float64() //nolint:gosec // G404: weight init
	r := math.Sqrt(-2.0 * math.Log(1-u1))
	z0 := r * math.Cos(2.0*math.Pi*u2)
	z1 := r * math.Sin(2.0*math.Pi*u2)
	return z0, z1
}
