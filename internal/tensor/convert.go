package tensor

import (
	"fmt"
	"math"

	"github.com/x448/float16"
)

// Convert copies a host buffer into a new buffer of the target dtype.
// The source buffer is returned unchanged when the dtype already matches.
//
// Float16 and BFloat16 convert through float32; integer/float conversions
// truncate the way a Go conversion would. All conversions pass through a
// float64 intermediary, so int64 values of magnitude above 2^53 lose
// precision even on an int64 to int64-adjacent round trip.
func Convert(src *HostBuffer, to DataType) (*HostBuffer, error) {
	if src.DType() == to {
		return src, nil
	}

	f64, err := toFloat64(src)
	if err != nil {
		return nil, err
	}

	dst := NewHostBuffer(to, src.Len())
	switch to {
	case Float32:
		data := dst.AsFloat32()
		for i, v := range f64 {
			data[i] = float32(v)
		}
	case Float64:
		copy(dst.AsFloat64(), f64)
	case Float16:
		data := dst.AsUint16()
		for i, v := range f64 {
			data[i] = float16.Fromfloat32(float32(v)).Bits()
		}
	case BFloat16:
		data := dst.AsUint16()
		for i, v := range f64 {
			data[i] = float32ToBFloat16(float32(v))
		}
	case Int32:
		data := dst.AsInt32()
		for i, v := range f64 {
			data[i] = int32(v)
		}
	case Int64:
		data := dst.AsInt64()
		for i, v := range f64 {
			data[i] = int64(v)
		}
	case Uint8:
		data := dst.AsUint8()
		for i, v := range f64 {
			data[i] = uint8(v)
		}
	default:
		return nil, fmt.Errorf("convert: unsupported target dtype %s", to)
	}
	return dst, nil
}

func toFloat64(src *HostBuffer) ([]float64, error) {
	out := make([]float64, src.Len())
	switch src.DType() {
	case Float32:
		for i, v := range src.AsFloat32() {
			out[i] = float64(v)
		}
	case Float64:
		copy(out, src.AsFloat64())
	case Float16:
		for i, bits := range src.AsUint16() {
			out[i] = float64(float16.Frombits(bits).Float32())
		}
	case BFloat16:
		for i, bits := range src.AsUint16() {
			out[i] = float64(math.Float32frombits(uint32(bits) << 16))
		}
	case Int32:
		for i, v := range src.AsInt32() {
			out[i] = float64(v)
		}
	case Int64:
		for i, v := range src.AsInt64() {
			out[i] = float64(v)
		}
	case Uint8:
		for i, v := range src.AsUint8() {
			out[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("convert: unsupported source dtype %s", src.DType())
	}
	return out, nil
}

// float32ToBFloat16 rounds to nearest even, matching hardware bf16 casts.
func float32ToBFloat16(v float32) uint16 {
	bits := math.Float32bits(v)
	if v != v { // NaN: keep the payload's top bits, force a set mantissa bit
		return uint16(bits>>16) | 0x0040
	}
	rounding := uint32(0x7FFF) + ((bits >> 16) & 1)
	return uint16((bits + rounding) >> 16)
}
