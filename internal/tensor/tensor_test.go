package tensor

import (
	"errors"
	"math"
	"testing"
)

func assertShape(t *testing.T, expected, actual Shape, msg string) {
	t.Helper()
	if !expected.Equal(actual) {
		t.Errorf("%s: expected shape %v, got %v", msg, expected, actual)
	}
}

func TestDataTypeSize(t *testing.T) {
	tests := []struct {
		dtype DataType
		size  int
	}{
		{Float32, 4},
		{Float64, 8},
		{Float16, 2},
		{BFloat16, 2},
		{Int32, 4},
		{Int64, 8},
		{Uint8, 1},
	}

	for _, tt := range tests {
		if got := tt.dtype.Size(); got != tt.size {
			t.Errorf("%s.Size() = %d, want %d", tt.dtype, got, tt.size)
		}
	}
}

func TestShapeNumElements(t *testing.T) {
	tests := []struct {
		shape Shape
		n     int
	}{
		{Shape{}, 1},
		{Shape{5}, 5},
		{Shape{2, 3}, 6},
		{Shape{2, 3, 4}, 24},
	}
	for _, tt := range tests {
		if got := tt.shape.NumElements(); got != tt.n {
			t.Errorf("%v.NumElements() = %d, want %d", tt.shape, got, tt.n)
		}
	}
}

func TestShapeStrides(t *testing.T) {
	strides := Shape{2, 3, 4}.Strides()
	want := []int{12, 4, 1}
	for i := range want {
		if strides[i] != want[i] {
			t.Fatalf("strides = %v, want %v", strides, want)
		}
	}
}

func TestInferDataType(t *testing.T) {
	if got := inferDataType(float32(0)); got != Float32 {
		t.Errorf("inferDataType(float32) = %s", got)
	}
	if got := inferDataType(float64(0)); got != Float64 {
		t.Errorf("inferDataType(float64) = %s", got)
	}
	if got := inferDataType(int32(0)); got != Int32 {
		t.Errorf("inferDataType(int32) = %s", got)
	}
	if got := inferDataType(int64(0)); got != Int64 {
		t.Errorf("inferDataType(int64) = %s", got)
	}
	if got := inferDataType(uint8(0)); got != Uint8 {
		t.Errorf("inferDataType(uint8) = %s", got)
	}
}

func TestShapeValidate(t *testing.T) {
	if err := (Shape{2, 3}).Validate(); err != nil {
		t.Fatalf("Validate(2,3): %v", err)
	}
	err := (Shape{2, 0, 4}).Validate()
	var invalid *InvalidShapeError
	if !errors.As(err, &invalid) {
		t.Fatalf("Validate(2,0,4) = %v, want InvalidShapeError", err)
	}
	if invalid.Index != 1 {
		t.Errorf("offending index = %d, want 1", invalid.Index)
	}
}

func TestZeros(t *testing.T) {
	tr, err := Zeros(Shape{2, 3}, Float32, CPU)
	if err != nil {
		t.Fatalf("Zeros: %v", err)
	}
	assertShape(t, Shape{2, 3}, tr.Shape(), "zeros")
	if tr.DType() != Float32 {
		t.Errorf("dtype = %s, want float32", tr.DType())
	}
	data, err := tr.Float32s()
	if err != nil {
		t.Fatalf("Float32s: %v", err)
	}
	for i, v := range data {
		if v != 0 {
			t.Errorf("data[%d] = %v, want 0", i, v)
		}
	}
}

func TestOnes(t *testing.T) {
	for _, dtype := range []DataType{Float32, Float64, Float16, BFloat16, Int32, Int64, Uint8} {
		tr, err := Ones(Shape{4}, dtype, CPU)
		if err != nil {
			t.Fatalf("Ones(%s): %v", dtype, err)
		}
		f32, err := tr.ToDType(Float32)
		if err != nil {
			t.Fatalf("ToDType(%s): %v", dtype, err)
		}
		data, err := f32.Float32s()
		if err != nil {
			t.Fatal(err)
		}
		for i, v := range data {
			if v != 1 {
				t.Errorf("%s: data[%d] = %v, want 1", dtype, i, v)
			}
		}
	}
}

func TestRandUniformRange(t *testing.T) {
	tr, err := RandUniform(Shape{1000}, Float32, -2, 3, CPU)
	if err != nil {
		t.Fatalf("RandUniform: %v", err)
	}
	data, _ := tr.Float32s()
	for i, v := range data {
		if v < -2 || v >= 3 {
			t.Fatalf("data[%d] = %v outside [-2, 3)", i, v)
		}
	}
}

func TestRandUniformIntFails(t *testing.T) {
	if _, err := RandUniform(Shape{4}, Int32, 0, 1, CPU); err == nil {
		t.Fatal("expected error for integer uniform init")
	}
}

func TestRandNormalMoments(t *testing.T) {
	tr, err := RandNormal(Shape{10000}, Float64, 1.5, 0.5, CPU)
	if err != nil {
		t.Fatalf("RandNormal: %v", err)
	}
	host, _ := tr.Host()
	data := host.AsFloat64()
	var sum float64
	for _, v := range data {
		sum += v
	}
	mean := sum / float64(len(data))
	if math.Abs(mean-1.5) > 0.05 {
		t.Errorf("sample mean = %v, want ~1.5", mean)
	}
}

func TestFromSlice(t *testing.T) {
	tr, err := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3}, CPU)
	if err != nil {
		t.Fatalf("FromSlice: %v", err)
	}
	data, _ := tr.Float32s()
	if data[4] != 5 {
		t.Errorf("data[4] = %v, want 5", data[4])
	}

	if _, err := FromSlice([]float32{1, 2, 3}, Shape{2, 3}, CPU); err == nil {
		t.Fatal("expected element count mismatch error")
	}
}

func TestFromRawBuffer(t *testing.T) {
	raw := []byte{0, 0, 128, 63, 0, 0, 0, 64} // [1.0, 2.0] little-endian f32
	tr, err := FromRawBuffer(raw, Float32, Shape{2}, CPU)
	if err != nil {
		t.Fatalf("FromRawBuffer: %v", err)
	}
	data, _ := tr.Float32s()
	if data[0] != 1 || data[1] != 2 {
		t.Errorf("data = %v, want [1 2]", data)
	}

	if _, err := FromRawBuffer(raw, Float32, Shape{3}, CPU); err == nil {
		t.Fatal("expected element count mismatch error")
	}
	if _, err := FromRawBuffer(raw[:7], Float32, Shape{2}, CPU); err == nil {
		t.Fatal("expected byte alignment error")
	}
}

func TestNdArrayIngestion(t *testing.T) {
	tr, err := New(Mat[float32]{{1, 2, 3}, {4, 5, 6}}, CPU)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	assertShape(t, Shape{2, 3}, tr.Shape(), "matrix")

	tr, err = New(Cube[float32]{{{1}, {2}}, {{3}, {4}}}, CPU)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	assertShape(t, Shape{2, 2, 1}, tr.Shape(), "cube")

	tr, err = New(Scalar[float32]{Value: 7}, CPU)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	assertShape(t, Shape{}, tr.Shape(), "scalar")
	data, _ := tr.Float32s()
	if data[0] != 7 {
		t.Errorf("scalar value = %v, want 7", data[0])
	}
}

func TestNdArrayRagged(t *testing.T) {
	if _, err := New(Mat[float32]{{1, 2}, {3}}, CPU); err == nil {
		t.Fatal("expected ragged matrix error")
	}
	if _, err := New(Cube[float32]{{{1, 2}}, {{3}}}, CPU); err == nil {
		t.Fatal("expected ragged cube error")
	}
}

func TestCloneSharesStorage(t *testing.T) {
	tr, _ := FromSlice([]float32{1, 2}, Shape{2}, CPU)
	clone := tr.Clone()
	if clone.Storage() != tr.Storage() {
		t.Error("clone should share storage")
	}
	assertShape(t, tr.Shape(), clone.Shape(), "clone")
}

func TestConvertHalfPrecision(t *testing.T) {
	src, _ := FromSlice([]float32{0, 1, -1.5, 0.25}, Shape{4}, CPU)

	for _, dtype := range []DataType{Float16, BFloat16} {
		half, err := src.ToDType(dtype)
		if err != nil {
			t.Fatalf("ToDType(%s): %v", dtype, err)
		}
		if half.DType() != dtype {
			t.Fatalf("dtype = %s, want %s", half.DType(), dtype)
		}
		back, err := half.ToDType(Float32)
		if err != nil {
			t.Fatalf("ToDType(float32): %v", err)
		}
		data, _ := back.Float32s()
		want := []float32{0, 1, -1.5, 0.25} // exactly representable in both encodings
		for i := range want {
			if data[i] != want[i] {
				t.Errorf("%s roundtrip: data[%d] = %v, want %v", dtype, i, data[i], want[i])
			}
		}
	}
}

func TestVariableSet(t *testing.T) {
	initial, _ := Zeros(Shape{2, 2}, Float32, CPU)
	v := NewVariable(initial)

	replacement, _ := Ones(Shape{2, 2}, Float32, CPU)
	if err := v.Set(replacement); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, _ := v.AsTensor().Float32s()
	if data[0] != 1 {
		t.Errorf("value not replaced: %v", data)
	}

	wrongShape, _ := Zeros(Shape{4}, Float32, CPU)
	var shapeErr *SetShapeError
	if err := v.Set(wrongShape); !errors.As(err, &shapeErr) {
		t.Fatalf("expected SetShapeError, got %v", err)
	}

	wrongDType, _ := Zeros(Shape{2, 2}, Float64, CPU)
	var dtypeErr *DTypeMismatchError
	if err := v.Set(wrongDType); !errors.As(err, &dtypeErr) {
		t.Fatalf("expected DTypeMismatchError, got %v", err)
	}

	// Failed sets keep the previous value.
	data, _ = v.AsTensor().Float32s()
	if data[0] != 1 {
		t.Errorf("failed Set mutated the variable: %v", data)
	}
}
