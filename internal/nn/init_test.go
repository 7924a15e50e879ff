package nn

import (
	"math"
	"testing"

	"github.com/lo-ferris/candle/internal/tensor"
)

// TestInitConst tests the constant policies.
func TestInitConst(t *testing.T) {
	for _, tc := range []struct {
		init Init
		want float32
	}{
		{Zeros, 0},
		{Ones, 1},
	} {
		out, err := tc.init.Tensor(tensor.Shape{4}, tensor.Float32, tensor.CPU)
		if err != nil {
			t.Fatalf("Tensor() error: %v", err)
		}
		data, err := out.Float32s()
		if err != nil {
			t.Fatalf("Float32s() error: %v", err)
		}
		for _, v := range data {
			if v != tc.want {
				t.Errorf("got %v, want %v", v, tc.want)
			}
		}
	}
}

// TestInitUniformRange tests that uniform samples stay within bounds.
func TestInitUniformRange(t *testing.T) {
	out, err := Uniform(-0.25, 0.25).Tensor(tensor.Shape{1000}, tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatalf("Tensor() error: %v", err)
	}
	data, err := out.Float32s()
	if err != nil {
		t.Fatalf("Float32s() error: %v", err)
	}
	for _, v := range data {
		if v < -0.25 || v >= 0.25 {
			t.Errorf("sample %v outside [-0.25, 0.25)", v)
		}
	}
}

// TestInitKaimingUniform tests the fan-in bound sqrt(6/fanIn).
func TestInitKaimingUniform(t *testing.T) {
	fanIn := 24
	bound := math.Sqrt(6.0 / float64(fanIn))

	out, err := KaimingUniform(fanIn).Tensor(tensor.Shape{500}, tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatalf("Tensor() error: %v", err)
	}
	data, err := out.Float32s()
	if err != nil {
		t.Fatalf("Float32s() error: %v", err)
	}
	for _, v := range data {
		if float64(v) < -bound || float64(v) >= bound {
			t.Errorf("sample %v outside [-%v, %v)", v, bound, bound)
		}
	}
}

// TestInitRandnOnInts tests that gaussian init rejects integer dtypes.
func TestInitRandnOnInts(t *testing.T) {
	if _, err := Randn(0, 1).Tensor(tensor.Shape{4}, tensor.Int32, tensor.CPU); err == nil {
		t.Fatal("expected error for gaussian init of an integer tensor")
	}
}
