package webgpu

import (
	"testing"

	"github.com/lo-ferris/candle/internal/tensor"
)

func TestIsAvailable(t *testing.T) {
	t.Logf("WebGPU available: %v", IsAvailable())
	// Reports status; absence of an adapter is not a failure.
}

func TestRoundTrip(t *testing.T) {
	if !IsAvailable() {
		t.Skip("WebGPU not available on this system")
	}

	dev, err := tensor.NewWebGPU(0)
	if err != nil {
		t.Fatalf("NewWebGPU failed: %v", err)
	}

	want := []float32{1, 2, 3, 4, 5, 6}
	up, err := tensor.FromSlice(want, tensor.Shape{2, 3}, dev)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}

	got, err := up.Float32s()
	if err != nil {
		t.Fatalf("readback failed: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("element %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestOpenAndRelease(t *testing.T) {
	if !IsAvailable() {
		t.Skip("WebGPU not available on this system")
	}

	dev, err := open(0)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	a := dev.(*accel)

	up, err := a.FromHost(tensor.HostBufferFromSlice([]float32{1, 2, 3}))
	if err != nil {
		t.Fatalf("FromHost failed: %v", err)
	}
	host, err := up.ToHost()
	if err != nil {
		t.Fatalf("ToHost failed: %v", err)
	}
	if got := host.AsFloat32(); got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Errorf("readback = %v, want [1 2 3]", got)
	}

	up.(*buf).Release()
	a.Release()
}

func TestOrdinalRejected(t *testing.T) {
	if _, err := open(1); err == nil {
		t.Fatal("expected error for non-default adapter ordinal")
	}
}
