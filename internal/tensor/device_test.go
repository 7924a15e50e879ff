package tensor

import (
	"errors"
	"testing"
)

func mockCUDA(ordinal int) Device {
	return MockDevice(NewMockAccel(KindCUDA, ordinal))
}

func TestSameDevice(t *testing.T) {
	cuda0 := mockCUDA(0)
	cuda0b := mockCUDA(0)
	cuda1 := mockCUDA(1)
	webgpu0 := MockDevice(NewMockAccel(KindWebGPU, 0))

	tests := []struct {
		name string
		a, b Device
		want bool
	}{
		{"cpu/cpu", CPU, CPU, true},
		{"cpu/cuda", CPU, cuda0, false},
		{"cuda0/cuda0", cuda0, cuda0b, true},
		{"cuda0/cuda1", cuda0, cuda1, false},
		{"cuda0/webgpu0", cuda0, webgpu0, false},
	}
	for _, tt := range tests {
		if got := tt.a.SameDevice(tt.b); got != tt.want {
			t.Errorf("%s: SameDevice = %v, want %v", tt.name, got, tt.want)
		}
		if got := tt.b.SameDevice(tt.a); got != tt.want {
			t.Errorf("%s (reversed): SameDevice = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestDeviceString(t *testing.T) {
	if s := CPU.String(); s != "cpu" {
		t.Errorf("CPU.String() = %q", s)
	}
	if s := mockCUDA(2).String(); s != "cuda:2" {
		t.Errorf("cuda:2 String() = %q", s)
	}
}

func TestAccelUnavailable(t *testing.T) {
	// No real CUDA driver is registered in tests.
	_, err := NewCUDA(0)
	if !errors.Is(err, ErrAccelUnavailable) {
		t.Fatalf("expected ErrAccelUnavailable, got %v", err)
	}
	if dev := CUDAIfAvailable(0); !dev.IsCPU() {
		t.Fatalf("CUDAIfAvailable should fall back to CPU, got %s", dev)
	}
}

func TestAccelDispatch(t *testing.T) {
	accel := NewMockAccel(KindCUDA, 0)
	dev := MockDevice(accel)

	tr, err := Zeros(Shape{2, 2}, Float32, dev)
	if err != nil {
		t.Fatalf("Zeros: %v", err)
	}
	if !tr.Device().SameDevice(dev) {
		t.Errorf("tensor device = %s, want %s", tr.Device(), dev)
	}
	data, err := tr.Float32s()
	if err != nil {
		t.Fatalf("readback: %v", err)
	}
	if len(data) != 4 {
		t.Fatalf("len = %d, want 4", len(data))
	}

	// Host array ingestion uploads exactly once.
	if _, err := New(Vec[float32]{1, 2, 3}, dev); err != nil {
		t.Fatalf("New: %v", err)
	}
	if accel.Uploads != 1 {
		t.Errorf("uploads = %d, want 1", accel.Uploads)
	}
}

func TestToDeviceRoundTrip(t *testing.T) {
	dev := mockCUDA(0)
	src, _ := FromSlice([]float32{1, 2, 3, 4}, Shape{2, 2}, CPU)

	up, err := src.ToDevice(dev)
	if err != nil {
		t.Fatalf("ToDevice(accel): %v", err)
	}
	if !up.Device().SameDevice(dev) {
		t.Fatalf("device = %s, want %s", up.Device(), dev)
	}

	down, err := up.ToDevice(CPU)
	if err != nil {
		t.Fatalf("ToDevice(cpu): %v", err)
	}
	data, _ := down.Float32s()
	for i, want := range []float32{1, 2, 3, 4} {
		if data[i] != want {
			t.Errorf("data[%d] = %v, want %v", i, data[i], want)
		}
	}

	// Same physical device: shared storage, no transfer.
	same, err := src.ToDevice(CPU)
	if err != nil {
		t.Fatal(err)
	}
	if same.Storage() != src.Storage() {
		t.Error("ToDevice to the same device should share storage")
	}
}
