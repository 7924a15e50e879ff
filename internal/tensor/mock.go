package tensor

// Verify that MockAccel implements AccelDevice.
var _ AccelDevice = (*MockAccel)(nil)

// MockAccel is a host-emulated accelerator backend for testing the dispatch
// layer without real hardware. Buffers live in host memory but are tagged
// and routed exactly like device-resident ones.
type MockAccel struct {
	kind    DeviceKind
	ordinal int

	// Uploads counts FromHost calls, letting tests assert transfer behavior.
	Uploads int
}

// NewMockAccel creates a mock backend for the given kind and ordinal.
func NewMockAccel(kind DeviceKind, ordinal int) *MockAccel {
	return &MockAccel{kind: kind, ordinal: ordinal}
}

// MockDevice wraps a mock backend in a Device handle, bypassing the driver
// registry so tests don't leak process-wide registrations.
func MockDevice(accel *MockAccel) Device {
	return Device{kind: accel.kind, accel: accel}
}

// Kind returns the mocked backend kind.
func (m *MockAccel) Kind() DeviceKind { return m.kind }

// Ordinal returns the mocked physical ordinal.
func (m *MockAccel) Ordinal() int { return m.ordinal }

// Zeros allocates a zero-filled mock device buffer.
func (m *MockAccel) Zeros(shape Shape, dtype DataType) (AccelBuffer, error) {
	return &mockBuffer{host: cpuZeros(shape, dtype)}, nil
}

// Ones allocates a mock device buffer filled with ones.
func (m *MockAccel) Ones(shape Shape, dtype DataType) (AccelBuffer, error) {
	host, err := cpuOnes(shape, dtype)
	if err != nil {
		return nil, err
	}
	return &mockBuffer{host: host}, nil
}

// RandUniform fills a mock device buffer with uniform random values.
func (m *MockAccel) RandUniform(shape Shape, dtype DataType, lo, up float64) (AccelBuffer, error) {
	host, err := cpuRandUniform(shape, dtype, lo, up)
	if err != nil {
		return nil, err
	}
	return &mockBuffer{host: host}, nil
}

// RandNormal fills a mock device buffer with normally distributed values.
func (m *MockAccel) RandNormal(shape Shape, dtype DataType, mean, std float64) (AccelBuffer, error) {
	host, err := cpuRandNormal(shape, dtype, mean, std)
	if err != nil {
		return nil, err
	}
	return &mockBuffer{host: host}, nil
}

// FromHost "uploads" the host buffer by copying it.
func (m *MockAccel) FromHost(buf *HostBuffer) (AccelBuffer, error) {
	m.Uploads++
	return &mockBuffer{host: buf.Clone()}, nil
}

type mockBuffer struct {
	host *HostBuffer
}

func (b *mockBuffer) ByteSize() int {
	return b.host.ByteSize()
}

func (b *mockBuffer) ToHost() (*HostBuffer, error) {
	return b.host.Clone(), nil
}
