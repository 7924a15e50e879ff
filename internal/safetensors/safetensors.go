package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/lo-ferris/candle/internal/tensor"
)

// DType represents SafeTensors data type tags.
type DType string

// Supported SafeTensors dtypes.
const (
	F16  DType = "F16"
	BF16 DType = "BF16"
	F32  DType = "F32"
	F64  DType = "F64"
	I32  DType = "I32"
	I64  DType = "I64"
	U8   DType = "U8"
)

// maxHeaderSize bounds the JSON header; anything larger is rejected as corrupt.
const maxHeaderSize = 100 * 1024 * 1024

// TensorInfo describes one tensor in a SafeTensors file.
type TensorInfo struct {
	DType       DType    `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"` // [start, end], relative to the data section
}

// ByteSize returns the tensor's payload size in bytes.
func (i *TensorInfo) ByteSize() int64 {
	return i.DataOffsets[1] - i.DataOffsets[0]
}

// header is the JSON header: tensor entries plus the optional __metadata__ map.
type header struct {
	Metadata map[string]string
	Tensors  map[string]TensorInfo
}

func (h *header) UnmarshalJSON(data []byte) error {
	var rawMap map[string]json.RawMessage
	if err := json.Unmarshal(data, &rawMap); err != nil {
		return err
	}

	if metadataRaw, ok := rawMap["__metadata__"]; ok {
		if err := json.Unmarshal(metadataRaw, &h.Metadata); err != nil {
			return fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	h.Tensors = make(map[string]TensorInfo)
	for key, value := range rawMap {
		if key == "__metadata__" {
			continue
		}
		var info TensorInfo
		if err := json.Unmarshal(value, &info); err != nil {
			return fmt.Errorf("failed to unmarshal tensor %s: %w", key, err)
		}
		h.Tensors[key] = info
	}
	return nil
}

// File is an open SafeTensors file providing name-indexed tensor views.
type File struct {
	file       *os.File
	header     header
	dataOffset int64 // offset where the tensor data section starts
}

// Open opens a SafeTensors file and parses its header.
func Open(path string) (*File, error) {
	//nolint:gosec // G304: file path comes from the caller, expected for weight loading
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	var headerSize uint64
	if err := binary.Read(file, binary.LittleEndian, &headerSize); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to read header size: %w", err)
	}
	if headerSize > maxHeaderSize {
		_ = file.Close()
		return nil, fmt.Errorf("invalid header size: %d (too large)", headerSize)
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(file, headerBytes); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var h header
	if err := json.Unmarshal(headerBytes, &h); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	return &File{
		file:       file,
		header:     h,
		dataOffset: int64(8 + headerSize), //nolint:gosec // G115: header size bounded above
	}, nil
}

// Close closes the underlying file.
func (f *File) Close() error {
	if f.file != nil {
		return f.file.Close()
	}
	return nil
}

// Metadata returns the __metadata__ map from the header, if any.
func (f *File) Metadata() map[string]string {
	return f.header.Metadata
}

// Names returns the names of all tensors in the file.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.header.Tensors))
	for name := range f.header.Tensors {
		names = append(names, name)
	}
	return names
}

// Has reports whether the file contains the named tensor.
func (f *File) Has(name string) bool {
	_, ok := f.header.Tensors[name]
	return ok
}

// Info returns the header entry for a tensor.
func (f *File) Info(name string) (*TensorInfo, error) {
	info, ok := f.header.Tensors[name]
	if !ok {
		return nil, fmt.Errorf("tensor %s not found", name)
	}
	return &info, nil
}

// ReadAll reads the full payload of the named tensor.
func (f *File) ReadAll(name string) ([]byte, error) {
	info, err := f.Info(name)
	if err != nil {
		return nil, err
	}
	return f.ReadRange(name, 0, info.ByteSize())
}

// ReadRange reads [start, end) bytes of the named tensor's payload, offsets
// relative to the tensor's own data. This is the slicing primitive behind
// sharded loads: only the requested range is read from disk.
func (f *File) ReadRange(name string, start, end int64) ([]byte, error) {
	info, err := f.Info(name)
	if err != nil {
		return nil, err
	}
	if start < 0 || end < start || end > info.ByteSize() {
		return nil, fmt.Errorf("invalid byte range [%d, %d) for tensor %s of %d bytes",
			start, end, name, info.ByteSize())
	}

	abs := f.dataOffset + info.DataOffsets[0] + start
	if _, err := f.file.Seek(abs, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to tensor data: %w", err)
	}
	data := make([]byte, end-start)
	if _, err := io.ReadFull(f.file, data); err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	return data, nil
}

// Load reads the named tensor, converts it to the requested dtype and places
// it on the device. Half precision payloads are widened through float32.
func (f *File) Load(name string, dtype tensor.DataType, device tensor.Device) (*tensor.Tensor, error) {
	info, err := f.Info(name)
	if err != nil {
		return nil, err
	}
	srcDType, err := ToDataType(info.DType)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}
	shape := tensor.Shape(info.Shape)
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape for tensor %s: %w", name, err)
	}

	data, err := f.ReadAll(name)
	if err != nil {
		return nil, err
	}
	host, err := tensor.HostBufferFromBytes(srcDType, data)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}
	host, err = tensor.Convert(host, dtype)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}
	storage, err := device.StorageOwned(host)
	if err != nil {
		return nil, err
	}
	return tensor.NewFromStorage(storage, shape)
}

// ToDataType converts a SafeTensors dtype tag to the runtime data type.
func ToDataType(dt DType) (tensor.DataType, error) {
	switch dt {
	case F32:
		return tensor.Float32, nil
	case F64:
		return tensor.Float64, nil
	case F16:
		return tensor.Float16, nil
	case BF16:
		return tensor.BFloat16, nil
	case I32:
		return tensor.Int32, nil
	case I64:
		return tensor.Int64, nil
	case U8:
		return tensor.Uint8, nil
	default:
		return 0, fmt.Errorf("unsupported dtype: %s", dt)
	}
}

// FromDataType converts a runtime data type to its SafeTensors tag.
func FromDataType(dt tensor.DataType) (DType, error) {
	switch dt {
	case tensor.Float32:
		return F32, nil
	case tensor.Float64:
		return F64, nil
	case tensor.Float16:
		return F16, nil
	case tensor.BFloat16:
		return BF16, nil
	case tensor.Int32:
		return I32, nil
	case tensor.Int64:
		return I64, nil
	case tensor.Uint8:
		return U8, nil
	default:
		return "", fmt.Errorf("dtype %s has no SafeTensors representation", dt)
	}
}
