// Package gguf reads GGUF v3 archives: single-file, name-indexed tensor
// containers from the llama.cpp ecosystem. The archive exposes whole-tensor
// retrieval only; it has no byte-range slicing support.
package gguf

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/lo-ferris/candle/internal/tensor"
)

// GGUF format (v3):
// [4 bytes: "GGUF" magic]
// [4 bytes: version (3)]
// [8 bytes: tensor_count]
// [8 bytes: metadata_kv_count]
// [metadata key-value pairs]
// [tensor infos]
// [alignment padding]
// [tensor data (32-byte aligned)]

const (
	magic     = 0x46554747 // "GGUF" in little-endian
	version3  = 3
	alignment = 32
)

// valueType identifies a metadata value encoding.
type valueType uint32

const (
	typeUint8   valueType = 0
	typeInt8    valueType = 1
	typeUint16  valueType = 2
	typeInt16   valueType = 3
	typeUint32  valueType = 4
	typeInt32   valueType = 5
	typeFloat32 valueType = 6
	typeBool    valueType = 7
	typeString  valueType = 8
	typeArray   valueType = 9
	typeUint64  valueType = 10
	typeInt64   valueType = 11
	typeFloat64 valueType = 12
)

// TensorDType identifies a tensor payload encoding.
type TensorDType uint32

// Tensor payload encodings. Quantized encodings are recognized but not
// decodable here; loading them fails with a descriptive error.
const (
	DTypeF32  TensorDType = 0
	DTypeF16  TensorDType = 1
	DTypeQ4_0 TensorDType = 2
	DTypeQ4_1 TensorDType = 3
	DTypeQ8_0 TensorDType = 8
)

// TensorInfo describes one tensor entry in the archive.
type TensorInfo struct {
	Name   string
	Dims   []uint64 // innermost dimension first, per GGUF convention
	DType  TensorDType
	Offset uint64 // offset into the data section
}

// Shape returns the tensor shape in row-major order (GGUF stores dims
// innermost-first, so they are reversed here).
func (i *TensorInfo) Shape() tensor.Shape {
	shape := make(tensor.Shape, len(i.Dims))
	for d, dim := range i.Dims {
		shape[len(i.Dims)-1-d] = int(dim) //nolint:gosec // G115: model dims fit in int
	}
	return shape
}

// ByteSize returns the payload size in bytes. Quantized encodings store
// blocks of 32 elements (18, 20 and 34 bytes for Q4_0, Q4_1 and Q8_0).
func (i *TensorInfo) ByteSize() int64 {
	elems := int64(i.Shape().NumElements())
	switch i.DType {
	case DTypeF32:
		return elems * 4
	case DTypeF16:
		return elems * 2
	case DTypeQ4_0:
		return elems / 32 * 18
	case DTypeQ4_1:
		return elems / 32 * 20
	case DTypeQ8_0:
		return elems / 32 * 34
	default:
		return 0
	}
}

func (d TensorDType) String() string {
	switch d {
	case DTypeF32:
		return "F32"
	case DTypeF16:
		return "F16"
	case DTypeQ4_0:
		return "Q4_0"
	case DTypeQ4_1:
		return "Q4_1"
	case DTypeQ8_0:
		return "Q8_0"
	default:
		return fmt.Sprintf("dtype(%d)", uint32(d))
	}
}

// File is an open GGUF archive.
type File struct {
	file       *os.File
	version    uint32
	metadata   map[string]interface{}
	tensors    map[string]TensorInfo
	dataOffset uint64
}

// Open opens a GGUF archive and parses its header and tensor index.
func Open(path string) (*File, error) {
	//nolint:gosec // G304: file path comes from the caller, expected for weight loading
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	f := &File{
		file:     file,
		metadata: make(map[string]interface{}),
		tensors:  make(map[string]TensorInfo),
	}
	if err := f.parseHeader(); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}
	return f, nil
}

func (f *File) parseHeader() error {
	var m uint32
	if err := binary.Read(f.file, binary.LittleEndian, &m); err != nil {
		return fmt.Errorf("failed to read magic: %w", err)
	}
	if m != magic {
		return fmt.Errorf("invalid GGUF magic: 0x%X (expected 0x%X)", m, magic)
	}

	if err := binary.Read(f.file, binary.LittleEndian, &f.version); err != nil {
		return fmt.Errorf("failed to read version: %w", err)
	}
	if f.version != version3 {
		return fmt.Errorf("unsupported GGUF version: %d (only v3 supported)", f.version)
	}

	var tensorCount, metadataCount uint64
	if err := binary.Read(f.file, binary.LittleEndian, &tensorCount); err != nil {
		return fmt.Errorf("failed to read tensor count: %w", err)
	}
	if err := binary.Read(f.file, binary.LittleEndian, &metadataCount); err != nil {
		return fmt.Errorf("failed to read metadata count: %w", err)
	}

	for i := uint64(0); i < metadataCount; i++ {
		key, value, err := f.readMetadataKV()
		if err != nil {
			return fmt.Errorf("failed to read metadata[%d]: %w", i, err)
		}
		f.metadata[key] = value
	}

	for i := uint64(0); i < tensorCount; i++ {
		info, err := f.readTensorInfo()
		if err != nil {
			return fmt.Errorf("failed to read tensor info[%d]: %w", i, err)
		}
		f.tensors[info.Name] = info
	}

	pos, err := f.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("failed to get current position: %w", err)
	}
	f.dataOffset = alignOffset(uint64(pos), alignment) //nolint:gosec // G115: file position is non-negative
	return nil
}

func alignOffset(offset, align uint64) uint64 {
	return (offset + align - 1) / align * align
}

// readString reads a GGUF string (uint64 length + UTF-8 bytes).
func (f *File) readString() (string, error) {
	var length uint64
	if err := binary.Read(f.file, binary.LittleEndian, &length); err != nil {
		return "", err
	}
	if length > 1024*1024 { // Sanity check: max 1MB string
		return "", fmt.Errorf("string length too large: %d", length)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(f.file, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func (f *File) readMetadataKV() (string, interface{}, error) {
	key, err := f.readString()
	if err != nil {
		return "", nil, fmt.Errorf("failed to read key: %w", err)
	}
	var vt valueType
	if err := binary.Read(f.file, binary.LittleEndian, &vt); err != nil {
		return "", nil, fmt.Errorf("failed to read value type: %w", err)
	}
	value, err := f.readMetadataValue(vt)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read value for %s: %w", key, err)
	}
	return key, value, nil
}

func (f *File) readMetadataValue(vt valueType) (interface{}, error) {
	switch vt {
	case typeUint8:
		var v uint8
		err := binary.Read(f.file, binary.LittleEndian, &v)
		return v, err
	case typeInt8:
		var v int8
		err := binary.Read(f.file, binary.LittleEndian, &v)
		return v, err
	case typeUint16:
		var v uint16
		err := binary.Read(f.file, binary.LittleEndian, &v)
		return v, err
	case typeInt16:
		var v int16
		err := binary.Read(f.file, binary.LittleEndian, &v)
		return v, err
	case typeUint32:
		var v uint32
		err := binary.Read(f.file, binary.LittleEndian, &v)
		return v, err
	case typeInt32:
		var v int32
		err := binary.Read(f.file, binary.LittleEndian, &v)
		return v, err
	case typeFloat32:
		var v float32
		err := binary.Read(f.file, binary.LittleEndian, &v)
		return v, err
	case typeBool:
		var v bool
		err := binary.Read(f.file, binary.LittleEndian, &v)
		return v, err
	case typeString:
		return f.readString()
	case typeUint64:
		var v uint64
		err := binary.Read(f.file, binary.LittleEndian, &v)
		return v, err
	case typeInt64:
		var v int64
		err := binary.Read(f.file, binary.LittleEndian, &v)
		return v, err
	case typeFloat64:
		var v float64
		err := binary.Read(f.file, binary.LittleEndian, &v)
		return v, err
	case typeArray:
		return f.readArray()
	default:
		return nil, fmt.Errorf("unknown value type: %d", vt)
	}
}

// readArray reads a homogeneous metadata array.
func (f *File) readArray() (interface{}, error) {
	var elemType valueType
	if err := binary.Read(f.file, binary.LittleEndian, &elemType); err != nil {
		return nil, err
	}
	var length uint64
	if err := binary.Read(f.file, binary.LittleEndian, &length); err != nil {
		return nil, err
	}
	if length > 16*1024*1024 {
		return nil, fmt.Errorf("array length too large: %d", length)
	}
	values := make([]interface{}, 0, length)
	for i := uint64(0); i < length; i++ {
		v, err := f.readMetadataValue(elemType)
		if err != nil {
			return nil, fmt.Errorf("failed to read array element %d: %w", i, err)
		}
		values = append(values, v)
	}
	return values, nil
}

func (f *File) readTensorInfo() (TensorInfo, error) {
	var info TensorInfo

	name, err := f.readString()
	if err != nil {
		return info, fmt.Errorf("failed to read tensor name: %w", err)
	}
	info.Name = name

	var nDims uint32
	if err := binary.Read(f.file, binary.LittleEndian, &nDims); err != nil {
		return info, fmt.Errorf("failed to read n_dims: %w", err)
	}
	if nDims > 8 {
		return info, fmt.Errorf("implausible dimension count: %d", nDims)
	}
	info.Dims = make([]uint64, nDims)
	for i := uint32(0); i < nDims; i++ {
		if err := binary.Read(f.file, binary.LittleEndian, &info.Dims[i]); err != nil {
			return info, fmt.Errorf("failed to read dim[%d]: %w", i, err)
		}
	}

	if err := binary.Read(f.file, binary.LittleEndian, &info.DType); err != nil {
		return info, fmt.Errorf("failed to read dtype: %w", err)
	}
	if err := binary.Read(f.file, binary.LittleEndian, &info.Offset); err != nil {
		return info, fmt.Errorf("failed to read offset: %w", err)
	}
	return info, nil
}

// Close closes the archive file.
func (f *File) Close() error {
	if f.file != nil {
		return f.file.Close()
	}
	return nil
}

// Metadata returns the archive's metadata key-value pairs.
func (f *File) Metadata() map[string]interface{} {
	return f.metadata
}

// Names returns the names of all tensors in the archive.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.tensors))
	for name := range f.tensors {
		names = append(names, name)
	}
	return names
}

// Has reports whether the archive contains the named tensor.
func (f *File) Has(name string) bool {
	_, ok := f.tensors[name]
	return ok
}

// Info returns the index entry for a tensor.
func (f *File) Info(name string) (*TensorInfo, error) {
	info, ok := f.tensors[name]
	if !ok {
		return nil, fmt.Errorf("tensor %s not found", name)
	}
	return &info, nil
}

// Load reads the named tensor, converts it to the requested dtype and places
// it on the device. Only F32 and F16 payloads can be loaded; quantized
// payloads need dequantization, which this archive layer does not perform.
func (f *File) Load(name string, dtype tensor.DataType, device tensor.Device) (*tensor.Tensor, error) {
	info, err := f.Info(name)
	if err != nil {
		return nil, err
	}

	var srcDType tensor.DataType
	switch info.DType {
	case DTypeF32:
		srcDType = tensor.Float32
	case DTypeF16:
		srcDType = tensor.Float16
	case DTypeQ4_0, DTypeQ4_1, DTypeQ8_0:
		return nil, fmt.Errorf("tensor %s: quantized dtype %d requires dequantization", name, info.DType)
	default:
		return nil, fmt.Errorf("tensor %s: unsupported dtype %d", name, info.DType)
	}

	shape := info.Shape()
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape for tensor %s: %w", name, err)
	}
	size := int64(shape.NumElements() * srcDType.Size())

	offset := int64(f.dataOffset + info.Offset) //nolint:gosec // G115: offsets fit in int64 for regular files
	if _, err := f.file.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to tensor data: %w", err)
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(f.file, data); err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
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
