package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/lo-ferris/candle/internal/tensor"
)

// Write serializes named tensors to a SafeTensors file. Tensors are written
// in alphabetical order by name; accelerator-resident tensors are fetched to
// host memory first.
func Write(path string, tensors map[string]*tensor.Tensor, metadata map[string]string) error {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	// Build the header and gather host buffers in one pass.
	headerMap := make(map[string]interface{})
	if len(metadata) > 0 {
		headerMap["__metadata__"] = metadata
	}

	hosts := make([]*tensor.HostBuffer, 0, len(names))
	var offset int64
	for _, name := range names {
		t := tensors[name]
		dt, err := FromDataType(t.DType())
		if err != nil {
			return fmt.Errorf("tensor %s: %w", name, err)
		}
		host, err := t.Host()
		if err != nil {
			return fmt.Errorf("tensor %s: %w", name, err)
		}
		hosts = append(hosts, host)

		size := int64(host.ByteSize())
		headerMap[name] = TensorInfo{
			DType:       dt,
			Shape:       t.Shape(),
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size
	}

	headerJSON, err := json.Marshal(headerMap)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	//nolint:gosec // G304: file path comes from the caller, expected for weight saving
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		_ = file.Close() // Best effort close; write errors are returned below
	}()

	if err := binary.Write(file, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := file.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, host := range hosts {
		if _, err := file.Write(host.Bytes()); err != nil {
			return fmt.Errorf("failed to write tensor %s: %w", names[i], err)
		}
	}
	return file.Sync()
}
