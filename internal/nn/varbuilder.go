// Package nn implements named-variable storage and resolution: a concurrent
// VarStore for trainable parameters and a VarBuilder resolving weights from
// SafeTensors files, GGUF archives, tensor maps, zero generators, or stores.
package nn

import (
	"fmt"
	"strings"

	"github.com/lo-ferris/candle/internal/gguf"
	"github.com/lo-ferris/candle/internal/safetensors"
	"github.com/lo-ferris/candle/internal/tensor"
)

// sourceKind tags the backing source of a VarBuilder. The set is closed;
// every dispatch site switches over all of them.
type sourceKind int

const (
	sourceSafetensors sourceKind = iota
	sourceGGUF
	sourceTensorMap
	sourceZeros
	sourceVarStore
)

// tensorData is the shared, immutable backing of a builder and all the
// prefixed builders derived from it.
type tensorData struct {
	kind   sourceKind
	dtype  tensor.DataType
	device tensor.Device

	// safetensors: open files plus a name -> file index routing table built
	// once at construction. Duplicate names route to the first file holding
	// them, matching their order in the constructor call.
	files   []*safetensors.File
	routing map[string]int

	archive *gguf.File                // gguf
	tensors map[string]*tensor.Tensor // tensor map
	store   VarStore                  // var store
}

// VarBuilder resolves named tensors from a backing source, qualifying every
// lookup with a dot-joined prefix path. Builders are cheap values: PushPrefix
// copies the segment list and shares the source.
//
//	vb := nn.NewVarBuilderZeros(tensor.Float32, tensor.CPU)
//	w, err := vb.PP("encoder").PP("layer0").Get(tensor.Shape{64, 64}, "weight")
//	// resolves "encoder.layer0.weight"
type VarBuilder struct {
	data *tensorData
	path []string
}

// NewVarBuilderFromSafetensors memory-opens the given SafeTensors files and
// builds a builder routing each tensor name to the first file that holds it.
// Lookups load lazily and convert to dtype on device.
func NewVarBuilderFromSafetensors(dtype tensor.DataType, device tensor.Device, paths ...string) (VarBuilder, error) {
	data := &tensorData{
		kind:    sourceSafetensors,
		dtype:   dtype,
		device:  device,
		routing: make(map[string]int),
	}
	for i, p := range paths {
		f, err := safetensors.Open(p)
		if err != nil {
			for _, open := range data.files {
				_ = open.Close()
			}
			return VarBuilder{}, fmt.Errorf("opening %s: %w", p, err)
		}
		data.files = append(data.files, f)
		for _, name := range f.Names() {
			if _, ok := data.routing[name]; !ok {
				data.routing[name] = i
			}
		}
	}
	return VarBuilder{data: data}, nil
}

// NewVarBuilderFromGGUF opens a GGUF archive as the backing source.
func NewVarBuilderFromGGUF(path string, dtype tensor.DataType, device tensor.Device) (VarBuilder, error) {
	f, err := gguf.Open(path)
	if err != nil {
		return VarBuilder{}, fmt.Errorf("opening %s: %w", path, err)
	}
	return VarBuilder{data: &tensorData{
		kind:    sourceGGUF,
		dtype:   dtype,
		device:  device,
		archive: f,
	}}, nil
}

// NewVarBuilderFromTensors serves lookups from an in-memory map. Hits are
// cloned so callers cannot alias the map's storage bookkeeping.
func NewVarBuilderFromTensors(tensors map[string]*tensor.Tensor, dtype tensor.DataType, device tensor.Device) VarBuilder {
	return VarBuilder{data: &tensorData{
		kind:    sourceTensorMap,
		dtype:   dtype,
		device:  device,
		tensors: tensors,
	}}
}

// NewVarBuilderZeros answers every lookup with a fresh zero tensor of the
// requested shape. Useful for shape-checking model code without weights.
func NewVarBuilderZeros(dtype tensor.DataType, device tensor.Device) VarBuilder {
	return VarBuilder{data: &tensorData{kind: sourceZeros, dtype: dtype, device: device}}
}

// NewVarBuilderFromVarStore backs the builder with a mutable VarStore. This
// is the only source on which GetOrInit can create variables.
func NewVarBuilderFromVarStore(vs VarStore, dtype tensor.DataType, device tensor.Device) VarBuilder {
	return VarBuilder{data: &tensorData{kind: sourceVarStore, dtype: dtype, device: device, store: vs}}
}

// Close releases any files held by the backing source. Builders derived via
// PushPrefix share the source, so Close invalidates them all.
func (vb VarBuilder) Close() error {
	switch vb.data.kind {
	case sourceSafetensors:
		var firstErr error
		for _, f := range vb.data.files {
			if err := f.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	case sourceGGUF:
		return vb.data.archive.Close()
	default:
		return nil
	}
}

// DType returns the default dtype lookups are converted to.
func (vb VarBuilder) DType() tensor.DataType { return vb.data.dtype }

// Device returns the device lookups are placed on.
func (vb VarBuilder) Device() tensor.Device { return vb.data.device }

// PushPrefix returns a builder one path segment deeper, sharing the source.
func (vb VarBuilder) PushPrefix(prefix string) VarBuilder {
	path := make([]string, len(vb.path), len(vb.path)+1)
	copy(path, vb.path)
	return VarBuilder{data: vb.data, path: append(path, prefix)}
}

// PP is shorthand for PushPrefix.
func (vb VarBuilder) PP(prefix string) VarBuilder { return vb.PushPrefix(prefix) }

// Path returns the fully qualified key for name under the current prefix.
func (vb VarBuilder) Path(name string) string {
	if len(vb.path) == 0 {
		return name
	}
	return strings.Join(vb.path, ".") + "." + name
}

// Contains reports whether the backing source can resolve name under the
// current prefix. The zeros source contains everything.
func (vb VarBuilder) Contains(name string) bool {
	path := vb.Path(name)
	switch vb.data.kind {
	case sourceSafetensors:
		_, ok := vb.data.routing[path]
		return ok
	case sourceGGUF:
		return vb.data.archive.Has(path)
	case sourceTensorMap:
		_, ok := vb.data.tensors[path]
		return ok
	case sourceZeros:
		return true
	case sourceVarStore:
		_, ok := vb.data.store.get(path)
		return ok
	}
	return false
}

// Get resolves name under the current prefix and checks the result against
// the declared shape. A shape disagreement is always an error; lookups on
// sources that cannot create report misses as NotFoundError.
func (vb VarBuilder) Get(shape tensor.Shape, name string) (*tensor.Tensor, error) {
	return vb.GetOrInit(shape, name, Zeros)
}

// GetOrInit behaves like Get, except that on a VarStore source a missing
// variable is created by materializing init at the declared shape. All other
// sources ignore init.
func (vb VarBuilder) GetOrInit(shape tensor.Shape, name string, init Init) (*tensor.Tensor, error) {
	path := vb.Path(name)

	if vb.data.kind == sourceVarStore {
		// The store performs its own shape check against existing entries.
		return vb.data.store.Get(shape, path, init, vb.data.dtype, vb.data.device)
	}

	t, err := vb.lookup(path, shape)
	if err != nil {
		return nil, err
	}
	if !t.Shape().Equal(shape) {
		return nil, &ShapeMismatchError{Path: path, Expected: shape, Got: t.Shape()}
	}
	return t, nil
}

// lookup fetches path from a non-creating source, converted to the builder's
// dtype on its device. The requested shape is only used by the zeros source.
func (vb VarBuilder) lookup(path string, shape tensor.Shape) (*tensor.Tensor, error) {
	switch vb.data.kind {
	case sourceSafetensors:
		idx, ok := vb.data.routing[path]
		if !ok {
			return nil, &NotFoundError{Path: path}
		}
		return vb.data.files[idx].Load(path, vb.data.dtype, vb.data.device)
	case sourceGGUF:
		if !vb.data.archive.Has(path) {
			return nil, &NotFoundError{Path: path}
		}
		return vb.data.archive.Load(path, vb.data.dtype, vb.data.device)
	case sourceTensorMap:
		t, ok := vb.data.tensors[path]
		if !ok {
			return nil, &NotFoundError{Path: path}
		}
		return t.Clone(), nil
	case sourceZeros:
		return tensor.Zeros(shape, vb.data.dtype, vb.data.device)
	}
	return nil, &UnsupportedOpError{Op: "lookup", Reason: "unknown backing source"}
}
