package nn

import (
	"fmt"
	"sort"
	"sync"

	"github.com/lo-ferris/candle/internal/safetensors"
	"github.com/lo-ferris/candle/internal/tensor"
)

// VarStore is a concurrent registry of mutable named tensors. Copying the
// handle is O(1) and shares state; all operations funnel through one
// exclusive lock per store, held for their full duration. Save and Load keep
// the lock across their file I/O; they run at start-up and checkpoint
// boundaries, never on a per-step hot path.
//
// Entries are created only through Get and are never removed.
type VarStore struct {
	data *varStoreData
}

type varStoreData struct {
	mu   sync.Mutex
	vars map[string]*tensor.Variable
}

// NewVarStore creates an empty store.
func NewVarStore() VarStore {
	return VarStore{data: &varStoreData{vars: make(map[string]*tensor.Variable)}}
}

// Get retrieves the variable registered under path, or creates it by
// materializing init at the given shape, dtype and device. An existing entry
// must match the declared shape exactly; a mismatch fails and leaves the
// store untouched. This is the only creation path in the registry.
func (vs VarStore) Get(shape tensor.Shape, path string, init Init, dtype tensor.DataType, device tensor.Device) (*tensor.Tensor, error) {
	vs.data.mu.Lock()
	defer vs.data.mu.Unlock()

	if v, ok := vs.data.vars[path]; ok {
		got := v.AsTensor()
		if !got.Shape().Equal(shape) {
			return nil, &ShapeMismatchError{Path: path, Expected: shape, Got: got.Shape()}
		}
		return got.Clone(), nil
	}

	t, err := init.Tensor(shape, dtype, device)
	if err != nil {
		return nil, fmt.Errorf("initializing %s: %w", path, err)
	}
	vs.data.vars[path] = tensor.NewVariable(t)
	return t.Clone(), nil
}

// AllVars returns a snapshot of the currently registered variables.
func (vs VarStore) AllVars() []*tensor.Variable {
	vs.data.mu.Lock()
	defer vs.data.mu.Unlock()

	vars := make([]*tensor.Variable, 0, len(vs.data.vars))
	for _, v := range vs.data.vars {
		vars = append(vars, v)
	}
	return vars
}

// Len returns the number of registered variables.
func (vs VarStore) Len() int {
	vs.data.mu.Lock()
	defer vs.data.mu.Unlock()
	return len(vs.data.vars)
}

// Save serializes every registered (path, value) pair to a SafeTensors file.
// The lock is held for the whole write so the snapshot is consistent.
func (vs VarStore) Save(path string) error {
	vs.data.mu.Lock()
	defer vs.data.mu.Unlock()

	tensors := make(map[string]*tensor.Tensor, len(vs.data.vars))
	for name, v := range vs.data.vars {
		tensors[name] = v.AsTensor()
	}
	return safetensors.Write(path, tensors, nil)
}

// Load overwrites the values of the registered variables from a SafeTensors
// file, coercing each to its variable's device. Entries are processed in
// sorted path order and the first missing path aborts with NotFoundError.
//
// Load is not transactional: variables updated before the failure keep their
// new values, later ones keep their originals. Names present in the file but
// not in the store are ignored.
func (vs VarStore) Load(path string) error {
	vs.data.mu.Lock()
	defer vs.data.mu.Unlock()

	f, err := safetensors.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close() // read-only file, close error carries no information
	}()

	names := make([]string, 0, len(vs.data.vars))
	for name := range vs.data.vars {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !f.Has(name) {
			return &NotFoundError{Path: name}
		}
		v := vs.data.vars[name]
		cur := v.AsTensor()
		loaded, err := f.Load(name, cur.DType(), cur.Device())
		if err != nil {
			return fmt.Errorf("loading %s from %s: %w", name, path, err)
		}
		if err := v.Set(loaded); err != nil {
			return fmt.Errorf("error setting %s using data from %s: %w", name, path, err)
		}
	}
	return nil
}

// get resolves path without creating, for VarBuilder lookups against a
// store-backed source.
func (vs VarStore) get(path string) (*tensor.Tensor, bool) {
	vs.data.mu.Lock()
	defer vs.data.mu.Unlock()
	v, ok := vs.data.vars[path]
	if !ok {
		return nil, false
	}
	return v.AsTensor().Clone(), true
}
