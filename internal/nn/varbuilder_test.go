package nn

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lo-ferris/candle/internal/safetensors"
	"github.com/lo-ferris/candle/internal/tensor"
)

// writeWeights writes tensors to a fresh SafeTensors file under dir.
func writeWeights(t *testing.T, dir, name string, tensors map[string]*tensor.Tensor) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, safetensors.Write(path, tensors, nil))
	return path
}

func float32Tensor(t *testing.T, data []float32, shape tensor.Shape) *tensor.Tensor {
	t.Helper()
	out, err := tensor.FromSlice(data, shape, tensor.CPU)
	require.NoError(t, err)
	return out
}

// TestVarBuilderZerosSource tests that the zeros source serves any name at
// the requested shape.
func TestVarBuilderZerosSource(t *testing.T) {
	vb := NewVarBuilderZeros(tensor.Float32, tensor.CPU)

	w, err := vb.PP("model").PP("decoder").Get(tensor.Shape{3, 4}, "weight")
	require.NoError(t, err)
	assert.True(t, w.Shape().Equal(tensor.Shape{3, 4}))
	assert.Equal(t, tensor.Float32, w.DType())

	data, err := w.Float32s()
	require.NoError(t, err)
	for _, v := range data {
		assert.Equal(t, float32(0), v)
	}
	assert.True(t, vb.Contains("anything"))
}

// TestVarBuilderTensorMap tests exact-key lookup, clone-on-hit, and misses.
func TestVarBuilderTensorMap(t *testing.T) {
	w := float32Tensor(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	vb := NewVarBuilderFromTensors(map[string]*tensor.Tensor{"blk.weight": w}, tensor.Float32, tensor.CPU)

	got, err := vb.PP("blk").Get(tensor.Shape{2, 2}, "weight")
	require.NoError(t, err)
	data, err := got.Float32s()
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, data)

	_, err = vb.Get(tensor.Shape{2, 2}, "weight")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "weight", notFound.Path)

	_, err = vb.PP("blk").Get(tensor.Shape{4}, "weight")
	var mismatch *ShapeMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "blk.weight", mismatch.Path)
}

// TestVarBuilderPrefixJoining tests dot-joined key construction.
func TestVarBuilderPrefixJoining(t *testing.T) {
	vb := NewVarBuilderZeros(tensor.Float32, tensor.CPU)
	assert.Equal(t, "weight", vb.Path("weight"))
	assert.Equal(t, "a.b.weight", vb.PP("a").PP("b").Path("weight"))

	// deriving a child must not disturb the parent
	parent := vb.PP("enc")
	_ = parent.PP("layer0")
	assert.Equal(t, "enc.weight", parent.Path("weight"))
}

// TestVarBuilderSafetensorsRouting tests multi-file lookup with first-file
// precedence and default dtype conversion.
func TestVarBuilderSafetensorsRouting(t *testing.T) {
	dir := t.TempDir()
	f1 := writeWeights(t, dir, "part1.safetensors", map[string]*tensor.Tensor{
		"shared": float32Tensor(t, []float32{1, 1}, tensor.Shape{2}),
		"only1":  float32Tensor(t, []float32{5}, tensor.Shape{1}),
	})
	f2 := writeWeights(t, dir, "part2.safetensors", map[string]*tensor.Tensor{
		"shared": float32Tensor(t, []float32{2, 2}, tensor.Shape{2}),
		"only2":  float32Tensor(t, []float32{9}, tensor.Shape{1}),
	})

	vb, err := NewVarBuilderFromSafetensors(tensor.Float32, tensor.CPU, f1, f2)
	require.NoError(t, err)
	defer vb.Close()

	shared, err := vb.Get(tensor.Shape{2}, "shared")
	require.NoError(t, err)
	data, err := shared.Float32s()
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1}, data, "duplicate names route to the first file")

	for _, name := range []string{"only1", "only2"} {
		_, err := vb.Get(tensor.Shape{1}, name)
		require.NoError(t, err)
	}

	_, err = vb.Get(tensor.Shape{1}, "absent")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}

// TestVarBuilderSafetensorsDTypeConversion tests that lookups convert stored
// values to the builder's default dtype.
func TestVarBuilderSafetensorsDTypeConversion(t *testing.T) {
	dir := t.TempDir()
	path := writeWeights(t, dir, "w.safetensors", map[string]*tensor.Tensor{
		"w": float32Tensor(t, []float32{1.5, -2.5}, tensor.Shape{2}),
	})

	vb, err := NewVarBuilderFromSafetensors(tensor.Float64, tensor.CPU, path)
	require.NoError(t, err)
	defer vb.Close()

	w, err := vb.Get(tensor.Shape{2}, "w")
	require.NoError(t, err)
	assert.Equal(t, tensor.Float64, w.DType())

	host, err := w.Host()
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, -2.5}, host.AsFloat64())
}

// TestVarBuilderVarStoreGetOrInit tests that the store-backed builder
// creates on miss and fetches on hit, sharing state with the store.
func TestVarBuilderVarStoreGetOrInit(t *testing.T) {
	vs := NewVarStore()
	vb := NewVarBuilderFromVarStore(vs, tensor.Float32, tensor.CPU)

	w, err := vb.PP("fc").GetOrInit(tensor.Shape{2}, "weight", Ones)
	require.NoError(t, err)
	data, err := w.Float32s()
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1}, data)
	assert.Equal(t, 1, vs.Len())

	// Get on the same path is a fetch, not a re-init
	again, err := vb.PP("fc").Get(tensor.Shape{2}, "weight")
	require.NoError(t, err)
	data, err = again.Float32s()
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1}, data)
	assert.Equal(t, 1, vs.Len())
}

// TestGetShardedDim0 tests that a rank's row block matches an in-memory
// slice of the full tensor.
func TestGetShardedDim0(t *testing.T) {
	full := make([]float32, 8*4)
	for i := range full {
		full[i] = float32(i)
	}
	dir := t.TempDir()
	path := writeWeights(t, dir, "big.safetensors", map[string]*tensor.Tensor{
		"w": float32Tensor(t, full, tensor.Shape{8, 4}),
	})

	vb, err := NewVarBuilderFromSafetensors(tensor.Float32, tensor.CPU, path)
	require.NoError(t, err)
	defer vb.Close()

	// rank 1 of 2 holds rows 4..8
	slice, err := vb.GetSharded("w", Shard{Dim: 0, Rank: 1, WorldSize: 2})
	require.NoError(t, err)
	require.True(t, slice.Shape().Equal(tensor.Shape{4, 4}))

	data, err := slice.Float32s()
	require.NoError(t, err)
	assert.Equal(t, full[16:32], data)
}

// TestGetShardedDim1Reconstruction tests that concatenating every rank's
// column block along dim 1 reproduces the stored tensor.
func TestGetShardedDim1Reconstruction(t *testing.T) {
	const rows, cols, world = 3, 6, 3
	full := make([]float32, rows*cols)
	for i := range full {
		full[i] = float32(i) * 0.5
	}
	dir := t.TempDir()
	path := writeWeights(t, dir, "cols.safetensors", map[string]*tensor.Tensor{
		"w": float32Tensor(t, full, tensor.Shape{rows, cols}),
	})

	vb, err := NewVarBuilderFromSafetensors(tensor.Float32, tensor.CPU, path)
	require.NoError(t, err)
	defer vb.Close()

	block := cols / world
	rebuilt := make([]float32, 0, rows*cols)
	slices := make([][]float32, world)
	for rank := 0; rank < world; rank++ {
		s, err := vb.GetSharded("w", Shard{Dim: 1, Rank: rank, WorldSize: world})
		require.NoError(t, err)
		require.True(t, s.Shape().Equal(tensor.Shape{rows, block}))
		slices[rank], err = s.Float32s()
		require.NoError(t, err)
	}
	for row := 0; row < rows; row++ {
		for rank := 0; rank < world; rank++ {
			rebuilt = append(rebuilt, slices[rank][row*block:(row+1)*block]...)
		}
	}
	assert.Equal(t, full, rebuilt)
}

// TestGetShardedIndivisible tests that the divisibility check fires before
// any data is read.
func TestGetShardedIndivisible(t *testing.T) {
	dir := t.TempDir()
	path := writeWeights(t, dir, "odd.safetensors", map[string]*tensor.Tensor{
		"w": float32Tensor(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{3, 2}),
	})

	vb, err := NewVarBuilderFromSafetensors(tensor.Float32, tensor.CPU, path)
	require.NoError(t, err)
	defer vb.Close()

	_, err = vb.GetSharded("w", Shard{Dim: 0, Rank: 0, WorldSize: 2})
	var split *ShapeMismatchSplitError
	require.ErrorAs(t, err, &split)
	assert.True(t, split.Shape.Equal(tensor.Shape{3, 2}))
	assert.Equal(t, 0, split.Dim)
	assert.Equal(t, 2, split.WorldSize)
}

// TestGetShardedUnsupported tests the source and dim restrictions.
func TestGetShardedUnsupported(t *testing.T) {
	zeros := NewVarBuilderZeros(tensor.Float32, tensor.CPU)
	_, err := zeros.GetSharded("w", Shard{Dim: 0, Rank: 0, WorldSize: 2})
	var unsupported *UnsupportedOpError
	require.ErrorAs(t, err, &unsupported)

	dir := t.TempDir()
	path := writeWeights(t, dir, "w.safetensors", map[string]*tensor.Tensor{
		"w": float32Tensor(t, make([]float32, 8), tensor.Shape{2, 2, 2}),
	})
	vb, err := NewVarBuilderFromSafetensors(tensor.Float32, tensor.CPU, path)
	require.NoError(t, err)
	defer vb.Close()

	_, err = vb.GetSharded("w", Shard{Dim: 2, Rank: 0, WorldSize: 2})
	require.ErrorAs(t, err, &unsupported)

	_, err = vb.GetSharded("missing", Shard{Dim: 0, Rank: 0, WorldSize: 2})
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}

// TestGetShardedKeepsStoredDType tests that slices keep the stored dtype
// even when the builder defaults to another.
func TestGetShardedKeepsStoredDType(t *testing.T) {
	dir := t.TempDir()
	path := writeWeights(t, dir, "w.safetensors", map[string]*tensor.Tensor{
		"w": float32Tensor(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2}),
	})

	vb, err := NewVarBuilderFromSafetensors(tensor.Float64, tensor.CPU, path)
	require.NoError(t, err)
	defer vb.Close()

	s, err := vb.GetSharded("w", Shard{Dim: 0, Rank: 0, WorldSize: 2})
	require.NoError(t, err)
	assert.Equal(t, tensor.Float32, s.DType())
}
