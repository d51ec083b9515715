package ncclpg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocollective/ncclpg/internal/simulate"
	"github.com/gocollective/ncclpg/tensor"
)

// TestFlattenNoCopyAliasing checks that when every input tensor is a
// contiguous slice of one storage at the correct offsets, flatten
// returns a zero-copy view over that same storage.
func TestFlattenNoCopyAliasing(t *testing.T) {
	const worldSize = 4
	const numel = int64(3)

	storage := simulate.NewStorage(0, tensor.Float32, worldSize*numel)
	list := make([]tensor.Tensor, worldSize)
	for j := 0; j < worldSize; j++ {
		list[j] = storage.View(tensor.Float32, int64(j)*numel, numel)
	}
	rank := 1
	other := storage.View(tensor.Float32, int64(rank)*numel, numel)

	flat, zeroCopy, err := flattenForScatter([][]tensor.Tensor{list}, []tensor.Tensor{other}, worldSize, rank, true, simulate.Factory{})
	require.NoError(t, err)
	require.True(t, zeroCopy[0])
	assert.Equal(t, storage.ID(), flat[0].Storage().ID())
	assert.Equal(t, worldSize*numel, flat[0].NumElement())
}

// TestFlattenRoundTrip checks that for a list-of-lists that does not
// satisfy the aliasing precondition, flatten-then-scatter-back
// reproduces the original element values.
func TestFlattenRoundTrip(t *testing.T) {
	const worldSize = 3
	const numel = int64(2)

	list := make([]tensor.Tensor, worldSize)
	want := make([][]float64, worldSize)
	for j := 0; j < worldSize; j++ {
		tt := simulate.NewTensor(0, tensor.Float32, numel)
		vals := []float64{float64(j), float64(j) + 0.5}
		tt.SetFloat64s(vals)
		list[j] = tt
		want[j] = vals
	}
	other := simulate.NewTensor(0, tensor.Float32, numel)

	flat, zeroCopy, err := flattenForScatter([][]tensor.Tensor{list}, []tensor.Tensor{other}, worldSize, 0, false, simulate.Factory{})
	require.NoError(t, err)
	require.False(t, zeroCopy[0])

	require.NoError(t, copyListToFlat([][]tensor.Tensor{list}, flat, zeroCopy))

	roundTrip := make([]tensor.Tensor, worldSize)
	for j := 0; j < worldSize; j++ {
		roundTrip[j] = simulate.NewTensor(0, tensor.Float32, numel)
	}
	require.NoError(t, copyFlatToList(flat, [][]tensor.Tensor{roundTrip}, zeroCopy))

	for j := 0; j < worldSize; j++ {
		got := roundTrip[j].(*simulate.Tensor).Float64s()
		assert.InDeltaSlice(t, want[j], got, 1e-6)
	}
}
