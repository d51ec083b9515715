package ncclpg

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocollective/ncclpg/collective"
	"github.com/gocollective/ncclpg/internal/simulate"
	"github.com/gocollective/ncclpg/tensor"
)

// TestAllreduceSumTwoRanks exercises a sum all-reduce across two ranks,
// one device each.
func TestAllreduceSumTwoRanks(t *testing.T) {
	backend := simulate.NewBackend("1.0.0")
	st := simulate.NewStore()
	opts := testOptions()
	opts.BlockingWait = true

	t0 := simulate.NewTensor(0, tensor.Float64, 2)
	t0.SetFloat64s([]float64{1, 2})
	t1 := simulate.NewTensor(0, tensor.Float64, 2)
	t1.SetFloat64s([]float64{3, 4})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		pg := newTestGroup(t, 0, 2, 1, backend, st, opts)
		work, err := pg.Allreduce([]tensor.Tensor{t0}, AllreduceOptions{ReduceOp: collective.Sum})
		require.NoError(t, err)
		require.NoError(t, work.Wait())
	}()
	go func() {
		defer wg.Done()
		pg := newTestGroup(t, 1, 2, 1, backend, st, opts)
		work, err := pg.Allreduce([]tensor.Tensor{t1}, AllreduceOptions{ReduceOp: collective.Sum})
		require.NoError(t, err)
		require.NoError(t, work.Wait())
	}()
	wg.Wait()

	assert.InDeltaSlice(t, []float64{4, 6}, t0.Float64s(), 1e-6)
	assert.InDeltaSlice(t, []float64{4, 6}, t1.Float64s(), 1e-6)
}

// TestBroadcastFromRootOne exercises a broadcast from a non-zero root
// rank.
func TestBroadcastFromRootOne(t *testing.T) {
	backend := simulate.NewBackend("1.0.0")
	st := simulate.NewStore()
	opts := testOptions()
	opts.BlockingWait = true

	t0 := simulate.NewTensor(0, tensor.Float64, 2)
	t0.SetFloat64s([]float64{0, 0})
	t1 := simulate.NewTensor(0, tensor.Float64, 2)
	t1.SetFloat64s([]float64{7, 8})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		pg := newTestGroup(t, 0, 2, 1, backend, st, opts)
		work, err := pg.Broadcast([]tensor.Tensor{t0}, BroadcastOptions{RootRank: 1, RootTensor: 0})
		require.NoError(t, err)
		require.NoError(t, work.Wait())
	}()
	go func() {
		defer wg.Done()
		pg := newTestGroup(t, 1, 2, 1, backend, st, opts)
		work, err := pg.Broadcast([]tensor.Tensor{t1}, BroadcastOptions{RootRank: 1, RootTensor: 0})
		require.NoError(t, err)
		require.NoError(t, work.Wait())
	}()
	wg.Wait()

	assert.InDeltaSlice(t, []float64{7, 8}, t0.Float64s(), 1e-6)
	assert.InDeltaSlice(t, []float64{7, 8}, t1.Float64s(), 1e-6)
}

// TestAllgatherFourRanks exercises an all-gather across four ranks.
func TestAllgatherFourRanks(t *testing.T) {
	backend := simulate.NewBackend("1.0.0")
	st := simulate.NewStore()
	opts := testOptions()
	opts.BlockingWait = true

	const size = 4
	inputs := make([]*simulate.Tensor, size)
	outLists := make([][]tensor.Tensor, size)
	for r := 0; r < size; r++ {
		inputs[r] = simulate.NewTensor(0, tensor.Float64, 2)
		inputs[r].SetFloat64s([]float64{float64(r), float64(r) + 100})
		list := make([]tensor.Tensor, size)
		for j := range list {
			list[j] = simulate.NewTensor(0, tensor.Float64, 2)
		}
		outLists[r] = list
	}

	var wg sync.WaitGroup
	wg.Add(size)
	for r := 0; r < size; r++ {
		r := r
		go func() {
			defer wg.Done()
			pg := newTestGroup(t, r, size, 1, backend, st, opts)
			work, err := pg.Allgather([]tensor.Tensor{inputs[r]}, [][]tensor.Tensor{outLists[r]}, AllgatherOptions{})
			require.NoError(t, err)
			require.NoError(t, work.Wait())
		}()
	}
	wg.Wait()

	want := make([]float64, 0, size*2)
	for r := 0; r < size; r++ {
		want = append(want, float64(r), float64(r)+100)
	}
	for r := 0; r < size; r++ {
		got := make([]float64, 0, size*2)
		for _, tt := range outLists[r] {
			got = append(got, tt.(*simulate.Tensor).Float64s()...)
		}
		assert.InDeltaSlice(t, want, got, 1e-6, "rank %d", r)
	}
}

// TestReduceScatterMaxTwoRanks exercises a max reduce-scatter across two
// ranks.
func TestReduceScatterMaxTwoRanks(t *testing.T) {
	backend := simulate.NewBackend("1.0.0")
	st := simulate.NewStore()
	opts := testOptions()
	opts.BlockingWait = true

	rank0Chunks := []tensor.Tensor{simulate.NewTensor(0, tensor.Float64, 1), simulate.NewTensor(0, tensor.Float64, 1)}
	rank0Chunks[0].(*simulate.Tensor).SetFloat64s([]float64{5})
	rank0Chunks[1].(*simulate.Tensor).SetFloat64s([]float64{1})

	rank1Chunks := []tensor.Tensor{simulate.NewTensor(0, tensor.Float64, 1), simulate.NewTensor(0, tensor.Float64, 1)}
	rank1Chunks[0].(*simulate.Tensor).SetFloat64s([]float64{9})
	rank1Chunks[1].(*simulate.Tensor).SetFloat64s([]float64{100})

	out0 := simulate.NewTensor(0, tensor.Float64, 1)
	out1 := simulate.NewTensor(0, tensor.Float64, 1)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		pg := newTestGroup(t, 0, 2, 1, backend, st, opts)
		work, err := pg.ReduceScatter([][]tensor.Tensor{rank0Chunks}, []tensor.Tensor{out0}, ReduceScatterOptions{ReduceOp: collective.Max})
		require.NoError(t, err)
		require.NoError(t, work.Wait())
	}()
	go func() {
		defer wg.Done()
		pg := newTestGroup(t, 1, 2, 1, backend, st, opts)
		work, err := pg.ReduceScatter([][]tensor.Tensor{rank1Chunks}, []tensor.Tensor{out1}, ReduceScatterOptions{ReduceOp: collective.Max})
		require.NoError(t, err)
		require.NoError(t, work.Wait())
	}()
	wg.Wait()

	assert.InDeltaSlice(t, []float64{9}, out0.Float64s(), 1e-6)
	assert.InDeltaSlice(t, []float64{100}, out1.Float64s(), 1e-6)
}
