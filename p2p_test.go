package ncclpg

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocollective/ncclpg/internal/simulate"
	"github.com/gocollective/ncclpg/tensor"
)

// TestAllToAllBaseEvenSplit exercises a 2-rank all-to-all where each
// rank's input is split evenly in two and the transpose lands chunk i of
// every rank's input on rank i, in source-rank order.
func TestAllToAllBaseEvenSplit(t *testing.T) {
	backend := simulate.NewBackend("1.0.0")
	st := simulate.NewStore()
	opts := testOptions()
	opts.BlockingWait = true

	in0 := simulate.NewTensor(0, tensor.Float64, 4)
	in0.SetFloat64s([]float64{10, 20, 11, 21})
	out0 := simulate.NewTensor(0, tensor.Float64, 4)

	in1 := simulate.NewTensor(0, tensor.Float64, 4)
	in1.SetFloat64s([]float64{30, 40, 31, 41})
	out1 := simulate.NewTensor(0, tensor.Float64, 4)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		pg := newTestGroup(t, 0, 2, 1, backend, st, opts)
		work, err := pg.AllToAllBase(out0, in0, nil, nil, AllToAllOptions{})
		require.NoError(t, err)
		require.NoError(t, work.Wait())
	}()
	go func() {
		defer wg.Done()
		pg := newTestGroup(t, 1, 2, 1, backend, st, opts)
		work, err := pg.AllToAllBase(out1, in1, nil, nil, AllToAllOptions{})
		require.NoError(t, err)
		require.NoError(t, work.Wait())
	}()
	wg.Wait()

	assert.InDeltaSlice(t, []float64{10, 20, 30, 40}, out0.Float64s(), 1e-6)
	assert.InDeltaSlice(t, []float64{11, 21, 31, 41}, out1.Float64s(), 1e-6)
}
