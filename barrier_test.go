package ncclpg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocollective/ncclpg/internal/simulate"
)

// TestBarrierCold checks that a process group which has not yet run any
// collective spans every local device for its barrier and completes
// without error.
func TestBarrierCold(t *testing.T) {
	backend := simulate.NewBackend("1.0.0")
	st := simulate.NewStore()
	opts := testOptions()
	opts.BlockingWait = true
	pg := newTestGroup(t, 0, 1, 2, backend, st, opts)

	work, err := pg.Barrier(BarrierOptions{})
	require.NoError(t, err)
	require.NoError(t, work.Wait())
	assert.True(t, work.isSuccess())
}

// TestBarrierWarm checks that once a collective has touched a device set,
// Barrier synthesizes its all-reduce over exactly those devices.
func TestBarrierWarm(t *testing.T) {
	backend := simulate.NewBackend("1.0.0")
	st := simulate.NewStore()
	opts := testOptions()
	opts.BlockingWait = true
	pg := newTestGroup(t, 0, 1, 2, backend, st, opts)

	key := getKey([]int{0, 1})
	_, err := pg.getComm(key, []int{0, 1})
	require.NoError(t, err)

	work, err := pg.Barrier(BarrierOptions{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{0, 1}, work.devices)
	require.NoError(t, work.Wait())
}
