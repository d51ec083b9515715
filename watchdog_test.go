package ncclpg

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocollective/ncclpg/internal/simulate"
)

// TestWatchdogFansOutAbort checks that once one rank's watchdog observes
// an asynchronous error and aborts its communicators, every other rank's
// watchdog aborts its own handle to the same communicator group within
// one tick, via the store.
func TestWatchdogFansOutAbort(t *testing.T) {
	backend := simulate.NewBackend("1.0.0")
	st := simulate.NewStore()
	opts := testOptions()
	opts.BlockingWait = true

	pg0 := newTestGroup(t, 0, 2, 1, backend, st, opts)
	pg1 := newTestGroup(t, 1, 2, 1, backend, st, opts)

	key := getKey([]int{0})
	var comm0, comm1 *simulate.Communicator
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		bundle, err := pg0.getComm(key, []int{0})
		require.NoError(t, err)
		comm0 = bundle[0].(*simulate.Communicator)
	}()
	go func() {
		defer wg.Done()
		bundle, err := pg1.getComm(key, []int{0})
		require.NoError(t, err)
		comm1 = bundle[0].(*simulate.Communicator)
	}()
	wg.Wait()

	comm0.SetAsyncError(errors.New("boom"))

	pg0.watchdogTick()
	assert.True(t, comm0.Aborted())

	pg1.watchdogTick()
	assert.True(t, comm1.Aborted())
}
