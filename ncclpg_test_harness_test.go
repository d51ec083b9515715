package ncclpg

import (
	"testing"

	"github.com/gocollective/ncclpg/device"
	"github.com/gocollective/ncclpg/internal/config"
	"github.com/gocollective/ncclpg/internal/simulate"
)

// newTestGroup builds a rank's ProcessGroup wired entirely to
// internal/simulate's fakes, sharing backend and st across every rank of
// a test so they rendezvous with each other.
func newTestGroup(t *testing.T, rank, size, numDevices int, backend *simulate.Backend, st *simulate.Store, opts config.Options) *ProcessGroup {
	t.Helper()
	rt := device.NewRuntime(simulate.NewRuntime())
	alloc := simulate.NewAllocator()
	pg, err := New(rank, size, numDevices, backend, rt, alloc, simulate.Factory{}, st, opts, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(pg.Close)
	return pg
}

func testOptions() config.Options {
	opts := config.Defaults()
	opts.MinSupportedBackendVersion = ""
	return opts
}
