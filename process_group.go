// Package ncclpg implements the core of a GPU collective communication
// process group: stream/event synchronization, communicator lifecycle and
// cache, the work-handle state machine, a background watchdog, and the
// collective dispatch logic layered on top of an external tensor library,
// caching allocator, collective backend, and key-value rendezvous store
// (each an interface boundary in a sibling package).
package ncclpg

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/gocollective/ncclpg/collective"
	"github.com/gocollective/ncclpg/device"
	"github.com/gocollective/ncclpg/gpualloc"
	"github.com/gocollective/ncclpg/internal/backendversion"
	"github.com/gocollective/ncclpg/internal/config"
	"github.com/gocollective/ncclpg/internal/logger"
	"github.com/gocollective/ncclpg/ncclerr"
	"github.com/gocollective/ncclpg/store"
	"github.com/gocollective/ncclpg/tensor"
)

// ProcessGroup coordinates collectives across a fixed set of ranks, each
// driving numDevices local GPUs, over a shared collective backend.
type ProcessGroup struct {
	rank       int
	size       int
	numDevices int

	backend   collective.Backend
	runtime   *device.Runtime
	allocator gpualloc.Allocator
	factory   tensor.Factory
	store     store.Store
	opts      config.Options
	log       *zap.Logger

	mu             sync.Mutex
	devCommMap     map[string][]collective.Communicator
	idToCommMap    map[string][]collective.Communicator
	streamMap      map[string][]device.Stream
	eventMap       map[string][]device.Event
	usedDeviceIdxs map[int]bool
	abortedComms   map[string]bool
	commCounter    int64

	watchdogStop chan struct{}
	watchdogDone chan struct{}
}

// New constructs a process group of the given rank/size, each driving
// numDevices local GPUs. It gates construction on the backend's
// self-reported version and spawns the watchdog before returning.
func New(rank, size, numDevices int, backend collective.Backend, rt *device.Runtime, alloc gpualloc.Allocator, factory tensor.Factory, st store.Store, opts config.Options, log *zap.Logger) (*ProcessGroup, error) {
	if numDevices <= 0 {
		return nil, ncclerr.New(ncclerr.InvalidArgument, "numDevices must be positive, got %d", numDevices)
	}
	if rank < 0 || rank >= size {
		return nil, ncclerr.New(ncclerr.InvalidArgument, "rank %d out of range for size %d", rank, size)
	}
	if opts.MinSupportedBackendVersion != "" {
		if err := backendversion.CheckMinimum(backend.Version(), opts.MinSupportedBackendVersion); err != nil {
			return nil, err
		}
	}

	pg := &ProcessGroup{
		rank:           rank,
		size:           size,
		numDevices:     numDevices,
		backend:        backend,
		runtime:        rt,
		allocator:      alloc,
		factory:        factory,
		store:          st,
		opts:           opts,
		log:            logger.NopIfNil(log).Named("ncclpg"),
		devCommMap:     make(map[string][]collective.Communicator),
		idToCommMap:    make(map[string][]collective.Communicator),
		streamMap:      make(map[string][]device.Stream),
		eventMap:       make(map[string][]device.Event),
		usedDeviceIdxs: make(map[int]bool),
		abortedComms:   make(map[string]bool),
		watchdogStop:   make(chan struct{}),
		watchdogDone:   make(chan struct{}),
	}

	go pg.watchdogLoop()
	return pg, nil
}

// Close terminates the watchdog and waits for it to exit. The
// communicator cache is left intact, since this method tears down the
// local process, not the backend's in-flight state.
func (pg *ProcessGroup) Close() {
	close(pg.watchdogStop)
	<-pg.watchdogDone
}

// getKey forms the device-set key: sorted device indices joined with
// commas. Two tensor lists whose devices enumerate the same set, in any
// order, collide on the same key.
func getKey(devices []int) string {
	sorted := append([]int{}, devices...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, d := range sorted {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}

func devicesOf(tensors []tensor.Tensor) []int {
	out := make([]int, len(tensors))
	for i, t := range tensors {
		out[i] = t.Device()
	}
	return out
}
