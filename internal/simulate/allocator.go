package simulate

import (
	"sync"

	"github.com/gocollective/ncclpg/device"
	"github.com/gocollective/ncclpg/tensor"
)

// recordEntry is one observed recordStream call, kept for test assertions
// that the right storage was pinned against the right stream.
type recordEntry struct {
	storageID uintptr
	streamID  uint64
}

// Allocator is a fake caching GPU memory allocator. Real recordStream
// semantics ("don't actually free this block until every stream it was
// used on has drained") aren't needed for
// correctness here — only introspection of which (storage, stream) pairs
// were pinned — so Lock/Unlock are a plain mutex and RecordStream just
// appends to a slice tests can inspect.
type Allocator struct {
	blockMu sync.Mutex

	recordMu sync.Mutex
	records  []recordEntry
}

// NewAllocator constructs an empty fake allocator.
func NewAllocator() *Allocator { return &Allocator{} }

// Lock implements gpualloc.Allocator: acquires the allocator's block-list
// lock, held by the caller around a collective launch the way
// c10/cuda/CUDACachingAllocator's recordStream contract requires.
func (a *Allocator) Lock() { a.blockMu.Lock() }

// Unlock implements gpualloc.Allocator.
func (a *Allocator) Unlock() { a.blockMu.Unlock() }

// RecordStream notes that storage was used on s, so a real allocator
// would defer freeing storage's block until s has drained past this
// point.
func (a *Allocator) RecordStream(storage tensor.Storage, s device.Stream) {
	a.recordMu.Lock()
	defer a.recordMu.Unlock()
	id := uint64(0)
	if rs, ok := s.(*Stream); ok {
		id = rs.id
	}
	a.records = append(a.records, recordEntry{storageID: storage.ID(), streamID: id})
}

// Records returns every (storage, stream) pair recorded so far, for test
// assertions.
func (a *Allocator) Records() []struct {
	StorageID uintptr
	StreamID  uint64
} {
	a.recordMu.Lock()
	defer a.recordMu.Unlock()
	out := make([]struct {
		StorageID uintptr
		StreamID  uint64
	}, len(a.records))
	for i, r := range a.records {
		out[i] = struct {
			StorageID uintptr
			StreamID  uint64
		}{r.storageID, r.streamID}
	}
	return out
}
