// Package gpualloc declares the caching-allocator surface this process
// group depends on: a free-mutex plus per-stream usage recording. This is
// an interface boundary, matching package tensor and package device.
package gpualloc

import (
	"github.com/gocollective/ncclpg/device"
	"github.com/gocollective/ncclpg/tensor"
)

// Allocator is the caching GPU memory allocator. Lock/Unlock guard the
// free-mutex the group lock acquires around a backend group submission
// window; RecordStream defers freeing a storage until the given stream
// has observed its last use.
type Allocator interface {
	Lock()
	Unlock()
	RecordStream(storage tensor.Storage, s device.Stream)
}
