package ncclpg

import (
	"github.com/gocollective/ncclpg/device"
	"github.com/gocollective/ncclpg/gpualloc"
	"github.com/gocollective/ncclpg/tensor"
)

// syncStreams orders collective-stream kernels after whatever is still in
// flight on each device's producer stream, and pins input/output storage
// against the collective stream so the caching allocator doesn't reclaim
// it mid-flight.
func syncStreams(devices []int, events []device.Event, streams []device.Stream, rt *device.Runtime, alloc gpualloc.Allocator, inputs, outputs []tensor.Tensor) error {
	for i, idx := range devices {
		producer := rt.CurrentStream(idx)
		if err := events[i].RecordOn(producer); err != nil {
			return err
		}
		if err := events[i].WaitOn(streams[i]); err != nil {
			return err
		}
	}
	for i := range devices {
		if i < len(inputs) && inputs[i] != nil {
			alloc.RecordStream(inputs[i].Storage(), streams[i])
		}
		if i < len(outputs) && outputs[i] != nil && outputs[i] != inputs[i] {
			alloc.RecordStream(outputs[i].Storage(), streams[i])
		}
	}
	return nil
}
