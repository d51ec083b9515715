package ncclpg

import (
	"sort"

	"github.com/gocollective/ncclpg/collective"
	"github.com/gocollective/ncclpg/device"
	"github.com/gocollective/ncclpg/tensor"
)

// BarrierOptions carries no recognized fields.
type BarrierOptions struct{}

// Barrier synthesizes a barrier from a 1-byte all-reduce across every
// device touched so far by this process group, or every local device if
// none has run yet. The cold path must still submit all numDevices local
// participants: the communicator it rendezvous into is sized to
// size*numDevices, so a single-device barrier would leave that
// communicator's world short of arrivals and never complete. The
// allocated tensors are retained on the returned work handle so
// Synchronize performs a device-sync in addition to an event wait,
// guaranteeing every prior operation on those devices has drained.
func (pg *ProcessGroup) Barrier(opts BarrierOptions) (*Work, error) {
	pg.mu.Lock()
	var devices []int
	if len(pg.usedDeviceIdxs) == 0 {
		devices = make([]int, pg.numDevices)
		for i := range devices {
			devices[i] = i
		}
	} else {
		for d := range pg.usedDeviceIdxs {
			devices = append(devices, d)
		}
		sort.Ints(devices)
	}
	pg.mu.Unlock()

	tensors := make([]tensor.Tensor, len(devices))
	for i, d := range devices {
		tensors[i] = pg.factory.NewTensor(d, tensor.Uint8, 1)
	}

	work, err := pg.dispatch(tensors, tensors, func(in, out tensor.Tensor, comm collective.Communicator, s device.Stream) error {
		return pg.backend.AllReduce(in, out, collective.Sum, comm, s)
	}, nil, nil)
	if err != nil {
		return nil, err
	}
	work.barrierTensors = tensors
	return work, nil
}
