package ncclpg

import (
	"github.com/gocollective/ncclpg/device"
	"github.com/gocollective/ncclpg/ncclerr"
	"github.com/gocollective/ncclpg/tensor"
)

// dispatchAllToAll batches a full round of per-peer send/recv into one
// backend group window on a single collective stream. It keeps
// single-device, single-communicator semantics rather than extending the
// data model to parallel per-device batched p2p.
//
// anchor is the tensor whose device selects the communicator bundle
// (alltoallBase's single input buffer, or peer 0's tensor for the
// list-based alltoall); recordOutputs is every output storage that must
// be pinned against the collective stream before the backend call.
func (pg *ProcessGroup) dispatchAllToAll(anchor tensor.Tensor, recordOutputs []tensor.Tensor, sendPtrs, recvPtrs []tensor.Tensor, sendLengths, recvLengths []int64) (*Work, error) {
	if len(sendPtrs) != len(sendLengths) || len(recvPtrs) != len(recvLengths) || len(sendPtrs) != len(recvPtrs) {
		return nil, ncclerr.New(ncclerr.InvalidArgument, "mismatched send/recv peer counts")
	}

	devices := []int{anchor.Device()}
	key := getKey(devices)

	bundle, err := pg.getComm(key, devices)
	if err != nil {
		return nil, err
	}

	pg.mu.Lock()
	events := pg.eventMap[key]
	streams := pg.streamMap[key]
	pg.mu.Unlock()

	if err := syncStreams(devices, events, streams, pg.runtime, pg.allocator, []tensor.Tensor{anchor}, recordOutputs); err != nil {
		return nil, err
	}

	completionEvent, err := pg.runtime.NewEvent()
	if err != nil {
		return nil, ncclerr.Wrap(ncclerr.BackendError, err, "allocate completion event for device %d", devices[0])
	}
	work := newWork(pg, devices, []device.Event{completionEvent}, bundle)

	comm := bundle[0]
	stream := streams[0]

	for _, in := range sendPtrs {
		pg.allocator.RecordStream(in.Storage(), stream)
	}
	for _, out := range recordOutputs {
		pg.allocator.RecordStream(out.Storage(), stream)
	}

	submitErr := pg.withGroupLock(func() error {
		return pg.runtime.WithDevice(devices[0], func() error {
			for i := range sendPtrs {
				if err := pg.backend.Send(sendPtrs[i], sendLengths[i], i, comm, stream); err != nil {
					return ncclerr.Wrap(ncclerr.BackendError, err, "send to peer %d", i)
				}
				if err := pg.backend.Recv(recvPtrs[i], recvLengths[i], i, comm, stream); err != nil {
					return ncclerr.Wrap(ncclerr.BackendError, err, "recv from peer %d", i)
				}
			}
			return nil
		})
	})
	if submitErr != nil {
		return nil, submitErr
	}

	for _, out := range recordOutputs {
		pg.allocator.RecordStream(out.Storage(), stream)
	}
	if err := completionEvent.RecordOn(stream); err != nil {
		return nil, ncclerr.Wrap(ncclerr.BackendError, err, "record completion event on device %d", devices[0])
	}

	return work, nil
}
