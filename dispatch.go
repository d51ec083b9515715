package ncclpg

import (
	"github.com/gocollective/ncclpg/collective"
	"github.com/gocollective/ncclpg/device"
	"github.com/gocollective/ncclpg/ncclerr"
	"github.com/gocollective/ncclpg/tensor"
)

// submitFn is the backend call a single dispatch step performs for one
// device, e.g. a closure over Backend.AllReduce with the op baked in.
type submitFn func(in, out tensor.Tensor, comm collective.Communicator, s device.Stream) error

// hookFn lets a collective piggyback a copy on the collective streams
// without extra synchronization (reduce-scatter's pre-hook copies
// list->flat, allgather's post-hook copies flat->list).
type hookFn func(streams []device.Stream) error

// dispatch is the control-flow skeleton shared by every dense collective:
// resolve the device set's communicator bundle, order the collective
// streams after each device's producer stream, run the caller-supplied
// backend call inside one group-start/group-end window, and record a
// completion event per device. It records both input and output storage
// against the collective stream in one syncStreams call rather than
// reiterating a narrower recordStream pass later.
func (pg *ProcessGroup) dispatch(inputs, outputs []tensor.Tensor, submit submitFn, pre, post hookFn) (*Work, error) {
	devices := devicesOf(inputs)
	key := getKey(devices)

	bundle, err := pg.getComm(key, devices)
	if err != nil {
		return nil, err
	}

	pg.mu.Lock()
	events := pg.eventMap[key]
	streams := pg.streamMap[key]
	pg.mu.Unlock()

	if err := syncStreams(devices, events, streams, pg.runtime, pg.allocator, inputs, outputs); err != nil {
		return nil, err
	}

	completionEvents := make([]device.Event, len(devices))
	for i := range devices {
		e, err := pg.runtime.NewEvent()
		if err != nil {
			return nil, ncclerr.Wrap(ncclerr.BackendError, err, "allocate completion event for device %d", devices[i])
		}
		completionEvents[i] = e
	}
	work := newWork(pg, devices, completionEvents, bundle)

	if pre != nil {
		if err := pre(streams); err != nil {
			return nil, err
		}
	}

	submitErr := pg.withGroupLock(func() error {
		for i, idx := range devices {
			if err := pg.runtime.WithDevice(idx, func() error {
				return submit(inputs[i], outputs[i], bundle[i], streams[i])
			}); err != nil {
				return ncclerr.Wrap(ncclerr.BackendError, err, "submit collective on device %d", idx)
			}
		}
		return nil
	})
	if submitErr != nil {
		return nil, submitErr
	}

	if post != nil {
		if err := post(streams); err != nil {
			return nil, err
		}
	}

	for i, s := range streams {
		if err := completionEvents[i].RecordOn(s); err != nil {
			return nil, ncclerr.Wrap(ncclerr.BackendError, err, "record completion event on device %d", devices[i])
		}
	}

	return work, nil
}

// withGroupLock acquires the scoped group lock: the allocator's
// free-mutex together with a backend group submission window. Teardown
// closes the group window first, then releases the mutex, on every exit
// path including an error from fn.
func (pg *ProcessGroup) withGroupLock(fn func() error) error {
	pg.allocator.Lock()
	if err := pg.backend.GroupStart(); err != nil {
		pg.allocator.Unlock()
		return ncclerr.Wrap(ncclerr.BackendError, err, "group start")
	}

	fnErr := fn()
	endErr := pg.backend.GroupEnd()
	pg.allocator.Unlock()

	if fnErr != nil {
		return fnErr
	}
	if endErr != nil {
		return ncclerr.Wrap(ncclerr.BackendError, endErr, "group end")
	}
	return nil
}
