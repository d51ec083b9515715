package ncclpg

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/gocollective/ncclpg/collective"
	"github.com/gocollective/ncclpg/device"
	"github.com/gocollective/ncclpg/ncclerr"
	"github.com/gocollective/ncclpg/tensor"
)

type workState int32

const (
	workPending workState = iota
	workFinished
	workFailed
	workTimedOut
)

// Work is the asynchronous completion handle returned by every
// collective: one completion event per device, a back-reference to the
// communicator bundle and store used to submit it, and the captured
// terminal state.
type Work struct {
	pg               *ProcessGroup
	devices          []int
	completionEvents []device.Event
	comms            []collective.Communicator
	start            time.Time
	blockingWait     bool
	timeout          time.Duration
	barrierTensors   []tensor.Tensor

	// done lets callers short-circuit a finished/failed/timed-out handle
	// without taking pg.mu, the way the rest of this module keeps
	// cross-goroutine polling off the process-group lock.
	done atomic.Bool

	mu    sync.Mutex
	state workState
	err   error
}

func newWork(pg *ProcessGroup, devices []int, events []device.Event, comms []collective.Communicator) *Work {
	return &Work{
		pg:               pg,
		devices:          devices,
		completionEvents: events,
		comms:            comms,
		start:            time.Now(),
		blockingWait:     pg.opts.BlockingWait,
		timeout:          pg.opts.OpTimeout,
	}
}

// checkAsyncError polls every communicator this work handle used;
// the first error observed is captured as the work's terminal failure.
func (w *Work) checkAsyncError() bool {
	for _, c := range w.comms {
		if err := c.CheckAsyncError(); err != nil {
			w.setTerminal(workFailed, ncclerr.Wrap(ncclerr.BackendError, err, "asynchronous collective error"))
			return true
		}
	}
	return false
}

// isCompleted polls async errors, then every completion event.
func (w *Work) isCompleted() bool {
	if w.done.Load() {
		return true
	}
	if w.checkAsyncError() {
		return true
	}
	allComplete := true
	for _, e := range w.completionEvents {
		status, err := e.Query()
		if err != nil {
			w.setTerminal(workFailed, ncclerr.Wrap(ncclerr.BackendError, err, "completion event reported an error"))
			return true
		}
		if status != device.EventComplete {
			allComplete = false
		}
	}
	if allComplete {
		w.setTerminal(workFinished, nil)
	}
	return allComplete
}

// isSuccess reports completion with no captured error and no async error
// observed at poll time.
func (w *Work) isSuccess() bool {
	completed := w.isCompleted()
	w.mu.Lock()
	defer w.mu.Unlock()
	return completed && w.err == nil
}

func (w *Work) setTerminal(state workState, err error) {
	w.mu.Lock()
	if w.state == workPending {
		w.state = state
		w.err = err
	}
	w.mu.Unlock()
	w.done.Store(true)
}

// Synchronize orders the caller's current stream after this work's
// completion, then (under blocking-wait) spins until the collective has
// actually finished or the timeout elapses. With blocking-wait disabled,
// it returns immediately once the stream ordering is in place — the
// caller's stream is correctly ordered after the collective even though
// the host hasn't observed completion.
func (w *Work) Synchronize() error {
	for i, idx := range w.devices {
		current := w.pg.runtime.CurrentStream(idx)
		if err := w.completionEvents[i].WaitOn(current); err != nil {
			return ncclerr.Wrap(ncclerr.BackendError, err, "order current stream after completion event")
		}
	}
	if len(w.barrierTensors) > 0 {
		for _, idx := range w.devices {
			if err := w.pg.runtime.Synchronize(idx); err != nil {
				return ncclerr.Wrap(ncclerr.BackendError, err, "device-synchronize device %d", idx)
			}
		}
	}

	if !w.blockingWait {
		return nil
	}

	for {
		if w.isCompleted() {
			w.mu.Lock()
			err := w.err
			w.mu.Unlock()
			return err
		}
		if time.Since(w.start) > w.timeout {
			return w.timeoutAbort()
		}
		time.Sleep(w.pg.opts.SynchronizeBusyWaitPeriod)
	}
}

// timeoutAbort implements the PENDING -> TIMED_OUT transition: abort
// every communicator this work used, publish their ids to the store
// before returning so peers unblock.
func (w *Work) timeoutAbort() error {
	for _, c := range w.comms {
		_ = c.Abort()
		w.pg.markAborted(c.ID())
		key := fmt.Sprintf("NCCLABORTEDCOMM:%s", c.ID().HexString())
		if err := w.pg.store.Set(key, nil); err != nil {
			w.pg.log.Sugar().Warnw("failed to publish abort on timeout", "key", key, "error", err)
		}
	}
	err := ncclerr.New(ncclerr.TimedOut, "collective did not complete within %s", w.timeout)
	w.setTerminal(workTimedOut, err)
	return err
}

// Wait aliases Synchronize.
func (w *Work) Wait() error { return w.Synchronize() }

// Abort is explicitly unsupported.
func (w *Work) Abort() error {
	return ncclerr.New(ncclerr.Unsupported, "work handle abort is not supported")
}
