package simulate

import (
	"sync"
	"sync/atomic"

	"github.com/gocollective/ncclpg/device"
)

var nextStreamID uint64

// Stream is a fake GPU stream: an ordered job queue drained by one
// goroutine, so jobs enqueued on it execute in submission order — the
// single property real CUDA streams guarantee that this module's
// synchronization protocol depends on.
type Stream struct {
	id     uint64
	device int
	jobs   chan func()
	wg     sync.WaitGroup
}

func newStream(dev int) *Stream {
	s := &Stream{id: atomic.AddUint64(&nextStreamID, 1), device: dev, jobs: make(chan func(), 256)}
	go s.run()
	return s
}

func (s *Stream) run() {
	for job := range s.jobs {
		job()
		s.wg.Done()
	}
}

// Enqueue schedules job to run after every previously enqueued job on
// this stream.
func (s *Stream) Enqueue(job func()) {
	s.wg.Add(1)
	s.jobs <- job
}

// DeviceIndex implements device.Stream.
func (s *Stream) DeviceIndex() int { return s.device }

// Drain blocks until every job enqueued on s so far has run, the fake
// stand-in for cudaStreamSynchronize/cudaDeviceSynchronize.
func (s *Stream) Drain() { s.wg.Wait() }

// Event is a fake GPU event: a one-shot completion signal tied to the
// stream position it was recorded at.
type Event struct {
	mu       sync.Mutex
	recorded bool
	complete bool
	err      error
	done     chan struct{}
}

func newEvent() *Event { return &Event{} }

// RecordOn enqueues a completion mark on s; the event becomes Complete
// once every job enqueued on s before this call has run.
func (e *Event) RecordOn(s device.Stream) error {
	st := s.(*Stream)
	e.mu.Lock()
	e.recorded = true
	e.complete = false
	e.err = nil
	done := make(chan struct{})
	e.done = done
	e.mu.Unlock()

	st.Enqueue(func() {
		close(done)
	})
	return nil
}

// WaitOn enqueues a blocking wait-for-e job on s, without blocking the
// calling goroutine — s's own background goroutine blocks instead,
// matching a real GPU stream-to-stream wait.
func (e *Event) WaitOn(s device.Stream) error {
	st := s.(*Stream)
	e.mu.Lock()
	done := e.done
	recorded := e.recorded
	e.mu.Unlock()
	if !recorded {
		return nil
	}
	st.Enqueue(func() {
		<-done
	})
	return nil
}

// SetError marks e as failed, observable via Query — used by tests to
// simulate an asynchronous backend error surfacing through a completion
// event.
func (e *Event) SetError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
	if e.done != nil {
		select {
		case <-e.done:
		default:
			close(e.done)
		}
	}
	e.complete = true
}

// Query implements device.Event's non-blocking poll.
func (e *Event) Query() (device.EventStatus, error) {
	e.mu.Lock()
	done := e.done
	err := e.err
	recorded := e.recorded
	e.mu.Unlock()

	if !recorded {
		return device.EventComplete, nil
	}
	if err != nil {
		return device.EventError, err
	}
	select {
	case <-done:
		return device.EventComplete, nil
	default:
		return device.EventNotReady, nil
	}
}

// Runtime is a fake device.Runtime backend: per-device current streams
// and a stream/event pool.
type Runtime struct {
	mu      sync.Mutex
	current int
	streams map[int]*Stream
}

// NewRuntime constructs an empty fake runtime.
func NewRuntime() *Runtime {
	return &Runtime{streams: make(map[int]*Stream)}
}

func (r *Runtime) SetDevice(idx int) error {
	r.mu.Lock()
	r.current = idx
	r.mu.Unlock()
	return nil
}

func (r *Runtime) CurrentDevice() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *Runtime) CurrentStream(idx int) device.Stream {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.streams[idx]
	if !ok {
		s = newStream(idx)
		r.streams[idx] = s
	}
	return s
}

// NewStream draws a fresh stream from the pool, distinct from the
// per-device "current"/producer stream.
func (r *Runtime) NewStream(idx int) (device.Stream, error) {
	return newStream(idx), nil
}

func (r *Runtime) NewEvent() (device.Event, error) { return newEvent(), nil }

func (r *Runtime) Synchronize(idx int) error {
	r.mu.Lock()
	s, ok := r.streams[idx]
	r.mu.Unlock()
	if ok {
		s.Drain()
	}
	return nil
}
