// Package device declares the GPU stream/event/runtime surface this
// process group depends on. Like package tensor, this is an interface
// boundary onto an external collaborator: the real CUDA-style runtime in
// production, internal/simulate's fake runtime in tests.
package device

// EventStatus is the result of a non-blocking event query.
type EventStatus int

const (
	EventComplete EventStatus = iota
	EventNotReady
	EventError
)

// Stream is an opaque handle to one GPU stream.
type Stream interface {
	DeviceIndex() int
}

// Event is a GPU event used for cross-stream synchronization and
// completion tracking.
type Event interface {
	// RecordOn records this event on s's current position in program
	// order.
	RecordOn(s Stream) error
	// WaitOn makes s wait for this event before continuing, without
	// blocking the calling goroutine.
	WaitOn(s Stream) error
	// Query is the non-blocking completion check.
	Query() (EventStatus, error)
}

// Runtime is the device-context and stream/event factory surface.
type Runtime struct {
	backend runtimeBackend
}

type runtimeBackend interface {
	SetDevice(idx int) error
	CurrentDevice() int
	CurrentStream(idx int) Stream
	NewStream(idx int) (Stream, error)
	NewEvent() (Event, error)
	Synchronize(idx int) error
}

// NewRuntime wraps a concrete runtime backend (production: a real CUDA
// binding; tests: internal/simulate's fake).
func NewRuntime(backend runtimeBackend) *Runtime {
	return &Runtime{backend: backend}
}

// WithDevice sets the active GPU for the duration of fn and restores the
// prior active device afterward, even if fn panics, the same defer-based
// release discipline this module uses for its mutexes applied to a second
// resource: the active device context.
func (r *Runtime) WithDevice(idx int, fn func() error) (err error) {
	prev := r.backend.CurrentDevice()
	if err := r.backend.SetDevice(idx); err != nil {
		return err
	}
	defer func() {
		_ = r.backend.SetDevice(prev)
	}()
	return fn()
}

func (r *Runtime) CurrentStream(idx int) Stream { return r.backend.CurrentStream(idx) }

func (r *Runtime) NewStream(idx int) (Stream, error) {
	var s Stream
	err := r.WithDevice(idx, func() error {
		var err error
		s, err = r.backend.NewStream(idx)
		return err
	})
	return s, err
}

func (r *Runtime) NewEvent() (Event, error) { return r.backend.NewEvent() }

func (r *Runtime) Synchronize(idx int) error { return r.backend.Synchronize(idx) }
