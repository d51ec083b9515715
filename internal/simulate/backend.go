package simulate

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/gocollective/ncclpg/collective"
	"github.com/gocollective/ncclpg/device"
	"github.com/gocollective/ncclpg/tensor"
)

// Backend is an in-memory fake of the collective backend, good enough to
// exercise rendezvous, collective math, point-to-point exchange, async
// errors, and abort — without real GPUs or a real NCCL-equivalent
// library.
//
// One Backend instance must be shared by every rank in a test (it plays
// the role of "the GPUs actually wired together"); each rank's
// ProcessGroup gets its own Communicator handles that all reference the
// same underlying groupState once rendezvous completes.
type Backend struct {
	mu      sync.Mutex
	groups  map[collective.UniqueID]*groupState
	version string
}

// NewBackend constructs a fake backend reporting the given version string
// (used by internal/backendversion's minimum-version gate).
func NewBackend(version string) *Backend {
	return &Backend{groups: make(map[collective.UniqueID]*groupState), version: version}
}

func (b *Backend) Version() string { return b.version }

// NewUniqueID generates a fake rendezvous token via google/uuid, the way
// a real backend's unique-id generator would, padded to
// collective.UniqueIDBytes.
func (b *Backend) NewUniqueID() (collective.UniqueID, error) {
	var id collective.UniqueID
	copy(id[:], uuid.New().String())
	return id, nil
}

func (b *Backend) group(id collective.UniqueID, worldSize int) *groupState {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.groups[id]
	if !ok {
		g = &groupState{worldSize: worldSize, mailbox: make(map[mailKey]chan []byte)}
		b.groups[id] = g
	}
	return g
}

func (b *Backend) CreateCommunicator(worldSize, worldRank int, id collective.UniqueID) (collective.Communicator, error) {
	g := b.group(id, worldSize)
	if g.worldSize != worldSize {
		return nil, fmt.Errorf("simulate: world size mismatch for group %s: %d vs %d", id.HexString(), g.worldSize, worldSize)
	}
	return &Communicator{id: id, worldRank: worldRank, group: g}, nil
}

func (b *Backend) GroupStart() error { return nil }
func (b *Backend) GroupEnd() error   { return nil }

func (b *Backend) AllReduce(in, out tensor.Tensor, op collective.ReduceOp, comm collective.Communicator, s device.Stream) error {
	c := comm.(*Communicator)
	st := s.(*Stream)
	st.Enqueue(func() { c.group.runCollective(c.worldRank, "allreduce", in.(*Tensor), out.(*Tensor), op, 0) })
	return nil
}

func (b *Backend) Broadcast(in, out tensor.Tensor, root int, comm collective.Communicator, s device.Stream) error {
	c := comm.(*Communicator)
	st := s.(*Stream)
	st.Enqueue(func() { c.group.runCollective(c.worldRank, "broadcast", in.(*Tensor), out.(*Tensor), 0, root) })
	return nil
}

func (b *Backend) Reduce(in, out tensor.Tensor, op collective.ReduceOp, root int, comm collective.Communicator, s device.Stream) error {
	c := comm.(*Communicator)
	st := s.(*Stream)
	st.Enqueue(func() { c.group.runCollective(c.worldRank, "reduce", in.(*Tensor), out.(*Tensor), op, root) })
	return nil
}

func (b *Backend) AllGather(in, out tensor.Tensor, comm collective.Communicator, s device.Stream) error {
	c := comm.(*Communicator)
	st := s.(*Stream)
	st.Enqueue(func() { c.group.runCollective(c.worldRank, "allgather", in.(*Tensor), out.(*Tensor), 0, 0) })
	return nil
}

func (b *Backend) ReduceScatter(in, out tensor.Tensor, op collective.ReduceOp, comm collective.Communicator, s device.Stream) error {
	c := comm.(*Communicator)
	st := s.(*Stream)
	st.Enqueue(func() { c.group.runCollective(c.worldRank, "reducescatter", in.(*Tensor), out.(*Tensor), op, 0) })
	return nil
}

func (b *Backend) Send(buf tensor.Tensor, numel int64, peer int, comm collective.Communicator, s device.Stream) error {
	c := comm.(*Communicator)
	st := s.(*Stream)
	t := buf.(*Tensor)
	st.Enqueue(func() {
		data := append([]byte{}, t.Bytes()[:numel*t.Dtype().ElementSize()]...)
		c.group.mailboxFor(c.worldRank, peer) <- data
	})
	return nil
}

func (b *Backend) Recv(buf tensor.Tensor, numel int64, peer int, comm collective.Communicator, s device.Stream) error {
	c := comm.(*Communicator)
	st := s.(*Stream)
	t := buf.(*Tensor)
	st.Enqueue(func() {
		data := <-c.group.mailboxFor(peer, c.worldRank)
		copy(t.Bytes()[:numel*t.Dtype().ElementSize()], data)
	})
	return nil
}

// Communicator is the fake collective.Communicator.
type Communicator struct {
	id        collective.UniqueID
	worldRank int
	group     *groupState

	mu       sync.Mutex
	asyncErr error
	aborted  bool
}

func (c *Communicator) ID() collective.UniqueID { return c.id }

func (c *Communicator) CheckAsyncError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.asyncErr
}

func (c *Communicator) Abort() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aborted = true
	return nil
}

func (c *Communicator) Aborted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}

func (c *Communicator) Raw() interface{} { return c }

// SetAsyncError injects an asynchronous error, observable on the next
// CheckAsyncError poll — the fake's hook for exercising the watchdog and
// work-handle error-capture paths without a real backend fault.
func (c *Communicator) SetAsyncError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.asyncErr = err
}

type mailKey struct{ src, dst int }

// groupState is the shared rendezvous point for every rank participating
// in one communicator group: one unique id, one bundle.
type groupState struct {
	worldSize int

	mu      sync.Mutex
	waiting *opState

	mailboxMu sync.Mutex
	mailbox   map[mailKey]chan []byte
}

func (g *groupState) mailboxFor(src, dst int) chan []byte {
	g.mailboxMu.Lock()
	defer g.mailboxMu.Unlock()
	k := mailKey{src, dst}
	ch, ok := g.mailbox[k]
	if !ok {
		ch = make(chan []byte, 8)
		g.mailbox[k] = ch
	}
	return ch
}

// opState collects every rank's contribution to one logical collective
// call before computing the result, emulating the backend's internal
// all-to-all data exchange a real GPU collective performs in hardware.
type opState struct {
	mu       sync.Mutex
	cond     *sync.Cond
	worldSize int
	kind     string
	op       collective.ReduceOp
	root     int
	arrived  int
	ins      map[int]*Tensor
	outs     map[int]*Tensor
	done     bool
}

func (g *groupState) runCollective(worldRank int, kind string, in, out *Tensor, op collective.ReduceOp, root int) {
	g.mu.Lock()
	st := g.waiting
	if st == nil {
		st = &opState{worldSize: g.worldSize, kind: kind, op: op, root: root, ins: map[int]*Tensor{}, outs: map[int]*Tensor{}}
		st.cond = sync.NewCond(&st.mu)
		g.waiting = st
	}
	g.mu.Unlock()

	st.mu.Lock()
	st.ins[worldRank] = in
	st.outs[worldRank] = out
	st.arrived++
	if st.arrived == st.worldSize {
		computeCollective(st)
		st.done = true
		g.mu.Lock()
		g.waiting = nil
		g.mu.Unlock()
		st.cond.Broadcast()
	} else {
		for !st.done {
			st.cond.Wait()
		}
	}
	st.mu.Unlock()
}

func computeCollective(st *opState) {
	switch st.kind {
	case "allreduce":
		acc := st.ins[0].Float64s()
		for r := 1; r < st.worldSize; r++ {
			acc = reduceFloat64(acc, st.ins[r].Float64s(), st.op)
		}
		for r := 0; r < st.worldSize; r++ {
			st.outs[r].SetFloat64s(acc)
		}
	case "broadcast":
		data := st.ins[st.root].Float64s()
		for r := 0; r < st.worldSize; r++ {
			st.outs[r].SetFloat64s(data)
		}
	case "reduce":
		acc := st.ins[0].Float64s()
		for r := 1; r < st.worldSize; r++ {
			acc = reduceFloat64(acc, st.ins[r].Float64s(), st.op)
		}
		st.outs[st.root].SetFloat64s(acc)
	case "allgather":
		full := make([]float64, 0, st.worldSize*len(st.ins[0].Float64s()))
		for i := 0; i < st.worldSize; i++ {
			full = append(full, st.ins[i].Float64s()...)
		}
		for r := 0; r < st.worldSize; r++ {
			st.outs[r].SetFloat64s(full)
		}
	case "reducescatter":
		acc := st.ins[0].Float64s()
		for r := 1; r < st.worldSize; r++ {
			acc = reduceFloat64(acc, st.ins[r].Float64s(), st.op)
		}
		chunk := len(acc) / st.worldSize
		for r := 0; r < st.worldSize; r++ {
			st.outs[r].SetFloat64s(acc[r*chunk : (r+1)*chunk])
		}
	}
}
