// Package collective declares the underlying GPU collective library this
// process group depends on: operator codes, unique-id generation,
// per-stream kernel launches, async error polling. This is the interface
// boundary production code wires to a real backend and tests wire to
// internal/simulate's fake.
package collective

import (
	"fmt"

	"github.com/gocollective/ncclpg/device"
	"github.com/gocollective/ncclpg/tensor"
)

// ReduceOp maps 1:1 to the backend's reduction operators.
type ReduceOp int

const (
	Min ReduceOp = iota
	Max
	Sum
	Product
)

func (op ReduceOp) String() string {
	switch op {
	case Min:
		return "min"
	case Max:
		return "max"
	case Sum:
		return "sum"
	case Product:
		return "product"
	default:
		return "unknown"
	}
}

// UniqueIDBytes is the fixed length of a backend unique id. Rendezvous
// payloads of any other length fail with InvalidState.
const UniqueIDBytes = 128

// UniqueID is the backend's rendezvous token, broadcast through the store
// so every rank can create communicators belonging to the same group.
type UniqueID [UniqueIDBytes]byte

// HexString renders the id as unpadded hex, byte by byte, for use in
// store keys like "NCCLABORTEDCOMM:<idHex>".
func (id UniqueID) HexString() string {
	s := ""
	for _, b := range id {
		s += fmt.Sprintf("%x", b)
	}
	return s
}

// Communicator wraps one backend communicator for one device.
type Communicator interface {
	ID() UniqueID
	CheckAsyncError() error
	Abort() error
	// Raw exposes the backend-native handle to Backend op calls.
	Raw() interface{}
}

// Backend is the collective library itself.
type Backend interface {
	// Version reports the backend's self-reported version string, used
	// by internal/backendversion to gate construction and annotate
	// BackendError messages.
	Version() string

	NewUniqueID() (UniqueID, error)

	// CreateCommunicator opens one communicator for worldRank of
	// worldSize, rendezvousing via id. Must be called inside a
	// GroupStart/GroupEnd window.
	CreateCommunicator(worldSize, worldRank int, id UniqueID) (Communicator, error)

	GroupStart() error
	GroupEnd() error

	AllReduce(in, out tensor.Tensor, op ReduceOp, comm Communicator, s device.Stream) error
	Broadcast(in, out tensor.Tensor, root int, comm Communicator, s device.Stream) error
	Reduce(in, out tensor.Tensor, op ReduceOp, root int, comm Communicator, s device.Stream) error
	AllGather(in, out tensor.Tensor, comm Communicator, s device.Stream) error
	ReduceScatter(in, out tensor.Tensor, op ReduceOp, comm Communicator, s device.Stream) error

	Send(buf tensor.Tensor, numel int64, peer int, comm Communicator, s device.Stream) error
	Recv(buf tensor.Tensor, numel int64, peer int, comm Communicator, s device.Stream) error
}
