// Package tensor declares the tensor-library surface this process group
// depends on: an external collaborator referenced only by interface.
// Production code wires it to a real tensor library, tests wire it to
// internal/simulate's in-memory implementation.
package tensor

// DataType enumerates the element types this library supports. Any other
// dtype fails with ncclerr.Unsupported.
type DataType int

const (
	Int8 DataType = iota
	Uint8
	Float32
	Float64
	Int32
	Int64
	Float16
)

func (d DataType) String() string {
	switch d {
	case Int8:
		return "int8"
	case Uint8:
		return "uint8"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Float16:
		return "float16"
	default:
		return "unknown"
	}
}

// ElementSize reports the size in bytes of one element of d.
func (d DataType) ElementSize() int64 {
	switch d {
	case Int8, Uint8:
		return 1
	case Float16:
		return 2
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	default:
		return 0
	}
}

// Storage is the aliasable backing allocation a Tensor is a view over.
// Two tensors alias the same memory iff their Storage() values compare
// equal and their StorageOffset()s/shapes overlap.
type Storage interface {
	// ID uniquely identifies this allocation for aliasing comparisons.
	ID() uintptr
	// NumElement is the total element count of the whole allocation.
	NumElement() int64
	// Device is the GPU index this storage lives on.
	Device() int
	// View returns a tensor of dtype reading [offset, offset+numel) of
	// this storage, zero-copy.
	View(dtype DataType, offset, numel int64) Tensor
}

// Tensor is the minimal surface the dispatcher needs: enough to validate
// preconditions, locate storage for stream-safety bookkeeping, and
// construct flattened views.
type Tensor interface {
	Device() int
	Dtype() DataType
	// Shape reports the tensor's dimension sizes; len(Shape()) is its
	// rank.
	Shape() []int64
	NumElement() int64
	IsContiguous() bool
	IsSparse() bool
	Storage() Storage
	// StorageOffset is this tensor's starting element offset within
	// Storage().
	StorageOffset() int64
	// CopyFrom overwrites this tensor's contents with src's, used by the
	// dispatcher's pre/post hooks to move data between list and flat
	// representations.
	CopyFrom(src Tensor) error
}

// Factory allocates fresh tensors, used where the dispatcher can't avoid
// a copy and by the barrier synthesizer's one 1-byte tensor per device.
type Factory interface {
	NewTensor(device int, dtype DataType, numel int64) Tensor
}
