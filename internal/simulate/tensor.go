package simulate

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gocollective/ncclpg/tensor"
)

var nextStorageID uint64

// Storage is an in-memory stand-in for the caching-allocator-backed
// storage real tensors alias into.
type Storage struct {
	id     uintptr
	device int
	dtype  tensor.DataType
	mu     sync.Mutex
	buf    []byte
}

// NewStorage allocates a zeroed storage of numel elements of dtype on
// device.
func NewStorage(device int, dtype tensor.DataType, numel int64) *Storage {
	return &Storage{
		id:     uintptr(atomic.AddUint64(&nextStorageID, 1)),
		device: device,
		dtype:  dtype,
		buf:    make([]byte, numel*dtype.ElementSize()),
	}
}

func (s *Storage) ID() uintptr        { return s.id }
func (s *Storage) Device() int        { return s.device }
func (s *Storage) NumElement() int64  { return int64(len(s.buf)) / s.dtype.ElementSize() }

// View returns a zero-copy Tensor over [offset, offset+numel) of s. dtype
// must match the storage's own element type: this storage is typed, not
// the raw untyped byte buffer a real allocator would hand back.
func (s *Storage) View(dtype tensor.DataType, offset, numel int64) tensor.Tensor {
	return &Tensor{storage: s, dtype: dtype, shape: []int64{numel}, offset: offset, contiguous: true}
}

// Tensor is a Storage view with a shape, matching tensor.Tensor.
type Tensor struct {
	storage    *Storage
	dtype      tensor.DataType
	shape      []int64
	offset     int64
	contiguous bool
	sparse     bool
}

// NewTensor allocates a fresh, freshly-backed, contiguous tensor — the
// simulate.Factory implementation.
func NewTensor(device int, dtype tensor.DataType, shape ...int64) *Tensor {
	numel := int64(1)
	for _, d := range shape {
		numel *= d
	}
	st := NewStorage(device, dtype, numel)
	return &Tensor{storage: st, dtype: dtype, shape: append([]int64{}, shape...), contiguous: true}
}

func (t *Tensor) Device() int       { return t.storage.Device() }
func (t *Tensor) Dtype() tensor.DataType { return t.dtype }
func (t *Tensor) Shape() []int64    { return t.shape }
func (t *Tensor) IsContiguous() bool { return t.contiguous }
func (t *Tensor) IsSparse() bool    { return t.sparse }
func (t *Tensor) Storage() tensor.Storage { return t.storage }
func (t *Tensor) StorageOffset() int64 { return t.offset }

func (t *Tensor) NumElement() int64 {
	n := int64(1)
	for _, d := range t.shape {
		n *= d
	}
	return n
}

// Bytes returns the raw byte window this tensor views, for use by the
// fake collective backend only (not part of tensor.Tensor).
func (t *Tensor) Bytes() []byte {
	t.storage.mu.Lock()
	defer t.storage.mu.Unlock()
	elemSize := t.dtype.ElementSize()
	start := t.offset * elemSize
	end := start + t.NumElement()*elemSize
	return t.storage.buf[start:end]
}

func (t *Tensor) CopyFrom(src tensor.Tensor) error {
	s, ok := src.(*Tensor)
	if !ok {
		return fmt.Errorf("simulate: CopyFrom expects a *simulate.Tensor, got %T", src)
	}
	if s.NumElement() != t.NumElement() {
		return fmt.Errorf("simulate: CopyFrom element count mismatch: %d vs %d", s.NumElement(), t.NumElement())
	}
	srcBytes := s.Bytes()
	dstBytes := t.Bytes()
	if t.dtype == s.dtype {
		copy(dstBytes, srcBytes)
		return nil
	}
	encodeInto(t, decodeFloat64(s.dtype, srcBytes))
	return nil
}

// SetFloat64s overwrites t's contents from vals, converting to t's dtype.
func (t *Tensor) SetFloat64s(vals []float64) {
	encodeInto(t, vals)
}

// Float64s reads t's contents, converting from t's dtype.
func (t *Tensor) Float64s() []float64 {
	return decodeFloat64(t.dtype, t.Bytes())
}

func encodeInto(t *Tensor, vals []float64) {
	copy(t.Bytes(), encodeFloat64(t.dtype, vals))
}

// Factory implements tensor.Factory over simulate.Tensor.
type Factory struct{}

func (Factory) NewTensor(device int, dtype tensor.DataType, numel int64) tensor.Tensor {
	return NewTensor(device, dtype, numel)
}
