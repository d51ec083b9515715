// Package simulate provides in-memory fakes for every external
// collaborator (tensor library, caching allocator, collective backend,
// rendezvous store), so the process group's own logic can be exercised
// without real GPUs.
//
// codec.go is a byte<->float64 codec that dispatches on dtype, rather
// than hardcoding float64.
package simulate

import (
	"encoding/binary"
	"math"

	"github.com/gocollective/ncclpg/collective"
	"github.com/gocollective/ncclpg/tensor"
)

func decodeFloat64(dtype tensor.DataType, buf []byte) []float64 {
	elemSize := int(dtype.ElementSize())
	n := len(buf) / elemSize
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		b := buf[i*elemSize : (i+1)*elemSize]
		switch dtype {
		case tensor.Int8:
			out[i] = float64(int8(b[0]))
		case tensor.Uint8:
			out[i] = float64(b[0])
		case tensor.Float32:
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		case tensor.Float64:
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b))
		case tensor.Int32:
			out[i] = float64(int32(binary.LittleEndian.Uint32(b)))
		case tensor.Int64:
			out[i] = float64(int64(binary.LittleEndian.Uint64(b)))
		case tensor.Float16:
			out[i] = float64(binary.LittleEndian.Uint16(b)) // coarse, test-only
		}
	}
	return out
}

func encodeFloat64(dtype tensor.DataType, values []float64) []byte {
	elemSize := int(dtype.ElementSize())
	out := make([]byte, len(values)*elemSize)
	for i, v := range values {
		b := out[i*elemSize : (i+1)*elemSize]
		switch dtype {
		case tensor.Int8:
			b[0] = byte(int8(v))
		case tensor.Uint8:
			b[0] = byte(v)
		case tensor.Float32:
			binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
		case tensor.Float64:
			binary.LittleEndian.PutUint64(b, math.Float64bits(v))
		case tensor.Int32:
			binary.LittleEndian.PutUint32(b, uint32(int32(v)))
		case tensor.Int64:
			binary.LittleEndian.PutUint64(b, uint64(int64(v)))
		case tensor.Float16:
			binary.LittleEndian.PutUint16(b, uint16(v))
		}
	}
	return out
}

// reduceFloat64 applies op elementwise across a and b.
func reduceFloat64(a, b []float64, op collective.ReduceOp) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		switch op {
		case collective.Sum:
			out[i] = a[i] + b[i]
		case collective.Product:
			out[i] = a[i] * b[i]
		case collective.Min:
			out[i] = math.Min(a[i], b[i])
		case collective.Max:
			out[i] = math.Max(a[i], b[i])
		}
	}
	return out
}
