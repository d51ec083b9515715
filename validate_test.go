package ncclpg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocollective/ncclpg/internal/simulate"
	"github.com/gocollective/ncclpg/ncclerr"
	"github.com/gocollective/ncclpg/tensor"
)

func TestValidateStandard(t *testing.T) {
	t.Run("rejects empty list", func(t *testing.T) {
		err := validateStandard(nil, 4)
		require.Error(t, err)
		assert.True(t, ncclerr.Is(err, ncclerr.InvalidArgument))
	})

	t.Run("rejects list longer than local device count", func(t *testing.T) {
		tensors := []tensor.Tensor{
			simulate.NewTensor(0, tensor.Float32, 4),
			simulate.NewTensor(1, tensor.Float32, 4),
		}
		err := validateStandard(tensors, 1)
		require.Error(t, err)
		assert.True(t, ncclerr.Is(err, ncclerr.InvalidArgument))
	})

	t.Run("rejects mixed dtypes", func(t *testing.T) {
		tensors := []tensor.Tensor{
			simulate.NewTensor(0, tensor.Float32, 4),
			simulate.NewTensor(1, tensor.Float64, 4),
		}
		err := validateStandard(tensors, 4)
		require.Error(t, err)
	})

	t.Run("rejects mismatched shapes", func(t *testing.T) {
		tensors := []tensor.Tensor{
			simulate.NewTensor(0, tensor.Float32, 4),
			simulate.NewTensor(1, tensor.Float32, 8),
		}
		err := validateStandard(tensors, 4)
		require.Error(t, err)
	})

	t.Run("rejects two tensors on the same device", func(t *testing.T) {
		tensors := []tensor.Tensor{
			simulate.NewTensor(0, tensor.Float32, 4),
			simulate.NewTensor(0, tensor.Float32, 4),
		}
		err := validateStandard(tensors, 4)
		require.Error(t, err)
	})

	t.Run("accepts a well-formed list", func(t *testing.T) {
		tensors := []tensor.Tensor{
			simulate.NewTensor(0, tensor.Float32, 4),
			simulate.NewTensor(1, tensor.Float32, 4),
		}
		require.NoError(t, validateStandard(tensors, 4))
	})
}

func TestValidateAllToAllV(t *testing.T) {
	t.Run("allows mismatched shapes and repeated devices", func(t *testing.T) {
		tensors := []tensor.Tensor{
			simulate.NewTensor(0, tensor.Float32, 4),
			simulate.NewTensor(0, tensor.Float32, 9),
		}
		require.NoError(t, validateAllToAllV(tensors, 2))
	})
}

func TestCheckSplitSizes(t *testing.T) {
	t.Run("even split requires divisibility", func(t *testing.T) {
		tt := simulate.NewTensor(0, tensor.Float32, 9)
		require.NoError(t, checkSplitSizes(nil, tt, 3))
		require.Error(t, checkSplitSizes(nil, tt, 4))
	})

	t.Run("explicit split must match group size and sum", func(t *testing.T) {
		tt := simulate.NewTensor(0, tensor.Float32, 4)
		require.NoError(t, checkSplitSizes([]int64{1, 3}, tt, 2))
		require.Error(t, checkSplitSizes([]int64{1, 2}, tt, 2))
		require.Error(t, checkSplitSizes([]int64{1, 1, 2}, tt, 2))
	})
}
