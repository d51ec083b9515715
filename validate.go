package ncclpg

import (
	"github.com/gocollective/ncclpg/ncclerr"
	"github.com/gocollective/ncclpg/tensor"
)

// validateStandard enforces the precondition shared by allreduce,
// broadcast, reduce, allgather, and reduce-scatter: a non-empty, densely
// packed, homogeneous tensor list with one distinct device per entry.
func validateStandard(tensors []tensor.Tensor, localDevices int) error {
	if err := validateCommon(tensors, localDevices); err != nil {
		return err
	}
	seen := make(map[int]bool, len(tensors))
	dtype := tensors[0].Dtype()
	shape := tensors[0].Shape()
	for _, t := range tensors {
		if t.Dtype() != dtype {
			return ncclerr.New(ncclerr.InvalidArgument, "tensor list has mixed dtypes: %s vs %s", t.Dtype(), dtype)
		}
		if !sameShape(t.Shape(), shape) {
			return ncclerr.New(ncclerr.InvalidArgument, "tensor list has mismatched shapes")
		}
		if seen[t.Device()] {
			return ncclerr.New(ncclerr.InvalidArgument, "tensor list has two tensors on device %d", t.Device())
		}
		seen[t.Device()] = true
	}
	return nil
}

// validateAllToAllV is validateStandard with the identical-shape and
// distinct-device checks waived, since the caller controls per-peer
// lengths. Callers pass the appropriate cap for localDevices: the local
// GPU count for a per-device list, or the list's own length when
// validating a per-peer list.
func validateAllToAllV(tensors []tensor.Tensor, localDevices int) error {
	return validateCommon(tensors, localDevices)
}

func validateCommon(tensors []tensor.Tensor, localDevices int) error {
	if len(tensors) == 0 {
		return ncclerr.New(ncclerr.InvalidArgument, "tensor list is empty")
	}
	if len(tensors) > localDevices {
		return ncclerr.New(ncclerr.InvalidArgument, "tensor list length %d exceeds local device count %d", len(tensors), localDevices)
	}
	for _, t := range tensors {
		if err := validateOneTensor(t); err != nil {
			return err
		}
	}
	return nil
}

func validateOneTensor(t tensor.Tensor) error {
	if t.Device() < 0 {
		return ncclerr.New(ncclerr.InvalidArgument, "tensor does not reside on a GPU")
	}
	if t.IsSparse() {
		return ncclerr.New(ncclerr.InvalidArgument, "sparse tensors are not supported")
	}
	if !t.IsContiguous() {
		return ncclerr.New(ncclerr.InvalidArgument, "tensor is not contiguous")
	}
	if !isSupportedDtype(t.Dtype()) {
		return ncclerr.New(ncclerr.Unsupported, "unsupported dtype %s", t.Dtype())
	}
	return nil
}

func isSupportedDtype(d tensor.DataType) bool {
	switch d {
	case tensor.Int8, tensor.Uint8, tensor.Float32, tensor.Float64, tensor.Int32, tensor.Int64, tensor.Float16:
		return true
	default:
		return false
	}
}

func sameShape(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// checkSplitSizes validates an all-to-all-v split vector against a
// tensor's leading dimension.
func checkSplitSizes(split []int64, t tensor.Tensor, groupSize int) error {
	dim0 := int64(0)
	if len(t.Shape()) > 0 {
		dim0 = t.Shape()[0]
	}
	if len(split) == 0 {
		if groupSize == 0 || dim0%int64(groupSize) != 0 {
			return ncclerr.New(ncclerr.InvalidArgument, "tensor size(0)=%d is not divisible by group size %d", dim0, groupSize)
		}
		return nil
	}
	if len(split) != groupSize {
		return ncclerr.New(ncclerr.InvalidArgument, "split has %d entries, expected group size %d", len(split), groupSize)
	}
	sum := int64(0)
	for _, s := range split {
		sum += s
	}
	if sum != dim0 {
		return ncclerr.New(ncclerr.InvalidArgument, "split sums to %d, tensor size(0) is %d", sum, dim0)
	}
	return nil
}
