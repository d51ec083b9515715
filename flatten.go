package ncclpg

import (
	"github.com/gocollective/ncclpg/ncclerr"
	"github.com/gocollective/ncclpg/tensor"
)

// flattenForScatter reshapes a [numDevices][worldSize] list-of-lists into
// one flat tensor per device, detecting the no-copy aliasing case so the
// gather/scatter collectives can avoid an extra copy when the caller
// already laid tensors out contiguously.
//
// tensorLists[d] is the ordered list of worldSize per-peer tensors for
// device d; other[d] is the tensor this rank's own slot must match
// (the input, i.e. sendBuf, for allgather; the output, i.e. recvBuf, for
// reduce-scatter). noCopy is the
// caller's hint; it only takes effect once the aliasing precondition is
// independently verified — a false hint never upgrades to zero-copy, and
// a true hint that doesn't verify falls back to an allocated flat buffer.
//
// Returns one flat tensor per device and, for each device, whether that
// tensor is a zero-copy view.
func flattenForScatter(tensorLists [][]tensor.Tensor, other []tensor.Tensor, worldSize, rank int, noCopy bool, factory tensor.Factory) ([]tensor.Tensor, []bool, error) {
	numDevices := len(tensorLists)
	if len(other) != numDevices {
		return nil, nil, ncclerr.New(ncclerr.InvalidArgument, "other list length %d does not match device count %d", len(other), numDevices)
	}

	flat := make([]tensor.Tensor, numDevices)
	zeroCopy := make([]bool, numDevices)

	for d := 0; d < numDevices; d++ {
		list := tensorLists[d]
		if len(list) != worldSize {
			return nil, nil, ncclerr.New(ncclerr.InvalidArgument, "device %d tensor list has %d entries, expected world size %d", d, len(list), worldSize)
		}
		numel := other[d].NumElement()
		for j, t := range list {
			if t.NumElement() != numel {
				return nil, nil, ncclerr.New(ncclerr.InvalidArgument, "device %d entry %d has %d elements, expected %d", d, j, t.NumElement(), numel)
			}
			if t.Device() != other[d].Device() {
				return nil, nil, ncclerr.New(ncclerr.InvalidArgument, "device %d entry %d resides on device %d, expected %d", d, j, t.Device(), other[d].Device())
			}
		}

		if noCopy {
			if view, ok := aliasedFlatView(list, other[d], numel, rank); ok {
				flat[d] = view
				zeroCopy[d] = true
				continue
			}
		}

		flat[d] = factory.NewTensor(other[d].Device(), other[d].Dtype(), numel*int64(worldSize))
		zeroCopy[d] = false
	}

	return flat, zeroCopy, nil
}

// aliasedFlatView checks whether every tensor in list is a contiguous
// view into one shared storage at offset base+j*numel, and that other (if
// it aliases the same storage) sits at base+rank*numel. On success it
// returns the zero-copy [base, base+worldSize*numel) view.
func aliasedFlatView(list []tensor.Tensor, other tensor.Tensor, numel int64, rank int) (tensor.Tensor, bool) {
	if len(list) == 0 {
		return nil, false
	}
	storage := list[0].Storage()
	if storage == nil {
		return nil, false
	}
	base := list[0].StorageOffset()
	for j, t := range list {
		if !t.IsContiguous() || t.Storage() == nil || t.Storage().ID() != storage.ID() {
			return nil, false
		}
		if t.StorageOffset() != base+int64(j)*numel {
			return nil, false
		}
	}
	if other.Storage() != nil && other.Storage().ID() == storage.ID() {
		if other.StorageOffset() != base+int64(rank)*numel {
			return nil, false
		}
	}
	worldSize := int64(len(list))
	return storage.View(list[0].Dtype(), base, worldSize*numel), true
}

// copyListToFlat copies each device's per-peer tensor list into its flat
// buffer, in rank order — the reduce-scatter pre-hook's list→flat
// direction.
func copyListToFlat(tensorLists [][]tensor.Tensor, flat []tensor.Tensor, zeroCopy []bool) error {
	for d, list := range tensorLists {
		if zeroCopy[d] {
			continue
		}
		numel := list[0].NumElement()
		for j, t := range list {
			dst := flat[d].Storage().View(flat[d].Dtype(), int64(j)*numel, numel)
			if err := dst.CopyFrom(t); err != nil {
				return err
			}
		}
	}
	return nil
}

// copyFlatToList copies each device's flat buffer back out into its
// per-peer tensor list — the allgather post-hook's flat→list direction.
// Checks aliasing per element and continues past any entry that already
// aliases its target slot, rather than breaking out of the whole row on
// the first aliased entry.
func copyFlatToList(flat []tensor.Tensor, tensorLists [][]tensor.Tensor, zeroCopy []bool) error {
	for d, list := range tensorLists {
		if zeroCopy[d] {
			continue
		}
		numel := list[0].NumElement()
		flatStorage := flat[d].Storage()
		for j, t := range list {
			if t.Storage() != nil && flatStorage != nil && t.Storage().ID() == flatStorage.ID() && t.StorageOffset() == int64(j)*numel {
				continue
			}
			src := flatStorage.View(flat[d].Dtype(), int64(j)*numel, numel)
			if err := t.CopyFrom(src); err != nil {
				return err
			}
		}
	}
	return nil
}
