package ncclpg

import (
	"github.com/gocollective/ncclpg/collective"
	"github.com/gocollective/ncclpg/device"
	"github.com/gocollective/ncclpg/ncclerr"
	"github.com/gocollective/ncclpg/tensor"
)

// AllreduceOptions recognizes reduceOp.
type AllreduceOptions struct {
	ReduceOp collective.ReduceOp
}

// BroadcastOptions recognizes rootRank/rootTensor.
type BroadcastOptions struct {
	RootRank   int
	RootTensor int
}

// ReduceOptions recognizes reduceOp and rootRank/rootTensor.
type ReduceOptions struct {
	ReduceOp   collective.ReduceOp
	RootRank   int
	RootTensor int
}

// AllgatherOptions recognizes noCopy.
type AllgatherOptions struct {
	NoCopy bool
}

// ReduceScatterOptions recognizes reduceOp and noCopy.
type ReduceScatterOptions struct {
	ReduceOp collective.ReduceOp
	NoCopy   bool
}

// AllToAllOptions recognizes no fields.
type AllToAllOptions struct{}

// root computes the backend world-rank a rootRank/rootTensor pair refers
// to: rootRank*numTensorsPerRank + rootTensor.
func root(rootRank, rootTensor, numTensorsPerRank int) int {
	return rootRank*numTensorsPerRank + rootTensor
}

func isValidReduceOp(op collective.ReduceOp) bool {
	switch op {
	case collective.Min, collective.Max, collective.Sum, collective.Product:
		return true
	default:
		return false
	}
}

// Allreduce reduces tensors across every rank, dispatched in place
// (inputs and outputs are the same tensor list).
func (pg *ProcessGroup) Allreduce(tensors []tensor.Tensor, opts AllreduceOptions) (*Work, error) {
	if err := validateStandard(tensors, pg.numDevices); err != nil {
		return nil, err
	}
	if !isValidReduceOp(opts.ReduceOp) {
		return nil, ncclerr.New(ncclerr.InvalidArgument, "unrecognized reduce op %v", opts.ReduceOp)
	}
	return pg.dispatch(tensors, tensors, func(in, out tensor.Tensor, comm collective.Communicator, s device.Stream) error {
		return pg.backend.AllReduce(in, out, opts.ReduceOp, comm, s)
	}, nil, nil)
}

// Broadcast sends the root's tensors to every other rank.
func (pg *ProcessGroup) Broadcast(tensors []tensor.Tensor, opts BroadcastOptions) (*Work, error) {
	if err := validateStandard(tensors, pg.numDevices); err != nil {
		return nil, err
	}
	r := root(opts.RootRank, opts.RootTensor, len(tensors))
	return pg.dispatch(tensors, tensors, func(in, out tensor.Tensor, comm collective.Communicator, s device.Stream) error {
		return pg.backend.Broadcast(in, out, r, comm, s)
	}, nil, nil)
}

// Reduce reduces tensors across every rank, landing the result on root.
func (pg *ProcessGroup) Reduce(tensors []tensor.Tensor, opts ReduceOptions) (*Work, error) {
	if err := validateStandard(tensors, pg.numDevices); err != nil {
		return nil, err
	}
	if !isValidReduceOp(opts.ReduceOp) {
		return nil, ncclerr.New(ncclerr.InvalidArgument, "unrecognized reduce op %v", opts.ReduceOp)
	}
	r := root(opts.RootRank, opts.RootTensor, len(tensors))
	return pg.dispatch(tensors, tensors, func(in, out tensor.Tensor, comm collective.Communicator, s device.Stream) error {
		return pg.backend.Reduce(in, out, opts.ReduceOp, r, comm, s)
	}, nil, nil)
}

// Allgather collects every rank's contribution: inputs[d] is this rank's
// contribution on device d, outputLists[d] is the per-device list of
// worldSize received tensors.
func (pg *ProcessGroup) Allgather(inputs []tensor.Tensor, outputLists [][]tensor.Tensor, opts AllgatherOptions) (*Work, error) {
	if err := validateStandard(inputs, pg.numDevices); err != nil {
		return nil, err
	}
	if len(outputLists) != len(inputs) {
		return nil, ncclerr.New(ncclerr.InvalidArgument, "output list count %d does not match input count %d", len(outputLists), len(inputs))
	}
	worldSize := pg.size * pg.numDevices

	flat, zeroCopy, err := flattenForScatter(outputLists, inputs, worldSize, pg.rank, opts.NoCopy, pg.factory)
	if err != nil {
		return nil, err
	}

	post := func(streams []device.Stream) error {
		return copyFlatToList(flat, outputLists, zeroCopy)
	}

	return pg.dispatch(inputs, flat, func(in, out tensor.Tensor, comm collective.Communicator, s device.Stream) error {
		return pg.backend.AllGather(in, out, comm, s)
	}, nil, post)
}

// ReduceScatter reduces across ranks and scatters the shares: inputLists[d]
// is the per-device list of worldSize tensors to reduce, outputs[d] is
// this rank's reduced share on device d.
func (pg *ProcessGroup) ReduceScatter(inputLists [][]tensor.Tensor, outputs []tensor.Tensor, opts ReduceScatterOptions) (*Work, error) {
	if err := validateStandard(outputs, pg.numDevices); err != nil {
		return nil, err
	}
	if !isValidReduceOp(opts.ReduceOp) {
		return nil, ncclerr.New(ncclerr.InvalidArgument, "unrecognized reduce op %v", opts.ReduceOp)
	}
	if len(inputLists) != len(outputs) {
		return nil, ncclerr.New(ncclerr.InvalidArgument, "input list count %d does not match output count %d", len(inputLists), len(outputs))
	}
	worldSize := pg.size * pg.numDevices

	flat, zeroCopy, err := flattenForScatter(inputLists, outputs, worldSize, pg.rank, opts.NoCopy, pg.factory)
	if err != nil {
		return nil, err
	}

	pre := func(streams []device.Stream) error {
		return copyListToFlat(inputLists, flat, zeroCopy)
	}

	return pg.dispatch(flat, outputs, func(in, out tensor.Tensor, comm collective.Communicator, s device.Stream) error {
		return pg.backend.ReduceScatter(in, out, opts.ReduceOp, comm, s)
	}, pre, nil)
}

// AllToAllBase splits a single input and output buffer into groupSize
// contiguous chunks, either evenly or per outputSplitSizes/inputSplitSizes,
// and transposes them across ranks.
func (pg *ProcessGroup) AllToAllBase(output, input tensor.Tensor, outputSplitSizes, inputSplitSizes []int64, opts AllToAllOptions) (*Work, error) {
	groupSize := pg.size * pg.numDevices
	if err := checkSplitSizes(inputSplitSizes, input, groupSize); err != nil {
		return nil, err
	}
	if err := checkSplitSizes(outputSplitSizes, output, groupSize); err != nil {
		return nil, err
	}

	sendPtrs, sendLengths, err := splitStorageViews(input, inputSplitSizes, groupSize)
	if err != nil {
		return nil, err
	}
	recvPtrs, recvLengths, err := splitStorageViews(output, outputSplitSizes, groupSize)
	if err != nil {
		return nil, err
	}

	return pg.dispatchAllToAll(input, []tensor.Tensor{output}, sendPtrs, recvPtrs, sendLengths, recvLengths)
}

// AllToAll transposes arbitrary, independently sized per-peer tensors
// across ranks, rather than a single split buffer.
func (pg *ProcessGroup) AllToAll(outputs, inputs []tensor.Tensor, opts AllToAllOptions) (*Work, error) {
	// The per-peer list is indexed by peer rank, not local device, so its
	// own length (the group's world size) is the only meaningful cap —
	// peers legitimately share one local GPU, which is exactly why
	// validateAllToAllV waives the distinct-device check too.
	if err := validateAllToAllV(inputs, len(inputs)); err != nil {
		return nil, err
	}
	if err := validateAllToAllV(outputs, len(outputs)); err != nil {
		return nil, err
	}
	groupSize := pg.size * pg.numDevices
	if len(inputs) != groupSize || len(outputs) != groupSize {
		return nil, ncclerr.New(ncclerr.InvalidArgument, "alltoall requires exactly %d peer tensors, got %d in / %d out", groupSize, len(inputs), len(outputs))
	}

	sendLengths := make([]int64, groupSize)
	recvLengths := make([]int64, groupSize)
	for i := range inputs {
		sendLengths[i] = inputs[i].NumElement()
		recvLengths[i] = outputs[i].NumElement()
	}

	return pg.dispatchAllToAll(inputs[0], outputs, inputs, outputs, sendLengths, recvLengths)
}

// splitStorageViews computes, for a single contiguous buffer t split
// along dim 0 according to splits (or evenly if splits is empty), a
// zero-copy per-peer view and its element count.
func splitStorageViews(t tensor.Tensor, splits []int64, groupSize int) ([]tensor.Tensor, []int64, error) {
	shape := t.Shape()
	dim0 := int64(0)
	if len(shape) > 0 {
		dim0 = shape[0]
	}
	rowSize := int64(1)
	if dim0 > 0 {
		rowSize = t.NumElement() / dim0
	}

	rows := splits
	if len(rows) == 0 {
		rows = make([]int64, groupSize)
		per := dim0 / int64(groupSize)
		for i := range rows {
			rows[i] = per
		}
	}

	storage := t.Storage()
	ptrs := make([]tensor.Tensor, groupSize)
	lengths := make([]int64, groupSize)
	offset := t.StorageOffset()
	for i := 0; i < groupSize; i++ {
		numel := rows[i] * rowSize
		ptrs[i] = storage.View(t.Dtype(), offset, numel)
		lengths[i] = numel
		offset += numel
	}
	return ptrs, lengths, nil
}
