package ncclpg

import (
	"github.com/gocollective/ncclpg/ncclerr"
	"github.com/gocollective/ncclpg/tensor"
)

// The following operations are explicitly unsupported by this process
// group. Work.Abort is unsupported too; see workhandle.go.

func (pg *ProcessGroup) AllreduceCoalesced(tensors []tensor.Tensor, opts AllreduceOptions) (*Work, error) {
	return nil, ncclerr.New(ncclerr.Unsupported, "allreduceCoalesced is not supported")
}

func (pg *ProcessGroup) AllgatherCoalesced(inputs []tensor.Tensor, outputLists [][]tensor.Tensor, opts AllgatherOptions) (*Work, error) {
	return nil, ncclerr.New(ncclerr.Unsupported, "allgatherCoalesced is not supported")
}

func (pg *ProcessGroup) AllgatherBase(output, input tensor.Tensor, opts AllgatherOptions) (*Work, error) {
	return nil, ncclerr.New(ncclerr.Unsupported, "allgatherBase is not supported")
}

func (pg *ProcessGroup) Gather(inputs []tensor.Tensor, outputLists [][]tensor.Tensor, rootRank int) (*Work, error) {
	return nil, ncclerr.New(ncclerr.Unsupported, "gather is not supported")
}

func (pg *ProcessGroup) Scatter(outputs []tensor.Tensor, inputLists [][]tensor.Tensor, rootRank int) (*Work, error) {
	return nil, ncclerr.New(ncclerr.Unsupported, "scatter is not supported")
}

func (pg *ProcessGroup) Send(tensors []tensor.Tensor, dstRank int) (*Work, error) {
	return nil, ncclerr.New(ncclerr.Unsupported, "send is not supported")
}

func (pg *ProcessGroup) Recv(tensors []tensor.Tensor, srcRank int) (*Work, error) {
	return nil, ncclerr.New(ncclerr.Unsupported, "recv is not supported")
}

func (pg *ProcessGroup) RecvAnysource(tensors []tensor.Tensor) (*Work, error) {
	return nil, ncclerr.New(ncclerr.Unsupported, "recvAnysource is not supported")
}
