package ops

import "github.com/born-ml/mrcqa/internal/tensor"

// ConcatColsOp represents concatenation along the column axis.
//
// Forward: [rows, c0] ++ [rows, c1] ++ ... -> [rows, c0+c1+...]
// Backward: the output gradient is split back into column blocks.
type ConcatColsOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

// NewConcatColsOp creates a new ConcatColsOp.
func NewConcatColsOp(inputs []*tensor.RawTensor, output *tensor.RawTensor) *ConcatColsOp {
	return &ConcatColsOp{inputs: inputs, output: output}
}

// Backward splits the output gradient into one block per input.
func (op *ConcatColsOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	grads := make([]*tensor.RawTensor, len(op.inputs))
	rows := outputGrad.Rows()

	offset := 0
	for k, in := range op.inputs {
		width := in.Cols()
		grad := tensor.Zeros(in.Shape(), outputGrad.Device())
		for i := 0; i < rows; i++ {
			copy(grad.Row(i), outputGrad.Row(i)[offset:offset+width])
		}
		grads[k] = grad
		offset += width
	}
	return grads
}

// Inputs returns the input tensors.
func (op *ConcatColsOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the output tensor.
func (op *ConcatColsOp) Output() *tensor.RawTensor {
	return op.output
}
