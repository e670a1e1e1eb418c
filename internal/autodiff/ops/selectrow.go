package ops

import "github.com/born-ml/mrcqa/internal/tensor"

// SelectRowOp represents picking one row: [rows, cols] -> [1, cols].
type SelectRowOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
	index  int
}

// NewSelectRowOp creates a new SelectRowOp.
func NewSelectRowOp(input, output *tensor.RawTensor, index int) *SelectRowOp {
	return &SelectRowOp{input: input, output: output, index: index}
}

// Backward places the output gradient in the selected row.
func (op *SelectRowOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	inputGrad := tensor.Zeros(op.input.Shape(), outputGrad.Device())
	copy(inputGrad.Row(op.index), outputGrad.AsFloat32())
	return []*tensor.RawTensor{inputGrad}
}

// Inputs returns the input tensors.
func (op *SelectRowOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *SelectRowOp) Output() *tensor.RawTensor {
	return op.output
}
