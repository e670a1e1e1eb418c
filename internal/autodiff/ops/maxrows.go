package ops

import "github.com/born-ml/mrcqa/internal/tensor"

// MaxRowsOp represents a row-wise max: [rows, cols] -> [rows, 1].
// The gradient of each row flows only to the position of its maximum.
type MaxRowsOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
	argmax []int
}

// NewMaxRowsOp creates a new MaxRowsOp. argmax[i] is the column that won row i.
func NewMaxRowsOp(input, output *tensor.RawTensor, argmax []int) *MaxRowsOp {
	return &MaxRowsOp{input: input, output: output, argmax: argmax}
}

// Backward computes the input gradient.
func (op *MaxRowsOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	inputGrad := tensor.Zeros(op.input.Shape(), outputGrad.Device())
	g := outputGrad.AsFloat32()
	for i, j := range op.argmax {
		inputGrad.Row(i)[j] = g[i]
	}
	return []*tensor.RawTensor{inputGrad}
}

// Inputs returns the input tensors.
func (op *MaxRowsOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *MaxRowsOp) Output() *tensor.RawTensor {
	return op.output
}
