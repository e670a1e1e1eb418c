package ops

import "github.com/born-ml/mrcqa/internal/tensor"

// SoftmaxRowsOp represents a row-wise softmax.
//
// Backward, per row with y = softmax(x):
//
//	∂L/∂x_i = y_i * (g_i - Σ_j g_j y_j)
type SoftmaxRowsOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewSoftmaxRowsOp creates a new SoftmaxRowsOp.
func NewSoftmaxRowsOp(input, output *tensor.RawTensor) *SoftmaxRowsOp {
	return &SoftmaxRowsOp{input: input, output: output}
}

// Backward computes the input gradient.
func (op *SoftmaxRowsOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	inputGrad := tensor.Zeros(op.input.Shape(), outputGrad.Device())

	for i := 0; i < op.output.Rows(); i++ {
		y, g, dst := op.output.Row(i), outputGrad.Row(i), inputGrad.Row(i)

		var dot float32
		for j := range y {
			dot += g[j] * y[j]
		}
		for j := range y {
			dst[j] = y[j] * (g[j] - dot)
		}
	}
	return []*tensor.RawTensor{inputGrad}
}

// Inputs returns the input tensors.
func (op *SoftmaxRowsOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *SoftmaxRowsOp) Output() *tensor.RawTensor {
	return op.output
}
