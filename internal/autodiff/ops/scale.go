package ops

import "github.com/born-ml/mrcqa/internal/tensor"

// ScaleOp represents multiplication by a constant: output = s * x.
type ScaleOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
	factor float32
}

// NewScaleOp creates a new ScaleOp.
func NewScaleOp(input, output *tensor.RawTensor, factor float32) *ScaleOp {
	return &ScaleOp{input: input, output: output, factor: factor}
}

// Backward returns s * outputGrad.
func (op *ScaleOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MulScalar(outputGrad, op.factor)}
}

// Inputs returns the input tensors.
func (op *ScaleOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *ScaleOp) Output() *tensor.RawTensor {
	return op.output
}
