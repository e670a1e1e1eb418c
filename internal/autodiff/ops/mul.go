package ops

import "github.com/born-ml/mrcqa/internal/tensor"

// MulOp represents element-wise multiplication: output = a * b.
//
// Backward pass:
//   - d(a*b)/da = outputGrad * b (b broadcast as in the forward pass)
//   - d(a*b)/db = reduce(outputGrad * a)
type MulOp struct {
	inputs []*tensor.RawTensor // [a, b]
	output *tensor.RawTensor
	mode   tensor.Broadcast2D
}

// NewMulOp creates a new MulOp.
func NewMulOp(a, b, output *tensor.RawTensor, mode tensor.Broadcast2D) *MulOp {
	return &MulOp{
		inputs: []*tensor.RawTensor{a, b},
		output: output,
		mode:   mode,
	}
}

// Backward computes input gradients for multiplication.
func (op *MulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]

	gradA := backend.Mul(outputGrad, b)
	gradB := reduceBroadcast(backend.Mul(outputGrad, a), op.mode)

	return []*tensor.RawTensor{gradA, gradB}
}

// Inputs returns the input tensors [a, b].
func (op *MulOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the output tensor a * b.
func (op *MulOp) Output() *tensor.RawTensor {
	return op.output
}
