package ops

import "github.com/born-ml/mrcqa/internal/tensor"

// AddOp represents element-wise addition: output = a + b.
//
// b may be broadcast along rows or columns; its gradient is the output
// gradient summed over the broadcast axis.
type AddOp struct {
	inputs []*tensor.RawTensor // [a, b]
	output *tensor.RawTensor
	mode   tensor.Broadcast2D
}

// NewAddOp creates a new AddOp.
func NewAddOp(a, b, output *tensor.RawTensor, mode tensor.Broadcast2D) *AddOp {
	return &AddOp{
		inputs: []*tensor.RawTensor{a, b},
		output: output,
		mode:   mode,
	}
}

// Backward computes input gradients for addition.
func (op *AddOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{outputGrad, reduceBroadcast(outputGrad, op.mode)}
}

// Inputs returns the input tensors [a, b].
func (op *AddOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the output tensor a + b.
func (op *AddOp) Output() *tensor.RawTensor {
	return op.output
}
