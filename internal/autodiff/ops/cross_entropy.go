package ops

import "github.com/born-ml/mrcqa/internal/tensor"

// CrossEntropyOp represents the cross-entropy loss of a single row of logits
// against one target class.
//
// Forward:
//
//	Loss = -log_softmax(logits)[target]
//
// Backward:
//
//	∂L/∂logits = (softmax(logits) - y_one_hot) * outputGrad
//
// Assumptions:
//   - Logits shape: [1, num_classes]
//   - Output: [1, 1]
type CrossEntropyOp struct {
	logits *tensor.RawTensor
	probs  *tensor.RawTensor // softmax(logits), saved from the forward pass
	target int
	output *tensor.RawTensor
}

// NewCrossEntropyOp creates a new cross-entropy operation.
func NewCrossEntropyOp(logits, probs *tensor.RawTensor, target int, output *tensor.RawTensor) *CrossEntropyOp {
	return &CrossEntropyOp{
		logits: logits,
		probs:  probs,
		target: target,
		output: output,
	}
}

// Inputs returns the input tensors.
func (op *CrossEntropyOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.logits}
}

// Output returns the output tensor.
func (op *CrossEntropyOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward computes the gradient with respect to logits.
func (op *CrossEntropyOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	g := outputGrad.Item()
	grad := op.probs.Clone()
	data := grad.AsFloat32()
	data[op.target]--
	for i := range data {
		data[i] *= g
	}
	return []*tensor.RawTensor{grad}
}
