// Package ops defines the differentiable operations recorded on the gradient tape.
//
// Each operation keeps references to its inputs and output from the forward
// pass and maps an output gradient to one gradient per input:
//   - AddOp, MulOp: element-wise with 2D broadcasting of the right operand
//   - ScaleOp: multiplication by a constant
//   - MatMulOp: d(A@B)/dA = grad@B^T, d(A@B)/dB = A^T@grad
//   - TanhOp, SoftmaxRowsOp: activations
//   - TransposeOp, ConcatColsOp, SelectRowOp, MaxRowsOp: layout and reduction
//   - EmbeddingOp, EmbeddingMeanOp: row gathers with scatter-add backward
//   - CrossEntropyOp: fused log-softmax and negative log-likelihood
package ops

import "github.com/born-ml/mrcqa/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// Returns a slice of gradients corresponding to each input tensor;
	// a nil entry means no gradient flows to that input.
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}

// ScatterOperation is an Operation whose gradient reaches only some rows of
// its single input. The tape adds it straight into one accumulator per input
// instead of materializing a dense gradient for every call.
type ScatterOperation interface {
	Operation

	// AccumulateGrad adds the input gradient for outputGrad into dst, which
	// has the shape of the input.
	AccumulateGrad(outputGrad, dst *tensor.RawTensor)
}
