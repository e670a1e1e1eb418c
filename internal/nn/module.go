// Package nn implements the neural network building blocks used by the
// reading-comprehension model.
//
// This package provides:
//   - Module interface: anything that owns trainable parameters
//   - Parameter: a named tensor with its gradient
//   - Linear: fully connected layer
//   - Embedding: lookup tables, single-row and mean-of-bag
//   - SpanLoss: start and end pointer cross-entropy
//
// Forward passes take the *autodiff.AutodiffBackend explicitly so that every
// operation lands on the training tape.
package nn

import "github.com/born-ml/mrcqa/internal/tensor"

// Module is the base interface for all neural network components.
type Module interface {
	// Parameters returns all trainable parameters of this module,
	// including those of nested modules.
	Parameters() []*Parameter
}

// CollectGrads copies gradients from a Backward result onto the parameters.
// Parameters that did not take part in the forward pass get a nil gradient.
func CollectGrads(params []*Parameter, grads map[*tensor.RawTensor]*tensor.RawTensor) {
	for _, p := range params {
		p.SetGrad(grads[p.Tensor()])
	}
}
