package nn

import "github.com/born-ml/mrcqa/internal/tensor"

// Parameter represents a trainable parameter in a neural network.
//
// The name is the key under which the tensor is checkpointed, so it must be
// unique within a model (e.g. "encoder.weight").
type Parameter struct {
	name   string
	tensor *tensor.RawTensor
	grad   *tensor.RawTensor // computed during backward pass
}

// NewParameter creates a new trainable parameter.
func NewParameter(name string, t *tensor.RawTensor) *Parameter {
	return &Parameter{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.RawTensor {
	return p.tensor
}

// Grad returns the gradient tensor, or nil before the first backward pass.
func (p *Parameter) Grad() *tensor.RawTensor {
	return p.grad
}

// SetGrad sets the gradient tensor.
func (p *Parameter) SetGrad(grad *tensor.RawTensor) {
	p.grad = grad
}

// ZeroGrad clears the gradient tensor.
func (p *Parameter) ZeroGrad() {
	p.grad = nil
}
