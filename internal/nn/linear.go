package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/mrcqa/internal/autodiff"
	"github.com/born-ml/mrcqa/internal/tensor"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W + b
// where:
//   - x is the input tensor with shape [rows, in_features]
//   - W is the weight matrix with shape [in_features, out_features]
//   - b is the bias row with shape [1, out_features], broadcast over rows
//
// The weight is stored input-major so the forward pass needs no transpose.
// Weights are initialized using Xavier/Glorot initialization, biases to zeros.
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter
	bias        *Parameter
}

// NewLinear creates a new Linear layer whose parameters are named
// "<name>.weight" and "<name>.bias".
func NewLinear(name string, inFeatures, outFeatures int, rng *rand.Rand) *Linear {
	weight := Xavier(inFeatures, outFeatures, tensor.Shape{inFeatures, outFeatures}, rng)
	bias := Zeros(tensor.Shape{1, outFeatures})

	return &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter(name+".weight", weight),
		bias:        NewParameter(name+".bias", bias),
	}
}

// Forward computes x @ W + b.
func (l *Linear) Forward(b *autodiff.AutodiffBackend, input *tensor.RawTensor) *tensor.RawTensor {
	if input.Cols() != l.inFeatures {
		panic(fmt.Sprintf("linear: expected %d input features, got shape %v", l.inFeatures, input.Shape()))
	}
	return b.Add(b.MatMul(input, l.weight.Tensor()), l.bias.Tensor())
}

// InFeatures returns the number of input features.
func (l *Linear) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear) OutFeatures() int {
	return l.outFeatures
}

// Weight returns the weight parameter.
func (l *Linear) Weight() *Parameter {
	return l.weight
}

// Bias returns the bias parameter.
func (l *Linear) Bias() *Parameter {
	return l.bias
}

// Parameters returns [weight, bias].
func (l *Linear) Parameters() []*Parameter {
	return []*Parameter{l.weight, l.bias}
}
