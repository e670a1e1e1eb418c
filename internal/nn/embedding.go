package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/mrcqa/internal/autodiff"
	"github.com/born-ml/mrcqa/internal/tensor"
)

// Embedding is a lookup table that maps discrete indices to dense vectors.
//
// Architecture:
//   - Weight: [NumEmbed, EmbedDim] learnable parameter
//   - Forward: ids [n] -> embeddings [n, EmbedDim]
//   - ForwardMean: bags of ids [n][*] -> mean embeddings [n, EmbedDim]
//   - Backward: gradients scatter-add to weight rows
type Embedding struct {
	Weight   *Parameter
	NumEmbed int
	EmbedDim int
}

// NewEmbedding creates a new Embedding layer with weights drawn from N(0, 1).
// For pre-trained or injected vectors use NewEmbeddingWithWeight.
func NewEmbedding(name string, numEmbeddings, embeddingDim int, rng *rand.Rand) *Embedding {
	weight := tensor.Randn(tensor.Shape{numEmbeddings, embeddingDim}, 1, rng, tensor.CPU)
	return NewEmbeddingWithWeight(name, weight)
}

// NewEmbeddingWithWeight creates an Embedding layer with pre-initialized weights.
func NewEmbeddingWithWeight(name string, weight *tensor.RawTensor) *Embedding {
	shape := weight.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("embedding weight must be 2D, got shape %v", shape))
	}
	return &Embedding{
		Weight:   NewParameter(name+".weight", weight),
		NumEmbed: shape[0],
		EmbedDim: shape[1],
	}
}

// Forward looks up one row per id.
func (e *Embedding) Forward(b *autodiff.AutodiffBackend, ids []int) *tensor.RawTensor {
	return b.Embedding(e.Weight.Tensor(), ids)
}

// ForwardMean averages the rows of every bag. Empty bags give zero rows.
func (e *Embedding) ForwardMean(b *autodiff.AutodiffBackend, bags [][]int) *tensor.RawTensor {
	return b.EmbeddingMean(e.Weight.Tensor(), bags)
}

// Parameters returns the weight parameter.
func (e *Embedding) Parameters() []*Parameter {
	return []*Parameter{e.Weight}
}
