package ops

import "github.com/born-ml/mrcqa/internal/tensor"

// EmbeddingOp represents an embedding lookup operation.
//
// Forward: output[i] = weight[indices[i]]
//
// Backward:
//
//	For each index i, accumulate grad_output[i] to grad_weight[indices[i]]
//	This is a scatter-add operation where gradients for the same index are summed.
//
// Example:
//
//	indices = [0, 1, 0]  // index 0 appears twice
//	grad_output = [[1,2], [3,4], [5,6]]
//	grad_weight[0] = [1,2] + [5,6] = [6,8]
//	grad_weight[1] = [3,4]
type EmbeddingOp struct {
	weight  *tensor.RawTensor // [numEmbeddings, embeddingDim]
	indices []int
	output  *tensor.RawTensor // [len(indices), embeddingDim]
}

// NewEmbeddingOp creates a new embedding operation.
func NewEmbeddingOp(weight *tensor.RawTensor, indices []int, output *tensor.RawTensor) *EmbeddingOp {
	return &EmbeddingOp{
		weight:  weight,
		indices: indices,
		output:  output,
	}
}

// Inputs returns the input tensors.
// Only weight needs gradient; indices are plain ints.
func (op *EmbeddingOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.weight}
}

// Output returns the output tensor.
func (op *EmbeddingOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward computes gradients for the embedding weights.
func (op *EmbeddingOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	gradWeight := tensor.Zeros(op.weight.Shape(), outputGrad.Device())
	op.AccumulateGrad(outputGrad, gradWeight)
	return []*tensor.RawTensor{gradWeight}
}

// AccumulateGrad scatter-adds outputGrad into the looked-up rows of dst.
func (op *EmbeddingOp) AccumulateGrad(outputGrad, dst *tensor.RawTensor) {
	for i, idx := range op.indices {
		row := dst.Row(idx)
		for j, v := range outputGrad.Row(i) {
			row[j] += v
		}
	}
}

// EmbeddingMeanOp represents a bag-of-rows lookup: output[b] is the mean of
// weight[bags[b][k]] over k. An empty bag yields a zero row and receives no
// gradient.
type EmbeddingMeanOp struct {
	weight *tensor.RawTensor
	bags   [][]int
	output *tensor.RawTensor // [len(bags), embeddingDim]
}

// NewEmbeddingMeanOp creates a new EmbeddingMeanOp.
func NewEmbeddingMeanOp(weight *tensor.RawTensor, bags [][]int, output *tensor.RawTensor) *EmbeddingMeanOp {
	return &EmbeddingMeanOp{weight: weight, bags: bags, output: output}
}

// Inputs returns the input tensors.
func (op *EmbeddingMeanOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.weight}
}

// Output returns the output tensor.
func (op *EmbeddingMeanOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward scatters each bag's gradient, divided by the bag size, to its rows.
func (op *EmbeddingMeanOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	gradWeight := tensor.Zeros(op.weight.Shape(), outputGrad.Device())
	op.AccumulateGrad(outputGrad, gradWeight)
	return []*tensor.RawTensor{gradWeight}
}

// AccumulateGrad adds each bag's share of outputGrad into the rows of dst.
func (op *EmbeddingMeanOp) AccumulateGrad(outputGrad, dst *tensor.RawTensor) {
	for b, bag := range op.bags {
		if len(bag) == 0 {
			continue
		}
		inv := 1 / float32(len(bag))
		g := outputGrad.Row(b)
		for _, idx := range bag {
			row := dst.Row(idx)
			for j, v := range g {
				row[j] += v * inv
			}
		}
	}
}
