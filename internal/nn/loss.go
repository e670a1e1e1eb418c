package nn

import (
	"github.com/born-ml/mrcqa/internal/autodiff"
	"github.com/born-ml/mrcqa/internal/tensor"
)

// SpanLoss is the pointer loss of one example: the cross-entropy of the start
// distribution against the gold start plus that of the end distribution
// against the gold end. Both logits have shape [1, passageLen].
func SpanLoss(b *autodiff.AutodiffBackend, startLogits, endLogits *tensor.RawTensor, start, end int) *tensor.RawTensor {
	return b.Add(b.CrossEntropy(startLogits, start), b.CrossEntropy(endLogits, end))
}

// MeanLoss averages per-example losses into one [1, 1] tensor.
func MeanLoss(b *autodiff.AutodiffBackend, losses []*tensor.RawTensor) *tensor.RawTensor {
	if len(losses) == 0 {
		panic("mean loss: no losses")
	}
	total := losses[0]
	for _, l := range losses[1:] {
		total = b.Add(total, l)
	}
	return b.MulScalar(total, 1/float32(len(losses)))
}
