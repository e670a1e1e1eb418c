package autodiff_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/born-ml/mrcqa/internal/autodiff"
	"github.com/born-ml/mrcqa/internal/backend/cpu"
	"github.com/born-ml/mrcqa/internal/tensor"
)

type gradParams struct {
	w, e, v, c *tensor.RawTensor
}

// compositeLoss chains every smooth operation the engine offers so that one
// finite-difference check covers all backward rules, including gradient
// accumulation through the shared embedding matrix.
func compositeLoss(b *autodiff.AutodiffBackend, p gradParams) *tensor.RawTensor {
	x := b.EmbeddingMean(p.e, [][]int{{0, 1}, {2}, {}, {3, 4, 1}}) // [4,3]
	e := b.Embedding(p.e, []int{1, 1, 4})                           // [3,3]

	h := b.Tanh(b.MatMul(x, p.w)) // [4,4]
	h = b.Add(h, p.v)             // row broadcast
	s := b.MatMul(x, p.c)         // [4,1]
	h = b.Mul(h, s)               // col broadcast

	a := b.SoftmaxRows(h)
	m := b.MatMul(b.Transpose(a), b.ConcatCols(x, s)) // [4,4]

	r := b.SelectRow(m, 2)
	r2 := b.Add(r, b.MatMul(b.SelectRow(e, 0), p.w))

	loss := b.Add(b.CrossEntropy(r2, 1), b.CrossEntropy(b.MulScalar(r, 2), 3))
	return b.MulScalar(loss, 0.5)
}

func TestGradientCheck_Composite(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	p := gradParams{
		w: tensor.Randn(tensor.Shape{3, 4}, 0.5, rng, tensor.CPU),
		e: tensor.Randn(tensor.Shape{5, 3}, 0.5, rng, tensor.CPU),
		v: tensor.Randn(tensor.Shape{1, 4}, 0.5, rng, tensor.CPU),
		c: tensor.Randn(tensor.Shape{3, 1}, 0.5, rng, tensor.CPU),
	}

	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()
	loss := compositeLoss(backend, p)
	grads := backend.Backward(loss)
	backend.Tape().StopRecording()
	backend.Tape().Clear()

	const eps = 1e-2
	for name, param := range map[string]*tensor.RawTensor{"w": p.w, "e": p.e, "v": p.v, "c": p.c} {
		grad, ok := grads[param]
		if !ok {
			t.Fatalf("no gradient for %s", name)
		}

		data := param.AsFloat32()
		for i := range data {
			orig := data[i]

			data[i] = orig + eps
			plus := float64(compositeLoss(backend, p).Item())
			data[i] = orig - eps
			minus := float64(compositeLoss(backend, p).Item())
			data[i] = orig

			numerical := (plus - minus) / (2 * eps)
			analytic := float64(grad.AsFloat32()[i])
			if diff := math.Abs(numerical - analytic); diff > 5e-3+5e-2*math.Abs(numerical) {
				t.Errorf("%s[%d]: analytic %.6f, numerical %.6f", name, i, analytic, numerical)
			}
		}
	}

	if backend.Tape().NumOps() != 0 {
		t.Errorf("forward passes with recording off should not grow the tape")
	}
}
