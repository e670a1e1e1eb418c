// Package autodiff implements automatic differentiation using the decorator pattern.
//
// AutodiffBackend wraps a tensor.Backend (CPU or GPU) and records every
// operation on a GradientTape while the tape is recording. Besides the
// Backend kernels it offers the gathers, reductions and the loss that the
// reading-comprehension model needs.
//
// Usage:
//
//	ad := autodiff.New(cpu.New())
//	ad.Tape().StartRecording()
//	loss := ad.CrossEntropy(logits, target)
//	grads := ad.Backward(loss)
//	ad.Tape().Clear()
package autodiff

import (
	"fmt"
	"math"

	"github.com/born-ml/mrcqa/internal/autodiff/ops"
	"github.com/born-ml/mrcqa/internal/backend/cpu"
	"github.com/born-ml/mrcqa/internal/tensor"
)

// AutodiffBackend wraps a Backend and adds automatic differentiation.
// It implements the tensor.Backend interface and records operations in a GradientTape.
//
//nolint:revive // AutodiffBackend mirrors the decorated Backend name.
type AutodiffBackend struct {
	inner tensor.Backend
	tape  *GradientTape
}

// New creates a new AutodiffBackend wrapping the given backend.
func New(backend tensor.Backend) *AutodiffBackend {
	return &AutodiffBackend{
		inner: backend,
		tape:  NewGradientTape(),
	}
}

// Tape returns the gradient tape for manual control.
func (b *AutodiffBackend) Tape() *GradientTape {
	return b.tape
}

// Inner returns the wrapped backend for direct access.
func (b *AutodiffBackend) Inner() tensor.Backend {
	return b.inner
}

// Name returns the backend name.
func (b *AutodiffBackend) Name() string {
	return "Autodiff(" + b.inner.Name() + ")"
}

// Device returns the compute device.
func (b *AutodiffBackend) Device() tensor.Device {
	return b.inner.Device()
}

// Backward seeds a one-element loss with gradient 1 and runs the tape.
func (b *AutodiffBackend) Backward(loss *tensor.RawTensor) map[*tensor.RawTensor]*tensor.RawTensor {
	seed := tensor.Full(loss.Shape(), 1, loss.Device())
	return b.tape.Backward(loss, seed, b.inner)
}

// MatMul performs matrix multiplication and records the operation.
func (b *AutodiffBackend) MatMul(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.MatMul(a, c)
	b.tape.Record(ops.NewMatMulOp(a, c, result))
	return result
}

// Add performs element-wise addition with 2D broadcasting and records the operation.
func (b *AutodiffBackend) Add(a, c *tensor.RawTensor) *tensor.RawTensor {
	mode := mustBroadcast("add", a, c)
	result := b.inner.Add(a, c)
	b.tape.Record(ops.NewAddOp(a, c, result, mode))
	return result
}

// Mul performs element-wise multiplication with 2D broadcasting and records the operation.
func (b *AutodiffBackend) Mul(a, c *tensor.RawTensor) *tensor.RawTensor {
	mode := mustBroadcast("mul", a, c)
	result := b.inner.Mul(a, c)
	b.tape.Record(ops.NewMulOp(a, c, result, mode))
	return result
}

// MulScalar multiplies by a constant and records the operation.
func (b *AutodiffBackend) MulScalar(x *tensor.RawTensor, s float32) *tensor.RawTensor {
	result := b.inner.MulScalar(x, s)
	b.tape.Record(ops.NewScaleOp(x, result, s))
	return result
}

// Transpose transposes a 2D tensor and records the operation.
func (b *AutodiffBackend) Transpose(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Transpose(x)
	b.tape.Record(ops.NewTransposeOp(x, result))
	return result
}

// Tanh applies tanh and records the operation.
func (b *AutodiffBackend) Tanh(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Tanh(x)
	b.tape.Record(ops.NewTanhOp(x, result))
	return result
}

// SoftmaxRows applies a row-wise softmax and records the operation.
func (b *AutodiffBackend) SoftmaxRows(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.SoftmaxRows(x)
	b.tape.Record(ops.NewSoftmaxRowsOp(x, result))
	return result
}

// MaxRows reduces each row to its maximum: [rows, cols] -> [rows, 1].
func (b *AutodiffBackend) MaxRows(x *tensor.RawTensor) *tensor.RawTensor {
	rows := x.Rows()
	result := tensor.Zeros(tensor.Shape{rows, 1}, b.Device())
	argmax := make([]int, rows)
	out := result.AsFloat32()

	for i := 0; i < rows; i++ {
		row := x.Row(i)
		best := 0
		for j, v := range row {
			if v > row[best] {
				best = j
			}
		}
		argmax[i] = best
		out[i] = row[best]
	}

	b.tape.Record(ops.NewMaxRowsOp(x, result, argmax))
	return result
}

// ConcatCols concatenates 2D tensors with equal row counts along columns.
func (b *AutodiffBackend) ConcatCols(xs ...*tensor.RawTensor) *tensor.RawTensor {
	if len(xs) == 0 {
		panic("concat: no inputs")
	}
	rows := xs[0].Rows()
	cols := 0
	for _, x := range xs {
		if x.Rows() != rows {
			panic(fmt.Sprintf("concat: row mismatch: %v vs %v", xs[0].Shape(), x.Shape()))
		}
		cols += x.Cols()
	}

	result := tensor.Zeros(tensor.Shape{rows, cols}, b.Device())
	for i := 0; i < rows; i++ {
		dst := result.Row(i)
		offset := 0
		for _, x := range xs {
			offset += copy(dst[offset:], x.Row(i))
		}
	}

	b.tape.Record(ops.NewConcatColsOp(xs, result))
	return result
}

// SelectRow returns row i of x as a [1, cols] tensor.
func (b *AutodiffBackend) SelectRow(x *tensor.RawTensor, i int) *tensor.RawTensor {
	if i < 0 || i >= x.Rows() {
		panic(fmt.Sprintf("select row: index %d out of range for %v", i, x.Shape()))
	}
	result, err := tensor.FromSlice(x.Row(i), tensor.Shape{1, x.Cols()}, b.Device())
	if err != nil {
		panic(err)
	}
	b.tape.Record(ops.NewSelectRowOp(x, result, i))
	return result
}

// Embedding gathers rows of weight: output[i] = weight[indices[i]].
func (b *AutodiffBackend) Embedding(weight *tensor.RawTensor, indices []int) *tensor.RawTensor {
	vocab := weight.Rows()
	result := tensor.Zeros(tensor.Shape{len(indices), weight.Cols()}, b.Device())
	for i, idx := range indices {
		if idx < 0 || idx >= vocab {
			panic(fmt.Sprintf("embedding: index %d out of range [0, %d)", idx, vocab))
		}
		copy(result.Row(i), weight.Row(idx))
	}
	b.tape.Record(ops.NewEmbeddingOp(weight, indices, result))
	return result
}

// EmbeddingMean averages the weight rows of every bag: output[k] = mean(weight[bags[k]]).
// Empty bags produce zero rows.
func (b *AutodiffBackend) EmbeddingMean(weight *tensor.RawTensor, bags [][]int) *tensor.RawTensor {
	vocab := weight.Rows()
	result := tensor.Zeros(tensor.Shape{len(bags), weight.Cols()}, b.Device())
	for k, bag := range bags {
		if len(bag) == 0 {
			continue
		}
		dst := result.Row(k)
		for _, idx := range bag {
			if idx < 0 || idx >= vocab {
				panic(fmt.Sprintf("embedding mean: index %d out of range [0, %d)", idx, vocab))
			}
			for j, v := range weight.Row(idx) {
				dst[j] += v
			}
		}
		inv := 1 / float32(len(bag))
		for j := range dst {
			dst[j] *= inv
		}
	}
	b.tape.Record(ops.NewEmbeddingMeanOp(weight, bags, result))
	return result
}

// CrossEntropy computes -log softmax(logits)[target] for logits of shape [1, n].
// The result has shape [1, 1].
func (b *AutodiffBackend) CrossEntropy(logits *tensor.RawTensor, target int) *tensor.RawTensor {
	if logits.Rows() != 1 {
		panic(fmt.Sprintf("cross entropy: expected [1, n] logits, got %v", logits.Shape()))
	}
	n := logits.Cols()
	if target < 0 || target >= n {
		panic(fmt.Sprintf("cross entropy: target %d out of range [0, %d)", target, n))
	}

	probs := tensor.Zeros(logits.Shape(), b.Device())
	cpu.SoftmaxInto(probs.AsFloat32(), logits.AsFloat32())

	// log-sum-exp for the loss itself, so tiny probabilities do not underflow to log(0).
	row := logits.AsFloat32()
	maxVal := row[0]
	for _, v := range row {
		maxVal = max(maxVal, v)
	}
	var sum float64
	for _, v := range row {
		sum += math.Exp(float64(v - maxVal))
	}
	loss := float64(maxVal) + math.Log(sum) - float64(row[target])

	result := tensor.Full(tensor.Shape{1, 1}, float32(loss), b.Device())
	b.tape.Record(ops.NewCrossEntropyOp(logits, probs, target, result))
	return result
}

func mustBroadcast(name string, a, c *tensor.RawTensor) tensor.Broadcast2D {
	mode, err := tensor.Broadcast2DOf(a.Shape(), c.Shape())
	if err != nil {
		panic(name + ": " + err.Error())
	}
	return mode
}
