package cpu

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/mrcqa/internal/tensor"
)

func mustTensor(t *testing.T, data []float32, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.FromSlice(data, shape, tensor.CPU)
	require.NoError(t, err)
	return raw
}

func TestCPUBackend_MatMul(t *testing.T) {
	backend := New()

	a := mustTensor(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	b := mustTensor(t, []float32{7, 8, 9, 10, 11, 12}, tensor.Shape{3, 2})

	c := backend.MatMul(a, b)

	assert.Equal(t, tensor.Shape{2, 2}, c.Shape())
	assert.Equal(t, []float32{58, 64, 139, 154}, c.AsFloat32())
}

func TestCPUBackend_MatMulShapeMismatchPanics(t *testing.T) {
	backend := New()
	a := tensor.Zeros(tensor.Shape{2, 3}, tensor.CPU)
	b := tensor.Zeros(tensor.Shape{2, 3}, tensor.CPU)

	assert.Panics(t, func() { backend.MatMul(a, b) })
}

func TestCPUBackend_Transpose(t *testing.T) {
	backend := New()
	x := mustTensor(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	y := backend.Transpose(x)

	assert.Equal(t, tensor.Shape{3, 2}, y.Shape())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, y.AsFloat32())
}

func TestCPUBackend_Tanh(t *testing.T) {
	backend := New()
	x := mustTensor(t, []float32{-1, 0, 1, 2}, tensor.Shape{2, 2})

	y := backend.Tanh(x)

	for i, v := range x.AsFloat32() {
		assert.InDelta(t, math.Tanh(float64(v)), float64(y.AsFloat32()[i]), 1e-6)
	}
}

func TestCPUBackend_SoftmaxRows(t *testing.T) {
	backend := New()
	x := mustTensor(t, []float32{1, 2, 3, 1000, 1000, 1000}, tensor.Shape{2, 3})

	y := backend.SoftmaxRows(x)

	for i := 0; i < 2; i++ {
		var sum float64
		for _, v := range y.Row(i) {
			sum += float64(v)
		}
		assert.InDelta(t, 1.0, sum, 1e-5)
	}
	// Large logits must not overflow.
	assert.InDelta(t, 1.0/3.0, float64(y.Row(1)[0]), 1e-6)
	assert.Greater(t, y.Row(0)[2], y.Row(0)[1])
}

func TestCPUBackend_AddBroadcast(t *testing.T) {
	backend := New()
	a := mustTensor(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	tests := []struct {
		name string
		b    *tensor.RawTensor
		want []float32
	}{
		{"same", mustTensor(t, []float32{1, 1, 1, 1, 1, 1}, tensor.Shape{2, 3}), []float32{2, 3, 4, 5, 6, 7}},
		{"row", mustTensor(t, []float32{10, 20, 30}, tensor.Shape{1, 3}), []float32{11, 22, 33, 14, 25, 36}},
		{"col", mustTensor(t, []float32{10, 20}, tensor.Shape{2, 1}), []float32{11, 12, 13, 24, 25, 26}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, backend.Add(a, tt.b).AsFloat32())
		})
	}
}

func TestCPUBackend_MulAndScalar(t *testing.T) {
	backend := New()
	a := mustTensor(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	b := mustTensor(t, []float32{2, 3}, tensor.Shape{1, 2})

	assert.Equal(t, []float32{2, 6, 6, 12}, backend.Mul(a, b).AsFloat32())
	assert.Equal(t, []float32{0.5, 1, 1.5, 2}, backend.MulScalar(a, 0.5).AsFloat32())
	assert.Panics(t, func() { backend.Mul(a, mustTensor(t, []float32{1, 2, 3}, tensor.Shape{1, 3})) })
}
