// Package cpu implements the CPU backend: gonum BLAS for matrix products and
// goroutine fan-out for row-wise kernels.
package cpu

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/born-ml/mrcqa/internal/parallel"
	"github.com/born-ml/mrcqa/internal/tensor"
)

// CPUBackend implements tensor.Backend on the host CPU.
//
//nolint:revive // CPUBackend reads better at call sites than cpu.Backend alongside webgpu.Backend.
type CPUBackend struct {
	device tensor.Device
	par    parallel.Config
}

// New creates a new CPU backend.
func New() *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		par:    parallel.DefaultConfig(),
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// MatMul performs matrix multiplication.
// For 2D tensors: (M, K) @ (K, N) -> (M, N), via blas32.Gemm.
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()

	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: only 2D tensors supported, got %dD and %dD", len(aShape), len(bShape)))
	}

	m, k := aShape[0], aShape[1]
	kAlt, n := bShape[0], bShape[1]
	if k != kAlt {
		panic(fmt.Sprintf("matmul: shape mismatch [%d,%d] @ [%d,%d]", m, k, kAlt, n))
	}

	result := tensor.Zeros(tensor.Shape{m, n}, cpu.device)
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
		blas32.General{Rows: m, Cols: k, Stride: k, Data: a.AsFloat32()},
		blas32.General{Rows: k, Cols: n, Stride: n, Data: b.AsFloat32()},
		0,
		blas32.General{Rows: m, Cols: n, Stride: n, Data: result.AsFloat32()},
	)
	return result
}

// Add performs element-wise addition with 2D broadcasting of b.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("add", a, b, func(x, y float32) float32 { return x + y })
}

// Mul performs element-wise multiplication with 2D broadcasting of b.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("mul", a, b, func(x, y float32) float32 { return x * y })
}

// MulScalar multiplies every element by s.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, s float32) *tensor.RawTensor {
	result := tensor.Zeros(x.Shape(), cpu.device)
	dst := result.AsFloat32()
	for i, v := range x.AsFloat32() {
		dst[i] = v * s
	}
	return result
}

func (cpu *CPUBackend) binaryOp(name string, a, b *tensor.RawTensor, f func(x, y float32) float32) *tensor.RawTensor {
	mode, err := tensor.Broadcast2DOf(a.Shape(), b.Shape())
	if err != nil {
		panic(name + ": " + err.Error())
	}

	result := tensor.Zeros(a.Shape(), cpu.device)
	cols := a.Cols()
	bd := b.AsFloat32()

	parallel.Rows(a.Rows(), func(start, end int) {
		for i := start; i < end; i++ {
			ar, out := a.Row(i), result.Row(i)
			switch mode {
			case tensor.BroadcastNone:
				br := bd[i*cols : (i+1)*cols]
				for j := range out {
					out[j] = f(ar[j], br[j])
				}
			case tensor.BroadcastRow:
				for j := range out {
					out[j] = f(ar[j], bd[j])
				}
			case tensor.BroadcastCol:
				for j := range out {
					out[j] = f(ar[j], bd[i])
				}
			}
		}
	}, cpu.par)
	return result
}

// Transpose swaps the axes of a 2D tensor.
func (cpu *CPUBackend) Transpose(x *tensor.RawTensor) *tensor.RawTensor {
	rows, cols := x.Rows(), x.Cols()
	result := tensor.Zeros(tensor.Shape{cols, rows}, cpu.device)
	src := x.AsFloat32()
	dst := result.AsFloat32()

	parallel.Rows(rows, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < cols; j++ {
				dst[j*rows+i] = src[i*cols+j]
			}
		}
	}, cpu.par)
	return result
}

// Tanh applies tanh element-wise.
func (cpu *CPUBackend) Tanh(x *tensor.RawTensor) *tensor.RawTensor {
	result := tensor.Zeros(x.Shape(), cpu.device)
	src := x.AsFloat32()
	dst := result.AsFloat32()

	rows, cols := x.Rows(), x.Cols()
	parallel.Rows(rows, func(start, end int) {
		for i := start * cols; i < end*cols; i++ {
			dst[i] = float32(math.Tanh(float64(src[i])))
		}
	}, cpu.par)
	return result
}

// SoftmaxRows applies softmax to every row of a 2D tensor.
//
//	softmax(x)_i = exp(x_i - max(x)) / Σ_j exp(x_j - max(x))
func (cpu *CPUBackend) SoftmaxRows(x *tensor.RawTensor) *tensor.RawTensor {
	result := tensor.Zeros(x.Shape(), cpu.device)

	parallel.Rows(x.Rows(), func(start, end int) {
		for i := start; i < end; i++ {
			SoftmaxInto(result.Row(i), x.Row(i))
		}
	}, cpu.par)
	return result
}

// SoftmaxInto writes softmax(src) into dst using max-shifting for stability.
func SoftmaxInto(dst, src []float32) {
	maxVal := float32(math.Inf(-1))
	for _, v := range src {
		if v > maxVal {
			maxVal = v
		}
	}

	var sum float64
	for j, v := range src {
		e := math.Exp(float64(v - maxVal))
		dst[j] = float32(e)
		sum += e
	}
	for j := range dst {
		dst[j] = float32(float64(dst[j]) / sum)
	}
}
