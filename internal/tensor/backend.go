package tensor

// Backend defines the compute kernels the autodiff engine dispatches to.
//
// Implementations:
//   - cpu: gonum BLAS matmul plus goroutine fan-out for row kernels
//   - webgpu: WGSL matmul on the GPU, row kernels on the CPU
//
// All inputs and outputs are 2D. Kernels never mutate their inputs.
type Backend interface {
	// MatMul computes a @ b for a [M, K] and b [K, N].
	MatMul(a, b *RawTensor) *RawTensor

	// Add computes a + b. b may broadcast against a (see Broadcast2DOf).
	Add(a, b *RawTensor) *RawTensor

	// Mul computes a * b element-wise. b may broadcast against a.
	Mul(a, b *RawTensor) *RawTensor

	// MulScalar multiplies every element by s.
	MulScalar(x *RawTensor, s float32) *RawTensor

	// Transpose swaps the two axes of a 2D tensor.
	Transpose(x *RawTensor) *RawTensor

	// Tanh applies the hyperbolic tangent element-wise.
	Tanh(x *RawTensor) *RawTensor

	// SoftmaxRows applies a numerically stable softmax to every row.
	SoftmaxRows(x *RawTensor) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
