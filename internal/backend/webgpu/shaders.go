// Package webgpu implements a GPU backend using WebGPU.
// Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU bindings.
//
// Only matrix multiplication runs on the GPU. Row kernels (tanh, softmax,
// transpose) are small for reading-comprehension batches and run on the
// CPU backend.
package webgpu

import "errors"

// ErrUnavailable is returned when no WebGPU adapter can be acquired.
var ErrUnavailable = errors.New("webgpu: not available")

// workgroupSize is the edge of the square workgroup used by matmulShader.
const workgroupSize = 16

// matmulShader performs matrix multiplication: C = A @ B.
// A is [M, K], B is [K, N], C is [M, N].
const matmulShader = `
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    M: u32,  // rows of A and C
    K: u32,  // cols of A, rows of B
    N: u32,  // cols of B and C
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(16, 16)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let row = global_id.y;
    let col = global_id.x;

    if (row >= params.M || col >= params.N) {
        return;
    }

    var sum: f32 = 0.0;
    for (var k: u32 = 0u; k < params.K; k = k + 1u) {
        sum = sum + a[row * params.K + k] * b[k * params.N + col];
    }

    result[row * params.N + col] = sum;
}
`

// workgroups returns the number of workgroups needed to cover n invocations.
func workgroups(n int) uint32 {
	//nolint:gosec // G115: n is a non-negative tensor dimension.
	return uint32((n + workgroupSize - 1) / workgroupSize)
}
