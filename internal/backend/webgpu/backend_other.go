//go:build !windows

package webgpu

import "github.com/born-ml/mrcqa/internal/tensor"

// Backend is a placeholder on platforms without the WebGPU bindings.
// New never returns one.
type Backend struct{ tensor.Backend }

// New always fails on this platform.
func New() (*Backend, error) {
	return nil, ErrUnavailable
}

// IsAvailable always reports false on this platform.
func IsAvailable() bool {
	return false
}

// Release is a no-op.
func (b *Backend) Release() {}
