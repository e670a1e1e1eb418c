package tensor

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Device represents the compute device for tensor operations.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
	WebGPU
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case WebGPU:
		return "WebGPU"
	default:
		return "Unknown"
	}
}

// RawTensor is the low-level tensor representation: a row-major float32
// buffer plus its shape.
//
// RawTensor values are used as map keys by the gradient tape, so identity
// (the pointer) matters: ops always return a fresh RawTensor and never
// mutate their inputs.
type RawTensor struct {
	data   []float32
	shape  Shape
	stride []int
	device Device
}

// NewRaw creates a new zero-filled RawTensor with the given shape.
func NewRaw(shape Shape, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	return &RawTensor{
		data:   make([]float32, shape.NumElements()),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		device: device,
	}, nil
}

// FromSlice creates a RawTensor holding a copy of data.
func FromSlice(data []float32, shape Shape, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)",
			len(data), shape, shape.NumElements())
	}

	buf := make([]float32, len(data))
	copy(buf, data)
	return &RawTensor{
		data:   buf,
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		device: device,
	}, nil
}

// Zeros is NewRaw for shapes known to be valid. It panics on an invalid shape.
func Zeros(shape Shape, device Device) *RawTensor {
	t, err := NewRaw(shape, device)
	if err != nil {
		panic(err)
	}
	return t
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Strides returns the tensor's memory strides.
func (r *RawTensor) Strides() []int {
	return r.stride
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return Float32
}

// Device returns the tensor's compute device.
func (r *RawTensor) Device() Device {
	return r.device
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return len(r.data)
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return len(r.data) * Float32.Size()
}

// AsFloat32 returns the underlying buffer.
// WARNING: Direct access to underlying memory. Use with caution.
func (r *RawTensor) AsFloat32() []float32 {
	return r.data
}

// Rows returns the first dimension of a 2D tensor.
func (r *RawTensor) Rows() int {
	r.must2D()
	return r.shape[0]
}

// Cols returns the second dimension of a 2D tensor.
func (r *RawTensor) Cols() int {
	r.must2D()
	return r.shape[1]
}

// Row returns the i-th row of a 2D tensor as a slice view.
func (r *RawTensor) Row(i int) []float32 {
	cols := r.Cols()
	return r.data[i*cols : (i+1)*cols]
}

// Item returns the single value of a one-element tensor.
func (r *RawTensor) Item() float32 {
	if len(r.data) != 1 {
		panic(fmt.Sprintf("item: tensor has %d elements, want 1", len(r.data)))
	}
	return r.data[0]
}

// Clone returns a deep copy of the tensor.
func (r *RawTensor) Clone() *RawTensor {
	buf := make([]float32, len(r.data))
	copy(buf, r.data)
	return &RawTensor{
		data:   buf,
		shape:  r.shape.Clone(),
		stride: r.shape.ComputeStrides(),
		device: r.device,
	}
}

// CopyFrom overwrites the tensor contents with src. Shapes must match.
func (r *RawTensor) CopyFrom(src *RawTensor) error {
	if !r.shape.Equal(src.shape) {
		return fmt.Errorf("copy: shape mismatch: %v vs %v", r.shape, src.shape)
	}
	copy(r.data, src.data)
	return nil
}

// Bytes encodes the tensor data as little-endian float32 values.
func (r *RawTensor) Bytes() []byte {
	out := make([]byte, r.ByteSize())
	for i, v := range r.data {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// SetBytes decodes little-endian float32 values into the tensor.
func (r *RawTensor) SetBytes(b []byte) error {
	if len(b) != r.ByteSize() {
		return fmt.Errorf("set bytes: got %d bytes, want %d for shape %v", len(b), r.ByteSize(), r.shape)
	}
	for i := range r.data {
		r.data[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return nil
}

// Equal reports whether both tensors have the same shape and bit-identical data.
func (r *RawTensor) Equal(other *RawTensor) bool {
	if !r.shape.Equal(other.shape) {
		return false
	}
	for i := range r.data {
		if math.Float32bits(r.data[i]) != math.Float32bits(other.data[i]) {
			return false
		}
	}
	return true
}

// String returns a short description of the tensor.
func (r *RawTensor) String() string {
	return fmt.Sprintf("RawTensor(shape=%v, device=%s)", r.shape, r.device)
}

func (r *RawTensor) must2D() {
	if len(r.shape) != 2 {
		panic(fmt.Sprintf("expected 2D tensor, got shape %v", r.shape))
	}
}
