package tensor

import "fmt"

// Shape represents the dimensions of a tensor.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks if the shape is valid (all dimensions > 0).
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides calculates row-major strides for the shape.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// Broadcast2D describes how a right-hand 2D operand lines up with a left-hand
// matrix of shape [rows, cols] in element-wise ops.
type Broadcast2D int

// Supported 2D broadcast patterns.
const (
	BroadcastNone Broadcast2D = iota // [rows, cols]
	BroadcastRow                     // [1, cols], repeated down the rows
	BroadcastCol                     // [rows, 1], repeated across the columns
)

// Broadcast2DOf returns how b broadcasts against a.
//
// Only the three patterns needed by the attention layers are supported:
//
//	(3, 5) op (3, 5) → BroadcastNone
//	(3, 5) op (1, 5) → BroadcastRow
//	(3, 5) op (3, 1) → BroadcastCol
func Broadcast2DOf(a, b Shape) (Broadcast2D, error) {
	if len(a) != 2 || len(b) != 2 {
		return 0, fmt.Errorf("broadcast: 2D shapes required, got %v and %v", a, b)
	}
	switch {
	case a.Equal(b):
		return BroadcastNone, nil
	case b[0] == 1 && b[1] == a[1]:
		return BroadcastRow, nil
	case b[1] == 1 && b[0] == a[0]:
		return BroadcastCol, nil
	default:
		return 0, fmt.Errorf("broadcast: shapes not compatible: %v vs %v", a, b)
	}
}
