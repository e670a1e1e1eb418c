// Package tensor provides the dense float32 tensor type shared by the
// autodiff engine, the nn modules and the checkpoint format.
package tensor

// DataType represents runtime type information for tensors.
//
// Training state is stored as float32 only; the type exists so the
// checkpoint header can describe what it stores.
type DataType int

// Supported data types for tensors.
const (
	Float32 DataType = iota
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32:
		return 4
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	default:
		return "unknown"
	}
}
