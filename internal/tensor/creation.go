package tensor

import (
	"math"
	"math/rand"
)

// Full creates a tensor filled with a specific value.
func Full(shape Shape, value float32, device Device) *RawTensor {
	t := Zeros(shape, device)
	for i := range t.data {
		t.data[i] = value
	}
	return t
}

// Randn creates a tensor with values drawn from N(0, std²).
//
// The generator is explicit so that model construction is reproducible
// for a fixed seed.
func Randn(shape Shape, std float64, rng *rand.Rand, device Device) *RawTensor {
	t := Zeros(shape, device)
	for i := range t.data {
		t.data[i] = float32(rng.NormFloat64() * std)
	}
	return t
}

// Uniform creates a tensor with values drawn from U(-bound, bound).
func Uniform(shape Shape, bound float64, rng *rand.Rand, device Device) *RawTensor {
	t := Zeros(shape, device)
	for i := range t.data {
		t.data[i] = float32((rng.Float64()*2.0 - 1.0) * bound)
	}
	return t
}

// AddInto accumulates src into dst element-wise. Shapes must match.
func AddInto(dst, src *RawTensor) {
	if !dst.shape.Equal(src.shape) {
		panic("add into: shape mismatch: " + dst.String() + " vs " + src.String())
	}
	for i, v := range src.data {
		dst.data[i] += v
	}
}

// IsFinite reports whether every element is neither NaN nor ±Inf.
func IsFinite(t *RawTensor) bool {
	for _, v := range t.data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
