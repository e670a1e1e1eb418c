package embedding

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// DefaultSeed seeds the out-of-vocabulary generator when none is configured.
const DefaultSeed uint64 = 2

// minVariance floors diagonal entries so a constant dimension stays sampleable.
const minVariance = 1e-12

// NormSource draws vectors from a multivariate normal distribution.
//
// The same mean, covariance and seed always produce the same sequence of
// vectors. The token is ignored: every call to Vector draws a new sample.
type NormSource struct {
	dist     *distmv.Normal
	dim      int
	diagonal bool
}

// NewNormSource creates a normal source. Without fullCovariance only the
// diagonal of cov is used. A full covariance that is not positive definite
// is retried with growing diagonal jitter, then reduced to its diagonal.
func NewNormSource(mean []float64, cov mat.Symmetric, seed uint64, fullCovariance bool) (*NormSource, error) {
	dim := len(mean)
	if cov.SymmetricDim() != dim {
		return nil, fmt.Errorf("embedding: covariance is %dx%d, mean has %d components",
			cov.SymmetricDim(), cov.SymmetricDim(), dim)
	}
	src := rand.NewSource(seed)

	if fullCovariance {
		scale := meanDiag(cov)
		for _, eps := range []float64{0, 1e-8, 1e-6, 1e-4} {
			sigma := jitter(cov, eps*scale)
			if dist, ok := distmv.NewNormal(mean, sigma, src); ok {
				return &NormSource{dist: dist, dim: dim}, nil
			}
		}
	}

	dist, ok := distmv.NewNormal(mean, diagonalOf(cov), src)
	if !ok {
		return nil, fmt.Errorf("embedding: covariance diagonal is not positive")
	}
	return &NormSource{dist: dist, dim: dim, diagonal: true}, nil
}

// Vector draws a fresh sample.
func (s *NormSource) Vector(string) ([]float64, bool) {
	return s.dist.Rand(nil), true
}

// Dim returns the vector dimension.
func (s *NormSource) Dim() int {
	return s.dim
}

// Diagonal reports whether the source ignores off-diagonal covariance.
func (s *NormSource) Diagonal() bool {
	return s.diagonal
}

func meanDiag(cov mat.Symmetric) float64 {
	n := cov.SymmetricDim()
	var sum float64
	for i := 0; i < n; i++ {
		sum += cov.At(i, i)
	}
	if sum <= 0 {
		return 1
	}
	return sum / float64(n)
}

func jitter(cov mat.Symmetric, eps float64) *mat.SymDense {
	n := cov.SymmetricDim()
	out := mat.NewSymDense(n, nil)
	out.CopySym(cov)
	for i := 0; i < n; i++ {
		out.SetSym(i, i, out.At(i, i)+eps)
	}
	return out
}

func diagonalOf(cov mat.Symmetric) *mat.SymDense {
	n := cov.SymmetricDim()
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		out.SetSym(i, i, max(cov.At(i, i), minVariance))
	}
	return out
}
