// Package embedding provides word-vector sources and injects them into an
// embedding matrix before a model is built.
//
// A TextSource reads pre-trained vectors (GloVe text format). A NormSource
// synthesizes vectors for out-of-vocabulary tokens from a multivariate
// normal fitted to the pre-trained ones.
package embedding

// Source produces a vector for a token.
type Source interface {
	// Vector returns the vector of token and whether the source has one.
	Vector(token string) ([]float64, bool)

	// Dim returns the vector dimension.
	Dim() int
}
