package embedding

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrTooFewVectors is returned by NormStats when fewer than two vectors are loaded.
var ErrTooFewVectors = errors.New("embedding: need at least two vectors for statistics")

const maxLineBytes = 4 << 20

// TextSource holds pre-trained vectors read from a text file.
type TextSource struct {
	dim     int
	vectors map[string][]float64
	order   []string // load order, for reproducible statistics
}

// LoadTextFile opens path and calls LoadText.
func LoadTextFile(path string, keep map[string]struct{}) (*TextSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open embeddings: %w", err)
	}
	defer f.Close()

	src, err := LoadText(f, keep)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return src, nil
}

// LoadText parses lines of the form "token v1 v2 ... vd".
//
// Blank lines are skipped. Every line must have the same dimension. Only
// tokens in keep are stored; a nil keep stores every token. When a token
// occurs twice the first occurrence wins.
func LoadText(r io.Reader, keep map[string]struct{}) (*TextSource, error) {
	s := &TextSource{vectors: make(map[string][]float64)}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for lineNo := 1; scanner.Scan(); lineNo++ {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: token without vector", lineNo)
		}

		dim := len(fields) - 1
		if s.dim == 0 {
			s.dim = dim
		} else if dim != s.dim {
			return nil, fmt.Errorf("line %d: dimension %d, expected %d", lineNo, dim, s.dim)
		}

		token := fields[0]
		if keep != nil {
			if _, ok := keep[token]; !ok {
				continue
			}
		}
		if _, dup := s.vectors[token]; dup {
			continue
		}

		vec := make([]float64, dim)
		for i, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: component %d: %w", lineNo, i+1, err)
			}
			vec[i] = v
		}
		s.vectors[token] = vec
		s.order = append(s.order, token)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read embeddings: %w", err)
	}

	return s, nil
}

// Vector returns the stored vector of token.
func (s *TextSource) Vector(token string) ([]float64, bool) {
	v, ok := s.vectors[token]
	return v, ok
}

// Dim returns the vector dimension, or 0 for an empty file.
func (s *TextSource) Dim() int {
	return s.dim
}

// Len returns the number of stored vectors.
func (s *TextSource) Len() int {
	return len(s.order)
}

// NormStats returns the empirical mean of the stored vectors and their
// covariance: the full matrix when fullCovariance is set, otherwise only
// the per-dimension variances on the diagonal.
func (s *TextSource) NormStats(fullCovariance bool) ([]float64, *mat.SymDense, error) {
	n := len(s.order)
	if n < 2 {
		return nil, nil, fmt.Errorf("%w: have %d", ErrTooFewVectors, n)
	}

	data := mat.NewDense(n, s.dim, nil)
	for i, tok := range s.order {
		data.SetRow(i, s.vectors[tok])
	}

	mean := make([]float64, s.dim)
	col := make([]float64, n)
	for j := range mean {
		mat.Col(col, j, data)
		mean[j] = stat.Mean(col, nil)
	}

	if fullCovariance {
		var cov mat.SymDense
		stat.CovarianceMatrix(&cov, data, nil)
		return mean, &cov, nil
	}

	cov := mat.NewSymDense(s.dim, nil)
	for j := range mean {
		mat.Col(col, j, data)
		cov.SetSym(j, j, stat.Variance(col, nil))
	}
	return mean, cov, nil
}

// Tokens returns the stored tokens in load order.
func (s *TextSource) Tokens() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
