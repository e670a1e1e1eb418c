package embedding

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/mrcqa/internal/tensor"
	"github.com/born-ml/mrcqa/internal/vocab"
)

const glove = `the 1 0 0
cat 0 2 0

sat 0 0 3
dog 1 1 1
`

func TestLoadText(t *testing.T) {
	src, err := LoadText(strings.NewReader(glove), nil)
	require.NoError(t, err)

	assert.Equal(t, 3, src.Dim())
	assert.Equal(t, 4, src.Len())
	assert.Equal(t, []string{"the", "cat", "sat", "dog"}, src.Tokens())

	v, ok := src.Vector("cat")
	require.True(t, ok)
	assert.Equal(t, []float64{0, 2, 0}, v)

	_, ok = src.Vector("bird")
	assert.False(t, ok)
}

func TestLoadText_Keep(t *testing.T) {
	keep := map[string]struct{}{"sat": {}, "bird": {}}
	src, err := LoadText(strings.NewReader(glove), keep)
	require.NoError(t, err)

	assert.Equal(t, []string{"sat"}, src.Tokens())
	assert.Equal(t, 3, src.Dim())
}

func TestLoadText_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"dimension change", "a 1 2\nb 1 2 3\n", "line 2"},
		{"bad float", "a 1 x\n", "line 1"},
		{"no vector", "a\n", "line 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadText(strings.NewReader(tt.input), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNormStats(t *testing.T) {
	src, err := LoadText(strings.NewReader("a 1 2\nb 3 2\nc 5 8\n"), nil)
	require.NoError(t, err)

	mean, diag, err := src.NormStats(false)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{3, 4}, mean, 1e-12)
	assert.InDelta(t, 4.0, diag.At(0, 0), 1e-12)
	assert.InDelta(t, 12.0, diag.At(1, 1), 1e-12)
	assert.Equal(t, 0.0, diag.At(0, 1))

	_, full, err := src.NormStats(true)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, full.At(0, 0), 1e-12)
	assert.InDelta(t, 6.0, full.At(0, 1), 1e-12)
	assert.InDelta(t, 6.0, full.At(1, 0), 1e-12)
}

func TestNormStats_TooFew(t *testing.T) {
	src, err := LoadText(strings.NewReader("a 1 2\n"), nil)
	require.NoError(t, err)

	_, _, err = src.NormStats(false)
	assert.True(t, errors.Is(err, ErrTooFewVectors))
}

func draws(t *testing.T, full bool, seed uint64, n int) [][]float64 {
	t.Helper()
	cov := mat.NewSymDense(2, []float64{2, 0.5, 0.5, 1})
	src, err := NewNormSource([]float64{1, -1}, cov, seed, full)
	require.NoError(t, err)

	out := make([][]float64, n)
	for i := range out {
		out[i], _ = src.Vector("any")
	}
	return out
}

func TestNormSource_SeedIsReproducible(t *testing.T) {
	for _, full := range []bool{false, true} {
		a := draws(t, full, DefaultSeed, 5)
		b := draws(t, full, DefaultSeed, 5)
		assert.Equal(t, a, b)

		c := draws(t, full, DefaultSeed+1, 5)
		assert.NotEqual(t, a, c)
	}
}

func TestNormSource_SingularCovarianceFallsBack(t *testing.T) {
	// Perfectly correlated dimensions: rank-deficient covariance.
	cov := mat.NewSymDense(2, []float64{1, 1, 1, 1})
	src, err := NewNormSource([]float64{0, 0}, cov, 1, true)
	require.NoError(t, err)

	v, ok := src.Vector("x")
	assert.True(t, ok)
	assert.Len(t, v, 2)
}

func TestNormSource_DimensionMismatch(t *testing.T) {
	_, err := NewNormSource([]float64{0, 0, 0}, mat.NewSymDense(2, nil), 1, false)
	assert.Error(t, err)
}

func wordVocab(tokens ...string) *vocab.Vocabulary {
	v := vocab.NewWords()
	for _, tok := range tokens {
		v.Add(tok)
	}
	return v
}

func TestInject_FullCoverageCopiesSourceExactly(t *testing.T) {
	src, err := LoadText(strings.NewReader("<sos> 1 1 1\n<eos> 2 2 2\nthe 1 0 0\ncat 0 2 0\n"), nil)
	require.NoError(t, err)
	words := wordVocab("the", "cat")
	base := tensor.Full(tensor.Shape{words.Len(), 3}, 9, tensor.CPU)

	out, report, err := Inject(words, 0, base, src, panicSource{dim: 3})
	require.NoError(t, err)

	assert.Equal(t, Report{Pretrained: 4}, report)
	assert.Equal(t, []float32{9, 9, 9}, out.Row(0), "skip row untouched")
	for id := 1; id < words.Len(); id++ {
		want, _ := src.Vector(words.Token(id))
		for j, v := range want {
			assert.Equal(t, float32(v), out.Row(id)[j])
		}
	}
	assert.Equal(t, []float32{9, 9, 9}, base.Row(1), "base is not mutated")
}

func TestInject_DrawsForMissingTokens(t *testing.T) {
	src, err := LoadText(strings.NewReader("the 1 0\ncat 0 2\n"), nil)
	require.NoError(t, err)
	words := wordVocab("the", "cat", "sat")
	base := tensor.Zeros(tensor.Shape{words.Len(), 2}, tensor.CPU)

	inject := func() *tensor.RawTensor {
		oov, err := NewNormSource([]float64{0, 0}, mat.NewSymDense(2, []float64{1, 0, 0, 1}), DefaultSeed, false)
		require.NoError(t, err)
		out, report, err := Inject(words, 0, base, src, oov)
		require.NoError(t, err)
		assert.Equal(t, Report{Pretrained: 2, Drawn: 3}, report)
		return out
	}

	a, b := inject(), inject()
	assert.True(t, a.Equal(b), "seeded injection is reproducible")
	assert.Equal(t, []float32{1, 0}, a.Row(words.ID("the")))
}

func TestInject_DimensionMismatch(t *testing.T) {
	src, err := LoadText(strings.NewReader("the 1 0\n"), nil)
	require.NoError(t, err)
	words := wordVocab("the")

	_, _, err = Inject(words, 0, tensor.Zeros(tensor.Shape{words.Len(), 3}, tensor.CPU), src, nil)
	assert.Error(t, err)

	_, _, err = Inject(words, 0, tensor.Zeros(tensor.Shape{2, 2}, tensor.CPU), src, nil)
	assert.Error(t, err)
}

func TestKeep(t *testing.T) {
	keep := Keep(wordVocab("a"))
	assert.Len(t, keep, 4)
	assert.Contains(t, keep, "a")
	assert.Contains(t, keep, vocab.SOS)
}

// panicSource fails the test if a fallback draw happens.
type panicSource struct{ dim int }

func (p panicSource) Vector(string) ([]float64, bool) { panic("unexpected fallback draw") }
func (p panicSource) Dim() int                        { return p.dim }
