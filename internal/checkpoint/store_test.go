package checkpoint

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/mrcqa/internal/optim"
	"github.com/born-ml/mrcqa/internal/serialization"
	"github.com/born-ml/mrcqa/internal/tensor"
	"github.com/born-ml/mrcqa/internal/vocab"
)

func vocabs() (*vocab.Vocabulary, *vocab.Vocabulary) {
	words := vocab.NewWords()
	words.Add("the")
	words.Add("cat")
	chars := vocab.NewChars()
	for _, c := range []string{"t", "h", "e", "c", "a"} {
		chars.Add(c)
	}
	return words, chars
}

func mustTensor(t *testing.T, data []float32, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	x, err := tensor.FromSlice(data, shape, tensor.CPU)
	require.NoError(t, err)
	return x
}

func trainedRecord(t *testing.T) *Record {
	t.Helper()
	words, chars := vocabs()
	return &Record{
		Words: words,
		Chars: chars,
		Training: &Training{
			Epoch: 3,
			Step:  40,
			Loss:  1.5,
			Model: map[string]*tensor.RawTensor{
				"encoder.weight": mustTensor(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2}),
				"encoder.bias":   mustTensor(t, []float32{5, 6}, tensor.Shape{1, 2}),
			},
		},
		Optimizer: ValidOptimizer(optim.AdamState{
			Step: 40,
			M:    map[string]*tensor.RawTensor{"encoder.bias": mustTensor(t, []float32{0.1, 0.2}, tensor.Shape{1, 2})},
			V:    map[string]*tensor.RawTensor{"encoder.bias": mustTensor(t, []float32{0.3, 0.4}, tensor.Shape{1, 2})},
		}, optim.AdamConfig{LR: 0.01, Betas: [2]float32{0.9, 0.999}, Eps: 1e-8}),
		Meta: map[string]any{"tokenizer": "word"},
	}
}

func TestStore_Exists(t *testing.T) {
	s := NewStore(t.TempDir())

	ok, err := s.Exists()
	require.NoError(t, err)
	assert.False(t, ok)

	words, chars := vocabs()
	require.NoError(t, s.SaveVocabulary(words, chars, nil))

	ok, err = s.Exists()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, FileName, filepath.Base(s.Path()))
}

func TestStore_VocabularyOnly(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "exp"))
	words, chars := vocabs()
	require.NoError(t, s.SaveVocabulary(words, chars, nil))

	rec, err := s.Load()
	require.NoError(t, err)

	assert.Nil(t, rec.Training)
	assert.Equal(t, -1, rec.Epoch())
	assert.Equal(t, Absent, rec.Optimizer.Status)
	assert.True(t, words.Equal(rec.Words))
	assert.True(t, chars.Equal(rec.Chars))
}

func TestStore_RoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())
	want := trainedRecord(t)
	require.NoError(t, s.Save(want))

	got, err := s.Load()
	require.NoError(t, err)

	require.NotNil(t, got.Training)
	assert.Equal(t, 3, got.Epoch())
	assert.Equal(t, int64(40), got.Training.Step)
	assert.InDelta(t, 1.5, got.Training.Loss, 1e-12)
	assert.True(t, want.Words.Equal(got.Words))
	assert.Equal(t, "word", got.Meta["tokenizer"])

	require.Len(t, got.Training.Model, 2)
	for name, w := range want.Training.Model {
		assert.True(t, w.Equal(got.Training.Model[name]), name)
	}

	require.Equal(t, Valid, got.Optimizer.Status, "%v", got.Optimizer.Err)
	assert.Equal(t, want.Optimizer.Config, got.Optimizer.Config)
	assert.Equal(t, 40, got.Optimizer.State.Step)
	assert.True(t, want.Optimizer.State.M["encoder.bias"].Equal(got.Optimizer.State.M["encoder.bias"]))
	assert.True(t, want.Optimizer.State.V["encoder.bias"].Equal(got.Optimizer.State.V["encoder.bias"]))

	assert.Len(t, got.Tensors, 4)
}

func TestStore_OptimizerAbsent(t *testing.T) {
	s := NewStore(t.TempDir())
	rec := trainedRecord(t)
	rec.Optimizer = OptimizerState{}
	require.NoError(t, s.Save(rec))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, Absent, got.Optimizer.Status)
	assert.NotNil(t, got.Training)
}

func TestStore_OptimizerCorrupt(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.Save(trainedRecord(t)))

	// The optimizer section is the tail of the file.
	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(s.Path(), data, 0o600))

	got, err := s.Load()
	require.NoError(t, err, "optimizer damage must not fail the load")
	assert.Equal(t, Corrupt, got.Optimizer.Status)
	assert.True(t, errors.Is(got.Optimizer.Err, serialization.ErrChecksumMismatch))
	assert.NotNil(t, got.Training)
}

func TestStore_ModelCorruptIsFatal(t *testing.T) {
	s := NewStore(t.TempDir())
	rec := trainedRecord(t)
	rec.Optimizer = OptimizerState{}
	require.NoError(t, s.Save(rec))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(s.Path(), data, 0o600))

	_, err = s.Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, serialization.ErrChecksumMismatch))
}

func TestStore_LoadMissing(t *testing.T) {
	_, err := NewStore(t.TempDir()).Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestStore_SaveRejectsInvalid(t *testing.T) {
	s := NewStore(t.TempDir())

	err := s.Save(&Record{})
	assert.True(t, errors.Is(err, ErrInvalidCheckpoint))

	rec := trainedRecord(t)
	rec.Training.Epoch = -2
	err = s.Save(rec)
	assert.True(t, errors.Is(err, ErrInvalidCheckpoint))
}

func TestStore_NonASCIIVocabularyRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())
	words, chars := vocabs()
	for _, w := range []string{"🙂", "東京", "日本語", "café"} {
		words.Add(w)
	}
	for _, c := range []string{"🙂", "東", "é"} {
		chars.Add(c)
	}
	require.NoError(t, s.SaveVocabulary(words, chars, nil))

	rec, err := s.Load()
	require.NoError(t, err)
	assert.True(t, words.Equal(rec.Words))
	assert.True(t, chars.Equal(rec.Chars))
}

func TestStore_SaveRejectsBrokenUTF8(t *testing.T) {
	s := NewStore(t.TempDir())
	words, chars := vocabs()
	words.Add("\xf0\x9f")
	words.Add("\x99\x82")

	err := s.SaveVocabulary(words, chars, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidCheckpoint))

	ok, err := s.Exists()
	require.NoError(t, err)
	assert.False(t, ok, "nothing written for a rejected record")
}

func TestDecodeAdam(t *testing.T) {
	x := mustTensor(t, []float32{1}, tensor.Shape{1, 1})

	s, err := decodeAdam(map[string]*tensor.RawTensor{
		"exp_avg.a.weight":    x,
		"exp_avg_sq.a.weight": x,
	}, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, s.Step)
	assert.Contains(t, s.M, "a.weight")
	assert.Contains(t, s.V, "a.weight")

	_, err = decodeAdam(map[string]*tensor.RawTensor{"momentum.a": x}, 1)
	assert.Error(t, err)
}

func TestAdamConfigMap(t *testing.T) {
	cfg := optim.AdamConfig{LR: 0.5, Betas: [2]float32{0.8, 0.9}, Eps: 1e-6, WeightDecay: 0.1}

	// Header values come back from JSON as float64 and []any.
	m := adamConfigMap(cfg)
	m["betas"] = []any{m["betas"].([]float64)[0], m["betas"].([]float64)[1]}

	got, err := adamConfigFromMap(m)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	delete(m, "lr")
	_, err = adamConfigFromMap(m)
	assert.Error(t, err)
}

func TestOptimizerStatus_String(t *testing.T) {
	assert.Equal(t, "absent", Absent.String())
	assert.Equal(t, "valid", Valid.String())
	assert.Equal(t, "corrupt", Corrupt.String())
}
