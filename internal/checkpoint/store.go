package checkpoint

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/born-ml/mrcqa/internal/optim"
	"github.com/born-ml/mrcqa/internal/serialization"
	"github.com/born-ml/mrcqa/internal/tensor"
	"github.com/born-ml/mrcqa/internal/vocab"
)

// FileName is the checkpoint file inside an experiment folder.
const FileName = "checkpoint"

// ModelType is written into the file header.
const ModelType = "BiDAF"

// Vocabulary names in the checkpoint header.
const (
	vocabWords = "words"
	vocabChars = "chars"
)

// Prefixes of Adam moment tensors in the optimizer section.
const (
	prefixExpAvg   = "exp_avg."
	prefixExpAvgSq = "exp_avg_sq."
)

const optimizerAdam = "Adam"

// ErrInvalidCheckpoint is returned for files that decode but lack required fields.
var ErrInvalidCheckpoint = errors.New("checkpoint: invalid record")

// Store reads and writes the checkpoint of one experiment folder.
type Store struct {
	dir string
}

// NewStore creates a store for dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the checkpoint file path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, FileName)
}

// Exists reports whether a checkpoint file is present.
func (s *Store) Exists() (bool, error) {
	_, err := os.Stat(s.Path())
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("failed to stat checkpoint: %w", err)
	}
}

// SaveVocabulary writes a vocabulary-only checkpoint.
func (s *Store) SaveVocabulary(words, chars *vocab.Vocabulary, meta map[string]any) error {
	return s.Save(&Record{Words: words, Chars: chars, Meta: meta})
}

// Save atomically replaces the checkpoint with rec.
//
// The optimizer section is written only for a Valid optimizer state and
// only together with training state.
func (s *Store) Save(rec *Record) error {
	if rec.Words == nil || rec.Chars == nil {
		return fmt.Errorf("%w: vocabularies are required", ErrInvalidCheckpoint)
	}
	if err := checkUTF8(vocabWords, rec.Words); err != nil {
		return err
	}
	if err := checkUTF8(vocabChars, rec.Chars); err != nil {
		return err
	}

	meta := &serialization.CheckpointMeta{
		IsCheckpoint: true,
		Epoch:        -1,
		Vocabularies: map[string][]string{
			vocabWords: rec.Words.Tokens(),
			vocabChars: rec.Chars.Tokens(),
		},
		TrainingMeta: rec.Meta,
	}

	model := map[string]*tensor.RawTensor{}
	var opt map[string]*tensor.RawTensor

	if rec.Training != nil {
		if rec.Training.Epoch < 0 {
			return fmt.Errorf("%w: negative epoch %d", ErrInvalidCheckpoint, rec.Training.Epoch)
		}
		meta.Epoch = rec.Training.Epoch
		meta.Step = rec.Training.Step
		meta.Loss = rec.Training.Loss
		model = rec.Training.Model

		if rec.Optimizer.Status == Valid {
			opt = encodeAdam(rec.Optimizer.State)
			meta.OptimizerType = optimizerAdam
			meta.OptimizerConfig = adamConfigMap(rec.Optimizer.Config)
			meta.OptimizerStep = rec.Optimizer.State.Step
		}
	}

	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("failed to create experiment folder: %w", err)
	}

	header := serialization.Header{
		ModelType:      ModelType,
		CheckpointMeta: meta,
	}
	if err := serialization.WriteFile(s.Path(), header, model, opt); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Load reads the checkpoint.
//
// Damage to the header, the vocabularies or the model section is returned
// as an error. Damage to the optimizer section is reported through
// Record.Optimizer with status Corrupt.
func (s *Store) Load() (*Record, error) {
	r, err := serialization.NewBornReader(s.Path())
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	header := r.Header()
	meta := header.CheckpointMeta
	if meta == nil || !meta.IsCheckpoint {
		return nil, fmt.Errorf("%w: no checkpoint metadata", ErrInvalidCheckpoint)
	}

	rec := &Record{Meta: meta.TrainingMeta, Tensors: header.Tensors}
	if rec.Words, err = loadVocab(meta, vocabWords); err != nil {
		return nil, err
	}
	if rec.Chars, err = loadVocab(meta, vocabChars); err != nil {
		return nil, err
	}

	if meta.Epoch < 0 {
		return rec, nil
	}

	model, err := r.ReadStateDict()
	if err != nil {
		return nil, fmt.Errorf("failed to read model tensors: %w", err)
	}
	rec.Training = &Training{
		Epoch: meta.Epoch,
		Step:  meta.Step,
		Loss:  meta.Loss,
		Model: model,
	}
	rec.Optimizer = loadOptimizer(r, meta)
	return rec, nil
}

// checkUTF8 rejects tokens that the JSON header cannot carry unchanged.
func checkUTF8(name string, v *vocab.Vocabulary) error {
	for id, tok := range v.Tokens() {
		if !utf8.ValidString(tok) {
			return fmt.Errorf("%w: %s vocabulary: token %q at id %d is not valid UTF-8",
				ErrInvalidCheckpoint, name, tok, id)
		}
	}
	return nil
}

func loadVocab(meta *serialization.CheckpointMeta, name string) (*vocab.Vocabulary, error) {
	tokens, ok := meta.Vocabularies[name]
	if !ok {
		return nil, fmt.Errorf("%w: missing %s vocabulary", ErrInvalidCheckpoint, name)
	}
	v, err := vocab.FromTokens(tokens)
	if err != nil {
		return nil, fmt.Errorf("%w: %s vocabulary: %w", ErrInvalidCheckpoint, name, err)
	}
	return v, nil
}

func loadOptimizer(r *serialization.BornReader, meta *serialization.CheckpointMeta) OptimizerState {
	tensors, err := r.ReadOptimizerState()
	if errors.Is(err, serialization.ErrNoOptimizerState) {
		return OptimizerState{Status: Absent}
	}
	if err != nil {
		return OptimizerState{Status: Corrupt, Err: err}
	}

	if meta.OptimizerType != optimizerAdam {
		return OptimizerState{Status: Corrupt, Err: fmt.Errorf("unsupported optimizer %q", meta.OptimizerType)}
	}
	cfg, err := adamConfigFromMap(meta.OptimizerConfig)
	if err != nil {
		return OptimizerState{Status: Corrupt, Err: err}
	}
	state, err := decodeAdam(tensors, meta.OptimizerStep)
	if err != nil {
		return OptimizerState{Status: Corrupt, Err: err}
	}
	return OptimizerState{Status: Valid, State: state, Config: cfg}
}

func encodeAdam(s optim.AdamState) map[string]*tensor.RawTensor {
	out := make(map[string]*tensor.RawTensor, len(s.M)+len(s.V))
	for name, m := range s.M {
		out[prefixExpAvg+name] = m
	}
	for name, v := range s.V {
		out[prefixExpAvgSq+name] = v
	}
	return out
}

func decodeAdam(tensors map[string]*tensor.RawTensor, step int) (optim.AdamState, error) {
	s := optim.AdamState{
		Step: step,
		M:    make(map[string]*tensor.RawTensor),
		V:    make(map[string]*tensor.RawTensor),
	}
	for name, t := range tensors {
		// exp_avg_sq. must be tested first: exp_avg. is its prefix.
		switch {
		case strings.HasPrefix(name, prefixExpAvgSq):
			s.V[strings.TrimPrefix(name, prefixExpAvgSq)] = t
		case strings.HasPrefix(name, prefixExpAvg):
			s.M[strings.TrimPrefix(name, prefixExpAvg)] = t
		default:
			return optim.AdamState{}, fmt.Errorf("unexpected optimizer tensor %q", name)
		}
	}
	return s, nil
}

func adamConfigMap(cfg optim.AdamConfig) map[string]any {
	return map[string]any{
		"lr":           float64(cfg.LR),
		"betas":        []float64{float64(cfg.Betas[0]), float64(cfg.Betas[1])},
		"eps":          float64(cfg.Eps),
		"weight_decay": float64(cfg.WeightDecay),
	}
}

func adamConfigFromMap(m map[string]any) (optim.AdamConfig, error) {
	var cfg optim.AdamConfig
	num := func(key string) (float32, error) {
		v, ok := m[key].(float64)
		if !ok {
			return 0, fmt.Errorf("optimizer config: %q missing or not a number", key)
		}
		return float32(v), nil
	}

	var err error
	if cfg.LR, err = num("lr"); err != nil {
		return cfg, err
	}
	if cfg.Eps, err = num("eps"); err != nil {
		return cfg, err
	}
	if cfg.WeightDecay, err = num("weight_decay"); err != nil {
		return cfg, err
	}
	betas, ok := m["betas"].([]any)
	if !ok || len(betas) != 2 {
		return cfg, fmt.Errorf("optimizer config: betas must be a pair")
	}
	for i, b := range betas {
		f, ok := b.(float64)
		if !ok {
			return cfg, fmt.Errorf("optimizer config: beta %d is not a number", i+1)
		}
		cfg.Betas[i] = float32(f)
	}
	return cfg, nil
}
