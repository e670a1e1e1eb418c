// Package config loads the experiment configuration from
// <exp_folder>/config.yaml.
//
// Every key is optional. Absent keys and absent or empty sections take the
// defaults of Default. Unknown keys are rejected.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/mrcqa/internal/bidaf"
	"github.com/born-ml/mrcqa/internal/optim"
	"github.com/born-ml/mrcqa/internal/tokenizer"
)

// FileName is the configuration file inside an experiment folder.
const FileName = "config.yaml"

// ErrInvalid is returned for configuration values out of range.
var ErrInvalid = errors.New("config: invalid value")

// Config is the full experiment configuration.
type Config struct {
	Training Training     `yaml:"training"`
	BiDAF    bidaf.Config `yaml:"bidaf"`
	Data     Data         `yaml:"data"`
}

// Training holds optimizer and loop settings.
type Training struct {
	LR          float32    `yaml:"lr"`
	Betas       [2]float32 `yaml:"betas,flow"`
	Eps         float32    `yaml:"eps"`
	WeightDecay float32    `yaml:"weight_decay"`
	BatchSize   int        `yaml:"batch_size"`

	// Epochs is the total number of epochs; nil trains forever.
	Epochs *int `yaml:"epochs"`

	TeacherForcingRatio float64 `yaml:"teacher_forcing_ratio"`

	// Limit truncates passages to this many tokens; 0 disables truncation.
	Limit    int   `yaml:"limit"`
	LogEvery int   `yaml:"log_every"`
	Seed     int64 `yaml:"seed"`
}

// Data selects how text is tokenized.
type Data struct {
	Tokenizer string `yaml:"tokenizer"`
	Encoding  string `yaml:"encoding"`
	Lowercase bool   `yaml:"lowercase"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Training: Training{
			LR:                  0.01,
			Betas:               [2]float32{0.9, 0.999},
			Eps:                 1e-8,
			WeightDecay:         0,
			BatchSize:           32,
			TeacherForcingRatio: 1.0,
			LogEvery:            100,
			Seed:                1,
		},
		BiDAF: bidaf.DefaultConfig(),
		Data: Data{
			Tokenizer: tokenizer.KindWord,
			Encoding:  "cl100k_base",
		},
	}
}

// file mirrors Config with pointer sections so that a section written as
// `training:` with no body falls back to defaults instead of zero values.
type file struct {
	Training *Training     `yaml:"training"`
	BiDAF    *bidaf.Config `yaml:"bidaf"`
	Data     *Data         `yaml:"data"`
}

// Load reads <dir>/config.yaml.
func Load(dir string) (Config, error) {
	path := filepath.Join(dir, FileName)
	//nolint:gosec // G304: path is the experiment folder given on the command line
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a YAML document.
func Parse(b []byte) (Config, error) {
	def := Default()
	f := file{Training: &def.Training, BiDAF: &def.BiDAF, Data: &def.Data}

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := Default()
	if f.Training != nil {
		cfg.Training = *f.Training
	}
	if f.BiDAF != nil {
		cfg.BiDAF = *f.BiDAF
	}
	if f.Data != nil {
		cfg.Data = *f.Data
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	t := c.Training
	switch {
	case t.LR <= 0:
		return fmt.Errorf("%w: training.lr must be positive, got %g", ErrInvalid, t.LR)
	case t.Betas[0] < 0 || t.Betas[0] >= 1 || t.Betas[1] < 0 || t.Betas[1] >= 1:
		return fmt.Errorf("%w: training.betas must be in [0, 1), got %v", ErrInvalid, t.Betas)
	case t.Eps <= 0:
		return fmt.Errorf("%w: training.eps must be positive, got %g", ErrInvalid, t.Eps)
	case t.WeightDecay < 0:
		return fmt.Errorf("%w: training.weight_decay must not be negative, got %g", ErrInvalid, t.WeightDecay)
	case t.BatchSize <= 0:
		return fmt.Errorf("%w: training.batch_size must be positive, got %d", ErrInvalid, t.BatchSize)
	case t.Epochs != nil && *t.Epochs < 0:
		return fmt.Errorf("%w: training.epochs must not be negative, got %d", ErrInvalid, *t.Epochs)
	case t.TeacherForcingRatio < 0 || t.TeacherForcingRatio > 1:
		return fmt.Errorf("%w: training.teacher_forcing_ratio must be in [0, 1], got %g", ErrInvalid, t.TeacherForcingRatio)
	case t.Limit < 0:
		return fmt.Errorf("%w: training.limit must not be negative, got %d", ErrInvalid, t.Limit)
	case t.LogEvery <= 0:
		return fmt.Errorf("%w: training.log_every must be positive, got %d", ErrInvalid, t.LogEvery)
	}

	if err := c.BiDAF.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	switch c.Data.Tokenizer {
	case tokenizer.KindWord:
	case tokenizer.KindTikToken:
		if c.Data.Encoding == "" {
			return fmt.Errorf("%w: data.encoding is required for the tiktoken tokenizer", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: data.tokenizer must be %q or %q, got %q",
			ErrInvalid, tokenizer.KindWord, tokenizer.KindTikToken, c.Data.Tokenizer)
	}
	return nil
}

// Adam returns the optimizer hyperparameters.
func (t Training) Adam() optim.AdamConfig {
	return optim.AdamConfig{
		LR:          t.LR,
		Betas:       t.Betas,
		Eps:         t.Eps,
		WeightDecay: t.WeightDecay,
	}
}

// TokenizerOptions returns the tokenizer selection.
func (d Data) TokenizerOptions() tokenizer.Options {
	return tokenizer.Options{
		Kind:      d.Tokenizer,
		Encoding:  d.Encoding,
		Lowercase: d.Lowercase,
	}
}
