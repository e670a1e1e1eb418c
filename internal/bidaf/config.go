package bidaf

import "fmt"

// Config holds the architecture hyperparameters.
type Config struct {
	WordDim      int   `yaml:"word_dim"`
	CharDim      int   `yaml:"char_dim"`
	HiddenSize   int   `yaml:"hidden_size"`
	ModelingSize int   `yaml:"modeling_size"`
	Seed         int64 `yaml:"seed"`
}

// DefaultConfig returns the default architecture.
func DefaultConfig() Config {
	return Config{
		WordDim:      32,
		CharDim:      16,
		HiddenSize:   32,
		ModelingSize: 32,
		Seed:         1,
	}
}

// Validate checks that every dimension is positive.
func (c Config) Validate() error {
	dims := []struct {
		name  string
		value int
	}{
		{"word_dim", c.WordDim},
		{"char_dim", c.CharDim},
		{"hidden_size", c.HiddenSize},
		{"modeling_size", c.ModelingSize},
	}
	for _, d := range dims {
		if d.value <= 0 {
			return fmt.Errorf("bidaf.%s must be positive, got %d", d.name, d.value)
		}
	}
	return nil
}
