// Package tokenizer splits passages and questions into tokens with byte
// offsets back into the source text.
//
// Two implementations are provided:
//   - Word: Unicode letter/digit runs and single punctuation marks, NFKC-normalized
//   - TikToken: OpenAI BPE pieces via pkoukk/tiktoken-go
package tokenizer

import "fmt"

// Token is one token of a text. Start and End are byte offsets into the
// original text, End exclusive; Text may differ from text[Start:End] after
// normalization.
type Token struct {
	Text  string
	Start int
	End   int
}

// Tokenizer is the core interface for text tokenization.
type Tokenizer interface {
	// Tokenize splits text into tokens in reading order.
	Tokenize(text string) []Token

	// Name returns the tokenizer name.
	Name() string
}

// Options selects and configures a tokenizer.
type Options struct {
	Kind      string // "word" or "tiktoken"
	Encoding  string // tiktoken encoding name
	Lowercase bool
}

// New builds the tokenizer described by opts.
func New(opts Options) (Tokenizer, error) {
	switch opts.Kind {
	case "", KindWord:
		return NewWord(opts.Lowercase), nil
	case KindTikToken:
		return NewTikToken(opts.Encoding, opts.Lowercase)
	default:
		return nil, fmt.Errorf("unknown tokenizer %q", opts.Kind)
	}
}

// Tokenizer kinds accepted by New.
const (
	KindWord     = "word"
	KindTikToken = "tiktoken"
)

// Texts returns the Text field of every token.
func Texts(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Text
	}
	return out
}
