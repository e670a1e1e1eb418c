package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Word is a rule-based word tokenizer.
//
// Runs of letters, digits and marks form one token; every other
// non-space rune is a token on its own. Token text is NFKC-normalized
// (so full-width forms and ligatures match their plain spellings) and
// optionally lowercased.
type Word struct {
	lowercase bool
}

// NewWord creates a word tokenizer.
func NewWord(lowercase bool) *Word {
	return &Word{lowercase: lowercase}
}

// Name returns the tokenizer name.
func (w *Word) Name() string {
	if w.lowercase {
		return "word-lower"
	}
	return "word"
}

// Tokenize splits text into word and punctuation tokens.
func (w *Word) Tokenize(text string) []Token {
	var tokens []Token
	start := -1

	flush := func(end int) {
		if start >= 0 {
			tokens = append(tokens, w.token(text, start, end))
			start = -1
		}
	}

	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		switch {
		case isWordRune(r):
			if start < 0 {
				start = i
			}
		case unicode.IsSpace(r):
			flush(i)
		default:
			flush(i)
			tokens = append(tokens, w.token(text, i, i+size))
		}
		i += size
	}
	flush(len(text))

	return tokens
}

func (w *Word) token(text string, start, end int) Token {
	s := norm.NFKC.String(text[start:end])
	if w.lowercase {
		s = strings.ToLower(s)
	}
	return Token{Text: s, Start: start, End: end}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) || r == '_'
}
