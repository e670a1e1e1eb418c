// Package vocab maps tokens to dense integer ids and back.
//
// Id 0 is always the empty string and doubles as the unknown and padding id.
// Ids are assigned in order of first appearance and are never reassigned, so
// building a vocabulary twice from identical input yields identical ids.
package vocab

import (
	"errors"
	"fmt"
)

// Reserved tokens.
const (
	Unknown = ""
	SOS     = "<sos>"
	EOS     = "<eos>"
)

// ErrDuplicateToken is returned by FromTokens when a token appears twice.
var ErrDuplicateToken = errors.New("vocab: duplicate token")

// Vocabulary is a bijection between tokens and ids.
type Vocabulary struct {
	tokens []string
	ids    map[string]int
}

// New creates a vocabulary holding Unknown at id 0 followed by reserved.
func New(reserved ...string) *Vocabulary {
	v := &Vocabulary{ids: make(map[string]int)}
	v.Add(Unknown)
	for _, tok := range reserved {
		v.Add(tok)
	}
	return v
}

// NewWords creates a word vocabulary with the sequence sentinels registered.
func NewWords() *Vocabulary {
	return New(SOS, EOS)
}

// NewChars creates a character vocabulary.
func NewChars() *Vocabulary {
	return New()
}

// FromTokens rebuilds a vocabulary from its id-ordered token list.
// The first token must be Unknown.
func FromTokens(tokens []string) (*Vocabulary, error) {
	if len(tokens) == 0 || tokens[0] != Unknown {
		return nil, fmt.Errorf("vocab: id 0 must be the empty token")
	}
	v := &Vocabulary{
		tokens: make([]string, 0, len(tokens)),
		ids:    make(map[string]int, len(tokens)),
	}
	for i, tok := range tokens {
		if _, ok := v.ids[tok]; ok {
			return nil, fmt.Errorf("%w: %q at id %d", ErrDuplicateToken, tok, i)
		}
		v.ids[tok] = i
		v.tokens = append(v.tokens, tok)
	}
	return v, nil
}

// Add returns the id of tok, registering it if unseen.
func (v *Vocabulary) Add(tok string) int {
	if id, ok := v.ids[tok]; ok {
		return id
	}
	id := len(v.tokens)
	v.ids[tok] = id
	v.tokens = append(v.tokens, tok)
	return id
}

// ID returns the id of tok, or 0 if tok is unknown.
func (v *Vocabulary) ID(tok string) int {
	return v.ids[tok]
}

// Contains reports whether tok has an id.
func (v *Vocabulary) Contains(tok string) bool {
	_, ok := v.ids[tok]
	return ok
}

// Token returns the token with the given id, or Unknown when out of range.
func (v *Vocabulary) Token(id int) string {
	if id < 0 || id >= len(v.tokens) {
		return Unknown
	}
	return v.tokens[id]
}

// Len returns the number of ids, including id 0.
func (v *Vocabulary) Len() int {
	return len(v.tokens)
}

// Tokens returns a copy of the id-ordered token list.
func (v *Vocabulary) Tokens() []string {
	out := make([]string, len(v.tokens))
	copy(out, v.tokens)
	return out
}

// Clone returns an independent copy.
func (v *Vocabulary) Clone() *Vocabulary {
	c := &Vocabulary{
		tokens: v.Tokens(),
		ids:    make(map[string]int, len(v.ids)),
	}
	for tok, id := range v.ids {
		c.ids[tok] = id
	}
	return c
}

// Equal reports whether both vocabularies assign the same ids.
func (v *Vocabulary) Equal(other *Vocabulary) bool {
	if v.Len() != other.Len() {
		return false
	}
	for i, tok := range v.tokens {
		if other.tokens[i] != tok {
			return false
		}
	}
	return true
}
