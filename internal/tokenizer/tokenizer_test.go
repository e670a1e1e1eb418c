package tokenizer

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWord_Tokenize(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		lowercase bool
		want      []string
	}{
		{"simple", "The cat sat.", false, []string{"The", "cat", "sat", "."}},
		{"lowercase", "The Cat", true, []string{"the", "cat"}},
		{"punctuation runs", "Hi!!", false, []string{"Hi", "!", "!"}},
		{"digits", "in 1969, men", false, []string{"in", "1969", ",", "men"}},
		{"nfkc fullwidth", "ＡＢＣ ﬁne", false, []string{"ABC", "fine"}},
		{"empty", "   ", false, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Texts(NewWord(tt.lowercase).Tokenize(tt.text))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWord_OffsetsPointIntoSource(t *testing.T) {
	text := "Où est  le café?"
	tokens := NewWord(false).Tokenize(text)

	require.Len(t, tokens, 5)
	for _, tok := range tokens {
		assert.Equal(t, tok.Text, text[tok.Start:tok.End])
	}
	assert.Equal(t, "café", tokens[3].Text)
}

func TestNew(t *testing.T) {
	tok, err := New(Options{})
	require.NoError(t, err)
	assert.Equal(t, "word", tok.Name())

	_, err = New(Options{Kind: "sentencepiece"})
	assert.Error(t, err)
}

func TestTikToken_Tokenize(t *testing.T) {
	tok, err := NewTikToken("cl100k_base", false)
	if err != nil {
		t.Skipf("cl100k_base unavailable: %v", err)
	}
	assert.Equal(t, "tiktoken:cl100k_base", tok.Name())

	text := "Hello world, tokenizers"
	tokens := tok.Tokenize(text)
	require.NotEmpty(t, tokens)

	assert.Equal(t, "Hello", tokens[0].Text)
	for _, tt := range tokens {
		assert.NotContains(t, tt.Text, " ")
		assert.Equal(t, tt.Text, text[tt.Start:tt.End])
	}
}

func TestTikToken_NonASCII(t *testing.T) {
	tok, err := NewTikToken("cl100k_base", false)
	if err != nil {
		t.Skipf("cl100k_base unavailable: %v", err)
	}

	text := "Tea 🙂 in 東京 and 日本語"
	tokens := tok.Tokenize(text)
	require.NotEmpty(t, tokens)
	for _, tt := range tokens {
		assert.True(t, utf8.ValidString(tt.Text), "token %q", tt.Text)
		assert.Equal(t, tt.Text, text[tt.Start:tt.End])
	}
}

func TestPiecesToTokens(t *testing.T) {
	tests := []struct {
		name   string
		pieces []string
		want   []Token
	}{
		{
			name:   "ascii",
			pieces: []string{"Hello", " world", "  "},
			want:   []Token{{"Hello", 0, 5}, {"world", 6, 11}},
		},
		{
			name:   "split emoji and cjk",
			pieces: []string{"Hi", " \xf0\x9f", "\x99\x82", " \xe6\x97", "\xa5\xe6\x9c\xac"},
			want:   []Token{{"Hi", 0, 2}, {"🙂", 3, 7}, {"日本", 8, 14}},
		},
		{
			name:   "incomplete tail",
			pieces: []string{"a", "\xf0\x9f"},
			want:   []Token{{"a", 0, 1}, {"\uFFFD", 1, 3}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := piecesToTokens(tt.pieces, false)
			assert.Equal(t, tt.want, got)
			for _, tok := range got {
				assert.True(t, utf8.ValidString(tok.Text), "token %q", tok.Text)
			}
		})
	}
}

func TestPiecesToTokens_Lowercase(t *testing.T) {
	got := piecesToTokens([]string{"ÉTÉ", " Tea"}, true)
	assert.Equal(t, []string{"été", "tea"}, Texts(got))
}

func TestTikToken_InvalidEncoding(t *testing.T) {
	tok, err := NewTikToken("invalid_encoding_xyz", false)
	assert.Error(t, err)
	assert.Nil(t, tok)
}
