package tokenizer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// TikToken wraps the pkoukk/tiktoken-go library for OpenAI BPE encodings.
//
// Supported encodings:
//   - cl100k_base: GPT-4, GPT-3.5-turbo, text-embedding-ada-002
//   - p50k_base: GPT-3, Codex
//   - r50k_base: GPT-3, davinci-002, babbage-002
//
// Each BPE piece becomes one token with surrounding whitespace trimmed;
// pieces that are only whitespace are dropped. Pieces holding part of a
// multi-byte character are merged with their neighbours into one token.
type TikToken struct {
	encoding  *tiktoken.Tiktoken
	name      string
	lowercase bool
}

// NewTikToken creates a new TikToken tokenizer with the specified encoding.
func NewTikToken(encodingName string, lowercase bool) (*TikToken, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %q: %w", encodingName, err)
	}

	return &TikToken{
		encoding:  encoding,
		name:      encodingName,
		lowercase: lowercase,
	}, nil
}

// Name returns the tokenizer name.
func (t *TikToken) Name() string {
	return "tiktoken:" + t.name
}

// Tokenize encodes text and maps every piece back to its byte range.
func (t *TikToken) Tokenize(text string) []Token {
	ids := t.encoding.Encode(text, nil, nil)

	pieces := make([]string, len(ids))
	for i, id := range ids {
		pieces[i] = t.encoding.Decode([]int{id})
	}
	return piecesToTokens(pieces, t.lowercase)
}

// piecesToTokens turns consecutive decoded BPE pieces into tokens.
//
// Byte-level encodings split multi-byte characters across ids, so pieces
// are joined until the pending bytes form valid UTF-8.
func piecesToTokens(pieces []string, lowercase bool) []Token {
	tokens := make([]Token, 0, len(pieces))
	offset, start := 0, 0
	var pending strings.Builder

	emit := func() {
		piece := pending.String()
		pending.Reset()

		trimmed := strings.TrimLeft(piece, " \t\r\n")
		lead := len(piece) - len(trimmed)
		trimmed = strings.TrimRight(trimmed, " \t\r\n")
		if trimmed == "" {
			return
		}
		text := strings.ToValidUTF8(trimmed, string(utf8.RuneError))
		if lowercase {
			text = strings.ToLower(text)
		}
		tokens = append(tokens, Token{
			Text:  text,
			Start: start + lead,
			End:   start + lead + len(trimmed),
		})
	}

	for _, piece := range pieces {
		if pending.Len() == 0 {
			start = offset
		}
		pending.WriteString(piece)
		offset += len(piece)
		if utf8.ValidString(pending.String()) {
			emit()
		}
	}
	// Trailing bytes that never completed a character.
	if pending.Len() > 0 {
		emit()
	}
	return tokens
}
