package dataset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/born-ml/mrcqa/internal/tokenizer"
	"github.com/born-ml/mrcqa/internal/vocab"
)

// ErrVocabularyChanged is returned when re-tokenizing data against a stored
// vocabulary introduces tokens the vocabulary has never seen.
var ErrVocabularyChanged = errors.New("dataset: vocabulary changed")

// Sequence is a tokenized text: one word id and one list of character ids
// per token.
type Sequence struct {
	Words []int
	Chars [][]int
}

// Len returns the number of tokens.
func (s Sequence) Len() int {
	return len(s.Words)
}

// Example is a tokenized record with its answer span. Start and End are
// inclusive token offsets into Passage.
type Example struct {
	ID      string
	Passage Sequence
	Query   Sequence
	Start   int
	End     int
}

// Options controls tokenization.
type Options struct {
	// Limit truncates passages to this many tokens; 0 means no limit.
	// Examples whose answer ends beyond the limit are dropped.
	Limit int
}

// Stats counts what Tokenize kept and why it skipped records.
type Stats struct {
	Records     int
	Kept        int
	Unanswered  int
	NoSpan      int
	BeyondLimit int
}

// Tokenize converts records into examples, adding unseen tokens to words
// and unseen characters to chars.
//
// Ids are assigned in record order, passage before query, so identical
// input always yields identical vocabularies. Queries are wrapped in the
// vocab.SOS and vocab.EOS sentinels, whose character lists are empty.
// Records without answers, or whose first answer is not a passage span,
// are skipped before any of their tokens reach the vocabularies.
func Tokenize(records []Record, tok tokenizer.Tokenizer, words, chars *vocab.Vocabulary, opts Options) ([]Example, Stats) {
	stats := Stats{Records: len(records)}
	examples := make([]Example, 0, len(records))

	for _, rec := range records {
		if len(rec.Answers) == 0 {
			stats.Unanswered++
			continue
		}

		passage := tok.Tokenize(rec.Passage)
		start, end, ok := answerSpan(rec.Passage, passage, rec.Answers[0])
		if !ok {
			stats.NoSpan++
			continue
		}
		if opts.Limit > 0 {
			if end >= opts.Limit {
				stats.BeyondLimit++
				continue
			}
			if len(passage) > opts.Limit {
				passage = passage[:opts.Limit]
			}
		}

		query := tok.Tokenize(rec.Query)
		ex := Example{
			ID:      rec.ID,
			Passage: encode(tokenizer.Texts(passage), words, chars),
			Query:   encodeQuery(tokenizer.Texts(query), words, chars),
			Start:   start,
			End:     end,
		}
		examples = append(examples, ex)
		stats.Kept++
	}

	return examples, stats
}

// Retokenize tokenizes records against copies of stored vocabularies and
// fails with ErrVocabularyChanged if either copy grew.
func Retokenize(records []Record, tok tokenizer.Tokenizer, words, chars *vocab.Vocabulary, opts Options) ([]Example, Stats, error) {
	w, c := words.Clone(), chars.Clone()
	examples, stats := Tokenize(records, tok, w, c, opts)

	if w.Len() != words.Len() {
		return nil, stats, fmt.Errorf("%w: %d words stored, %d after re-tokenizing",
			ErrVocabularyChanged, words.Len(), w.Len())
	}
	if c.Len() != chars.Len() {
		return nil, stats, fmt.Errorf("%w: %d characters stored, %d after re-tokenizing",
			ErrVocabularyChanged, chars.Len(), c.Len())
	}
	return examples, stats, nil
}

func encode(tokens []string, words, chars *vocab.Vocabulary) Sequence {
	seq := Sequence{
		Words: make([]int, len(tokens)),
		Chars: make([][]int, len(tokens)),
	}
	for i, t := range tokens {
		seq.Words[i] = words.Add(t)
		seq.Chars[i] = encodeChars(t, chars)
	}
	return seq
}

func encodeQuery(tokens []string, words, chars *vocab.Vocabulary) Sequence {
	body := encode(tokens, words, chars)
	seq := Sequence{
		Words: make([]int, 0, len(tokens)+2),
		Chars: make([][]int, 0, len(tokens)+2),
	}
	seq.Words = append(seq.Words, words.Add(vocab.SOS))
	seq.Chars = append(seq.Chars, []int{})
	seq.Words = append(seq.Words, body.Words...)
	seq.Chars = append(seq.Chars, body.Chars...)
	seq.Words = append(seq.Words, words.Add(vocab.EOS))
	seq.Chars = append(seq.Chars, []int{})
	return seq
}

func encodeChars(token string, chars *vocab.Vocabulary) []int {
	ids := make([]int, 0, len(token))
	for _, r := range token {
		ids = append(ids, chars.Add(string(r)))
	}
	return ids
}

// answerSpan maps the byte range of ans onto inclusive token offsets.
func answerSpan(passage string, tokens []tokenizer.Token, ans Answer) (start, end int, ok bool) {
	if strings.TrimSpace(ans.Text) == "" {
		return 0, 0, false
	}

	var lo int
	if ans.Start != nil {
		lo = *ans.Start
		if lo < 0 || lo+len(ans.Text) > len(passage) || passage[lo:lo+len(ans.Text)] != ans.Text {
			return 0, 0, false
		}
	} else {
		lo = strings.Index(passage, ans.Text)
		if lo < 0 {
			return 0, 0, false
		}
	}
	hi := lo + len(ans.Text)

	start, end = -1, -1
	for i, t := range tokens {
		if t.End <= lo || t.Start >= hi {
			continue
		}
		if start < 0 {
			start = i
		}
		end = i
	}
	if start < 0 {
		return 0, 0, false
	}
	return start, end, true
}
