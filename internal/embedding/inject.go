package embedding

import (
	"fmt"

	"github.com/born-ml/mrcqa/internal/tensor"
	"github.com/born-ml/mrcqa/internal/vocab"
)

// Report counts where injected rows came from.
type Report struct {
	Pretrained int
	Drawn      int
}

// Inject builds an embedding matrix for words.
//
// The result starts as a copy of base ([words.Len(), dim]). Every row other
// than skipID is replaced by the pre-trained vector of its token when pre
// has one, otherwise by a fresh draw from oov. Rows are visited in id
// order, so a seeded oov source yields reproducible matrices. A nil oov
// leaves rows without a pre-trained vector untouched.
func Inject(words *vocab.Vocabulary, skipID int, base *tensor.RawTensor, pre, oov Source) (*tensor.RawTensor, Report, error) {
	var report Report
	if base.Rows() != words.Len() {
		return nil, report, fmt.Errorf("embedding: matrix has %d rows, vocabulary has %d tokens",
			base.Rows(), words.Len())
	}
	dim := base.Cols()
	if pre.Dim() != dim {
		return nil, report, fmt.Errorf("embedding: pre-trained dimension %d, model dimension %d", pre.Dim(), dim)
	}
	if oov != nil && oov.Dim() != dim {
		return nil, report, fmt.Errorf("embedding: fallback dimension %d, model dimension %d", oov.Dim(), dim)
	}

	out := base.Clone()
	for id := 0; id < words.Len(); id++ {
		if id == skipID {
			continue
		}
		tok := words.Token(id)

		vec, ok := pre.Vector(tok)
		if ok {
			report.Pretrained++
		} else if oov != nil {
			vec, _ = oov.Vector(tok)
			report.Drawn++
		} else {
			continue
		}

		row := out.Row(id)
		for j, v := range vec {
			row[j] = float32(v)
		}
	}
	return out, report, nil
}

// Keep returns the token set of words, for LoadText.
func Keep(words *vocab.Vocabulary) map[string]struct{} {
	keep := make(map[string]struct{}, words.Len())
	for _, tok := range words.Tokens() {
		keep[tok] = struct{}{}
	}
	return keep
}
