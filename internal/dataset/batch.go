package dataset

import (
	"errors"
	"iter"
	"math/rand"
)

// ErrBatchSize is returned for a non-positive batch size.
var ErrBatchSize = errors.New("dataset: batch size must be positive")

// Padded holds the sequences of one side (passages or queries) of a batch,
// padded with id 0 to the longest sequence and the longest token.
type Padded struct {
	Words    [][]int   // [batch][MaxLen]
	Chars    [][][]int // [batch][MaxLen][MaxChars]
	Lengths  []int     // tokens per sequence before padding
	CharLens [][]int   // characters per token before padding
	MaxLen   int
	MaxChars int
}

// Sequence returns the unpadded sequence i.
func (p *Padded) Sequence(i int) Sequence {
	n := p.Lengths[i]
	seq := Sequence{
		Words: p.Words[i][:n],
		Chars: make([][]int, n),
	}
	for j := 0; j < n; j++ {
		seq.Chars[j] = p.Chars[i][j][:p.CharLens[i][j]]
	}
	return seq
}

// Batch is a group of examples in shuffled order.
type Batch struct {
	Examples []*Example
	Passages Padded
	Queries  Padded
}

// Size returns the number of examples.
func (b *Batch) Size() int {
	return len(b.Examples)
}

// NewBatch pads examples into a batch.
func NewBatch(examples []*Example) *Batch {
	b := &Batch{Examples: examples}
	passages := make([]Sequence, len(examples))
	queries := make([]Sequence, len(examples))
	for i, ex := range examples {
		passages[i] = ex.Passage
		queries[i] = ex.Query
	}
	b.Passages = pad(passages)
	b.Queries = pad(queries)
	return b
}

func pad(seqs []Sequence) Padded {
	p := Padded{
		Words:    make([][]int, len(seqs)),
		Chars:    make([][][]int, len(seqs)),
		Lengths:  make([]int, len(seqs)),
		CharLens: make([][]int, len(seqs)),
	}
	for _, s := range seqs {
		p.MaxLen = max(p.MaxLen, s.Len())
		for _, c := range s.Chars {
			p.MaxChars = max(p.MaxChars, len(c))
		}
	}

	for i, s := range seqs {
		p.Lengths[i] = s.Len()
		p.Words[i] = make([]int, p.MaxLen)
		copy(p.Words[i], s.Words)

		p.Chars[i] = make([][]int, p.MaxLen)
		p.CharLens[i] = make([]int, p.MaxLen)
		for j := range p.MaxLen {
			p.Chars[i][j] = make([]int, p.MaxChars)
			if j < s.Len() {
				p.CharLens[i][j] = copy(p.Chars[i][j], s.Chars[j])
			}
		}
	}
	return p
}

// EpochGen yields the batches of one epoch at a time.
//
// Every call to Batches draws a fresh permutation from the generator's
// random source and walks it in consecutive slices of the batch size; the
// last batch may be short. Every example appears exactly once per epoch.
type EpochGen struct {
	examples  []Example
	batchSize int
	rng       *rand.Rand
}

// NewEpochGen creates a batch generator over examples.
func NewEpochGen(examples []Example, batchSize int, rng *rand.Rand) (*EpochGen, error) {
	if batchSize <= 0 {
		return nil, ErrBatchSize
	}
	return &EpochGen{examples: examples, batchSize: batchSize, rng: rng}, nil
}

// Len returns the number of batches per epoch.
func (g *EpochGen) Len() int {
	return (len(g.examples) + g.batchSize - 1) / g.batchSize
}

// NumExamples returns the number of examples per epoch.
func (g *EpochGen) NumExamples() int {
	return len(g.examples)
}

// Batches shuffles and returns the batch sequence of one epoch. Batches are
// built lazily as the sequence is consumed.
func (g *EpochGen) Batches() iter.Seq2[int, *Batch] {
	order := g.rng.Perm(len(g.examples))

	return func(yield func(int, *Batch) bool) {
		for i, lo := 0, 0; lo < len(order); i, lo = i+1, lo+g.batchSize {
			hi := min(lo+g.batchSize, len(order))
			group := make([]*Example, 0, hi-lo)
			for _, idx := range order[lo:hi] {
				group = append(group, &g.examples[idx])
			}
			if !yield(i, NewBatch(group)) {
				return
			}
		}
	}
}
