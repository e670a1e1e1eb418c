// Package bidaf implements a bidirectional-attention-flow span model.
//
// Architecture, for a passage of T tokens and a query of J tokens:
//
//	Word embedding [T, word_dim] ++ mean char embedding [T, char_dim]
//	Encoder: Linear + tanh -> H [T, hidden], U [J, hidden] (shared weights)
//	Similarity: S[t,j] = w1·H[t] + w2·U[j] + w3·(H[t] ∘ U[j])      [T, J]
//	Context-to-query: Ũ = softmax_rows(S) U                         [T, hidden]
//	Query-to-context: h̃ = softmax(max_cols(S))ᵀ H, tiled over T      [1, hidden]
//	G = [H; Ũ; H∘Ũ; H∘h̃]                                           [T, 4·hidden]
//	Modeling: M = tanh(G Wm + bm)                                   [T, modeling]
//	Start logits: [G; M] w_start                                    [1, T]
//	End logits:   [G; M2] w_end with M2 = tanh([M; M∘M[s]] We + be) [1, T]
//
// The end pointer is conditioned on a start position s: the gold start
// under teacher forcing, otherwise the model's own start prediction.
package bidaf

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/born-ml/mrcqa/internal/autodiff"
	"github.com/born-ml/mrcqa/internal/dataset"
	"github.com/born-ml/mrcqa/internal/nn"
	"github.com/born-ml/mrcqa/internal/tensor"
)

// ErrShapeMismatch is returned when stored tensors do not fit the model.
var ErrShapeMismatch = errors.New("bidaf: shape mismatch")

// Model is the span model.
type Model struct {
	cfg Config

	wordEmb *nn.Embedding
	charEmb *nn.Embedding
	encoder *nn.Linear

	simContext *nn.Parameter // w1 [hidden, 1]
	simQuery   *nn.Parameter // w2 [hidden, 1]
	simProduct *nn.Parameter // w3 [1, hidden]

	modeling *nn.Linear
	endMod   *nn.Linear
	start    *nn.Linear
	end      *nn.Linear
}

// Option configures New.
type Option func(*options)

type options struct {
	wordEmbeddings *tensor.RawTensor
}

// WithWordEmbeddings initializes the word embedding table from weight,
// which must have shape [wordVocab, word_dim]. The tensor is owned by the
// model afterwards.
func WithWordEmbeddings(weight *tensor.RawTensor) Option {
	return func(o *options) {
		o.wordEmbeddings = weight
	}
}

// New builds a model for the given vocabulary sizes. Parameters are drawn
// from a generator seeded with cfg.Seed, so equal configs give equal models.
func New(cfg Config, wordVocab, charVocab int, opts ...Option) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if wordVocab <= 0 || charVocab <= 0 {
		return nil, fmt.Errorf("bidaf: empty vocabulary (%d words, %d chars)", wordVocab, charVocab)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // model init, not crypto
	h, g := cfg.HiddenSize, 4*cfg.HiddenSize

	m := &Model{cfg: cfg}
	if o.wordEmbeddings != nil {
		want := tensor.Shape{wordVocab, cfg.WordDim}
		if !o.wordEmbeddings.Shape().Equal(want) {
			return nil, fmt.Errorf("%w: word embeddings %v, expected %v",
				ErrShapeMismatch, o.wordEmbeddings.Shape(), want)
		}
		m.wordEmb = nn.NewEmbeddingWithWeight("word_emb", o.wordEmbeddings)
	} else {
		m.wordEmb = nn.NewEmbedding("word_emb", wordVocab, cfg.WordDim, rng)
	}
	m.charEmb = nn.NewEmbedding("char_emb", charVocab, cfg.CharDim, rng)
	m.encoder = nn.NewLinear("encoder", cfg.WordDim+cfg.CharDim, h, rng)

	m.simContext = nn.NewParameter("attention.w_context", nn.Xavier(h, 1, tensor.Shape{h, 1}, rng))
	m.simQuery = nn.NewParameter("attention.w_query", nn.Xavier(h, 1, tensor.Shape{h, 1}, rng))
	m.simProduct = nn.NewParameter("attention.w_product", nn.Xavier(1, h, tensor.Shape{1, h}, rng))

	m.modeling = nn.NewLinear("modeling", g, cfg.ModelingSize, rng)
	m.endMod = nn.NewLinear("end_modeling", 2*cfg.ModelingSize, cfg.ModelingSize, rng)
	m.start = nn.NewLinear("start", g+cfg.ModelingSize, 1, rng)
	m.end = nn.NewLinear("end", g+cfg.ModelingSize, 1, rng)

	return m, nil
}

// Config returns the architecture of the model.
func (m *Model) Config() Config {
	return m.cfg
}

// WordEmbeddings returns the word embedding weight.
func (m *Model) WordEmbeddings() *tensor.RawTensor {
	return m.wordEmb.Weight.Tensor()
}

// Parameters returns every trainable parameter in a fixed order.
func (m *Model) Parameters() []*nn.Parameter {
	params := make([]*nn.Parameter, 0, 16)
	params = append(params, m.wordEmb.Parameters()...)
	params = append(params, m.charEmb.Parameters()...)
	params = append(params, m.encoder.Parameters()...)
	params = append(params, m.simContext, m.simQuery, m.simProduct)
	params = append(params, m.modeling.Parameters()...)
	params = append(params, m.endMod.Parameters()...)
	params = append(params, m.start.Parameters()...)
	params = append(params, m.end.Parameters()...)
	return params
}

// Output holds the pointer logits of one example, each [1, passage length].
type Output struct {
	StartLogits *tensor.RawTensor
	EndLogits   *tensor.RawTensor
	// StartUsed is the start position the end pointer was conditioned on.
	StartUsed int
}

// Forward scores every passage position as answer start and end.
//
// With teacherForce set the end pointer is conditioned on goldStart,
// otherwise on the arg-max of the start logits.
func (m *Model) Forward(b *autodiff.AutodiffBackend, passage, query dataset.Sequence, goldStart int, teacherForce bool) Output {
	ctx := m.encode(b, passage) // H [T, h]
	qry := m.encode(b, query)   // U [J, h]

	// S = H w1 + (U w2)ᵀ + (H ∘ w3) Uᵀ
	sim := b.MatMul(b.Mul(ctx, m.simProduct.Tensor()), b.Transpose(qry))
	sim = b.Add(sim, b.MatMul(ctx, m.simContext.Tensor()))
	sim = b.Add(sim, b.Transpose(b.MatMul(qry, m.simQuery.Tensor())))

	c2q := b.MatMul(b.SoftmaxRows(sim), qry)
	q2cWeights := b.SoftmaxRows(b.Transpose(b.MaxRows(sim)))
	q2c := b.MatMul(q2cWeights, ctx)

	g := b.ConcatCols(ctx, c2q, b.Mul(ctx, c2q), b.Mul(ctx, q2c))
	mod := b.Tanh(m.modeling.Forward(b, g))

	startLogits := b.Transpose(m.start.Forward(b, b.ConcatCols(g, mod)))

	s := goldStart
	if !teacherForce {
		s = Argmax(startLogits.AsFloat32())
	}
	if s < 0 || s >= passage.Len() {
		panic(fmt.Sprintf("bidaf: start %d outside passage of %d tokens", s, passage.Len()))
	}

	cond := b.Mul(mod, b.SelectRow(mod, s))
	mod2 := b.Tanh(m.endMod.Forward(b, b.ConcatCols(mod, cond)))
	endLogits := b.Transpose(m.end.Forward(b, b.ConcatCols(g, mod2)))

	return Output{StartLogits: startLogits, EndLogits: endLogits, StartUsed: s}
}

func (m *Model) encode(b *autodiff.AutodiffBackend, seq dataset.Sequence) *tensor.RawTensor {
	words := m.wordEmb.Forward(b, seq.Words)
	chars := m.charEmb.ForwardMean(b, seq.Chars)
	return b.Tanh(m.encoder.Forward(b, b.ConcatCols(words, chars)))
}

// Argmax returns the index of the largest value, the first on ties.
func Argmax(xs []float32) int {
	best := 0
	for i, v := range xs {
		if v > xs[best] {
			best = i
		}
	}
	return best
}
