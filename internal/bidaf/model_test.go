package bidaf

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/mrcqa/internal/autodiff"
	"github.com/born-ml/mrcqa/internal/backend/cpu"
	"github.com/born-ml/mrcqa/internal/dataset"
	"github.com/born-ml/mrcqa/internal/nn"
	"github.com/born-ml/mrcqa/internal/optim"
	"github.com/born-ml/mrcqa/internal/tensor"
)

func smallConfig() Config {
	return Config{WordDim: 6, CharDim: 4, HiddenSize: 5, ModelingSize: 3, Seed: 7}
}

func sampleSequences() (passage, query dataset.Sequence) {
	passage = dataset.Sequence{
		Words: []int{3, 4, 5, 6},
		Chars: [][]int{{1, 2}, {3}, {4, 5}, {}},
	}
	query = dataset.Sequence{
		Words: []int{1, 7, 5, 2},
		Chars: [][]int{{}, {6, 2}, {4, 5}, {}},
	}
	return passage, query
}

func newModel(t *testing.T, cfg Config, opts ...Option) *Model {
	t.Helper()
	m, err := New(cfg, 9, 8, opts...)
	require.NoError(t, err)
	return m
}

func TestNew_ParameterNamesAreUnique(t *testing.T) {
	m := newModel(t, smallConfig())

	params := m.Parameters()
	assert.Len(t, params, 15)

	seen := map[string]bool{}
	for _, p := range params {
		assert.False(t, seen[p.Name()], "duplicate %s", p.Name())
		seen[p.Name()] = true
	}
	assert.True(t, seen["word_emb.weight"])
	assert.True(t, seen["attention.w_product"])
	assert.Len(t, m.StateDict(), 15)
}

func TestNew_RejectsBadInput(t *testing.T) {
	cfg := smallConfig()
	cfg.HiddenSize = 0
	_, err := New(cfg, 9, 8)
	assert.Error(t, err)

	_, err = New(smallConfig(), 0, 8)
	assert.Error(t, err)

	_, err = New(smallConfig(), 9, 8, WithWordEmbeddings(tensor.Zeros(tensor.Shape{9, 5}, tensor.CPU)))
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestNew_SeedIsReproducible(t *testing.T) {
	a := newModel(t, smallConfig()).StateDict()
	b := newModel(t, smallConfig()).StateDict()
	for name, ta := range a {
		assert.True(t, ta.Equal(b[name]), name)
	}
}

func TestWithWordEmbeddings(t *testing.T) {
	weight := tensor.Full(tensor.Shape{9, 6}, 0.5, tensor.CPU)
	m := newModel(t, smallConfig(), WithWordEmbeddings(weight))

	assert.Same(t, weight, m.WordEmbeddings())
}

func TestForward_Shapes(t *testing.T) {
	m := newModel(t, smallConfig())
	b := autodiff.New(cpu.New())
	passage, query := sampleSequences()

	out := m.Forward(b, passage, query, 2, true)
	assert.Equal(t, tensor.Shape{1, 4}, out.StartLogits.Shape())
	assert.Equal(t, tensor.Shape{1, 4}, out.EndLogits.Shape())
	assert.Equal(t, 2, out.StartUsed)
	assert.True(t, tensor.IsFinite(out.StartLogits))
	assert.True(t, tensor.IsFinite(out.EndLogits))

	free := m.Forward(b, passage, query, 2, false)
	assert.Equal(t, Argmax(free.StartLogits.AsFloat32()), free.StartUsed)
}

func TestForward_SingleTokenPassage(t *testing.T) {
	m := newModel(t, smallConfig())
	b := autodiff.New(cpu.New())
	_, query := sampleSequences()
	passage := dataset.Sequence{Words: []int{3}, Chars: [][]int{{1}}}

	out := m.Forward(b, passage, query, 0, true)
	assert.Equal(t, tensor.Shape{1, 1}, out.StartLogits.Shape())
	assert.Equal(t, tensor.Shape{1, 1}, out.EndLogits.Shape())
}

func TestForward_EveryParameterGetsGradient(t *testing.T) {
	m := newModel(t, smallConfig())
	b := autodiff.New(cpu.New())
	passage, query := sampleSequences()

	b.Tape().StartRecording()
	out := m.Forward(b, passage, query, 1, true)
	loss := nn.SpanLoss(b, out.StartLogits, out.EndLogits, 1, 2)
	grads := b.Backward(loss)

	for _, p := range m.Parameters() {
		g, ok := grads[p.Tensor()]
		require.True(t, ok, "no gradient for %s", p.Name())
		assert.Equal(t, p.Tensor().Shape(), g.Shape(), p.Name())
	}
}

func TestTraining_LossDecreases(t *testing.T) {
	m := newModel(t, smallConfig())
	b := autodiff.New(cpu.New())
	cfg := optim.DefaultAdamConfig()
	cfg.LR = 0.01
	adam := optim.NewAdam(m.Parameters(), cfg)
	passage, query := sampleSequences()

	step := func() float32 {
		b.Tape().StartRecording()
		out := m.Forward(b, passage, query, 1, true)
		loss := nn.SpanLoss(b, out.StartLogits, out.EndLogits, 1, 2)
		grads := b.Backward(loss)
		adam.Step(grads)
		b.Tape().Clear()
		return loss.Item()
	}

	first := step()
	var last float32
	for range 100 {
		last = step()
	}
	assert.Less(t, last, first)
}

func TestStateDict_RoundTrip(t *testing.T) {
	src := newModel(t, smallConfig())
	cfg := smallConfig()
	cfg.Seed = 99
	dst := newModel(t, cfg)

	require.NoError(t, dst.LoadStateDict(src.StateDict()))
	for name, want := range src.StateDict() {
		assert.True(t, want.Equal(dst.StateDict()[name]), name)
	}
	assert.NotSame(t, src.WordEmbeddings(), dst.WordEmbeddings())
}

func TestLoadStateDict_Mismatch(t *testing.T) {
	bigger := smallConfig()
	bigger.HiddenSize = 8
	other := newModel(t, bigger).StateDict()

	withExtra := newModel(t, smallConfig()).StateDict()
	withExtra["unknown.weight"] = tensor.Zeros(tensor.Shape{1, 1}, tensor.CPU)

	missing := newModel(t, smallConfig()).StateDict()
	delete(missing, "end.bias")

	tests := []struct {
		name  string
		state map[string]*tensor.RawTensor
	}{
		{"shape", other},
		{"extra", withExtra},
		{"missing", missing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newModel(t, smallConfig())
			before := m.WordEmbeddings().Clone()

			err := m.LoadStateDict(tt.state)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrShapeMismatch))
			assert.True(t, before.Equal(m.WordEmbeddings()), "failed load must not modify the model")
		})
	}
}

func TestArgmax(t *testing.T) {
	assert.Equal(t, 0, Argmax([]float32{1}))
	assert.Equal(t, 2, Argmax([]float32{1, 3, 4, 2}))
	assert.Equal(t, 1, Argmax([]float32{0, 5, 5}))
}
