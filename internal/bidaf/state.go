package bidaf

import (
	"fmt"
	"sort"

	"github.com/born-ml/mrcqa/internal/tensor"
)

// StateDict returns the parameter tensors keyed by name. The tensors are
// shared with the model, not copied.
func (m *Model) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	for _, p := range m.Parameters() {
		state[p.Name()] = p.Tensor()
	}
	return state
}

// LoadStateDict copies stored tensors into the model's parameters.
//
// Every parameter must be present with the shape the config implies, and
// no unknown names are allowed. Nothing is copied unless all tensors fit.
func (m *Model) LoadStateDict(state map[string]*tensor.RawTensor) error {
	params := m.Parameters()

	for _, p := range params {
		t, ok := state[p.Name()]
		if !ok {
			return fmt.Errorf("%w: missing tensor %q", ErrShapeMismatch, p.Name())
		}
		if !t.Shape().Equal(p.Tensor().Shape()) {
			return fmt.Errorf("%w: %s stored as %v, model expects %v",
				ErrShapeMismatch, p.Name(), t.Shape(), p.Tensor().Shape())
		}
	}
	if len(state) != len(params) {
		known := make(map[string]bool, len(params))
		for _, p := range params {
			known[p.Name()] = true
		}
		var extra []string
		for name := range state {
			if !known[name] {
				extra = append(extra, name)
			}
		}
		sort.Strings(extra)
		return fmt.Errorf("%w: unexpected tensors %v", ErrShapeMismatch, extra)
	}

	for _, p := range params {
		if err := p.Tensor().CopyFrom(state[p.Name()]); err != nil {
			return fmt.Errorf("load %s: %w", p.Name(), err)
		}
	}
	return nil
}
