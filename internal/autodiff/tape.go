package autodiff

import (
	"github.com/born-ml/mrcqa/internal/autodiff/ops"
	"github.com/born-ml/mrcqa/internal/tensor"
)

// GradientTape records operations during the forward pass and computes
// gradients during the backward pass using reverse-mode automatic differentiation.
//
// Usage:
//
//	tape := NewGradientTape()
//	tape.StartRecording()
//	// ... perform operations ...
//	gradients := tape.Backward(outputGrad, backend)
type GradientTape struct {
	operations []ops.Operation // Recorded operations (in execution order)
	recording  bool
}

// NewGradientTape creates a new gradient tape.
func NewGradientTape() *GradientTape {
	return &GradientTape{
		operations: make([]ops.Operation, 0, 256),
	}
}

// StartRecording enables operation recording.
func (t *GradientTape) StartRecording() {
	t.recording = true
}

// StopRecording disables operation recording.
func (t *GradientTape) StopRecording() {
	t.recording = false
}

// IsRecording returns true if the tape is currently recording operations.
func (t *GradientTape) IsRecording() bool {
	return t.recording
}

// Record adds an operation to the tape.
// Only records if the tape is currently recording.
func (t *GradientTape) Record(op ops.Operation) {
	if t.recording {
		t.operations = append(t.operations, op)
	}
}

// Clear resets the tape, removing all recorded operations.
// Recording state is preserved.
func (t *GradientTape) Clear() {
	clear(t.operations)
	t.operations = t.operations[:0]
}

// NumOps returns the number of recorded operations.
func (t *GradientTape) NumOps() int {
	return len(t.operations)
}

// Backward computes gradients by walking the tape in reverse from output.
//
// Algorithm:
//  1. Seed output with outputGrad
//  2. Walk operations in reverse order
//  3. For each operation whose output has a gradient, apply the chain rule
//  4. Accumulate gradients when the same tensor feeds several operations
//
// Returns a map from RawTensor to its accumulated gradient.
func (t *GradientTape) Backward(output, outputGrad *tensor.RawTensor, backend tensor.Backend) map[*tensor.RawTensor]*tensor.RawTensor {
	grads := make(map[*tensor.RawTensor]*tensor.RawTensor)
	if len(t.operations) == 0 {
		return grads
	}

	// Stop recording during backward pass to prevent recording gradient operations.
	wasRecording := t.recording
	t.recording = false
	defer func() {
		t.recording = wasRecording
	}()

	grads[output] = outputGrad
	// Gradients the tape allocated itself; only these are summed in place.
	owned := make(map[*tensor.RawTensor]bool)

	for i := len(t.operations) - 1; i >= 0; i-- {
		op := t.operations[i]
		opGrad, ok := grads[op.Output()]
		if !ok {
			continue
		}
		if s, ok := op.(ops.ScatterOperation); ok {
			scatterGrad(s, opGrad, grads, owned)
			continue
		}
		inputGrads := op.Backward(opGrad, backend)
		accumulateGrads(op.Inputs(), inputGrads, grads, owned)
	}

	return grads
}

// accumulateGrads adds each input gradient to the running total for its input.
//
// Gradient tensors may be shared between entries (AddOp passes its output
// gradient straight through), so the first sum for an input goes to a fresh
// tensor and later sums reuse it.
func accumulateGrads(inputs, inputGrads []*tensor.RawTensor, grads map[*tensor.RawTensor]*tensor.RawTensor, owned map[*tensor.RawTensor]bool) {
	for j, input := range inputs {
		if j >= len(inputGrads) || inputGrads[j] == nil {
			continue
		}
		g := inputGrads[j]
		existing, ok := grads[input]
		if !ok {
			// g may now be referenced twice.
			delete(owned, g)
			grads[input] = g
			continue
		}
		tensor.AddInto(ownedGrad(input, existing, grads, owned), g)
	}
}

// scatterGrad adds the sparse gradient of op into the accumulator of its input.
func scatterGrad(op ops.ScatterOperation, opGrad *tensor.RawTensor, grads map[*tensor.RawTensor]*tensor.RawTensor, owned map[*tensor.RawTensor]bool) {
	input := op.Inputs()[0]
	dst, ok := grads[input]
	if !ok {
		dst = tensor.Zeros(input.Shape(), tensor.CPU)
		grads[input] = dst
		owned[dst] = true
	} else {
		dst = ownedGrad(input, dst, grads, owned)
	}
	op.AccumulateGrad(opGrad, dst)
}

// ownedGrad returns a gradient for input that may be written in place,
// copying existing first if the tape does not own it.
func ownedGrad(input, existing *tensor.RawTensor, grads map[*tensor.RawTensor]*tensor.RawTensor, owned map[*tensor.RawTensor]bool) *tensor.RawTensor {
	if owned[existing] {
		return existing
	}
	sum := existing.Clone()
	grads[input] = sum
	owned[sum] = true
	return sum
}
