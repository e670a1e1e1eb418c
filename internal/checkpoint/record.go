// Package checkpoint persists the training state of an experiment folder in
// a single .born file.
//
// A checkpoint always holds both vocabularies. After the first completed
// epoch it also holds the model tensors, the completed epoch number and
// the Adam history, all written in one atomic replace. The Adam history
// lives in its own checksummed section, so damage there is reported as an
// OptimizerState with status Corrupt instead of failing the whole load.
package checkpoint

import (
	"fmt"

	"github.com/born-ml/mrcqa/internal/optim"
	"github.com/born-ml/mrcqa/internal/serialization"
	"github.com/born-ml/mrcqa/internal/tensor"
	"github.com/born-ml/mrcqa/internal/vocab"
)

// OptimizerStatus tells what a load found in the optimizer section.
type OptimizerStatus int

// Optimizer section states.
const (
	// Absent: no optimizer history was written.
	Absent OptimizerStatus = iota
	// Valid: the history was decoded and verified.
	Valid
	// Corrupt: a history was written but cannot be used; see OptimizerState.Err.
	Corrupt
)

// String returns a human-readable status.
func (s OptimizerStatus) String() string {
	switch s {
	case Absent:
		return "absent"
	case Valid:
		return "valid"
	case Corrupt:
		return "corrupt"
	default:
		return fmt.Sprintf("OptimizerStatus(%d)", int(s))
	}
}

// OptimizerState is the Adam history of a checkpoint.
type OptimizerState struct {
	Status OptimizerStatus
	State  optim.AdamState
	Config optim.AdamConfig
	Err    error
}

// ValidOptimizer wraps a live optimizer history for saving.
func ValidOptimizer(state optim.AdamState, cfg optim.AdamConfig) OptimizerState {
	return OptimizerState{Status: Valid, State: state, Config: cfg}
}

// Training is the state written after a completed epoch.
type Training struct {
	// Epoch is the last completed epoch, counted from 0.
	Epoch int
	// Step is the number of optimizer steps taken so far.
	Step int64
	// Loss is the mean batch loss of the completed epoch.
	Loss  float64
	Model map[string]*tensor.RawTensor
}

// Record is the content of a checkpoint file.
type Record struct {
	Words *vocab.Vocabulary
	Chars *vocab.Vocabulary

	// Training is nil for a vocabulary-only checkpoint.
	Training  *Training
	Optimizer OptimizerState

	// Meta holds free-form run information (model config, tokenizer).
	Meta map[string]any

	// Tensors is the tensor table of a loaded file.
	Tensors []serialization.TensorMeta
}

// Epoch returns the completed epoch, or -1 for a vocabulary-only record.
func (r *Record) Epoch() int {
	if r.Training == nil {
		return -1
	}
	return r.Training.Epoch
}
