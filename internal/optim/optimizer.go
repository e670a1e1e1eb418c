// Package optim implements the optimization algorithm used for training.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - Adam: Adaptive Moment Estimation with L2 weight decay and exportable state
//
// Example usage:
//
//	cfg := optim.DefaultAdamConfig()
//	cfg.LR = 0.01
//	optimizer := optim.NewAdam(model.Parameters(), cfg)
//
//	for batch := range batches {
//	    ad.Tape().StartRecording()
//	    loss := model.Loss(ad, batch)
//	    grads := ad.Backward(loss)
//	    optimizer.Step(grads)
//	    ad.Tape().Clear()
//	}
package optim

import (
	"errors"

	"github.com/born-ml/mrcqa/internal/nn"
	"github.com/born-ml/mrcqa/internal/tensor"
)

// ErrStateMismatch is returned when restored optimizer state does not fit the
// parameters being optimized.
var ErrStateMismatch = errors.New("optim: state does not match parameters")

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies gradient updates to all parameters.
	//
	// Takes a gradient map from Backward() and updates parameters in-place.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32
}

// getGradient safely retrieves gradient for a parameter.
//
// Returns nil if no gradient is found (parameter wasn't part of computation graph).
func getGradient(param *nn.Parameter, grads map[*tensor.RawTensor]*tensor.RawTensor) *tensor.RawTensor {
	if param == nil {
		return nil
	}
	return grads[param.Tensor()]
}
