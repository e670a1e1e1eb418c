package optim

import (
	"fmt"
	"math"
	"slices"

	"github.com/born-ml/mrcqa/internal/nn"
	"github.com/born-ml/mrcqa/internal/tensor"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule:
//
//	g   = gradient + weight_decay * param              // L2 penalty
//	m_t = beta1 * m_{t-1} + (1-beta1) * g              // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * g²             // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)   // Parameter update
//
// Moments are keyed by parameter name so they can be checkpointed and
// restored onto a freshly built model.
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam struct {
	params      []*nn.Parameter
	lr          float32
	beta1       float32
	beta2       float32
	eps         float32
	weightDecay float32
	t           int                          // Timestep for bias correction
	m           map[string]*tensor.RawTensor // First moment estimates
	v           map[string]*tensor.RawTensor // Second moment estimates
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR          float32    `json:"lr"`           // Learning rate
	Betas       [2]float32 `json:"betas"`        // Running-average coefficients
	Eps         float32    `json:"eps"`          // Term for numerical stability
	WeightDecay float32    `json:"weight_decay"` // L2 penalty
}

// AdamState is the exportable optimizer history.
type AdamState struct {
	Step int
	M    map[string]*tensor.RawTensor
	V    map[string]*tensor.RawTensor
}

// DefaultAdamConfig returns the usual Adam hyperparameters:
// lr 0.001, betas (0.9, 0.999), eps 1e-8 and no weight decay.
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{
		LR:    0.001,
		Betas: [2]float32{0.9, 0.999},
		Eps:   1e-8,
	}
}

// NewAdam creates a new Adam optimizer with empty history.
//
// Every field of config is used as given, zeros included; start from
// DefaultAdamConfig to override only some of them.
func NewAdam(params []*nn.Parameter, config AdamConfig) *Adam {
	return &Adam{
		params:      params,
		lr:          config.LR,
		beta1:       config.Betas[0],
		beta2:       config.Betas[1],
		eps:         config.Eps,
		weightDecay: config.WeightDecay,
		m:           make(map[string]*tensor.RawTensor),
		v:           make(map[string]*tensor.RawTensor),
	}
}

// Step performs a single optimization step using Adam algorithm.
// Parameters with no gradient are skipped.
func (a *Adam) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	a.t++

	biasCorrection1 := float32(1.0 - math.Pow(float64(a.beta1), float64(a.t)))
	biasCorrection2 := float32(1.0 - math.Pow(float64(a.beta2), float64(a.t)))

	for _, param := range a.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}

		m, ok := a.m[param.Name()]
		if !ok {
			m = tensor.Zeros(param.Tensor().Shape(), tensor.CPU)
			a.m[param.Name()] = m
		}
		v, ok := a.v[param.Name()]
		if !ok {
			v = tensor.Zeros(param.Tensor().Shape(), tensor.CPU)
			a.v[param.Name()] = v
		}

		a.updateParameter(param.Tensor(), grad, m, v, biasCorrection1, biasCorrection2)
	}
}

// updateParameter performs Adam update for a single parameter in place.
func (a *Adam) updateParameter(param, grad, m, v *tensor.RawTensor, biasCorrection1, biasCorrection2 float32) {
	p := param.AsFloat32()
	g := grad.AsFloat32()
	md := m.AsFloat32()
	vd := v.AsFloat32()

	for i := range p {
		gi := g[i] + a.weightDecay*p[i]

		md[i] = a.beta1*md[i] + (1-a.beta1)*gi
		vd[i] = a.beta2*vd[i] + (1-a.beta2)*gi*gi

		mHat := md[i] / biasCorrection1
		vHat := vd[i] / biasCorrection2

		p[i] -= a.lr * mHat / (float32(math.Sqrt(float64(vHat))) + a.eps)
	}
}

// ZeroGrad clears gradients of all parameters.
func (a *Adam) ZeroGrad() {
	for _, param := range a.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (a *Adam) GetLR() float32 {
	return a.lr
}

// SetLR updates the learning rate.
func (a *Adam) SetLR(lr float32) {
	a.lr = lr
}

// GetTimestep returns the current timestep.
func (a *Adam) GetTimestep() int {
	return a.t
}

// Config returns the hyperparameters in effect.
func (a *Adam) Config() AdamConfig {
	return AdamConfig{
		LR:          a.lr,
		Betas:       [2]float32{a.beta1, a.beta2},
		Eps:         a.eps,
		WeightDecay: a.weightDecay,
	}
}

// State returns a deep copy of the optimizer history.
func (a *Adam) State() AdamState {
	s := AdamState{
		Step: a.t,
		M:    make(map[string]*tensor.RawTensor, len(a.m)),
		V:    make(map[string]*tensor.RawTensor, len(a.v)),
	}
	for name, m := range a.m {
		s.M[name] = m.Clone()
	}
	for name, v := range a.v {
		s.V[name] = v.Clone()
	}
	return s
}

// LoadState replaces the optimizer history with a copy of s.
//
// Every moment must belong to a parameter of this optimizer and match its
// shape; on any mismatch the current history is left untouched.
func (a *Adam) LoadState(s AdamState) error {
	if s.Step < 0 {
		return fmt.Errorf("%w: negative step %d", ErrStateMismatch, s.Step)
	}

	shapes := make(map[string]tensor.Shape, len(a.params))
	for _, p := range a.params {
		shapes[p.Name()] = p.Tensor().Shape()
	}

	check := func(kind string, moments map[string]*tensor.RawTensor) error {
		for name, t := range moments {
			shape, ok := shapes[name]
			if !ok {
				return fmt.Errorf("%w: %s moment for unknown parameter %q", ErrStateMismatch, kind, name)
			}
			if !shape.Equal(t.Shape()) {
				return fmt.Errorf("%w: %s moment %q has shape %v, parameter has %v",
					ErrStateMismatch, kind, name, t.Shape(), shape)
			}
		}
		return nil
	}
	if err := check("first", s.M); err != nil {
		return err
	}
	if err := check("second", s.V); err != nil {
		return err
	}
	mNames, vNames := sortedKeys(s.M), sortedKeys(s.V)
	if !slices.Equal(mNames, vNames) {
		return fmt.Errorf("%w: first and second moments cover different parameters", ErrStateMismatch)
	}

	a.t = s.Step
	a.m = make(map[string]*tensor.RawTensor, len(s.M))
	a.v = make(map[string]*tensor.RawTensor, len(s.V))
	for name, m := range s.M {
		a.m[name] = m.Clone()
	}
	for name, v := range s.V {
		a.v[name] = v.Clone()
	}
	return nil
}

// StateNames returns the parameter names that have moments, sorted.
func (s AdamState) StateNames() []string {
	return sortedKeys(s.M)
}

func sortedKeys(m map[string]*tensor.RawTensor) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
