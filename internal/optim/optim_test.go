package optim_test

import (
	"errors"
	"math"
	"testing"

	"github.com/born-ml/mrcqa/internal/nn"
	"github.com/born-ml/mrcqa/internal/optim"
	"github.com/born-ml/mrcqa/internal/tensor"
)

// floatEqual checks if two float32 values are approximately equal.
func floatEqual(a, b, epsilon float32) bool {
	return float32(math.Abs(float64(a-b))) < epsilon
}

func scalarParam(t *testing.T, name string, value float32) *nn.Parameter {
	t.Helper()
	x, err := tensor.FromSlice([]float32{value}, tensor.Shape{1, 1}, tensor.CPU)
	if err != nil {
		t.Fatal(err)
	}
	return nn.NewParameter(name, x)
}

func adamConfig(lr float32) optim.AdamConfig {
	cfg := optim.DefaultAdamConfig()
	cfg.LR = lr
	return cfg
}

func scalarGrad(param *nn.Parameter, g float32) map[*tensor.RawTensor]*tensor.RawTensor {
	return map[*tensor.RawTensor]*tensor.RawTensor{
		param.Tensor(): tensor.Full(tensor.Shape{1, 1}, g, tensor.CPU),
	}
}

// TestAdam_SimpleUpdate tests Adam optimizer update.
func TestAdam_SimpleUpdate(t *testing.T) {
	param := scalarParam(t, "x", 1.0)
	optimizer := optim.NewAdam([]*nn.Parameter{param}, optim.AdamConfig{
		LR:    0.001,
		Betas: [2]float32{0.9, 0.999},
		Eps:   1e-8,
	})

	optimizer.Step(scalarGrad(param, 1.0))

	// After first step (with bias correction):
	// m_hat = 1.0, v_hat = 1.0
	// x_new = 1.0 - 0.001 * 1.0 / (sqrt(1.0) + 1e-8) ≈ 0.999
	actual := param.Tensor().AsFloat32()[0]
	if !floatEqual(actual, 0.999, 1e-5) {
		t.Errorf("Adam first step: got %f, want 0.999", actual)
	}
}

// TestAdam_WeightDecay tests the L2 term is folded into the gradient.
func TestAdam_WeightDecay(t *testing.T) {
	param := scalarParam(t, "x", 2.0)
	cfg := adamConfig(0.1)
	cfg.WeightDecay = 0.5
	optimizer := optim.NewAdam([]*nn.Parameter{param}, cfg)

	// Zero data gradient: the decayed gradient is 0.5*2 = 1, so the first
	// bias-corrected step moves by exactly lr.
	optimizer.Step(scalarGrad(param, 0))

	actual := param.Tensor().AsFloat32()[0]
	if !floatEqual(actual, 1.9, 1e-5) {
		t.Errorf("Adam with weight decay: got %f, want 1.9", actual)
	}
}

// TestAdam_ZeroHyperparametersAreKept tests that zero values are honored.
func TestAdam_ZeroHyperparametersAreKept(t *testing.T) {
	cfg := optim.AdamConfig{LR: 0.01, Betas: [2]float32{0, 0.999}, Eps: 1e-8}
	optimizer := optim.NewAdam([]*nn.Parameter{scalarParam(t, "x", 1)}, cfg)
	if got := optimizer.Config(); got != cfg {
		t.Errorf("Config() = %+v, want %+v", got, cfg)
	}

	zero := optim.NewAdam(nil, optim.AdamConfig{})
	if got := zero.Config(); got != (optim.AdamConfig{}) {
		t.Errorf("Config() = %+v, want zero config", got)
	}
}

// TestAdam_ZeroBeta1HasNoMomentum tests that beta1=0 follows the latest gradient.
func TestAdam_ZeroBeta1HasNoMomentum(t *testing.T) {
	param := scalarParam(t, "x", 1)
	optimizer := optim.NewAdam([]*nn.Parameter{param}, optim.AdamConfig{
		LR:    0.1,
		Betas: [2]float32{0, 0.999},
		Eps:   1e-8,
	})

	optimizer.Step(scalarGrad(param, 1))  // x = 0.9
	optimizer.Step(scalarGrad(param, -1)) // no momentum: back to 1.0

	if x := param.Tensor().AsFloat32()[0]; !floatEqual(x, 1.0, 1e-4) {
		t.Errorf("beta1=0 second step: got %f, want 1.0", x)
	}
}

// TestAdam_SkipsParamsWithoutGrad tests untouched parameters stay put.
func TestAdam_SkipsParamsWithoutGrad(t *testing.T) {
	used := scalarParam(t, "used", 1)
	unused := scalarParam(t, "unused", 1)
	optimizer := optim.NewAdam([]*nn.Parameter{used, unused}, adamConfig(0.1))

	optimizer.Step(scalarGrad(used, 1))

	if unused.Tensor().AsFloat32()[0] != 1 {
		t.Errorf("unused parameter changed")
	}
	if names := optimizer.State().StateNames(); len(names) != 1 || names[0] != "used" {
		t.Errorf("StateNames() = %v, want [used]", names)
	}
}

// TestAdam_StateRoundTrip tests that restoring state continues the same trajectory.
func TestAdam_StateRoundTrip(t *testing.T) {
	cfg := adamConfig(0.01)

	a := scalarParam(t, "x", 1)
	optA := optim.NewAdam([]*nn.Parameter{a}, cfg)
	for i := 0; i < 3; i++ {
		optA.Step(scalarGrad(a, float32(i+1)))
	}

	// Rebuild from a snapshot and run one more step on both.
	b := scalarParam(t, "x", a.Tensor().AsFloat32()[0])
	optB := optim.NewAdam([]*nn.Parameter{b}, cfg)
	if err := optB.LoadState(optA.State()); err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if optB.GetTimestep() != 3 {
		t.Errorf("timestep after LoadState: got %d, want 3", optB.GetTimestep())
	}

	optA.Step(scalarGrad(a, 0.5))
	optB.Step(scalarGrad(b, 0.5))

	if a.Tensor().AsFloat32()[0] != b.Tensor().AsFloat32()[0] {
		t.Errorf("trajectories diverged: %v vs %v", a.Tensor().AsFloat32()[0], b.Tensor().AsFloat32()[0])
	}
}

// TestAdam_LoadStateRejectsMismatch tests shape and name validation.
func TestAdam_LoadStateRejectsMismatch(t *testing.T) {
	param := scalarParam(t, "x", 1)
	optimizer := optim.NewAdam([]*nn.Parameter{param}, optim.AdamConfig{})

	tests := []struct {
		name  string
		state optim.AdamState
	}{
		{"unknown name", optim.AdamState{
			Step: 1,
			M:    map[string]*tensor.RawTensor{"y": tensor.Zeros(tensor.Shape{1, 1}, tensor.CPU)},
			V:    map[string]*tensor.RawTensor{"y": tensor.Zeros(tensor.Shape{1, 1}, tensor.CPU)},
		}},
		{"wrong shape", optim.AdamState{
			Step: 1,
			M:    map[string]*tensor.RawTensor{"x": tensor.Zeros(tensor.Shape{1, 2}, tensor.CPU)},
			V:    map[string]*tensor.RawTensor{"x": tensor.Zeros(tensor.Shape{1, 2}, tensor.CPU)},
		}},
		{"missing second moment", optim.AdamState{
			Step: 1,
			M:    map[string]*tensor.RawTensor{"x": tensor.Zeros(tensor.Shape{1, 1}, tensor.CPU)},
		}},
		{"negative step", optim.AdamState{Step: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := optimizer.LoadState(tt.state)
			if !errors.Is(err, optim.ErrStateMismatch) {
				t.Errorf("LoadState error = %v, want ErrStateMismatch", err)
			}
			if optimizer.GetTimestep() != 0 {
				t.Errorf("failed LoadState changed timestep")
			}
		})
	}
}

// TestConvergence_SimpleQuadratic tests Adam minimizes f(x) = (x-3)².
func TestConvergence_SimpleQuadratic(t *testing.T) {
	param := scalarParam(t, "x", 0)
	optimizer := optim.NewAdam([]*nn.Parameter{param}, adamConfig(0.1))

	for i := 0; i < 500; i++ {
		x := param.Tensor().AsFloat32()[0]
		optimizer.Step(scalarGrad(param, 2*(x-3)))
	}

	if x := param.Tensor().AsFloat32()[0]; !floatEqual(x, 3, 0.1) {
		t.Errorf("did not converge: x = %f, want ≈ 3", x)
	}
}
