package optim

import (
	"fmt"
	"math"

	"github.com/born-ml/graspnet/internal/nn"
	"github.com/born-ml/graspnet/internal/tensor"
	"gonum.org/v1/gonum/floats"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)  // Parameter update
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
//
// Moment estimates live in host buffers keyed by parameter and are never
// checkpointed.
type Adam[B tensor.Backend] struct {
	params  []*nn.Parameter[B]
	lr      float64
	beta1   float64
	beta2   float64
	eps     float64
	t       int                             // Timestep for bias correction
	m       map[*nn.Parameter[B]][]float64 // First moment estimates
	v       map[*nn.Parameter[B]][]float64 // Second moment estimates
	backend B
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR    float64    // Learning rate (default: 0.001)
	Betas [2]float64 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float64    // Term for numerical stability (default: 1e-8)
}

// NewAdam creates a new Adam optimizer.
//
// Default hyperparameters:
//   - LR: 0.001
//   - Beta1: 0.9
//   - Beta2: 0.999
//   - Eps: 1e-8
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig, backend B) *Adam[B] {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	return &Adam[B]{
		params:  params,
		lr:      config.LR,
		beta1:   config.Betas[0],
		beta2:   config.Betas[1],
		eps:     config.Eps,
		m:       make(map[*nn.Parameter[B]][]float64),
		v:       make(map[*nn.Parameter[B]][]float64),
		backend: backend,
	}
}

// Step performs a single optimization step using Adam algorithm.
//
// The gradient of every parameter is also attached to the parameter
// (Parameter.Grad) so callers can inspect it until the next ZeroGrad.
// Parameters with no gradient are skipped.
func (a *Adam[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	a.t++

	biasCorrection1 := 1.0 - math.Pow(a.beta1, float64(a.t))
	biasCorrection2 := 1.0 - math.Pow(a.beta2, float64(a.t))

	for _, param := range a.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}
		if !grad.Shape().Equal(param.Tensor().Shape()) {
			panic(fmt.Sprintf("adam: gradient shape %v does not match parameter %s shape %v",
				grad.Shape(), param.Name(), param.Tensor().Shape()))
		}
		param.SetGrad(tensor.New(grad, a.backend))

		n := param.NumElements()
		m, ok := a.m[param]
		if !ok {
			m = make([]float64, n)
			a.m[param] = m
		}
		v, ok := a.v[param]
		if !ok {
			v = make([]float64, n)
			a.v[param] = v
		}

		a.updateParameter(param.Tensor().Data(), grad.Data(), m, v, biasCorrection1, biasCorrection2)
	}
}

// updateParameter performs Adam update for a single parameter buffer.
func (a *Adam[B]) updateParameter(paramData, g, m, v []float64, biasCorrection1, biasCorrection2 float64) {
	// m_t = beta1 * m_{t-1} + (1-beta1) * grad
	floats.Scale(a.beta1, m)
	floats.AddScaled(m, 1.0-a.beta1, g)

	for i := range paramData {
		// v_t = beta2 * v_{t-1} + (1-beta2) * grad²
		v[i] = a.beta2*v[i] + (1.0-a.beta2)*g[i]*g[i]

		mHat := m[i] / biasCorrection1
		vHat := v[i] / biasCorrection2

		paramData[i] -= a.lr * mHat / (math.Sqrt(vHat) + a.eps)
	}
}

// ZeroGrad clears gradients for all parameters.
func (a *Adam[B]) ZeroGrad() {
	for _, param := range a.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (a *Adam[B]) GetLR() float64 {
	return a.lr
}

// SetLR updates the learning rate.
func (a *Adam[B]) SetLR(lr float64) {
	a.lr = lr
}

// GetTimestep returns the current timestep.
func (a *Adam[B]) GetTimestep() int {
	return a.t
}
