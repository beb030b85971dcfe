package nn

import (
	"github.com/born-ml/graspnet/internal/tensor"
)

// ReLU is a Rectified Linear Unit activation module.
//
// Applies the element-wise function: f(x) = max(0, x)
type ReLU[B tensor.Backend] struct{ stateless[B] }

// NewReLU creates a new ReLU activation module.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return &ReLU[B]{}
}

// Forward applies ReLU activation: f(x) = max(0, x).
func (r *ReLU[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	return input.ReLU()
}

// Sigmoid is a sigmoid activation module.
//
// Applies the element-wise function: σ(x) = 1 / (1 + exp(-x))
type Sigmoid[B tensor.Backend] struct{ stateless[B] }

// NewSigmoid creates a new Sigmoid activation module.
func NewSigmoid[B tensor.Backend]() *Sigmoid[B] {
	return &Sigmoid[B]{}
}

// Forward applies Sigmoid activation: σ(x) = 1 / (1 + exp(-x)).
func (s *Sigmoid[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	return input.Sigmoid()
}

// stateless provides the parameter methods of modules without parameters.
type stateless[B tensor.Backend] struct{}

// Parameters returns nil (no trainable parameters).
func (s stateless[B]) Parameters() []*Parameter[B] {
	return nil
}

// StateDict returns an empty map.
func (s stateless[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict accepts any state dict; there is nothing to load.
func (s stateless[B]) LoadStateDict(map[string]*tensor.RawTensor) error {
	return nil
}
