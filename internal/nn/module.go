// Package nn implements the neural network building blocks used by the
// grasp networks.
//
// This package provides:
//   - Module interface: Base interface for all NN components
//   - Parameter: Trainable parameters with gradient tracking
//   - Linear: Fully connected layer
//   - Activations: ReLU, Sigmoid
//   - Sequential: Container for stacking layers
//   - State dictionaries: name → tensor maps used by checkpoints
package nn

import (
	"github.com/born-ml/graspnet/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Every NN module must implement:
//   - Forward: Compute output from input
//   - Parameters: Return all trainable parameters
//   - StateDict / LoadStateDict: Expose parameter values by name
//
// Modules can be composed to build complex architectures:
//
//	mlp := nn.NewSequential[B](
//	    nn.NewLinear(3, 64, backend),
//	    nn.NewReLU[B](),
//	    nn.NewLinear(64, 64, backend),
//	)
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[B]) *tensor.Tensor[B]

	// Parameters returns all trainable parameters of this module.
	// Returns an empty slice for modules without trainable parameters.
	Parameters() []*Parameter[B]

	// StateDict returns a map of parameter names to raw tensors.
	// The tensors are the live parameter buffers, not copies.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict copies values from stateDict into the module's parameters.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}
