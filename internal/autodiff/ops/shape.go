package ops

import "github.com/born-ml/graspnet/internal/tensor"

// ReshapeOp represents a reshape. The gradient is reshaped back to the input shape.
type ReshapeOp struct{ unary }

// NewReshapeOp creates a new ReshapeOp.
func NewReshapeOp(input, output *tensor.RawTensor) *ReshapeOp {
	return &ReshapeOp{unary{input: input, output: output}}
}

// Backward computes grad_input = reshape(outputGrad, input.shape).
func (op *ReshapeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Reshape(outputGrad, op.input.Shape())}
}

// TransposeOp represents a transpose operation.
//
// Forward:
//
//	output = transpose(input, axes)
//
// Backward:
//
//	∂L/∂input = transpose(∂L/∂output, inverse_axes)
type TransposeOp struct {
	unary
	axes []int // Normalized permutation used for the forward transpose
}

// NewTransposeOp creates a new TransposeOp. Empty axes means the reversed order.
func NewTransposeOp(input, output *tensor.RawTensor, axes []int) *TransposeOp {
	ndim := len(input.Shape())
	perm := make([]int, ndim)
	for i := range perm {
		if len(axes) == 0 {
			perm[i] = ndim - 1 - i
		} else {
			perm[i] = tensor.NormalizeDim(axes[i], ndim)
		}
	}
	return &TransposeOp{unary: unary{input: input, output: output}, axes: perm}
}

// Backward computes input gradient for transpose.
func (op *TransposeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inverseAxes := make([]int, len(op.axes))
	for i, ax := range op.axes {
		inverseAxes[ax] = i
	}
	return []*tensor.RawTensor{backend.Transpose(outputGrad, inverseAxes...)}
}
