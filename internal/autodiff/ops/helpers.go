package ops

import (
	"github.com/born-ml/graspnet/internal/tensor"
)

// reduceBroadcast reduces a gradient tensor to match the target shape.
// This is necessary when broadcasting was used in the forward pass.
//
// Example:
//
//	Forward: a[3,1] + b[3,4] -> c[3,4]  (a was broadcast along dim 1)
//	Backward: grad_c[3,4] -> grad_a[3,1] (sum along dim 1)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	if grad.Shape().Equal(targetShape) {
		return grad
	}

	// Broadcasting aligns shapes from the right, so extra leading dims are summed away.
	result := grad
	for len(result.Shape()) > len(targetShape) {
		result = backend.SumDim(result, 0, false)
	}

	for i, dim := range targetShape {
		if dim == 1 && result.Shape()[i] != 1 {
			result = backend.SumDim(result, i, true)
		}
	}
	return result
}

// expand broadcasts grad up to shape.
func expand(grad *tensor.RawTensor, shape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	if grad.Shape().Equal(shape) {
		return grad
	}
	return backend.Add(tensor.MustRaw(shape, backend.Device()), grad)
}

// keepDimShape returns shape with dim set to 1.
func keepDimShape(shape tensor.Shape, dim int) tensor.Shape {
	out := shape.Clone()
	out[dim] = 1
	return out
}

// mapped returns a new tensor holding fn applied to every element of x.
// Backward passes use it for local derivatives that are not expressible as
// a single backend kernel (masks and signs).
func mapped(x *tensor.RawTensor, device tensor.Device, fn func(float64) float64) *tensor.RawTensor {
	result := tensor.MustRaw(x.Shape(), device)
	out := result.Data()
	for i, v := range x.Data() {
		out[i] = fn(v)
	}
	return result
}
