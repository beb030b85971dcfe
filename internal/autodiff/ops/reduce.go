package ops

import "github.com/born-ml/graspnet/internal/tensor"

// SumOp represents a full reduction to a 0-D tensor.
//
// Backward: every input element receives the scalar output gradient.
type SumOp struct{ unary }

// NewSumOp creates a new SumOp.
func NewSumOp(x, output *tensor.RawTensor) *SumOp {
	return &SumOp{unary{input: x, output: output}}
}

// Backward broadcasts the scalar gradient to the input shape.
func (op *SumOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{expand(outputGrad, op.input.Shape(), backend)}
}

// SumDimOp represents a sum along one dimension: output = sum(x, dim, keepDim).
//
// Backward:
//
//	grad_x = broadcast(grad_y, x.shape)
//
// If keepDim=false, grad_y is unsqueezed first to match broadcasting requirements.
type SumDimOp struct {
	unary
	dim     int
	keepDim bool
}

// NewSumDimOp creates a new SumDimOp.
func NewSumDimOp(x, output *tensor.RawTensor, dim int, keepDim bool) *SumDimOp {
	return &SumDimOp{
		unary:   unary{input: x, output: output},
		dim:     tensor.NormalizeDim(dim, len(x.Shape())),
		keepDim: keepDim,
	}
}

// Backward computes the input gradient for a dimension sum.
func (op *SumDimOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	grad := outputGrad
	if !op.keepDim {
		grad = backend.Reshape(grad, keepDimShape(op.input.Shape(), op.dim))
	}
	return []*tensor.RawTensor{expand(grad, op.input.Shape(), backend)}
}

// MeanDimOp represents a reduction mean operation along a dimension: output = mean(x, dim).
//
// Forward:
//
//	y = mean(x, dim, keepDim) = sum(x, dim, keepDim) / size[dim]
//
// Backward:
//
//	grad_x = broadcast(grad_y, x.shape) / size[dim]
type MeanDimOp struct {
	SumDimOp
}

// NewMeanDimOp creates a new MeanDimOp.
func NewMeanDimOp(x, output *tensor.RawTensor, dim int, keepDim bool) *MeanDimOp {
	return &MeanDimOp{*NewSumDimOp(x, output, dim, keepDim)}
}

// Backward computes input gradients for mean reduction.
func (op *MeanDimOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	grad := op.SumDimOp.Backward(outputGrad, backend)[0]
	if size := op.input.Shape()[op.dim]; size > 0 {
		grad = backend.MulScalar(grad, 1/float64(size))
	}
	return []*tensor.RawTensor{grad}
}

// MinDimOp represents a minimum along a dimension (dimension removed).
//
// Backward: each output gradient is routed to the position of its minimum;
// every other input position receives zero.
type MinDimOp struct {
	unary
	dim     int
	indices []int // Argmin per output element
}

// NewMinDimOp creates a new MinDimOp.
func NewMinDimOp(x, output *tensor.RawTensor, dim int, indices []int) *MinDimOp {
	return &MinDimOp{
		unary:   unary{input: x, output: output},
		dim:     tensor.NormalizeDim(dim, len(x.Shape())),
		indices: indices,
	}
}

// Backward scatters the output gradient to the selected positions.
func (op *MinDimOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	shape := op.input.Shape()
	outer, size, inner := shape.SplitAt(op.dim)

	grad := tensor.MustRaw(shape, backend.Device())
	in, out := outputGrad.Data(), grad.Data()
	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			k := op.indices[o*inner+i]
			out[(o*size+k)*inner+i] = in[o*inner+i]
		}
	}
	return []*tensor.RawTensor{grad}
}
