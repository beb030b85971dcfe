package ops

import "github.com/born-ml/graspnet/internal/tensor"

// NarrowOp represents output = narrow(x, dim, start, length).
//
// Backward: the gradient is written into a zero tensor of the input shape at
// the narrowed range.
type NarrowOp struct {
	unary
	dim   int
	start int
}

// NewNarrowOp creates a new NarrowOp.
func NewNarrowOp(x, output *tensor.RawTensor, dim, start int) *NarrowOp {
	return &NarrowOp{
		unary: unary{input: x, output: output},
		dim:   tensor.NormalizeDim(dim, len(x.Shape())),
		start: start,
	}
}

// Backward pads the output gradient back to the input shape.
func (op *NarrowOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	shape := op.input.Shape()
	outer, size, inner := shape.SplitAt(op.dim)
	length := outputGrad.Shape()[op.dim]

	grad := tensor.MustRaw(shape, backend.Device())
	in, out := outputGrad.Data(), grad.Data()
	block := length * inner
	for o := 0; o < outer; o++ {
		copy(out[(o*size+op.start)*inner:], in[o*block:(o+1)*block])
	}
	return []*tensor.RawTensor{grad}
}

// IndexSelectOp represents output = index_select(x, dim, indices).
//
// Backward: gradients are accumulated back into the selected entries, so
// repeated indices receive the sum of their gradients.
type IndexSelectOp struct {
	unary
	dim     int
	indices []int
}

// NewIndexSelectOp creates a new IndexSelectOp.
func NewIndexSelectOp(x, output *tensor.RawTensor, dim int, indices []int) *IndexSelectOp {
	idx := make([]int, len(indices))
	copy(idx, indices)
	return &IndexSelectOp{
		unary:   unary{input: x, output: output},
		dim:     tensor.NormalizeDim(dim, len(x.Shape())),
		indices: idx,
	}
}

// Backward scatter-adds the output gradient into the input shape.
func (op *IndexSelectOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	shape := op.input.Shape()
	outer, size, inner := shape.SplitAt(op.dim)
	n := len(op.indices)

	grad := tensor.MustRaw(shape, backend.Device())
	in, out := outputGrad.Data(), grad.Data()
	for o := 0; o < outer; o++ {
		for j, idx := range op.indices {
			src := (o*n + j) * inner
			dst := (o*size + idx) * inner
			for i := 0; i < inner; i++ {
				out[dst+i] += in[src+i]
			}
		}
	}
	return []*tensor.RawTensor{grad}
}

// CatOp represents a concatenation operation along a dimension.
//
// Forward: output = Cat([input1, input2, ...], dim)
//
// Backward:
//
//	Split gradOutput along dim at input boundaries and distribute to each input.
//	Each input receives the gradient slice corresponding to its contribution.
type CatOp struct {
	inputs []*tensor.RawTensor // Input tensors that were concatenated
	output *tensor.RawTensor   // Concatenated output tensor
	dim    int                 // Dimension along which concatenation happened
}

// NewCatOp creates a new cat operation.
func NewCatOp(inputs []*tensor.RawTensor, output *tensor.RawTensor, dim int) *CatOp {
	in := make([]*tensor.RawTensor, len(inputs))
	copy(in, inputs)
	return &CatOp{
		inputs: in,
		output: output,
		dim:    tensor.NormalizeDim(dim, len(output.Shape())),
	}
}

// Inputs returns the input tensors.
func (op *CatOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the output tensor.
func (op *CatOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward splits the gradient along the concatenation dimension.
func (op *CatOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	grads := make([]*tensor.RawTensor, len(op.inputs))
	offset := 0
	for i, input := range op.inputs {
		size := input.Shape()[op.dim]
		grads[i] = backend.Narrow(outputGrad, op.dim, offset, size)
		offset += size
	}
	return grads
}
