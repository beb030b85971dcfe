package cpu

import (
	"fmt"

	"github.com/born-ml/graspnet/internal/tensor"
)

// Reshape returns a copy of t with a new shape. A single -1 dimension is inferred.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	resolved, err := tensor.ResolveShape(newShape, t.NumElements())
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	result := tensor.MustRaw(resolved, cpu.device)
	copy(result.Data(), t.Data())
	return result
}

// Transpose permutes the dimensions of t according to axes.
// Without axes the dimension order is reversed.
//
// Example:
//
//	x: [2, 3, 4]
//	Transpose(x, 0, 2, 1) -> [2, 4, 3]
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}
	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: expected %d axes, got %d", ndim, len(axes)))
	}

	seen := make([]bool, ndim)
	newShape := make(tensor.Shape, ndim)
	srcStrides := make([]int, ndim)
	own := t.Strides()
	for i, ax := range axes {
		ax = tensor.NormalizeDim(ax, ndim)
		if seen[ax] {
			panic(fmt.Sprintf("transpose: repeated axis %d in %v", ax, axes))
		}
		seen[ax] = true
		newShape[i] = shape[ax]
		srcStrides[i] = own[ax]
	}

	result := tensor.MustRaw(newShape, cpu.device)
	in, out := t.Data(), result.Data()
	walk(newShape, srcStrides, func(o, src int) { out[o] = in[src] })
	return result
}

// Narrow copies length consecutive entries of dim starting at start.
func (cpu *CPUBackend) Narrow(x *tensor.RawTensor, dim, start, length int) *tensor.RawTensor {
	shape := x.Shape()
	dim = tensor.NormalizeDim(dim, len(shape))
	if start < 0 || length < 0 || start+length > shape[dim] {
		panic(fmt.Sprintf("narrow: range [%d, %d) out of bounds for dimension %d of shape %v",
			start, start+length, dim, shape))
	}

	newShape := shape.Clone()
	newShape[dim] = length
	result := tensor.MustRaw(newShape, cpu.device)

	outer, size, inner := shape.SplitAt(dim)
	in, out := x.Data(), result.Data()
	block := length * inner
	for o := 0; o < outer; o++ {
		copy(out[o*block:(o+1)*block], in[(o*size+start)*inner:])
	}
	return result
}

// IndexSelect copies the given entries of dim, in order. Indices may repeat.
func (cpu *CPUBackend) IndexSelect(x *tensor.RawTensor, dim int, indices []int) *tensor.RawTensor {
	shape := x.Shape()
	dim = tensor.NormalizeDim(dim, len(shape))
	outer, size, inner := shape.SplitAt(dim)
	for _, idx := range indices {
		if idx < 0 || idx >= size {
			panic(fmt.Sprintf("indexselect: index %d out of bounds for dimension %d with size %d", idx, dim, size))
		}
	}

	newShape := shape.Clone()
	newShape[dim] = len(indices)
	result := tensor.MustRaw(newShape, cpu.device)

	in, out := x.Data(), result.Data()
	for o := 0; o < outer; o++ {
		for j, idx := range indices {
			dst := (o*len(indices) + j) * inner
			src := (o*size + idx) * inner
			copy(out[dst:dst+inner], in[src:src+inner])
		}
	}
	return result
}

// Cat concatenates tensors along dim. All other dimensions must match.
func (cpu *CPUBackend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("cat: empty tensor list")
	}
	first := tensors[0].Shape()
	dim = tensor.NormalizeDim(dim, len(first))

	newShape := first.Clone()
	newShape[dim] = 0
	for _, t := range tensors {
		s := t.Shape()
		if len(s) != len(first) {
			panic(fmt.Sprintf("cat: rank mismatch %v vs %v", first, s))
		}
		for i := range s {
			if i != dim && s[i] != first[i] {
				panic(fmt.Sprintf("cat: shape mismatch %v vs %v at dimension %d", first, s, i))
			}
		}
		newShape[dim] += s[dim]
	}

	result := tensor.MustRaw(newShape, cpu.device)
	out := result.Data()
	outer, total, inner := newShape.SplitAt(dim)

	offset := 0
	for _, t := range tensors {
		size := t.Shape()[dim]
		block := size * inner
		in := t.Data()
		for o := 0; o < outer; o++ {
			copy(out[(o*total+offset)*inner:], in[o*block:(o+1)*block])
		}
		offset += size
	}
	return result
}
