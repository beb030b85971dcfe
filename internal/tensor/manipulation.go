package tensor

import "fmt"

// Cat concatenates tensors along dim.
// All tensors must share the backend and match in every other dimension.
func Cat[B Backend](tensors []*Tensor[B], dim int) *Tensor[B] {
	if len(tensors) == 0 {
		panic("cat: empty tensor list")
	}
	raws := make([]*RawTensor, len(tensors))
	for i, t := range tensors {
		raws[i] = t.raw
	}
	backend := tensors[0].backend
	return New(backend.Cat(raws, dim), backend)
}

// Narrow returns length consecutive entries of dim starting at start.
//
// Example:
//
//	qt := tensor.Randn(Shape{8, 7}, nil, backend)
//	q := qt.Narrow(1, 0, 4) // [8, 4]
//	t := qt.Narrow(1, 4, 3) // [8, 3]
func (t *Tensor[B]) Narrow(dim, start, length int) *Tensor[B] {
	return New(t.backend.Narrow(t.raw, dim, start, length), t.backend)
}

// IndexSelect keeps the given entries of dim, in order.
func (t *Tensor[B]) IndexSelect(dim int, indices []int) *Tensor[B] {
	return New(t.backend.IndexSelect(t.raw, dim, indices), t.backend)
}

// Unsqueeze inserts a dimension of size 1 at dim.
func (t *Tensor[B]) Unsqueeze(dim int) *Tensor[B] {
	shape := t.Shape()
	if dim < 0 {
		dim += len(shape) + 1
	}
	if dim < 0 || dim > len(shape) {
		panic(fmt.Sprintf("unsqueeze: dimension %d out of range for shape %v", dim, shape))
	}
	newShape := make([]int, 0, len(shape)+1)
	newShape = append(newShape, shape[:dim]...)
	newShape = append(newShape, 1)
	newShape = append(newShape, shape[dim:]...)
	return t.Reshape(newShape...)
}

// Squeeze removes dim, which must have size 1.
func (t *Tensor[B]) Squeeze(dim int) *Tensor[B] {
	shape := t.Shape()
	dim = NormalizeDim(dim, len(shape))
	if shape[dim] != 1 {
		panic(fmt.Sprintf("squeeze: dimension %d of shape %v is not 1", dim, shape))
	}
	newShape := make([]int, 0, len(shape)-1)
	newShape = append(newShape, shape[:dim]...)
	newShape = append(newShape, shape[dim+1:]...)
	return t.Reshape(newShape...)
}
