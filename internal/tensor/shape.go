package tensor

import "fmt"

// Shape represents the dimensions of a tensor.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks that no dimension is negative.
//
// Zero-sized dimensions are allowed: masked selections may legitimately
// keep no rows.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim < 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be >= 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides calculates row-major strides for the shape.
// Strides define memory layout: stride[i] = product of all dimensions after i.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// NormalizeDim resolves a possibly negative dimension index against ndim.
// Panics if the dimension is out of range.
func NormalizeDim(dim, ndim int) int {
	if dim < 0 {
		dim += ndim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("dimension %d out of range for %d-D tensor", dim, ndim))
	}
	return dim
}

// SplitAt returns the products of the dimensions before dim, at dim and after dim.
//
// Reductions and slicing kernels iterate a tensor as [outer, size, inner]
// blocks in row-major order.
func (s Shape) SplitAt(dim int) (outer, size, inner int) {
	outer, inner = 1, 1
	for i := 0; i < dim; i++ {
		outer *= s[i]
	}
	for i := dim + 1; i < len(s); i++ {
		inner *= s[i]
	}
	return outer, s[dim], inner
}

// BroadcastShapes implements NumPy-style broadcasting rules.
//
// Rules:
// 1. Compare shapes element-wise from right to left
// 2. Dimensions are compatible if:
//   - They are equal, OR
//   - One of them is 1
//
// 3. Missing dimensions are treated as 1
//
// Returns the broadcasted shape, a flag indicating if broadcasting is needed, and an error if incompatible.
//
// Examples:
//
//	(3, 1) + (3, 5) → (3, 5), true, nil
//	(3, 5) + (3, 5) → (3, 5), false, nil
//	(3, 4) + (3, 5) → nil, false, Error
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	maxLen := max(len(a), len(b))
	result := make(Shape, maxLen)
	needsBroadcast := len(a) != len(b)

	for i := 0; i < maxLen; i++ {
		aIdx := len(a) - 1 - i
		bIdx := len(b) - 1 - i

		aDim := 1
		if aIdx >= 0 {
			aDim = a[aIdx]
		}

		bDim := 1
		if bIdx >= 0 {
			bDim = b[bIdx]
		}

		switch {
		case aDim == bDim:
			result[maxLen-1-i] = aDim
		case aDim == 1:
			result[maxLen-1-i] = bDim
			needsBroadcast = true
		case bDim == 1:
			result[maxLen-1-i] = aDim
			needsBroadcast = true
		default:
			return nil, false, fmt.Errorf("shapes not compatible for broadcasting: %v vs %v (dimension %d: %d vs %d)",
				a, b, maxLen-1-i, aDim, bDim)
		}
	}

	return result, needsBroadcast, nil
}

// BroadcastStrides returns strides that map an index of outShape onto a tensor of
// shape s. Broadcast dimensions get stride 0.
func (s Shape) BroadcastStrides(outShape Shape) []int {
	strides := make([]int, len(outShape))
	own := s.ComputeStrides()
	offset := len(outShape) - len(s)
	for i := range outShape {
		j := i - offset
		if j < 0 || s[j] == 1 {
			continue
		}
		strides[i] = own[j]
	}
	return strides
}

// ResolveShape replaces a single -1 entry in shape with the size implied by
// numElements and checks that the element counts agree.
func ResolveShape(shape Shape, numElements int) (Shape, error) {
	resolved := shape.Clone()
	inferred := -1
	known := 1
	for i, dim := range resolved {
		switch {
		case dim == -1:
			if inferred >= 0 {
				return nil, fmt.Errorf("only one dimension can be inferred, got shape %v", shape)
			}
			inferred = i
		case dim < 0:
			return nil, fmt.Errorf("invalid dimension %d in shape %v", dim, shape)
		default:
			known *= dim
		}
	}
	if inferred >= 0 {
		if known == 0 || numElements%known != 0 {
			return nil, fmt.Errorf("cannot infer dimension of shape %v for %d elements", shape, numElements)
		}
		resolved[inferred] = numElements / known
	}
	if resolved.NumElements() != numElements {
		return nil, fmt.Errorf("shape %v requires %d elements, tensor has %d", shape, resolved.NumElements(), numElements)
	}
	return resolved, nil
}
