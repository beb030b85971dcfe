package tensor

// Add performs element-wise addition with broadcasting.
func (t *Tensor[B]) Add(other *Tensor[B]) *Tensor[B] {
	return New(t.backend.Add(t.raw, other.raw), t.backend)
}

// Sub performs element-wise subtraction with broadcasting.
func (t *Tensor[B]) Sub(other *Tensor[B]) *Tensor[B] {
	return New(t.backend.Sub(t.raw, other.raw), t.backend)
}

// Mul performs element-wise multiplication with broadcasting.
func (t *Tensor[B]) Mul(other *Tensor[B]) *Tensor[B] {
	return New(t.backend.Mul(t.raw, other.raw), t.backend)
}

// Div performs element-wise division with broadcasting.
func (t *Tensor[B]) Div(other *Tensor[B]) *Tensor[B] {
	return New(t.backend.Div(t.raw, other.raw), t.backend)
}

// MatMul performs 2-D matrix multiplication.
//
// Example:
//
//	a := tensor.Randn(Shape{3, 4}, nil, backend)
//	b := tensor.Randn(Shape{4, 5}, nil, backend)
//	c := a.MatMul(b) // [3, 5]
func (t *Tensor[B]) MatMul(other *Tensor[B]) *Tensor[B] {
	return New(t.backend.MatMul(t.raw, other.raw), t.backend)
}

// Reshape returns a tensor with the same data and a new shape.
func (t *Tensor[B]) Reshape(newShape ...int) *Tensor[B] {
	return New(t.backend.Reshape(t.raw, Shape(newShape)), t.backend)
}

// Transpose permutes dimensions. Without axes the dimensions are reversed.
func (t *Tensor[B]) Transpose(axes ...int) *Tensor[B] {
	return New(t.backend.Transpose(t.raw, axes...), t.backend)
}

// T is shorthand for Transpose() on 2-D tensors.
func (t *Tensor[B]) T() *Tensor[B] {
	return t.Transpose()
}

// MulScalar multiplies every element by scalar.
func (t *Tensor[B]) MulScalar(scalar float64) *Tensor[B] {
	return New(t.backend.MulScalar(t.raw, scalar), t.backend)
}

// AddScalar adds scalar to every element.
func (t *Tensor[B]) AddScalar(scalar float64) *Tensor[B] {
	return New(t.backend.AddScalar(t.raw, scalar), t.backend)
}

// Neg negates every element.
func (t *Tensor[B]) Neg() *Tensor[B] {
	return t.MulScalar(-1)
}

// Square returns t * t.
func (t *Tensor[B]) Square() *Tensor[B] {
	return t.Mul(t)
}

// Exp computes e^x element-wise.
func (t *Tensor[B]) Exp() *Tensor[B] {
	return New(t.backend.Exp(t.raw), t.backend)
}

// Log computes the natural logarithm element-wise.
func (t *Tensor[B]) Log() *Tensor[B] {
	return New(t.backend.Log(t.raw), t.backend)
}

// Sqrt computes the square root element-wise.
func (t *Tensor[B]) Sqrt() *Tensor[B] {
	return New(t.backend.Sqrt(t.raw), t.backend)
}

// Abs computes |x| element-wise.
func (t *Tensor[B]) Abs() *Tensor[B] {
	return New(t.backend.Abs(t.raw), t.backend)
}

// ClampMin computes max(x, minVal) element-wise.
func (t *Tensor[B]) ClampMin(minVal float64) *Tensor[B] {
	return New(t.backend.ClampMin(t.raw, minVal), t.backend)
}

// ReLU applies max(0, x).
func (t *Tensor[B]) ReLU() *Tensor[B] {
	return New(t.backend.ReLU(t.raw), t.backend)
}

// Sigmoid applies 1 / (1 + e^-x).
func (t *Tensor[B]) Sigmoid() *Tensor[B] {
	return New(t.backend.Sigmoid(t.raw), t.backend)
}

// LogSoftmax computes log(softmax(x)) along dim in a numerically stable way.
func (t *Tensor[B]) LogSoftmax(dim int) *Tensor[B] {
	return New(t.backend.LogSoftmax(t.raw, dim), t.backend)
}

// Sum reduces all elements to a 0-D tensor.
func (t *Tensor[B]) Sum() *Tensor[B] {
	return New(t.backend.Sum(t.raw), t.backend)
}

// Mean averages all elements into a 0-D tensor.
// The mean of an empty tensor is 0.
func (t *Tensor[B]) Mean() *Tensor[B] {
	n := t.NumElements()
	if n == 0 {
		return t.Sum()
	}
	return t.Sum().MulScalar(1 / float64(n))
}

// SumDim sums along dim.
func (t *Tensor[B]) SumDim(dim int, keepDim bool) *Tensor[B] {
	return New(t.backend.SumDim(t.raw, dim, keepDim), t.backend)
}

// MeanDim averages along dim.
func (t *Tensor[B]) MeanDim(dim int, keepDim bool) *Tensor[B] {
	return New(t.backend.MeanDim(t.raw, dim, keepDim), t.backend)
}

// MinDim returns the minimum along dim (dimension removed) and the position
// of each minimum within dim.
func (t *Tensor[B]) MinDim(dim int) (*Tensor[B], []int) {
	values, indices := t.backend.MinDim(t.raw, dim)
	return New(values, t.backend), indices
}

// Argmax returns the position of the maximum along the last dimension for
// each leading index. It reads data directly and is not differentiable.
func (t *Tensor[B]) Argmax() []int {
	shape := t.Shape()
	if len(shape) == 0 {
		return []int{0}
	}
	n := shape[len(shape)-1]
	data := t.Data()
	if n == 0 {
		return make([]int, 0)
	}
	rows := len(data) / n
	result := make([]int, rows)
	for r := 0; r < rows; r++ {
		best := 0
		for j := 1; j < n; j++ {
			if data[r*n+j] > data[r*n+best] {
				best = j
			}
		}
		result[r] = best
	}
	return result
}
