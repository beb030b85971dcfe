package tensor

import "fmt"

// Tensor is a float64 tensor bound to a computation backend.
//
// Every operation dispatches through the backend, so a tensor created on an
// autodiff backend records its history on the backend's gradient tape.
//
// Example:
//
//	backend := cpu.New()
//	t := tensor.Zeros(Shape{3, 4}, backend)
//	result := t.Add(t)
type Tensor[B Backend] struct {
	raw          *RawTensor
	backend      B
	grad         *Tensor[B] // Gradient tensor (set after a backward pass)
	requiresGrad bool       // Whether gradients for this tensor are kept
}

// New creates a Tensor from a RawTensor and backend.
func New[B Backend](raw *RawTensor, b B) *Tensor[B] {
	return &Tensor[B]{
		raw:     raw,
		backend: b,
	}
}

// FromSlice creates a tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromSlice[B Backend](data []float64, shape Shape, b B) (*Tensor[B], error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}

	raw, err := NewRaw(shape, b.Device())
	if err != nil {
		return nil, err
	}
	copy(raw.Data(), data)
	return New(raw, b), nil
}

// Shape returns the tensor's shape.
func (t *Tensor[B]) Shape() Shape {
	return t.raw.Shape()
}

// Device returns the tensor's compute device.
func (t *Tensor[B]) Device() Device {
	return t.raw.Device()
}

// NumElements returns the total number of elements.
func (t *Tensor[B]) NumElements() int {
	return t.raw.NumElements()
}

// Raw returns the underlying RawTensor.
// Used by backend implementations for low-level operations.
func (t *Tensor[B]) Raw() *RawTensor {
	return t.raw
}

// Backend returns the computation backend.
func (t *Tensor[B]) Backend() B {
	return t.backend
}

// Grad returns the gradient tensor (if computed by autodiff).
func (t *Tensor[B]) Grad() *Tensor[B] {
	return t.grad
}

// SetGrad sets the gradient tensor.
func (t *Tensor[B]) SetGrad(grad *Tensor[B]) {
	t.grad = grad
}

// RequireGrad marks the tensor as one whose gradient should be kept after a
// backward pass and returns the tensor for chaining.
func (t *Tensor[B]) RequireGrad() *Tensor[B] {
	t.requiresGrad = true
	return t
}

// RequiresGrad reports whether RequireGrad was called.
func (t *Tensor[B]) RequiresGrad() bool {
	return t.requiresGrad
}

// Detach returns a copy of the tensor that is not tracked by autodiff.
//
// The copy is a new RawTensor identity, so no recorded operation refers to it
// and gradients never flow through it.
func (t *Tensor[B]) Detach() *Tensor[B] {
	return New(t.raw.Clone(), t.backend)
}

// Data returns a view of the tensor's data.
//
// WARNING: Modifications to the returned slice will modify the tensor.
func (t *Tensor[B]) Data() []float64 {
	return t.raw.Data()
}

// Item returns the value of a single-element tensor.
// Panics if the tensor holds more than one element.
func (t *Tensor[B]) Item() float64 {
	if t.NumElements() != 1 {
		panic(fmt.Sprintf("Item() only works for single-element tensors, got shape %v", t.Shape()))
	}
	return t.Data()[0]
}

// At returns the element at the given indices.
// Panics if indices are out of bounds.
func (t *Tensor[B]) At(indices ...int) float64 {
	return t.Data()[t.flatIndex(indices)]
}

// Set writes the element at the given indices.
func (t *Tensor[B]) Set(value float64, indices ...int) {
	t.Data()[t.flatIndex(indices)] = value
}

func (t *Tensor[B]) flatIndex(indices []int) int {
	shape := t.Shape()
	if len(indices) != len(shape) {
		panic(fmt.Sprintf("expected %d indices, got %d", len(shape), len(indices)))
	}
	strides := t.raw.Strides()
	idx := 0
	for i, v := range indices {
		if v < 0 || v >= shape[i] {
			panic(fmt.Sprintf("index %d out of bounds for dimension %d with size %d", v, i, shape[i]))
		}
		idx += v * strides[i]
	}
	return idx
}

// Clone creates a deep copy of the tensor.
func (t *Tensor[B]) Clone() *Tensor[B] {
	return New(t.raw.Clone(), t.backend)
}

// String returns a string representation of the tensor.
func (t *Tensor[B]) String() string {
	return fmt.Sprintf("Tensor(shape=%v, device=%s)", t.Shape(), t.Device())
}
