package tensor

// Backend defines the interface that all compute backends must implement.
//
// Backends operate on RawTensors and always return freshly allocated results.
// Shape violations are programming errors and panic; callers that need
// recoverable errors (the loss library) validate shapes before dispatching.
//
// Implementations:
//   - cpu.CPUBackend: gonum-accelerated reference backend
//   - autodiff.AutodiffBackend: decorator recording operations on a gradient tape
type Backend interface {
	// Element-wise binary operations with NumPy broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// Matrix operations.
	MatMul(a, b *RawTensor) *RawTensor

	// Shape operations.
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor

	// Scalar operations.
	MulScalar(x *RawTensor, scalar float64) *RawTensor
	AddScalar(x *RawTensor, scalar float64) *RawTensor

	// Element-wise math.
	Exp(x *RawTensor) *RawTensor
	Log(x *RawTensor) *RawTensor
	Sqrt(x *RawTensor) *RawTensor
	Abs(x *RawTensor) *RawTensor
	ClampMin(x *RawTensor, minVal float64) *RawTensor

	// Activations.
	ReLU(x *RawTensor) *RawTensor
	Sigmoid(x *RawTensor) *RawTensor
	LogSoftmax(x *RawTensor, dim int) *RawTensor

	// Reductions.
	Sum(x *RawTensor) *RawTensor
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor
	MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor
	MinDim(x *RawTensor, dim int) (*RawTensor, []int)

	// Manipulation.
	Cat(tensors []*RawTensor, dim int) *RawTensor
	Narrow(x *RawTensor, dim, start, length int) *RawTensor
	IndexSelect(x *RawTensor, dim int, indices []int) *RawTensor

	// Metadata.
	Name() string
	Device() Device
}
