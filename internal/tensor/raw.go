package tensor

import (
	"fmt"
)

// Device represents the compute device for tensor operations.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
	WebGPU
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case WebGPU:
		return "WebGPU"
	default:
		return "Unknown"
	}
}

// ParseDevice converts a configuration string ("cpu", "webgpu") into a Device.
func ParseDevice(s string) (Device, error) {
	switch s {
	case "cpu", "CPU", "":
		return CPU, nil
	case "webgpu", "WebGPU", "gpu":
		return WebGPU, nil
	default:
		return 0, fmt.Errorf("unknown device %q", s)
	}
}

// RawTensor is the low-level tensor representation: a contiguous row-major
// float64 buffer plus its shape and placement.
//
// Kernels never write into their inputs; every operation allocates its result.
// The only in-place writers are optimizers and state-dict loading, which update
// parameter buffers while keeping the *RawTensor identity stable so recorded
// gradients can still be looked up by pointer.
type RawTensor struct {
	data   []float64
	shape  Shape
	stride []int
	device Device
}

// NewRaw creates a new zero-filled RawTensor with the given shape.
func NewRaw(shape Shape, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	return &RawTensor{
		data:   make([]float64, shape.NumElements()),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		device: device,
	}, nil
}

// MustRaw is NewRaw for shapes already known to be valid. Panics on error.
func MustRaw(shape Shape, device Device) *RawTensor {
	r, err := NewRaw(shape, device)
	if err != nil {
		panic(err)
	}
	return r
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Strides returns the row-major strides.
func (r *RawTensor) Strides() []int {
	return r.stride
}

// Device returns the device the buffer is placed on.
func (r *RawTensor) Device() Device {
	return r.device
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return len(r.data)
}

// ByteSize returns the size of the buffer in bytes.
func (r *RawTensor) ByteSize() int {
	return len(r.data) * 8
}

// Data returns the underlying buffer (zero-copy).
//
// WARNING: Modifications to the returned slice will modify the tensor.
func (r *RawTensor) Data() []float64 {
	return r.data
}

// Clone returns a deep copy on the same device.
func (r *RawTensor) Clone() *RawTensor {
	return r.To(r.device)
}

// To returns a deep copy placed on the given device.
func (r *RawTensor) To(device Device) *RawTensor {
	data := make([]float64, len(r.data))
	copy(data, r.data)
	return &RawTensor{
		data:   data,
		shape:  r.shape.Clone(),
		stride: r.shape.ComputeStrides(),
		device: device,
	}
}

// CopyFrom overwrites the buffer with src values. Shapes must match.
func (r *RawTensor) CopyFrom(src *RawTensor) error {
	if !r.shape.Equal(src.shape) {
		return fmt.Errorf("copy: shape mismatch %v vs %v", r.shape, src.shape)
	}
	copy(r.data, src.data)
	return nil
}

// Release drops the buffer so it can be garbage collected.
func (r *RawTensor) Release() {
	r.data = nil
}

// String returns a short description for debugging.
func (r *RawTensor) String() string {
	return fmt.Sprintf("RawTensor(shape=%v, device=%s)", r.shape, r.device)
}
