package cpu

import (
	"math"

	"github.com/born-ml/graspnet/internal/tensor"
	"gonum.org/v1/gonum/floats"
)

// unary applies fn to every element of x into a new tensor.
func (cpu *CPUBackend) unary(x *tensor.RawTensor, fn func(float64) float64) *tensor.RawTensor {
	result := tensor.MustRaw(x.Shape(), cpu.device)
	out := result.Data()
	for i, v := range x.Data() {
		out[i] = fn(v)
	}
	return result
}

// MulScalar multiplies every element by scalar.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	result := x.To(cpu.device)
	floats.Scale(scalar, result.Data())
	return result
}

// AddScalar adds scalar to every element.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	result := x.To(cpu.device)
	floats.AddConst(scalar, result.Data())
	return result
}

// Exp computes e^x element-wise.
func (cpu *CPUBackend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary(x, math.Exp)
}

// Log computes the natural logarithm element-wise.
// Non-positive inputs produce -Inf or NaN; callers clamp first.
func (cpu *CPUBackend) Log(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary(x, math.Log)
}

// Sqrt computes the square root element-wise.
func (cpu *CPUBackend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary(x, math.Sqrt)
}

// Abs computes |x| element-wise.
func (cpu *CPUBackend) Abs(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary(x, math.Abs)
}

// ClampMin computes max(x, minVal) element-wise.
func (cpu *CPUBackend) ClampMin(x *tensor.RawTensor, minVal float64) *tensor.RawTensor {
	return cpu.unary(x, func(v float64) float64 {
		if v < minVal {
			return minVal
		}
		return v
	})
}

// ReLU applies max(0, x).
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary(x, func(v float64) float64 {
		if v > 0 {
			return v
		}
		return 0
	})
}

// Sigmoid applies σ(x) = 1 / (1 + exp(-x)).
func (cpu *CPUBackend) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary(x, sigmoid)
}

// sigmoid avoids overflow of exp(-x) for large negative x.
func sigmoid(v float64) float64 {
	if v >= 0 {
		return 1 / (1 + math.Exp(-v))
	}
	e := math.Exp(v)
	return e / (1 + e)
}
