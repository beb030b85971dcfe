package cpu

import (
	"fmt"

	"github.com/born-ml/graspnet/internal/tensor"
	"gonum.org/v1/gonum/floats"
)

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", a, b, floats.AddTo, func(x, y float64) float64 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("sub", a, b, floats.SubTo, func(x, y float64) float64 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", a, b, floats.MulTo, func(x, y float64) float64 { return x * y })
}

// Div performs element-wise division with broadcasting.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("div", a, b, floats.DivTo, func(x, y float64) float64 { return x / y })
}

// binary dispatches to the vectorized gonum kernel when shapes match and to
// the strided broadcasting loop otherwise.
func (cpu *CPUBackend) binary(
	name string,
	a, b *tensor.RawTensor,
	sameShape func(dst, s, t []float64) []float64,
	op func(x, y float64) float64,
) *tensor.RawTensor {
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	result := tensor.MustRaw(outShape, cpu.device)
	if !needsBroadcast {
		sameShape(result.Data(), a.Data(), b.Data())
		return result
	}

	aData, bData, out := a.Data(), b.Data(), result.Data()
	aStrides := a.Shape().BroadcastStrides(outShape)
	bStrides := b.Shape().BroadcastStrides(outShape)

	// walk tracks one source offset, so a's offsets are collected first.
	aOffsets := make([]int, len(out))
	walk(outShape, aStrides, func(o, src int) { aOffsets[o] = src })
	walk(outShape, bStrides, func(o, src int) {
		out[o] = op(aData[aOffsets[o]], bData[src])
	})

	return result
}
