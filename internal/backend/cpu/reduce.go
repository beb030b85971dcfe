package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/graspnet/internal/tensor"
	"gonum.org/v1/gonum/floats"
)

// reducedShape returns shape with dim removed, or set to 1 when keepDim.
func reducedShape(shape tensor.Shape, dim int, keepDim bool) tensor.Shape {
	if keepDim {
		out := shape.Clone()
		out[dim] = 1
		return out
	}
	out := make(tensor.Shape, 0, len(shape)-1)
	out = append(out, shape[:dim]...)
	return append(out, shape[dim+1:]...)
}

// Sum reduces all elements to a 0-D tensor.
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result := tensor.MustRaw(tensor.Shape{}, cpu.device)
	result.Data()[0] = floats.Sum(x.Data())
	return result
}

// SumDim sums tensor elements along the specified dimension.
//
// Parameters:
//   - dim: dimension to reduce (supports negative indexing: -1 = last dim)
//   - keepDim: if true, keep the reduced dimension with size 1; if false, remove it
//
// Example:
//
//	x := tensor.Randn(tensor.Shape{2, 3, 4}, nil, backend)
//	y := backend.SumDim(x.Raw(), -1, true)  // shape: [2, 3, 1]
//	z := backend.SumDim(x.Raw(), -1, false) // shape: [2, 3]
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	shape := x.Shape()
	dim = tensor.NormalizeDim(dim, len(shape))

	result := tensor.MustRaw(reducedShape(shape, dim, keepDim), cpu.device)
	in, out := x.Data(), result.Data()
	outer, size, inner := shape.SplitAt(dim)

	if inner == 1 {
		for o := 0; o < outer; o++ {
			out[o] = floats.Sum(in[o*size : (o+1)*size])
		}
		return result
	}

	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			var s float64
			for k := 0; k < size; k++ {
				s += in[(o*size+k)*inner+i]
			}
			out[o*inner+i] = s
		}
	}
	return result
}

// MeanDim computes the mean of tensor elements along the specified dimension.
// Reducing an empty dimension yields zeros.
func (cpu *CPUBackend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	dim = tensor.NormalizeDim(dim, len(x.Shape()))
	result := cpu.SumDim(x, dim, keepDim)
	if size := x.Shape()[dim]; size > 0 {
		floats.Scale(1/float64(size), result.Data())
	}
	return result
}

// MinDim returns the minimum along dim (dimension removed) together with the
// position of each minimum. Ties resolve to the first occurrence.
func (cpu *CPUBackend) MinDim(x *tensor.RawTensor, dim int) (*tensor.RawTensor, []int) {
	shape := x.Shape()
	dim = tensor.NormalizeDim(dim, len(shape))
	outer, size, inner := shape.SplitAt(dim)
	if size == 0 {
		panic(fmt.Sprintf("mindim: cannot reduce empty dimension %d of shape %v", dim, shape))
	}

	result := tensor.MustRaw(reducedShape(shape, dim, false), cpu.device)
	indices := make([]int, outer*inner)
	in, out := x.Data(), result.Data()

	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			best := 0
			bestVal := in[o*size*inner+i]
			for k := 1; k < size; k++ {
				if v := in[(o*size+k)*inner+i]; v < bestVal {
					best, bestVal = k, v
				}
			}
			out[o*inner+i] = bestVal
			indices[o*inner+i] = best
		}
	}
	return result, indices
}

// LogSoftmax computes log(softmax(x)) along dim.
//
// Uses the max-shift (log-sum-exp) trick for numerical stability:
//
//	log_softmax(x)_i = x_i - max(x) - log(Σ_j exp(x_j - max(x)))
func (cpu *CPUBackend) LogSoftmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	dim = tensor.NormalizeDim(dim, len(shape))
	outer, size, inner := shape.SplitAt(dim)

	result := tensor.MustRaw(shape, cpu.device)
	in, out := x.Data(), result.Data()

	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			maxVal := math.Inf(-1)
			for k := 0; k < size; k++ {
				maxVal = math.Max(maxVal, in[(o*size+k)*inner+i])
			}
			var sumExp float64
			for k := 0; k < size; k++ {
				sumExp += math.Exp(in[(o*size+k)*inner+i] - maxVal)
			}
			logSum := maxVal + math.Log(sumExp)
			for k := 0; k < size; k++ {
				idx := (o*size+k)*inner + i
				out[idx] = in[idx] - logSum
			}
		}
	}
	return result
}
