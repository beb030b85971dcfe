package cpu

import (
	"fmt"

	"github.com/born-ml/graspnet/internal/parallel"
	"github.com/born-ml/graspnet/internal/tensor"
	"gonum.org/v1/gonum/mat"
)

// MatMul performs matrix multiplication.
// For 2D tensors: (M, K) @ (K, N) -> (M, N).
//
// The product is computed by gonum, writing straight into the result buffer.
// Row blocks of a are multiplied concurrently when the backend is parallel.
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()

	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: only 2D tensors supported, got %dD and %dD", len(aShape), len(bShape)))
	}

	m, k := aShape[0], aShape[1]
	kAlt, n := bShape[0], bShape[1]
	if k != kAlt {
		panic(fmt.Sprintf("matmul: shape mismatch [%d,%d] @ [%d,%d]", m, k, kAlt, n))
	}

	result := tensor.MustRaw(tensor.Shape{m, n}, cpu.device)

	// gonum rejects zero-length matrices; the product is all zeros anyway.
	if m == 0 || n == 0 || k == 0 {
		return result
	}

	aData, out := a.Data(), result.Data()
	bm := mat.NewDense(k, n, b.Data())
	parallel.Range(m, func(start, end int) {
		am := mat.NewDense(end-start, k, aData[start*k:end*k])
		cm := mat.NewDense(end-start, n, out[start*n:end*n])
		cm.Mul(am, bm)
	}, cpu.par)

	return result
}
