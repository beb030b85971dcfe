package autodiff_test

import (
	"math"
	"testing"

	"github.com/born-ml/graspnet/internal/autodiff"
	"github.com/born-ml/graspnet/internal/backend/cpu"
	"github.com/born-ml/graspnet/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
)

// scalarFn builds a scalar from x using only backend kernels, so the same
// function can run on the plain CPU backend and on the autodiff backend.
type scalarFn func(b tensor.Backend, x *tensor.RawTensor) *tensor.RawTensor

// checkGradient compares the tape gradient of fn at x0 against a central
// finite-difference estimate.
func checkGradient(t *testing.T, shape tensor.Shape, x0 []float64, fn scalarFn) {
	t.Helper()

	plain := cpu.New()
	numeric := fd.Gradient(nil, func(x []float64) float64 {
		raw := tensor.MustRaw(shape, tensor.CPU)
		copy(raw.Data(), x)
		return fn(plain, raw).Data()[0]
	}, x0, &fd.Settings{Formula: fd.Central, Step: 1e-6})

	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()
	x := tensor.MustRaw(shape, tensor.CPU)
	copy(x.Data(), x0)
	out := fn(backend, x)
	require.Equal(t, 1, out.NumElements())

	seed := tensor.MustRaw(out.Shape(), tensor.CPU)
	seed.Data()[0] = 1
	grads := backend.Tape().Backward(out, seed, backend)

	analytic := make([]float64, len(x0))
	if g, ok := grads[x]; ok {
		require.Equal(t, shape, g.Shape())
		copy(analytic, g.Data())
	}
	assert.InDeltaSlice(t, numeric, analytic, 1e-5)
}

func TestGradientCheck(t *testing.T) {
	mat := tensor.Shape{2, 3}
	x0 := []float64{0.3, -1.2, 0.7, 1.5, -0.4, 0.9}
	positive := []float64{0.3, 1.2, 0.7, 1.5, 0.4, 0.9}

	weights := func() *tensor.RawTensor {
		w := tensor.MustRaw(tensor.Shape{3, 2}, tensor.CPU)
		copy(w.Data(), []float64{0.5, -1, 2, 0.25, -0.75, 1})
		return w
	}

	tests := []struct {
		name  string
		start []float64
		fn    scalarFn
	}{
		{"Mul", x0, func(b tensor.Backend, x *tensor.RawTensor) *tensor.RawTensor {
			return b.Sum(b.Mul(x, x))
		}},
		{"DivBroadcast", positive, func(b tensor.Backend, x *tensor.RawTensor) *tensor.RawTensor {
			col := b.SumDim(x, 1, true)
			return b.Sum(b.Div(x, col))
		}},
		{"SubBroadcast", x0, func(b tensor.Backend, x *tensor.RawTensor) *tensor.RawTensor {
			row := b.MeanDim(x, 0, false)
			d := b.Sub(x, row)
			return b.Sum(b.Mul(d, d))
		}},
		{"MatMulTranspose", x0, func(b tensor.Backend, x *tensor.RawTensor) *tensor.RawTensor {
			y := b.MatMul(x, weights())
			return b.Sum(b.Mul(y, b.Transpose(b.Transpose(y))))
		}},
		{"ExpLogSqrt", positive, func(b tensor.Backend, x *tensor.RawTensor) *tensor.RawTensor {
			return b.Sum(b.Add(b.Log(b.AddScalar(b.Exp(x), 1)), b.Sqrt(x)))
		}},
		{"AbsClamp", x0, func(b tensor.Backend, x *tensor.RawTensor) *tensor.RawTensor {
			return b.Sum(b.Mul(b.Abs(x), b.ClampMin(x, 0.5)))
		}},
		{"Activations", x0, func(b tensor.Backend, x *tensor.RawTensor) *tensor.RawTensor {
			return b.Sum(b.Mul(b.ReLU(x), b.Sigmoid(b.MulScalar(x, 2))))
		}},
		{"LogSoftmax", x0, func(b tensor.Backend, x *tensor.RawTensor) *tensor.RawTensor {
			ls := b.LogSoftmax(x, -1)
			return b.Sum(b.Mul(ls, b.Narrow(b.Cat([]*tensor.RawTensor{x, x}, 1), 1, 1, 3)))
		}},
		{"MinDim", x0, func(b tensor.Backend, x *tensor.RawTensor) *tensor.RawTensor {
			m, _ := b.MinDim(b.Mul(x, x), 1)
			return b.Sum(b.MulScalar(m, 3))
		}},
		{"IndexSelectReshape", x0, func(b tensor.Backend, x *tensor.RawTensor) *tensor.RawTensor {
			sel := b.IndexSelect(x, 1, []int{2, 0, 2})
			flat := b.Reshape(sel, tensor.Shape{-1})
			return b.Sum(b.Mul(flat, flat))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkGradient(t, mat, tt.start, tt.fn)
		})
	}
}

func TestGradientCheck_Quaternion(t *testing.T) {
	// Rotating a vector by a quaternion built from Narrow/Mul/Sub/Cat must
	// differentiate like its closed form.
	q0 := []float64{0.9, 0.1, -0.3, 0.2}
	norm := math.Sqrt(0.81 + 0.01 + 0.09 + 0.04)
	for i := range q0 {
		q0[i] /= norm
	}

	checkGradient(t, tensor.Shape{1, 4}, q0, func(b tensor.Backend, q *tensor.RawTensor) *tensor.RawTensor {
		w := b.Narrow(q, 1, 0, 1)
		v := b.Narrow(q, 1, 1, 3)
		comp := func(i int) *tensor.RawTensor { return b.Narrow(v, 1, i, 1) }
		point := tensor.MustRaw(tensor.Shape{1, 3}, tensor.CPU)
		copy(point.Data(), []float64{0.053, 0, 0.075})
		p := func(i int) *tensor.RawTensor { return b.Narrow(point, 1, i, 1) }

		uv := b.Cat([]*tensor.RawTensor{
			b.Sub(b.Mul(comp(1), p(2)), b.Mul(comp(2), p(1))),
			b.Sub(b.Mul(comp(2), p(0)), b.Mul(comp(0), p(2))),
			b.Sub(b.Mul(comp(0), p(1)), b.Mul(comp(1), p(0))),
		}, 1)
		rotated := b.Add(point, b.MulScalar(b.Mul(w, uv), 2))
		return b.Sum(b.Mul(rotated, rotated))
	})
}
