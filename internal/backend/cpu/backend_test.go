package cpu

import (
	"math"
	"testing"

	"github.com/born-ml/graspnet/internal/parallel"
	"github.com/born-ml/graspnet/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// raw builds a CPU RawTensor from values.
func raw(t *testing.T, shape tensor.Shape, values ...float64) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.CPU)
	require.NoError(t, err)
	require.Len(t, values, shape.NumElements())
	copy(r.Data(), values)
	return r
}

func TestCPUBackend_New(t *testing.T) {
	backend := New()
	assert.Equal(t, "CPU", backend.Name())
	assert.Equal(t, tensor.CPU, backend.Device())
	assert.NotEmpty(t, backend.Describe())
}

func TestCPUBackend_Binary(t *testing.T) {
	backend := New()

	t.Run("SameShape", func(t *testing.T) {
		a := raw(t, tensor.Shape{2, 2}, 1, 2, 3, 4)
		b := raw(t, tensor.Shape{2, 2}, 10, 20, 30, 40)
		assert.Equal(t, []float64{11, 22, 33, 44}, backend.Add(a, b).Data())
		assert.Equal(t, []float64{-9, -18, -27, -36}, backend.Sub(a, b).Data())
		assert.Equal(t, []float64{10, 40, 90, 160}, backend.Mul(a, b).Data())
		assert.Equal(t, []float64{0.1, 0.1, 0.1, 0.1}, backend.Div(a, b).Data())
	})

	t.Run("BroadcastRow", func(t *testing.T) {
		a := raw(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)
		b := raw(t, tensor.Shape{3}, 10, 20, 30)
		out := backend.Add(a, b)
		assert.Equal(t, tensor.Shape{2, 3}, out.Shape())
		assert.Equal(t, []float64{11, 22, 33, 14, 25, 36}, out.Data())
	})

	t.Run("BroadcastBothSides", func(t *testing.T) {
		a := raw(t, tensor.Shape{2, 1}, 1, 2)
		b := raw(t, tensor.Shape{1, 3}, 10, 20, 30)
		out := backend.Mul(a, b)
		assert.Equal(t, tensor.Shape{2, 3}, out.Shape())
		assert.Equal(t, []float64{10, 20, 30, 20, 40, 60}, out.Data())
	})

	t.Run("ScalarOperand", func(t *testing.T) {
		a := raw(t, tensor.Shape{3}, 1, 2, 3)
		s := raw(t, tensor.Shape{}, 2)
		assert.Equal(t, []float64{0.5, 1, 1.5}, backend.Div(a, s).Data())
	})

	t.Run("Incompatible", func(t *testing.T) {
		a := raw(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)
		b := raw(t, tensor.Shape{2}, 1, 2)
		assert.Panics(t, func() { backend.Add(a, b) })
	})

	t.Run("InputsUntouched", func(t *testing.T) {
		a := raw(t, tensor.Shape{2}, 1, 2)
		b := raw(t, tensor.Shape{2}, 3, 4)
		backend.Add(a, b)
		assert.Equal(t, []float64{1, 2}, a.Data())
		assert.Equal(t, []float64{3, 4}, b.Data())
	})
}

func TestCPUBackend_MatMul(t *testing.T) {
	backend := New()

	a := raw(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)
	b := raw(t, tensor.Shape{3, 2}, 7, 8, 9, 10, 11, 12)
	out := backend.MatMul(a, b)
	assert.Equal(t, tensor.Shape{2, 2}, out.Shape())
	assert.Equal(t, []float64{58, 64, 139, 154}, out.Data())

	empty := backend.MatMul(raw(t, tensor.Shape{0, 3}), b)
	assert.Equal(t, tensor.Shape{0, 2}, empty.Shape())

	assert.Panics(t, func() { backend.MatMul(a, a) })
}

func TestCPUBackend_MatMulParallelMatchesSequential(t *testing.T) {
	par := NewWithConfig(parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 3})
	seq := NewWithConfig(parallel.Sequential())

	const m, k, n = 37, 5, 4
	a, _ := tensor.NewRaw(tensor.Shape{m, k}, tensor.CPU)
	b, _ := tensor.NewRaw(tensor.Shape{k, n}, tensor.CPU)
	for i := range a.Data() {
		a.Data()[i] = math.Sin(float64(i))
	}
	for i := range b.Data() {
		b.Data()[i] = math.Cos(float64(i))
	}

	want := seq.MatMul(a, b).Data()
	got := par.MatMul(a, b).Data()
	require.Len(t, got, m*n)
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-12)
	}
}

func TestCPUBackend_Math(t *testing.T) {
	backend := New()
	x := raw(t, tensor.Shape{4}, -2, -0.5, 0, 3)

	assert.Equal(t, []float64{-4, -1, 0, 6}, backend.MulScalar(x, 2).Data())
	assert.Equal(t, []float64{-1, 0.5, 1, 4}, backend.AddScalar(x, 1).Data())
	assert.Equal(t, []float64{2, 0.5, 0, 3}, backend.Abs(x).Data())
	assert.Equal(t, []float64{0, 0, 0, 3}, backend.ReLU(x).Data())
	assert.Equal(t, []float64{-1, -0.5, 0, 3}, backend.ClampMin(x, -1).Data())
	assert.Equal(t, []float64{-2, -0.5, 0, 3}, x.Data(), "kernels must not write inputs")

	sig := backend.Sigmoid(raw(t, tensor.Shape{3}, -1000, 0, 1000)).Data()
	assert.InDelta(t, 0, sig[0], 1e-12)
	assert.InDelta(t, 0.5, sig[1], 1e-12)
	assert.InDelta(t, 1, sig[2], 1e-12)

	assert.InDeltaSlice(t, []float64{1, math.E}, backend.Exp(raw(t, tensor.Shape{2}, 0, 1)).Data(), 1e-12)
	assert.InDeltaSlice(t, []float64{0, 1}, backend.Log(raw(t, tensor.Shape{2}, 1, math.E)).Data(), 1e-12)
	assert.Equal(t, []float64{2, 3}, backend.Sqrt(raw(t, tensor.Shape{2}, 4, 9)).Data())
}

func TestCPUBackend_LogSoftmax(t *testing.T) {
	backend := New()

	x := raw(t, tensor.Shape{2, 2}, 0, 0, 1000, 0)
	out := backend.LogSoftmax(x, -1).Data()
	assert.InDelta(t, math.Log(0.5), out[0], 1e-12)
	assert.InDelta(t, math.Log(0.5), out[1], 1e-12)
	assert.InDelta(t, 0, out[2], 1e-12)
	assert.InDelta(t, -1000, out[3], 1e-9)

	// Along dim 0 each column is normalized.
	col := backend.LogSoftmax(raw(t, tensor.Shape{2, 2}, 1, 5, 1, 5), 0).Data()
	assert.InDeltaSlice(t, []float64{math.Log(0.5), math.Log(0.5), math.Log(0.5), math.Log(0.5)}, col, 1e-12)
}

func TestCPUBackend_Reductions(t *testing.T) {
	backend := New()
	x := raw(t, tensor.Shape{2, 3}, 1, 5, 3, 4, 2, 6)

	sum := backend.Sum(x)
	assert.Equal(t, tensor.Shape{}, sum.Shape())
	assert.Equal(t, 21.0, sum.Data()[0])

	assert.Equal(t, []float64{9, 12}, backend.SumDim(x, -1, false).Data())
	assert.Equal(t, []float64{5, 7, 9}, backend.SumDim(x, 0, false).Data())
	assert.Equal(t, tensor.Shape{2, 1}, backend.SumDim(x, 1, true).Shape())
	assert.Equal(t, []float64{3, 4}, backend.MeanDim(x, 1, false).Data())

	mins, idx := backend.MinDim(x, 1)
	assert.Equal(t, tensor.Shape{2}, mins.Shape())
	assert.Equal(t, []float64{1, 2}, mins.Data())
	assert.Equal(t, []int{0, 1}, idx)

	colMins, colIdx := backend.MinDim(x, 0)
	assert.Equal(t, []float64{1, 2, 3}, colMins.Data())
	assert.Equal(t, []int{0, 1, 0}, colIdx)

	assert.Panics(t, func() { backend.MinDim(raw(t, tensor.Shape{2, 0}), 1) })
}

func TestCPUBackend_Reshape(t *testing.T) {
	backend := New()
	x := raw(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)

	out := backend.Reshape(x, tensor.Shape{3, -1})
	assert.Equal(t, tensor.Shape{3, 2}, out.Shape())
	assert.Equal(t, x.Data(), out.Data())

	assert.Panics(t, func() { backend.Reshape(x, tensor.Shape{4, 2}) })
}

func TestCPUBackend_Transpose(t *testing.T) {
	backend := New()

	x := raw(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)
	out := backend.Transpose(x)
	assert.Equal(t, tensor.Shape{3, 2}, out.Shape())
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, out.Data())

	y := raw(t, tensor.Shape{1, 2, 3}, 1, 2, 3, 4, 5, 6)
	perm := backend.Transpose(y, 0, 2, 1)
	assert.Equal(t, tensor.Shape{1, 3, 2}, perm.Shape())
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, perm.Data())

	assert.Panics(t, func() { backend.Transpose(y, 0, 0, 1) })
}

func TestCPUBackend_Narrow(t *testing.T) {
	backend := New()
	x := raw(t, tensor.Shape{2, 4}, 1, 2, 3, 4, 5, 6, 7, 8)

	out := backend.Narrow(x, 1, 1, 2)
	assert.Equal(t, tensor.Shape{2, 2}, out.Shape())
	assert.Equal(t, []float64{2, 3, 6, 7}, out.Data())

	rows := backend.Narrow(x, 0, 1, 1)
	assert.Equal(t, []float64{5, 6, 7, 8}, rows.Data())

	assert.Panics(t, func() { backend.Narrow(x, 1, 3, 2) })
}

func TestCPUBackend_IndexSelect(t *testing.T) {
	backend := New()
	x := raw(t, tensor.Shape{3, 2}, 1, 2, 3, 4, 5, 6)

	out := backend.IndexSelect(x, 0, []int{2, 0, 2})
	assert.Equal(t, tensor.Shape{3, 2}, out.Shape())
	assert.Equal(t, []float64{5, 6, 1, 2, 5, 6}, out.Data())

	none := backend.IndexSelect(x, 0, nil)
	assert.Equal(t, tensor.Shape{0, 2}, none.Shape())

	assert.Panics(t, func() { backend.IndexSelect(x, 0, []int{3}) })
}

func TestCPUBackend_Cat(t *testing.T) {
	backend := New()
	a := raw(t, tensor.Shape{2, 1}, 1, 2)
	b := raw(t, tensor.Shape{2, 2}, 3, 4, 5, 6)

	out := backend.Cat([]*tensor.RawTensor{a, b}, 1)
	assert.Equal(t, tensor.Shape{2, 3}, out.Shape())
	assert.Equal(t, []float64{1, 3, 4, 2, 5, 6}, out.Data())

	rows := backend.Cat([]*tensor.RawTensor{b, b}, 0)
	assert.Equal(t, []float64{3, 4, 5, 6, 3, 4, 5, 6}, rows.Data())

	assert.Panics(t, func() { backend.Cat([]*tensor.RawTensor{a, raw(t, tensor.Shape{3, 1}, 1, 2, 3)}, 1) })
	assert.Panics(t, func() { backend.Cat(nil, 0) })
}
