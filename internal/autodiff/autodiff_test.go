package autodiff_test

import (
	"testing"

	"github.com/born-ml/graspnet/internal/autodiff"
	"github.com/born-ml/graspnet/internal/backend/cpu"
	"github.com/born-ml/graspnet/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutodiffBackend_Metadata(t *testing.T) {
	backend := autodiff.New(cpu.New())
	assert.Equal(t, "Autodiff(CPU)", backend.Name())
	assert.Equal(t, tensor.CPU, backend.Device())
	assert.NotNil(t, backend.Inner())
}

func TestTape_Recording(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()
	assert.False(t, tape.IsRecording())

	a, err := tensor.FromSlice([]float64{1, 2}, tensor.Shape{2}, backend)
	require.NoError(t, err)

	a.Add(a)
	assert.Equal(t, 0, tape.NumOps(), "operations are not recorded before StartRecording")

	tape.StartRecording()
	a.Add(a).Mul(a)
	assert.Equal(t, 2, tape.NumOps())

	tape.StopRecording()
	a.Exp()
	assert.Equal(t, 2, tape.NumOps())

	tape.Clear()
	assert.Equal(t, 0, tape.NumOps())
	assert.False(t, tape.IsRecording())
}

func TestBackward_Square(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x, err := tensor.FromSlice([]float64{3}, tensor.Shape{1}, backend)
	require.NoError(t, err)
	y := x.Mul(x)

	grads := autodiff.Backward(y, backend)
	require.Contains(t, grads, x.Raw())
	assert.Equal(t, []float64{6}, grads[x.Raw()].Data())
}

func TestBackward_SeedsAtGivenOutput(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x, err := tensor.FromSlice([]float64{2}, tensor.Shape{1}, backend)
	require.NoError(t, err)
	loss := x.MulScalar(5)

	// Recorded after the loss; must not influence its gradient.
	x.Mul(x).Exp()

	grads := autodiff.Backward(loss, backend)
	assert.Equal(t, []float64{5}, grads[x.Raw()].Data())
}

func TestBackward_BroadcastReduction(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	a, err := tensor.FromSlice([]float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	require.NoError(t, err)
	bias, err := tensor.FromSlice([]float64{1, 1, 1}, tensor.Shape{3}, backend)
	require.NoError(t, err)

	loss := a.Add(bias).Sum()
	grads := autodiff.Backward(loss, backend)

	assert.Equal(t, tensor.Shape{3}, grads[bias.Raw()].Shape())
	assert.Equal(t, []float64{2, 2, 2}, grads[bias.Raw()].Data())
	assert.Equal(t, []float64{1, 1, 1, 1, 1, 1}, grads[a.Raw()].Data())
}

func TestBackward_LinearLayer(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x, err := tensor.FromSlice([]float64{1, 2}, tensor.Shape{1, 2}, backend)
	require.NoError(t, err)
	w, err := tensor.FromSlice([]float64{1, 0, 0, 1, 1, 1}, tensor.Shape{3, 2}, backend)
	require.NoError(t, err)

	loss := x.MatMul(w.T()).Sum()
	grads := autodiff.Backward(loss, backend)

	// dL/dW[i, j] = x[j] for every output row i.
	require.Contains(t, grads, w.Raw())
	assert.Equal(t, []float64{1, 2, 1, 2, 1, 2}, grads[w.Raw()].Data())
}

func TestBackward_NoOperations(t *testing.T) {
	backend := autodiff.New(cpu.New())
	x := tensor.Ones(tensor.Shape{1}, backend)
	assert.Panics(t, func() { autodiff.Backward(x, backend) })
}
