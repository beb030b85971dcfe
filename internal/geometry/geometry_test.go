package geometry

import (
	"math"
	"math/rand"
	"testing"

	"github.com/born-ml/graspnet/internal/autodiff"
	"github.com/born-ml/graspnet/internal/backend/cpu"
	"github.com/born-ml/graspnet/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestIdentityPoseKeepsControlPoints(t *testing.T) {
	b := cpu.New()
	qt, err := tensor.FromSlice([]float64{1, 0, 0, 0, 0, 0, 0}, tensor.Shape{1, 7}, b)
	require.NoError(t, err)

	cps, err := TransformControlPoints(qt)
	require.NoError(t, err)
	require.Equal(t, tensor.Shape{1, NumControlPoints, 3}, cps.Shape())

	for i, p := range PandaControlPoints {
		for j := range p {
			assert.InDelta(t, p[j], cps.At(0, i, j), 1e-12)
		}
	}
}

func TestTranslationOnly(t *testing.T) {
	b := cpu.New()
	qt, err := tensor.FromSlice([]float64{1, 0, 0, 0, 0.1, -0.2, 0.3}, tensor.Shape{1, 7}, b)
	require.NoError(t, err)

	cps, err := TransformControlPoints(qt)
	require.NoError(t, err)
	assert.InDelta(t, 0.053+0.1, cps.At(0, 2, 0), 1e-12)
	assert.InDelta(t, -0.2, cps.At(0, 2, 1), 1e-12)
	assert.InDelta(t, 0.075+0.3, cps.At(0, 2, 2), 1e-12)
}

func TestQuarterTurnAboutZ(t *testing.T) {
	b := cpu.New()
	h := math.Sqrt(0.5)
	qt, err := tensor.FromSlice([]float64{h, 0, 0, h, 0, 0, 0}, tensor.Shape{1, 7}, b)
	require.NoError(t, err)

	cps, err := TransformControlPoints(qt)
	require.NoError(t, err)
	// (0.053, 0, 0.075) rotated by +90° about z.
	assert.InDelta(t, 0, cps.At(0, 2, 0), 1e-12)
	assert.InDelta(t, 0.053, cps.At(0, 2, 1), 1e-12)
	assert.InDelta(t, 0.075, cps.At(0, 2, 2), 1e-12)
}

func TestQTAndMatrixAgree(t *testing.T) {
	b := cpu.New()
	rng := rand.New(rand.NewSource(3))

	const n = 5
	qtData := make([]float64, 0, n*QTSize)
	matData := make([]float64, 0, n*16)
	poses := make([]Pose, n)
	for i := range poses {
		poses[i] = RandomPose(rng, 0.1)
		qt := poses[i].QT()
		m := poses[i].Matrix()
		qtData = append(qtData, qt[:]...)
		matData = append(matData, m[:]...)
	}
	qt, err := tensor.FromSlice(qtData, tensor.Shape{n, QTSize}, b)
	require.NoError(t, err)
	mats, err := tensor.FromSlice(matData, tensor.Shape{n, 4, 4}, b)
	require.NoError(t, err)

	fromQT, err := TransformControlPoints(qt)
	require.NoError(t, err)
	fromMat, err := TransformControlPointsMatrix(mats)
	require.NoError(t, err)

	assert.InDeltaSlice(t, fromMat.Data(), fromQT.Data(), 1e-10)
	for i, p := range poses {
		host := p.ControlPoints()
		for k := 0; k < NumControlPoints; k++ {
			for j := 0; j < 3; j++ {
				assert.InDelta(t, host[k][j], fromQT.At(i, k, j), 1e-10)
			}
		}
	}
}

func TestShapeErrors(t *testing.T) {
	b := cpu.New()
	_, err := TransformControlPoints(tensor.Zeros(tensor.Shape{2, 6}, b))
	assert.ErrorIs(t, err, ErrShape)
	_, err = TransformControlPoints(tensor.Zeros(tensor.Shape{2, 7, 1}, b))
	assert.ErrorIs(t, err, ErrShape)
	_, err = TransformControlPointsMatrix(tensor.Zeros(tensor.Shape{2, 3, 4}, b))
	assert.ErrorIs(t, err, ErrShape)

	empty, err := TransformControlPointsMatrix(tensor.Zeros(tensor.Shape{0, 4, 4}, b))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{0, NumControlPoints, 3}, empty.Shape())
}

func TestGradientFlowsIntoQT(t *testing.T) {
	b := autodiff.New(cpu.New())
	b.Tape().StartRecording()

	pose := RandomPose(rand.New(rand.NewSource(9)), 0.05).QT()
	qt, err := tensor.FromSlice(pose[:], tensor.Shape{1, QTSize}, b)
	require.NoError(t, err)
	qt.RequireGrad()

	cps, err := TransformControlPoints(qt)
	require.NoError(t, err)
	grads := autodiff.Backward(cps.Sum(), b)

	g, ok := grads[qt.Raw()]
	require.True(t, ok)
	require.Equal(t, tensor.Shape{1, QTSize}, g.Shape())
	// d(sum)/d(translation) is one per control point and axis.
	for j := 4; j < QTSize; j++ {
		assert.InDelta(t, float64(NumControlPoints), g.Data()[j], 1e-9)
	}
}

func TestPoseFromQT(t *testing.T) {
	p, err := PoseFromQT([]float64{2, 0, 0, 0, 1, 2, 3})
	require.NoError(t, err)
	assert.InDelta(t, 1, p.Rotation.Real, 1e-12)
	assert.Equal(t, r3.Vec{X: 1, Y: 2, Z: 3}, p.Translation)

	_, err = PoseFromQT([]float64{0, 0, 0, 0, 0, 0, 0})
	assert.Error(t, err)
	_, err = PoseFromQT([]float64{1, 0, 0})
	assert.ErrorIs(t, err, ErrShape)
}

func TestMatrixIsRigid(t *testing.T) {
	p := RandomPose(rand.New(rand.NewSource(1)), 0.1)
	m := p.Matrix()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			dot := 0.0
			for k := 0; k < 3; k++ {
				dot += m[i*4+k] * m[j*4+k]
			}
			want := 0.0
			if i == j {
				want = 1
			}
			assert.InDelta(t, want, dot, 1e-12)
		}
	}
	assert.Equal(t, [4]float64{0, 0, 0, 1}, [4]float64{m[12], m[13], m[14], m[15]})
}
