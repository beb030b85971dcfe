// Package geometry maps grasp poses onto gripper control points.
//
// A grasp is either a 7-vector qt = (qw, qx, qy, qz, tx, ty, tz) produced by
// the generator networks, or a 4×4 homogeneous transform carried by a batch.
// Both are compared through the six Panda gripper control points they move.
package geometry

import (
	"errors"
	"fmt"

	"github.com/born-ml/graspnet/internal/tensor"
)

// ErrShape is returned for pose tensors of the wrong rank or width.
var ErrShape = errors.New("geometry: invalid shape")

// NumControlPoints is the number of gripper control points.
const NumControlPoints = 6

// QTSize is the width of a quaternion-translation grasp vector.
const QTSize = 7

// PandaControlPoints are the Panda gripper control points in the gripper
// frame: the base twice, then the finger tips at the inner and outer
// positions of each finger.
var PandaControlPoints = [NumControlPoints][3]float64{
	{0, 0, 0},
	{0, 0, 0},
	{0.053, 0, 0.075},
	{-0.053, 0, 0.075},
	{0.053, 0, 0.105},
	{-0.053, 0, 0.105},
}

// ControlPointTensor returns the gripper control points as a (1, 6, 3) tensor.
func ControlPointTensor[B tensor.Backend](b B) *tensor.Tensor[B] {
	data := make([]float64, 0, NumControlPoints*3)
	for _, p := range PandaControlPoints {
		data = append(data, p[:]...)
	}
	t, err := tensor.FromSlice(data, tensor.Shape{1, NumControlPoints, 3}, b)
	if err != nil {
		panic(err)
	}
	return t
}

// TransformControlPoints moves the gripper control points by each grasp in
// qt (N, 7) and returns (N, 6, 3). The quaternion is expected to be unit
// length and is not renormalized here.
//
// The rotation is v + 2(w·(u×v) + u×(u×v)) built from differentiable ops,
// so gradients flow back into qt on an autodiff backend.
func TransformControlPoints[B tensor.Backend](qt *tensor.Tensor[B]) (*tensor.Tensor[B], error) {
	shape := qt.Shape()
	if len(shape) != 2 || shape[1] != QTSize {
		return nil, fmt.Errorf("%w: qt must be (N, %d), got %v", ErrShape, QTSize, shape)
	}
	n := shape[0]

	q := qt.Narrow(1, 0, 4).Reshape(n, 1, 4)
	translation := qt.Narrow(1, 4, 3).Reshape(n, 1, 3)
	w := q.Narrow(2, 0, 1)
	u := q.Narrow(2, 1, 3)

	points := ControlPointTensor(qt.Backend())
	uv := cross(u, points)
	uuv := cross(u, uv)
	rotated := points.Add(w.Mul(uv).Add(uuv).MulScalar(2))
	return rotated.Add(translation), nil
}

// cross computes a×b over the last axis with broadcasting over the others.
func cross[B tensor.Backend](a, b *tensor.Tensor[B]) *tensor.Tensor[B] {
	last := len(a.Shape()) - 1
	ax, ay, az := a.Narrow(last, 0, 1), a.Narrow(last, 1, 1), a.Narrow(last, 2, 1)
	bx, by, bz := b.Narrow(last, 0, 1), b.Narrow(last, 1, 1), b.Narrow(last, 2, 1)
	return tensor.Cat([]*tensor.Tensor[B]{
		ay.Mul(bz).Sub(az.Mul(by)),
		az.Mul(bx).Sub(ax.Mul(bz)),
		ax.Mul(by).Sub(ay.Mul(bx)),
	}, last)
}

// TransformControlPointsMatrix moves the control points by each 4×4
// homogeneous transform in grasps (N, 4, 4) and returns (N, 6, 3).
func TransformControlPointsMatrix[B tensor.Backend](grasps *tensor.Tensor[B]) (*tensor.Tensor[B], error) {
	shape := grasps.Shape()
	if len(shape) != 3 || shape[1] != 4 || shape[2] != 4 {
		return nil, fmt.Errorf("%w: grasps must be (N, 4, 4), got %v", ErrShape, shape)
	}
	n := shape[0]
	if n == 0 {
		return tensor.Zeros(tensor.Shape{0, NumControlPoints, 3}, grasps.Backend()), nil
	}

	// Row-vector form: p' = p·Rᵀ + t.
	top := grasps.Narrow(1, 0, 3)
	rot := top.Narrow(2, 0, 3)
	translation := top.Narrow(2, 3, 1)
	points := ControlPointTensor(grasps.Backend()).Reshape(NumControlPoints, 3)

	out := make([]*tensor.Tensor[B], n)
	for i := 0; i < n; i++ {
		r := rot.Narrow(0, i, 1).Reshape(3, 3)
		t := translation.Narrow(0, i, 1).Reshape(1, 3)
		out[i] = points.MatMul(r.T()).Add(t).Reshape(1, NumControlPoints, 3)
	}
	return tensor.Cat(out, 0), nil
}
