package geometry

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Pose is a rigid grasp transform on the host.
type Pose struct {
	Rotation    r3.Rotation
	Translation r3.Vec
}

// PoseFromQT builds a pose from (qw, qx, qy, qz, tx, ty, tz). The quaternion
// is normalized; a zero quaternion is rejected.
func PoseFromQT(qt []float64) (Pose, error) {
	if len(qt) != QTSize {
		return Pose{}, fmt.Errorf("%w: qt must have %d values, got %d", ErrShape, QTSize, len(qt))
	}
	q := quat.Number{Real: qt[0], Imag: qt[1], Jmag: qt[2], Kmag: qt[3]}
	norm := quat.Abs(q)
	if norm == 0 || math.IsNaN(norm) {
		return Pose{}, fmt.Errorf("geometry: quaternion %v has no direction", qt[:4])
	}
	return Pose{
		Rotation:    r3.Rotation(quat.Scale(1/norm, q)),
		Translation: r3.Vec{X: qt[4], Y: qt[5], Z: qt[6]},
	}, nil
}

// RandomPose draws a uniformly random rotation and a Gaussian translation
// with the given standard deviation.
func RandomPose(rng *rand.Rand, translationStd float64) Pose {
	for {
		q := quat.Number{Real: rng.NormFloat64(), Imag: rng.NormFloat64(), Jmag: rng.NormFloat64(), Kmag: rng.NormFloat64()}
		norm := quat.Abs(q)
		if norm < 1e-9 {
			continue
		}
		return Pose{
			Rotation: r3.Rotation(quat.Scale(1/norm, q)),
			Translation: r3.Vec{
				X: rng.NormFloat64() * translationStd,
				Y: rng.NormFloat64() * translationStd,
				Z: rng.NormFloat64() * translationStd,
			},
		}
	}
}

// QT returns the pose as (qw, qx, qy, qz, tx, ty, tz).
func (p Pose) QT() [QTSize]float64 {
	return [QTSize]float64{
		p.Rotation.Real, p.Rotation.Imag, p.Rotation.Jmag, p.Rotation.Kmag,
		p.Translation.X, p.Translation.Y, p.Translation.Z,
	}
}

// Matrix returns the 4×4 homogeneous transform in row-major order.
func (p Pose) Matrix() [16]float64 {
	r := p.Rotation.Mat()
	var m [16]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i*4+j] = r.At(i, j)
		}
	}
	m[3], m[7], m[11] = p.Translation.X, p.Translation.Y, p.Translation.Z
	m[15] = 1
	return m
}

// Apply transforms a point from the gripper frame.
func (p Pose) Apply(v r3.Vec) r3.Vec {
	return r3.Add(p.Rotation.Rotate(v), p.Translation)
}

// ControlPoints returns the gripper control points moved by p.
func (p Pose) ControlPoints() [NumControlPoints][3]float64 {
	var out [NumControlPoints][3]float64
	for i, cp := range PandaControlPoints {
		moved := p.Apply(r3.Vec{X: cp[0], Y: cp[1], Z: cp[2]})
		out[i] = [3]float64{moved.X, moved.Y, moved.Z}
	}
	return out
}
