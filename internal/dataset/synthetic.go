package dataset

import (
	"io"
	"math/rand"

	"github.com/born-ml/graspnet/internal/geometry"
	"gonum.org/v1/gonum/spatial/r3"
)

// Synthetic options.
const (
	objectStd      = 0.05
	graspOffsetStd = 0.1
	// Grasps whose gripper base lies within this distance of the object
	// centroid are labeled successful.
	successRadius = 0.15
)

// SyntheticConfig sizes a Synthetic source.
type SyntheticConfig struct {
	BatchSize       int
	NumPoints       int
	BatchesPerEpoch int
	Seed            int64
}

// Synthetic generates random objects with random grasps around them. Target
// control points are the Panda control points moved by each grasp, so the
// geometry is consistent across fields.
type Synthetic struct {
	cfg  SyntheticConfig
	rng  *rand.Rand
	seen int
}

// NewSynthetic creates a deterministic synthetic source.
func NewSynthetic(cfg SyntheticConfig) *Synthetic {
	return &Synthetic{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)), //nolint:gosec // Synthetic data, not security-critical
	}
}

// Len returns the number of batches per epoch.
func (s *Synthetic) Len() int { return s.cfg.BatchesPerEpoch }

// Reset starts a new epoch.
func (s *Synthetic) Reset() { s.seen = 0 }

// Next returns the next batch or io.EOF at the end of the epoch.
func (s *Synthetic) Next() (Batch, error) {
	if s.seen >= s.cfg.BatchesPerEpoch {
		return Batch{}, io.EOF
	}
	s.seen++

	n, p := s.cfg.BatchSize, s.cfg.NumPoints
	b := Batch{
		Size:          n,
		NumPoints:     p,
		PointCloud:    make([]float64, 0, n*p*3),
		Grasps:        make([]float64, 0, n*16),
		ControlPoints: make([]float64, 0, n*geometry.NumControlPoints*3),
		Labels:        make([]int, n),
	}
	for i := 0; i < n; i++ {
		var centroid r3.Vec
		for j := 0; j < p; j++ {
			pt := r3.Vec{
				X: s.rng.NormFloat64() * objectStd,
				Y: s.rng.NormFloat64() * objectStd,
				Z: s.rng.NormFloat64() * objectStd,
			}
			centroid = r3.Add(centroid, pt)
			b.PointCloud = append(b.PointCloud, pt.X, pt.Y, pt.Z)
		}
		centroid = r3.Scale(1/float64(p), centroid)

		pose := geometry.RandomPose(s.rng, graspOffsetStd)
		m := pose.Matrix()
		b.Grasps = append(b.Grasps, m[:]...)
		for _, cp := range pose.ControlPoints() {
			b.ControlPoints = append(b.ControlPoints, cp[:]...)
		}
		if r3.Norm(r3.Sub(pose.Translation, centroid)) < successRadius {
			b.Labels[i] = 1
		}
	}
	return b, nil
}
