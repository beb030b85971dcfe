// Package dataset defines the training batch and the sources that yield it.
package dataset

import (
	"errors"
	"fmt"

	"github.com/born-ml/graspnet/internal/geometry"
)

// ErrInvalidBatch is wrapped by every Batch validation failure.
var ErrInvalidBatch = errors.New("invalid batch")

// Batch is one step's worth of host-side training data, row-major.
type Batch struct {
	Size      int // Number of samples (B)
	NumPoints int // Points per cloud (P)

	PointCloud    []float64 // (B, P, 3)
	Grasps        []float64 // (B, 4, 4) homogeneous grasp transforms
	ControlPoints []float64 // (B, 6, 3) target control points; vae and gan
	Labels        []int     // (B) grasp success, 0 or 1; evaluator
}

// Validate checks that every populated field matches Size and NumPoints.
// ControlPoints and Labels may be empty.
func (b Batch) Validate() error {
	if b.Size <= 0 {
		return fmt.Errorf("%w: size must be positive, got %d", ErrInvalidBatch, b.Size)
	}
	if b.NumPoints <= 0 {
		return fmt.Errorf("%w: point count must be positive, got %d", ErrInvalidBatch, b.NumPoints)
	}
	if got, want := len(b.PointCloud), b.Size*b.NumPoints*3; got != want {
		return fmt.Errorf("%w: point cloud has %d values, want %d", ErrInvalidBatch, got, want)
	}
	if got, want := len(b.Grasps), b.Size*16; got != want {
		return fmt.Errorf("%w: grasps have %d values, want %d", ErrInvalidBatch, got, want)
	}
	if len(b.ControlPoints) != 0 {
		if got, want := len(b.ControlPoints), b.Size*geometry.NumControlPoints*3; got != want {
			return fmt.Errorf("%w: control points have %d values, want %d", ErrInvalidBatch, got, want)
		}
	}
	if len(b.Labels) != 0 {
		if len(b.Labels) != b.Size {
			return fmt.Errorf("%w: %d labels for %d samples", ErrInvalidBatch, len(b.Labels), b.Size)
		}
		for i, l := range b.Labels {
			if l != 0 && l != 1 {
				return fmt.Errorf("%w: label %d at index %d is not 0 or 1", ErrInvalidBatch, l, i)
			}
		}
	}
	return nil
}

// Source yields batches. Next returns io.EOF at the end of an epoch; Reset
// starts the next one.
type Source interface {
	Next() (Batch, error)
	Reset()
	Len() int
}
