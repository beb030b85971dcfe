package model

import (
	"math/rand"

	"github.com/born-ml/graspnet/internal/loss"
	"github.com/google/uuid"
)

// Option configures a Controller.
type Option func(*options)

type options struct {
	rng   *rand.Rand
	hook  loss.Hook
	runID uuid.UUID
}

// WithRand sets the source of weight initialization and latent sampling.
// Defaults to a generator seeded with the configured seed.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) {
		o.rng = rng
	}
}

// WithLossHook installs an instrumentation hook on every loss call.
func WithLossHook(h loss.Hook) Option {
	return func(o *options) {
		o.hook = h
	}
}

// WithRunID fixes the run identifier stamped into saved checkpoints.
func WithRunID(id uuid.UUID) Option {
	return func(o *options) {
		o.runID = id
	}
}
