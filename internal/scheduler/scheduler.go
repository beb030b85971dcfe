// Package scheduler adjusts an optimizer's learning rate once per epoch.
//
// Three policies are supported:
//   - lambda: constant for niter epochs, then linear decay to zero over
//     niter_decay epochs
//   - step: multiply by 0.1 every lr_decay_iters epochs
//   - plateau: multiply by 0.2 after 5 epochs without a 1% relative
//     improvement of the reported metric
package scheduler

import (
	"fmt"
	"math"

	"github.com/born-ml/graspnet/internal/config"
)

// Plateau and step policy constants.
const (
	StepGamma         = 0.1
	PlateauFactor     = 0.2
	PlateauThreshold  = 0.01
	PlateauPatience   = 5
	plateauMinDeltaLR = 1e-8
)

// Optimizer is the part of an optimizer a scheduler drives.
type Optimizer interface {
	GetLR() float64
	SetLR(lr float64)
}

// Scheduler owns the learning rate of one optimizer.
type Scheduler struct {
	opt    Optimizer
	policy string
	base   float64
	epoch  int

	epochCount   int
	niter        int
	niterDecay   int
	lrDecayIters int

	best     float64
	badCount int
}

// New creates the scheduler selected by cfg.LRPolicy and applies the
// epoch-zero learning rate to opt.
func New(cfg config.Config, opt Optimizer) (*Scheduler, error) {
	s := &Scheduler{
		opt:          opt,
		policy:       cfg.LRPolicy,
		base:         opt.GetLR(),
		epochCount:   cfg.EpochCount,
		niter:        cfg.NIter,
		niterDecay:   cfg.NIterDecay,
		lrDecayIters: cfg.LRDecayIters,
		best:         math.Inf(1),
	}
	switch s.policy {
	case config.PolicyLambda, config.PolicyPlateau:
	case config.PolicyStep:
		if s.lrDecayIters <= 0 {
			return nil, fmt.Errorf("%w: lr_decay_iters must be positive for the step policy", config.ErrInvalidConfig)
		}
	default:
		return nil, fmt.Errorf("%w: learning rate policy [%s] is not implemented", config.ErrInvalidConfig, s.policy)
	}
	if s.policy != config.PolicyPlateau {
		s.opt.SetLR(s.scheduled(0))
	}
	return s, nil
}

// Policy returns the configured policy name.
func (s *Scheduler) Policy() string { return s.policy }

// Epoch returns the number of completed Step calls.
func (s *Scheduler) Epoch() int { return s.epoch }

// LR returns the optimizer's current learning rate.
func (s *Scheduler) LR() float64 { return s.opt.GetLR() }

// Step advances one epoch. The plateau policy has no metric to compare here
// and leaves the learning rate unchanged.
func (s *Scheduler) Step() float64 {
	return s.StepWithMetric(math.NaN())
}

// StepWithMetric advances one epoch reporting metric, which is lower-is-better.
// Policies other than plateau ignore it, and the plateau policy ignores NaN.
func (s *Scheduler) StepWithMetric(metric float64) float64 {
	s.epoch++
	if s.policy == config.PolicyPlateau {
		s.plateau(metric)
	} else {
		s.opt.SetLR(s.scheduled(s.epoch))
	}
	return s.opt.GetLR()
}

func (s *Scheduler) scheduled(epoch int) float64 {
	switch s.policy {
	case config.PolicyStep:
		return s.base * math.Pow(StepGamma, float64(epoch/s.lrDecayIters))
	default:
		decayed := float64(max(0, epoch+s.epochCount-s.niter)) / float64(s.niterDecay+1)
		return s.base * max(0, 1-decayed)
	}
}

func (s *Scheduler) plateau(metric float64) {
	if math.IsNaN(metric) {
		return
	}
	if metric < s.best*(1-PlateauThreshold) {
		s.best = metric
		s.badCount = 0
		return
	}
	s.badCount++
	if s.badCount > PlateauPatience {
		old := s.opt.GetLR()
		if next := old * PlateauFactor; old-next > plateauMinDeltaLR {
			s.opt.SetLR(next)
		}
		s.badCount = 0
	}
}
