// Package model implements the training controller: it owns a grasp network,
// its loss criterion, the Adam optimizer and the learning rate scheduler, and
// saves and restores the network's parameters.
//
// A Controller is single-owner and not safe for concurrent use.
package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/born-ml/graspnet/internal/autodiff"
	"github.com/born-ml/graspnet/internal/backend/cpu"
	"github.com/born-ml/graspnet/internal/config"
	"github.com/born-ml/graspnet/internal/dataset"
	"github.com/born-ml/graspnet/internal/geometry"
	"github.com/born-ml/graspnet/internal/loss"
	"github.com/born-ml/graspnet/internal/network"
	"github.com/born-ml/graspnet/internal/optim"
	"github.com/born-ml/graspnet/internal/scheduler"
	"github.com/born-ml/graspnet/internal/tensor"
	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

// Backend is the compute backend every controller runs on.
type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

// Controller state errors.
var (
	ErrNoInput       = errors.New("no input set")
	ErrInferenceMode = errors.New("controller is in inference mode")
)

// adamBeta2 is the second-moment coefficient paired with cfg.Beta1.
const adamBeta2 = 0.999

// Controller drives one network through training or inference.
type Controller struct {
	cfg      config.Config
	training bool
	runID    uuid.UUID

	backend   Backend
	net       network.Network[Backend]
	criterion criterion
	opt       *optim.Adam[Backend] // nil in inference mode
	sched     *scheduler.Scheduler // nil in inference mode

	pc     *tensor.Tensor[Backend]
	grasps *tensor.Tensor[Backend]
	target target

	grads     map[*tensor.RawTensor]*tensor.RawTensor
	losses    Losses
	iteration int64

	epochLoss  float64
	epochSteps int
}

// New builds the controller described by cfg. When cfg.IsTrain is false or
// cfg.ContinueTrain is set, the checkpoint labeled cfg.WhichEpoch is loaded
// before New returns; a missing file yields an error wrapping fs.ErrNotExist.
func New(cfg config.Config, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		//nolint:gosec // G404: weight initialization does not need crypto randomness
		o.rng = rand.New(rand.NewSource(cfg.Seed))
	}
	if o.runID == uuid.Nil {
		o.runID = uuid.New()
	}

	backend := autodiff.New(cpu.New())
	net, err := network.New(cfg, backend, o.rng)
	if err != nil {
		return nil, err
	}

	var lossOpts []loss.Option
	if o.hook != nil {
		lossOpts = append(lossOpts, loss.WithHook(o.hook))
	}

	c := &Controller{
		cfg:       cfg,
		training:  cfg.IsTrain,
		runID:     o.runID,
		backend:   backend,
		net:       net,
		criterion: newCriterion(cfg, lossOpts),
	}

	if c.training {
		c.opt = optim.NewAdam(net.Parameters(), optim.AdamConfig{
			LR:    cfg.LR,
			Betas: [2]float64{cfg.Beta1, adamBeta2},
			Eps:   1e-8,
		}, backend)
		c.sched, err = scheduler.New(cfg, c.opt)
		if err != nil {
			return nil, err
		}
		backend.Tape().StartRecording()
	}

	klog.Infof("compute backend: %s", backend.Inner().Describe())
	klog.Info(network.Summary(net))

	if !c.training || cfg.ContinueTrain {
		if err := c.LoadNetwork(cfg.WhichEpoch); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// SetInput replaces the current batch. In training mode the point cloud and
// grasp tensors are marked as requiring gradients and the operations recorded
// for the previous batch are dropped.
func (c *Controller) SetInput(batch dataset.Batch) error {
	if err := batch.Validate(); err != nil {
		return err
	}

	var tgt target
	switch c.cfg.Variant {
	case config.VAE, config.GAN:
		if len(batch.ControlPoints) == 0 {
			return fmt.Errorf("%w: %s needs target control points", dataset.ErrInvalidBatch, c.cfg.Variant)
		}
		cps, err := tensor.FromSlice(batch.ControlPoints, tensor.Shape{batch.Size, geometry.NumControlPoints, 3}, c.backend)
		if err != nil {
			return err
		}
		tgt.controlPoints = cps
	case config.Evaluator:
		if len(batch.Labels) == 0 {
			return fmt.Errorf("%w: evaluator needs labels", dataset.ErrInvalidBatch)
		}
		tgt.labels = append([]int(nil), batch.Labels...)
	}

	pc, err := tensor.FromSlice(batch.PointCloud, tensor.Shape{batch.Size, batch.NumPoints, 3}, c.backend)
	if err != nil {
		return err
	}
	grasps, err := tensor.FromSlice(batch.Grasps, tensor.Shape{batch.Size, 4, 4}, c.backend)
	if err != nil {
		return err
	}
	if c.training {
		pc.RequireGrad()
		grasps.RequireGrad()
		c.backend.Tape().Clear()
	}

	c.pc, c.grasps, c.target = pc, grasps, tgt
	return nil
}

// Forward runs the network on the current batch.
func (c *Controller) Forward() (network.Output[Backend], error) {
	if c.pc == nil {
		return network.Output[Backend]{}, fmt.Errorf("forward: %w", ErrNoInput)
	}
	return c.net.Forward(c.pc, c.grasps), nil
}

// Backward computes the variant's losses for out. In training mode it also
// backpropagates the total loss: every parameter reached by the graph gets
// its gradient (Parameter.Grad), which the next optimizer step consumes.
// In inference mode only the losses are computed.
func (c *Controller) Backward(out network.Output[Backend]) (Losses, error) {
	losses, total, err := c.criterion.compute(out, c.target)
	if err != nil {
		return Losses{}, fmt.Errorf("backward: %w", err)
	}
	c.losses = losses

	if c.training && c.backend.Tape().NumOps() > 0 {
		c.grads = autodiff.Backward(total, c.backend)
		for _, p := range c.net.Parameters() {
			if g, ok := c.grads[p.Tensor().Raw()]; ok {
				p.SetGrad(tensor.New(g, c.backend))
			}
		}
	}
	return losses, nil
}

// Evaluate scores out against the current batch, keeping only predictions
// whose confidence is at least threshold.
func (c *Controller) Evaluate(out network.Output[Backend], threshold float64) (Evaluation, error) {
	if c.pc == nil {
		return Evaluation{}, fmt.Errorf("evaluate: %w", ErrNoInput)
	}
	e, err := c.criterion.evaluate(out, c.target, threshold)
	if err != nil {
		return Evaluation{}, fmt.Errorf("evaluate: %w", err)
	}
	return e, nil
}

// OptimizeParameters runs one training step on the current batch.
func (c *Controller) OptimizeParameters() (Losses, error) {
	if !c.training {
		return Losses{}, fmt.Errorf("optimize: %w", ErrInferenceMode)
	}

	tape := c.backend.Tape()
	c.opt.ZeroGrad()
	tape.Clear()
	defer func() {
		tape.Clear()
		c.grads = nil
	}()

	out, err := c.Forward()
	if err != nil {
		return Losses{}, err
	}
	losses, err := c.Backward(out)
	if err != nil {
		return Losses{}, err
	}
	c.opt.Step(c.grads)

	c.iteration += int64(c.pc.Shape()[0])
	if !math.IsNaN(losses.Total) && !math.IsInf(losses.Total, 0) {
		c.epochLoss += losses.Total
		c.epochSteps++
	}
	return losses, nil
}

// UpdateLearningRate advances the scheduler by one epoch and returns the new
// learning rate. The plateau policy is fed the epoch's mean total loss.
func (c *Controller) UpdateLearningRate() float64 {
	if !c.training {
		return 0
	}
	metric := math.NaN()
	if c.epochSteps > 0 {
		metric = c.epochLoss / float64(c.epochSteps)
	}
	c.epochLoss, c.epochSteps = 0, 0

	lr := c.sched.StepWithMetric(metric)
	klog.Infof("learning rate = %.7f", lr)
	return lr
}

// Losses returns the bundle of the last Backward.
func (c *Controller) Losses() Losses { return c.losses }

// Network returns the controlled network.
func (c *Controller) Network() network.Network[Backend] { return c.net }

// LearningRate returns the optimizer's current learning rate, or zero in
// inference mode.
func (c *Controller) LearningRate() float64 {
	if c.opt == nil {
		return 0
	}
	return c.opt.GetLR()
}

// RunID identifies the training run in saved checkpoints.
func (c *Controller) RunID() uuid.UUID { return c.runID }

// Iteration is the number of training samples processed so far.
func (c *Controller) Iteration() int64 { return c.iteration }

// Training reports whether the controller was built in training mode.
func (c *Controller) Training() bool { return c.training }
