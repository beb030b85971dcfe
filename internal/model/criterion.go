package model

import (
	"fmt"

	"github.com/born-ml/graspnet/internal/config"
	"github.com/born-ml/graspnet/internal/geometry"
	"github.com/born-ml/graspnet/internal/loss"
	"github.com/born-ml/graspnet/internal/network"
	"github.com/born-ml/graspnet/internal/tensor"
)

// target is the supervision of the current batch.
type target struct {
	controlPoints *tensor.Tensor[Backend] // (B, 6, 3); vae and gan
	labels        []int                   // (B); evaluator
}

// criterion turns a network output into the scalar training loss and into
// confidence-filtered evaluation metrics.
type criterion interface {
	compute(out network.Output[Backend], tgt target) (Losses, *tensor.Tensor[Backend], error)
	evaluate(out network.Output[Backend], tgt target, threshold float64) (Evaluation, error)
}

// newCriterion returns the criterion paired with v. Variants are validated
// with the configuration, so an unknown one here is a programming error.
func newCriterion(cfg config.Config, opts []loss.Option) criterion {
	switch cfg.Variant {
	case config.VAE:
		return vaeCriterion{klWeight: cfg.KLLossWeight, confidenceWeight: cfg.ConfidenceWeight, opts: opts}
	case config.GAN:
		return ganCriterion{confidenceWeight: cfg.ConfidenceWeight, opts: opts}
	case config.Evaluator:
		return evaluatorCriterion{confidenceWeight: cfg.ConfidenceWeight, opts: opts}
	default:
		panic(fmt.Sprintf("model: no criterion for variant %v", cfg.Variant))
	}
}

// vaeCriterion: KL·kl_loss_weight + confidence-scaled control point L1 + confidence term.
type vaeCriterion struct {
	klWeight         float64
	confidenceWeight float64
	opts             []loss.Option
}

func (c vaeCriterion) compute(out network.Output[Backend], tgt target) (Losses, *tensor.Tensor[Backend], error) {
	predicted, err := geometry.TransformControlPoints(out.Grasps)
	if err != nil {
		return Losses{}, nil, err
	}
	rec, conf, err := loss.ControlPointL1WithConfidence(predicted, tgt.controlPoints, out.Confidence, c.confidenceWeight, c.opts...)
	if err != nil {
		return Losses{}, nil, err
	}
	kl, err := loss.KLDivergence(out.Mu, out.LogVar, c.opts...)
	if err != nil {
		return Losses{}, nil, err
	}
	kl = kl.MulScalar(c.klWeight)

	total := kl.Add(rec).Add(conf)
	return Losses{
		Variant:        config.VAE,
		Total:          total.Item(),
		KL:             kl.Item(),
		Reconstruction: rec.Item(),
		Confidence:     conf.Item(),
	}, total, nil
}

// ganCriterion: min-distance reconstruction + confidence term. Generated
// grasps are matched to their closest target instead of index by index.
type ganCriterion struct {
	confidenceWeight float64
	opts             []loss.Option
}

func (c ganCriterion) compute(out network.Output[Backend], tgt target) (Losses, *tensor.Tensor[Backend], error) {
	predicted, err := geometry.TransformControlPoints(out.Grasps)
	if err != nil {
		return Losses{}, nil, err
	}
	rec, conf, err := loss.MinDistance(predicted, tgt.controlPoints, out.Confidence, c.confidenceWeight, c.opts...)
	if err != nil {
		return Losses{}, nil, err
	}

	total := rec.Add(conf)
	return Losses{
		Variant:        config.GAN,
		Total:          total.Item(),
		Reconstruction: rec.Item(),
		Confidence:     conf.Item(),
	}, total, nil
}

// evaluatorCriterion: classification NLL + confidence term.
type evaluatorCriterion struct {
	confidenceWeight float64
	opts             []loss.Option
}

func (c evaluatorCriterion) compute(out network.Output[Backend], tgt target) (Losses, *tensor.Tensor[Backend], error) {
	cls, conf, err := loss.ClassificationWithConfidence(out.Logits, tgt.labels, out.Confidence, c.confidenceWeight, c.opts...)
	if err != nil {
		return Losses{}, nil, err
	}

	total := cls.Add(conf)
	return Losses{
		Variant:        config.Evaluator,
		Total:          total.Item(),
		Classification: cls.Item(),
		Confidence:     conf.Item(),
	}, total, nil
}

func (c vaeCriterion) evaluate(out network.Output[Backend], tgt target, threshold float64) (Evaluation, error) {
	predicted, err := geometry.TransformControlPoints(out.Grasps)
	if err != nil {
		return Evaluation{}, err
	}
	l1, kept, err := loss.ControlPointL1BetterThanThreshold(predicted, tgt.controlPoints, out.Confidence, threshold, c.opts...)
	if err != nil {
		return Evaluation{}, err
	}
	return Evaluation{Variant: config.VAE, Threshold: threshold, Error: l1.Item(), Kept: kept}, nil
}

func (c ganCriterion) evaluate(out network.Output[Backend], tgt target, threshold float64) (Evaluation, error) {
	predicted, err := geometry.TransformControlPoints(out.Grasps)
	if err != nil {
		return Evaluation{}, err
	}
	dist, kept, err := loss.MinDistanceBetterThanThreshold(predicted, tgt.controlPoints, out.Confidence, threshold, c.opts...)
	if err != nil {
		return Evaluation{}, err
	}
	return Evaluation{Variant: config.GAN, Threshold: threshold, Error: dist.Item(), Kept: kept}, nil
}

func (c evaluatorCriterion) evaluate(out network.Output[Backend], tgt target, threshold float64) (Evaluation, error) {
	acc, kept, err := loss.AccuracyBetterThanThreshold(out.Logits, tgt.labels, out.Confidence, threshold, c.opts...)
	if err != nil {
		return Evaluation{}, err
	}
	return Evaluation{Variant: config.Evaluator, Threshold: threshold, Accuracy: acc, Kept: kept}, nil
}
