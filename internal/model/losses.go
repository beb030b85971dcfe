package model

import (
	"fmt"
	"strings"

	"github.com/born-ml/graspnet/internal/config"
)

// Component names reported by Losses.Components.
const (
	ComponentKL             = "kl"
	ComponentReconstruction = "reconstruction"
	ComponentConfidence     = "confidence"
	ComponentClassification = "classification"
)

// Losses is the loss bundle of one step. Only the components of the variant
// that produced it are meaningful; Total is their sum.
type Losses struct {
	Variant        config.Variant
	Total          float64
	KL             float64 // already scaled by kl_loss_weight
	Reconstruction float64
	Confidence     float64
	Classification float64
}

// Component is a named loss value.
type Component struct {
	Name  string
	Value float64
}

// Components returns the active components in a fixed order.
func (l Losses) Components() []Component {
	switch l.Variant {
	case config.VAE:
		return []Component{
			{ComponentKL, l.KL},
			{ComponentReconstruction, l.Reconstruction},
			{ComponentConfidence, l.Confidence},
		}
	case config.GAN:
		return []Component{
			{ComponentReconstruction, l.Reconstruction},
			{ComponentConfidence, l.Confidence},
		}
	case config.Evaluator:
		return []Component{
			{ComponentClassification, l.Classification},
			{ComponentConfidence, l.Confidence},
		}
	default:
		return nil
	}
}

// String formats the bundle the way the training log prints it.
func (l Losses) String() string {
	parts := []string{fmt.Sprintf("total: %.6f", l.Total)}
	for _, c := range l.Components() {
		parts = append(parts, fmt.Sprintf("%s: %.6f", c.Name, c.Value))
	}
	return strings.Join(parts, " ")
}

// Evaluation holds the metrics of one batch restricted to the predictions
// whose confidence reaches Threshold. Error is the control point error of
// the kept grasps (vae: index-matched L1, gan: distance to the closest target);
// Accuracy is the balanced accuracy of the kept grasps (evaluator).
type Evaluation struct {
	Variant   config.Variant
	Threshold float64
	Error     float64
	Accuracy  float64
	Kept      float64 // fraction of predictions at or above Threshold
}

// String formats the metrics of the variant that produced e.
func (e Evaluation) String() string {
	if e.Variant == config.Evaluator {
		return fmt.Sprintf("accuracy@%.2f: %.4f kept: %.4f", e.Threshold, e.Accuracy, e.Kept)
	}
	return fmt.Sprintf("error@%.2f: %.6f kept: %.4f", e.Threshold, e.Error, e.Kept)
}
