package network

import (
	"math/rand"

	"github.com/born-ml/graspnet/internal/config"
	"github.com/born-ml/graspnet/internal/nn"
	"github.com/born-ml/graspnet/internal/tensor"
)

// Evaluator scores a grasp against a point cloud with two-class success
// logits and a confidence in (0, 1).
type Evaluator[B tensor.Backend] struct {
	points     *PointEncoder[B]
	trunk      *nn.Sequential[B]
	logits     *nn.Linear[B]
	confidence *nn.Linear[B]
	parts      components[B]
}

// NewEvaluator creates an evaluator with the given hidden width.
func NewEvaluator[B tensor.Backend](hidden int, rng *rand.Rand, backend B) *Evaluator[B] {
	e := &Evaluator[B]{
		points: NewPointEncoder(hidden, rng, backend),
		trunk: nn.NewSequential[B](
			nn.NewLinearWithRand(hidden+graspFeatures, hidden, rng, backend),
			nn.NewReLU[B](),
			nn.NewLinearWithRand(hidden, hidden, rng, backend),
			nn.NewReLU[B](),
		),
		logits:     nn.NewLinearWithRand(hidden, 2, rng, backend),
		confidence: nn.NewLinearWithRand(hidden, 1, rng, backend),
	}
	e.parts = components[B]{
		{"points", e.points},
		{"trunk", e.trunk},
		{"logits", e.logits},
		{"confidence", e.confidence},
	}
	return e
}

// Forward scores grasps (N, 4, 4) against pc (N, P, 3).
func (e *Evaluator[B]) Forward(pc, grasps *tensor.Tensor[B]) Output[B] {
	features := tensor.Cat([]*tensor.Tensor[B]{e.points.Forward(pc), embedGrasps(grasps)}, 1)
	h := e.trunk.Forward(features)
	return Output[B]{
		Logits:     e.logits.Forward(h),
		Confidence: e.confidence.Forward(h).Sigmoid(),
	}
}

// Parameters returns all evaluator parameters.
func (e *Evaluator[B]) Parameters() []*nn.Parameter[B] { return e.parts.parameters() }

// StateDict returns the parameters keyed by component.
func (e *Evaluator[B]) StateDict() map[string]*tensor.RawTensor { return e.parts.stateDict() }

// LoadStateDict loads parameters saved by StateDict.
func (e *Evaluator[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return e.parts.loadStateDict(stateDict)
}

// Variant returns config.Evaluator.
func (e *Evaluator[B]) Variant() config.Variant { return config.Evaluator }
