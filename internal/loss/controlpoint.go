package loss

import (
	"github.com/born-ml/graspnet/internal/tensor"
)

// Confidence floors applied before taking the log.
const (
	ConfidenceFloor            = 1e-10
	MinDistanceConfidenceFloor = 1e-4
)

// perSampleL1 is the L1 distance summed over the feature axis and averaged
// over points: (N, M, D) → (N).
func perSampleL1[B tensor.Backend](pred, gt *tensor.Tensor[B]) *tensor.Tensor[B] {
	return pred.Sub(gt).Abs().SumDim(2, false).MeanDim(1, false)
}

// confidenceTerm is -weight · mean(log(max(conf, floor))).
func confidenceTerm[B tensor.Backend](conf *tensor.Tensor[B], floor, weight float64) *tensor.Tensor[B] {
	return conf.ClampMin(floor).Log().Mean().MulScalar(-weight)
}

// flat reshapes a (N) or (N, 1) confidence to (N).
func flat[B tensor.Backend](conf *tensor.Tensor[B]) *tensor.Tensor[B] {
	if len(conf.Shape()) == 1 {
		return conf
	}
	return conf.Reshape(conf.Shape()[0])
}

// ControlPointL1 is the mean over grasps of the per-grasp control point L1
// error.
func ControlPointL1[B tensor.Backend](pred, gt *tensor.Tensor[B], opts ...Option) (*tensor.Tensor[B], error) {
	const op = "control_point_l1"
	if err := checkControlPoints(op, pred.Shape(), gt.Shape()); err != nil {
		return nil, err
	}
	buildOptions(opts).report(op, pred.Shape(), gt.Shape())
	return perSampleL1(pred, gt).Mean(), nil
}

// ControlPointL1WithConfidence scales each grasp's L1 error by its confidence
// before averaging and returns the confidence term
// -weight · mean(log(max(conf, 1e-10))) alongside it.
func ControlPointL1WithConfidence[B tensor.Backend](
	pred, gt, conf *tensor.Tensor[B], weight float64, opts ...Option,
) (loss, confTerm *tensor.Tensor[B], err error) {
	const op = "control_point_l1_with_confidence"
	if err := checkControlPoints(op, pred.Shape(), gt.Shape()); err != nil {
		return nil, nil, err
	}
	if err := checkConfidence(op, conf.Shape(), pred.Shape()[0]); err != nil {
		return nil, nil, err
	}
	buildOptions(opts).report(op, pred.Shape(), gt.Shape(), conf.Shape())

	c := flat(conf)
	loss = perSampleL1(pred, gt).Mul(c).Mean()
	return loss, confidenceTerm(c, ConfidenceFloor, weight), nil
}

// ControlPointL1BetterThanThreshold evaluates ControlPointL1 on the grasps
// whose confidence is at least threshold and reports the fraction kept.
// Excluded grasps are dropped, not zero-padded. When nothing is kept the loss
// is 0.
func ControlPointL1BetterThanThreshold[B tensor.Backend](
	pred, gt, conf *tensor.Tensor[B], threshold float64, opts ...Option,
) (*tensor.Tensor[B], float64, error) {
	const op = "control_point_l1_better_than_threshold"
	if err := checkControlPoints(op, pred.Shape(), gt.Shape()); err != nil {
		return nil, 0, err
	}
	n := pred.Shape()[0]
	if err := checkConfidence(op, conf.Shape(), n); err != nil {
		return nil, 0, err
	}
	buildOptions(opts).report(op, pred.Shape(), gt.Shape(), conf.Shape())

	kept := confident(conf, threshold)
	fraction := ratio(len(kept), n)
	if len(kept) == 0 {
		return tensor.Scalar(0, pred.Backend()), fraction, nil
	}
	return perSampleL1(pred.IndexSelect(0, kept), gt.IndexSelect(0, kept)).Mean(), fraction, nil
}

// confident returns the indices with conf >= threshold.
func confident[B tensor.Backend](conf *tensor.Tensor[B], threshold float64) []int {
	data := conf.Data()
	kept := make([]int, 0, len(data))
	for i, c := range data {
		if c >= threshold {
			kept = append(kept, i)
		}
	}
	return kept
}

func ratio(k, n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(k) / float64(n)
}
