package loss

import (
	"github.com/born-ml/graspnet/internal/tensor"
)

// pairwiseL1 returns the (N_pred, N_gt) matrix of mean-over-points L1
// distances between every prediction and every ground truth grasp.
func pairwiseL1[B tensor.Backend](pred, gt *tensor.Tensor[B]) *tensor.Tensor[B] {
	diff := pred.Unsqueeze(1).Sub(gt.Unsqueeze(0)) // (N_pred, N_gt, M, D)
	return diff.Abs().SumDim(3, false).MeanDim(2, false)
}

func checkPairwise(op string, pred, gt tensor.Shape) error {
	if len(pred) != 3 {
		return shapeErr(op, "predicted control points must have rank 3", pred)
	}
	if len(gt) != 3 {
		return shapeErr(op, "ground truth control points must have rank 3", gt)
	}
	if pred[1] != gt[1] || pred[2] != gt[2] {
		return shapeErr(op, "shapes do not match past the grasp dimension", pred, gt)
	}
	if pred[0] == 0 || gt[0] == 0 {
		return shapeErr(op, "need at least one predicted and one ground truth grasp", pred, gt)
	}
	return nil
}

// MinDistance matches every ground truth grasp to its closest prediction
// under the control point L1 distance and averages those minima.
//
// With a non-nil conf (one value per prediction) each minimum is scaled by
// the confidence of the prediction that attained it, and the returned
// confidence term is -weight · mean(log(max(conf, 1e-4))). Without conf the
// confidence term is 0.
func MinDistance[B tensor.Backend](
	pred, gt, conf *tensor.Tensor[B], weight float64, opts ...Option,
) (loss, confTerm *tensor.Tensor[B], err error) {
	const op = "min_distance"
	if err := checkPairwise(op, pred.Shape(), gt.Shape()); err != nil {
		return nil, nil, err
	}
	o := buildOptions(opts)
	if conf == nil {
		o.report(op, pred.Shape(), gt.Shape())
		minErr, _ := pairwiseL1(pred, gt).MinDim(0)
		return minErr.Mean(), tensor.Scalar(0, pred.Backend()), nil
	}
	if err := checkConfidence(op, conf.Shape(), pred.Shape()[0]); err != nil {
		return nil, nil, err
	}
	o.report(op, pred.Shape(), gt.Shape(), conf.Shape())

	c := flat(conf)
	minErr, closest := pairwiseL1(pred, gt).MinDim(0) // (N_gt), index into N_pred
	selected := c.IndexSelect(0, closest)
	loss = minErr.Mul(selected).Mean()
	return loss, confidenceTerm(c, MinDistanceConfidenceFloor, weight), nil
}

// MinDistanceBetterThanThreshold takes, for every prediction, the distance to
// its closest ground truth grasp and averages it over the predictions whose
// confidence is at least threshold. It also returns the fraction of
// predictions kept. When nothing is kept the mean error is 0.
func MinDistanceBetterThanThreshold[B tensor.Backend](
	pred, gt, conf *tensor.Tensor[B], threshold float64, opts ...Option,
) (*tensor.Tensor[B], float64, error) {
	const op = "min_distance_better_than_threshold"
	if err := checkPairwise(op, pred.Shape(), gt.Shape()); err != nil {
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
	perPred, _ := pairwiseL1(pred, gt).MinDim(1)
	return perPred.IndexSelect(0, kept).Mean(), fraction, nil
}
