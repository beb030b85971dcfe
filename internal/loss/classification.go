package loss

import (
	"fmt"

	"github.com/born-ml/graspnet/internal/tensor"
)

// ClassificationWithConfidence returns the mean negative log-likelihood of
// labels under log-softmax(logits) and the confidence term
// -mean(log(max(conf, 1e-10))).
//
// weight is not applied to the confidence term here, unlike the control
// point losses.
func ClassificationWithConfidence[B tensor.Backend](
	logits *tensor.Tensor[B], labels []int, conf *tensor.Tensor[B], weight float64, opts ...Option,
) (nll, confTerm *tensor.Tensor[B], err error) {
	const op = "classification_with_confidence"
	if err := checkLabels(op, logits.Shape(), labels); err != nil {
		return nil, nil, err
	}
	if err := checkConfidence(op, conf.Shape(), len(labels)); err != nil {
		return nil, nil, err
	}
	buildOptions(opts).report(op, logits.Shape(), conf.Shape())

	classes := logits.Shape()[1]
	target := tensor.OneHot(labels, classes, logits.Backend())
	logpy := logits.LogSoftmax(1).Mul(target).SumDim(1, false)
	nll = logpy.Mean().Neg()
	return nll, confidenceTerm(flat(conf), ConfidenceFloor, 1), nil
}

// AccuracyBetterThanThreshold is the balanced accuracy over grasps with
// confidence at least threshold: 0.5 · (positive accuracy + negative
// accuracy), where label 1 is positive and each denominator is clamped at 1.
// It also returns the fraction of grasps that passed the threshold.
// Labels must be 0 or 1.
func AccuracyBetterThanThreshold[B tensor.Backend](
	logits *tensor.Tensor[B], labels []int, conf *tensor.Tensor[B], threshold float64, opts ...Option,
) (accuracy, passed float64, err error) {
	const op = "accuracy_better_than_threshold"
	if err := checkLabels(op, logits.Shape(), labels); err != nil {
		return 0, 0, err
	}
	for i, l := range labels {
		if l != 0 && l != 1 {
			return 0, 0, fmt.Errorf("%s: label %d at index %d is not binary", op, l, i)
		}
	}
	if err := checkConfidence(op, conf.Shape(), len(labels)); err != nil {
		return 0, 0, err
	}
	buildOptions(opts).report(op, logits.Shape(), conf.Shape())

	predicted := logits.Argmax()
	confidence := conf.Data()

	var posCorrect, posTotal, negCorrect, negTotal, kept float64
	for i, label := range labels {
		if confidence[i] < threshold {
			continue
		}
		kept++
		correct := predicted[i] == label
		if label == 1 {
			posTotal++
			if correct {
				posCorrect++
			}
		} else {
			negTotal++
			if correct {
				negCorrect++
			}
		}
	}

	accuracy = 0.5 * (posCorrect/max(posTotal, 1) + negCorrect/max(negTotal, 1))
	return accuracy, ratio(int(kept), len(labels)), nil
}
