package loss

import (
	"errors"
	"fmt"
	"strings"

	"github.com/born-ml/graspnet/internal/tensor"
)

// ErrShapeMismatch is wrapped by every *ShapeError.
var ErrShapeMismatch = errors.New("loss: shape mismatch")

// ShapeError describes inputs whose shapes cannot be combined.
type ShapeError struct {
	Op     string         // Loss function name
	Reason string         // What was expected
	Shapes []tensor.Shape // Offending input shapes, in argument order
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	parts := make([]string, len(e.Shapes))
	for i, s := range e.Shapes {
		parts[i] = fmt.Sprint([]int(s))
	}
	return fmt.Sprintf("%s: %s (got %s)", e.Op, e.Reason, strings.Join(parts, ", "))
}

// Unwrap returns ErrShapeMismatch.
func (e *ShapeError) Unwrap() error {
	return ErrShapeMismatch
}

func shapeErr(op, reason string, shapes ...tensor.Shape) error {
	return &ShapeError{Op: op, Reason: reason, Shapes: shapes}
}

// checkControlPoints validates a (N, M, D) pair that must agree exactly.
func checkControlPoints(op string, pred, gt tensor.Shape) error {
	if len(pred) != 3 {
		return shapeErr(op, "predicted control points must be (N, M, D)", pred, gt)
	}
	if len(gt) != 3 {
		return shapeErr(op, "ground truth control points must be (N, M, D)", pred, gt)
	}
	if pred[2] != gt[2] {
		return shapeErr(op, fmt.Sprintf("feature dimension differs: %d vs %d", pred[2], gt[2]), pred, gt)
	}
	if !pred.Equal(gt) {
		return shapeErr(op, "predicted and ground truth control points differ", pred, gt)
	}
	return nil
}

// checkConfidence validates a per-sample confidence of shape (n) or (n, 1).
func checkConfidence(op string, conf tensor.Shape, n int) error {
	switch {
	case len(conf) == 1 && conf[0] == n:
		return nil
	case len(conf) == 2 && conf[0] == n && conf[1] == 1:
		return nil
	}
	return shapeErr(op, fmt.Sprintf("confidence must be (%d) or (%d, 1)", n, n), conf)
}

// checkLabels validates class labels against (N, C) logits.
func checkLabels(op string, logits tensor.Shape, labels []int) error {
	if len(logits) != 2 {
		return shapeErr(op, "logits must be (N, C)", logits)
	}
	if len(labels) != logits[0] {
		return shapeErr(op, fmt.Sprintf("got %d labels for %d rows of logits", len(labels), logits[0]), logits)
	}
	for i, l := range labels {
		if l < 0 || l >= logits[1] {
			return fmt.Errorf("%s: label %d at index %d outside [0, %d)", op, l, i, logits[1])
		}
	}
	return nil
}
