package ops

import (
	"github.com/born-ml/graspnet/internal/tensor"
)

// ExpOp represents output = exp(x).
//
// Backward: grad_x = outputGrad * output.
type ExpOp struct{ unary }

// NewExpOp creates a new ExpOp.
func NewExpOp(x, output *tensor.RawTensor) *ExpOp {
	return &ExpOp{unary{input: x, output: output}}
}

// Backward computes the gradient for exp.
func (op *ExpOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Mul(outputGrad, op.output)}
}

// LogOp represents output = log(x).
//
// Backward: grad_x = outputGrad / x.
type LogOp struct{ unary }

// NewLogOp creates a new LogOp.
func NewLogOp(x, output *tensor.RawTensor) *LogOp {
	return &LogOp{unary{input: x, output: output}}
}

// Backward computes the gradient for log.
func (op *LogOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Div(outputGrad, op.input)}
}

// SqrtOp represents output = sqrt(x).
//
// Backward: grad_x = outputGrad / (2 * output).
type SqrtOp struct{ unary }

// NewSqrtOp creates a new SqrtOp.
func NewSqrtOp(x, output *tensor.RawTensor) *SqrtOp {
	return &SqrtOp{unary{input: x, output: output}}
}

// Backward computes the gradient for sqrt.
func (op *SqrtOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Div(backend.MulScalar(outputGrad, 0.5), op.output)}
}

// AbsOp represents output = |x|.
//
// Backward: grad_x = outputGrad * sign(x), with sign(0) = 0.
type AbsOp struct{ unary }

// NewAbsOp creates a new AbsOp.
func NewAbsOp(x, output *tensor.RawTensor) *AbsOp {
	return &AbsOp{unary{input: x, output: output}}
}

// Backward computes the gradient for abs.
func (op *AbsOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	sign := mapped(op.input, backend.Device(), func(v float64) float64 {
		switch {
		case v > 0:
			return 1
		case v < 0:
			return -1
		default:
			return 0
		}
	})
	return []*tensor.RawTensor{backend.Mul(outputGrad, sign)}
}

// ClampMinOp represents output = max(x, minVal).
//
// Backward: gradient flows where x >= minVal.
type ClampMinOp struct {
	unary
	minVal float64
}

// NewClampMinOp creates a new ClampMinOp.
func NewClampMinOp(x, output *tensor.RawTensor, minVal float64) *ClampMinOp {
	return &ClampMinOp{unary: unary{input: x, output: output}, minVal: minVal}
}

// Backward computes the gradient for clamp.
func (op *ClampMinOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	mask := mapped(op.input, backend.Device(), func(v float64) float64 {
		if v >= op.minVal {
			return 1
		}
		return 0
	})
	return []*tensor.RawTensor{backend.Mul(outputGrad, mask)}
}
