package ops

import "github.com/born-ml/graspnet/internal/tensor"

// ReLUOp represents the rectified linear unit: output = max(0, x).
//
// Backward pass:
//   - d(ReLU(x))/dx = 1 if x > 0, else 0
type ReLUOp struct{ unary }

// NewReLUOp creates a new ReLUOp.
func NewReLUOp(x, output *tensor.RawTensor) *ReLUOp {
	return &ReLUOp{unary{input: x, output: output}}
}

// Backward computes the input gradient for ReLU.
func (op *ReLUOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	mask := mapped(op.input, backend.Device(), func(v float64) float64 {
		if v > 0 {
			return 1
		}
		return 0
	})
	return []*tensor.RawTensor{backend.Mul(outputGrad, mask)}
}

// SigmoidOp represents output = σ(x).
//
// Backward: grad_x = outputGrad * σ(x) * (1 - σ(x)).
type SigmoidOp struct{ unary }

// NewSigmoidOp creates a new SigmoidOp.
func NewSigmoidOp(x, output *tensor.RawTensor) *SigmoidOp {
	return &SigmoidOp{unary{input: x, output: output}}
}

// Backward computes the input gradient for sigmoid.
func (op *SigmoidOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	local := mapped(op.output, backend.Device(), func(s float64) float64 { return s * (1 - s) })
	return []*tensor.RawTensor{backend.Mul(outputGrad, local)}
}

// LogSoftmaxOp represents output = log_softmax(x, dim).
//
// Backward:
//
//	grad_x = outputGrad - softmax(x) * sum(outputGrad, dim)
//
// where softmax(x) = exp(output).
type LogSoftmaxOp struct {
	unary
	dim int
}

// NewLogSoftmaxOp creates a new LogSoftmaxOp.
func NewLogSoftmaxOp(x, output *tensor.RawTensor, dim int) *LogSoftmaxOp {
	return &LogSoftmaxOp{
		unary: unary{input: x, output: output},
		dim:   tensor.NormalizeDim(dim, len(x.Shape())),
	}
}

// Backward computes the input gradient for log-softmax.
func (op *LogSoftmaxOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	softmax := backend.Exp(op.output)
	total := backend.SumDim(outputGrad, op.dim, true)
	return []*tensor.RawTensor{backend.Sub(outputGrad, backend.Mul(softmax, total))}
}
