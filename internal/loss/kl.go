package loss

import (
	"github.com/born-ml/graspnet/internal/tensor"
)

// KLDivergence is the KL divergence of N(mu, exp(logSigma)) from N(0, I),
// averaged over the batch: mean(-0.5 · Σ(1 + logσ − μ² − exp(logσ))).
// Both inputs are (N, L).
func KLDivergence[B tensor.Backend](mu, logSigma *tensor.Tensor[B], opts ...Option) (*tensor.Tensor[B], error) {
	const op = "kl_divergence"
	if len(mu.Shape()) != 2 || !mu.Shape().Equal(logSigma.Shape()) {
		return nil, shapeErr(op, "mu and log sigma must both be (N, L)", mu.Shape(), logSigma.Shape())
	}
	buildOptions(opts).report(op, mu.Shape(), logSigma.Shape())

	inner := logSigma.AddScalar(1).Sub(mu.Square()).Sub(logSigma.Exp())
	return inner.SumDim(1, false).MulScalar(-0.5).Mean(), nil
}
