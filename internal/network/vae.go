package network

import (
	"math/rand"

	"github.com/born-ml/graspnet/internal/config"
	"github.com/born-ml/graspnet/internal/nn"
	"github.com/born-ml/graspnet/internal/tensor"
)

// VAE is the variational grasp sampler. In training mode the encoder sees the
// ground truth grasp and the decoder receives a reparameterized sample of the
// posterior; otherwise the decoder receives the posterior mean.
type VAE[B tensor.Backend] struct {
	points   *PointEncoder[B]
	trunk    *nn.Sequential[B]
	mu       *nn.Linear[B]
	logVar   *nn.Linear[B]
	decoder  *decoder[B]
	parts    components[B]
	latent   int
	training bool
	rng      *rand.Rand
}

// NewVAE creates a VAE with the given hidden width and latent size.
func NewVAE[B tensor.Backend](hidden, latent int, training bool, rng *rand.Rand, backend B) *VAE[B] {
	v := &VAE[B]{
		points: NewPointEncoder(hidden, rng, backend),
		trunk: nn.NewSequential[B](
			nn.NewLinearWithRand(hidden+graspFeatures, hidden, rng, backend),
			nn.NewReLU[B](),
		),
		mu:       nn.NewLinearWithRand(hidden, latent, rng, backend),
		logVar:   nn.NewLinearWithRand(hidden, latent, rng, backend),
		decoder:  newDecoder(hidden, latent, rng, backend),
		latent:   latent,
		training: training,
		rng:      rng,
	}
	v.parts = components[B]{
		{"encoder.points", v.points},
		{"encoder.trunk", v.trunk},
		{"encoder.mu", v.mu},
		{"encoder.logvar", v.logVar},
		{"decoder.points", v.decoder.points},
		{"decoder.trunk", v.decoder.trunk},
		{"decoder.qt", v.decoder.qt},
		{"decoder.confidence", v.decoder.confidence},
	}
	return v
}

// Encode returns the posterior mean and log variance for pc and grasps.
func (v *VAE[B]) Encode(pc, grasps *tensor.Tensor[B]) (mu, logVar *tensor.Tensor[B]) {
	features := tensor.Cat([]*tensor.Tensor[B]{v.points.Forward(pc), embedGrasps(grasps)}, 1)
	h := v.trunk.Forward(features)
	return v.mu.Forward(h), v.logVar.Forward(h)
}

// Decode maps a latent code z (N, latent) to grasps and confidence.
func (v *VAE[B]) Decode(pc, z *tensor.Tensor[B]) (qt, confidence *tensor.Tensor[B]) {
	return v.decoder.forward(pc, z)
}

// Forward encodes, samples and decodes.
func (v *VAE[B]) Forward(pc, grasps *tensor.Tensor[B]) Output[B] {
	mu, logVar := v.Encode(pc, grasps)
	z := mu
	if v.training {
		eps := tensor.Randn(mu.Shape(), v.rng, mu.Backend())
		z = mu.Add(logVar.MulScalar(0.5).Exp().Mul(eps))
	}
	qt, confidence := v.Decode(pc, z)
	return Output[B]{Grasps: qt, Confidence: confidence, Mu: mu, LogVar: logVar}
}

// LatentSize returns the latent dimension.
func (v *VAE[B]) LatentSize() int { return v.latent }

// Parameters returns all encoder and decoder parameters.
func (v *VAE[B]) Parameters() []*nn.Parameter[B] { return v.parts.parameters() }

// StateDict returns the parameters keyed by component.
func (v *VAE[B]) StateDict() map[string]*tensor.RawTensor { return v.parts.stateDict() }

// LoadStateDict loads parameters saved by StateDict.
func (v *VAE[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return v.parts.loadStateDict(stateDict)
}

// Variant returns config.VAE.
func (v *VAE[B]) Variant() config.Variant { return config.VAE }
