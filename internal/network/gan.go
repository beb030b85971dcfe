package network

import (
	"math/rand"

	"github.com/born-ml/graspnet/internal/config"
	"github.com/born-ml/graspnet/internal/nn"
	"github.com/born-ml/graspnet/internal/tensor"
)

// GAN is the generator of the adversarial grasp sampler. Every forward pass
// draws a fresh latent code from N(0, I); the input grasps are ignored.
type GAN[B tensor.Backend] struct {
	decoder *decoder[B]
	parts   components[B]
	latent  int
	rng     *rand.Rand
}

// NewGAN creates a generator with the given hidden width and latent size.
func NewGAN[B tensor.Backend](hidden, latent int, rng *rand.Rand, backend B) *GAN[B] {
	g := &GAN[B]{
		decoder: newDecoder(hidden, latent, rng, backend),
		latent:  latent,
		rng:     rng,
	}
	g.parts = components[B]{
		{"decoder.points", g.decoder.points},
		{"decoder.trunk", g.decoder.trunk},
		{"decoder.qt", g.decoder.qt},
		{"decoder.confidence", g.decoder.confidence},
	}
	return g
}

// Forward samples one grasp per point cloud.
func (g *GAN[B]) Forward(pc, _ *tensor.Tensor[B]) Output[B] {
	z := tensor.Randn(tensor.Shape{pc.Shape()[0], g.latent}, g.rng, pc.Backend())
	qt, confidence := g.decoder.forward(pc, z)
	return Output[B]{Grasps: qt, Confidence: confidence}
}

// Parameters returns the generator parameters.
func (g *GAN[B]) Parameters() []*nn.Parameter[B] { return g.parts.parameters() }

// StateDict returns the parameters keyed by component.
func (g *GAN[B]) StateDict() map[string]*tensor.RawTensor { return g.parts.stateDict() }

// LoadStateDict loads parameters saved by StateDict.
func (g *GAN[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return g.parts.loadStateDict(stateDict)
}

// Variant returns config.GAN.
func (g *GAN[B]) Variant() config.Variant { return config.GAN }
