// Package network implements the grasp networks: the VAE and GAN grasp
// samplers and the grasp evaluator.
//
// All three share a point cloud encoder (a per-point MLP followed by mean
// pooling). Grasps enter the networks as 4×4 transforms and are featurized
// through the gripper control points they move.
package network

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/born-ml/graspnet/internal/config"
	"github.com/born-ml/graspnet/internal/nn"
	"github.com/born-ml/graspnet/internal/tensor"
)

// Output holds what a forward pass produced. Fields a variant does not
// produce are nil.
type Output[B tensor.Backend] struct {
	Grasps     *tensor.Tensor[B] // (N, 7) unit quaternion + translation (vae, gan)
	Confidence *tensor.Tensor[B] // (N, 1) in (0, 1)
	Logits     *tensor.Tensor[B] // (N, 2) success logits (evaluator)
	Mu         *tensor.Tensor[B] // (N, latent) posterior mean (vae)
	LogVar     *tensor.Tensor[B] // (N, latent) posterior log variance (vae)
}

// Network is a grasp network of one variant.
type Network[B tensor.Backend] interface {
	// Forward runs pc (N, P, 3) and grasps (N, 4, 4) through the network.
	Forward(pc, grasps *tensor.Tensor[B]) Output[B]
	Parameters() []*nn.Parameter[B]
	StateDict() map[string]*tensor.RawTensor
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
	Variant() config.Variant
}

// New builds the network selected by cfg.Variant. Weights and latent samples
// are drawn from rng.
func New[B tensor.Backend](cfg config.Config, backend B, rng *rand.Rand) (Network[B], error) {
	switch cfg.Variant {
	case config.VAE:
		return NewVAE(cfg.HiddenSize, cfg.LatentSize, cfg.IsTrain, rng, backend), nil
	case config.GAN:
		return NewGAN(cfg.HiddenSize, cfg.LatentSize, rng, backend), nil
	case config.Evaluator:
		return NewEvaluator(cfg.HiddenSize, rng, backend), nil
	default:
		return nil, fmt.Errorf("network: unknown variant %v", cfg.Variant)
	}
}

// Summary describes every tensor of n and the total parameter count.
func Summary[B tensor.Backend](n Network[B]) string {
	state := n.StateDict()
	names := make([]string, 0, len(state))
	for name := range state {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	fmt.Fprintf(&sb, "---------- Network initialized (%s) -------------\n", n.Variant())
	for _, name := range names {
		fmt.Fprintf(&sb, "  %-32s %v\n", name, []int(state[name].Shape()))
	}
	fmt.Fprintf(&sb, "[Network] Total number of parameters : %.3f M\n", float64(nn.CountParameters(n.Parameters()))/1e6)
	sb.WriteString("-----------------------------------------------")
	return sb.String()
}

// stateModule is the part of nn.Module the networks compose by name.
type stateModule[B tensor.Backend] interface {
	Parameters() []*nn.Parameter[B]
	StateDict() map[string]*tensor.RawTensor
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

type component[B tensor.Backend] struct {
	name   string
	module stateModule[B]
}

// components is an ordered list of named submodules.
type components[B tensor.Backend] []component[B]

func (cs components[B]) parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	for _, c := range cs {
		params = append(params, c.module.Parameters()...)
	}
	return params
}

func (cs components[B]) stateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	for _, c := range cs {
		nn.MergeStateDict(state, c.name, c.module.StateDict())
	}
	return state
}

// loadStateDict copies stateDict into the components. Every name and shape is
// checked before the first copy, so a rejected state dict leaves the network
// untouched.
func (cs components[B]) loadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := checkStateDict(cs.stateDict(), stateDict); err != nil {
		return err
	}
	for _, c := range cs {
		if err := c.module.LoadStateDict(nn.SubStateDict(stateDict, c.name)); err != nil {
			return fmt.Errorf("failed to load %s: %w", c.name, err)
		}
	}
	return nil
}

// checkStateDict reports the first difference in names or shapes between the
// live parameters and an incoming state dict.
func checkStateDict(live, incoming map[string]*tensor.RawTensor) error {
	names := make([]string, 0, len(live))
	for name := range live {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		raw, ok := incoming[name]
		if !ok {
			return fmt.Errorf("missing %s in state dict", name)
		}
		if want := live[name].Shape(); !raw.Shape().Equal(want) {
			return fmt.Errorf("%s shape mismatch: expected %v, got %v", name, want, raw.Shape())
		}
	}
	if extra := len(incoming) - len(live); extra > 0 {
		return fmt.Errorf("state dict has %d entries not used by this network", extra)
	}
	return nil
}
