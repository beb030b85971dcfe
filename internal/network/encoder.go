package network

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/graspnet/internal/geometry"
	"github.com/born-ml/graspnet/internal/nn"
	"github.com/born-ml/graspnet/internal/tensor"
)

// graspFeatures is the number of features a grasp contributes: its moved
// control points, flattened.
const graspFeatures = geometry.NumControlPoints * 3

// PointEncoder embeds a point cloud (N, P, 3) into (N, hidden) by applying a
// shared MLP to every point and averaging over points.
type PointEncoder[B tensor.Backend] struct {
	mlp    *nn.Sequential[B]
	hidden int
}

// NewPointEncoder creates a two-layer shared point MLP.
func NewPointEncoder[B tensor.Backend](hidden int, rng *rand.Rand, backend B) *PointEncoder[B] {
	return &PointEncoder[B]{
		mlp: nn.NewSequential[B](
			nn.NewLinearWithRand(3, hidden, rng, backend),
			nn.NewReLU[B](),
			nn.NewLinearWithRand(hidden, hidden, rng, backend),
			nn.NewReLU[B](),
		),
		hidden: hidden,
	}
}

// Forward returns the pooled embedding of pc.
func (e *PointEncoder[B]) Forward(pc *tensor.Tensor[B]) *tensor.Tensor[B] {
	shape := pc.Shape()
	if len(shape) != 3 || shape[2] != 3 {
		panic(fmt.Sprintf("PointEncoder.Forward: expected point cloud [batch, points, 3], got %v", shape))
	}
	n, p := shape[0], shape[1]
	perPoint := e.mlp.Forward(pc.Reshape(n*p, 3))
	return perPoint.Reshape(n, p, e.hidden).MeanDim(1, false)
}

// Parameters returns the MLP parameters.
func (e *PointEncoder[B]) Parameters() []*nn.Parameter[B] {
	return e.mlp.Parameters()
}

// StateDict returns the MLP state keyed by layer index.
func (e *PointEncoder[B]) StateDict() map[string]*tensor.RawTensor {
	return e.mlp.StateDict()
}

// LoadStateDict loads the MLP state.
func (e *PointEncoder[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return e.mlp.LoadStateDict(stateDict)
}

// embedGrasps turns (N, 4, 4) transforms into (N, 18) control point features.
func embedGrasps[B tensor.Backend](grasps *tensor.Tensor[B]) *tensor.Tensor[B] {
	cps, err := geometry.TransformControlPointsMatrix(grasps)
	if err != nil {
		panic(fmt.Sprintf("embedGrasps: %v", err))
	}
	return cps.Reshape(grasps.Shape()[0], graspFeatures)
}

// normalizeQT rescales the quaternion part of (N, 7) to unit length.
func normalizeQT[B tensor.Backend](qt *tensor.Tensor[B]) *tensor.Tensor[B] {
	q := qt.Narrow(1, 0, 4)
	t := qt.Narrow(1, 4, 3)
	norm := q.Square().SumDim(1, true).AddScalar(1e-12).Sqrt()
	return tensor.Cat([]*tensor.Tensor[B]{q.Div(norm), t}, 1)
}

// decoder maps a point cloud embedding and a latent code to grasps and their
// confidence. It is shared by the VAE and the GAN.
type decoder[B tensor.Backend] struct {
	points     *PointEncoder[B]
	trunk      *nn.Sequential[B]
	qt         *nn.Linear[B]
	confidence *nn.Linear[B]
	parts      components[B]
}

func newDecoder[B tensor.Backend](hidden, latent int, rng *rand.Rand, backend B) *decoder[B] {
	d := &decoder[B]{
		points: NewPointEncoder(hidden, rng, backend),
		trunk: nn.NewSequential[B](
			nn.NewLinearWithRand(hidden+latent, hidden, rng, backend),
			nn.NewReLU[B](),
			nn.NewLinearWithRand(hidden, hidden, rng, backend),
			nn.NewReLU[B](),
		),
		qt:         nn.NewLinearWithRand(hidden, geometry.QTSize, rng, backend),
		confidence: nn.NewLinearWithRand(hidden, 1, rng, backend),
	}
	d.parts = components[B]{
		{"points", d.points},
		{"trunk", d.trunk},
		{"qt", d.qt},
		{"confidence", d.confidence},
	}
	return d
}

func (d *decoder[B]) forward(pc, z *tensor.Tensor[B]) (qt, confidence *tensor.Tensor[B]) {
	features := tensor.Cat([]*tensor.Tensor[B]{d.points.Forward(pc), z}, 1)
	h := d.trunk.Forward(features)
	return normalizeQT(d.qt.Forward(h)), d.confidence.Forward(h).Sigmoid()
}
