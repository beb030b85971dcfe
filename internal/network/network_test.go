package network

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/born-ml/graspnet/internal/autodiff"
	"github.com/born-ml/graspnet/internal/backend/cpu"
	"github.com/born-ml/graspnet/internal/config"
	"github.com/born-ml/graspnet/internal/geometry"
	"github.com/born-ml/graspnet/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(v config.Variant) config.Config {
	cfg := config.Default()
	cfg.Variant = v
	cfg.HiddenSize = 8
	cfg.LatentSize = 2
	return cfg
}

func inputs[B tensor.Backend](t *testing.T, n, points int, b B) (pc, grasps *tensor.Tensor[B]) {
	t.Helper()
	rng := rand.New(rand.NewSource(5))
	pc = tensor.Randn(tensor.Shape{n, points, 3}, rng, b)

	data := make([]float64, 0, n*16)
	for i := 0; i < n; i++ {
		m := geometry.RandomPose(rng, 0.1).Matrix()
		data = append(data, m[:]...)
	}
	grasps, err := tensor.FromSlice(data, tensor.Shape{n, 4, 4}, b)
	require.NoError(t, err)
	return pc, grasps
}

func assertUnitQuaternions(t *testing.T, qt *tensor.Tensor[*cpu.CPUBackend]) {
	t.Helper()
	for i := 0; i < qt.Shape()[0]; i++ {
		norm := 0.0
		for j := 0; j < 4; j++ {
			norm += qt.At(i, j) * qt.At(i, j)
		}
		assert.InDelta(t, 1, math.Sqrt(norm), 1e-6)
	}
}

func assertProbabilities(t *testing.T, conf *tensor.Tensor[*cpu.CPUBackend]) {
	t.Helper()
	for _, c := range conf.Data() {
		assert.Greater(t, c, 0.0)
		assert.Less(t, c, 1.0)
	}
}

func TestVAEForward(t *testing.T) {
	b := cpu.New()
	net, err := New(testConfig(config.VAE), b, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, config.VAE, net.Variant())

	pc, grasps := inputs(t, 3, 10, b)
	out := net.Forward(pc, grasps)

	require.NotNil(t, out.Grasps)
	assert.Equal(t, tensor.Shape{3, 7}, out.Grasps.Shape())
	assert.Equal(t, tensor.Shape{3, 1}, out.Confidence.Shape())
	assert.Equal(t, tensor.Shape{3, 2}, out.Mu.Shape())
	assert.Equal(t, tensor.Shape{3, 2}, out.LogVar.Shape())
	assert.Nil(t, out.Logits)
	assertUnitQuaternions(t, out.Grasps)
	assertProbabilities(t, out.Confidence)
}

func TestVAEInferenceIsDeterministic(t *testing.T) {
	b := cpu.New()
	cfg := testConfig(config.VAE)
	cfg.IsTrain = false
	net, err := New(cfg, b, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	pc, grasps := inputs(t, 2, 6, b)
	first := net.Forward(pc, grasps).Grasps.Data()
	second := net.Forward(pc, grasps).Grasps.Data()
	assert.Equal(t, first, second)
}

func TestGANForward(t *testing.T) {
	b := cpu.New()
	net, err := New(testConfig(config.GAN), b, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	pc, grasps := inputs(t, 4, 5, b)
	out := net.Forward(pc, grasps)
	assert.Equal(t, tensor.Shape{4, 7}, out.Grasps.Shape())
	assert.Equal(t, tensor.Shape{4, 1}, out.Confidence.Shape())
	assert.Nil(t, out.Mu)
	assertUnitQuaternions(t, out.Grasps)
	assertProbabilities(t, out.Confidence)
}

func TestEvaluatorForward(t *testing.T) {
	b := cpu.New()
	net, err := New(testConfig(config.Evaluator), b, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	pc, grasps := inputs(t, 4, 5, b)
	out := net.Forward(pc, grasps)
	assert.Equal(t, tensor.Shape{4, 2}, out.Logits.Shape())
	assert.Equal(t, tensor.Shape{4, 1}, out.Confidence.Shape())
	assert.Nil(t, out.Grasps)
	assertProbabilities(t, out.Confidence)
}

func TestUnknownVariant(t *testing.T) {
	cfg := testConfig(config.Variant(9))
	_, err := New(cfg, cpu.New(), rand.New(rand.NewSource(1)))
	assert.Error(t, err)
}

func TestStateDictRoundTrip(t *testing.T) {
	b := cpu.New()
	for _, v := range []config.Variant{config.VAE, config.GAN, config.Evaluator} {
		t.Run(v.String(), func(t *testing.T) {
			src, err := New(testConfig(v), b, rand.New(rand.NewSource(1)))
			require.NoError(t, err)
			dst, err := New(testConfig(v), b, rand.New(rand.NewSource(2)))
			require.NoError(t, err)

			state := src.StateDict()
			total := 0
			for _, raw := range state {
				total += raw.NumElements()
			}
			params := 0
			for _, p := range src.Parameters() {
				params += p.NumElements()
			}
			assert.Equal(t, params, total)

			require.NoError(t, dst.LoadStateDict(state))
			for name, raw := range dst.StateDict() {
				assert.Equal(t, state[name].Data(), raw.Data(), name)
			}
		})
	}
}

func TestLoadStateDictRejectsOtherVariant(t *testing.T) {
	b := cpu.New()
	vae, err := New(testConfig(config.VAE), b, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	gan, err := New(testConfig(config.GAN), b, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	eval, err := New(testConfig(config.Evaluator), b, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	assert.Error(t, gan.LoadStateDict(vae.StateDict()))
	assert.Error(t, vae.LoadStateDict(gan.StateDict()))
	assert.Error(t, eval.LoadStateDict(gan.StateDict()))
}

func TestRejectedLoadLeavesParameters(t *testing.T) {
	b := cpu.New()
	wide := testConfig(config.VAE)
	wide.LatentSize = 3
	src, err := New(wide, b, rand.New(rand.NewSource(77)))
	require.NoError(t, err)
	dst, err := New(testConfig(config.VAE), b, rand.New(rand.NewSource(11)))
	require.NoError(t, err)

	copyState := func() map[string][]float64 {
		out := make(map[string][]float64)
		for name, raw := range dst.StateDict() {
			out[name] = append([]float64(nil), raw.Data()...)
		}
		return out
	}
	before := copyState()

	err = dst.LoadStateDict(src.StateDict())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shape mismatch")
	assert.Equal(t, before, copyState())

	// An otherwise valid state dict with an extra entry is rejected too.
	same, err := New(testConfig(config.VAE), b, rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	state := same.StateDict()
	state["decoder.extra.weight"] = state["decoder.qt.weight"]
	assert.Error(t, dst.LoadStateDict(state))
	assert.Equal(t, before, copyState())
}

func TestStateDictKeys(t *testing.T) {
	net, err := New(testConfig(config.VAE), cpu.New(), rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	state := net.StateDict()
	assert.Contains(t, state, "encoder.points.0.weight")
	assert.Contains(t, state, "encoder.mu.bias")
	assert.Contains(t, state, "decoder.qt.weight")
	assert.Contains(t, state, "decoder.confidence.bias")
}

func TestSummary(t *testing.T) {
	net, err := New(testConfig(config.Evaluator), cpu.New(), rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	s := Summary(net)
	assert.True(t, strings.Contains(s, "evaluator"))
	assert.Contains(t, s, "logits.weight")
	assert.Contains(t, s, "Total number of parameters")
}

func TestGradientsReachEveryParameter(t *testing.T) {
	b := autodiff.New(cpu.New())
	net, err := New(testConfig(config.VAE), b, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	b.Tape().StartRecording()
	pc, grasps := inputs(t, 2, 4, b)
	out := net.Forward(pc, grasps)
	total := out.Grasps.Sum().Add(out.Confidence.Sum()).Add(out.Mu.Sum()).Add(out.LogVar.Sum())
	grads := autodiff.Backward(total, b)

	for _, p := range net.Parameters() {
		g, ok := grads[p.Tensor().Raw()]
		if assert.True(t, ok, p.Name()) {
			assert.Equal(t, p.Tensor().Shape(), g.Shape())
		}
	}
}
