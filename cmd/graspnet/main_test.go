package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/graspnet/internal/config"
	"github.com/born-ml/graspnet/internal/dataset"
	"github.com/born-ml/graspnet/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallConfig(t *testing.T, v config.Variant) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Variant = v
	cfg.CheckpointsDir = t.TempDir()
	cfg.Name = "cli"
	cfg.BatchSize = 2
	cfg.NumPoints = 8
	cfg.HiddenSize = 4
	cfg.PrintFreq = 1
	cfg.SaveLatestFreq = 3
	return cfg
}

func TestRunWritesCheckpoints(t *testing.T) {
	cfg := smallConfig(t, config.Evaluator)
	require.NoError(t, run(context.Background(), cfg, runOptions{epochs: 2, batchesPerEpoch: 2}))

	for _, label := range []string{"latest", "1", "2"} {
		_, err := os.Stat(cfg.CheckpointPath(label))
		assert.NoError(t, err, label)
	}

	cfg.IsTrain = false
	cfg.WhichEpoch = "2"
	assert.NoError(t, run(context.Background(), cfg, runOptions{batchesPerEpoch: 1}))
}

func TestEvaluateReportsThresholdMetrics(t *testing.T) {
	for _, v := range []config.Variant{config.VAE, config.GAN, config.Evaluator} {
		t.Run(v.String(), func(t *testing.T) {
			cfg := smallConfig(t, v)
			c, err := model.New(cfg)
			require.NoError(t, err)
			src := dataset.NewSynthetic(dataset.SyntheticConfig{
				BatchSize:       cfg.BatchSize,
				NumPoints:       cfg.NumPoints,
				BatchesPerEpoch: 2,
				Seed:            cfg.Seed,
			})

			res, err := evaluate(context.Background(), c, src, 0)
			require.NoError(t, err)
			assert.Equal(t, 2, res.batches)
			assert.Equal(t, v, res.metrics.Variant)
			assert.InDelta(t, 1.0, res.metrics.Kept, 1e-12)
			assert.Zero(t, res.metrics.Threshold)
			if v != config.Evaluator {
				assert.Greater(t, res.metrics.Error, 0.0)
			}

			src.Reset()
			res, err = evaluate(context.Background(), c, src, 1)
			require.NoError(t, err)
			assert.Zero(t, res.metrics.Kept)
			assert.InDelta(t, 1.0, res.metrics.Threshold, 1e-12)
		})
	}
}

func TestConfidenceThresholdFlag(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := config.Default()
	bindFlags(fs, &cfg)
	require.NoError(t, fs.Parse([]string{"-confidence_threshold", "0.8"}))
	assert.InDelta(t, 0.8, cfg.ConfidenceThreshold, 1e-12)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := run(ctx, smallConfig(t, config.GAN), runOptions{epochs: 1, batchesPerEpoch: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("arch: gan\nlr: 0.5\nname: fromfile\n"), 0o600))

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	overrides := config.Default()
	bindFlags(fs, &overrides)
	require.NoError(t, fs.Parse([]string{"-lr", "0.125", "-arch", "evaluator"}))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	setters := fieldSetters(&cfg, &overrides)
	fs.Visit(func(f *flag.Flag) { setters[f.Name]() })

	assert.Equal(t, config.Evaluator, cfg.Variant)
	assert.InDelta(t, 0.125, cfg.LR, 1e-12)
	assert.Equal(t, "fromfile", cfg.Name)
}

func TestEverySettableFlagHasASetter(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := config.Default()
	bindFlags(fs, &cfg)
	setters := fieldSetters(&cfg, &cfg)
	fs.VisitAll(func(f *flag.Flag) {
		_, ok := setters[f.Name]
		assert.True(t, ok, f.Name)
	})
}
