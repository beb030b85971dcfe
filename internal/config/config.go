// Package config holds the training configuration shared by the model
// controller, the scheduler and the command line.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/born-ml/graspnet/internal/tensor"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// LR policies understood by the scheduler.
const (
	PolicyLambda  = "lambda"
	PolicyStep    = "step"
	PolicyPlateau = "plateau"
)

// Config is the full set of options for one training or inference run.
type Config struct {
	Variant Variant `yaml:"arch"`
	Device  string  `yaml:"device"`
	Seed    int64   `yaml:"seed"`

	CheckpointsDir string `yaml:"checkpoints_dir"`
	Name           string `yaml:"name"`
	IsTrain        bool   `yaml:"is_train"`
	ContinueTrain  bool   `yaml:"continue_train"`
	WhichEpoch     string `yaml:"which_epoch"`

	LR               float64 `yaml:"lr"`
	Beta1            float64 `yaml:"beta1"`
	KLLossWeight     float64 `yaml:"kl_loss_weight"`
	ConfidenceWeight float64 `yaml:"confidence_weight"`

	// ConfidenceThreshold filters predictions when evaluating.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	LRPolicy     string `yaml:"lr_policy"`
	LRDecayIters int    `yaml:"lr_decay_iters"`
	NIter        int    `yaml:"niter"`
	NIterDecay   int    `yaml:"niter_decay"`
	EpochCount   int    `yaml:"epoch_count"`

	PrintFreq      int `yaml:"print_freq"`
	SaveLatestFreq int `yaml:"save_latest_freq"`
	SaveEpochFreq  int `yaml:"save_epoch_freq"`

	LatentSize int `yaml:"latent_size"`
	BatchSize  int `yaml:"batch_size"`
	NumPoints  int `yaml:"npoints"`
	HiddenSize int `yaml:"hidden_size"`
}

// Default returns the training defaults.
func Default() Config {
	return Config{
		Variant: VAE,
		Device:  "cpu",
		Seed:    1,

		CheckpointsDir: "./checkpoints",
		Name:           "graspnet",
		IsTrain:        true,
		WhichEpoch:     "latest",

		LR:               0.0002,
		Beta1:            0.9,
		KLLossWeight:     0.01,
		ConfidenceWeight: 1.0,

		ConfidenceThreshold: 0.5,

		LRPolicy:     PolicyLambda,
		LRDecayIters: 50,
		NIter:        100,
		NIterDecay:   2000,
		EpochCount:   1,

		PrintFreq:      10,
		SaveLatestFreq: 250,
		SaveEpochFreq:  1,

		LatentSize: 2,
		BatchSize:  32,
		NumPoints:  1024,
		HiddenSize: 64,
	}
}

// Load reads a YAML file on top of Default and validates the result.
// Unknown keys are rejected.
func Load(path string) (Config, error) {
	//nolint:gosec // G304: config path is supplied by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes on top of Default and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks option ranges and cross-field constraints.
func (c Config) Validate() error {
	if !c.Variant.Valid() {
		return fmt.Errorf("%w: unknown variant %d", ErrInvalidConfig, int(c.Variant))
	}
	device, err := tensor.ParseDevice(c.Device)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if device != tensor.CPU {
		return fmt.Errorf("%w: no compute backend for device %s in this build", ErrInvalidConfig, device)
	}
	if c.Name == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidConfig)
	}
	if c.WhichEpoch == "" {
		return fmt.Errorf("%w: which_epoch must not be empty", ErrInvalidConfig)
	}
	if filepath.Base(c.WhichEpoch) != c.WhichEpoch || c.WhichEpoch == ".." {
		return fmt.Errorf("%w: which_epoch %q must be a plain label", ErrInvalidConfig, c.WhichEpoch)
	}
	if c.LR <= 0 {
		return fmt.Errorf("%w: lr must be positive, got %g", ErrInvalidConfig, c.LR)
	}
	if c.Beta1 < 0 || c.Beta1 >= 1 {
		return fmt.Errorf("%w: beta1 must be in [0, 1), got %g", ErrInvalidConfig, c.Beta1)
	}
	if c.KLLossWeight < 0 || c.ConfidenceWeight < 0 {
		return fmt.Errorf("%w: loss weights must be non-negative", ErrInvalidConfig)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: confidence_threshold must be in [0, 1], got %g", ErrInvalidConfig, c.ConfidenceThreshold)
	}
	switch c.LRPolicy {
	case PolicyLambda, PolicyStep, PolicyPlateau:
	default:
		return fmt.Errorf("%w: learning rate policy [%s] is not implemented", ErrInvalidConfig, c.LRPolicy)
	}
	if c.LRPolicy == PolicyStep && c.LRDecayIters <= 0 {
		return fmt.Errorf("%w: lr_decay_iters must be positive for the step policy", ErrInvalidConfig)
	}
	if c.NIter < 0 || c.NIterDecay < 0 || c.EpochCount < 0 {
		return fmt.Errorf("%w: niter, niter_decay and epoch_count must be non-negative", ErrInvalidConfig)
	}
	for name, v := range map[string]int{
		"print_freq":       c.PrintFreq,
		"save_latest_freq": c.SaveLatestFreq,
		"save_epoch_freq":  c.SaveEpochFreq,
		"latent_size":      c.LatentSize,
		"batch_size":       c.BatchSize,
		"npoints":          c.NumPoints,
		"hidden_size":      c.HiddenSize,
	} {
		if v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, name, v)
		}
	}
	return nil
}

// RunDir is the directory holding this run's checkpoints.
func (c Config) RunDir() string {
	return filepath.Join(c.CheckpointsDir, c.Name)
}

// CheckpointPath returns the checkpoint file for an epoch label.
func (c Config) CheckpointPath(label string) string {
	return filepath.Join(c.RunDir(), label+"_net.born")
}

// EpochLabel formats an epoch number as a checkpoint label.
func EpochLabel(epoch int) string {
	return strconv.Itoa(epoch)
}

// ComputeDevice returns the parsed device, falling back to CPU.
func (c Config) ComputeDevice() tensor.Device {
	d, err := tensor.ParseDevice(c.Device)
	if err != nil {
		return tensor.CPU
	}
	return d
}
