// Package main provides the graspnet training CLI.
//
// Usage:
//
//	graspnet [flags]          train (or evaluate) with the given options
//	graspnet -config run.yaml -arch evaluator
//	graspnet version
//
// Flags override values read from -config.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/born-ml/graspnet/internal/config"
	"k8s.io/klog/v2"
)

const version = "v0.1.0-dev"

var (
	flagConfig  = flag.String("config", "", "YAML configuration file")
	flagEpochs  = flag.Int("epochs", 0, "Stop after this many epochs (0 = niter + niter_decay)")
	flagBatches = flag.Int("batches", 8, "Synthetic batches per epoch")
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("graspnet %s\n", version)
		return
	}

	klog.InitFlags(nil)
	overrides := config.Default()
	bindFlags(flag.CommandLine, &overrides)
	flag.Parse()
	defer klog.Flush()

	cfg, err := loadConfig(*flagConfig, &overrides)
	if err != nil {
		klog.Errorf("config: %v", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, runOptions{epochs: *flagEpochs, batchesPerEpoch: *flagBatches}); err != nil {
		if errors.Is(err, context.Canceled) {
			klog.Info("interrupted")
			return
		}
		klog.Errorf("Error: %v", err)
		klog.Flush()
		os.Exit(1)
	}
}

// bindFlags registers one flag per configuration field, writing into dst.
func bindFlags(fs *flag.FlagSet, dst *config.Config) {
	fs.Var(&dst.Variant, "arch", "Network variant: vae, gan or evaluator")
	fs.StringVar(&dst.Device, "device", dst.Device, "Compute device")
	fs.Int64Var(&dst.Seed, "seed", dst.Seed, "Random seed")

	fs.StringVar(&dst.CheckpointsDir, "checkpoints_dir", dst.CheckpointsDir, "Directory holding run directories")
	fs.StringVar(&dst.Name, "name", dst.Name, "Run name")
	fs.BoolVar(&dst.IsTrain, "is_train", dst.IsTrain, "Train (true) or only evaluate (false)")
	fs.BoolVar(&dst.ContinueTrain, "continue_train", dst.ContinueTrain, "Resume from which_epoch")
	fs.StringVar(&dst.WhichEpoch, "which_epoch", dst.WhichEpoch, "Checkpoint label to load")

	fs.Float64Var(&dst.LR, "lr", dst.LR, "Initial Adam learning rate")
	fs.Float64Var(&dst.Beta1, "beta1", dst.Beta1, "Adam beta1")
	fs.Float64Var(&dst.KLLossWeight, "kl_loss_weight", dst.KLLossWeight, "KL divergence weight (vae)")
	fs.Float64Var(&dst.ConfidenceWeight, "confidence_weight", dst.ConfidenceWeight, "Confidence regularization weight")
	fs.Float64Var(&dst.ConfidenceThreshold, "confidence_threshold", dst.ConfidenceThreshold, "Minimum confidence of predictions scored in evaluation")

	fs.StringVar(&dst.LRPolicy, "lr_policy", dst.LRPolicy, "Learning rate policy: lambda, step or plateau")
	fs.IntVar(&dst.LRDecayIters, "lr_decay_iters", dst.LRDecayIters, "Step policy period in epochs")
	fs.IntVar(&dst.NIter, "niter", dst.NIter, "Epochs at the initial learning rate")
	fs.IntVar(&dst.NIterDecay, "niter_decay", dst.NIterDecay, "Epochs of linear decay to zero")
	fs.IntVar(&dst.EpochCount, "epoch_count", dst.EpochCount, "Starting epoch number")

	fs.IntVar(&dst.PrintFreq, "print_freq", dst.PrintFreq, "Iterations between loss lines")
	fs.IntVar(&dst.SaveLatestFreq, "save_latest_freq", dst.SaveLatestFreq, "Iterations between 'latest' checkpoints")
	fs.IntVar(&dst.SaveEpochFreq, "save_epoch_freq", dst.SaveEpochFreq, "Epochs between epoch checkpoints")

	fs.IntVar(&dst.LatentSize, "latent_size", dst.LatentSize, "Latent dimension (vae, gan)")
	fs.IntVar(&dst.BatchSize, "batch_size", dst.BatchSize, "Grasps per batch")
	fs.IntVar(&dst.NumPoints, "npoints", dst.NumPoints, "Points per cloud")
	fs.IntVar(&dst.HiddenSize, "hidden_size", dst.HiddenSize, "Hidden layer width")
}

// loadConfig reads path (or the defaults) and applies every flag set on the
// command line from overrides.
func loadConfig(path string, overrides *config.Config) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return config.Config{}, err
		}
	}

	setters := fieldSetters(&cfg, overrides)
	flag.Visit(func(f *flag.Flag) {
		if set, ok := setters[f.Name]; ok {
			set()
		}
	})
	return cfg, cfg.Validate()
}

func fieldSetters(dst, src *config.Config) map[string]func() {
	return map[string]func(){
		"arch":                 func() { dst.Variant = src.Variant },
		"device":               func() { dst.Device = src.Device },
		"seed":                 func() { dst.Seed = src.Seed },
		"checkpoints_dir":      func() { dst.CheckpointsDir = src.CheckpointsDir },
		"name":                 func() { dst.Name = src.Name },
		"is_train":             func() { dst.IsTrain = src.IsTrain },
		"continue_train":       func() { dst.ContinueTrain = src.ContinueTrain },
		"which_epoch":          func() { dst.WhichEpoch = src.WhichEpoch },
		"lr":                   func() { dst.LR = src.LR },
		"beta1":                func() { dst.Beta1 = src.Beta1 },
		"kl_loss_weight":       func() { dst.KLLossWeight = src.KLLossWeight },
		"confidence_weight":    func() { dst.ConfidenceWeight = src.ConfidenceWeight },
		"confidence_threshold": func() { dst.ConfidenceThreshold = src.ConfidenceThreshold },
		"lr_policy":            func() { dst.LRPolicy = src.LRPolicy },
		"lr_decay_iters":       func() { dst.LRDecayIters = src.LRDecayIters },
		"niter":                func() { dst.NIter = src.NIter },
		"niter_decay":          func() { dst.NIterDecay = src.NIterDecay },
		"epoch_count":          func() { dst.EpochCount = src.EpochCount },
		"print_freq":           func() { dst.PrintFreq = src.PrintFreq },
		"save_latest_freq":     func() { dst.SaveLatestFreq = src.SaveLatestFreq },
		"save_epoch_freq":      func() { dst.SaveEpochFreq = src.SaveEpochFreq },
		"latent_size":          func() { dst.LatentSize = src.LatentSize },
		"batch_size":           func() { dst.BatchSize = src.BatchSize },
		"npoints":              func() { dst.NumPoints = src.NumPoints },
		"hidden_size":          func() { dst.HiddenSize = src.HiddenSize },
	}
}
