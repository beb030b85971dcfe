package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/born-ml/graspnet/internal/config"
	"github.com/born-ml/graspnet/internal/dataset"
	"github.com/born-ml/graspnet/internal/model"
	"k8s.io/klog/v2"
)

type runOptions struct {
	epochs          int // 0 runs epoch_count..niter+niter_decay
	batchesPerEpoch int
}

// run trains, or evaluates when cfg.IsTrain is false, on synthetic batches.
// ctx is checked between steps only.
func run(ctx context.Context, cfg config.Config, opts runOptions) error {
	c, err := model.New(cfg)
	if err != nil {
		return err
	}
	src := dataset.NewSynthetic(dataset.SyntheticConfig{
		BatchSize:       cfg.BatchSize,
		NumPoints:       cfg.NumPoints,
		BatchesPerEpoch: opts.batchesPerEpoch,
		Seed:            cfg.Seed,
	})

	if !cfg.IsTrain {
		_, err := evaluate(ctx, c, src, cfg.ConfidenceThreshold)
		return err
	}
	klog.Infof("run %s: training %s in %s", c.RunID(), cfg.Variant, cfg.RunDir())

	last := cfg.NIter + cfg.NIterDecay
	if opts.epochs > 0 {
		last = cfg.EpochCount + opts.epochs - 1
	}

	steps := 0
	for epoch := cfg.EpochCount; epoch <= last; epoch++ {
		start := time.Now()
		src.Reset()
		for i := 0; ; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			batch, err := src.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return err
			}
			if err := c.SetInput(batch); err != nil {
				return err
			}
			losses, err := c.OptimizeParameters()
			if err != nil {
				return fmt.Errorf("epoch %d iteration %d: %w", epoch, i, err)
			}
			steps++

			if cfg.PrintFreq > 0 && steps%cfg.PrintFreq == 0 {
				klog.Infof("(epoch: %d, iters: %d) %s", epoch, i*cfg.BatchSize, losses)
			}
			if cfg.SaveLatestFreq > 0 && steps%cfg.SaveLatestFreq == 0 {
				klog.Infof("saving the latest model (epoch %d, total_steps %d)", epoch, steps)
				if err := c.SaveNetwork("latest"); err != nil {
					return err
				}
			}
		}

		if cfg.SaveEpochFreq > 0 && epoch%cfg.SaveEpochFreq == 0 {
			klog.Infof("saving the model at the end of epoch %d, iters %d", epoch, c.Iteration())
			if err := c.SaveNetwork("latest"); err != nil {
				return err
			}
			if err := c.SaveNetwork(config.EpochLabel(epoch)); err != nil {
				return err
			}
		}
		klog.Infof("End of epoch %d / %d \t Time Taken: %s", epoch, last, time.Since(start).Round(time.Millisecond))
		c.UpdateLearningRate()
	}
	return nil
}

// evalResult is the batch mean of the losses and thresholded metrics.
type evalResult struct {
	batches int
	loss    float64
	metrics model.Evaluation
}

// evaluate runs one pass over src without updating the network and logs the
// mean loss and the metrics of the predictions passing threshold.
func evaluate(ctx context.Context, c *model.Controller, src dataset.Source, threshold float64) (evalResult, error) {
	var res evalResult
	for {
		if err := ctx.Err(); err != nil {
			return evalResult{}, err
		}
		batch, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return evalResult{}, err
		}
		if err := c.SetInput(batch); err != nil {
			return evalResult{}, err
		}
		out, err := c.Forward()
		if err != nil {
			return evalResult{}, err
		}
		losses, err := c.Backward(out)
		if err != nil {
			return evalResult{}, err
		}
		m, err := c.Evaluate(out, threshold)
		if err != nil {
			return evalResult{}, err
		}
		res.batches++
		res.loss += losses.Total
		res.metrics.Variant = m.Variant
		res.metrics.Error += m.Error
		res.metrics.Accuracy += m.Accuracy
		res.metrics.Kept += m.Kept
	}
	if res.batches == 0 {
		return res, nil
	}

	n := float64(res.batches)
	res.loss /= n
	res.metrics.Threshold = threshold
	res.metrics.Error /= n
	res.metrics.Accuracy /= n
	res.metrics.Kept /= n
	klog.Infof("evaluated %d batches, mean loss %.6f, %s", res.batches, res.loss, res.metrics)
	return res, nil
}
