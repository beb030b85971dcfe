package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/born-ml/graspnet/internal/serialization"
	"github.com/born-ml/graspnet/internal/tensor"
	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

// ErrVariantMismatch is returned when a checkpoint was written by another
// network variant.
var ErrVariantMismatch = errors.New("checkpoint variant mismatch")

// Checkpoint metadata keys.
const (
	metaRunID = "run_id"
	metaLabel = "label"
)

// SaveNetwork writes the network parameters to <run dir>/<label>_net.born.
func (c *Controller) SaveNetwork(label string) error {
	if err := checkLabel(label); err != nil {
		return err
	}
	path := c.cfg.CheckpointPath(label)
	if err := os.MkdirAll(c.cfg.RunDir(), 0o750); err != nil {
		return fmt.Errorf("save network: %w", err)
	}

	header := serialization.Header{
		ModelType: c.cfg.Variant.String(),
		Metadata: map[string]string{
			metaRunID: c.runID.String(),
			metaLabel: label,
		},
		CheckpointMeta: &serialization.CheckpointMeta{
			RunID:        c.runID.String(),
			Label:        label,
			Epoch:        c.epoch(),
			Iteration:    c.iteration,
			LearningRate: c.LearningRate(),
		},
	}

	klog.Infof("saving the model to %s", path)
	err := withHostState(c.net.StateDict(), func(state map[string]*tensor.RawTensor) error {
		return serialization.WriteFile(path, state, header)
	})
	if err != nil {
		return fmt.Errorf("save network %s: %w", label, err)
	}
	return nil
}

// LoadNetwork restores the network parameters from <run dir>/<label>_net.born.
// A missing file yields an error wrapping fs.ErrNotExist. A rejected
// checkpoint leaves the parameters unchanged. With continue_train set, the
// run id and iteration count of the checkpoint are adopted.
func (c *Controller) LoadNetwork(label string) error {
	if err := checkLabel(label); err != nil {
		return err
	}
	path := c.cfg.CheckpointPath(label)
	klog.Infof("loading the model from %s", path)

	state, header, err := serialization.ReadFile(path, tensor.CPU)
	if err != nil {
		return fmt.Errorf("load network %s: %w", label, err)
	}
	defer func() {
		for _, raw := range state {
			raw.Release()
		}
	}()

	if header.ModelType != "" && header.ModelType != c.cfg.Variant.String() {
		return fmt.Errorf("load network %s: %w: file holds %s, want %s",
			label, ErrVariantMismatch, header.ModelType, c.cfg.Variant)
	}
	if err := c.net.LoadStateDict(state); err != nil {
		return fmt.Errorf("load network %s: %w", label, err)
	}

	if meta := header.CheckpointMeta; meta != nil && c.training && c.cfg.ContinueTrain {
		if id, err := uuid.Parse(meta.RunID); err == nil {
			c.runID = id
		}
		c.iteration = meta.Iteration
		klog.Infof("resumed run %s at iteration %d (saved %s)", c.runID, meta.Iteration, header.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

// withHostState runs fn on host-resident copies of state. The copies are
// released on every exit path; the live parameters are never moved.
func withHostState(state map[string]*tensor.RawTensor, fn func(map[string]*tensor.RawTensor) error) error {
	host := make(map[string]*tensor.RawTensor, len(state))
	defer func() {
		for _, raw := range host {
			raw.Release()
		}
	}()
	for name, raw := range state {
		host[name] = raw.To(tensor.CPU)
	}
	return fn(host)
}

func checkLabel(label string) error {
	if label == "" || label == "." || label == ".." || filepath.Base(label) != label {
		return fmt.Errorf("checkpoint label %q must be a plain name", label)
	}
	return nil
}

func (c *Controller) epoch() int {
	if c.sched == nil {
		return 0
	}
	return c.sched.Epoch() + c.cfg.EpochCount
}
