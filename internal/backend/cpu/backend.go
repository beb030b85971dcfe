package cpu

import (
	"fmt"
	"strings"

	"github.com/born-ml/graspnet/internal/parallel"
	"github.com/born-ml/graspnet/internal/tensor"
	"github.com/klauspost/cpuid/v2"
)

// CPUBackend implements tensor operations on the host CPU.
type CPUBackend struct {
	device tensor.Device
	par    parallel.Config
}

// New creates a new CPU backend that splits large matrix products across
// all cores.
func New() *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		par:    parallel.DefaultConfig(),
	}
}

// NewWithConfig creates a CPU backend with explicit parallelism settings.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		par:    cfg,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Describe returns a one-line description of the host processor, used in
// network summaries.
func (cpu *CPUBackend) Describe() string {
	features := make([]string, 0, 3)
	for _, f := range []cpuid.FeatureID{cpuid.AVX2, cpuid.FMA3, cpuid.AVX512F} {
		if cpuid.CPU.Supports(f) {
			features = append(features, f.String())
		}
	}
	brand := cpuid.CPU.BrandName
	if brand == "" {
		brand = "unknown processor"
	}
	desc := fmt.Sprintf("%s, %d logical cores, %d workers", brand, cpuid.CPU.LogicalCores, cpu.workers())
	if len(features) > 0 {
		desc += " [" + strings.Join(features, " ") + "]"
	}
	return desc
}

func (cpu *CPUBackend) workers() int {
	if !cpu.par.Enabled || cpu.par.NumWorkers < 1 {
		return 1
	}
	return cpu.par.NumWorkers
}

// walk visits every element of shape in row-major order, calling fn with the
// flat output position and the source offset computed from strides.
func walk(shape tensor.Shape, strides []int, fn func(out, src int)) {
	n := shape.NumElements()
	if n == 0 {
		return
	}
	ndim := len(shape)
	idx := make([]int, ndim)
	src := 0
	for out := 0; out < n; out++ {
		fn(out, src)
		for d := ndim - 1; d >= 0; d-- {
			idx[d]++
			src += strides[d]
			if idx[d] < shape[d] {
				break
			}
			src -= strides[d] * shape[d]
			idx[d] = 0
		}
	}
}
