package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/graspnet/internal/tensor"
)

// Xavier (Glorot) initialization for weights.
//
// Initializes weights with values drawn from a uniform distribution:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
//
// A nil rng falls back to the package-level math/rand source.
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[B] {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))

	t := tensor.Zeros(shape, backend)
	data := t.Data()
	for i := range data {
		var u float64
		if rng != nil {
			u = rng.Float64()
		} else {
			//nolint:gosec // Using math/rand for weight initialization (not security-critical)
			u = rand.Float64()
		}
		data[i] = (u*2.0 - 1.0) * bound
	}
	return t
}
