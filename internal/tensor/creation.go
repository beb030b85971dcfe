package tensor

import (
	"math/rand"
)

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	backend := cpu.New()
//	t := tensor.Zeros(Shape{3, 4}, backend)
func Zeros[B Backend](shape Shape, b B) *Tensor[B] {
	raw, err := NewRaw(shape, b.Device())
	if err != nil {
		panic(err) // Shape validation should prevent this
	}
	return New(raw, b)
}

// Ones creates a tensor filled with ones.
func Ones[B Backend](shape Shape, b B) *Tensor[B] {
	return Full(shape, 1, b)
}

// Full creates a tensor filled with a specific value.
func Full[B Backend](shape Shape, value float64, b B) *Tensor[B] {
	t := Zeros(shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Scalar creates a 0-D tensor holding value.
func Scalar[B Backend](value float64, b B) *Tensor[B] {
	return Full(Shape{}, value, b)
}

// Randn creates a tensor with values drawn from N(0, 1) using rng.
// A nil rng falls back to the package-level math/rand source.
//
// Note: Uses math/rand (not crypto/rand) - appropriate for ML/statistical purposes.
func Randn[B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[B] {
	t := Zeros(shape, b)
	data := t.Data()
	for i := range data {
		if rng != nil {
			data[i] = rng.NormFloat64()
		} else {
			//nolint:gosec // Statistical sampling, not security-critical
			data[i] = rand.NormFloat64()
		}
	}
	return t
}

// OneHot creates a [len(indices), numClasses] tensor with ones at the given
// class positions. Indices outside [0, numClasses) leave their row zero.
func OneHot[B Backend](indices []int, numClasses int, b B) *Tensor[B] {
	t := Zeros(Shape{len(indices), numClasses}, b)
	data := t.Data()
	for i, c := range indices {
		if c >= 0 && c < numClasses {
			data[i*numClasses+c] = 1
		}
	}
	return t
}
