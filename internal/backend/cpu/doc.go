// Package cpu implements the CPU compute backend.
//
// All kernels operate on contiguous row-major float64 buffers and allocate a
// fresh result for every call. Dense matrix products are delegated to
// gonum's mat package and flat vector kernels to gonum's floats package.
//
// Example:
//
//	backend := cpu.New()
//	x, _ := tensor.FromSlice([]float64{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
//	y := x.MatMul(x.T())
package cpu
