// Package serialization implements the .born checkpoint container.
//
// A .born file holds a named set of float64 tensors plus a JSON header:
//
//	Format Structure:
//	  [64 bytes: fixed header]
//	    magic "BORN", version, flags, header size, data size, SHA-256 of data
//	  [Header: JSON metadata (tensors, model type, checkpoint fields)]
//	  [Tensor data: float64 little-endian, 64-byte aligned]
//
// Writes go through a temporary file that is renamed into place on Close.
// Reads verify the checksum and validate every tensor's name, shape and
// byte range before decoding.
//
// Example usage:
//
//	err := serialization.WriteFile("checkpoints/run/latest_net.born", net.StateDict(), serialization.Header{
//	    ModelType: "evaluator",
//	})
//
//	stateDict, header, err := serialization.ReadFile("checkpoints/run/latest_net.born", tensor.CPU)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = net.LoadStateDict(stateDict)
package serialization
