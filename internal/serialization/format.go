package serialization

import (
	"time"
)

// Format constants.
const (
	MagicBytes        = "BORN"
	FormatVersion     = 2    // Only the checksummed layout is written and read
	HeaderAlignment   = 64   // Tensor data starts on a 64-byte boundary
	FixedHeaderSize   = 64   // Fixed header size (0x40 bytes)
	ChecksumSize      = 32   // SHA-256 checksum size
	ChecksumOffset    = 0x20 // Checksum offset in the fixed header
)

// DTypeFloat64 is the only element type stored in checkpoints.
const DTypeFloat64 = "float64"

// elementSize is the encoded size of one float64 element.
const elementSize = 8

// Flags stored in the fixed header.
const (
	FlagHasMetadata   uint32 = 1 << 2 // bit 2: custom metadata included
	FlagHasCheckpoint uint32 = 1 << 3 // bit 3: training checkpoint fields included
)

// Header represents the JSON header in a .born file.
type Header struct {
	FormatVersion  int               `json:"format_version"`
	Producer       string            `json:"producer"`             // Program that wrote the file
	ModelType      string            `json:"model_type"`           // Network variant ("vae", "gan", "evaluator")
	CreatedAt      time.Time         `json:"created_at"`           // Write time (UTC)
	Tensors        []TensorMeta      `json:"tensors"`              // Tensor metadata, sorted by name
	Metadata       map[string]string `json:"metadata"`             // Custom metadata
	CheckpointMeta *CheckpointMeta   `json:"checkpoint,omitempty"` // Training state (optional)
}

// CheckpointMeta describes where in training a checkpoint was taken.
type CheckpointMeta struct {
	RunID        string  `json:"run_id"`        // Identifier of the training run
	Label        string  `json:"label"`         // Epoch label ("latest", "3", ...)
	Epoch        int     `json:"epoch"`         // Training epoch number
	Iteration    int64   `json:"iteration"`     // Total samples seen
	LearningRate float64 `json:"learning_rate"` // Learning rate at save time
}

// TensorMeta describes a tensor in the .born file.
type TensorMeta struct {
	Name   string `json:"name"`   // Tensor name (e.g., "encoder.0.weight")
	DType  string `json:"dtype"`  // Always "float64"
	Shape  []int  `json:"shape"`  // Tensor shape
	Offset int64  `json:"offset"` // Bytes from the start of the data section
	Size   int64  `json:"size"`   // Size in bytes
}

// alignedOffset returns the data section start for a JSON header of the given size.
func alignedOffset(headerSize int64) int64 {
	pos := int64(FixedHeaderSize) + headerSize
	return pos + (HeaderAlignment-(pos%HeaderAlignment))%HeaderAlignment
}
