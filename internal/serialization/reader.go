package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/born-ml/graspnet/internal/tensor"
)

// BornReader reads a state dictionary from .born format.
//
// The data section is loaded once and verified against the stored checksum
// before any tensor is handed out.
type BornReader struct {
	header   Header
	flags    uint32
	version  uint32
	checksum [ChecksumSize]byte
	data     []byte
	opts     ReaderOptions
	closed   bool
}

// ReaderOptions configures the behavior of BornReader.
type ReaderOptions struct {
	SkipChecksumValidation bool            // Skip checksum validation (faster but less safe)
	ValidationLevel        ValidationLevel // Validation strictness level
}

// NewBornReader opens path with strict validation.
func NewBornReader(path string) (*BornReader, error) {
	return NewBornReaderWithOptions(path, ReaderOptions{
		ValidationLevel: ValidationStrict,
	})
}

// NewBornReaderWithOptions opens path with custom options. A missing file
// yields an error wrapping fs.ErrNotExist.
func NewBornReaderWithOptions(path string, opts ReaderOptions) (*BornReader, error) {
	//nolint:gosec // G304: checkpoint paths are built from user configuration
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	r, err := NewReader(file, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// NewReader parses a .born stream.
func NewReader(src io.Reader, opts ReaderOptions) (*BornReader, error) {
	r := &BornReader{opts: opts}
	if err := r.parse(src); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *BornReader) parse(src io.Reader) error {
	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(src, fixed[:4]); err != nil {
		return fmt.Errorf("failed to read magic bytes: %w", err)
	}
	if string(fixed[:4]) != MagicBytes {
		return ErrInvalidMagic
	}
	if _, err := io.ReadFull(src, fixed[4:]); err != nil {
		return fmt.Errorf("failed to read fixed header: %w", err)
	}

	r.version = binary.LittleEndian.Uint32(fixed[4:8])
	if r.version != FormatVersion {
		return fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, r.version, FormatVersion)
	}
	r.flags = binary.LittleEndian.Uint32(fixed[8:12])
	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	dataSize := binary.LittleEndian.Uint64(fixed[24:32])
	copy(r.checksum[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return ErrHeaderTooLarge
	}
	if dataSize > math.MaxInt32*elementSize {
		return fmt.Errorf("%w: data section of %d bytes", ErrOutOfBounds, dataSize)
	}

	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(src, headerJSON); err != nil {
		return fmt.Errorf("failed to read header JSON: %w", err)
	}
	if err := json.Unmarshal(headerJSON, &r.header); err != nil {
		return fmt.Errorf("failed to parse header JSON: %w", err)
	}

	padding := alignedOffset(int64(headerSize)) - int64(FixedHeaderSize) - int64(headerSize)
	if _, err := io.CopyN(io.Discard, src, padding); err != nil {
		return fmt.Errorf("failed to skip padding: %w", err)
	}

	r.data = make([]byte, dataSize)
	if _, err := io.ReadFull(src, r.data); err != nil {
		return fmt.Errorf("failed to read tensor data: %w", err)
	}

	if !r.opts.SkipChecksumValidation {
		if err := ValidateChecksum(ComputeChecksum(r.data), r.checksum); err != nil {
			return err
		}
	}

	//nolint:gosec // G115: bounded above
	if err := ValidateHeader(&r.header, int64(dataSize), r.opts.ValidationLevel); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// Header returns the file header.
func (r *BornReader) Header() Header {
	return r.header
}

// Metadata returns the metadata map from the header.
func (r *BornReader) Metadata() map[string]string {
	return r.header.Metadata
}

// Checkpoint returns the checkpoint fields, or nil for plain weight files.
func (r *BornReader) Checkpoint() *CheckpointMeta {
	return r.header.CheckpointMeta
}

// TensorNames returns the names of all tensors in file order.
func (r *BornReader) TensorNames() []string {
	names := make([]string, len(r.header.Tensors))
	for i, meta := range r.header.Tensors {
		names[i] = meta.Name
	}
	return names
}

// TensorInfo returns the metadata of a single tensor.
func (r *BornReader) TensorInfo(name string) (*TensorMeta, error) {
	for i := range r.header.Tensors {
		if r.header.Tensors[i].Name == name {
			meta := r.header.Tensors[i]
			return &meta, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTensorNotFound, name)
}

// LoadTensor decodes a single tensor onto device.
func (r *BornReader) LoadTensor(name string, device tensor.Device) (*tensor.RawTensor, error) {
	if r.closed {
		return nil, ErrClosed
	}
	meta, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}
	return r.decode(meta, device)
}

func (r *BornReader) decode(meta *TensorMeta, device tensor.Device) (*tensor.RawTensor, error) {
	if err := ValidateTensorMeta(*meta); err != nil {
		return nil, err
	}
	if meta.Offset < 0 || meta.Offset+meta.Size > int64(len(r.data)) {
		return nil, fmt.Errorf("%w: tensor %s", ErrOutOfBounds, meta.Name)
	}

	raw, err := tensor.NewRaw(tensor.Shape(meta.Shape), device)
	if err != nil {
		return nil, fmt.Errorf("invalid shape for tensor %s: %w", meta.Name, err)
	}
	src := r.data[meta.Offset : meta.Offset+meta.Size]
	dst := raw.Data()
	for i := range dst {
		dst[i] = math.Float64frombits(binary.LittleEndian.Uint64(src[i*elementSize:]))
	}
	return raw, nil
}

// ReadStateDict decodes every tensor onto device.
func (r *BornReader) ReadStateDict(device tensor.Device) (map[string]*tensor.RawTensor, error) {
	if r.closed {
		return nil, ErrClosed
	}

	stateDict := make(map[string]*tensor.RawTensor, len(r.header.Tensors))
	for i := range r.header.Tensors {
		meta := r.header.Tensors[i]
		raw, err := r.decode(&meta, device)
		if err != nil {
			return nil, fmt.Errorf("failed to load tensor %s: %w", meta.Name, err)
		}
		stateDict[meta.Name] = raw
	}
	return stateDict, nil
}

// Close releases the buffered data section.
func (r *BornReader) Close() error {
	r.closed = true
	r.data = nil
	return nil
}

// ReadFile opens path and returns its state dictionary and header.
func ReadFile(path string, device tensor.Device) (map[string]*tensor.RawTensor, Header, error) {
	r, err := NewBornReader(path)
	if err != nil {
		return nil, Header{}, err
	}
	defer r.Close()

	stateDict, err := r.ReadStateDict(device)
	if err != nil {
		return nil, Header{}, err
	}
	return stateDict, r.Header(), nil
}

// Version returns the format version read from the fixed header.
func (r *BornReader) Version() uint32 {
	return r.version
}

// Flags returns the flag bits read from the fixed header.
func (r *BornReader) Flags() uint32 {
	return r.flags
}
