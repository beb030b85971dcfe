package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/born-ml/graspnet/internal/tensor"
)

// Producer is stamped into every header written by this package.
const Producer = "graspnet"

// BornWriter writes a state dictionary to a .born file.
//
// Data goes to a temporary file next to the destination and is renamed into
// place on Close, so readers never observe a partially written checkpoint.
type BornWriter struct {
	file    *os.File
	path    string
	written bool
	closed  bool
}

// NewBornWriter creates a writer for path. The parent directory must exist.
func NewBornWriter(path string) (*BornWriter, error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	file, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return &BornWriter{file: file, path: path}, nil
}

// WriteStateDict encodes stateDict with the given header.
//
// Tensors are written in name order. Tensors, FormatVersion and Producer are
// filled in by the writer; CreatedAt defaults to now.
func (w *BornWriter) WriteStateDict(stateDict map[string]*tensor.RawTensor, header Header) error {
	if w.closed {
		return ErrClosed
	}
	if w.written {
		return fmt.Errorf("state dict already written to %s", w.path)
	}
	if err := Encode(w.file, stateDict, header); err != nil {
		return err
	}
	w.written = true
	return nil
}

// Close flushes the file and moves it into place. When nothing was written the
// temporary file is discarded and the destination is left untouched.
func (w *BornWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	tmp := w.file.Name()

	if !w.written {
		_ = w.file.Close()
		_ = os.Remove(tmp)
		return nil
	}
	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := w.file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move checkpoint into place: %w", err)
	}
	return nil
}

// WriteFile is NewBornWriter, WriteStateDict and Close in one call.
func WriteFile(path string, stateDict map[string]*tensor.RawTensor, header Header) (err error) {
	w, err := NewBornWriter(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}()
	return w.WriteStateDict(stateDict, header)
}

// Encode writes stateDict in .born format to out.
//
// Layout:
//
//	0x00 magic "BORN"
//	0x04 version (uint32 LE)
//	0x08 flags (uint32 LE)
//	0x10 JSON header size (uint64 LE)
//	0x18 data section size (uint64 LE)
//	0x20 SHA-256 of the data section
//	0x40 JSON header, zero padding to 64 bytes, float64 LE tensor data
func Encode(out io.Writer, stateDict map[string]*tensor.RawTensor, header Header) error {
	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		if stateDict[name] == nil {
			return fmt.Errorf("tensor %s is nil", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	header.FormatVersion = FormatVersion
	header.Producer = Producer
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now().UTC()
	}
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}

	var data bytes.Buffer
	header.Tensors = make([]TensorMeta, 0, len(names))
	for _, name := range names {
		raw := stateDict[name]
		offset := int64(data.Len())
		appendFloat64s(&data, raw.Data())
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  DTypeFloat64,
			Shape:  []int(raw.Shape().Clone()),
			Offset: offset,
			Size:   int64(data.Len()) - offset,
		})
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if len(headerJSON) > MaxHeaderSize {
		return ErrHeaderTooLarge
	}

	flags := uint32(0)
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if header.CheckpointMeta != nil {
		flags |= FlagHasCheckpoint
	}

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(data.Len()))
	checksum := ComputeChecksum(data.Bytes())
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	if _, err := out.Write(fixed); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := out.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	padding := alignedOffset(int64(len(headerJSON))) - int64(FixedHeaderSize) - int64(len(headerJSON))
	if padding > 0 {
		if _, err := out.Write(make([]byte, padding)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}
	if _, err := out.Write(data.Bytes()); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}
	return nil
}

func appendFloat64s(buf *bytes.Buffer, values []float64) {
	var scratch [elementSize]byte
	buf.Grow(len(values) * elementSize)
	for _, v := range values {
		binary.LittleEndian.PutUint64(scratch[:], math.Float64bits(v))
		buf.Write(scratch[:])
	}
}
