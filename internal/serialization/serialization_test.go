package serialization

import (
	"bytes"
	"encoding/binary"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/graspnet/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStateDict(t *testing.T) map[string]*tensor.RawTensor {
	t.Helper()
	weight := tensor.MustRaw(tensor.Shape{2, 3}, tensor.CPU)
	copy(weight.Data(), []float64{1, -2, 3.5, 1e-300, -0.0, 42})
	bias := tensor.MustRaw(tensor.Shape{3}, tensor.CPU)
	copy(bias.Data(), []float64{0.1, 0.2, 0.3})
	empty := tensor.MustRaw(tensor.Shape{0, 4}, tensor.CPU)
	return map[string]*tensor.RawTensor{
		"encoder.0.weight": weight,
		"encoder.0.bias":   bias,
		"head.empty":       empty,
	}
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latest_net.born")
	state := testStateDict(t)

	err := WriteFile(path, state, Header{
		ModelType: "evaluator",
		Metadata:  map[string]string{"note": "unit"},
		CheckpointMeta: &CheckpointMeta{
			RunID:        "run-1",
			Label:        "latest",
			Epoch:        3,
			LearningRate: 0.0002,
		},
	})
	require.NoError(t, err)

	r, err := NewBornReader(path)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, uint32(FormatVersion), r.Version())
	assert.NotZero(t, r.Flags()&FlagHasMetadata)
	assert.NotZero(t, r.Flags()&FlagHasCheckpoint)

	h := r.Header()
	assert.Equal(t, "evaluator", h.ModelType)
	assert.Equal(t, Producer, h.Producer)
	assert.False(t, h.CreatedAt.IsZero())
	assert.Equal(t, "unit", r.Metadata()["note"])
	require.NotNil(t, r.Checkpoint())
	assert.Equal(t, "latest", r.Checkpoint().Label)
	assert.Equal(t, 3, r.Checkpoint().Epoch)
	assert.Equal(t, []string{"encoder.0.bias", "encoder.0.weight", "head.empty"}, r.TensorNames())

	loaded, err := r.ReadStateDict(tensor.CPU)
	require.NoError(t, err)
	require.Len(t, loaded, len(state))
	for name, want := range state {
		got := loaded[name]
		require.NotNil(t, got, name)
		assert.True(t, want.Shape().Equal(got.Shape()), name)
		assert.Equal(t, want.Data(), got.Data(), name)
		assert.Equal(t, tensor.CPU, got.Device())
	}
}

func TestWriteFileLeavesNoTemporaries(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteFile(filepath.Join(dir, "1_net.born"), testStateDict(t), Header{}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "1_net.born", entries[0].Name())
}

func TestCloseWithoutWriteDiscards(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "latest_net.born")

	w, err := NewBornWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.ErrorIs(t, w.WriteStateDict(testStateDict(t), Header{}), ErrClosed)
}

func TestWriteTwiceFails(t *testing.T) {
	w, err := NewBornWriter(filepath.Join(t.TempDir(), "x.born"))
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.WriteStateDict(testStateDict(t), Header{}))
	assert.Error(t, w.WriteStateDict(testStateDict(t), Header{}))
}

func TestEncodeRejectsBadNames(t *testing.T) {
	var buf bytes.Buffer
	state := map[string]*tensor.RawTensor{"../w": tensor.MustRaw(tensor.Shape{1}, tensor.CPU)}
	err := Encode(&buf, state, Header{})
	assert.ErrorIs(t, err, ErrInvalidTensorName)
}

func TestMissingFile(t *testing.T) {
	_, err := NewBornReader(filepath.Join(t.TempDir(), "nope.born"))
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func encoded(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, testStateDict(t), Header{ModelType: "vae"}))
	return buf.Bytes()
}

func TestEncodedLayout(t *testing.T) {
	data := encoded(t)

	assert.Equal(t, MagicBytes, string(data[:4]))
	headerSize := int64(binary.LittleEndian.Uint64(data[16:24]))
	dataSize := int64(binary.LittleEndian.Uint64(data[24:32]))
	start := alignedOffset(headerSize)
	assert.Zero(t, start%HeaderAlignment)
	assert.Equal(t, start+dataSize, int64(len(data)))
	assert.Equal(t, int64((6+3)*elementSize), dataSize)
}

func TestCorruptedDataFailsChecksum(t *testing.T) {
	data := encoded(t)
	data[len(data)-1] ^= 0xFF

	_, err := NewReader(bytes.NewReader(data), ReaderOptions{})
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	r, err := NewReader(bytes.NewReader(data), ReaderOptions{SkipChecksumValidation: true})
	require.NoError(t, err)
	_, err = r.ReadStateDict(tensor.CPU)
	assert.NoError(t, err)
}

func TestInvalidMagic(t *testing.T) {
	data := encoded(t)
	copy(data, "NOPE")

	_, err := NewReader(bytes.NewReader(data), ReaderOptions{})
	assert.ErrorIs(t, err, ErrInvalidMagic)
}

func TestUnsupportedVersion(t *testing.T) {
	data := encoded(t)
	binary.LittleEndian.PutUint32(data[4:8], 1)

	_, err := NewReader(bytes.NewReader(data), ReaderOptions{})
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestTruncatedFile(t *testing.T) {
	data := encoded(t)

	_, err := NewReader(bytes.NewReader(data[:len(data)-8]), ReaderOptions{})
	assert.Error(t, err)
	_, err = NewReader(bytes.NewReader(data[:10]), ReaderOptions{})
	assert.Error(t, err)
}

func TestLoadTensor(t *testing.T) {
	r, err := NewReader(bytes.NewReader(encoded(t)), ReaderOptions{})
	require.NoError(t, err)

	bias, err := r.LoadTensor("encoder.0.bias", tensor.CPU)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, bias.Data())

	_, err = r.LoadTensor("missing", tensor.CPU)
	assert.ErrorIs(t, err, ErrTensorNotFound)

	require.NoError(t, r.Close())
	_, err = r.LoadTensor("encoder.0.bias", tensor.CPU)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = r.ReadStateDict(tensor.CPU)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.born")
	require.NoError(t, WriteFile(path, testStateDict(t), Header{ModelType: "gan"}))

	state, header, err := ReadFile(path, tensor.CPU)
	require.NoError(t, err)
	assert.Equal(t, "gan", header.ModelType)
	assert.Len(t, state, 3)
}

func TestComputeChecksumReader(t *testing.T) {
	payload := []byte("control points")
	sum, err := ComputeChecksumReader(bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, ComputeChecksum(payload), sum)
	assert.NoError(t, ValidateChecksum(sum, ComputeChecksum(payload)))
	assert.ErrorIs(t, ValidateChecksum(sum, ComputeChecksum([]byte("other"))), ErrChecksumMismatch)
}
