package serialization

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func meta(name string, offset int64, shape ...int) TensorMeta {
	n := int64(1)
	for _, d := range shape {
		n *= int64(d)
	}
	return TensorMeta{Name: name, DType: DTypeFloat64, Shape: shape, Offset: offset, Size: n * elementSize}
}

func TestValidateTensorOffsets(t *testing.T) {
	tests := []struct {
		name    string
		tensors []TensorMeta
		size    int64
		want    error
	}{
		{"adjacent", []TensorMeta{meta("a", 0, 2), meta("b", 16, 2)}, 32, nil},
		{"overlap", []TensorMeta{meta("a", 0, 2), meta("b", 8, 2)}, 32, ErrOffsetOverlap},
		{"out of bounds", []TensorMeta{meta("a", 16, 4)}, 32, ErrOutOfBounds},
		{"negative", []TensorMeta{{Name: "a", Offset: -8, Size: 8}}, 32, ErrNegativeOffset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTensorOffsets(tt.tensors, tt.size)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidateTensorOffsetsTooMany(t *testing.T) {
	tensors := make([]TensorMeta, MaxTensorCount+1)
	assert.ErrorIs(t, ValidateTensorOffsets(tensors, 0), ErrTooManyTensors)
}

func TestValidateTensorName(t *testing.T) {
	for _, name := range []string{"weight", "encoder.0.weight", "evaluator.head.bias"} {
		assert.NoError(t, ValidateTensorName(name), name)
	}
	for _, name := range []string{"", "../etc", "a/b", `a\b`, "a\x00b"} {
		assert.ErrorIs(t, ValidateTensorName(name), ErrInvalidTensorName, name)
	}
	long := make([]byte, MaxTensorNameLen+1)
	for i := range long {
		long[i] = 'x'
	}
	assert.ErrorIs(t, ValidateTensorName(string(long)), ErrTensorNameTooLong)
}

func TestValidateTensorMeta(t *testing.T) {
	assert.NoError(t, ValidateTensorMeta(meta("w", 0, 2, 3)))

	bad := meta("w", 0, 2, 3)
	bad.DType = "float32"
	assert.ErrorIs(t, ValidateTensorMeta(bad), ErrInvalidTensorMeta)

	bad = meta("w", 0, 2, 3)
	bad.Size = 8
	assert.ErrorIs(t, ValidateTensorMeta(bad), ErrInvalidTensorMeta)

	bad = meta("w", 0, 2, 3)
	bad.Shape = []int{-2, -3}
	assert.ErrorIs(t, ValidateTensorMeta(bad), ErrInvalidTensorMeta)
}

func TestValidateHeaderLevels(t *testing.T) {
	overlapping := &Header{Tensors: []TensorMeta{meta("a", 0, 2), meta("b", 8, 2)}}
	assert.ErrorIs(t, ValidateHeader(overlapping, 32, ValidationStrict), ErrOffsetOverlap)
	assert.NoError(t, ValidateHeader(overlapping, 32, ValidationNormal))

	duplicate := &Header{Tensors: []TensorMeta{meta("a", 0, 1), meta("a", 8, 1)}}
	assert.ErrorIs(t, ValidateHeader(duplicate, 16, ValidationNormal), ErrInvalidTensorName)

	badName := &Header{Tensors: []TensorMeta{meta("../a", 0, 1)}}
	assert.NoError(t, ValidateHeader(badName, 8, ValidationNone))
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Type: "offset_overlap", Tensor: "a", Tensor2: "b", Details: "x"}
	assert.Equal(t, `offset_overlap: tensors "a" and "b": x`, err.Error())
	err = &ValidationError{Type: "invalid_name", Details: "empty tensor name"}
	assert.Equal(t, "invalid_name: empty tensor name", err.Error())
}
