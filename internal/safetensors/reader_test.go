package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/clipweights/internal/tensor"
)

// createTestFile writes a minimal safetensors file by hand so the reader is
// tested independently of Write.
func createTestFile(t *testing.T, path string) {
	t.Helper()

	header := map[string]any{
		"__metadata__": map[string]string{"format": "mlx"},
		"weight": TensorInfo{
			DType:       F32,
			Shape:       []int64{2, 3},
			DataOffsets: [2]int64{0, 24}, // 2*3*4 = 24 bytes
		},
		"bias": TensorInfo{
			DType:       F32,
			Shape:       []int64{3},
			DataOffsets: [2]int64{24, 36}, // 3*4 = 12 bytes
		},
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		t.Fatalf("Failed to marshal header: %v", err)
	}

	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	defer file.Close()

	if err := binary.Write(file, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		t.Fatalf("Failed to write header size: %v", err)
	}
	if _, err := file.Write(headerJSON); err != nil {
		t.Fatalf("Failed to write header: %v", err)
	}

	// weight: [[1, 2, 3], [4, 5, 6]], bias: [0.1, 0.2, 0.3]
	for _, v := range []float32{1, 2, 3, 4, 5, 6, 0.1, 0.2, 0.3} {
		if err := binary.Write(file, binary.LittleEndian, v); err != nil {
			t.Fatalf("Failed to write tensor data: %v", err)
		}
	}
}

func writeRaw(t *testing.T, path string, headerJSON []byte, data []byte) {
	t.Helper()
	buf := make([]byte, 8, 8+len(headerJSON)+len(data))
	binary.LittleEndian.PutUint64(buf, uint64(len(headerJSON)))
	buf = append(buf, headerJSON...)
	buf = append(buf, data...)
	if err := os.WriteFile(path, buf, 0o600); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.safetensors")
	createTestFile(t, path)

	reader, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer reader.Close()

	if reader.Metadata()["format"] != "mlx" {
		t.Errorf("Expected metadata format=mlx, got %v", reader.Metadata())
	}

	names := reader.TensorNames()
	if len(names) != 2 || names[0] != "bias" || names[1] != "weight" {
		t.Errorf("TensorNames = %v, want [bias weight]", names)
	}

	info, err := reader.TensorInfo("weight")
	if err != nil {
		t.Fatalf("TensorInfo failed: %v", err)
	}
	if info.DType != F32 || len(info.Shape) != 2 {
		t.Errorf("unexpected info: %+v", info)
	}

	if _, err := reader.TensorInfo("missing"); !errors.Is(err, ErrTensorNotFound) {
		t.Errorf("expected ErrTensorNotFound, got %v", err)
	}
}

func TestLoadTensor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.safetensors")
	createTestFile(t, path)

	reader, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer reader.Close()

	weight, err := reader.LoadTensor("weight")
	if err != nil {
		t.Fatalf("LoadTensor failed: %v", err)
	}
	if !weight.Shape().Equal(tensor.Shape{2, 3}) {
		t.Errorf("Expected shape [2, 3], got %v", weight.Shape())
	}
	if weight.DType() != tensor.Float32 {
		t.Errorf("Expected float32, got %s", weight.DType())
	}

	want := []float32{1, 2, 3, 4, 5, 6}
	for i, v := range weight.AsFloat32() {
		if v != want[i] {
			t.Errorf("weight[%d] = %f, want %f", i, v, want[i])
		}
	}

	bias, err := reader.LoadTensor("bias")
	if err != nil {
		t.Fatalf("LoadTensor failed: %v", err)
	}
	if got := bias.AsFloat32()[2]; got != 0.3 {
		t.Errorf("bias[2] = %f, want 0.3", got)
	}
}

func TestReadFileCorrupt(t *testing.T) {
	valid := func(t *testing.T) []byte {
		t.Helper()
		path := filepath.Join(t.TempDir(), "valid.safetensors")
		createTestFile(t, path)
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile failed: %v", err)
		}
		return data
	}

	tests := []struct {
		name    string
		build   func(t *testing.T, path string)
		wantErr error
	}{
		{
			name: "empty file",
			build: func(t *testing.T, path string) {
				_ = os.WriteFile(path, nil, 0o600)
			},
			wantErr: ErrFileTooSmall,
		},
		{
			name: "header size beyond file",
			build: func(t *testing.T, path string) {
				b := make([]byte, 8)
				binary.LittleEndian.PutUint64(b, 1024)
				_ = os.WriteFile(path, b, 0o600)
			},
			wantErr: ErrInvalidHeader,
		},
		{
			name: "header too large",
			build: func(t *testing.T, path string) {
				b := make([]byte, 16)
				binary.LittleEndian.PutUint64(b, MaxHeaderSize+1)
				_ = os.WriteFile(path, b, 0o600)
			},
			wantErr: ErrHeaderTooLarge,
		},
		{
			name: "garbage json",
			build: func(t *testing.T, path string) {
				writeRaw(t, path, []byte("{not json"), nil)
			},
			wantErr: ErrInvalidHeader,
		},
		{
			name: "truncated data",
			build: func(t *testing.T, path string) {
				data := valid(t)
				_ = os.WriteFile(path, data[:len(data)-4], 0o600)
			},
			wantErr: ErrOutOfBounds,
		},
		{
			name: "unsupported dtype",
			build: func(t *testing.T, path string) {
				writeRaw(t, path, []byte(`{"x":{"dtype":"F8_E4M3","shape":[1],"data_offsets":[0,1]}}`), []byte{0})
			},
			wantErr: ErrUnsupportedDType,
		},
		{
			name: "size mismatch",
			build: func(t *testing.T, path string) {
				writeRaw(t, path, []byte(`{"x":{"dtype":"F32","shape":[2],"data_offsets":[0,4]}}`), make([]byte, 4))
			},
			wantErr: ErrSizeMismatch,
		},
		{
			name: "overlapping tensors",
			build: func(t *testing.T, path string) {
				writeRaw(t, path, []byte(`{"a":{"dtype":"F32","shape":[2],"data_offsets":[0,8]},`+
					`"b":{"dtype":"F32","shape":[2],"data_offsets":[4,12]}}`), make([]byte, 12))
			},
			wantErr: ErrOffsetOverlap,
		},
		{
			name: "negative offsets",
			build: func(t *testing.T, path string) {
				writeRaw(t, path, []byte(`{"x":{"dtype":"U8","shape":[0],"data_offsets":[4,0]}}`), make([]byte, 4))
			},
			wantErr: ErrNegativeOffset,
		},
		{
			name: "shape product wraps to zero",
			build: func(t *testing.T, path string) {
				writeRaw(t, path, []byte(`{"x":{"dtype":"F32","shape":[4294967296,4294967296],"data_offsets":[0,0]}}`), nil)
			},
			wantErr: ErrInvalidShape,
		},
		{
			name: "shape product wraps to data size",
			build: func(t *testing.T, path string) {
				writeRaw(t, path, []byte(`{"x":{"dtype":"F32","shape":[4611686018427387905,4],"data_offsets":[0,16]}}`), make([]byte, 16))
			},
			wantErr: ErrInvalidShape,
		},
		{
			name: "byte length overflows",
			build: func(t *testing.T, path string) {
				writeRaw(t, path, []byte(`{"x":{"dtype":"F64","shape":[2305843009213693952],"data_offsets":[0,0]}}`), nil)
			},
			wantErr: ErrInvalidShape,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.safetensors")
			tt.build(t, path)

			_, err := ReadFile(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidationErrorDetails(t *testing.T) {
	h := &Header{Tensors: map[string]TensorInfo{
		"a": {DType: U8, Shape: []int64{4}, DataOffsets: [2]int64{0, 4}},
		"b": {DType: U8, Shape: []int64{4}, DataOffsets: [2]int64{2, 6}},
	}}
	err := ValidateHeader(h, 8)

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if verr.Tensor != "a" || verr.Tensor2 != "b" {
		t.Errorf("unexpected tensors in error: %+v", verr)
	}
}

func TestValidateHeaderZeroLengthRegions(t *testing.T) {
	h := &Header{Tensors: map[string]TensorInfo{
		"a":     {DType: F32, Shape: []int64{2}, DataOffsets: [2]int64{0, 8}},
		"empty": {DType: F32, Shape: []int64{0}, DataOffsets: [2]int64{4, 4}},
		"b":     {DType: F32, Shape: []int64{1}, DataOffsets: [2]int64{6, 10}},
	}}
	if err := ValidateHeader(h, 16); !errors.Is(err, ErrOffsetOverlap) {
		t.Errorf("expected overlap between a and b, got %v", err)
	}
}

func TestZeroDimWithLargeDims(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.safetensors")
	writeRaw(t, path, []byte(`{"x":{"dtype":"F32","shape":[4294967296,0,4294967296],"data_offsets":[0,0]}}`), nil)

	tensors, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if got := tensors["x"].NumElements(); got != 0 {
		t.Errorf("NumElements = %d, want 0", got)
	}
}
