// Package safetensors reads and writes the safetensors weight container.
//
// Layout:
//
//	[8 bytes: header_size (uint64 LE)]
//	[header_size bytes: JSON header]
//	[tensor data: raw little-endian bytes]
//
// The JSON header maps each tensor name to its dtype, shape and
// [start, end) byte offsets relative to the data section. The optional
// "__metadata__" entry holds free-form string pairs.
package safetensors

import (
	"encoding/json"
	"fmt"

	"github.com/born-ml/clipweights/internal/tensor"
)

const metadataKey = "__metadata__"

// DType represents a safetensors dtype tag.
type DType string

// Supported safetensors dtypes.
const (
	F16  DType = "F16"
	BF16 DType = "BF16"
	F32  DType = "F32"
	F64  DType = "F64"
	I8   DType = "I8"
	I16  DType = "I16"
	I32  DType = "I32"
	I64  DType = "I64"
	U8   DType = "U8"
	U16  DType = "U16"
	U32  DType = "U32"
	U64  DType = "U64"
	Bool DType = "BOOL"
)

var dtypeTable = map[DType]tensor.DataType{
	F16:  tensor.Float16,
	BF16: tensor.BFloat16,
	F32:  tensor.Float32,
	F64:  tensor.Float64,
	I8:   tensor.Int8,
	I16:  tensor.Int16,
	I32:  tensor.Int32,
	I64:  tensor.Int64,
	U8:   tensor.Uint8,
	U16:  tensor.Uint16,
	U32:  tensor.Uint32,
	U64:  tensor.Uint64,
	Bool: tensor.Bool,
}

// DataType converts the tag to a tensor.DataType.
func (d DType) DataType() (tensor.DataType, error) {
	dt, ok := dtypeTable[d]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedDType, string(d))
	}
	return dt, nil
}

// FromDataType returns the safetensors tag for dt.
func FromDataType(dt tensor.DataType) (DType, error) {
	for tag, v := range dtypeTable {
		if v == dt {
			return tag, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedDType, dt)
}

// TensorInfo describes a tensor in the header.
type TensorInfo struct {
	DType       DType    `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"` // [start, end)
}

// Size returns the byte length recorded by the offsets.
func (ti TensorInfo) Size() int64 {
	return ti.DataOffsets[1] - ti.DataOffsets[0]
}

// Header is the parsed JSON header.
type Header struct {
	Metadata map[string]string
	Tensors  map[string]TensorInfo
}

// UnmarshalJSON splits the reserved metadata entry from tensor entries.
func (h *Header) UnmarshalJSON(data []byte) error {
	var rawMap map[string]json.RawMessage
	if err := json.Unmarshal(data, &rawMap); err != nil {
		return err
	}

	if metadataRaw, ok := rawMap[metadataKey]; ok {
		if err := json.Unmarshal(metadataRaw, &h.Metadata); err != nil {
			return fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	h.Tensors = make(map[string]TensorInfo, len(rawMap))
	for key, value := range rawMap {
		if key == metadataKey {
			continue
		}
		var info TensorInfo
		if err := json.Unmarshal(value, &info); err != nil {
			return fmt.Errorf("failed to unmarshal tensor %s: %w", key, err)
		}
		h.Tensors[key] = info
	}

	return nil
}

// MarshalJSON writes metadata and tensors into one flat object.
func (h Header) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(h.Tensors)+1)
	if len(h.Metadata) > 0 {
		flat[metadataKey] = h.Metadata
	}
	for name, info := range h.Tensors {
		flat[name] = info
	}
	return json.Marshal(flat)
}
