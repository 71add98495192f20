package tensor

import (
	"bytes"
	"fmt"
	"unsafe"
)

// RawTensor is a contiguous, row-major, little-endian tensor buffer.
type RawTensor struct {
	data  []byte
	shape Shape
	dtype DataType
}

// NewRaw creates a new zero-filled RawTensor with the given shape and type.
func NewRaw(shape Shape, dtype DataType) (*RawTensor, error) {
	if !dtype.Valid() {
		return nil, fmt.Errorf("invalid data type: %d", dtype)
	}
	size, err := ByteLen(shape, dtype)
	if err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	return &RawTensor{
		data:  make([]byte, size),
		shape: shape.Clone(),
		dtype: dtype,
	}, nil
}

// FromBytes wraps data as a tensor without copying.
// The length of data must equal shape.NumElements() * dtype.Size().
func FromBytes(shape Shape, dtype DataType, data []byte) (*RawTensor, error) {
	if !dtype.Valid() {
		return nil, fmt.Errorf("invalid data type: %d", dtype)
	}
	want, err := ByteLen(shape, dtype)
	if err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if len(data) != want {
		return nil, fmt.Errorf("data length %d does not match shape %v of %s (want %d bytes)",
			len(data), shape, dtype, want)
	}

	return &RawTensor{
		data:  data,
		shape: shape.Clone(),
		dtype: dtype,
	}, nil
}

// FromSlice copies values into a new tensor of the given shape.
func FromSlice[T DType](shape Shape, values []T) (*RawTensor, error) {
	dtype := inferDataType[T]()
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if shape.NumElements() != len(values) {
		return nil, fmt.Errorf("shape %v holds %d elements, got %d values", shape, shape.NumElements(), len(values))
	}
	raw, err := NewRaw(shape, dtype)
	if err != nil {
		return nil, err
	}
	copy(asSlice[T](raw, dtype), values)
	return raw, nil
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return len(r.data)
}

// Data returns the raw byte slice.
// WARNING: Direct access to underlying memory. Use with caution.
func (r *RawTensor) Data() []byte {
	return r.data
}

// Equal reports whether both tensors have the same dtype, shape and bytes.
func (r *RawTensor) Equal(other *RawTensor) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.dtype == other.dtype && r.shape.Equal(other.shape) && bytes.Equal(r.data, other.data)
}

// String returns a short description such as "float32(4, 4)".
func (r *RawTensor) String() string {
	return r.dtype.String() + r.shape.String()
}

// asSlice reinterprets the buffer as []T after checking the dtype.
func asSlice[T any](r *RawTensor, want DataType) []T {
	if r.dtype != want {
		panic(fmt.Sprintf("tensor dtype is %s, not %s", r.dtype, want))
	}
	n := r.NumElements()
	if n == 0 {
		return []T{}
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, length checked at construction
	return unsafe.Slice((*T)(unsafe.Pointer(&r.data[0])), n)
}

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 { return asSlice[float32](r, Float32) }

// AsFloat64 interprets the data as []float64.
// Panics if the tensor's dtype is not Float64.
func (r *RawTensor) AsFloat64() []float64 { return asSlice[float64](r, Float64) }

// AsInt32 interprets the data as []int32.
// Panics if the tensor's dtype is not Int32.
func (r *RawTensor) AsInt32() []int32 { return asSlice[int32](r, Int32) }

// AsInt64 interprets the data as []int64.
// Panics if the tensor's dtype is not Int64.
func (r *RawTensor) AsInt64() []int64 { return asSlice[int64](r, Int64) }

// AsUint8 interprets the data as []uint8.
func (r *RawTensor) AsUint8() []uint8 { return asSlice[uint8](r, Uint8) }

// AsBool interprets the data as []bool.
// Panics if the tensor's dtype is not Bool.
func (r *RawTensor) AsBool() []bool { return asSlice[bool](r, Bool) }

// HalfBits returns the raw 16-bit patterns of a Float16 or BFloat16 tensor.
func (r *RawTensor) HalfBits() []uint16 {
	if r.dtype == BFloat16 {
		return asSlice[uint16](r, BFloat16)
	}
	return asSlice[uint16](r, Float16)
}
