package safetensors

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/born-ml/clipweights/internal/tensor"
)

// Validation limits for resource protection.
const (
	MaxHeaderSize    = 100 * 1024 * 1024 // 100MB - maximum header size
	MaxTensorCount   = 100_000           // Maximum number of tensors in a file
	MaxTensorNameLen = 4096              // Maximum tensor name length
)

// ValidateTensorName rejects empty, oversized and NUL-containing names.
func ValidateTensorName(name string) error {
	if name == "" {
		return &ValidationError{Err: ErrInvalidTensorName, Details: "empty name"}
	}
	if len(name) > MaxTensorNameLen {
		return &ValidationError{
			Err:     ErrInvalidTensorName,
			Tensor:  name[:64] + "...",
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen),
		}
	}
	if strings.Contains(name, "\x00") {
		return &ValidationError{Err: ErrInvalidTensorName, Tensor: name, Details: "contains null byte"}
	}
	return nil
}

// ValidateTensorInfo checks that the dtype is known, the shape is valid and
// the offsets describe exactly numel * dtype size bytes.
func ValidateTensorInfo(name string, info TensorInfo) error {
	dtype, err := info.DType.DataType()
	if err != nil {
		return &ValidationError{Err: ErrUnsupportedDType, Tensor: name, Details: fmt.Sprintf("dtype %q", info.DType)}
	}

	for i, dim := range info.Shape {
		if dim < 0 || dim > math.MaxInt {
			return &ValidationError{
				Err:     ErrInvalidShape,
				Tensor:  name,
				Details: fmt.Sprintf("dimension %d is %d", i, dim),
			}
		}
	}
	nbytes, ok := byteLen(info.Shape, int64(dtype.Size()))
	if !ok {
		return &ValidationError{
			Err:     ErrInvalidShape,
			Tensor:  name,
			Details: fmt.Sprintf("shape %v of %s overflows", info.Shape, dtype),
		}
	}

	start, end := info.DataOffsets[0], info.DataOffsets[1]
	if start < 0 || end < start {
		return &ValidationError{
			Err:     ErrNegativeOffset,
			Tensor:  name,
			Details: fmt.Sprintf("offsets [%d, %d]", start, end),
		}
	}

	if end-start != nbytes {
		return &ValidationError{
			Err:     ErrSizeMismatch,
			Tensor:  name,
			Details: fmt.Sprintf("offsets span %d bytes, shape %v of %s needs %d", end-start, info.Shape, dtype, nbytes),
		}
	}

	return nil
}

// byteLen multiplies non-negative dims by the element size, reporting false
// when the product does not fit the platform int.
func byteLen(dims []int64, size int64) (int64, bool) {
	if slices.Contains(dims, 0) {
		return 0, true
	}
	n := size
	for _, d := range dims {
		if n > math.MaxInt/d {
			return 0, false
		}
		n *= d
	}
	return n, true
}

type span struct {
	name       string
	start, end int64
}

// ValidateHeader validates every entry and checks for out-of-bounds and
// overlapping tensor regions within a data section of dataSize bytes.
func ValidateHeader(h *Header, dataSize int64) error {
	if len(h.Tensors) > MaxTensorCount {
		return &ValidationError{
			Err:     ErrTooManyTensors,
			Details: fmt.Sprintf("got %d, max %d", len(h.Tensors), MaxTensorCount),
		}
	}

	spans := make([]span, 0, len(h.Tensors))
	for name, info := range h.Tensors {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		if err := ValidateTensorInfo(name, info); err != nil {
			return err
		}
		spans = append(spans, span{name: name, start: info.DataOffsets[0], end: info.DataOffsets[1]})
	}

	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].name < spans[j].name
	})

	var prev *span
	for i := range spans {
		s := &spans[i]
		if s.end > dataSize {
			return &ValidationError{
				Err:     ErrOutOfBounds,
				Tensor:  s.name,
				Details: fmt.Sprintf("end offset %d > data size %d", s.end, dataSize),
			}
		}
		// Zero-length regions cannot overlap anything.
		if s.end == s.start {
			continue
		}
		if prev != nil && prev.end > s.start {
			return &ValidationError{
				Err:     ErrOffsetOverlap,
				Tensor:  prev.name,
				Tensor2: s.name,
				Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap", prev.start, prev.end, s.start, s.end),
			}
		}
		prev = s
	}

	return nil
}

// shapeOf converts header dimensions to a tensor.Shape.
func shapeOf(dims []int64) tensor.Shape {
	shape := make(tensor.Shape, len(dims))
	for i, d := range dims {
		shape[i] = int(d)
	}
	return shape
}
