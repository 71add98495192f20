package tensor

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrShapeOverflow reports a shape whose element count does not fit in an int.
var ErrShapeOverflow = errors.New("shape element count overflows")

// Shape represents the dimensions of a tensor.
type Shape []int

// NumElements returns the total number of elements in the tensor.
// The result is only meaningful for shapes that pass Validate.
func (s Shape) NumElements() int {
	n := 1 // Scalar has 1 element
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks that no dimension is negative and that the element count
// fits in an int. Zero-sized dimensions are allowed: both weight containers
// can store empty tensors.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim < 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be >= 0)", i, dim)
		}
	}
	if _, err := CheckedProduct(s...); err != nil {
		return fmt.Errorf("shape %v: %w", s, err)
	}
	return nil
}

// CheckedProduct multiplies non-negative factors, failing with
// ErrShapeOverflow instead of wrapping. Any zero factor yields zero.
func CheckedProduct(factors ...int) (int, error) {
	for _, f := range factors {
		if f == 0 {
			return 0, nil
		}
	}
	n := 1
	for _, f := range factors {
		if f < 0 || n > math.MaxInt/f {
			return 0, ErrShapeOverflow
		}
		n *= f
	}
	return n, nil
}

// ByteLen returns the buffer size of a tensor of shape s and type dt.
func ByteLen(s Shape, dt DataType) (int, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}
	n, err := CheckedProduct(s.NumElements(), dt.Size())
	if err != nil {
		return 0, fmt.Errorf("shape %v of %s: %w", s, dt, err)
	}
	return n, nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// String renders the shape as a tuple: (4, 4), (4,) or ().
func (s Shape) String() string {
	if len(s) == 1 {
		return "(" + strconv.Itoa(s[0]) + ",)"
	}
	parts := make([]string, len(s))
	for i, dim := range s {
		parts[i] = strconv.Itoa(dim)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
