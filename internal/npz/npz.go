// Package npz reads NumPy .npz archives into tensors.
//
// An .npz file is a zip archive whose members are .npy arrays. Decoding of
// the archive and of each member is delegated to github.com/sbinet/npyio;
// this package maps numpy descriptors onto tensor data types and collects the
// members into a name-to-tensor map. Member names have their ".npy" suffix
// removed, matching numpy.load.
package npz

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/born-ml/clipweights/internal/tensor"
)

// Errors returned while decoding archive members.
var (
	ErrUnsupportedDType = errors.New("unsupported numpy dtype")
	ErrFortranOrder     = errors.New("fortran-ordered arrays are not supported")
	ErrMissingHeader    = errors.New("archive member has no npy header")
	ErrInvalidShape     = errors.New("invalid array shape")
	ErrSizeMismatch     = errors.New("array data shorter than its shape")
)

const memberSuffix = ".npy"

// ParseDescr maps a numpy dtype descriptor such as "<f4" or "|b1" to a
// tensor data type. The byte-order character is accepted but not returned:
// the decoder converts to native order.
func ParseDescr(descr string) (tensor.DataType, error) {
	s := descr
	if s != "" && strings.ContainsRune("<>|=", rune(s[0])) {
		s = s[1:]
	}
	if len(s) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedDType, descr)
	}

	size, err := strconv.Atoi(s[1:])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedDType, descr)
	}

	switch kind := s[0]; {
	case kind == 'f' && size == 2:
		return tensor.Float16, nil
	case kind == 'f' && size == 4:
		return tensor.Float32, nil
	case kind == 'f' && size == 8:
		return tensor.Float64, nil
	case kind == 'i' && size == 1:
		return tensor.Int8, nil
	case kind == 'i' && size == 2:
		return tensor.Int16, nil
	case kind == 'i' && size == 4:
		return tensor.Int32, nil
	case kind == 'i' && size == 8:
		return tensor.Int64, nil
	case kind == 'u' && size == 1:
		return tensor.Uint8, nil
	case kind == 'u' && size == 2:
		return tensor.Uint16, nil
	case kind == 'u' && size == 4:
		return tensor.Uint32, nil
	case kind == 'u' && size == 8:
		return tensor.Uint64, nil
	case kind == 'b' && size == 1:
		return tensor.Bool, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedDType, descr)
	}
}

// Descr returns the little-endian numpy descriptor for dt.
func Descr(dt tensor.DataType) (string, error) {
	switch dt {
	case tensor.Float16:
		return "<f2", nil
	case tensor.Float32:
		return "<f4", nil
	case tensor.Float64:
		return "<f8", nil
	case tensor.Int8:
		return "|i1", nil
	case tensor.Int16:
		return "<i2", nil
	case tensor.Int32:
		return "<i4", nil
	case tensor.Int64:
		return "<i8", nil
	case tensor.Uint8:
		return "|u1", nil
	case tensor.Uint16:
		return "<u2", nil
	case tensor.Uint32:
		return "<u4", nil
	case tensor.Uint64:
		return "<u8", nil
	case tensor.Bool:
		return "|b1", nil
	default:
		return "", fmt.Errorf("%w: %s has no numpy equivalent", ErrUnsupportedDType, dt)
	}
}

// TensorName strips the archive member suffix.
func TensorName(member string) string {
	return strings.TrimSuffix(member, memberSuffix)
}
