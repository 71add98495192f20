package loader

import (
	"errors"
	"fmt"
)

// Error kinds.
var (
	ErrNotFound       = errors.New("weight file not found")
	ErrDecode         = errors.New("weight file could not be decoded")
	ErrInvalidEncoder = errors.New("invalid encoder selector")
	ErrUnknownFormat  = errors.New("unknown container format")
)

// DecodeError reports a weight file that exists but is not a valid, complete
// container of the expected format.
type DecodeError struct {
	Path   string
	Format Format
	Err    error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s file %s: %v", e.Format, e.Path, e.Err)
}

// Unwrap matches both ErrDecode and the decoder's own error.
func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecode, e.Err}
}

// errorKind classifies err for metrics labels.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDecode):
		return "decode"
	default:
		return "io"
	}
}
