package loader

import (
	"fmt"
	"strings"

	"github.com/born-ml/clipweights/internal/logger"
	"github.com/born-ml/clipweights/internal/npz"
	"github.com/born-ml/clipweights/internal/safetensors"
)

// Format represents the on-disk container format.
type Format int

// Supported container formats.
const (
	FormatUnknown Format = iota
	FormatNPZ
	FormatSafeTensors
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatNPZ:
		return "NPZ"
	case FormatSafeTensors:
		return "SafeTensors"
	default:
		return "Unknown"
	}
}

// Extension returns the file extension without the leading dot.
func (f Format) Extension() string {
	switch f {
	case FormatNPZ:
		return "npz"
	case FormatSafeTensors:
		return "safetensors"
	default:
		return ""
	}
}

// ParseFormat maps "npz" or "safetensors" to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "npz":
		return FormatNPZ, nil
	case "safetensors":
		return FormatSafeTensors, nil
	default:
		return FormatUnknown, fmt.Errorf("%w: %q (expected npz or safetensors)", ErrUnknownFormat, s)
	}
}

// Container decodes one weight file into a Bundle.
type Container interface {
	// Format returns the container format.
	Format() Format

	// Decode reads the whole file at path.
	Decode(path string) (Bundle, error)
}

// NPZContainer decodes NumPy .npz archives.
type NPZContainer struct{}

// Format returns FormatNPZ.
func (NPZContainer) Format() Format {
	return FormatNPZ
}

// Decode reads every array in the archive.
func (NPZContainer) Decode(path string) (Bundle, error) {
	tensors, err := npz.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Bundle(tensors), nil
}

// SafeTensorsContainer decodes safetensors files.
type SafeTensorsContainer struct{}

// Format returns FormatSafeTensors.
func (SafeTensorsContainer) Format() Format {
	return FormatSafeTensors
}

// Decode validates the header and reads every tensor.
func (SafeTensorsContainer) Decode(path string) (Bundle, error) {
	r, err := safetensors.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = r.Close() // Read-only; close error carries no information
	}()

	if md := r.Metadata(); len(md) > 0 {
		logger.Log.Debug("safetensors metadata", "path", path, "metadata", md)
	}

	tensors, err := r.LoadAll()
	if err != nil {
		return nil, err
	}
	return Bundle(tensors), nil
}

// ContainerFor returns the container variant for f.
func ContainerFor(f Format) (Container, error) {
	switch f {
	case FormatNPZ:
		return NPZContainer{}, nil
	case FormatSafeTensors:
		return SafeTensorsContainer{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, f)
	}
}
