// Package loader loads the image and text encoder weights of a two-tower
// image/text model from NPZ or SafeTensors files.
//
// This package wraps the internal loader and exports a small public API.
//
// Example usage:
//
//	import "github.com/born-ml/clipweights/loader"
//
//	l, err := loader.NewForFormat(loader.FormatSafeTensors)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	model, err := l.LoadFullModel(ctx, "models/clip")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, name := range model.Image.Names() {
//	    t := model.Image[name]
//	    fmt.Println(name, t.Shape(), t.DType())
//	}
package loader

import (
	"context"

	"github.com/born-ml/clipweights/internal/loader"
	"github.com/born-ml/clipweights/internal/tensor"
)

// Tensor is a decoded weight tensor: shape, element type and raw
// little-endian bytes.
type Tensor = tensor.RawTensor

// Shape lists tensor dimensions.
type Shape = tensor.Shape

// DataType is a tensor element type.
type DataType = tensor.DataType

// Bundle maps tensor names to tensors for one encoder.
type Bundle = loader.Bundle

// FullModel holds both encoder bundles.
type FullModel = loader.FullModel

// Encoder selects which tower(s) to load.
type Encoder = loader.Encoder

// Encoder selectors.
const (
	EncoderImage = loader.EncoderImage
	EncoderText  = loader.EncoderText
	EncoderBoth  = loader.EncoderBoth
)

// Format identifies a container variant.
type Format = loader.Format

// Supported container formats.
const (
	FormatUnknown     = loader.FormatUnknown
	FormatNPZ         = loader.FormatNPZ
	FormatSafeTensors = loader.FormatSafeTensors
)

// Container decodes one weight file into a bundle.
//
// Note: This is a type alias because Decode returns internal tensor types
// that cannot be abstracted without a wrapper layer.
type Container = loader.Container

// Loader resolves encoder files under a model directory and decodes them.
type Loader = loader.Loader

// DecodeError describes a weight file that could not be decoded.
type DecodeError = loader.DecodeError

// Errors returned by the loader.
var (
	ErrNotFound       = loader.ErrNotFound
	ErrDecode         = loader.ErrDecode
	ErrInvalidEncoder = loader.ErrInvalidEncoder
	ErrUnknownFormat  = loader.ErrUnknownFormat
)

// New returns a loader for the given container.
func New(c Container) *Loader {
	return loader.New(c)
}

// NewForFormat returns a loader for a built-in container format.
func NewForFormat(f Format) (*Loader, error) {
	return loader.NewForFormat(f)
}

// ParseEncoder validates an encoder selector ("image", "text" or "both").
func ParseEncoder(s string) (Encoder, error) {
	return loader.ParseEncoder(s)
}

// ParseFormat validates a format name ("npz" or "safetensors").
func ParseFormat(s string) (Format, error) {
	return loader.ParseFormat(s)
}

// LoadImageEncoder loads <modelDir>/image_encoder_weights.<ext>.
func LoadImageEncoder(f Format, modelDir string) (Bundle, error) {
	l, err := loader.NewForFormat(f)
	if err != nil {
		return nil, err
	}
	return l.LoadImageEncoder(modelDir)
}

// LoadTextEncoder loads <modelDir>/text_encoder_weights.<ext>.
func LoadTextEncoder(f Format, modelDir string) (Bundle, error) {
	l, err := loader.NewForFormat(f)
	if err != nil {
		return nil, err
	}
	return l.LoadTextEncoder(modelDir)
}

// LoadFullModel loads both encoders concurrently.
func LoadFullModel(ctx context.Context, f Format, modelDir string) (*FullModel, error) {
	l, err := loader.NewForFormat(f)
	if err != nil {
		return nil, err
	}
	return l.LoadFullModel(ctx, modelDir)
}
