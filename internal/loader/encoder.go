package loader

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Encoder selects which tower(s) to load.
type Encoder string

// Encoder selectors.
const (
	EncoderImage Encoder = "image"
	EncoderText  Encoder = "text"
	EncoderBoth  Encoder = "both"
)

// ParseEncoder validates an encoder selector.
func ParseEncoder(s string) (Encoder, error) {
	switch e := Encoder(strings.ToLower(strings.TrimSpace(s))); e {
	case EncoderImage, EncoderText, EncoderBoth:
		return e, nil
	default:
		return "", fmt.Errorf("%w: %q (expected image, text or both)", ErrInvalidEncoder, s)
	}
}

// Towers expands the selector into single-tower encoders, image first.
func (e Encoder) Towers() []Encoder {
	switch e {
	case EncoderImage:
		return []Encoder{EncoderImage}
	case EncoderText:
		return []Encoder{EncoderText}
	case EncoderBoth:
		return []Encoder{EncoderImage, EncoderText}
	default:
		return nil
	}
}

// Label returns the display name of a single tower ("Image encoder").
func (e Encoder) Label() string {
	switch e {
	case EncoderImage:
		return "Image encoder"
	case EncoderText:
		return "Text encoder"
	default:
		return "Encoders"
	}
}

// FileName returns the well-known weight file name for a single tower.
func FileName(e Encoder, f Format) string {
	return string(e) + "_encoder_weights." + f.Extension()
}

// EncoderPath joins the model directory and the weight file name.
func EncoderPath(modelDir string, e Encoder, f Format) string {
	return filepath.Join(modelDir, FileName(e, f))
}
