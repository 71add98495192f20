// Package inspect renders bounded, human-readable previews of weight bundles.
package inspect

import (
	"fmt"
	"iter"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/born-ml/clipweights/internal/loader"
	"github.com/born-ml/clipweights/internal/tensor"
)

// Column widths of a preview line.
const (
	NameWidth  = 60
	ShapeWidth = 20
)

// DefaultMaxDisplay bounds previews when no limit is configured.
const DefaultMaxDisplay = 10

// Options controls a preview.
type Options struct {
	ShowShapes bool
	MaxDisplay int
}

// DefaultOptions shows shapes and at most DefaultMaxDisplay tensors.
func DefaultOptions() Options {
	return Options{ShowShapes: true, MaxDisplay: DefaultMaxDisplay}
}

// Lines yields at most opts.MaxDisplay tensor lines in name order, followed
// by one omission line when the bundle holds more tensors than that.
// The sequence is lazy and can be ranged over any number of times.
func Lines(b loader.Bundle, opts Options) iter.Seq[string] {
	limit := max(opts.MaxDisplay, 0)

	return func(yield func(string) bool) {
		names := b.Names()
		for i, name := range names {
			if i >= limit {
				yield(fmt.Sprintf("  ... and %d more tensors", len(names)-limit))
				return
			}
			if !yield(tensorLine(b, name, opts.ShowShapes)) {
				return
			}
		}
	}
}

func tensorLine(b loader.Bundle, name string, showShapes bool) string {
	if !showShapes {
		return "  " + name
	}
	t := b[name]
	return "  " + fit(name, NameWidth) + " " + fit(FormatShape(t.Shape()), ShapeWidth) + " " + t.DType().String()
}

// fit pads s to width runes, truncating longer values with "...".
func fit(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n > width {
		return string([]rune(s)[:width-3]) + "..."
	}
	return s + strings.Repeat(" ", width-n)
}

// FormatShape renders a shape as a tuple: (4, 4), (4,) or ().
func FormatShape(shape tensor.Shape) string {
	return shape.String()
}

// Header introduces a preview.
func Header(b loader.Bundle) string {
	return fmt.Sprintf("Weight tensors (%d total):", len(b))
}

// Summary describes a bundle in one line, e.g.
// "Image encoder: 2 tensors, 20 parameters".
func Summary(label string, b loader.Bundle) string {
	return fmt.Sprintf("%s: %s tensors, %s parameters", label, Thousands(int64(len(b))), Thousands(b.NumParams()))
}

// Thousands formats n with comma separators.
func Thousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	sign := ""
	if n < 0 {
		sign, s = "-", s[1:]
	}

	var sb strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(r)
	}
	return sign + sb.String()
}
