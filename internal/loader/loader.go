package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/born-ml/clipweights/internal/logger"
	"github.com/born-ml/clipweights/internal/metrics"
)

// bundleLabel is the metrics encoder label for loads not tied to a tower.
const bundleLabel = "bundle"

// Loader resolves encoder weight files in a model directory and decodes them
// with a fixed container.
type Loader struct {
	container Container
	log       *logger.Logger
}

// New returns a Loader that decodes with c.
func New(c Container) *Loader {
	return &Loader{container: c}
}

// NewForFormat returns a Loader for the named container format.
func NewForFormat(f Format) (*Loader, error) {
	c, err := ContainerFor(f)
	if err != nil {
		return nil, err
	}
	return New(c), nil
}

// WithLogger returns a copy of l that logs to log instead of the global logger.
func (l *Loader) WithLogger(log *logger.Logger) *Loader {
	cp := *l
	cp.log = log
	return &cp
}

// Format returns the container format in use.
func (l *Loader) Format() Format {
	return l.container.Format()
}

func (l *Loader) logger() *logger.Logger {
	if l.log != nil {
		return l.log
	}
	return logger.Log
}

// LoadBundle decodes the weight file at path.
//
// A missing file fails with ErrNotFound before anything is read. A file that
// exists but does not decode fails with a *DecodeError.
func (l *Loader) LoadBundle(path string) (Bundle, error) {
	return l.load(path, bundleLabel)
}

// LoadImageEncoder loads <modelDir>/image_encoder_weights.<ext>.
func (l *Loader) LoadImageEncoder(modelDir string) (Bundle, error) {
	return l.LoadEncoder(modelDir, EncoderImage)
}

// LoadTextEncoder loads <modelDir>/text_encoder_weights.<ext>.
func (l *Loader) LoadTextEncoder(modelDir string) (Bundle, error) {
	return l.LoadEncoder(modelDir, EncoderText)
}

// LoadEncoder loads the bundle of a single tower.
func (l *Loader) LoadEncoder(modelDir string, e Encoder) (Bundle, error) {
	if e != EncoderImage && e != EncoderText {
		return nil, fmt.Errorf("%w: %q is not a single tower", ErrInvalidEncoder, e)
	}
	return l.load(EncoderPath(modelDir, e, l.Format()), string(e))
}

// LoadFullModel loads both towers concurrently. If either load fails the
// call fails and no bundle is returned.
func (l *Loader) LoadFullModel(ctx context.Context, modelDir string) (*FullModel, error) {
	return l.Load(ctx, modelDir, EncoderBoth)
}

// Load loads the towers named by e. Towers that were not requested are left
// nil in the result.
func (l *Loader) Load(ctx context.Context, modelDir string, e Encoder) (*FullModel, error) {
	towers := e.Towers()
	if towers == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEncoder, e)
	}

	bundles := make([]Bundle, len(towers))
	g, ctx := errgroup.WithContext(ctx)
	for i, tower := range towers {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := l.LoadEncoder(modelDir, tower)
			if err != nil {
				return err
			}
			bundles[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	model := &FullModel{}
	for i, tower := range towers {
		switch tower {
		case EncoderImage:
			model.Image = bundles[i]
		case EncoderText:
			model.Text = bundles[i]
		}
	}
	return model, nil
}

func (l *Loader) load(path, encoder string) (Bundle, error) {
	format := l.container.Format()
	log := l.logger().With("format", format.String(), "path", path)

	log.Info("loading weights")
	start := time.Now()

	b, err := l.decode(path)
	if err != nil {
		metrics.RecordLoadError(format.Extension(), encoder, errorKind(err))
		log.Error("load failed", "err", err)
		return nil, err
	}
	elapsed := time.Since(start)

	metrics.RecordBundleLoad(format.Extension(), encoder, len(b), b.NumBytes(), elapsed)
	log.Info("loaded weights",
		"tensors", len(b),
		"params", b.NumParams(),
		"bytes", b.NumBytes(),
		"elapsed", elapsed.String(),
	)
	return b, nil
}

func (l *Loader) decode(path string) (Bundle, error) {
	format := l.container.Format()

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, fmt.Errorf("failed to stat weight file: %w", err)
	}
	if info.IsDir() {
		return nil, &DecodeError{Path: path, Format: format, Err: errors.New("is a directory")}
	}

	b, err := l.container.Decode(path)
	if err != nil {
		// The file can vanish between Stat and Decode.
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, &DecodeError{Path: path, Format: format, Err: err}
	}
	return b, nil
}
