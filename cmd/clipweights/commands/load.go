package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/born-ml/clipweights/internal/config"
	"github.com/born-ml/clipweights/internal/loader"
	"github.com/born-ml/clipweights/internal/logger"
	"github.com/born-ml/clipweights/internal/metrics"
)

func newLoadCmd(opts *options, format loader.Format) *cobra.Command {
	ext := format.Extension()
	return &cobra.Command{
		Use:   ext,
		Short: fmt.Sprintf("Load encoder weights from %s files", format),
		Long: fmt.Sprintf(`Load the encoder weights stored as %s files in the model directory:

  image_encoder_weights.%[2]s
  text_encoder_weights.%[2]s`, format, ext),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, opts)
			if err != nil {
				return err
			}
			return runLoad(cmd, cfg, format)
		},
	}
}

func runLoad(cmd *cobra.Command, cfg *config.Config, format loader.Format) (err error) {
	if cfg.MetricsFile != "" {
		defer func() {
			if werr := metrics.WriteTextfile(cfg.MetricsFile); werr != nil && err == nil {
				err = werr
			}
		}()
	}

	enc, err := loader.ParseEncoder(cfg.Encoder)
	if err != nil {
		return err
	}
	l, err := loader.NewForFormat(format)
	if err != nil {
		return err
	}
	l = l.WithLogger(logger.Log)

	r := newReport(cmd.OutOrStdout())
	r.banner(fmt.Sprintf("CLIP %s Weight Loader", format))
	r.printf("\nModel directory: %s\n\n", cfg.ModelDir)

	model, err := l.Load(cmd.Context(), cfg.ModelDir, enc)
	if err != nil {
		return fmt.Errorf("failed to load %s weights: %w", strings.ToLower(enc.Label()), err)
	}

	for _, tower := range enc.Towers() {
		r.separator()
		r.bundle(tower.Label(), loader.EncoderPath(cfg.ModelDir, tower, format), model.Bundle(tower))
		if cfg.Inspect {
			r.preview(model.Bundle(tower), cfg.MaxDisplay)
		}
	}
	r.separator()
	r.success("Weights loaded successfully!")
	return nil
}
