// Package commands implements the clipweights command tree.
package commands

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/born-ml/clipweights/internal/config"
	"github.com/born-ml/clipweights/internal/loader"
	"github.com/born-ml/clipweights/internal/logger"
)

// Version is overridden at build time with -ldflags "-X ...".
var Version = "v0.1.0-dev"

// options holds the raw values of the persistent flags.
type options struct {
	configPath  string
	modelDir    string
	encoder     string
	inspect     bool
	maxDisplay  int
	logLevel    string
	logFormat   string
	metricsFile string
}

// NewRootCmd builds the command tree with fresh flag state.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	defaults := config.DefaultConfig()

	root := &cobra.Command{
		Use:   "clipweights",
		Short: "Load and inspect two-tower image/text encoder weights",
		Long: `clipweights loads the image and text encoder weights of a two-tower
image/text model from a model directory and reports what it found.

The directory holds image_encoder_weights.<ext> and text_encoder_weights.<ext>,
where <ext> is npz or safetensors depending on the subcommand.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", config.DefaultPath, "config file (missing is fine)")
	pf.StringVar(&opts.modelDir, "model-dir", defaults.ModelDir, "directory containing the weight files")
	pf.StringVar(&opts.encoder, "encoder", defaults.Encoder, "encoder to load: image, text or both")
	pf.BoolVar(&opts.inspect, "inspect", defaults.Inspect, "print a shape/dtype preview of each bundle")
	pf.IntVar(&opts.maxDisplay, "max-display", defaults.MaxDisplay, "maximum number of tensors shown by --inspect")
	pf.StringVar(&opts.logLevel, "log-level", defaults.Log.Level, "log level: debug, info, warn or error")
	pf.StringVar(&opts.logFormat, "log-format", defaults.Log.Format, "log format: console or json")
	pf.StringVar(&opts.metricsFile, "metrics-file", defaults.MetricsFile, "write Prometheus metrics to this file after the run")

	root.AddCommand(
		newLoadCmd(opts, loader.FormatNPZ),
		newLoadCmd(opts, loader.FormatSafeTensors),
		newVersionCmd(),
	)
	return root
}

// ExecuteContext runs the root command under ctx.
func ExecuteContext(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// resolveConfig layers defaults, the config file, the environment and
// explicitly set flags, in that order, and sets up the logger.
func resolveConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	if err := config.LoadEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	_, statErr := os.Stat(opts.configPath)
	missingConfig := flags.Changed("config") && errors.Is(statErr, fs.ErrNotExist)

	if flags.Changed("model-dir") {
		cfg.ModelDir = opts.modelDir
	}
	if flags.Changed("encoder") {
		cfg.Encoder = opts.encoder
	}
	if flags.Changed("inspect") {
		cfg.Inspect = opts.inspect
	}
	if flags.Changed("max-display") {
		cfg.MaxDisplay = opts.maxDisplay
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = opts.logFormat
	}
	if flags.Changed("metrics-file") {
		cfg.MetricsFile = opts.metricsFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.SetupWriter(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if missingConfig {
		logger.Log.Warn("config file not found, using defaults", "path", opts.configPath)
	}
	return cfg, nil
}
