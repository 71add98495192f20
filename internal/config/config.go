// Package config loads CLI settings from YAML, .env files and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/clipweights/internal/inspect"
	"github.com/born-ml/clipweights/internal/loader"
)

// DefaultPath is the config file consulted when none is given.
const DefaultPath = "clipweights.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CLIPWEIGHTS_"

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the root configuration.
type Config struct {
	ModelDir    string    `yaml:"model_dir"`
	Encoder     string    `yaml:"encoder"`
	Inspect     bool      `yaml:"inspect"`
	MaxDisplay  int       `yaml:"max_display"`
	Log         LogConfig `yaml:"log"`
	MetricsFile string    `yaml:"metrics_file,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ModelDir:   ".",
		Encoder:    string(loader.EncoderBoth),
		MaxDisplay: inspect.DefaultMaxDisplay,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the YAML file at path on top of the defaults and then applies
// environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv loads .env style files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		return lookup(EnvPrefix + key)
	}

	if v, ok := get("MODEL_DIR"); ok {
		c.ModelDir = v
	}
	if v, ok := get("ENCODER"); ok {
		c.Encoder = v
	}
	if v, ok := get("INSPECT"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sINSPECT %q: %w", EnvPrefix, v, err)
		}
		c.Inspect = b
	}
	if v, ok := get("MAX_DISPLAY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sMAX_DISPLAY %q: %w", EnvPrefix, v, err)
		}
		c.MaxDisplay = n
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := get("LOG_FORMAT"); ok {
		c.Log.Format = v
	}
	if v, ok := get("METRICS_FILE"); ok {
		c.MetricsFile = v
	}
	return nil
}

// Validate checks selector values and bounds.
func (c *Config) Validate() error {
	if _, err := loader.ParseEncoder(c.Encoder); err != nil {
		return err
	}
	if c.MaxDisplay < 0 {
		return fmt.Errorf("max_display must be non-negative, got %d", c.MaxDisplay)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}
