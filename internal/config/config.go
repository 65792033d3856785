// Package config loads the parslice configuration from defaults, an
// optional config file, PARSLICE_ environment variables and command line
// flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides: server.addr is read
// from PARSLICE_SERVER_ADDR.
const EnvPrefix = "PARSLICE"

// Config holds the configuration of the service and the CLI.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Output   OutputConfig   `mapstructure:"output"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`

	// MaxConcurrent bounds the number of pipelines running at once.
	MaxConcurrent int64 `mapstructure:"max_concurrent"`

	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// RateLimit is the sustained subset requests per second allowed per
	// client IP. Zero disables it.
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

// StorageConfig holds the location of the served files.
type StorageConfig struct {
	// Root is the directory request paths are resolved under.
	Root string `mapstructure:"root"`
}

// PipelineConfig tunes the subset pipeline.
type PipelineConfig struct {
	BatchSize   int    `mapstructure:"batch_size"`
	Workers     int    `mapstructure:"workers"`
	IndexColumn string `mapstructure:"index_column"`
}

// OutputConfig selects how results are encoded.
type OutputConfig struct {
	Compression string `mapstructure:"compression"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var defaults = map[string]any{
	"server.addr":           "0.0.0.0:5000",
	"server.max_concurrent": 16,
	"server.read_timeout":   30 * time.Second,
	"server.write_timeout":  5 * time.Minute,
	"server.rate_limit":     0.0,
	"server.rate_burst":     20,
	"storage.root":          "/storage2/splus",
	"pipeline.batch_size":   8192,
	"pipeline.workers":      1,
	"pipeline.index_column": "_hipscat_index",
	"output.compression":    "snappy",
	"log.level":             "info",
	"log.format":            "text",
}

// FlagKeys maps command line flag names to configuration keys.
var FlagKeys = map[string]string{
	"addr":           "server.addr",
	"max-concurrent": "server.max_concurrent",
	"rate-limit":     "server.rate_limit",
	"root":           "storage.root",
	"batch-size":     "pipeline.batch_size",
	"workers":        "pipeline.workers",
	"index-column":   "pipeline.index_column",
	"compression":    "output.compression",
	"log-level":      "log.level",
	"log-format":     "log.format",
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	cfg, err := Load("", nil)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the configuration. path names an optional config file in any
// format viper understands; an empty path skips it. Flags listed in
// FlagKeys override every other source when they were set explicitly.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, fmt.Errorf("server.addr is required"))
	}
	if c.Server.MaxConcurrent < 1 {
		errs = append(errs, fmt.Errorf("server.max_concurrent must be at least 1, got %d", c.Server.MaxConcurrent))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit must not be negative, got %g", c.Server.RateLimit))
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		errs = append(errs, fmt.Errorf("server.rate_burst must be at least 1, got %d", c.Server.RateBurst))
	}
	if c.Storage.Root == "" {
		errs = append(errs, fmt.Errorf("storage.root is required"))
	}
	if c.Pipeline.BatchSize < 1 || c.Pipeline.BatchSize > 1<<20 {
		errs = append(errs, fmt.Errorf("pipeline.batch_size must be between 1 and %d, got %d", 1<<20, c.Pipeline.BatchSize))
	}
	if c.Pipeline.Workers < 1 || c.Pipeline.Workers > 64 {
		errs = append(errs, fmt.Errorf("pipeline.workers must be between 1 and 64, got %d", c.Pipeline.Workers))
	}
	if c.Pipeline.IndexColumn == "" {
		errs = append(errs, fmt.Errorf("pipeline.index_column is required"))
	}
	switch strings.ToLower(c.Output.Compression) {
	case "snappy", "zstd", "gzip", "lz4", "brotli", "none", "uncompressed":
	default:
		errs = append(errs, fmt.Errorf("invalid output.compression: %s (must be snappy, zstd, gzip, lz4, brotli or none)", c.Output.Compression))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log.format: %s (must be text or json)", c.Log.Format))
	}
	return errors.Join(errs...)
}
