// Package config loads pkgiter settings from defaults, an optional
// .pkgiter.yaml in the workspace root, PKGITER_* environment variables and
// command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/utkarsh5026/pkgiter/batch"
	"github.com/utkarsh5026/pkgiter/internal/logging"
	"github.com/utkarsh5026/pkgiter/pool"
	"github.com/utkarsh5026/pkgiter/script"
)

// FileName is the optional config file looked up in the workspace root.
const FileName = ".pkgiter.yaml"

// EnvPrefix prefixes environment overrides, e.g. PKGITER_CONCURRENCY.
const EnvPrefix = "PKGITER"

// Strategy names.
const (
	StrategySequential = "sequential"
	StrategyParallel   = "parallel"
	StrategyBatched    = "batched"
)

// Config is the complete pkgiter configuration.
type Config struct {
	// Strategy is one of sequential, parallel or batched.
	Strategy string `mapstructure:"strategy"`
	// Concurrency bounds the parallel strategy.
	Concurrency int `mapstructure:"concurrency"`
	// BatchConcurrency bounds each level of the batched strategy.
	BatchConcurrency int `mapstructure:"batch_concurrency"`
	// FailurePolicy is "stop" or "skip-dependents" (batched only).
	FailurePolicy string `mapstructure:"failure_policy"`
	// Built is the label under which successful packages are recorded.
	// Empty disables built tracking.
	Built string `mapstructure:"built"`
	// NPMClient runs package scripts.
	NPMClient string `mapstructure:"npm_client"`
	// RateLimit caps package launches per second. Zero disables it.
	RateLimit float64 `mapstructure:"rate_limit"`
	// RateBurst is the number of launches allowed back to back under
	// RateLimit.
	RateBurst int `mapstructure:"rate_burst"`
	// Silent captures command output instead of streaming it.
	Silent  bool          `mapstructure:"silent"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// LoggingConfig controls diagnostic logging. Output goes to stderr unless
// File is set.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Strategy:         StrategyParallel,
		Concurrency:      pool.DefaultConcurrency,
		BatchConcurrency: batch.DefaultConcurrency,
		FailurePolicy:    batch.StopOnFailure.String(),
		NPMClient:        script.DefaultClient,
		RateBurst:        1,
		Logging: LoggingConfig{
			Level:  "warn",
			Format: logging.FormatText,
		},
	}
}

// SetDefaults registers default values with v.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("strategy", d.Strategy)
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("batch_concurrency", d.BatchConcurrency)
	v.SetDefault("failure_policy", d.FailurePolicy)
	v.SetDefault("built", d.Built)
	v.SetDefault("npm_client", d.NPMClient)
	v.SetDefault("rate_limit", d.RateLimit)
	v.SetDefault("rate_burst", d.RateBurst)
	v.SetDefault("silent", d.Silent)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file", d.Logging.File)
}

// New returns a viper instance with defaults, environment overrides and, if
// present, the config file of the workspace at root.
func New(root string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(filepath.Join(root, FileName))
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", FileName, err)
		}
	}
	return v, nil
}

// Load reads the configuration from v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// Policy returns the parsed failure policy. Call after Validate.
func (c *Config) Policy() batch.Policy {
	p, _ := batch.ParsePolicy(c.FailurePolicy)
	return p
}

// ValidStrategies returns the accepted strategy names.
func ValidStrategies() []string {
	return []string{StrategySequential, StrategyParallel, StrategyBatched}
}
