// Package config handles blendtool configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/Faultbox/surfaceblend/internal/logger"
	"github.com/Faultbox/surfaceblend/pkg/blend"
)

// Config holds all blendtool settings.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Assets  AssetsConfig  `yaml:"assets"`
	Resolve ResolveConfig `yaml:"resolve"`
	Bake    BakeConfig    `yaml:"bake"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// AssetsConfig holds image lookup settings.
type AssetsConfig struct {
	SearchPaths []string `yaml:"search_paths"` // Tried in order after the definition's own directory
}

// ResolveConfig holds resolution settings shared by every surface.
type ResolveConfig struct {
	Workers            int     `yaml:"workers"`
	MinChannelStrength float64 `yaml:"min_channel_strength"`
	DegenerateFallback bool    `yaml:"degenerate_fallback"`
	MaxOutputs         int     `yaml:"max_outputs"` // 0 keeps every entry
	MinWeight          float64 `yaml:"min_weight"`
}

// BakeConfig holds settings for the bake command.
type BakeConfig struct {
	Size            int `yaml:"size"`              // Output is Size x Size
	SourceUVChannel int `yaml:"source_uv_channel"` // UV set rasterized into the output
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
		Assets: AssetsConfig{
			SearchPaths: []string{"."},
		},
		Resolve: ResolveConfig{
			Workers:            runtime.NumCPU(),
			MinChannelStrength: blend.DefaultMinChannelStrength,
			DegenerateFallback: false,
			MaxOutputs:         0,
			MinWeight:          0,
		},
		Bake: BakeConfig{
			Size:            256,
			SourceUVChannel: 0,
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Resolve.Workers < 1 {
		return fmt.Errorf("resolve.workers must be at least 1, got %d", c.Resolve.Workers)
	}
	if c.Resolve.MinChannelStrength < 0 {
		return errors.New("resolve.min_channel_strength must not be negative")
	}
	if c.Resolve.MaxOutputs < 0 {
		return errors.New("resolve.max_outputs must not be negative")
	}
	if c.Resolve.MinWeight < 0 || c.Resolve.MinWeight > 1 {
		return fmt.Errorf("resolve.min_weight must be within [0,1], got %v", c.Resolve.MinWeight)
	}
	if c.Bake.Size < 1 || c.Bake.Size > 8192 {
		return fmt.Errorf("bake.size must be within [1,8192], got %d", c.Bake.Size)
	}
	if c.Bake.SourceUVChannel < 0 {
		return errors.New("bake.source_uv_channel must not be negative")
	}
	return nil
}

// Options converts the resolve settings into surface options.
func (r ResolveConfig) Options() []blend.Option {
	return []blend.Option{
		blend.WithMinChannelStrength(r.MinChannelStrength),
		blend.WithDegenerateFallback(r.DegenerateFallback),
		blend.WithWorkers(r.Workers),
	}
}

// Trim applies the max_outputs and min_weight limits to r.
func (r ResolveConfig) Trim(res blend.Result) blend.Result {
	if r.MaxOutputs == 0 && r.MinWeight == 0 {
		return res
	}
	return res.Downshift(r.MaxOutputs, r.MinWeight)
}
