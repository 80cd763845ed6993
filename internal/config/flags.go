package config

import (
	"flag"
	"path/filepath"
	"strings"
)

// Flags holds command-line overrides. Zero values leave the config alone.
type Flags struct {
	Config     string
	Debug      bool
	LogFile    string
	Workers    int
	Assets     string // Separated by filepath.ListSeparator
	Degenerate bool
}

// BindFlags registers the shared flags on fs.
func BindFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.Config, "config", "", "Path to config file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.LogFile, "log", "", "Write logs to this file")
	fs.IntVar(&f.Workers, "workers", 0, "Batch worker count")
	fs.StringVar(&f.Assets, "assets", "", "Extra image search paths")
	fs.BoolVar(&f.Degenerate, "degenerate-fallback", false, "Use nearest-vertex weights on zero-area triangles")
	return f
}

// apply applies CLI flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if f == nil {
		return
	}
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.LogFile != "" {
		cfg.Logging.LogFile = f.LogFile
	}
	if f.Workers > 0 {
		cfg.Resolve.Workers = f.Workers
	}
	if f.Assets != "" {
		var paths []string
		for _, p := range filepath.SplitList(f.Assets) {
			if p = strings.TrimSpace(p); p != "" {
				paths = append(paths, p)
			}
		}
		cfg.Assets.SearchPaths = append(paths, cfg.Assets.SearchPaths...)
	}
	if f.Degenerate {
		cfg.Resolve.DegenerateFallback = true
	}
}
