// blendtool is a CLI utility for checking and querying surface blend
// definitions.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/surfaceblend/internal/assets"
	"github.com/Faultbox/surfaceblend/internal/config"
	"github.com/Faultbox/surfaceblend/internal/logger"
	"github.com/Faultbox/surfaceblend/internal/surface"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "validate", "check":
		err = cmdValidate(args)
	case "resolve", "r":
		err = cmdResolve(args)
	case "batch":
		err = cmdBatch(args)
	case "bake":
		err = cmdBake(args)
	case "config":
		err = cmdConfig(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`blendtool - surface blend map utility

Usage:
  blendtool <command> [options]

Commands:
  validate <surface.yaml>...                 Load definitions and report problems
  resolve  [options] <surface.yaml>          Resolve one point (-tri/-point or -ray)
  batch    [options] <surface.yaml> <q.yaml> Resolve a list of queries
  bake     [options] <surface.yaml> <out>    Render resolved blends to WebP
  config   [path]                            Write the default config

Shared options:
  -config <file>   Config file (default ./blendtool.yaml)
  -debug           Debug logging
  -log <file>      Also log to a rotating file
  -workers <n>     Batch worker count
  -assets <dirs>   Extra image search paths

Examples:
  blendtool validate maps/*.yaml
  blendtool resolve -tri 12 -point 0.4,0,1.2 maps/floor.yaml
  blendtool resolve -world -ray 3,5,2:0,-1,0 maps/floor.yaml
  blendtool batch -workers 8 maps/floor.yaml footsteps.yaml
  blendtool bake -size 512 -mode dominant maps/floor.yaml floor.webp`)
}

// env is the state shared by every command after flags are parsed.
type env struct {
	cfg    *config.Config
	assets *assets.Manager
	reg    *surface.Registry
}

// setup parses fs, loads config, starts logging and prepares a registry.
func setup(fs *flag.FlagSet, flags *config.Flags, args []string) (*env, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg, err := config.Load(flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return nil, err
	}
	logger.Debug("config loaded",
		zap.Int("workers", cfg.Resolve.Workers),
		zap.Strings("search_paths", cfg.Assets.SearchPaths))

	am := assets.NewManager(cfg.Assets.SearchPaths...)
	return &env{
		cfg:    cfg,
		assets: am,
		reg:    surface.NewRegistry(am, cfg.Resolve.Options()...),
	}, nil
}

func (e *env) close() {
	e.reg.Close()
	e.assets.Close()
}

func (e *env) load(path string) (*surface.Surface, error) {
	return e.reg.LoadFile(path)
}

func cmdValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	flags := config.BindFlags(fs)
	e, err := setup(fs, flags, args)
	if err != nil {
		return err
	}
	defer e.close()
	if fs.NArg() < 1 {
		return errors.New("usage: blendtool validate <surface.yaml>...")
	}

	failed := 0
	for _, path := range fs.Args() {
		s, err := e.load(path)
		if err != nil {
			failed++
			fmt.Printf("FAIL %s\n     %v\n", path, err)
			continue
		}
		mesh := s.Mesh()
		fmt.Printf("ok   %s (%s): %d triangles, %d submeshes, %d maps\n",
			path, s.Name, len(mesh.Triangles), mesh.SubmeshCount(), s.Sources())
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d definitions failed", failed, fs.NArg())
	}
	return nil
}

func cmdConfig(args []string) error {
	cfg := config.Default()
	if len(args) > 0 {
		if err := cfg.SaveTo(args[0]); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", args[0])
		return nil
	}
	if err := cfg.Save(); err != nil {
		return err
	}
	fmt.Printf("Wrote default config to %s\n", config.ConfigDir())
	return nil
}
