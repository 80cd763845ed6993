package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/Faultbox/surfaceblend/internal/bake"
	"github.com/Faultbox/surfaceblend/internal/config"
)

func cmdBake(args []string) error {
	fs := flag.NewFlagSet("bake", flag.ExitOnError)
	flags := config.BindFlags(fs)
	size := fs.Int("size", 0, "Output size in pixels (default from config)")
	uv := fs.Int("uv", -1, "UV channel to lay out (default from config)")
	ss := fs.Int("ss", 1, "Supersampling factor")
	mode := fs.String("mode", string(bake.ModeTint), "tint or dominant")

	e, err := setup(fs, flags, args)
	if err != nil {
		return err
	}
	defer e.close()
	if fs.NArg() < 2 {
		return errors.New("usage: blendtool bake [options] <surface.yaml> <out.webp>")
	}

	s, err := e.load(fs.Arg(0))
	if err != nil {
		return err
	}

	opts := bake.Options{
		Size:        e.cfg.Bake.Size,
		UVChannel:   e.cfg.Bake.SourceUVChannel,
		Supersample: *ss,
		Mode:        bake.Mode(*mode),
	}
	if *size > 0 {
		opts.Size = *size
	}
	if *uv >= 0 {
		opts.UVChannel = *uv
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	img, stats, err := bake.Bake(ctx, s.Surface, opts)
	if err != nil {
		return err
	}
	if err := bake.WriteFile(fs.Arg(1), img); err != nil {
		return err
	}

	fmt.Printf("Wrote %s (%dx%d): %d texels, %d resolved, %d empty in %v\n",
		fs.Arg(1), opts.Size, opts.Size, stats.Texels, stats.Resolved, stats.Empty, stats.Took)
	return nil
}
