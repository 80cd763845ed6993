package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Faultbox/surfaceblend/internal/config"
	"github.com/Faultbox/surfaceblend/internal/surface"
	"github.com/Faultbox/surfaceblend/pkg/blend"
	"github.com/Faultbox/surfaceblend/pkg/geometry"
	"github.com/Faultbox/surfaceblend/pkg/math"
)

func cmdResolve(args []string) error {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	flags := config.BindFlags(fs)
	tri := fs.Int("tri", -1, "Triangle index")
	point := fs.String("point", "", "Point x,y,z on the triangle")
	submesh := fs.Int("submesh", -1, "Submesh (default: the triangle's)")
	ray := fs.String("ray", "", "Ray ox,oy,oz:dx,dy,dz; picks the nearest triangle")
	world := fs.Bool("world", false, "Point and ray are in world space")
	verbose := fs.Bool("v", false, "Print per-source samples")

	e, err := setup(fs, flags, args)
	if err != nil {
		return err
	}
	defer e.close()
	if fs.NArg() < 1 {
		return errors.New("usage: blendtool resolve [options] <surface.yaml>")
	}

	if *verbose {
		e.reg = surface.NewRegistry(e.assets, append(e.cfg.Resolve.Options(), blend.WithObserver(printSample))...)
	}
	s, err := e.load(fs.Arg(0))
	if err != nil {
		return err
	}

	var q blend.Query
	switch {
	case *ray != "":
		r, err := parseRay(*ray)
		if err != nil {
			return err
		}
		var ok bool
		if *world {
			q, ok = s.RaycastWorld(r, 0)
		} else {
			var hit geometry.Hit
			hit, ok = s.Mesh().Raycast(r, 0)
			q = blend.Query{Triangle: hit.Triangle, Point: hit.Point, Submesh: hit.Submesh}
		}
		if !ok {
			return errors.New("ray does not hit the surface")
		}
		fmt.Printf("Hit triangle %d (submesh %d) at %s\n", q.Triangle, q.Submesh, formatVec3(q.Point))
	case *tri >= 0 && *point != "":
		p, err := parseVec3(*point)
		if err != nil {
			return fmt.Errorf("-point: %w", err)
		}
		q = blend.Query{Triangle: *tri, Point: p, Submesh: *submesh}
		if q.Submesh < 0 {
			q.Submesh, _ = s.Mesh().SubmeshOf(*tri)
		}
	default:
		return errors.New("need -tri and -point, or -ray")
	}

	var res blend.Result
	if *world && *ray == "" {
		res = s.ResolveWorld(q)
	} else {
		res = s.Resolve(q)
	}
	printResult(os.Stdout, s, e.cfg.Resolve.Trim(res))
	return nil
}

func printResult(w io.Writer, s *surface.Surface, res blend.Result) {
	if !res.HasData() {
		fmt.Fprintf(w, "No data (%s)\n", res.Status)
		return
	}
	for _, entry := range res.Entries {
		c := entry.Color
		fmt.Fprintf(w, "  %-16s %7.4f  tint(%.3f %.3f %.3f %.3f)\n",
			s.TypeName(entry.SurfaceType), entry.Weight, c.R, c.G, c.B, c.A)
	}
}

func printSample(sample blend.Sample) {
	b := sample.Bary
	fmt.Printf("Barycentric u=%.6f v=%.6f w=%.6f\n", b.U, b.V, b.W)
	for _, src := range sample.Sources {
		c := src.Color
		fmt.Printf("  source %d uv(%.4f, %.4f) rgba(%.4f %.4f %.4f %.4f)\n",
			src.Source, src.UV.X, src.UV.Y, c.R, c.G, c.B, c.A)
	}
}

func parseVec3(s string) (math.Vec3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return math.Vec3{}, fmt.Errorf("want x,y,z, got %q", s)
	}
	var v [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return math.Vec3{}, err
		}
		v[i] = f
	}
	return math.Vec3{X: v[0], Y: v[1], Z: v[2]}, nil
}

func parseRay(s string) (geometry.Ray, error) {
	origin, dir, ok := strings.Cut(s, ":")
	if !ok {
		return geometry.Ray{}, fmt.Errorf("-ray: want origin:direction, got %q", s)
	}
	o, err := parseVec3(origin)
	if err != nil {
		return geometry.Ray{}, fmt.Errorf("-ray origin: %w", err)
	}
	d, err := parseVec3(dir)
	if err != nil {
		return geometry.Ray{}, fmt.Errorf("-ray direction: %w", err)
	}
	if d.LengthSq() == 0 {
		return geometry.Ray{}, errors.New("-ray direction is zero")
	}
	return geometry.NewRay(o, d), nil
}

func formatVec3(v math.Vec3) string {
	return fmt.Sprintf("(%.4f, %.4f, %.4f)", v.X, v.Y, v.Z)
}
