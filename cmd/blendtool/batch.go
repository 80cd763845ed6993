package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/surfaceblend/internal/config"
	"github.com/Faultbox/surfaceblend/internal/logger"
	"github.com/Faultbox/surfaceblend/internal/surface"
	"github.com/Faultbox/surfaceblend/pkg/blend"
	"github.com/Faultbox/surfaceblend/pkg/geometry"
	"github.com/Faultbox/surfaceblend/pkg/math"
)

// queryFile is the batch input format.
type queryFile struct {
	World   bool       `yaml:"world"`
	Queries []queryDef `yaml:"queries"`
}

type queryDef struct {
	ID       string     `yaml:"id,omitempty"`
	Triangle *int       `yaml:"triangle,omitempty"`
	Point    [3]float64 `yaml:"point,omitempty"`
	Submesh  *int       `yaml:"submesh,omitempty"`
	Ray      *rayDef    `yaml:"ray,omitempty"`
}

type rayDef struct {
	Origin    [3]float64 `yaml:"origin"`
	Direction [3]float64 `yaml:"direction"`
	Max       float64    `yaml:"max,omitempty"`
}

type resultOut struct {
	ID      string             `yaml:"id,omitempty"`
	Status  string             `yaml:"status"`
	Weights map[string]float64 `yaml:"weights,omitempty"`
}

func cmdBatch(args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	flags := config.BindFlags(fs)
	e, err := setup(fs, flags, args)
	if err != nil {
		return err
	}
	defer e.close()
	if fs.NArg() < 2 {
		return errors.New("usage: blendtool batch [options] <surface.yaml> <queries.yaml>")
	}

	s, err := e.load(fs.Arg(0))
	if err != nil {
		return err
	}
	qf, err := readQueries(fs.Arg(1))
	if err != nil {
		return err
	}

	queries := make([]blend.Query, len(qf.Queries))
	missed := make([]bool, len(qf.Queries))
	for i := range qf.Queries {
		q, ok, err := toQuery(s, &qf.Queries[i], qf.World)
		if err != nil {
			return fmt.Errorf("query %d: %w", i, err)
		}
		queries[i], missed[i] = q, !ok
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	results, err := s.ResolveBatch(ctx, queries)
	if err != nil {
		return err
	}
	logger.Info("batch resolved",
		zap.Int("queries", len(queries)),
		zap.Int("workers", e.cfg.Resolve.Workers),
		zap.Duration("took", time.Since(start)))

	out := make([]resultOut, len(results))
	for i, r := range results {
		out[i].ID = qf.Queries[i].ID
		if missed[i] {
			out[i].Status = "Miss"
			continue
		}
		r = e.cfg.Resolve.Trim(r)
		out[i].Status = r.Status.String()
		if r.HasData() {
			out[i].Weights = make(map[string]float64, len(r.Entries))
			for _, entry := range r.Entries {
				out[i].Weights[s.TypeName(entry.SurfaceType)] = entry.Weight
			}
		}
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]any{"results": out}); err != nil {
		return err
	}
	return enc.Close()
}

func readQueries(path string) (*queryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var qf queryFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &qf, nil
}

// toQuery converts a query definition. A ray that misses reports ok=false;
// the zero query it returns resolves harmlessly and is reported as a miss.
func toQuery(s *surface.Surface, def *queryDef, world bool) (blend.Query, bool, error) {
	if def.Ray != nil {
		r := geometry.NewRay(vec3(def.Ray.Origin), vec3(def.Ray.Direction))
		if world {
			q, ok := s.RaycastWorld(r, def.Ray.Max)
			return q, ok, nil
		}
		hit, ok := s.Mesh().Raycast(r, def.Ray.Max)
		return blend.Query{Triangle: hit.Triangle, Point: hit.Point, Submesh: hit.Submesh}, ok, nil
	}
	if def.Triangle == nil {
		return blend.Query{}, false, errors.New("needs triangle or ray")
	}

	q := blend.Query{Triangle: *def.Triangle, Point: vec3(def.Point)}
	if world {
		q.Point = s.ToLocal(q.Point)
	}
	if def.Submesh != nil {
		q.Submesh = *def.Submesh
	} else {
		q.Submesh, _ = s.Mesh().SubmeshOf(q.Triangle)
	}
	return q, true, nil
}

func vec3(v [3]float64) math.Vec3 {
	return math.Vec3{X: v[0], Y: v[1], Z: v[2]}
}
