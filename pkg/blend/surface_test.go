package blend

import (
	"context"
	"errors"
	gomath "math"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/Faultbox/surfaceblend/pkg/geometry"
	"github.com/Faultbox/surfaceblend/pkg/math"
)

// quadMesh is a unit quad in the XY plane split into two triangles, one per
// submesh. UV channel 0 mirrors XY.
func quadMesh() *geometry.Mesh {
	verts := []math.Vec3{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}
	uvs := []math.Vec2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}
	return &geometry.Mesh{
		Vertices:  verts,
		Triangles: []geometry.Triangle{{0, 1, 2}, {0, 2, 3}},
		UVs:       [][]math.Vec2{uvs},
		Submeshes: []geometry.Submesh{{Start: 0, Count: 1}, {Start: 1, Count: 1}},
	}
}

func single(surfaceType int) ChannelBlend {
	return ChannelBlend{Entries: []ChannelEntry{{SurfaceType: surfaceType, Weight: 1}}}
}

func solidSource(c Color, submeshes ...int) Source {
	return Source{
		Weight:    1,
		Map:       NewSolidTexture(4, 4, c, WrapClamp),
		UV:        IdentityUV,
		Submeshes: submeshes,
		R:         single(1),
		G:         single(2),
		B:         single(3),
		A:         single(4),
	}
}

func mustSurface(t *testing.T, mesh *geometry.Mesh, sources []Source, opts ...Option) *Surface {
	t.Helper()
	s, err := New(mesh, sources, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

var center0 = Query{Triangle: 0, Point: math.Vec3{X: 0.75, Y: 0.25}, Submesh: 0}

func near(a, b, eps float64) bool {
	return gomath.Abs(a-b) <= eps
}

func checkNormalized(t *testing.T, r Result) {
	t.Helper()
	if r.Status != StatusResolved {
		t.Fatalf("Status = %v, want Resolved", r.Status)
	}
	var sum float64
	for i, e := range r.Entries {
		if e.Weight < 0 {
			t.Errorf("entry %d has negative weight %v", i, e.Weight)
		}
		if i > 0 && e.Weight > r.Entries[i-1].Weight {
			t.Errorf("entries not sorted: %v after %v", e.Weight, r.Entries[i-1].Weight)
		}
		sum += e.Weight
	}
	if !near(sum, 1, 1e-9) {
		t.Errorf("weights sum to %v, want 1", sum)
	}
}

func TestResolveSingleTypeEndToEnd(t *testing.T) {
	src := Source{
		Weight:    1,
		Map:       NewSolidTexture(2, 2, Color{R: 1}, WrapClamp),
		UV:        IdentityUV,
		Submeshes: []int{0},
		R:         single(7),
	}
	s := mustSurface(t, quadMesh(), []Source{src})

	got := s.Resolve(center0)
	want := map[int]float64{7: 1}
	if !reflect.DeepEqual(got.Map(), want) {
		t.Errorf("Resolve() = %v, want %v", got.Map(), want)
	}
}

// A white map gives every channel strength 0.25; only R has entries, so the
// empty G, B and A lists must drop out when the result is normalized.
func TestResolveWhiteMapSingleTriangle(t *testing.T) {
	mesh := &geometry.Mesh{
		Vertices:  []math.Vec3{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}},
		Triangles: []geometry.Triangle{{0, 1, 2}},
		UVs:       [][]math.Vec2{{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}},
	}
	src := Source{
		Weight:    1,
		Map:       NewSolidTexture(1, 1, White, WrapClamp),
		UV:        IdentityUV,
		Submeshes: []int{0},
		R:         single(7),
	}

	var sample Sample
	s := mustSurface(t, mesh, []Source{src}, WithObserver(func(sm Sample) { sample = sm }))

	got := s.Resolve(Query{Triangle: 0, Point: math.Vec3{X: 0.25, Y: 0.25, Z: 0}, Submesh: 0})
	checkNormalized(t, got)
	want := map[int]float64{7: 1}
	if !reflect.DeepEqual(got.Map(), want) {
		t.Errorf("Resolve() = %v, want %v", got.Map(), want)
	}
	b := sample.Bary
	if !near(b.U, 0.5, 1e-6) || !near(b.V, 0.25, 1e-6) || !near(b.W, 0.25, 1e-6) {
		t.Errorf("Bary = %+v, want (0.5, 0.25, 0.25)", b)
	}
	if len(sample.Sources) != 1 || sample.Sources[0].Color != White {
		t.Errorf("Sources = %+v, want one white sample", sample.Sources)
	}
}

func TestResolveWhiteMapSplitsEvenly(t *testing.T) {
	s := mustSurface(t, quadMesh(), []Source{solidSource(White, 0)})

	got := s.Resolve(center0)
	checkNormalized(t, got)
	if len(got.Entries) != 4 {
		t.Fatalf("len(Entries) = %d, want 4", len(got.Entries))
	}
	for st := 1; st <= 4; st++ {
		if w := got.Weight(st); !near(w, 0.25, 1e-12) {
			t.Errorf("Weight(%d) = %v, want 0.25", st, w)
		}
	}
	// Equal weights keep first-contribution order: R, G, B, A.
	for i, e := range got.Entries {
		if e.SurfaceType != i+1 {
			t.Errorf("Entries[%d].SurfaceType = %d, want %d", i, e.SurfaceType, i+1)
		}
	}
}

func TestResolveMergesAcrossSources(t *testing.T) {
	a := solidSource(Color{R: 1}, 0)
	b := solidSource(Color{G: 1}, 0)
	b.Weight = 3
	b.G = ChannelBlend{Entries: []ChannelEntry{{SurfaceType: 1, Weight: 1}, {SurfaceType: 9, Weight: 1}}}

	s := mustSurface(t, quadMesh(), []Source{a, b})
	got := s.Resolve(center0)
	checkNormalized(t, got)

	// grand = 1*1 + 3*1; a.R strength 0.25, b.G strength 0.75 split 50/50.
	if w := got.Weight(1); !near(w, 0.25+0.375, 1e-12) {
		t.Errorf("Weight(1) = %v, want 0.625", w)
	}
	if w := got.Weight(9); !near(w, 0.375, 1e-12) {
		t.Errorf("Weight(9) = %v, want 0.375", w)
	}
}

func TestResolveSubmeshGating(t *testing.T) {
	s := mustSurface(t, quadMesh(), []Source{solidSource(White, 0)})

	q := Query{Triangle: 1, Point: math.Vec3{X: 0.25, Y: 0.75}, Submesh: 1}
	if got := s.Resolve(q); got.Status != StatusNoSource || got.HasData() {
		t.Errorf("Resolve() = %+v, want NoSource without data", got)
	}
}

func TestResolveZeroMap(t *testing.T) {
	s := mustSurface(t, quadMesh(), []Source{solidSource(Color{}, 0)})
	if got := s.Resolve(center0); got.Status != StatusZeroWeight {
		t.Errorf("Status = %v, want ZeroWeight", got.Status)
	}
}

func TestResolveZeroSourceWeight(t *testing.T) {
	src := solidSource(White, 0)
	src.Weight = 0
	s := mustSurface(t, quadMesh(), []Source{src})
	if got := s.Resolve(center0); got.Status != StatusZeroWeight {
		t.Errorf("Status = %v, want ZeroWeight", got.Status)
	}
}

func TestResolveChannelStrengthThreshold(t *testing.T) {
	s := mustSurface(t, quadMesh(), []Source{solidSource(White, 0)}, WithMinChannelStrength(0.3))
	if got := s.Resolve(center0); got.Status != StatusZeroWeight {
		t.Errorf("Status = %v, want ZeroWeight", got.Status)
	}

	tiny := Color{R: 1, G: 1e-12}
	s = mustSurface(t, quadMesh(), []Source{solidSource(tiny, 0)})
	got := s.Resolve(center0)
	if got.Weight(2) != 0 {
		t.Errorf("Weight(2) = %v, want 0 below default threshold", got.Weight(2))
	}
	if !near(got.Weight(1), 1, 1e-9) {
		t.Errorf("Weight(1) = %v, want 1", got.Weight(1))
	}
}

func TestResolveBadTriangle(t *testing.T) {
	s := mustSurface(t, quadMesh(), []Source{solidSource(White, 0)})
	for _, tri := range []int{-1, 2, 100} {
		if got := s.Resolve(Query{Triangle: tri}); got.Status != StatusBadTriangle {
			t.Errorf("triangle %d: Status = %v, want BadTriangle", tri, got.Status)
		}
	}
}

func TestResolveDegenerateTriangle(t *testing.T) {
	mesh := &geometry.Mesh{
		Vertices:  []math.Vec3{{X: 0}, {X: 1}, {X: 2}},
		Triangles: []geometry.Triangle{{0, 1, 2}},
		UVs:       [][]math.Vec2{{{X: 0}, {X: 0.5}, {X: 1}}},
	}
	q := Query{Triangle: 0, Point: math.Vec3{X: 0.1}}

	s := mustSurface(t, mesh, []Source{solidSource(White, 0)})
	if got := s.Resolve(q); got.Status != StatusZeroWeight {
		t.Errorf("Status = %v, want ZeroWeight", got.Status)
	}

	s = mustSurface(t, mesh, []Source{solidSource(White, 0)}, WithDegenerateFallback(true))
	checkNormalized(t, s.Resolve(q))
}

func TestResolveDeterministic(t *testing.T) {
	a := solidSource(Color{R: 0.3, G: 0.2, B: 0.1, A: 0.9}, 0, 1)
	b := solidSource(Color{R: 0.7, B: 0.5}, 0)
	b.Weight = 0.5
	s := mustSurface(t, quadMesh(), []Source{a, b})

	first := s.Resolve(center0)
	checkNormalized(t, first)
	for i := 0; i < 50; i++ {
		if got := s.Resolve(center0); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d: Resolve() = %+v, want %+v", i, got, first)
		}
	}
}

func TestResolveEntryColor(t *testing.T) {
	src := Source{
		Weight:    1,
		Map:       NewSolidTexture(2, 2, Color{R: 1, G: 1}, WrapClamp),
		UV:        IdentityUV,
		Submeshes: []int{0},
		R: ChannelBlend{
			Entries: []ChannelEntry{{SurfaceType: 5, Weight: 1, Color: &Color{R: 1, A: 1}}},
			Tint:    &Color{R: 0.5, G: 0.5, B: 0.5, A: 1},
		},
		G: ChannelBlend{
			Entries:  []ChannelEntry{{SurfaceType: 5, Weight: 1}},
			ColorMap: NewSolidTexture(1, 1, Color{B: 1, A: 1}, WrapClamp),
		},
	}
	s := mustSurface(t, quadMesh(), []Source{src})

	got := s.Resolve(center0)
	if len(got.Entries) != 1 {
		t.Fatalf("len(Entries) = %d, want 1", len(got.Entries))
	}
	want := Color{R: 0.25, B: 0.5, A: 1}
	c := got.Entries[0].Color
	if !near(c.R, want.R, 1e-9) || !near(c.G, want.G, 1e-9) || !near(c.B, want.B, 1e-9) || !near(c.A, want.A, 1e-9) {
		t.Errorf("Color = %+v, want %+v", c, want)
	}
}

func TestResolveBlackTint(t *testing.T) {
	src := Source{
		Weight:    1,
		Map:       NewSolidTexture(2, 2, Color{R: 1}, WrapClamp),
		UV:        IdentityUV,
		Submeshes: []int{0},
		R: ChannelBlend{
			Entries: []ChannelEntry{{SurfaceType: 5, Weight: 1}},
			Tint:    &Color{},
		},
	}
	s := mustSurface(t, quadMesh(), []Source{src})

	got := s.Resolve(center0)
	if got.Weight(5) != 1 {
		t.Fatalf("Resolve() = %v, want {5: 1}", got.Map())
	}
	if c := got.Entries[0].Color; c != (Color{}) {
		t.Errorf("Color = %+v, want transparent black", c)
	}
}

func TestResolveUsesSourceUVChannel(t *testing.T) {
	mesh := quadMesh()
	// Channel 1 maps every vertex into the left half of the map.
	mesh.UVs = append(mesh.UVs, []math.Vec2{{X: 0.1}, {X: 0.1}, {X: 0.1, Y: 1}, {X: 0.1, Y: 1}})

	img := NewSolidTexture(2, 1, Color{R: 1}, WrapClamp)
	img.Set(1, 0, Color{G: 1})

	src := Source{
		Weight:    1,
		Map:       img,
		UVChannel: 1,
		UV:        IdentityUV,
		Submeshes: []int{0},
		R:         single(1),
		G:         single(2),
	}
	s := mustSurface(t, mesh, []Source{src})
	got := s.Resolve(center0)
	if !near(got.Weight(1), 1, 1e-9) {
		t.Errorf("Resolve() = %v, want only type 1", got.Map())
	}
}

func TestResolveWorld(t *testing.T) {
	toWorld := math.Translate(10, 0, -5)
	s := mustSurface(t, quadMesh(), []Source{solidSource(White, 0)}, WithTransform(toWorld))

	q := center0
	q.Point = toWorld.TransformPoint(center0.Point)
	if got, want := s.ResolveWorld(q), s.Resolve(center0); !reflect.DeepEqual(got, want) {
		t.Errorf("ResolveWorld() = %+v, want %+v", got, want)
	}

	ray := geometry.NewRay(math.Vec3{X: 10.75, Y: 0.25, Z: -4}, math.Vec3{Z: -1})
	hit, ok := s.RaycastWorld(ray, 100)
	if !ok {
		t.Fatal("RaycastWorld() missed")
	}
	if hit.Triangle != 0 || hit.Submesh != 0 {
		t.Errorf("RaycastWorld() = %+v, want triangle 0 submesh 0", hit)
	}
	checkNormalized(t, s.Resolve(hit))
}

func TestResolveObserver(t *testing.T) {
	var calls atomic.Int32
	var last Sample
	obs := func(s Sample) {
		calls.Add(1)
		last = s
	}
	s := mustSurface(t, quadMesh(), []Source{solidSource(White, 0), solidSource(White, 1)}, WithObserver(obs))

	s.Resolve(center0)
	if calls.Load() != 1 {
		t.Fatalf("observer calls = %d, want 1", calls.Load())
	}
	if len(last.Sources) != 1 || last.Sources[0].Source != 0 {
		t.Errorf("Sources = %+v, want only source 0", last.Sources)
	}
	if last.Result.Status != StatusResolved {
		t.Errorf("Result.Status = %v, want Resolved", last.Result.Status)
	}
}

func TestNewDoesNotModifySources(t *testing.T) {
	src := solidSource(White, 0)
	src.R = ChannelBlend{Entries: []ChannelEntry{{SurfaceType: 1, Weight: 2}, {SurfaceType: 2, Weight: 6}}}

	mustSurface(t, quadMesh(), []Source{src})
	if src.R.Entries[0].Weight != 2 || src.R.Entries[1].SurfaceType != 2 {
		t.Errorf("caller entries modified: %+v", src.R.Entries)
	}
}

func TestNewErrors(t *testing.T) {
	tests := []struct {
		name   string
		mesh   *geometry.Mesh
		mutate func(*Source)
		opts   []Option
		want   error
	}{
		{"nil mesh", nil, nil, nil, ErrNilMesh},
		{"negative source weight", quadMesh(), func(s *Source) { s.Weight = -1 }, nil, ErrNegativeWeight},
		{"nan source weight", quadMesh(), func(s *Source) { s.Weight = gomath.NaN() }, nil, ErrNegativeWeight},
		{"negative entry weight", quadMesh(), func(s *Source) { s.B.Entries[0].Weight = -0.5 }, nil, ErrNegativeWeight},
		{"missing map", quadMesh(), func(s *Source) { s.Map = nil }, nil, ErrMissingMap},
		{"uv channel", quadMesh(), func(s *Source) { s.UVChannel = 3 }, nil, ErrUVChannel},
		{"submesh range", quadMesh(), func(s *Source) { s.Submeshes = []int{2} }, nil, ErrSubmeshRange},
		{"singular transform", quadMesh(), nil, []Option{WithTransform(math.Scale(0, 1, 1))}, ErrTransform},
		{"uv count", &geometry.Mesh{
			Vertices:  []math.Vec3{{}, {X: 1}, {Y: 1}},
			Triangles: []geometry.Triangle{{0, 1, 2}},
			UVs:       [][]math.Vec2{{{}, {}}},
		}, nil, nil, ErrUVCount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := solidSource(White, 0)
			if tt.mutate != nil {
				tt.mutate(&src)
			}
			_, err := New(tt.mesh, []Source{src}, tt.opts...)
			if !errors.Is(err, tt.want) {
				t.Errorf("New() error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := New(quadMesh(), nil); !errors.Is(err, ErrNoSources) {
		t.Errorf("New(no sources) error = %v, want %v", err, ErrNoSources)
	}
}

func TestResolveBatchMatchesSequential(t *testing.T) {
	a := solidSource(Color{R: 0.3, G: 0.2, B: 0.1, A: 0.9}, 0)
	b := solidSource(Color{R: 0.7, B: 0.5}, 1)
	s := mustSurface(t, quadMesh(), []Source{a, b}, WithWorkers(4))
	t.Cleanup(s.Close)

	queries := make([]Query, 1000)
	for i := range queries {
		f := float64(i%97) / 97
		if i%2 == 0 {
			queries[i] = Query{Triangle: 0, Point: math.Vec3{X: 0.5 + f/2, Y: f / 4}, Submesh: 0}
		} else {
			queries[i] = Query{Triangle: 1, Point: math.Vec3{X: f / 4, Y: 0.5 + f/2}, Submesh: 1}
		}
	}

	got, err := s.ResolveBatch(context.Background(), queries)
	if err != nil {
		t.Fatalf("ResolveBatch() error = %v", err)
	}
	for i, q := range queries {
		if want := s.Resolve(q); !reflect.DeepEqual(got[i], want) {
			t.Fatalf("query %d: batch = %+v, sequential = %+v", i, got[i], want)
		}
	}
}

func TestResolveBatchCancelled(t *testing.T) {
	s := mustSurface(t, quadMesh(), []Source{solidSource(White, 0)}, WithWorkers(2))
	t.Cleanup(s.Close)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.ResolveBatch(ctx, make([]Query, 600))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ResolveBatch() error = %v, want context.Canceled", err)
	}
}
