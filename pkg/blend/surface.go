package blend

import (
	"errors"
	"fmt"
	gomath "math"
	"sync"

	"github.com/Faultbox/surfaceblend/pkg/geometry"
	"github.com/Faultbox/surfaceblend/pkg/math"
)

// DefaultMinChannelStrength is the channel strength at or below which a
// channel contributes nothing.
const DefaultMinChannelStrength = 1e-10

// Configuration errors returned by New.
var (
	ErrNilMesh        = errors.New("mesh is nil")
	ErrNoSources      = errors.New("no blend sources")
	ErrMissingMap     = errors.New("blend map image missing")
	ErrNegativeWeight = errors.New("weight must be a non-negative number")
	ErrTransform      = errors.New("transform is not invertible")

	ErrBadTriangle  = geometry.ErrIndexRange
	ErrUVCount      = geometry.ErrUVCount
	ErrUVChannel    = geometry.ErrUVChannel
	ErrSubmeshRange = geometry.ErrSubmeshRange
)

// Query addresses one point on the surface.
type Query struct {
	Triangle int
	Point    math.Vec3 // Mesh-local unless passed to ResolveWorld
	Submesh  int
}

// SourceSample records what one active source read during a query.
type SourceSample struct {
	Source int
	UV     math.Vec2
	Color  Color
}

// Sample is the diagnostic view of a finished query.
type Sample struct {
	Query   Query
	Bary    geometry.Bary
	Sources []SourceSample
	Result  Result
}

// Observer receives a Sample after every resolution. It runs on the resolving
// goroutine, so batch resolution calls it concurrently; it must not retain
// Sample.Sources.
type Observer func(Sample)

type options struct {
	minStrength        float64
	degenerateFallback bool
	observer           Observer
	localToWorld       math.Mat4
	workers            int
}

// Option configures a Surface.
type Option func(*options)

// WithMinChannelStrength overrides DefaultMinChannelStrength.
func WithMinChannelStrength(v float64) Option {
	return func(o *options) { o.minStrength = v }
}

// WithDegenerateFallback switches barycentric resolution to nearest-vertex
// weighting on zero-area triangles. Off by default, in which case degenerate
// triangles resolve to StatusZeroWeight.
func WithDegenerateFallback(enabled bool) Option {
	return func(o *options) { o.degenerateFallback = enabled }
}

// WithObserver installs a diagnostic callback.
func WithObserver(fn Observer) Option {
	return func(o *options) { o.observer = fn }
}

// WithTransform sets the mesh's local-to-world matrix used by ResolveWorld.
func WithTransform(localToWorld math.Mat4) Option {
	return func(o *options) { o.localToWorld = localToWorld }
}

// WithWorkers sets the ResolveBatch worker count. With more than one worker
// the surface owns a pool after its first large batch; Close releases it.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// Surface is an immutable mesh plus blend sources, ready for queries.
type Surface struct {
	mesh    *geometry.Mesh
	sources []Source
	uvs     [][]math.Vec2 // UV set per source
	toLocal math.Mat4
	opts    options
	scratch sync.Pool

	batchMu   sync.RWMutex
	batchOnce sync.Once
	batcher   *Batcher
	closed    bool
}

// New validates the configuration and builds a Surface. Channel blends are
// normalized into private copies; the caller's sources are not modified.
// Any configuration error aborts construction.
func New(mesh *geometry.Mesh, sources []Source, opts ...Option) (*Surface, error) {
	o := options{
		minStrength:  DefaultMinChannelStrength,
		localToWorld: math.Identity(),
		workers:      1,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if mesh == nil {
		return nil, ErrNilMesh
	}
	if err := mesh.Validate(); err != nil {
		return nil, fmt.Errorf("mesh: %w", err)
	}
	if len(sources) == 0 {
		return nil, ErrNoSources
	}

	toLocal, ok := o.localToWorld.Inverse()
	if !ok {
		return nil, ErrTransform
	}

	s := &Surface{
		mesh:    mesh,
		sources: make([]Source, len(sources)),
		uvs:     make([][]math.Vec2, len(sources)),
		toLocal: toLocal,
		opts:    o,
	}
	for i := range sources {
		if err := validateSource(mesh, &sources[i]); err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
		uvs, err := mesh.UVChannel(sources[i].UVChannel)
		if err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
		s.sources[i] = sources[i].normalized()
		s.uvs[i] = uvs
	}
	s.scratch.New = func() any { return NewScratch() }
	return s, nil
}

func validateSource(mesh *geometry.Mesh, src *Source) error {
	if !validWeight(src.Weight) {
		return fmt.Errorf("weight %v: %w", src.Weight, ErrNegativeWeight)
	}
	if src.Map == nil {
		return ErrMissingMap
	}
	for _, sm := range src.Submeshes {
		if sm < 0 || sm >= mesh.SubmeshCount() {
			return fmt.Errorf("submesh %d of %d: %w", sm, mesh.SubmeshCount(), ErrSubmeshRange)
		}
	}
	for ch := 0; ch < channelCount; ch++ {
		for _, e := range src.Channel(ch).Entries {
			if !validWeight(e.Weight) {
				return fmt.Errorf("channel %d surface type %d weight %v: %w", ch, e.SurfaceType, e.Weight, ErrNegativeWeight)
			}
		}
	}
	return nil
}

func validWeight(w float64) bool {
	return w >= 0 && !gomath.IsInf(w, 1)
}

// Mesh returns the surface geometry. Callers must not modify it.
func (s *Surface) Mesh() *geometry.Mesh {
	return s.mesh
}

// Sources returns the number of blend sources.
func (s *Surface) Sources() int {
	return len(s.sources)
}

// Scratch holds per-query state. A Scratch may be reused across queries but
// not shared between concurrent ones.
type Scratch struct {
	active []bool
	uvs    []math.Vec2
	colors []Color
	tints  [][channelCount]Color
	acc    Accumulator
}

// NewScratch returns an empty scratch buffer.
func NewScratch() *Scratch {
	return &Scratch{}
}

func (sc *Scratch) reset(n int) {
	if cap(sc.active) < n {
		sc.active = make([]bool, n)
		sc.uvs = make([]math.Vec2, n)
		sc.colors = make([]Color, n)
		sc.tints = make([][channelCount]Color, n)
	}
	sc.active = sc.active[:n]
	sc.uvs = sc.uvs[:n]
	sc.colors = sc.colors[:n]
	sc.tints = sc.tints[:n]
	clear(sc.active)
	sc.acc.Reset()
}

// Resolve computes the surface type distribution for q using a pooled
// scratch buffer.
func (s *Surface) Resolve(q Query) Result {
	sc := s.scratch.Get().(*Scratch)
	r := s.ResolveWith(q, sc)
	s.scratch.Put(sc)
	return r
}

// ToLocal maps a world-space point into mesh-local space.
func (s *Surface) ToLocal(p math.Vec3) math.Vec3 {
	return s.toLocal.TransformPoint(p)
}

// ResolveWorld resolves a query whose Point is in world space.
func (s *Surface) ResolveWorld(q Query) Result {
	q.Point = s.ToLocal(q.Point)
	return s.Resolve(q)
}

// RaycastWorld casts a world-space ray against the mesh and returns the query
// for the nearest hit, with its point in mesh-local space.
func (s *Surface) RaycastWorld(r geometry.Ray, maxDistance float64) (Query, bool) {
	hit, ok := s.mesh.Raycast(r.Transform(s.toLocal), maxDistance)
	if !ok {
		return Query{}, false
	}
	return Query{Triangle: hit.Triangle, Point: hit.Point, Submesh: hit.Submesh}, true
}

// ResolveWith computes the distribution for q using the caller's scratch.
func (s *Surface) ResolveWith(q Query, sc *Scratch) Result {
	sc.reset(len(s.sources))

	idx, a, b, c, ok := s.mesh.Corners(q.Triangle)
	if !ok {
		return s.observe(q, geometry.Bary{}, sc, Result{Status: StatusBadTriangle})
	}

	var bary geometry.Bary
	if s.opts.degenerateFallback {
		bary, _ = geometry.BarycentricSafe(a, b, c, q.Point)
	} else {
		bary = geometry.Barycentric(a, b, c, q.Point)
	}

	activated := false
	var grandTotal float64
	for i := range s.sources {
		src := &s.sources[i]
		if !src.TryActivate(q.Submesh) {
			continue
		}
		activated = true

		uvs := s.uvs[i]
		uv := src.SampleUV([3]math.Vec2{uvs[idx[0]], uvs[idx[1]], uvs[idx[2]]}, bary)
		col := src.Map.Sample(uv)
		for ch := 0; ch < channelCount; ch++ {
			sc.tints[i][ch] = src.Channel(ch).sampleTint(uv)
		}
		sc.active[i] = true
		sc.uvs[i] = uv
		sc.colors[i] = col

		grandTotal += src.Weight * col.Sum()
	}

	if !activated {
		return s.observe(q, bary, sc, Result{Status: StatusNoSource})
	}
	if !(grandTotal > 0) {
		return s.observe(q, bary, sc, Result{Status: StatusZeroWeight})
	}

	for i := range s.sources {
		if !sc.active[i] {
			continue
		}
		src := &s.sources[i]
		invTotal := src.Weight / grandTotal
		col := sc.colors[i]

		for ch := 0; ch < channelCount; ch++ {
			strength := invTotal * col.Channel(ch)
			if strength <= s.opts.minStrength {
				continue
			}
			blend := src.Channel(ch)
			tint := valueOrWhite(blend.Tint).Mul(sc.tints[i][ch])
			for _, e := range blend.Entries {
				sc.acc.Add(e.SurfaceType, e.Weight*strength, valueOrWhite(e.Color).Mul(tint))
			}
		}
	}

	return s.observe(q, bary, sc, sc.acc.Result())
}

func (s *Surface) observe(q Query, bary geometry.Bary, sc *Scratch, r Result) Result {
	if s.opts.observer == nil {
		return r
	}
	sample := Sample{Query: q, Bary: bary, Result: r}
	for i := range sc.active {
		if sc.active[i] {
			sample.Sources = append(sample.Sources, SourceSample{Source: i, UV: sc.uvs[i], Color: sc.colors[i]})
		}
	}
	s.opts.observer(sample)
	return r
}
