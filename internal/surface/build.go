package surface

import (
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/surfaceblend/internal/assets"
	"github.com/Faultbox/surfaceblend/internal/logger"
	"github.com/Faultbox/surfaceblend/pkg/blend"
	"github.com/Faultbox/surfaceblend/pkg/geometry"
	"github.com/Faultbox/surfaceblend/pkg/math"
)

// Surface is a built definition.
type Surface struct {
	*blend.Surface

	Name     string
	Path     string // Source file, empty for in-memory definitions
	Def      *Definition
	LoadedAt time.Time
}

// TypeName returns the display name for a surface type.
func (s *Surface) TypeName(surfaceType int) string {
	return s.Def.TypeName(surfaceType)
}

// Load reads and builds the definition at path. Images are resolved relative
// to the definition's directory first, then the manager's search paths.
func Load(path string, am *assets.Manager, opts ...blend.Option) (*Surface, error) {
	def, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Build(def, filepath.Dir(path), am, opts...)
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", path, err)
	}
	s.Path = path
	if s.Name == "" {
		s.Name = trimExt(filepath.Base(path))
	}
	return s, nil
}

// Build turns a definition into a Surface. base is the directory relative
// image names are resolved against first. A nil manager searches base only.
func Build(def *Definition, base string, am *assets.Manager, opts ...blend.Option) (*Surface, error) {
	start := time.Now()
	if am == nil {
		am = assets.NewManager()
	}

	mesh := BuildMesh(&def.Mesh)

	sources := make([]blend.Source, len(def.Maps))
	for i := range def.Maps {
		src, err := buildSource(&def.Maps[i], base, am)
		if err != nil {
			return nil, fmt.Errorf("map %s: %w", mapLabel(&def.Maps[i], i), err)
		}
		sources[i] = src
	}

	opts = append([]blend.Option{blend.WithTransform(def.Transform.Matrix())}, opts...)
	bs, err := blend.New(mesh, sources, opts...)
	if err != nil {
		return nil, err
	}

	logger.Info("surface built",
		zap.String("name", def.Name),
		zap.Int("vertices", len(mesh.Vertices)),
		zap.Int("triangles", len(mesh.Triangles)),
		zap.Int("submeshes", mesh.SubmeshCount()),
		zap.Int("maps", len(sources)),
		zap.Duration("took", time.Since(start)))

	return &Surface{
		Surface:  bs,
		Name:     def.Name,
		Def:      def,
		LoadedAt: time.Now(),
	}, nil
}

// BuildMesh converts the inline mesh. Validation happens in blend.New.
func BuildMesh(def *MeshDef) *geometry.Mesh {
	mesh := &geometry.Mesh{
		Vertices:  make([]math.Vec3, len(def.Vertices)),
		Triangles: make([]geometry.Triangle, len(def.Triangles)),
		UVs:       make([][]math.Vec2, len(def.UVs)),
	}
	for i, v := range def.Vertices {
		mesh.Vertices[i] = math.Vec3{X: v[0], Y: v[1], Z: v[2]}
	}
	for i, t := range def.Triangles {
		mesh.Triangles[i] = geometry.Triangle(t)
	}
	for ch, set := range def.UVs {
		uvs := make([]math.Vec2, len(set))
		for i, uv := range set {
			uvs[i] = math.Vec2{X: uv[0], Y: uv[1]}
		}
		mesh.UVs[ch] = uvs
	}
	for _, sm := range def.Submeshes {
		mesh.Submeshes = append(mesh.Submeshes, geometry.Submesh{Start: sm.Start, Count: sm.Count})
	}
	return mesh
}

// Matrix returns the local-to-world matrix.
func (t TransformDef) Matrix() math.Mat4 {
	scale := math.Vec3{X: 1, Y: 1, Z: 1}
	if t.Scale != nil {
		scale = vec3(*t.Scale)
	}
	rot := math.QuatFromEuler(vec3(t.Rotation))
	return math.TRS(vec3(t.Position), rot, scale)
}

func buildSource(def *BlendMapDef, base string, am *assets.Manager) (blend.Source, error) {
	wrap, err := blend.ParseWrapMode(def.Wrap)
	if err != nil {
		return blend.Source{}, err
	}
	if def.Image == "" {
		return blend.Source{}, blend.ErrMissingMap
	}
	img, err := am.Texture(def.Image, base, wrap)
	if err != nil {
		return blend.Source{}, fmt.Errorf("%w: %w", blend.ErrMissingMap, err)
	}

	src := blend.Source{
		Weight:    1,
		Map:       img,
		UVChannel: def.UVChannel,
		UV:        blend.IdentityUV,
		Submeshes: def.Submeshes,
	}
	if def.Weight != nil {
		src.Weight = *def.Weight
	}
	if def.UVScale != nil {
		src.UV.Scale = vec2(*def.UVScale)
	}
	src.UV.Offset = vec2(def.UVOffset)

	channels := []struct {
		name string
		def  *ChannelDef
		dst  *blend.ChannelBlend
	}{
		{"r", &def.Channels.R, &src.R},
		{"g", &def.Channels.G, &src.G},
		{"b", &def.Channels.B, &src.B},
		{"a", &def.Channels.A, &src.A},
	}
	for _, ch := range channels {
		cb, err := buildChannel(ch.def, base, wrap, am)
		if err != nil {
			return blend.Source{}, fmt.Errorf("channel %s: %w", ch.name, err)
		}
		*ch.dst = cb
	}
	return src, nil
}

func buildChannel(def *ChannelDef, base string, wrap blend.WrapMode, am *assets.Manager) (blend.ChannelBlend, error) {
	var cb blend.ChannelBlend
	if def.Tint != nil {
		cb.Tint = color(*def.Tint).Ptr()
	}
	if def.Wrap != "" {
		w, err := blend.ParseWrapMode(def.Wrap)
		if err != nil {
			return cb, fmt.Errorf("color map wrap: %w", err)
		}
		wrap = w
	}
	if def.ColorMap != "" {
		tex, err := am.Texture(def.ColorMap, base, wrap)
		if err != nil {
			return cb, fmt.Errorf("color map: %w", err)
		}
		cb.ColorMap = tex
	}
	cb.Entries = make([]blend.ChannelEntry, len(def.Entries))
	for i, e := range def.Entries {
		entry := blend.ChannelEntry{SurfaceType: e.Type, Weight: e.Weight}
		if e.Color != nil {
			entry.Color = color(*e.Color).Ptr()
		}
		cb.Entries[i] = entry
	}
	return cb, nil
}

func mapLabel(def *BlendMapDef, i int) string {
	if def.Name != "" {
		return fmt.Sprintf("%q", def.Name)
	}
	return fmt.Sprintf("#%d", i)
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}

func vec2(v [2]float64) math.Vec2 { return math.Vec2{X: v[0], Y: v[1]} }
func vec3(v [3]float64) math.Vec3 { return math.Vec3{X: v[0], Y: v[1], Z: v[2]} }

func color(c [4]float64) blend.Color {
	return blend.Color{R: c[0], G: c[1], B: c[2], A: c[3]}
}
