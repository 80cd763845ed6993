// Package bake rasterizes resolved surface blends into an image laid out by
// one of the mesh's UV channels.
package bake

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	gomath "math"
	"os"
	"path/filepath"
	"time"

	"github.com/HugoSmits86/nativewebp"
	"go.uber.org/zap"

	"github.com/Faultbox/surfaceblend/internal/logger"
	"github.com/Faultbox/surfaceblend/internal/texture"
	"github.com/Faultbox/surfaceblend/pkg/blend"
	"github.com/Faultbox/surfaceblend/pkg/geometry"
	"github.com/Faultbox/surfaceblend/pkg/math"
)

// Mode selects what a texel shows.
type Mode string

const (
	// ModeTint writes the weighted entry color of the result.
	ModeTint Mode = "tint"
	// ModeDominant writes a palette color for the strongest surface type.
	ModeDominant Mode = "dominant"
)

// ErrBadSize is returned for a non-positive output size.
var ErrBadSize = errors.New("bake size must be positive")

// Options configures a bake.
type Options struct {
	Size        int
	UVChannel   int
	Supersample int // Render at Size*Supersample then downscale; <= 1 disables
	Mode        Mode
	Palette     map[int]color.NRGBA // ModeDominant overrides
}

// Stats summarizes a bake.
type Stats struct {
	Texels   int // Texels covered by at least one triangle
	Resolved int
	Empty    int // Covered texels whose result carried no data
	Took     time.Duration
}

type texel struct {
	x, y int
}

// Bake resolves every covered texel of s and returns the image. Rows are
// written top-down, so v=1 lands on the first row.
func Bake(ctx context.Context, s *blend.Surface, opts Options) (*image.NRGBA, Stats, error) {
	start := time.Now()
	if opts.Size <= 0 {
		return nil, Stats{}, ErrBadSize
	}
	if opts.Mode == "" {
		opts.Mode = ModeTint
	}
	if opts.Mode != ModeTint && opts.Mode != ModeDominant {
		return nil, Stats{}, fmt.Errorf("unknown bake mode %q", opts.Mode)
	}
	ss := max(opts.Supersample, 1)
	size := opts.Size * ss

	mesh := s.Mesh()
	uvs, err := mesh.UVChannel(opts.UVChannel)
	if err != nil {
		return nil, Stats{}, err
	}

	queries, texels := rasterize(mesh, uvs, size)
	results, err := s.ResolveBatch(ctx, queries)
	if err != nil {
		return nil, Stats{}, err
	}

	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	stats := Stats{Texels: len(texels)}
	for i, r := range results {
		if !r.HasData() {
			stats.Empty++
			continue
		}
		stats.Resolved++
		var c color.NRGBA
		switch opts.Mode {
		case ModeDominant:
			c = paletteColor(opts.Palette, r.Entries[0].SurfaceType)
		default:
			c = toNRGBA(r.Color())
		}
		img.SetNRGBA(texels[i].x, size-1-texels[i].y, c)
	}

	if ss > 1 {
		img = texture.Resize(img, opts.Size, opts.Size)
	}
	stats.Took = time.Since(start)

	logger.Debug("bake finished",
		zap.Int("size", opts.Size),
		zap.Int("supersample", ss),
		zap.Int("texels", stats.Texels),
		zap.Int("resolved", stats.Resolved),
		zap.Duration("took", stats.Took))
	return img, stats, nil
}

// rasterize emits one query per texel centre covered by a triangle in UV
// space. Each texel is claimed by the first triangle that covers it.
func rasterize(mesh *geometry.Mesh, uvs []math.Vec2, size int) ([]blend.Query, []texel) {
	claimed := make([]bool, size*size)
	var queries []blend.Query
	var texels []texel

	fsize := float64(size)
	for tri := range mesh.Triangles {
		idx, a, b, c, _ := mesh.Corners(tri)
		submesh, ok := mesh.SubmeshOf(tri)
		if !ok {
			continue
		}
		ua, ub, uc := lift(uvs[idx[0]]), lift(uvs[idx[1]]), lift(uvs[idx[2]])

		minX, maxX := texelRange(ua.X, ub.X, uc.X, fsize, size)
		minY, maxY := texelRange(ua.Y, ub.Y, uc.Y, fsize, size)
		for y := minY; y <= maxY; y++ {
			for x := minX; x <= maxX; x++ {
				if claimed[y*size+x] {
					continue
				}
				p := math.Vec3{X: (float64(x) + 0.5) / fsize, Y: (float64(y) + 0.5) / fsize}
				bary, ok := geometry.BarycentricSafe(ua, ub, uc, p)
				if !ok || !bary.Inside(1e-9) {
					continue
				}
				claimed[y*size+x] = true
				queries = append(queries, blend.Query{
					Triangle: tri,
					Point:    geometry.Interpolate(bary, a, b, c),
					Submesh:  submesh,
				})
				texels = append(texels, texel{x, y})
			}
		}
	}
	return queries, texels
}

func lift(uv math.Vec2) math.Vec3 {
	return math.Vec3{X: uv.X, Y: uv.Y}
}

func texelRange(a, b, c, fsize float64, size int) (lo, hi int) {
	minV := gomath.Min(a, gomath.Min(b, c))
	maxV := gomath.Max(a, gomath.Max(b, c))
	lo = int(gomath.Floor(minV*fsize - 0.5))
	hi = int(gomath.Ceil(maxV*fsize - 0.5))
	return max(lo, 0), min(hi, size-1)
}

func toNRGBA(c blend.Color) color.NRGBA {
	return color.NRGBA{R: unit8(c.R), G: unit8(c.G), B: unit8(c.B), A: unit8(c.A)}
}

func unit8(v float64) uint8 {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

// paletteColor returns a stable color for a surface type.
func paletteColor(palette map[int]color.NRGBA, surfaceType int) color.NRGBA {
	if c, ok := palette[surfaceType]; ok {
		return c
	}
	// Golden-angle hue spacing keeps neighbouring ids apart.
	hue := gomath.Mod(float64(surfaceType)*137.508, 360)
	r, g, b := hsv(hue, 0.65, 0.95)
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

func hsv(h, s, v float64) (r, g, b uint8) {
	c := v * s
	x := c * (1 - gomath.Abs(gomath.Mod(h/60, 2)-1))
	m := v - c
	var rf, gf, bf float64
	switch {
	case h < 60:
		rf, gf, bf = c, x, 0
	case h < 120:
		rf, gf, bf = x, c, 0
	case h < 180:
		rf, gf, bf = 0, c, x
	case h < 240:
		rf, gf, bf = 0, x, c
	case h < 300:
		rf, gf, bf = x, 0, c
	default:
		rf, gf, bf = c, 0, x
	}
	return unit8(rf + m), unit8(gf + m), unit8(bf + m)
}

// Encode writes img as lossless WebP.
func Encode(w io.Writer, img image.Image) error {
	if err := nativewebp.Encode(w, img, nil); err != nil {
		return fmt.Errorf("webp encode: %w", err)
	}
	return nil
}

// WriteFile encodes img to path, creating parent directories.
func WriteFile(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
