package bake

import (
	"bytes"
	"context"
	"image/color"
	"testing"

	"github.com/Faultbox/surfaceblend/internal/texture"
	"github.com/Faultbox/surfaceblend/pkg/blend"
	"github.com/Faultbox/surfaceblend/pkg/geometry"
	"github.com/Faultbox/surfaceblend/pkg/math"
)

func redSource(submeshes ...int) blend.Source {
	return blend.Source{
		Weight:    1,
		Map:       blend.NewSolidTexture(2, 2, blend.Color{R: 1}, blend.WrapClamp),
		UV:        blend.IdentityUV,
		Submeshes: submeshes,
		R:         blend.ChannelBlend{Entries: []blend.ChannelEntry{{SurfaceType: 7, Weight: 1}}},
	}
}

func quad() *geometry.Mesh {
	return &geometry.Mesh{
		Vertices:  []math.Vec3{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}},
		Triangles: []geometry.Triangle{{0, 1, 2}, {0, 2, 3}},
		UVs:       [][]math.Vec2{{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}},
	}
}

func mustSurface(t *testing.T, mesh *geometry.Mesh, src blend.Source) *blend.Surface {
	t.Helper()
	s, err := blend.New(mesh, []blend.Source{src}, blend.WithWorkers(2))
	if err != nil {
		t.Fatalf("blend.New() error = %v", err)
	}
	return s
}

func TestBakeFullCoverage(t *testing.T) {
	s := mustSurface(t, quad(), redSource(0))

	img, stats, err := Bake(context.Background(), s, Options{Size: 8})
	if err != nil {
		t.Fatalf("Bake() error = %v", err)
	}
	if stats.Texels != 64 || stats.Resolved != 64 || stats.Empty != 0 {
		t.Errorf("Stats = %+v, want 64 resolved texels", stats)
	}
	white := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if c := img.NRGBAAt(x, y); c != white {
				t.Fatalf("pixel (%d,%d) = %v, want white", x, y, c)
			}
		}
	}
}

func TestBakeHalfCoverage(t *testing.T) {
	mesh := &geometry.Mesh{
		Vertices:  []math.Vec3{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}},
		Triangles: []geometry.Triangle{{0, 1, 2}},
		UVs:       [][]math.Vec2{{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}},
	}
	s := mustSurface(t, mesh, redSource(0))

	palette := map[int]color.NRGBA{7: {R: 200, A: 255}}
	img, stats, err := Bake(context.Background(), s, Options{Size: 8, Mode: ModeDominant, Palette: palette})
	if err != nil {
		t.Fatalf("Bake() error = %v", err)
	}
	if stats.Texels != 36 {
		t.Errorf("Texels = %d, want 36", stats.Texels)
	}
	// Bottom-left in UV space is the last image row.
	if c := img.NRGBAAt(0, 7); c != palette[7] {
		t.Errorf("bottom-left = %v, want palette color", c)
	}
	if c := img.NRGBAAt(7, 0); c.A != 0 {
		t.Errorf("top-right = %v, want uncovered", c)
	}
}

func TestBakeEmptyTexels(t *testing.T) {
	mesh := quad()
	mesh.Submeshes = []geometry.Submesh{{Start: 0, Count: 1}, {Start: 1, Count: 1}}
	s := mustSurface(t, mesh, redSource(0))

	_, stats, err := Bake(context.Background(), s, Options{Size: 4})
	if err != nil {
		t.Fatalf("Bake() error = %v", err)
	}
	if stats.Empty == 0 || stats.Resolved == 0 || stats.Empty+stats.Resolved != stats.Texels {
		t.Errorf("Stats = %+v, want resolved and empty texels", stats)
	}
}

func TestBakeSupersampleAndEncode(t *testing.T) {
	s := mustSurface(t, quad(), redSource(0))

	img, _, err := Bake(context.Background(), s, Options{Size: 4, Supersample: 2})
	if err != nil {
		t.Fatalf("Bake() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 4 {
		t.Fatalf("bounds = %v, want 4x4", b)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, img); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	decoded, format, err := texture.Decode(&buf)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if format != "webp" {
		t.Errorf("format = %q, want webp", format)
	}
	if decoded.NRGBAAt(1, 1) != img.NRGBAAt(1, 1) {
		t.Errorf("decoded pixel = %v, want %v", decoded.NRGBAAt(1, 1), img.NRGBAAt(1, 1))
	}
}

func TestBakeOptionErrors(t *testing.T) {
	s := mustSurface(t, quad(), redSource(0))
	if _, _, err := Bake(context.Background(), s, Options{Size: 0}); err != ErrBadSize {
		t.Errorf("Bake(size 0) error = %v, want ErrBadSize", err)
	}
	if _, _, err := Bake(context.Background(), s, Options{Size: 4, UVChannel: 3}); err == nil {
		t.Error("Bake(missing uv channel) expected error")
	}
	if _, _, err := Bake(context.Background(), s, Options{Size: 4, Mode: "heat"}); err == nil {
		t.Error("Bake(unknown mode) expected error")
	}
}

func TestPaletteColorStable(t *testing.T) {
	a := paletteColor(nil, 3)
	if a != paletteColor(nil, 3) || a.A != 255 {
		t.Errorf("paletteColor(3) = %v, not stable", a)
	}
	if a == paletteColor(nil, 4) {
		t.Error("adjacent types share a color")
	}
}
