package blend

import (
	"errors"
	"image"
	"image/color"
	gomath "math"
	"testing"

	"github.com/Faultbox/surfaceblend/pkg/math"
)

func colorNear(a, b Color, eps float64) bool {
	return near(a.R, b.R, eps) && near(a.G, b.G, eps) && near(a.B, b.B, eps) && near(a.A, b.A, eps)
}

// redGreen is 2x1: red on the left, green on the right.
func redGreen(wrap WrapMode) *Texture {
	tex := NewSolidTexture(2, 1, Color{R: 1, A: 1}, wrap)
	tex.Set(1, 0, Color{G: 1, A: 1})
	return tex
}

func TestSampleBilinearWrap(t *testing.T) {
	red := Color{R: 1, A: 1}
	green := Color{G: 1, A: 1}

	tests := []struct {
		name string
		wrap WrapMode
		u    float64
		want Color
	}{
		{"clamp left edge", WrapClamp, 0, red},
		{"clamp right edge", WrapClamp, 1, green},
		{"clamp beyond", WrapClamp, 1.25, green},
		{"clamp negative", WrapClamp, -3, red},
		{"repeat beyond", WrapRepeat, 1.25, red},
		{"repeat negative", WrapRepeat, -0.25, green},
		{"texel centre", WrapClamp, 0.25, red},
		{"midpoint", WrapClamp, 0.5, Color{R: 0.5, G: 0.5, A: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SampleBilinear(redGreen(tt.wrap), math.Vec2{X: tt.u, Y: 0.5}, tt.wrap)
			if !colorNear(got, tt.want, 1e-6) {
				t.Errorf("SampleBilinear(u=%v) = %+v, want %+v", tt.u, got, tt.want)
			}
		})
	}
}

func TestSampleBilinearRepeatWrapsBetweenEdges(t *testing.T) {
	// At u=0 the left neighbour wraps to the right column.
	got := SampleBilinear(redGreen(WrapRepeat), math.Vec2{X: 0, Y: 0.5}, WrapRepeat)
	want := Color{R: 0.5, G: 0.5, A: 1}
	if !colorNear(got, want, 1e-6) {
		t.Errorf("SampleBilinear() = %+v, want %+v", got, want)
	}
}

func TestSampleBilinearRepeatMatchesPeriod(t *testing.T) {
	tex := NewSolidTexture(4, 4, Color{}, WrapRepeat)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			tex.Set(x, y, Color{R: float64(x) / 4, G: float64(y) / 4, A: 1})
		}
	}
	a := tex.Sample(math.Vec2{X: 1.5, Y: -0.5})
	b := tex.Sample(math.Vec2{X: 0.5, Y: 0.5})
	if !colorNear(a, b, 1e-6) {
		t.Errorf("Sample(1.5,-0.5) = %+v, Sample(0.5,0.5) = %+v", a, b)
	}

	tex.Wrap = WrapClamp
	edge := tex.At(3, 0)
	if got := tex.Sample(math.Vec2{X: 7, Y: -2}); !colorNear(got, edge, 1e-6) {
		t.Errorf("clamped Sample = %+v, want edge texel %+v", got, edge)
	}
}

func TestSampleBilinearUniformIsExact(t *testing.T) {
	c := Color{R: 0.25, G: 0.5, B: 0.75, A: 1}
	tex := NewSolidTexture(3, 5, c, WrapRepeat)
	for _, uv := range []math.Vec2{{X: 0.13, Y: 0.77}, {X: -4.2, Y: 9.9}, {X: 0.5, Y: 0.5}} {
		if got := tex.Sample(uv); got != c {
			t.Errorf("Sample(%v) = %+v, want %+v", uv, got, c)
		}
	}
}

func TestSampleBilinearNonFinite(t *testing.T) {
	tex := NewSolidTexture(2, 2, White, WrapRepeat)
	for _, uv := range []math.Vec2{{X: gomath.NaN()}, {Y: gomath.Inf(1)}, {X: 1e300}} {
		if got := tex.Sample(uv); got != (Color{}) {
			t.Errorf("Sample(%v) = %+v, want zero", uv, got)
		}
	}
	if got := SampleBilinear(nil, math.Vec2{}, WrapClamp); got != (Color{}) {
		t.Errorf("SampleBilinear(nil) = %+v, want zero", got)
	}
}

func TestNewTextureBottomUp(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255}) // top row
	img.SetNRGBA(0, 1, color.NRGBA{G: 255, A: 255}) // bottom row

	tex := NewTexture(img, WrapClamp)
	if w, h := tex.Size(); w != 1 || h != 2 {
		t.Fatalf("Size() = %d,%d, want 1,2", w, h)
	}
	if got := tex.Sample(math.Vec2{X: 0.5, Y: 0.25}); !colorNear(got, Color{G: 1, A: 1}, 1e-6) {
		t.Errorf("bottom sample = %+v, want green", got)
	}
	if got := tex.Sample(math.Vec2{X: 0.5, Y: 0.75}); !colorNear(got, Color{R: 1, A: 1}, 1e-6) {
		t.Errorf("top sample = %+v, want red", got)
	}
}

func TestNewTextureConvertsOtherModels(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 1, 1))
	img.SetGray(0, 0, color.Gray{Y: 255})

	tex := NewTexture(img, WrapClamp)
	if got := tex.At(0, 0); !colorNear(got, White, 1e-6) {
		t.Errorf("At(0,0) = %+v, want white", got)
	}
}

func TestParseWrapMode(t *testing.T) {
	tests := []struct {
		in      string
		want    WrapMode
		wantErr bool
	}{
		{"", WrapClamp, false},
		{"clamp", WrapClamp, false},
		{"Repeat", WrapRepeat, false},
		{"mirror", WrapClamp, true},
	}
	for _, tt := range tests {
		got, err := ParseWrapMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseWrapMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrUnsupportedWrap) {
			t.Errorf("ParseWrapMode(%q) error = %v, want ErrUnsupportedWrap", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseWrapMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
