package blend

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	gomath "math"
	"strings"

	"github.com/Faultbox/surfaceblend/pkg/math"
)

// ErrUnsupportedWrap is returned for wrap modes other than clamp and repeat.
var ErrUnsupportedWrap = errors.New("unsupported wrap mode")

// WrapMode decides how texel indices outside the image are resolved.
// Mirror wrapping is not supported.
type WrapMode uint8

const (
	// WrapClamp replicates the edge texels.
	WrapClamp WrapMode = iota
	// WrapRepeat tiles the image (modulo wrap).
	WrapRepeat
)

// String returns the wrap mode name.
func (w WrapMode) String() string {
	switch w {
	case WrapClamp:
		return "clamp"
	case WrapRepeat:
		return "repeat"
	default:
		return fmt.Sprintf("WrapMode(%d)", w)
	}
}

// ParseWrapMode parses "clamp" or "repeat". Empty means clamp.
func ParseWrapMode(s string) (WrapMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "clamp":
		return WrapClamp, nil
	case "repeat":
		return WrapRepeat, nil
	default:
		return WrapClamp, fmt.Errorf("%q: %w", s, ErrUnsupportedWrap)
	}
}

func (w WrapMode) resolve(i, n int) int {
	if w == WrapRepeat {
		i %= n
		if i < 0 {
			i += n
		}
		return i
	}
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// Texture is a read-only RGBA pixel grid addressed by UV.
// UV (0,0) is the bottom-left texel, matching mesh authoring tools; rows are
// stored bottom-up.
type Texture struct {
	width, height int
	pix           []float32 // 4 floats per texel, bottom row first
	Wrap          WrapMode
}

// NewTexture copies img into a sampling texture. img is read as straight
// (non-premultiplied) color.
func NewTexture(img image.Image, wrap WrapMode) *Texture {
	b := img.Bounds()
	t := &Texture{
		width:  b.Dx(),
		height: b.Dy(),
		pix:    make([]float32, 4*b.Dx()*b.Dy()),
		Wrap:   wrap,
	}

	nrgba, fast := img.(*image.NRGBA)
	for y := 0; y < t.height; y++ {
		row := t.height - 1 - y
		for x := 0; x < t.width; x++ {
			var c color.NRGBA
			if fast {
				c = nrgba.NRGBAAt(b.Min.X+x, b.Min.Y+y)
			} else {
				c = color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			}
			i := 4 * (row*t.width + x)
			t.pix[i] = float32(c.R) / 255
			t.pix[i+1] = float32(c.G) / 255
			t.pix[i+2] = float32(c.B) / 255
			t.pix[i+3] = float32(c.A) / 255
		}
	}
	return t
}

// NewSolidTexture returns a w x h texture filled with c.
func NewSolidTexture(w, h int, c Color, wrap WrapMode) *Texture {
	t := &Texture{width: w, height: h, pix: make([]float32, 4*w*h), Wrap: wrap}
	for i := 0; i < w*h; i++ {
		t.pix[4*i] = float32(c.R)
		t.pix[4*i+1] = float32(c.G)
		t.pix[4*i+2] = float32(c.B)
		t.pix[4*i+3] = float32(c.A)
	}
	return t
}

// Size returns the texture dimensions in texels.
func (t *Texture) Size() (w, h int) {
	return t.width, t.height
}

// At returns texel (x, y), y counted from the bottom row.
// Indices are resolved with the texture's wrap mode.
func (t *Texture) At(x, y int) Color {
	x = t.Wrap.resolve(x, t.width)
	y = t.Wrap.resolve(y, t.height)
	i := 4 * (y*t.width + x)
	return Color{float64(t.pix[i]), float64(t.pix[i+1]), float64(t.pix[i+2]), float64(t.pix[i+3])}
}

// Set writes texel (x, y). Only valid before the texture is shared.
func (t *Texture) Set(x, y int, c Color) {
	i := 4 * (y*t.width + x)
	t.pix[i] = float32(c.R)
	t.pix[i+1] = float32(c.G)
	t.pix[i+2] = float32(c.B)
	t.pix[i+3] = float32(c.A)
}

// Sample filters the texture bilinearly at uv using its own wrap mode.
func (t *Texture) Sample(uv math.Vec2) Color {
	return SampleBilinear(t, uv, t.Wrap)
}

// SampleBilinear filters the four texels around uv. Texel centres sit at
// half-texel offsets; neighbour indices are resolved by wrap before filtering,
// so reads never leave the image. Non-finite coordinates sample as transparent
// black.
func SampleBilinear(t *Texture, uv math.Vec2, wrap WrapMode) Color {
	if t == nil || t.width == 0 || t.height == 0 {
		return Color{}
	}
	if !finite(uv.X) || !finite(uv.Y) {
		return Color{}
	}

	fx := uv.X*float64(t.width) - 0.5
	fy := uv.Y*float64(t.height) - 0.5
	x0f := gomath.Floor(fx)
	y0f := gomath.Floor(fy)
	tx := fx - x0f
	ty := fy - y0f

	x0 := wrap.resolve(int(x0f), t.width)
	x1 := wrap.resolve(int(x0f)+1, t.width)
	y0 := wrap.resolve(int(y0f), t.height)
	y1 := wrap.resolve(int(y0f)+1, t.height)

	var out [4]float64
	for c := 0; c < 4; c++ {
		v00 := float64(t.pix[4*(y0*t.width+x0)+c])
		v10 := float64(t.pix[4*(y0*t.width+x1)+c])
		v01 := float64(t.pix[4*(y1*t.width+x0)+c])
		v11 := float64(t.pix[4*(y1*t.width+x1)+c])
		out[c] = lerp(lerp(v00, v10, tx), lerp(v01, v11, tx), ty)
	}
	return Color{out[0], out[1], out[2], out[3]}
}

// lerp is exact when a == b.
func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func finite(f float64) bool {
	return !gomath.IsNaN(f) && !gomath.IsInf(f, 0) && gomath.Abs(f) < 1<<40
}
