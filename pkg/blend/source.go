package blend

import (
	"slices"

	"github.com/Faultbox/surfaceblend/pkg/geometry"
	"github.com/Faultbox/surfaceblend/pkg/math"
)

// Channel indices in sampling order.
const (
	ChannelR = iota
	ChannelG
	ChannelB
	ChannelA
	channelCount
)

// UVTransform scales then offsets interpolated UVs: uv*Scale + Offset.
type UVTransform struct {
	Scale  math.Vec2
	Offset math.Vec2
}

// IdentityUV leaves coordinates unchanged.
var IdentityUV = UVTransform{Scale: math.Vec2{X: 1, Y: 1}}

// Apply transforms uv.
func (t UVTransform) Apply(uv math.Vec2) math.Vec2 {
	return uv.Mul(t.Scale).Add(t.Offset)
}

// Source is one blend map: an image whose four channels each select a
// ChannelBlend, active only on the listed submeshes.
type Source struct {
	Weight    float64
	Map       *Texture
	UVChannel int
	UV        UVTransform // Zero Scale collapses every UV onto Offset
	Submeshes []int

	// Channel blends, sampled in R, G, B, A order.
	R, G, B, A ChannelBlend
}

// TryActivate reports whether the source is bound to submesh.
func (s *Source) TryActivate(submesh int) bool {
	return slices.Contains(s.Submeshes, submesh)
}

// SampleUV interpolates the triangle's corner UVs (already selected for this
// source's UV channel) and applies the source transform.
func (s *Source) SampleUV(corners [3]math.Vec2, bary geometry.Bary) math.Vec2 {
	uv := geometry.Interpolate(bary, corners[0], corners[1], corners[2])
	return s.UV.Apply(uv)
}

// Channel returns the blend for channel i (ChannelR..ChannelA).
func (s *Source) Channel(i int) *ChannelBlend {
	switch i {
	case ChannelR:
		return &s.R
	case ChannelG:
		return &s.G
	case ChannelB:
		return &s.B
	default:
		return &s.A
	}
}

func (s Source) normalized() Source {
	out := s
	out.Submeshes = slices.Clone(s.Submeshes)
	out.R = s.R.Normalized()
	out.G = s.G.Normalized()
	out.B = s.B.Normalized()
	out.A = s.A.Normalized()
	return out
}
