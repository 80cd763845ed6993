// Package blend resolves the weighted mixture of surface types at a point on a
// textured mesh. Blend sources bind image channels to lists of surface types;
// a Surface samples every source bound to the queried submesh and folds the
// channel weights into one normalized Result.
//
// A Surface is immutable once New returns, apart from the worker pool that
// ResolveBatch starts lazily, and may be shared by any number of goroutines.
// Per-query state lives in a Scratch, either pooled internally (Resolve) or
// owned by the caller (ResolveWith).
package blend

// Color is a straight-alpha RGBA color with components in [0, 1].
type Color struct {
	R, G, B, A float64
}

// White is the neutral tint.
var White = Color{1, 1, 1, 1}

// Mul returns the component-wise product.
func (c Color) Mul(other Color) Color {
	return Color{c.R * other.R, c.G * other.G, c.B * other.B, c.A * other.A}
}

// Add returns c + other.
func (c Color) Add(other Color) Color {
	return Color{c.R + other.R, c.G + other.G, c.B + other.B, c.A + other.A}
}

// Scale returns c * s.
func (c Color) Scale(s float64) Color {
	return Color{c.R * s, c.G * s, c.B * s, c.A * s}
}

// Sum returns R+G+B+A.
func (c Color) Sum() float64 {
	return c.R + c.G + c.B + c.A
}

// Channel returns component i in R, G, B, A order.
func (c Color) Channel(i int) float64 {
	switch i {
	case 0:
		return c.R
	case 1:
		return c.G
	case 2:
		return c.B
	default:
		return c.A
	}
}

// Ptr returns a pointer to a copy of c, for ChannelBlend.Tint and
// ChannelEntry.Color.
func (c Color) Ptr() *Color {
	return &c
}

// colorOrWhite copies c, or White when c is nil.
func colorOrWhite(c *Color) *Color {
	if c == nil {
		return White.Ptr()
	}
	return c.Ptr()
}

func valueOrWhite(c *Color) Color {
	if c == nil {
		return White
	}
	return *c
}
