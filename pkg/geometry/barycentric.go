// Package geometry resolves points on triangle meshes: barycentric coordinates,
// per-vertex attribute interpolation, mesh validation and ray picking.
package geometry

import "github.com/Faultbox/surfaceblend/pkg/math"

// DegenerateEpsilon is the relative area threshold below which BarycentricSafe
// treats a triangle as degenerate.
const DegenerateEpsilon = 1e-12

// Bary holds barycentric weights for the three corners of a triangle.
// A point is reconstructed as U*a + V*b + W*c.
type Bary struct {
	U, V, W float64
}

// Vector is any per-vertex attribute that can be linearly combined.
type Vector[T any] interface {
	Add(T) T
	Scale(float64) T
}

// Barycentric computes the barycentric coordinates of p relative to the
// triangle (a, b, c) using dot products of the edge vectors. p is expected to lie
// in the triangle's plane; off-plane points are projected implicitly.
//
// Degenerate triangles are not special-cased: the denominator goes to zero and
// the weights become Inf or NaN. Use BarycentricSafe for a guarded variant.
func Barycentric(a, b, c, p math.Vec3) Bary {
	v0 := b.Sub(a)
	v1 := c.Sub(a)
	v2 := p.Sub(a)

	d00 := v0.Dot(v0)
	d01 := v0.Dot(v1)
	d11 := v1.Dot(v1)
	d20 := v2.Dot(v0)
	d21 := v2.Dot(v1)

	denom := d00*d11 - d01*d01
	v := (d11*d20 - d01*d21) / denom
	w := (d00*d21 - d01*d20) / denom
	return Bary{U: 1 - v - w, V: v, W: w}
}

// BarycentricSafe behaves like Barycentric but falls back to nearest-vertex
// weighting when the triangle has (near) zero area. ok is false when the
// fallback was used.
func BarycentricSafe(a, b, c, p math.Vec3) (bary Bary, ok bool) {
	v0 := b.Sub(a)
	v1 := c.Sub(a)
	d00 := v0.Dot(v0)
	d01 := v0.Dot(v1)
	d11 := v1.Dot(v1)

	denom := d00*d11 - d01*d01
	if scale := d00 * d11; scale == 0 || denom <= DegenerateEpsilon*scale {
		return nearestVertex(a, b, c, p), false
	}
	return Barycentric(a, b, c, p), true
}

func nearestVertex(a, b, c, p math.Vec3) Bary {
	da := p.Sub(a).LengthSq()
	db := p.Sub(b).LengthSq()
	dc := p.Sub(c).LengthSq()
	switch {
	case da <= db && da <= dc:
		return Bary{U: 1}
	case db <= dc:
		return Bary{V: 1}
	default:
		return Bary{W: 1}
	}
}

// Inside reports whether all three weights are within [-eps, 1+eps].
func (b Bary) Inside(eps float64) bool {
	return b.U >= -eps && b.V >= -eps && b.W >= -eps &&
		b.U <= 1+eps && b.V <= 1+eps && b.W <= 1+eps
}

// Interpolate returns U*a + V*b + W*c for any vector-valued attribute.
func Interpolate[T Vector[T]](bary Bary, a, b, c T) T {
	return a.Scale(bary.U).Add(b.Scale(bary.V)).Add(c.Scale(bary.W))
}
