package geometry

import (
	gomath "math"

	"github.com/Faultbox/surfaceblend/pkg/math"
)

// rayEpsilon rejects rays parallel to a triangle's plane.
const rayEpsilon = 1e-12

// Ray represents a ray in mesh space with origin and direction.
type Ray struct {
	Origin    math.Vec3
	Direction math.Vec3 // Normalized direction
}

// NewRay normalizes dir and returns the ray.
func NewRay(origin, dir math.Vec3) Ray {
	return Ray{Origin: origin, Direction: dir.Normalize()}
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float64) math.Vec3 {
	return r.Origin.Add(r.Direction.Scale(t))
}

// Transform maps the ray through m and renormalizes the direction.
func (r Ray) Transform(m math.Mat4) Ray {
	return NewRay(m.TransformPoint(r.Origin), m.TransformDirection(r.Direction))
}

// AABB represents an axis-aligned bounding box.
type AABB struct {
	Min math.Vec3
	Max math.Vec3
}

func axis(v math.Vec3, i int) float64 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// IntersectAABB tests ray intersection with an axis-aligned bounding box.
// Returns the distance to intersection (t) and whether intersection occurred.
// If the ray starts inside the box, returns the exit distance.
func (r Ray) IntersectAABB(box AABB) (t float64, hit bool) {
	tmin := -gomath.MaxFloat64
	tmax := gomath.MaxFloat64

	for i := 0; i < 3; i++ {
		o, d := axis(r.Origin, i), axis(r.Direction, i)
		lo, hi := axis(box.Min, i), axis(box.Max, i)
		if d == 0 {
			if o < lo || o > hi {
				return 0, false
			}
			continue
		}
		t1 := (lo - o) / d
		t2 := (hi - o) / d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = gomath.Max(tmin, t1)
		tmax = gomath.Min(tmax, t2)
	}

	if tmax < tmin || tmax < 0 {
		return 0, false
	}
	if tmin < 0 {
		return tmax, true
	}
	return tmin, true
}

// IntersectTriangle intersects the ray with triangle (a, b, c), both faces.
// Returns the distance along the ray and the barycentric weights of the hit.
func (r Ray) IntersectTriangle(a, b, c math.Vec3) (t float64, bary Bary, hit bool) {
	e1 := b.Sub(a)
	e2 := c.Sub(a)
	pv := r.Direction.Cross(e2)
	det := e1.Dot(pv)
	if gomath.Abs(det) < rayEpsilon {
		return 0, Bary{}, false
	}
	inv := 1 / det

	tv := r.Origin.Sub(a)
	v := tv.Dot(pv) * inv
	if v < 0 || v > 1 {
		return 0, Bary{}, false
	}
	qv := tv.Cross(e1)
	w := r.Direction.Dot(qv) * inv
	if w < 0 || v+w > 1 {
		return 0, Bary{}, false
	}
	t = e2.Dot(qv) * inv
	if t < 0 {
		return 0, Bary{}, false
	}
	return t, Bary{U: 1 - v - w, V: v, W: w}, true
}

// Hit describes the nearest triangle a ray struck.
type Hit struct {
	Triangle int
	Submesh  int
	Point    math.Vec3
	Distance float64
	Bary     Bary
}

// Raycast returns the nearest triangle hit within maxDistance.
// A maxDistance <= 0 means unbounded.
func (m *Mesh) Raycast(r Ray, maxDistance float64) (Hit, bool) {
	if maxDistance <= 0 {
		maxDistance = gomath.MaxFloat64
	}
	if t, ok := r.IntersectAABB(m.Bounds()); !ok || t > maxDistance {
		return Hit{}, false
	}

	best := Hit{Triangle: -1, Distance: maxDistance}
	for i := range m.Triangles {
		_, a, b, c, _ := m.Corners(i)
		t, bary, ok := r.IntersectTriangle(a, b, c)
		if !ok || t > best.Distance || (best.Triangle >= 0 && t == best.Distance) {
			continue
		}
		best.Triangle = i
		best.Distance = t
		best.Bary = bary
	}
	if best.Triangle < 0 {
		return Hit{}, false
	}

	best.Point = r.At(best.Distance)
	best.Submesh, _ = m.SubmeshOf(best.Triangle)
	return best, true
}
