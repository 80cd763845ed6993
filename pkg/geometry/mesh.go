package geometry

import (
	"errors"
	"fmt"

	"github.com/Faultbox/surfaceblend/pkg/math"
)

// MaxUVChannels is the number of UV sets a mesh may carry.
const MaxUVChannels = 8

// Mesh validation errors.
var (
	ErrEmptyMesh     = errors.New("mesh has no vertices")
	ErrIndexRange    = errors.New("triangle index out of range")
	ErrUVChannel     = errors.New("uv channel not present")
	ErrUVCount       = errors.New("uv count does not match vertex count")
	ErrSubmeshRange  = errors.New("submesh out of range")
	ErrTooManyUVSets = errors.New("too many uv channels")
)

// Triangle holds three indices into Mesh.Vertices.
type Triangle [3]int

// Submesh is a contiguous range of triangles sharing one material slot.
type Submesh struct {
	Start int // First triangle index
	Count int // Number of triangles
}

// Mesh is read-only triangle geometry in a single local coordinate space.
type Mesh struct {
	Vertices  []math.Vec3
	Triangles []Triangle
	UVs       [][]math.Vec2 // One slice per UV channel, each len(Vertices)
	Submeshes []Submesh     // Empty means one submesh covering every triangle
}

// Validate checks index ranges, UV set lengths and submesh ranges.
func (m *Mesh) Validate() error {
	if len(m.Vertices) == 0 {
		return ErrEmptyMesh
	}
	for i, tri := range m.Triangles {
		for _, idx := range tri {
			if idx < 0 || idx >= len(m.Vertices) {
				return fmt.Errorf("triangle %d: index %d of %d vertices: %w", i, idx, len(m.Vertices), ErrIndexRange)
			}
		}
	}
	if len(m.UVs) > MaxUVChannels {
		return fmt.Errorf("%d channels, max %d: %w", len(m.UVs), MaxUVChannels, ErrTooManyUVSets)
	}
	for ch, uvs := range m.UVs {
		if len(uvs) != 0 && len(uvs) != len(m.Vertices) {
			return fmt.Errorf("uv channel %d has %d entries for %d vertices: %w", ch, len(uvs), len(m.Vertices), ErrUVCount)
		}
	}
	for i, sm := range m.Submeshes {
		if sm.Start < 0 || sm.Count < 0 || sm.Start+sm.Count > len(m.Triangles) {
			return fmt.Errorf("submesh %d covers [%d,%d) of %d triangles: %w", i, sm.Start, sm.Start+sm.Count, len(m.Triangles), ErrSubmeshRange)
		}
	}
	return nil
}

// UVChannel returns the UV set for channel ch.
func (m *Mesh) UVChannel(ch int) ([]math.Vec2, error) {
	if ch < 0 || ch >= len(m.UVs) || len(m.UVs[ch]) == 0 {
		return nil, fmt.Errorf("channel %d: %w", ch, ErrUVChannel)
	}
	uvs := m.UVs[ch]
	if len(uvs) != len(m.Vertices) {
		return nil, fmt.Errorf("channel %d has %d entries for %d vertices: %w", ch, len(uvs), len(m.Vertices), ErrUVCount)
	}
	return uvs, nil
}

// Corners returns the vertex indices and positions of triangle tri.
func (m *Mesh) Corners(tri int) (idx Triangle, a, b, c math.Vec3, ok bool) {
	if tri < 0 || tri >= len(m.Triangles) {
		return Triangle{}, math.Vec3{}, math.Vec3{}, math.Vec3{}, false
	}
	idx = m.Triangles[tri]
	return idx, m.Vertices[idx[0]], m.Vertices[idx[1]], m.Vertices[idx[2]], true
}

// SubmeshCount returns the number of material slots.
func (m *Mesh) SubmeshCount() int {
	if len(m.Submeshes) == 0 {
		return 1
	}
	return len(m.Submeshes)
}

// SubmeshOf returns the first submesh whose range contains tri.
func (m *Mesh) SubmeshOf(tri int) (int, bool) {
	if tri < 0 || tri >= len(m.Triangles) {
		return 0, false
	}
	if len(m.Submeshes) == 0 {
		return 0, true
	}
	for i, sm := range m.Submeshes {
		if tri >= sm.Start && tri < sm.Start+sm.Count {
			return i, true
		}
	}
	return 0, false
}

// Bounds returns the axis-aligned box around all vertices.
func (m *Mesh) Bounds() AABB {
	if len(m.Vertices) == 0 {
		return AABB{}
	}
	box := AABB{Min: m.Vertices[0], Max: m.Vertices[0]}
	for _, v := range m.Vertices[1:] {
		box.Min = box.Min.Min(v)
		box.Max = box.Max.Max(v)
	}
	return box
}
