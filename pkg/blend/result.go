package blend

import (
	"fmt"
	"sort"
)

// Status tags a Result. Only StatusResolved carries entries.
type Status uint8

const (
	// StatusResolved means Entries holds a normalized distribution.
	StatusResolved Status = iota
	// StatusNoSource means no blend source is bound to the queried submesh.
	StatusNoSource
	// StatusZeroWeight means every sampled channel weight was zero or
	// below the channel strength threshold.
	StatusZeroWeight
	// StatusBadTriangle means the triangle id is outside the mesh.
	StatusBadTriangle
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusResolved:
		return "Resolved"
	case StatusNoSource:
		return "NoSource"
	case StatusZeroWeight:
		return "ZeroWeight"
	case StatusBadTriangle:
		return "BadTriangle"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// Entry is one surface type's share of a result.
type Entry struct {
	SurfaceType int
	Weight      float64
	Color       Color // Weight-averaged tint of every contribution
}

// Result is the outcome of one query.
type Result struct {
	Status  Status
	Entries []Entry // Descending weight, sums to 1
}

// HasData reports whether the result carries a distribution.
func (r Result) HasData() bool {
	return r.Status == StatusResolved && len(r.Entries) > 0
}

// Weight returns the weight of surfaceType, or 0.
func (r Result) Weight(surfaceType int) float64 {
	for _, e := range r.Entries {
		if e.SurfaceType == surfaceType {
			return e.Weight
		}
	}
	return 0
}

// Map returns the distribution keyed by surface type.
func (r Result) Map() map[int]float64 {
	m := make(map[int]float64, len(r.Entries))
	for _, e := range r.Entries {
		m[e.SurfaceType] = e.Weight
	}
	return m
}

// Color returns the weight-averaged color of all entries.
func (r Result) Color() Color {
	var c Color
	for _, e := range r.Entries {
		c = c.Add(e.Color.Scale(e.Weight))
	}
	return c
}

// Downshift keeps at most maxCount of the strongest entries whose weight is at
// least minWeight, then renormalizes. The strongest entry is always kept so a
// resolved result stays resolved. maxCount <= 0 means no count limit.
func (r Result) Downshift(maxCount int, minWeight float64) Result {
	if !r.HasData() {
		return r
	}

	kept := make([]Entry, 0, len(r.Entries))
	var total float64
	for i, e := range r.Entries {
		if maxCount > 0 && i >= maxCount {
			break
		}
		if i > 0 && e.Weight < minWeight {
			break
		}
		kept = append(kept, e)
		total += e.Weight
	}
	for i := range kept {
		kept[i].Weight /= total
	}
	return Result{Status: StatusResolved, Entries: kept}
}

// Accumulator sums weighted surface type contributions. Contributions to the
// same surface type merge; first-contribution order is kept for tie-breaks.
// The zero value is ready to use.
type Accumulator struct {
	entries []Entry
	index   map[int]int
	total   float64
}

// Reset clears the accumulator, keeping its buffers.
func (a *Accumulator) Reset() {
	a.entries = a.entries[:0]
	clear(a.index)
	a.total = 0
}

// Add contributes weight to surfaceType with color c.
func (a *Accumulator) Add(surfaceType int, weight float64, c Color) {
	if a.index == nil {
		a.index = make(map[int]int)
	}
	a.total += weight

	if i, ok := a.index[surfaceType]; ok {
		e := &a.entries[i]
		sum := e.Weight + weight
		if sum > 0 {
			e.Color = e.Color.Scale(e.Weight / sum).Add(c.Scale(weight / sum))
		}
		e.Weight = sum
		return
	}
	a.index[surfaceType] = len(a.entries)
	a.entries = append(a.entries, Entry{SurfaceType: surfaceType, Weight: weight, Color: c})
}

// Total returns the running sum of added weights.
func (a *Accumulator) Total() float64 {
	return a.total
}

// Len returns the number of distinct surface types.
func (a *Accumulator) Len() int {
	return len(a.entries)
}

// Result normalizes the accumulated weights into a fresh Result. A zero total
// yields StatusZeroWeight.
func (a *Accumulator) Result() Result {
	if !(a.total > 0) || len(a.entries) == 0 {
		return Result{Status: StatusZeroWeight}
	}

	entries := make([]Entry, len(a.entries))
	copy(entries, a.entries)
	for i := range entries {
		entries[i].Weight /= a.total
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Weight > entries[j].Weight
	})
	return Result{Status: StatusResolved, Entries: entries}
}
