package blend

import (
	"sort"

	"github.com/Faultbox/surfaceblend/pkg/math"
)

// ChannelEntry is one surface type in a channel's mixture.
type ChannelEntry struct {
	SurfaceType int
	Weight      float64
	Color       *Color // Nil means white
}

// ChannelBlend maps one color channel of a blend map to a weighted list of
// surface types, a tint and an optional color map sampled at the same UV.
type ChannelBlend struct {
	Entries  []ChannelEntry
	Tint     *Color   // Nil means white
	ColorMap *Texture // Optional; absent samples as white
}

// Normalized returns a copy whose entries sum to 1 and are sorted by
// descending weight (ties keep declaration order). Entries with zero weight
// are dropped; a list with no positive weight normalizes to empty. Nil
// colors are filled in with white, and every color in the copy is its own.
func (b ChannelBlend) Normalized() ChannelBlend {
	out := ChannelBlend{Tint: colorOrWhite(b.Tint), ColorMap: b.ColorMap}

	var total float64
	for _, e := range b.Entries {
		if e.Weight > 0 {
			total += e.Weight
		}
	}
	if total <= 0 {
		return out
	}

	out.Entries = make([]ChannelEntry, 0, len(b.Entries))
	for _, e := range b.Entries {
		if e.Weight <= 0 {
			continue
		}
		out.Entries = append(out.Entries, ChannelEntry{
			SurfaceType: e.SurfaceType,
			Weight:      e.Weight / total,
			Color:       colorOrWhite(e.Color),
		})
	}
	sort.SliceStable(out.Entries, func(i, j int) bool {
		return out.Entries[i].Weight > out.Entries[j].Weight
	})
	return out
}

// Total returns the sum of entry weights.
func (b ChannelBlend) Total() float64 {
	var total float64
	for _, e := range b.Entries {
		total += e.Weight
	}
	return total
}

func (b *ChannelBlend) sampleTint(uv math.Vec2) Color {
	if b.ColorMap == nil {
		return White
	}
	return b.ColorMap.Sample(uv)
}
