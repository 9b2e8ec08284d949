package aranges

import (
	"sort"

	"github.com/go-delve/dwarfscan/pkg/dwarf"
)

// Index maps addresses to compilation units.
type Index struct {
	ranges []unitRange
	// maxEnd[i] is the largest end of ranges[:i+1]
	maxEnd []uint64
	units  map[uint64][][2]uint64
}

type unitRange struct {
	start, end uint64
	unit       uint64
}

// NewIndex reads every set of sec and indexes their ranges.
func NewIndex(sec *dwarf.Section) (*Index, error) {
	entries, err := ReadAll(sec)
	if err != nil {
		return nil, err
	}
	return BuildIndex(entries), nil
}

// BuildIndex indexes entries. The ranges of each unit are normalized:
// empty ranges are dropped and overlapping ones are fused.
func BuildIndex(entries []Entry) *Index {
	idx := &Index{units: make(map[uint64][][2]uint64)}
	for _, e := range entries {
		idx.units[e.UnitOffset] = append(idx.units[e.UnitOffset], [2]uint64{e.Address, e.End()})
	}
	for unit, rngs := range idx.units {
		rngs = normalizeRanges(rngs)
		idx.units[unit] = rngs
		for _, rng := range rngs {
			idx.ranges = append(idx.ranges, unitRange{start: rng[0], end: rng[1], unit: unit})
		}
	}
	sort.Slice(idx.ranges, func(i, j int) bool {
		if idx.ranges[i].start == idx.ranges[j].start {
			return idx.ranges[i].unit < idx.ranges[j].unit
		}
		return idx.ranges[i].start < idx.ranges[j].start
	})
	idx.maxEnd = make([]uint64, len(idx.ranges))
	var max uint64
	for i, rng := range idx.ranges {
		if rng.end > max {
			max = rng.end
		}
		idx.maxEnd[i] = max
	}
	return idx
}

// Lookup returns the offset of the unit whose ranges contain pc.
func (idx *Index) Lookup(pc uint64) (uint64, bool) {
	i := sort.Search(len(idx.ranges), func(i int) bool {
		return idx.ranges[i].start > pc
	})
	// ranges of different units may overlap, look back for one that still
	// contains pc until no earlier range reaches it
	for i--; i >= 0 && pc < idx.maxEnd[i]; i-- {
		if rng := idx.ranges[i]; pc < rng.end {
			return rng.unit, true
		}
	}
	return 0, false
}

// Ranges returns the normalized ranges of unit.
func (idx *Index) Ranges(unit uint64) [][2]uint64 {
	return idx.units[unit]
}

// Units returns the offsets of all indexed units, sorted.
func (idx *Index) Units() []uint64 {
	r := make([]uint64, 0, len(idx.units))
	for unit := range idx.units {
		r = append(r, unit)
	}
	sort.Slice(r, func(i, j int) bool { return r[i] < r[j] })
	return r
}

func normalizeRanges(rngs [][2]uint64) [][2]uint64 {
	const (
		start = 0
		end   = 1
	)

	if len(rngs) == 0 {
		return rngs
	}

	sort.Slice(rngs, func(i, j int) bool {
		return rngs[i][start] < rngs[j][start]
	})

	// eliminate invalid entries
	out := rngs[:0]
	for i := range rngs {
		if rngs[i][start] < rngs[i][end] {
			out = append(out, rngs[i])
		}
	}
	rngs = out
	if len(rngs) == 0 {
		return nil
	}

	// fuse overlapping entries
	out = rngs[:1]
	for i := 1; i < len(rngs); i++ {
		cur := rngs[i]
		if cur[start] <= out[len(out)-1][end] {
			if cur[end] > out[len(out)-1][end] {
				out[len(out)-1][end] = cur[end]
			}
		} else {
			out = append(out, cur)
		}
	}
	return out
}
