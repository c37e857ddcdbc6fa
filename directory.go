package zrex

import "sort"

// directory is the ordered collection of live region base addresses spec
// §3/§4.4/§6 calls for ("general-purpose dynamic vector/list container").
// No pack go.mod carries a third-party sorted-container library (see
// DESIGN.md); a plain slice kept sorted by base address with stdlib
// sort.Search is the idiomatic Go realization spec §9 explicitly permits
// ("any ordered map keyed by region base address").
type directory struct {
	regions []*region
}

// indexOf returns the position of the first region whose base is >= base:
// an exact match if one exists, otherwise the insertion point.
func (d *directory) indexOf(base uintptr) int {
	return sort.Search(len(d.regions), func(i int) bool {
		return d.regions[i].base >= base
	})
}

func (d *directory) insert(r *region) {
	i := d.indexOf(r.base)
	d.regions = append(d.regions, nil)
	copy(d.regions[i+1:], d.regions[i:])
	d.regions[i] = r
}

func (d *directory) removeAt(i int) {
	copy(d.regions[i:], d.regions[i+1:])
	d.regions[len(d.regions)-1] = nil
	d.regions = d.regions[:len(d.regions)-1]
}

func (d *directory) remove(r *region) {
	i := d.indexOf(r.base)
	if i < len(d.regions) && d.regions[i] == r {
		d.removeAt(i)
	}
}

func (d *directory) empty() bool { return len(d.regions) == 0 }

// findChunk implements spec §4.4: binary-search for the region nearest the
// midpoint of [lo, hi], then probe outward alternately (one step lower, one
// step higher) until both directions are exhausted, returning the first
// unused, in-range chunk found.
func (d *directory) findChunk(lo, hi uint64) (*region, *trampolineChunk, int, bool) {
	if len(d.regions) == 0 {
		return nil, nil, 0, false
	}

	mid := (lo + hi) / 2
	center := d.indexOf(uintptr(mid))

	down, up := center-1, center
	downAlive, upAlive := down >= 0, up < len(d.regions)

	// Check the region at the insertion point itself first (distance 0),
	// then alternate outward.
	if up < len(d.regions) {
		if c, idx, ok := tryRegion(d.regions[up], lo, hi); ok {
			return d.regions[up], c, idx, true
		}
		up++
		upAlive = up < len(d.regions)
	}

	for downAlive || upAlive {
		if downAlive {
			if c, idx, ok := tryRegion(d.regions[down], lo, hi); ok {
				return d.regions[down], c, idx, true
			}
			down--
			downAlive = down >= 0
		}
		if upAlive {
			if c, idx, ok := tryRegion(d.regions[up], lo, hi); ok {
				return d.regions[up], c, idx, true
			}
			up++
			upAlive = up < len(d.regions)
		}
	}

	return nil, nil, 0, false
}

func tryRegion(r *region, lo, hi uint64) (*trampolineChunk, int, bool) {
	if r.unusedChunkCount() == 0 || !r.withinRange(lo, hi) {
		return nil, 0, false
	}
	return r.findFreeChunk(lo, hi)
}
