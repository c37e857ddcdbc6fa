package zrex

// region is the engine's handle onto a live trampoline region: a
// page-aligned, host-allocated executable block, viewed as N chunk slots
// with slot 0 overlaid by the region header (spec §3).
type region struct {
	base       uintptr
	chunkCount int // N
}

func (r *region) header() *regionHeader { return regionHeaderAt(r.base) }

// chunk returns the chunk at slot index (1..chunkCount-1). Slot 0 is the
// header and is never handed out.
func (r *region) chunk(index int) *trampolineChunk {
	return chunkAt(r.base, index)
}

func (r *region) unusedChunkCount() int { return int(r.header().numberOfUnusedChunks) }

func (r *region) size() uintptr { return uintptr(r.chunkCount) * sizeofChunk }

// inRange reports whether addr lies within ±rangeOfRelativeJump of target,
// the reach of a 32-bit-displacement relative jump/call (spec §3 invariant,
// §4.4, §4.5).
func inRange(addr, target uint64) bool {
	var d uint64
	if addr >= target {
		d = addr - target
	} else {
		d = target - addr
	}
	return d <= uint64(rangeOfRelativeJump)
}

// withinRange reports whether this region's base satisfies the ±2GiB
// constraint against both lo and hi (spec §4.4 candidate-region test).
func (r *region) withinRange(lo, hi uint64) bool {
	return inRange(uint64(r.base), lo) && inRange(uint64(r.base), hi)
}

// findFreeChunk linearly scans slots 1..chunkCount-1 for the first unused
// chunk whose own code-buffer address (not just the region's base)
// satisfies the ±2GiB constraint against both lo and hi.
func (r *region) findFreeChunk(lo, hi uint64) (*trampolineChunk, int, bool) {
	for i := 1; i < r.chunkCount; i++ {
		c := r.chunk(i)
		if c.used() {
			continue
		}
		addr := uint64(c.codeAddress())
		if inRange(addr, lo) && inRange(addr, hi) {
			return c, i, true
		}
	}
	return nil, 0, false
}

// unprotect flips the region (or, minimally, the one chunk about to be
// mutated) to EXECUTE_READWRITE, returning the protection to restore on
// exit (spec §4.6). zrex extends the flip to the whole region: a single
// VirtualProtect call over the region is simpler and no slower in practice
// than tracking per-chunk protection state, and spec §4.6 explicitly permits
// this ("the implementation may extend this to the whole region").
func (r *region) unprotect() (old uint32, err error) {
	return vmHost.protect(r.base, r.size(), protectExecuteReadWrite)
}

func (r *region) reprotect(old uint32) error {
	_, err := vmHost.protect(r.base, r.size(), old)
	return err
}

// allocateRegion implements spec §4.5: iteratively probe candidate base
// addresses straddling the midpoint of [lo, hi], aligned to the host
// allocation granule, until one is free and within range, or both
// directions are exhausted.
func allocateRegion(lo, hi uint64, chunksPerRegion int) (*region, error) {
	granule := vmHost.allocationGranularity()
	minAddr, maxAddr := vmHost.applicationAddressBounds()

	mid := (lo + hi) / 2
	down := alignDown(uintptr(mid), granule)
	up := alignUp(uintptr(mid), granule)

	downAlive, upAlive := true, true
	for downAlive || upAlive {
		if downAlive {
			if down < minAddr || !inRange(uint64(down), lo) || !inRange(uint64(down), hi) {
				downAlive = false
			} else {
				r, ok, err := tryReserve(down, granule, chunksPerRegion)
				if err != nil {
					return nil, err
				}
				if ok {
					return r, nil
				}
				mbi, err := vmHost.queryDescriptor(down)
				if err != nil {
					return nil, errBadSyscall("allocateRegion", err)
				}
				if down < granule {
					downAlive = false
				} else {
					down -= granule
					_ = mbi
				}
			}
		}

		if upAlive {
			if up > maxAddr-uintptr(granule) || !inRange(uint64(up), lo) || !inRange(uint64(up), hi) {
				upAlive = false
			} else {
				r, ok, err := tryReserve(up, granule, chunksPerRegion)
				if err != nil {
					return nil, err
				}
				if ok {
					return r, nil
				}
				mbi, err := vmHost.queryDescriptor(up)
				if err != nil {
					return nil, errBadSyscall("allocateRegion", err)
				}
				if mbi.RegionSize == 0 {
					upAlive = false
				} else {
					up = alignUp(up+mbi.RegionSize, granule)
				}
			}
		}
	}

	return nil, errOutOfRange("allocateRegion", nil)
}

// tryReserve queries the descriptor at candidate and, if it describes a
// free span of at least one granule, commits a region there.
func tryReserve(candidate uintptr, granule uintptr, chunksPerRegion int) (*region, bool, error) {
	mbi, err := vmHost.queryDescriptor(candidate)
	if err != nil {
		return nil, false, errBadSyscall("tryReserve", err)
	}
	if mbi.State != uint32(memStateFree) || mbi.RegionSize < granule {
		return nil, false, nil
	}

	base, err := vmHost.commitExecutableRegion(candidate, granule)
	if err != nil {
		// Another thread or process may have raced us for this span; spec
		// treats this as "try the next candidate", not a hard failure.
		return nil, false, nil
	}

	r := &region{base: base, chunkCount: chunksPerRegion}
	h := r.header()
	h.signature = regionHeaderMagic
	h.numberOfUnusedChunks = uint32(chunksPerRegion - 1)
	for i := 1; i < chunksPerRegion; i++ {
		r.chunk(i).reset()
	}

	// A fresh region is born RW-initialised (spec §4.9): drop it to the
	// idle RX-live state now, so every region the directory hands back is
	// in the same state regardless of whether it was just allocated or
	// already existed.
	if _, err := vmHost.protect(r.base, r.size(), protectExecuteRead); err != nil {
		return nil, false, errBadSyscall("tryReserve", err)
	}

	return r, true, nil
}

func alignDown(addr uintptr, granule uintptr) uintptr {
	return addr - addr%granule
}

func alignUp(addr uintptr, granule uintptr) uintptr {
	rem := addr % granule
	if rem == 0 {
		return addr
	}
	return addr + (granule - rem)
}
