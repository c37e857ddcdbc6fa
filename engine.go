package zrex

import (
	"errors"
	"sync"
)

var errNoChunkInFreshRegion = errors.New("freshly allocated region reported no free chunk")

// engineState is the single process-wide trampoline_data spec §5
// describes: is_initialized, region_size, chunks_per_region, and the
// region directory. The outer transaction layer spec §5 assumes is
// responsible for ensuring at most one goroutine calls engineCreate or
// engineFree at a time; mu exists only as defense-in-depth for a caller
// that skips that layer, not as a substitute for it.
type engineState struct {
	mu sync.Mutex

	initialized     bool
	regionSize      uintptr
	chunksPerRegion int
	dir             directory
}

var engine engineState

func (e *engineState) ensureInit() {
	if e.initialized {
		return
	}
	granule := vmHost.allocationGranularity()
	e.regionSize = granule
	e.chunksPerRegion = int(granule / sizeofChunk)
	e.initialized = true
}

// teardownIfEmpty implements the lazy-teardown half of spec §5: once the
// directory empties, the engine forgets it was ever initialized so the
// next Create starts clean.
func (e *engineState) teardownIfEmpty() {
	if e.dir.empty() {
		e.initialized = false
	}
}

func engineCreate(target, callback uint64, minBytes int, flags Flags) (*Trampoline, error) {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	engine.ensureInit()

	readable, err := probeReadable(uintptr(target), maxCodeSize)
	if err != nil {
		return nil, err
	}
	if readable < minBytes {
		return nil, errInvalidOperation("Create", errShortReadBuffer)
	}

	buf := memoryView(uintptr(target), readable)
	pr, err := prologueRange(buf, target, minBytes)
	if err != nil {
		return nil, err
	}
	lo, hi := combinedRange(target, pr)

	r, c, _, found := engine.dir.findChunk(lo, hi)

	freshlyAllocated := false
	if !found {
		newRegion, err := allocateRegion(lo, hi, engine.chunksPerRegion)
		if err != nil {
			return nil, err
		}
		r = newRegion
		freshlyAllocated = true

		c, _, found = r.findFreeChunk(lo, hi)
		if !found {
			vmHost.releaseRegion(r.base)
			return nil, errOutOfRange("Create", errNoChunkInFreshRegion)
		}
	}

	old, err := r.unprotect()
	if err != nil {
		if freshlyAllocated {
			vmHost.releaseRegion(r.base)
		}
		return nil, err
	}

	c.reset()
	if err := initChunk(c, chunkInitParams{
		target:   target,
		callback: callback,
		minBytes: minBytes,
		maxRead:  readable,
		flags:    flags,
	}); err != nil {
		c.reset()
		r.reprotect(old)
		if freshlyAllocated {
			vmHost.releaseRegion(r.base)
		}
		return nil, err
	}

	if err := vmHost.flushInstructionCache(c.codeAddress(), uintptr(len(c.codeBuffer()))); err != nil {
		c.reset()
		r.reprotect(old)
		if freshlyAllocated {
			vmHost.releaseRegion(r.base)
		}
		return nil, err
	}

	r.header().numberOfUnusedChunks--

	if err := r.reprotect(old); err != nil {
		c.reset()
		if freshlyAllocated {
			vmHost.releaseRegion(r.base)
		}
		return nil, err
	}

	if freshlyAllocated {
		engine.dir.insert(r)
	}

	return &Trampoline{
		Address: c.codeAddress(),
		target:  target,
		region:  r,
		chunk:   c,
	}, nil
}

func engineFree(t *Trampoline) error {
	engine.mu.Lock()
	defer engine.mu.Unlock()

	if !engine.initialized {
		return errInvalidOperation("Free", errEngineNotInitialized)
	}

	r, c := t.region, t.chunk

	old, err := r.unprotect()
	if err != nil {
		return err
	}

	c.reset()

	if err := vmHost.flushInstructionCache(c.codeAddress(), uintptr(len(c.codeBuffer()))); err != nil {
		r.reprotect(old)
		return err
	}

	h := r.header()
	h.numberOfUnusedChunks++
	empty := int(h.numberOfUnusedChunks) == r.chunkCount-1

	if err := r.reprotect(old); err != nil {
		return err
	}

	if empty {
		engine.dir.remove(r)
		if err := vmHost.releaseRegion(r.base); err != nil {
			return err
		}
		engine.teardownIfEmpty()
	}

	return nil
}

var errEngineNotInitialized = errors.New("engine has not been initialized by a prior Create")
