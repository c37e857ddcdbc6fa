package zrex

import "unsafe"

// translationItem is one (offset_source, offset_destination) pair from
// spec §3: the instruction beginning offsetSource bytes into the original
// prologue begins offsetDestination bytes into the trampoline body.
type translationItem struct {
	offsetSource      uint8
	offsetDestination uint8
}

// translationMap is the fixed-capacity ordered sequence of translation
// items spec §3 describes, stored inline in the chunk so it lives exactly
// as long as the chunk that owns it.
type translationMap struct {
	items [translationMapCapacity]translationItem
	count uint8
}

func (m *translationMap) reset() { m.count = 0 }

func (m *translationMap) full() bool { return int(m.count) >= len(m.items) }

func (m *translationMap) append(source, destination int) {
	m.items[m.count] = translationItem{offsetSource: uint8(source), offsetDestination: uint8(destination)}
	m.count++
}

func (m *translationMap) at(i int) translationItem { return m.items[i] }

func (m *translationMap) len() int { return int(m.count) }

// regionHeader overlays the storage of a region's first chunk slot (spec
// §3/§4). sizeofRegionHeader must not exceed sizeofChunk; chunk.go's
// init asserts this at package init time rather than via a type-level
// static assertion, since Go has no direct equivalent of C's
// _Static_assert on sizeof.
type regionHeader struct {
	signature            uint32
	numberOfUnusedChunks uint32
}

const sizeofRegionHeader = unsafe.Sizeof(regionHeader{})

func init() {
	if sizeofRegionHeader > sizeofChunk {
		panic("zrex: region header does not fit in a chunk slot")
	}
}

func regionHeaderAt(base uintptr) *regionHeader {
	return (*regionHeader)(unsafe.Pointer(base))
}

func (h *regionHeader) isLive() bool { return h.signature == regionHeaderMagic }

// chunkAt returns the chunk at the given slot index within a region based
// at base. Slot 0 is reserved for the region header and must never be
// passed here by callers that intend to use the result as a trampoline.
func chunkAt(base uintptr, index int) *trampolineChunk {
	return (*trampolineChunk)(unsafe.Pointer(base + uintptr(index)*sizeofChunk))
}

// memoryView returns a Go byte slice backed directly by the raw memory at
// addr, the same cast-a-fixed-size-array-then-reslice trick used to view
// freshly mapped PE sections in memmod_windows.go.
func memoryView(addr uintptr, size int) []byte {
	return (*[1 << 30]byte)(unsafe.Pointer(addr))[:size:size]
}

// codeBuffer returns a slice view of the chunk's relocated-code area.
func (c *trampolineChunk) codeBuffer() []byte {
	return memoryView(uintptr(unsafe.Pointer(&c.codeBufferArray[0])), len(c.codeBufferArray))
}

func (c *trampolineChunk) originalCodeBuffer() []byte {
	return memoryView(uintptr(unsafe.Pointer(&c.originalCodeArray[0])), len(c.originalCodeArray))
}

func (c *trampolineChunk) codeAddress() uintptr {
	return uintptr(unsafe.Pointer(&c.codeBufferArray[0]))
}

// fillTrap overwrites codeBuffer()[from:] with the trap opcode, per spec
// §4.7 step 3 and the free path in §4.8.
func (c *trampolineChunk) fillTrap(from int) {
	buf := c.codeBuffer()
	for i := from; i < len(buf); i++ {
		buf[i] = trapByte
	}
}

// reset returns the chunk to the Free state (spec §4.9): unused, trap-filled,
// zero-length buffers, empty translation map. Called both when a chunk is
// first claimed from an unused slot (defensive, in case of stale contents
// from a previous life) and when it is freed.
func (c *trampolineChunk) reset() {
	c.setUsed(false)
	c.fillTrap(0)
	c.setCodeBufferSize(0)
	c.setOriginalCodeSize(0)
	c.translationMap().reset()
	c.setBackjumpAddress(0)
	c.setCallbackAddress(0)
	c.resetArchExtra()
}
