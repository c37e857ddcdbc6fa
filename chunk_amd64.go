//go:build amd64

package zrex

import (
	"encoding/binary"
	"unsafe"
)

// trampolineChunk is the fixed-layout record spec §3 describes, overlaid
// directly onto a slot of host-allocated executable memory: field writes
// here mutate real process memory (while the owning region is temporarily
// RW — see protect/unprotect in region.go).
type trampolineChunk struct {
	isUsedFlag uint32

	// callbackAddressField and callbackJumpArray exist only on x64: the
	// indirect jump-through-literal the outer hook layer uses to reach the
	// callback. zrex's engine never reads callbackAddressField itself; it
	// only initializes the slot so the outer layer can wire a callback
	// through it.
	callbackAddressField uint64
	callbackJumpArray    [sizeofAbsoluteJump]byte

	backjumpAddressField uint64

	codeBufferArray     [maxCodeSizeWithBackjump + bonus]byte
	codeBufferSizeField uint32

	translationMapField translationMap

	originalCodeArray     [maxCodeSize]byte
	originalCodeSizeField uint32

	// literalSlotsArray backs the "literal slot reserved inside the chunk"
	// spec §4.7 calls for: one 8-byte absolute pointer per relative
	// instruction in the prologue that must widen to an indirect absolute
	// jump/call (displacement too large for a re-biased rel32). Sized to
	// translationMapCapacity since at most one such widening can occur per
	// consumed instruction.
	literalSlotsArray [translationMapCapacity]uint64
	literalSlotsUsed  uint32
}

const sizeofChunk = unsafe.Sizeof(trampolineChunk{})

func (c *trampolineChunk) used() bool { return c.isUsedFlag != 0 }
func (c *trampolineChunk) setUsed(used bool) {
	if used {
		c.isUsedFlag = 1
	} else {
		c.isUsedFlag = 0
	}
}

func (c *trampolineChunk) codeBufferSize() int { return int(c.codeBufferSizeField) }
func (c *trampolineChunk) setCodeBufferSize(n int) { c.codeBufferSizeField = uint32(n) }
func (c *trampolineChunk) originalCodeSize() int { return int(c.originalCodeSizeField) }
func (c *trampolineChunk) setOriginalCodeSize(n int) { c.originalCodeSizeField = uint32(n) }

func (c *trampolineChunk) backjumpAddress() uint64 { return c.backjumpAddressField }
func (c *trampolineChunk) setBackjumpAddress(addr uint64) { c.backjumpAddressField = addr }

func (c *trampolineChunk) backjumpAddressSlotAddr() uintptr {
	return uintptr(unsafe.Pointer(&c.backjumpAddressField))
}

func (c *trampolineChunk) callbackAddress() uint64 { return c.callbackAddressField }
func (c *trampolineChunk) setCallbackAddress(addr uint64) { c.callbackAddressField = addr }

func (c *trampolineChunk) callbackAddressSlotAddr() uintptr {
	return uintptr(unsafe.Pointer(&c.callbackAddressField))
}

func (c *trampolineChunk) callbackJump() []byte {
	return memoryView(uintptr(unsafe.Pointer(&c.callbackJumpArray[0])), len(c.callbackJumpArray))
}

func (c *trampolineChunk) translationMap() *translationMap { return &c.translationMapField }

// allocLiteralSlot stores value in the next free literal slot and returns
// that slot's address, for use as the target of an indirect
// jump/call-through-literal emitted by the relocator.
func (c *trampolineChunk) allocLiteralSlot(value uint64) (uintptr, error) {
	if int(c.literalSlotsUsed) >= len(c.literalSlotsArray) {
		return 0, errOutOfRange("allocLiteralSlot", nil)
	}
	i := c.literalSlotsUsed
	c.literalSlotsArray[i] = value
	c.literalSlotsUsed++
	return uintptr(unsafe.Pointer(&c.literalSlotsArray[i])), nil
}

func (c *trampolineChunk) resetLiteralSlots() { c.literalSlotsUsed = 0 }

func (c *trampolineChunk) resetArchExtra() { c.resetLiteralSlots() }

// writeCallbackJump initializes the x64-only callback-through-literal slot
// (spec §4.7 step 1).
func (c *trampolineChunk) writeCallbackJump(callback uint64) {
	c.setCallbackAddress(callback)
	encodeIndirectBranch(c.callbackJump(), uintptr(unsafe.Pointer(&c.callbackJumpArray[0])), c.callbackAddressSlotAddr(), false)
}

// writeBackjump emits the indirect jump through backjumpAddressField at
// dst (spec §4.7 step 3) and returns its length.
func (c *trampolineChunk) writeBackjump(dst []byte, dstAddr uintptr, target uint64) int {
	c.setBackjumpAddress(target)
	encodeIndirectBranch(dst[:sizeofAbsoluteJump], dstAddr, c.backjumpAddressSlotAddr(), false)
	return sizeofAbsoluteJump
}

// encodeIndirectBranch writes "FF 25 rel32" (jmp) or "FF 15 rel32" (call)
// at dst (whose runtime address is dstAddr) that dereferences the 8-byte
// pointer stored at slotAddr.
func encodeIndirectBranch(dst []byte, dstAddr uintptr, slotAddr uintptr, isCall bool) {
	dst[0] = 0xFF
	if isCall {
		dst[1] = 0x15
	} else {
		dst[1] = 0x25
	}
	disp := int32(int64(slotAddr) - int64(dstAddr+sizeofAbsoluteJump))
	binary.LittleEndian.PutUint32(dst[2:6], uint32(disp))
}
