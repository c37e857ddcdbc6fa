//go:build 386

package zrex

import (
	"encoding/binary"
	"errors"
	"unsafe"
)

var errNoLiteralSlotsOn386 = errors.New("no literal slots on x86-32; every relative form is in range")

// trampolineChunk on x86-32 omits the callback/back-jump literal-pointer
// machinery x64 needs: a 32-bit relative jump always reaches any address in
// a 32-bit address space (spec §4.3), so every branch the relocator emits,
// including the back-jump, is a plain re-biased "E9 rel32" rather than an
// indirect jump through a literal.
type trampolineChunk struct {
	isUsedFlag uint32

	backjumpAddressField uint32

	codeBufferArray     [maxCodeSizeWithBackjump + bonus]byte
	codeBufferSizeField uint32

	translationMapField translationMap

	originalCodeArray     [maxCodeSize]byte
	originalCodeSizeField uint32
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

func (c *trampolineChunk) codeBufferSize() int      { return int(c.codeBufferSizeField) }
func (c *trampolineChunk) setCodeBufferSize(n int)   { c.codeBufferSizeField = uint32(n) }
func (c *trampolineChunk) originalCodeSize() int     { return int(c.originalCodeSizeField) }
func (c *trampolineChunk) setOriginalCodeSize(n int) { c.originalCodeSizeField = uint32(n) }

func (c *trampolineChunk) backjumpAddress() uint64        { return uint64(c.backjumpAddressField) }
func (c *trampolineChunk) setBackjumpAddress(addr uint64) { c.backjumpAddressField = uint32(addr) }

// callbackAddress/setCallbackAddress/callbackJump are no-ops on x86-32:
// spec §3 scopes callback_address/callback_jump as x64-only fields. The
// outer hook layer is responsible for wiring a 32-bit callback itself.
func (c *trampolineChunk) callbackAddress() uint64         { return 0 }
func (c *trampolineChunk) setCallbackAddress(addr uint64)  {}
func (c *trampolineChunk) callbackAddressSlotAddr() uintptr { return 0 }
func (c *trampolineChunk) callbackJump() []byte             { return nil }
func (c *trampolineChunk) writeCallbackJump(callback uint64) {}

func (c *trampolineChunk) translationMap() *translationMap { return &c.translationMapField }

func (c *trampolineChunk) resetArchExtra() {}

// allocLiteralSlot has no x86-32 equivalent: no relative form on this
// architecture ever fails to reach (spec §4.3), so the relocator never
// needs a reserved literal slot here. It is kept as a method so
// relocator.go (arch-independent) compiles unchanged on both architectures;
// callers must never actually reach this path on 386.
func (c *trampolineChunk) allocLiteralSlot(value uint64) (uintptr, error) {
	return 0, errOutOfRange("allocLiteralSlot", errNoLiteralSlotsOn386)
}

// writeBackjump emits a direct "E9 rel32" back-jump: on x86-32 every
// address is in range of a relative near jump, so no indirect-through-slot
// form is ever required.
func (c *trampolineChunk) writeBackjump(dst []byte, dstAddr uintptr, target uint64) int {
	c.setBackjumpAddress(target)
	dst[0] = 0xE9
	disp := int32(int64(target) - int64(dstAddr)-int64(sizeofAbsoluteJump))
	binary.LittleEndian.PutUint32(dst[1:5], uint32(disp))
	return sizeofAbsoluteJump
}

func encodeIndirectBranch(dst []byte, dstAddr uintptr, slotAddr uintptr, isCall bool) {
	// Unreachable on x86-32 (see allocLiteralSlot); kept only so
	// relocator.go needs no build-tagged call sites.
}
