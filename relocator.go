package zrex

import (
	"encoding/binary"
	"errors"
	"math"
	"unsafe"
)

var (
	errRewriteDisabled           = errors.New("relative form requires a rewrite flag that is not set")
	errUnreachable386            = errors.New("relative displacement does not fit even though x86-32 reach is unbounded")
	errRipDisplacementUnreachable = errors.New("rip-relative displacement does not reach from the new site")
	errTranslationMapFull         = errors.New("translation map is at capacity")
	errCodeBufferFull             = errors.New("code buffer has no room for another maximum-length instruction")
)

// chunkInitParams bundles init_chunk's arguments (spec §4.7).
type chunkInitParams struct {
	target   uint64
	callback uint64
	minBytes int
	maxRead  int
	flags    Flags
}

// initChunk implements spec §4.7: decode the prologue at params.target one
// instruction at a time, relocating or rewriting each into c's code buffer,
// until at least params.minBytes original bytes have been consumed, then
// append the back-jump and trap-fill the remainder.
func initChunk(c *trampolineChunk, params chunkInitParams) error {
	c.setUsed(true)
	if hasCallbackSlot {
		c.writeCallbackJump(params.callback)
	}

	src := memoryView(uintptr(params.target), params.maxRead)
	codeBuf := c.codeBuffer()
	tm := c.translationMap()

	bytesRead, bytesWritten := 0, 0
	for bytesRead < params.minBytes {
		if bytesRead >= len(src) {
			return errInvalidOperation("initChunk", errShortReadBuffer)
		}
		if tm.full() {
			return errOutOfRange("initChunk", errTranslationMapFull)
		}
		if bytesWritten+maxInstructionLength > len(codeBuf)-int(sizeofAbsoluteJump) {
			return errOutOfRange("initChunk", errCodeBufferFull)
		}

		inst, err := decodeAt(src[bytesRead:], archDecodeMode())
		if err != nil {
			return errDecodeFailed("initChunk", err)
		}

		runtimeAddr := params.target + uint64(bytesRead)
		destAddr := uint64(c.codeAddress()) + uint64(bytesWritten)

		emitted, err := emitInstruction(c, inst, runtimeAddr, destAddr, params.flags, codeBuf[bytesWritten:])
		if err != nil {
			return err
		}

		tm.append(bytesRead, bytesWritten)
		bytesRead += inst.length
		bytesWritten += emitted
	}

	c.setCodeBufferSize(bytesWritten)
	backjumpAddr := uint64(c.codeAddress()) + uint64(bytesWritten)
	backjumpLen := c.writeBackjump(codeBuf[bytesWritten:], uintptr(backjumpAddr), params.target+uint64(bytesRead))
	c.fillTrap(bytesWritten + backjumpLen)

	copy(c.originalCodeBuffer(), src[:bytesRead])
	c.setOriginalCodeSize(bytesRead)

	return nil
}

// emitInstruction writes one relocated/rewritten instruction to dst and
// returns the number of bytes it consumed there.
func emitInstruction(c *trampolineChunk, inst *decodedInstruction, runtimeAddr, destAddr uint64, flags Flags, dst []byte) (int, error) {
	if !inst.isRelative {
		return copy(dst, inst.raw), nil
	}

	target, err := absoluteTarget(inst, runtimeAddr)
	if err != nil {
		return 0, errDecodeFailed("emitInstruction", err)
	}

	switch inst.class {
	case classCall:
		return emitCall(c, inst, destAddr, target, flags, dst)
	case classJcxz:
		if flags&FlagRewriteJcxz == 0 {
			return 0, errFailed("emitInstruction", errRewriteDisabled)
		}
		return emitShortBranchTrampoline(inst, destAddr, target, dst)
	case classLoop:
		if flags&FlagRewriteLoop == 0 {
			return 0, errFailed("emitInstruction", errRewriteDisabled)
		}
		return emitShortBranchTrampoline(inst, destAddr, target, dst)
	case classJmp:
		return emitJmp(c, inst, destAddr, target, dst)
	case classJcc:
		return emitJcc(c, inst, destAddr, target, dst)
	default:
		return emitRipRelative(inst, destAddr, target, dst)
	}
}

// rebiasInPlace copies inst's raw bytes to dst verbatim and patches its
// relative field to refer to target from destAddr, if the new displacement
// still fits in the field's original width. This covers the common case
// for every relative class: re-biasing without growing the instruction.
func rebiasInPlace(dst []byte, inst *decodedInstruction, destAddr, target uint64) (int, bool) {
	disp := int64(target) - int64(destAddr) - int64(inst.length)

	if inst.relWidth == 1 {
		if !fitsInt8(disp) {
			return 0, false
		}
		n := copy(dst, inst.raw)
		dst[inst.relOffset] = byte(int8(disp))
		return n, true
	}

	if !fits32(disp) {
		return 0, false
	}
	n := copy(dst, inst.raw)
	binary.LittleEndian.PutUint32(dst[inst.relOffset:inst.relOffset+4], uint32(disp))
	return n, true
}

// emitCall implements the CALL case of spec §4.7: rebias in place when
// possible; otherwise (near form too far, or an indirect call through a
// RIP-relative memory operand whose cell is now out of reach) fall back to
// an indirect call through a chunk-local literal slot.
func emitCall(c *trampolineChunk, inst *decodedInstruction, destAddr, target uint64, flags Flags, dst []byte) (int, error) {
	if flags&FlagRewriteCall == 0 {
		return 0, errFailed("emitCall", errRewriteDisabled)
	}

	if n, ok := rebiasInPlace(dst, inst, destAddr, target); ok {
		return n, nil
	}

	if !hasCallbackSlot {
		// x86-32: every relative displacement wraps to fit; reaching here
		// means the decoder reported a shape this façade doesn't expect.
		return 0, errOutOfRange("emitCall", errUnreachable386)
	}

	pointerValue := target
	if inst.ripRelative {
		// target is the address of the memory cell the original
		// instruction loaded its call target from (e.g. an IAT slot), not
		// the callee itself. Resolve it once now and bake the resolved
		// function pointer into our own literal slot (spec §9 open
		// question): correct as long as the cell's contents do not change
		// after relocation, which self-modification is already a
		// documented Non-goal for.
		pointerValue = readPointerAt(uintptr(target))
	}

	slot, err := c.allocLiteralSlot(pointerValue)
	if err != nil {
		return 0, errOutOfRange("emitCall", err)
	}
	encodeIndirectBranch(dst[:sizeofAbsoluteJump], uintptr(destAddr), slot, true)
	return sizeofAbsoluteJump, nil
}

// emitJmp implements the unconditional-JMP case: rebias, else widen to a
// near rel32 form, else (practically unreachable given the region-selection
// range invariant) an indirect jump through a literal slot.
func emitJmp(c *trampolineChunk, inst *decodedInstruction, destAddr, target uint64, dst []byte) (int, error) {
	if n, ok := rebiasInPlace(dst, inst, destAddr, target); ok {
		return n, nil
	}

	disp := int64(target) - int64(destAddr) - int64(sizeofRelativeJump)
	if fits32(disp) {
		dst[0] = 0xE9
		binary.LittleEndian.PutUint32(dst[1:5], uint32(disp))
		return sizeofRelativeJump, nil
	}

	if !hasCallbackSlot {
		return 0, errOutOfRange("emitJmp", errUnreachable386)
	}
	slot, err := c.allocLiteralSlot(target)
	if err != nil {
		return 0, errOutOfRange("emitJmp", err)
	}
	encodeIndirectBranch(dst[:sizeofAbsoluteJump], uintptr(destAddr), slot, false)
	return sizeofAbsoluteJump, nil
}

// emitJcc implements the conditional-near-branch case: rebias, else widen
// an 8-bit-displacement Jcc to its 32-bit-displacement long form, else (x64
// only) invert the condition and skip over an indirect absolute jump.
func emitJcc(c *trampolineChunk, inst *decodedInstruction, destAddr, target uint64, dst []byte) (int, error) {
	if n, ok := rebiasInPlace(dst, inst, destAddr, target); ok {
		return n, nil
	}

	if len(inst.raw) == 2 {
		disp := int64(target) - int64(destAddr) - 6
		if fits32(disp) {
			dst[0] = 0x0F
			dst[1] = 0x80 | jccConditionCode(inst)
			binary.LittleEndian.PutUint32(dst[2:6], uint32(disp))
			return 6, nil
		}
	}

	if !hasCallbackSlot {
		return 0, errOutOfRange("emitJcc", errUnreachable386)
	}

	cc := jccConditionCode(inst)
	slot, err := c.allocLiteralSlot(target)
	if err != nil {
		return 0, errOutOfRange("emitJcc", err)
	}
	dst[0] = 0x70 | (cc ^ 1) // inverted condition, short form
	dst[1] = byte(sizeofAbsoluteJump)
	encodeIndirectBranch(dst[2:2+sizeofAbsoluteJump], uintptr(destAddr+2), slot, false)
	return 2 + int(sizeofAbsoluteJump), nil
}

// jccConditionCode extracts the 4-bit condition code from a decoded Jcc
// instruction's opcode byte. This assumes no legacy operand-size prefix
// precedes the opcode, true for every Jcc form the relocator is asked to
// relocate in a function prologue.
func jccConditionCode(inst *decodedInstruction) byte {
	if inst.raw[0] == 0x0F {
		return inst.raw[1] & 0x0F
	}
	return inst.raw[0] & 0x0F
}

// emitShortBranchTrampoline builds the 3-instruction sequence spec §4.7
// prescribes for JCXZ/JECXZ/JRCXZ and LOOP/LOOPE/LOOPNE, whose sole native
// encoding is an 8-bit displacement with no long form to widen to:
//
//	<opcode> +2   ; taken: skip the 2-byte jmp, fall into the near jmp
//	EB 05         ; not taken: jump over the near jmp, continuing normally
//	E9 rel32      ; near jmp to the re-biased target
//
// <opcode> keeps any prefix bytes of the original (e.g. the 0x67 that
// selects JECXZ in 64-bit mode); the rel8 field is always the last byte.
func emitShortBranchTrampoline(inst *decodedInstruction, destAddr, target uint64, dst []byte) (int, error) {
	head := len(inst.raw) - 1
	total := head + 8
	disp := int64(target) - int64(destAddr) - int64(total)
	if !fits32(disp) {
		return 0, errOutOfRange("emitShortBranchTrampoline", errUnreachable386)
	}

	copy(dst, inst.raw[:head])
	dst[head] = 2
	dst[head+1] = 0xEB
	dst[head+2] = 5
	dst[head+3] = 0xE9
	binary.LittleEndian.PutUint32(dst[head+4:total], uint32(disp))
	return total, nil
}

// emitRipRelative implements the generic "RIP-relative memory operand on
// any other instruction" case of spec §4.7: re-encode if the new 32-bit
// displacement still reaches, else OUT_OF_RANGE (the region-selection
// invariant should have prevented this).
func emitRipRelative(inst *decodedInstruction, destAddr, target uint64, dst []byte) (int, error) {
	if n, ok := rebiasInPlace(dst, inst, destAddr, target); ok {
		return n, nil
	}
	return 0, errOutOfRange("emitRipRelative", errRipDisplacementUnreachable)
}

func fitsInt8(v int64) bool { return v >= math.MinInt8 && v <= math.MaxInt8 }

// fits32 reports whether a 32-bit-wide relative field can carry disp. On
// x86-64 this is a genuine range check: the displacement is sign-extended
// against a 64-bit RIP, so it must numerically fit. On x86-32 it is always
// true: EIP arithmetic is mod 2^32, so the low 32 bits of any difference
// round-trip correctly regardless of its magnitude (spec §4.3's "relative
// reach covers the entire address space").
func fits32(disp int64) bool {
	if !hasCallbackSlot {
		return true
	}
	return disp >= math.MinInt32 && disp <= math.MaxInt32
}

// readPointerAt reads an 8-byte little-endian pointer value directly out of
// process memory, used only to resolve a RIP-relative CALL's indirect
// target when relocating it out of displacement range (emitCall).
func readPointerAt(addr uintptr) uint64 {
	return *(*uint64)(unsafe.Pointer(addr))
}
