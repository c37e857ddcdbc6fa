package zrex

import (
	"errors"

	"golang.org/x/arch/x86/x86asm"
)

var (
	errDecodeInvalidLength        = errors.New("decoder returned an implausible instruction length")
	errDecodeUnrecognizedRelative = errors.New("decoder reported a PC-relative field this façade does not model")
	errNotRelative                = errors.New("absoluteTarget called on a non-relative instruction")
)

// mnemonicClass is the coarse dispatch key the relocator rewrites by. It
// generalizes the teacher's string-prefix branch test (isBranchInst) into a
// typed classification driven off x86asm.Inst.Op, which also lets us tell
// CALL/JMP/Jcc/LOOP*/JCXZ* apart instead of lumping every "J*-or-CALL-or-RET"
// mnemonic together.
type mnemonicClass int

const (
	classOther mnemonicClass = iota
	classJmp
	classJcc
	classCall
	classJcxz
	classLoop
)

func classify(op x86asm.Op) mnemonicClass {
	switch op {
	case x86asm.JMP:
		return classJmp
	case x86asm.CALL:
		return classCall
	case x86asm.JCXZ, x86asm.JECXZ, x86asm.JRCXZ:
		return classJcxz
	case x86asm.LOOP, x86asm.LOOPE, x86asm.LOOPNE:
		return classLoop
	case x86asm.JA, x86asm.JAE, x86asm.JB, x86asm.JBE, x86asm.JE, x86asm.JG,
		x86asm.JGE, x86asm.JL, x86asm.JLE, x86asm.JNE, x86asm.JNO, x86asm.JNP,
		x86asm.JNS, x86asm.JO, x86asm.JP, x86asm.JS:
		return classJcc
	default:
		return classOther
	}
}

// decodedInstruction is the engine's internal, decoder-agnostic view of one
// instruction: everything the relocator and range analyzer need, lifted out
// of x86asm's types so those two files never import x86asm directly. This
// is the "decoder façade" spec §4.2 calls for.
type decodedInstruction struct {
	raw          []byte
	length       int
	op           x86asm.Op
	class        mnemonicClass
	addressWidth int
	operandWidth int

	isRelative  bool
	ripRelative bool // relative field is a RIP-relative memory displacement
	relOffset   int  // byte offset of the relative field within raw
	relWidth    int  // byte width of the relative field (1 or 4)
	relValue    int64
}

// decodeAt decodes a single instruction from buf, which must begin exactly
// at the instruction's first byte. mode is 16/32/64 per x86asm convention;
// callers always pass archDecodeMode().
func decodeAt(buf []byte, mode int) (*decodedInstruction, error) {
	inst, err := x86asm.Decode(buf, mode)
	if err != nil {
		return nil, err
	}
	if inst.Len <= 0 || inst.Len > len(buf) {
		return nil, errDecodeInvalidLength
	}

	d := &decodedInstruction{
		raw:          append([]byte(nil), buf[:inst.Len]...),
		length:       inst.Len,
		op:           inst.Op,
		class:        classify(inst.Op),
		addressWidth: inst.AddrSize,
		operandWidth: inst.DataSize,
	}

	if inst.PCRel != 0 {
		d.isRelative = true
		d.relOffset = inst.PCRelOff
		d.relWidth = inst.PCRel

		if mem, ok := ripRelativeMem(inst.Args); ok {
			d.ripRelative = true
			d.relValue = mem.Disp
		} else if rel, ok := relativeArg(inst.Args); ok {
			d.relValue = int64(rel)
		} else {
			// A PC-relative field without a Rel/RIP-Mem arg we recognize:
			// the decoder reported a shape this façade doesn't model.
			return nil, errDecodeUnrecognizedRelative
		}
	}

	return d, nil
}

func ripRelativeMem(args x86asm.Args) (x86asm.Mem, bool) {
	for _, a := range args {
		if a == nil {
			continue
		}
		if m, ok := a.(x86asm.Mem); ok && m.Base == x86asm.RIP {
			return m, true
		}
	}
	return x86asm.Mem{}, false
}

func relativeArg(args x86asm.Args) (x86asm.Rel, bool) {
	for _, a := range args {
		if a == nil {
			continue
		}
		if r, ok := a.(x86asm.Rel); ok {
			return r, true
		}
	}
	return 0, false
}

// absoluteTarget implements spec §4.2's absolute_target: the address a
// relative instruction, executed from runtimeAddress, actually refers to.
func absoluteTarget(d *decodedInstruction, runtimeAddress uint64) (uint64, error) {
	if !d.isRelative {
		return 0, errNotRelative
	}

	target := runtimeAddress + uint64(d.length) + uint64(d.relValue)

	if d.ripRelative {
		if d.addressWidth == 32 {
			target &= 0xFFFFFFFF
		}
		return target, nil
	}

	// Relative branch: 16-bit operand width in legacy/compat mode wraps to
	// 16 bits; long mode (64-bit decode) never masks.
	if d.operandWidth == 16 && archDecodeMode() != 64 {
		target &= 0xFFFF
	}
	return target, nil
}
