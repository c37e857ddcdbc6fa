//go:build amd64

package zrex

const (
	// decodeMode selects the x86asm decode width for this architecture.
	decodeMode = 64

	// archPointerSize is the width of an absolute-pointer literal slot.
	archPointerSize = 8

	// sizeofRelativeJump is len(E9 rel32).
	sizeofRelativeJump = 5

	// sizeofAbsoluteJump is len(FF 25 00 00 00 00); the 8-byte literal it
	// dereferences is accounted for separately in the chunk layout.
	sizeofAbsoluteJump = 6

	// rangeOfRelativeJump is the reach of a 32-bit-displacement near
	// relative jump/call on x86-64.
	rangeOfRelativeJump = 0x7FFFFFFF

	maxInstructionLength = 15

	// maxCodeSize bounds the relocated prologue: enough room for the
	// longest possible instruction sequence reachable before a relative
	// jump could have been inserted at the original site.
	maxCodeSize = maxInstructionLength + sizeofRelativeJump - 1

	maxCodeSizeWithBackjump = maxCodeSize + sizeofAbsoluteJump

	// hasCallbackSlot is true where the chunk carries a dedicated indirect
	// call-through slot for invoking the hook callback (spec §3); only
	// meaningful to the outer hook layer, but the chunk still reserves and
	// initializes it here since it is part of the chunk's fixed layout.
	hasCallbackSlot = true
)

func archRangeAnalysisApplies() bool { return true }

func archDecodeMode() int { return decodeMode }
