//go:build 386

package zrex

const (
	decodeMode = 32

	archPointerSize = 4

	sizeofRelativeJump = 5

	// sizeofAbsoluteJump on 32-bit is len(E9 rel32): a relative jump
	// suffices to reach any address, since the whole 4GiB address space is
	// in range of a 32-bit displacement.
	sizeofAbsoluteJump = 5

	// rangeOfRelativeJump covers the entire 32-bit address space: a
	// relative near jump can always reach, so region placement and range
	// analysis degrade to "anywhere" per spec §4.3.
	rangeOfRelativeJump = 0xFFFFFFFF

	maxInstructionLength = 15

	maxCodeSize = maxInstructionLength + sizeofRelativeJump - 1

	maxCodeSizeWithBackjump = maxCodeSize + sizeofAbsoluteJump

	// hasCallbackSlot is false: x86-32 rewrites every relative form with a
	// relative jump (the whole address space is in reach), so no
	// indirect-through-literal callback slot is needed in the chunk.
	hasCallbackSlot = false
)

// archRangeAnalysisApplies is false on x86-32: spec §4.3 omits range
// analysis for this architecture since relative-jump reach covers the
// entire address space.
func archRangeAnalysisApplies() bool { return false }

func archDecodeMode() int { return decodeMode }
