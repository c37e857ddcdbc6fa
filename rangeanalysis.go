package zrex

import "errors"

var errShortReadBuffer = errors.New("fewer readable bytes than min_bytes_to_reloc requires")

// prologueRangeResult is the combined absolute-address range every relative
// operand in the scanned prologue touches, per spec §4.3.
type prologueRangeResult struct {
	lo, hi      uint64
	anyRelative bool
}

// prologueRange decodes forward from offset 0 of buf (which holds bytes
// read starting at target), computing the absolute target of every relative
// instruction encountered, until at least minBytes have been consumed.
//
// On x86-32 this is a no-op returning anyRelative=false: a 32-bit relative
// jump/call reaches the entire address space, so region placement never
// needs to account for it (spec §4.3).
func prologueRange(buf []byte, target uint64, minBytes int) (prologueRangeResult, error) {
	var res prologueRangeResult

	if !archRangeAnalysisApplies() {
		return res, nil
	}

	offset := 0
	first := true
	for offset < minBytes {
		if offset >= len(buf) {
			return res, errInvalidOperation("prologueRange", errShortReadBuffer)
		}
		inst, err := decodeAt(buf[offset:], archDecodeMode())
		if err != nil {
			return res, errDecodeFailed("prologueRange", err)
		}

		if inst.isRelative {
			abs, err := absoluteTarget(inst, target+uint64(offset))
			if err != nil {
				return res, errDecodeFailed("prologueRange", err)
			}
			if first || abs < res.lo {
				res.lo = abs
			}
			if first || abs > res.hi {
				res.hi = abs
			}
			res.anyRelative = true
			first = false
		}

		offset += inst.length
	}

	return res, nil
}

// combinedRange folds the target function's own address into the range a
// prologue scan produced, per spec §4: "the combined [lo, hi] range
// including the target itself".
func combinedRange(target uint64, pr prologueRangeResult) (lo, hi uint64) {
	lo, hi = target, target
	if !pr.anyRelative {
		return lo, hi
	}
	if pr.lo < lo {
		lo = pr.lo
	}
	if pr.hi > hi {
		hi = pr.hi
	}
	return lo, hi
}
