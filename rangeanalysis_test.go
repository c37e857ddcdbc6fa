package zrex

import "testing"

func TestPrologueRangeNoRelative(t *testing.T) {
	if !archRangeAnalysisApplies() {
		t.Skip("range analysis does not apply on this architecture")
	}

	// push rbp; mov rbp, rsp; sub rsp, 0x20 -- no relative operands.
	buf := []byte{0x55, 0x48, 0x89, 0xE5, 0x48, 0x83, 0xEC, 0x20}
	res, err := prologueRange(buf, 0x140001000, len(buf))
	if err != nil {
		t.Fatalf("prologueRange: %v", err)
	}
	if res.anyRelative {
		t.Fatalf("anyRelative = true, want false")
	}

	lo, hi := combinedRange(0x140001000, res)
	if lo != 0x140001000 || hi != 0x140001000 {
		t.Errorf("combinedRange = [%#x, %#x], want target on both bounds", lo, hi)
	}
}

func TestPrologueRangeWithShortJmp(t *testing.T) {
	if !archRangeAnalysisApplies() {
		t.Skip("range analysis does not apply on this architecture")
	}

	// jmp +0x10 immediately followed by three NOPs, to reach minBytes.
	buf := []byte{0xEB, 0x10, 0x90, 0x90, 0x90}
	target := uint64(0x140001000)
	res, err := prologueRange(buf, target, len(buf))
	if err != nil {
		t.Fatalf("prologueRange: %v", err)
	}
	if !res.anyRelative {
		t.Fatalf("anyRelative = false, want true")
	}

	want := target + 2 + 0x10
	if res.lo != want || res.hi != want {
		t.Errorf("range = [%#x, %#x], want both %#x", res.lo, res.hi, want)
	}

	lo, hi := combinedRange(target, res)
	if lo != target || hi != want {
		t.Errorf("combinedRange = [%#x, %#x], want [%#x, %#x]", lo, hi, target, want)
	}
}

func TestPrologueRangeShortBuffer(t *testing.T) {
	if !archRangeAnalysisApplies() {
		t.Skip("range analysis does not apply on this architecture")
	}
	buf := []byte{0x55}
	if _, err := prologueRange(buf, 0x1000, 4); err == nil {
		t.Fatalf("expected error for a buffer shorter than minBytes")
	}
}
