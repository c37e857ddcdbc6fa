package zrex

import "testing"

func TestFitsInt8(t *testing.T) {
	if !fitsInt8(127) || !fitsInt8(-128) {
		t.Fatalf("boundary values should fit in an 8-bit field")
	}
	if fitsInt8(128) || fitsInt8(-129) {
		t.Fatalf("out-of-range values should not fit in an 8-bit field")
	}
}

func TestFits32(t *testing.T) {
	if hasCallbackSlot {
		// amd64: a genuine range check against a sign-extended rel32 field.
		if !fits32(0x7FFFFFFF) || !fits32(-0x80000000) {
			t.Errorf("boundary displacement should fit")
		}
		if fits32(0x80000000) || fits32(-0x80000001) {
			t.Errorf("out-of-range displacement should not fit")
		}
	} else {
		// x86-32: EIP arithmetic wraps mod 2^32, so every displacement fits.
		if !fits32(1<<40) || !fits32(-(1 << 40)) {
			t.Errorf("fits32 should always hold on x86-32")
		}
	}
}

func TestRebiasInPlaceShortJmp(t *testing.T) {
	// EB 10: jmp rel8 +0x10
	raw := []byte{0xEB, 0x10}
	inst := &decodedInstruction{raw: raw, length: 2, relOffset: 1, relWidth: 1}

	destAddr := uint64(0x2000)
	target := uint64(0x2000 + 2 + 0x05)

	dst := make([]byte, 2)
	n, ok := rebiasInPlace(dst, inst, destAddr, target)
	if !ok {
		t.Fatalf("rebiasInPlace reported failure for an in-range displacement")
	}
	if n != 2 {
		t.Fatalf("n = %d, want 2", n)
	}
	if dst[0] != 0xEB || int8(dst[1]) != 0x05 {
		t.Fatalf("dst = % x, want rebiased to +0x05", dst)
	}
}

func TestRebiasInPlaceRejectsOverflow8Bit(t *testing.T) {
	raw := []byte{0xEB, 0x10}
	inst := &decodedInstruction{raw: raw, length: 2, relOffset: 1, relWidth: 1}

	destAddr := uint64(0x2000)
	target := destAddr + 2 + 1000 // far beyond an 8-bit field's reach

	dst := make([]byte, 2)
	if _, ok := rebiasInPlace(dst, inst, destAddr, target); ok {
		t.Fatalf("rebiasInPlace should reject a displacement that overflows an 8-bit field")
	}
}

func TestEmitShortBranchTrampoline(t *testing.T) {
	inst := &decodedInstruction{raw: []byte{0xE3, 0x05}}
	destAddr := uint64(0x3000)
	target := destAddr + 9 + 0x100

	dst := make([]byte, 9)
	n, err := emitShortBranchTrampoline(inst, destAddr, target, dst)
	if err != nil {
		t.Fatalf("emitShortBranchTrampoline: %v", err)
	}
	if n != 9 {
		t.Fatalf("n = %d, want 9", n)
	}
	if dst[0] != 0xE3 || dst[1] != 2 || dst[2] != 0xEB || dst[3] != 5 || dst[4] != 0xE9 {
		t.Fatalf("dst head = % x, want E3 02 EB 05 E9", dst[:5])
	}
}

func TestJccConditionCode(t *testing.T) {
	// 74 xx: JE (condition code 4), one-byte opcode form.
	short := &decodedInstruction{raw: []byte{0x74, 0x10}}
	if cc := jccConditionCode(short); cc != 0x4 {
		t.Errorf("short JE condition = %#x, want 0x4", cc)
	}

	// 0F 84 xx xx xx xx: JE, two-byte opcode form.
	long := &decodedInstruction{raw: []byte{0x0F, 0x84, 0, 0, 0, 0}}
	if cc := jccConditionCode(long); cc != 0x4 {
		t.Errorf("long JE condition = %#x, want 0x4", cc)
	}
}
