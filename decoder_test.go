package zrex

import (
	"testing"

	"golang.org/x/arch/x86/x86asm"
)

func TestDecodeAtPrologue(t *testing.T) {
	// push rbp; mov rbp, rsp; sub rsp, 0x20
	buf := []byte{0x55, 0x48, 0x89, 0xE5, 0x48, 0x83, 0xEC, 0x20}

	tests := []struct {
		offset     int
		wantLength int
		wantClass  mnemonicClass
	}{
		{0, 1, classOther},
		{1, 3, classOther},
		{4, 4, classOther},
	}

	for _, tc := range tests {
		inst, err := decodeAt(buf[tc.offset:], 64)
		if err != nil {
			t.Fatalf("decodeAt(offset=%d): %v", tc.offset, err)
		}
		if inst.length != tc.wantLength {
			t.Errorf("offset %d: length = %d, want %d", tc.offset, inst.length, tc.wantLength)
		}
		if inst.class != tc.wantClass {
			t.Errorf("offset %d: class = %v, want %v", tc.offset, inst.class, tc.wantClass)
		}
		if inst.isRelative {
			t.Errorf("offset %d: isRelative = true, want false", tc.offset)
		}
	}
}

func TestDecodeAtShortJmp(t *testing.T) {
	inst, err := decodeAt([]byte{0xEB, 0x10}, 64)
	if err != nil {
		t.Fatalf("decodeAt: %v", err)
	}
	if inst.op != x86asm.JMP {
		t.Fatalf("op = %v, want JMP", inst.op)
	}
	if inst.class != classJmp {
		t.Fatalf("class = %v, want classJmp", inst.class)
	}
	if !inst.isRelative || inst.relWidth != 1 {
		t.Fatalf("isRelative=%v relWidth=%d, want true/1", inst.isRelative, inst.relWidth)
	}

	target, err := absoluteTarget(inst, 0x401000)
	if err != nil {
		t.Fatalf("absoluteTarget: %v", err)
	}
	if want := uint64(0x401000 + 2 + 0x10); target != want {
		t.Errorf("target = %#x, want %#x", target, want)
	}
}

func TestDecodeAtJrcxz(t *testing.T) {
	inst, err := decodeAt([]byte{0xE3, 0x05}, 64)
	if err != nil {
		t.Fatalf("decodeAt: %v", err)
	}
	if inst.class != classJcxz {
		t.Fatalf("class = %v, want classJcxz", inst.class)
	}
}

func TestAbsoluteTargetRejectsNonRelative(t *testing.T) {
	inst, err := decodeAt([]byte{0x55}, 64)
	if err != nil {
		t.Fatalf("decodeAt: %v", err)
	}
	if _, err := absoluteTarget(inst, 0x1000); err != errNotRelative {
		t.Fatalf("err = %v, want errNotRelative", err)
	}
}
