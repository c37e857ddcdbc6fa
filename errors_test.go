package zrex

import (
	"errors"
	"testing"
)

func TestErrorKindOpAndCause(t *testing.T) {
	cause := errors.New("boom")
	err := errOutOfRange("Create", cause)

	zerr, ok := As(err)
	if !ok {
		t.Fatalf("As() = false, want true for a *Error")
	}
	if zerr.Kind != KindOutOfRange {
		t.Errorf("Kind = %v, want KindOutOfRange", zerr.Kind)
	}
	if zerr.Op != "Create" {
		t.Errorf("Op = %q, want %q", zerr.Op, "Create")
	}
	if !errors.Is(err, cause) {
		t.Errorf("Unwrap() should chain back to the wrapped cause")
	}
}

func TestErrorWithNilCause(t *testing.T) {
	err := errFailed("emitCall", nil)
	zerr, ok := As(err)
	if !ok {
		t.Fatalf("As() = false, want true")
	}
	if zerr.Kind != KindFailed {
		t.Errorf("Kind = %v, want KindFailed", zerr.Kind)
	}
	if zerr.Error() == "" {
		t.Errorf("Error() returned empty string")
	}
}

func TestKindString(t *testing.T) {
	tests := map[Kind]string{
		KindInvalidArgument:  "invalid argument",
		KindInvalidOperation: "invalid operation",
		KindOutOfRange:       "out of range",
		KindDecodeFailed:     "decode failed",
		KindBadSyscall:       "bad syscall",
		KindFailed:           "failed",
		Kind(999):            "unknown",
	}
	for k, want := range tests {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}

func TestAsRejectsPlainError(t *testing.T) {
	if _, ok := As(errors.New("plain")); ok {
		t.Fatalf("As() = true for a plain error, want false")
	}
}
