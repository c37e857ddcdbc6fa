package zrex

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies the failure modes a trampoline operation can report.
// It mirrors the taxonomy the engine distinguishes internally rather than
// Go's usual sentinel-error-per-case style, since several call sites need to
// branch on "which broad class of thing went wrong" without caring about the
// exact wrapped cause.
type Kind int

const (
	// KindInvalidArgument marks a nil pointer or zero min_bytes_to_reloc.
	KindInvalidArgument Kind = iota + 1
	// KindInvalidOperation marks a too-short readable region or use of the
	// engine before it has lazily initialized.
	KindInvalidOperation
	// KindOutOfRange marks a failed ±2GiB region placement or an
	// un-rewritable relative operand.
	KindOutOfRange
	// KindDecodeFailed marks decoder rejection of the prologue bytes.
	KindDecodeFailed
	// KindBadSyscall marks a failed host kernel operation.
	KindBadSyscall
	// KindFailed is the generic case: a rewrite was required but its flag
	// was disabled.
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid argument"
	case KindInvalidOperation:
		return "invalid operation"
	case KindOutOfRange:
		return "out of range"
	case KindDecodeFailed:
		return "decode failed"
	case KindBadSyscall:
		return "bad syscall"
	case KindFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Error is the error type every exported zrex operation returns on failure.
type Error struct {
	Kind Kind
	Op   string
	err  error
}

func (e *Error) Error() string {
	if e.err == nil {
		return fmt.Sprintf("zrex: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("zrex: %s: %s: %v", e.Op, e.Kind, e.err)
}

func (e *Error) Unwrap() error { return e.err }

// newErr wraps cause (which may be nil) with a stack-annotated context, so
// that %+v formatting of the top-level error carries a trace back to the
// call site that first observed the failure.
func newErr(op string, kind Kind, cause error) *Error {
	var wrapped error
	if cause != nil {
		wrapped = errors.WithStack(cause)
	} else {
		wrapped = errors.New(kind.String())
	}
	return &Error{Kind: kind, Op: op, err: wrapped}
}

func errInvalidArgument(op string, cause error) error  { return newErr(op, KindInvalidArgument, cause) }
func errInvalidOperation(op string, cause error) error { return newErr(op, KindInvalidOperation, cause) }
func errOutOfRange(op string, cause error) error       { return newErr(op, KindOutOfRange, cause) }
func errDecodeFailed(op string, cause error) error     { return newErr(op, KindDecodeFailed, cause) }
func errBadSyscall(op string, cause error) error       { return newErr(op, KindBadSyscall, cause) }
func errFailed(op string, cause error) error           { return newErr(op, KindFailed, cause) }

// As reports whether err is (or wraps) a *Error, and if so returns it.
func As(err error) (*Error, bool) {
	var zerr *Error
	if errors.As(err, &zerr) {
		return zerr, true
	}
	return nil, false
}
