// Package zrex implements the trampoline engine of an inline
// function-hooking library for x86 and x86-64: given a target function and
// a callback, it builds an executable trampoline holding a relocated copy
// of the target's first bytes followed by a jump back to the first
// un-relocated byte. Patching the target's own entry to redirect to the
// callback is an outer hook layer's job, not this package's.
package zrex

import "errors"

var (
	errNilTarget      = errors.New("target is nil")
	errNilTrampoline  = errors.New("trampoline is nil")
	errZeroMinBytes   = errors.New("min_bytes_to_reloc must be at least 1")
)

// Flags controls which relative-instruction rewrite classes Create(Ex) may
// perform (spec §4.8/§6).
type Flags uint32

const (
	// FlagRewriteCall permits relocating a relative or RIP-relative-memory
	// indirect CALL.
	FlagRewriteCall Flags = 1 << iota
	// FlagRewriteJcxz permits relocating JCXZ/JECXZ/JRCXZ.
	FlagRewriteJcxz
	// FlagRewriteLoop permits relocating LOOP/LOOPE/LOOPNE.
	FlagRewriteLoop
)

// DefaultFlags enables every rewrite class; Create uses this.
const DefaultFlags = FlagRewriteCall | FlagRewriteJcxz | FlagRewriteLoop

// Trampoline is the handle returned by a successful Create(Ex): at minimum
// a runtime address a caller may jump to, which executes the relocated
// prologue and falls through into the original function's first
// un-relocated byte (spec §6).
type Trampoline struct {
	// Address is the runtime address of the relocated prologue.
	Address uintptr

	target uint64
	region *region
	chunk  *trampolineChunk
}

// Create builds a trampoline for target that eventually falls through to
// the first instruction boundary at or after min_bytes_to_reloc bytes into
// target, with every rewrite class enabled (spec §4.8).
func Create(target, callback uintptr, minBytesToReloc int) (*Trampoline, error) {
	return CreateEx(target, callback, minBytesToReloc, DefaultFlags)
}

// CreateEx is Create with explicit control over which relative-instruction
// rewrite classes are permitted (spec §4.8).
func CreateEx(target, callback uintptr, minBytesToReloc int, flags Flags) (*Trampoline, error) {
	if target == 0 {
		return nil, errInvalidArgument("Create", errNilTarget)
	}
	if minBytesToReloc < 1 {
		return nil, errInvalidArgument("Create", errZeroMinBytes)
	}
	return engineCreate(uint64(target), uint64(callback), minBytesToReloc, flags)
}

// Free releases t's chunk back to its owning region, releasing the region
// itself once it has no live chunks left (spec §4.8/§4.9).
func Free(t *Trampoline) error {
	if t == nil {
		return errInvalidArgument("Free", errNilTrampoline)
	}
	return engineFree(t)
}
