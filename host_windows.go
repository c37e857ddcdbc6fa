//go:build windows

package zrex

import (
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

var unsafeSizeofMBI = unsafe.Sizeof(windows.MemoryBasicInformation{})

// host wraps the kernel32 virtual-memory services spec §6 lists as an
// external collaborator. The teacher reaches these through
// syscall.NewLazyDLL("kernel32.dll") + NewProc + Call; zrex instead binds
// them through golang.org/x/sys/windows's typed wrappers, the same
// replacement the pack's memmod_windows.go makes for the identical kernel32
// surface (VirtualAlloc/VirtualFree/VirtualProtect/VirtualQuery).
type host struct{}

var vmHost host

var (
	sysInfoOnce sync.Once
	sysInfo     windows.SystemInfo
)

func systemInfo() windows.SystemInfo {
	sysInfoOnce.Do(func() {
		windows.GetSystemInfo(&sysInfo)
	})
	return sysInfo
}

// allocationGranularity is the host allocation granule a region must be
// sized to and aligned on (spec §3/§9).
func (host) allocationGranularity() uintptr {
	return uintptr(systemInfo().AllocationGranularity)
}

// applicationAddressBounds returns the host's
// [lpMinimumApplicationAddress, lpMaximumApplicationAddress] window, used
// to clamp region-allocation candidates (spec §4.5 step 1).
func (host) applicationAddressBounds() (min, max uintptr) {
	info := systemInfo()
	return info.MinimumApplicationAddress, info.MaximumApplicationAddress
}

// queryDescriptor reports the MEMORY_BASIC_INFORMATION descriptor covering
// addr, as used by probe_readable (spec §4.1) and allocate_region
// (spec §4.5 step 3).
func (host) queryDescriptor(addr uintptr) (windows.MemoryBasicInformation, error) {
	var mbi windows.MemoryBasicInformation
	if err := windows.VirtualQuery(addr, &mbi, unsafeSizeofMBI); err != nil {
		return mbi, errBadSyscall("queryDescriptor", err)
	}
	return mbi, nil
}

// commitExecutableRegion reserves and commits exactly one allocation granule
// at base with EXECUTE_READWRITE protection (spec §4.5 step 3). Returns the
// committed base address, which the host may choose to differ from base if
// base was 0; zrex always passes a concrete non-zero base so the returned
// address equals base on success.
func (host) commitExecutableRegion(base uintptr, size uintptr) (uintptr, error) {
	addr, err := windows.VirtualAlloc(base, size, windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_EXECUTE_READWRITE)
	if err != nil {
		return 0, errBadSyscall("commitExecutableRegion", err)
	}
	return addr, nil
}

// releaseRegion releases a region previously obtained from
// commitExecutableRegion (spec §4.9 region teardown).
func (host) releaseRegion(base uintptr) error {
	if err := windows.VirtualFree(base, 0, windows.MEM_RELEASE); err != nil {
		return errBadSyscall("releaseRegion", err)
	}
	return nil
}

// protect changes the protection of size bytes at addr, returning the
// previous protection so callers can restore it (spec §4.6).
func (host) protect(addr uintptr, size uintptr, newProtect uint32) (old uint32, err error) {
	if perr := windows.VirtualProtect(addr, size, newProtect, &old); perr != nil {
		return 0, errBadSyscall("protect", perr)
	}
	return old, nil
}

// flushInstructionCache asks the host to synchronize the icache over a
// freshly written code range, carried over from the teacher's call after
// every trampoline/target write (spec.md is silent on this, SPEC_FULL.md
// Supplemented Features records why it is kept).
func (host) flushInstructionCache(addr uintptr, size uintptr) error {
	proc, err := windows.GetCurrentProcess()
	if err != nil {
		return errBadSyscall("flushInstructionCache", err)
	}
	if err := windows.FlushInstructionCache(proc, addr, size); err != nil {
		return errBadSyscall("flushInstructionCache", err)
	}
	return nil
}

const (
	protectExecuteRead      = windows.PAGE_EXECUTE_READ
	protectExecuteReadWrite = windows.PAGE_EXECUTE_READWRITE
	memStateFree            = windows.MEM_FREE
	memStateCommit          = windows.MEM_COMMIT
)

func readableProtection(protect uint32) bool {
	switch protect {
	case windows.PAGE_READONLY, windows.PAGE_READWRITE, windows.PAGE_WRITECOPY,
		windows.PAGE_EXECUTE_READ, windows.PAGE_EXECUTE_READWRITE, windows.PAGE_EXECUTE_WRITECOPY:
		return true
	default:
		return false
	}
}
