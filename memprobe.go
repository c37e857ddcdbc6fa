package zrex

// probeReadable implements spec §4.1: the greatest k <= limit such that
// bytes [address, address+k) are committed and readable, determined by
// walking successive host memory descriptors starting at address.
//
// This is advisory in the presence of concurrent mutators of the target's
// memory (another thread remapping or decommitting pages mid-probe); the
// engine accepts that race and treats a resulting decode-buffer overrun as
// a decode error rather than a crash, per spec §4.1's note.
func probeReadable(address uintptr, limit int) (int, error) {
	if limit <= 0 {
		return 0, nil
	}

	total := 0
	addr := address
	for total < limit {
		mbi, err := vmHost.queryDescriptor(addr)
		if err != nil {
			return 0, errBadSyscall("probeReadable", err)
		}

		if mbi.State != uint32(memStateCommit) || !readableProtection(mbi.Protect) {
			break
		}

		remaining := mbi.RegionSize - (addr - mbi.BaseAddress)
		total += int(remaining)
		addr = mbi.BaseAddress + mbi.RegionSize
	}

	if total > limit {
		total = limit
	}
	return total, nil
}
