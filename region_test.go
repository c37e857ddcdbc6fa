package zrex

import "testing"

func TestInRange(t *testing.T) {
	target := uint64(0x140000000)

	tests := map[string]struct {
		addr uint64
		want bool
	}{
		"exact":        {target, true},
		"just_under":   {target + uint64(rangeOfRelativeJump), true},
		"one_over":     {target + uint64(rangeOfRelativeJump) + 1, false},
		"below_target": {target - 0x1000, true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := inRange(tc.addr, target); got != tc.want {
				t.Errorf("inRange(%#x, %#x) = %v, want %v", tc.addr, target, got, tc.want)
			}
		})
	}
}

func TestAlignUpDown(t *testing.T) {
	const granule = 0x10000

	if got := alignDown(0x12345, granule); got != 0x10000 {
		t.Errorf("alignDown = %#x, want %#x", got, 0x10000)
	}
	if got := alignDown(0x10000, granule); got != 0x10000 {
		t.Errorf("alignDown(aligned) = %#x, want %#x", got, 0x10000)
	}
	if got := alignUp(0x12345, granule); got != 0x20000 {
		t.Errorf("alignUp = %#x, want %#x", got, 0x20000)
	}
	if got := alignUp(0x20000, granule); got != 0x20000 {
		t.Errorf("alignUp(aligned) = %#x, want %#x", got, 0x20000)
	}
}

func TestRegionWithinRange(t *testing.T) {
	r := &region{base: 0x140000000, chunkCount: 4}
	lo := uint64(r.base) - 0x1000
	hi := uint64(r.base) + 0x1000
	if !r.withinRange(lo, hi) {
		t.Fatalf("withinRange should hold for a nearby [lo, hi]")
	}

	farLo := uint64(0)
	farHi := uint64(0)
	if rangeOfRelativeJump != 0xFFFFFFFF {
		// Only meaningful where range analysis genuinely bounds reach.
		if r.withinRange(farLo, farHi) {
			t.Fatalf("withinRange should fail for an address far outside reach")
		}
	}
}
