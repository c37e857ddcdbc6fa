package zrex

import "testing"

// fakeRegion builds a region with only base set, enough to exercise
// directory ordering without touching the header overlay (which requires
// real mapped memory).
func fakeRegion(base uintptr) *region {
	return &region{base: base}
}

func TestDirectoryInsertKeepsSortedOrder(t *testing.T) {
	var d directory

	bases := []uintptr{0x300000, 0x100000, 0x500000, 0x200000, 0x400000}
	for _, b := range bases {
		d.insert(fakeRegion(b))
	}

	if len(d.regions) != len(bases) {
		t.Fatalf("len = %d, want %d", len(d.regions), len(bases))
	}
	for i := 1; i < len(d.regions); i++ {
		if d.regions[i-1].base > d.regions[i].base {
			t.Fatalf("regions not sorted at index %d: %#x > %#x", i, d.regions[i-1].base, d.regions[i].base)
		}
	}
}

func TestDirectoryIndexOf(t *testing.T) {
	var d directory
	d.insert(fakeRegion(0x100000))
	d.insert(fakeRegion(0x300000))
	d.insert(fakeRegion(0x500000))

	if i := d.indexOf(0x300000); i != 1 {
		t.Errorf("indexOf(exact match) = %d, want 1", i)
	}
	if i := d.indexOf(0x200000); i != 1 {
		t.Errorf("indexOf(insertion point) = %d, want 1", i)
	}
	if i := d.indexOf(0x600000); i != 3 {
		t.Errorf("indexOf(past end) = %d, want 3", i)
	}
}

func TestDirectoryRemove(t *testing.T) {
	var d directory
	a := fakeRegion(0x100000)
	b := fakeRegion(0x200000)
	c := fakeRegion(0x300000)
	d.insert(a)
	d.insert(b)
	d.insert(c)

	d.remove(b)

	if len(d.regions) != 2 {
		t.Fatalf("len after remove = %d, want 2", len(d.regions))
	}
	if d.regions[0] != a || d.regions[1] != c {
		t.Fatalf("remaining regions = %v, want [a, c]", d.regions)
	}
}

func TestDirectoryEmpty(t *testing.T) {
	var d directory
	if !d.empty() {
		t.Fatalf("fresh directory reports non-empty")
	}
	d.insert(fakeRegion(0x100000))
	if d.empty() {
		t.Fatalf("non-empty directory reports empty")
	}
}
