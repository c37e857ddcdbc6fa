package zrex

import "testing"

func TestTranslationMapAppendAndFull(t *testing.T) {
	var m translationMap

	if m.full() {
		t.Fatalf("fresh map reports full")
	}

	for i := 0; i < translationMapCapacity; i++ {
		m.append(i, i*2)
	}
	if !m.full() {
		t.Fatalf("map at capacity reports not full")
	}
	if m.len() != translationMapCapacity {
		t.Fatalf("len = %d, want %d", m.len(), translationMapCapacity)
	}

	first := m.at(0)
	if first.offsetSource != 0 || first.offsetDestination != 0 {
		t.Errorf("item 0 = %+v, want {0 0}", first)
	}
	last := m.at(translationMapCapacity - 1)
	wantLast := translationItem{
		offsetSource:      uint8(translationMapCapacity - 1),
		offsetDestination: uint8((translationMapCapacity - 1) * 2),
	}
	if last != wantLast {
		t.Errorf("last item = %+v, want %+v", last, wantLast)
	}
}

func TestTranslationMapReset(t *testing.T) {
	var m translationMap
	m.append(1, 2)
	m.reset()
	if m.len() != 0 {
		t.Fatalf("len after reset = %d, want 0", m.len())
	}
	if m.full() {
		t.Fatalf("empty map reports full")
	}
}

func TestRegionHeaderFitsInChunk(t *testing.T) {
	if sizeofRegionHeader > sizeofChunk {
		t.Fatalf("region header (%d bytes) does not fit a chunk slot (%d bytes)", sizeofRegionHeader, sizeofChunk)
	}
}
