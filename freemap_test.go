package pintosfs

import "testing"

func TestFreeMapAllocateReleaseRoundTrip(t *testing.T) {
	fs, err := Format(NewMemDevice(64))
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	defer fs.Shutdown()

	before := fs.FreeSectors()

	s, ok := fs.freeMap.Allocate(3)
	if !ok {
		t.Fatalf("Allocate(3) failed")
	}
	if fs.FreeSectors() != before-3 {
		t.Fatalf("FreeSectors after allocate = %d, want %d", fs.FreeSectors(), before-3)
	}

	if err := fs.freeMap.Release(s, 3); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if fs.FreeSectors() != before {
		t.Fatalf("FreeSectors after release = %d, want %d", fs.FreeSectors(), before)
	}
}

func TestFreeMapAllocateFailsWhenExhausted(t *testing.T) {
	fs, err := Format(NewMemDevice(16))
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	defer fs.Shutdown()

	left := fs.FreeSectors()
	if _, ok := fs.freeMap.Allocate(left + 1); ok {
		t.Fatalf("Allocate(%d) succeeded with only %d free", left+1, left)
	}
}

func TestFreeMapPersistsAcrossMount(t *testing.T) {
	dev := NewMemDevice(32)
	fs, err := Format(dev)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	s, ok := fs.freeMap.Allocate(2)
	if !ok {
		t.Fatalf("Allocate: failed")
	}
	if err := fs.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	fs2, err := Mount(dev)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	defer fs2.Shutdown()

	// Allocating again must skip over the still-marked-used sectors.
	s2, ok := fs2.freeMap.Allocate(1)
	if !ok {
		t.Fatalf("Allocate after remount failed")
	}
	if s2 >= s && s2 < s+2 {
		t.Fatalf("remounted free map reused still-allocated sector %d", s2)
	}
}
