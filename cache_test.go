package pintosfs

import (
	"errors"
	"testing"
)

func TestCacheReadWriteRoundTrip(t *testing.T) {
	dev := NewMemDevice(4)
	c := NewCache(dev)

	src := []byte("hello, sector")
	if err := c.WriteAt(2, src, len(src), 0); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	dst := make([]byte, len(src))
	if err := c.ReadAt(2, dst, len(dst), 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(dst) != string(src) {
		t.Fatalf("round-trip mismatch: got %q, want %q", dst, src)
	}
}

func TestCacheEvictionWritesBackDirty(t *testing.T) {
	dev := NewMemDevice(CacheCapacity + 2)
	c := NewCache(dev)

	// Dirty more sectors than the cache can hold; eviction must write
	// each victim back, so every sector no longer resident in the cache
	// has its new content on the device regardless of which entries got
	// evicted. Sectors still resident stay dirty in the cache until a
	// FlushAll.
	for s := uint32(1); s < uint32(CacheCapacity)+2; s++ {
		if err := c.WriteAt(s, []byte{byte(s)}, 1, 0); err != nil {
			t.Fatalf("WriteAt(%d): %v", s, err)
		}
	}

	var buf [SectorSize]byte
	evicted := 0
	for s := uint32(1); s < uint32(CacheCapacity)+2; s++ {
		if _, resident := c.index[s]; resident {
			continue
		}
		evicted++
		if err := dev.ReadSector(s, buf[:]); err != nil {
			t.Fatalf("ReadSector(%d): %v", s, err)
		}
		if buf[0] != byte(s) {
			t.Fatalf("sector %d: device has %d, want %d (eviction did not write back)", s, buf[0], s)
		}
	}
	if evicted == 0 {
		t.Fatalf("no sector was evicted")
	}
}

func TestCacheNeverEvictsBitmapSector(t *testing.T) {
	dev := NewMemDevice(CacheCapacity * 2)
	c := NewCache(dev)

	// Load sector 0 (the bitmap sector) first and release it, so it is
	// resident but unpinned: only the bitmap rule keeps it in the cache.
	h0, err := c.Get(bitmapSector)
	if err != nil {
		t.Fatalf("Get(0): %v", err)
	}
	h0.Release()

	// Touch enough other sectors to force multiple eviction sweeps.
	for s := uint32(1); s < uint32(CacheCapacity)*2; s++ {
		h, err := c.Get(s)
		if err != nil {
			t.Fatalf("Get(%d): %v", s, err)
		}
		h.Release()
	}

	if _, ok := c.index[bitmapSector]; !ok {
		t.Fatalf("bitmap sector was evicted from cache")
	}
}

func TestCacheGetPropagatesDeviceError(t *testing.T) {
	dev := NewMemDevice(4)
	injected := errors.New("boom")
	inj := &errInjector{BlockDevice: dev, failAt: 2, failErr: injected}
	c := NewCache(inj)

	if _, err := c.Get(2); !errors.Is(err, injected) {
		t.Fatalf("Get(2) error = %v, want %v", err, injected)
	}
	if _, err := c.Get(1); err != nil {
		t.Fatalf("Get(1) (below failAt) unexpected error: %v", err)
	}
}
