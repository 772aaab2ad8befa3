package pintosfs

import (
	"fmt"
	"log"
	"sync"
)

// CacheCapacity is C in the spec: the bounded number of resident cache
// entries.
const CacheCapacity = 64

// bitmapSector is the reserved sector holding the free-map inode. It is
// never chosen as an eviction victim.
const bitmapSector = 0

// cacheEntry is one resident buffer-cache slot.
type cacheEntry struct {
	sector   uint32
	valid    bool
	data     [SectorSize]byte
	dirty    bool
	useCount int
}

// Cache is the bounded, write-back buffer cache keyed by device
// sector (§4.1). Entries live in a plain slice rather than an
// intrusive linked list (REDESIGN FLAG, §9): the clock pointer is just
// an index into that slice.
type Cache struct {
	dev BlockDevice

	mu      sync.Mutex
	entries []cacheEntry
	index   map[uint32]int // sector -> slot, only for valid entries
	clock   int            // saved_victim
}

// NewCache creates a buffer cache of CacheCapacity entries in front of dev.
func NewCache(dev BlockDevice) *Cache {
	return &Cache{
		dev:     dev,
		entries: make([]cacheEntry, CacheCapacity),
		index:   make(map[uint32]int, CacheCapacity),
	}
}

// Handle is a scoped pin on a cache entry. Release unpins only on its
// first call and is a no-op afterwards; callers must call it on every
// exit path (the scoped
// wrapper removes the "use_count decrement missing on an error path"
// bug class named in §9).
type Handle struct {
	c        *Cache
	slot     int
	released bool
}

// Release unpins the entry, making it evictable again once no other
// handle holds it pinned.
func (h *Handle) Release() {
	if h == nil || h.released {
		return
	}
	h.released = true
	h.c.mu.Lock()
	h.c.entries[h.slot].useCount--
	h.c.mu.Unlock()
}

// Bytes returns the borrowed 512-byte view of the cached sector. The
// view is only valid while the handle is held (i.e. before Release).
func (h *Handle) Bytes() []byte {
	return h.c.entries[h.slot].data[:]
}

// Sector returns the device sector this handle refers to.
func (h *Handle) Sector() uint32 {
	return h.c.entries[h.slot].sector
}

// MarkDirty flags the entry dirty; it will be written back on eviction
// or FlushAll.
func (h *Handle) MarkDirty() {
	h.c.mu.Lock()
	h.c.entries[h.slot].dirty = true
	h.c.mu.Unlock()
}

// Get pins and returns a Handle onto the cached content of sector. On a
// miss it allocates a free slot or evicts via the clock algorithm, then
// synchronously reads the sector from the device.
func (c *Cache) Get(sector uint32) (*Handle, error) {
	c.mu.Lock()
	if slot, ok := c.index[sector]; ok {
		c.entries[slot].useCount++
		c.mu.Unlock()
		return &Handle{c: c, slot: slot}, nil
	}

	slot, err := c.allocSlotLocked(sector)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.mu.Unlock()
	return &Handle{c: c, slot: slot}, nil
}

// allocSlotLocked must be called with mu held. It returns a slot index
// already loaded with sector's content, pinned once, and registered in
// the index.
func (c *Cache) allocSlotLocked(sector uint32) (int, error) {
	slot := -1
	for i := range c.entries {
		if !c.entries[i].valid {
			slot = i
			break
		}
	}
	if slot == -1 {
		var err error
		slot, err = c.evictLocked()
		if err != nil {
			return 0, err
		}
	}

	var buf [SectorSize]byte
	if err := c.dev.ReadSector(sector, buf[:]); err != nil {
		return 0, err
	}

	c.entries[slot] = cacheEntry{sector: sector, valid: true, data: buf, dirty: false, useCount: 1}
	c.index[sector] = slot
	return slot, nil
}

// evictLocked runs the clock sweep and returns a free slot index, with
// the previous occupant's index entry removed and, if dirty, written
// back. Must be called with mu held.
func (c *Cache) evictLocked() (int, error) {
	n := len(c.entries)
	for i := 0; i < 2*n; i++ {
		slot := c.clock
		c.clock = (c.clock + 1) % n
		e := &c.entries[slot]
		if !e.valid {
			return slot, nil
		}
		if e.useCount > 0 || e.sector == bitmapSector {
			continue
		}
		if e.dirty {
			if err := c.dev.WriteSector(e.sector, e.data[:]); err != nil {
				return 0, err
			}
			log.Printf("pintosfs: cache evicted dirty sector %d", e.sector)
		}
		delete(c.index, e.sector)
		return slot, nil
	}
	return 0, fmt.Errorf("%w: no evictable cache entry (all pinned)", ErrDevice)
}

// ReadAt copies size bytes from the cached copy of sector, starting at
// offset, into dst. offset+size must not exceed SectorSize; callers are
// responsible for straddling sector boundaries.
func (c *Cache) ReadAt(sector uint32, dst []byte, size, offset int) error {
	h, err := c.Get(sector)
	if err != nil {
		return err
	}
	defer h.Release()
	copy(dst[:size], h.Bytes()[offset:offset+size])
	return nil
}

// WriteAt copies size bytes from src into the cached copy of sector at
// offset, and marks the entry dirty.
func (c *Cache) WriteAt(sector uint32, src []byte, size, offset int) error {
	h, err := c.Get(sector)
	if err != nil {
		return err
	}
	defer h.Release()
	copy(h.Bytes()[offset:offset+size], src[:size])
	h.MarkDirty()
	return nil
}

// FlushAll writes every dirty entry back to the device and clears their
// dirty bits.
func (c *Cache) FlushAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.entries {
		e := &c.entries[i]
		if e.valid && e.dirty {
			if err := c.dev.WriteSector(e.sector, e.data[:]); err != nil {
				return err
			}
			e.dirty = false
		}
	}
	return nil
}

// CloseInode walks the on-disk chain of the file inode at sector
// (through the cache itself), releases every referenced data sector,
// index sector, and the inode sector to fm, then drops the now-unused
// entries from the cache. Partial chain corruption is treated as a bug
// per §4.1: the chain is trusted to match length.
func (c *Cache) CloseInode(sector uint32, fm *FreeMap) error {
	var raw onDiskInode
	if err := c.readInode(sector, &raw); err != nil {
		return err
	}

	dataSectors := int((raw.Length + SectorSize - 1) / SectorSize)
	released := 0

	releaseOne := func(s uint32) error {
		if err := fm.Release(s, 1); err != nil {
			return err
		}
		c.dropLocked(s)
		released++
		return nil
	}

	n := dataSectors
	if n > maxDirect {
		n = maxDirect
	}
	for i := 0; i < n; i++ {
		if raw.Direct[i] != 0 {
			if err := releaseOne(raw.Direct[i]); err != nil {
				return err
			}
		}
	}

	if dataSectors > maxDirect {
		if raw.Indirect != 0 {
			var blk indexBlock
			if err := c.readIndexBlock(raw.Indirect, &blk); err != nil {
				return err
			}
			remain := dataSectors - maxDirect
			if remain > entriesPerIndex {
				remain = entriesPerIndex
			}
			for i := 0; i < remain; i++ {
				if blk[i] != 0 {
					if err := releaseOne(blk[i]); err != nil {
						return err
					}
				}
			}
			if err := releaseOne(raw.Indirect); err != nil {
				return err
			}
		}
	}

	if dataSectors > maxDirect+entriesPerIndex {
		if raw.DoublyIndirect != 0 {
			var root indexBlock
			if err := c.readIndexBlock(raw.DoublyIndirect, &root); err != nil {
				return err
			}
			remainLeaves := dataSectors - maxDirect - entriesPerIndex
			leafCount := (remainLeaves + entriesPerIndex - 1) / entriesPerIndex
			for j := 0; j < leafCount; j++ {
				if root[j] == 0 {
					continue
				}
				var leaf indexBlock
				if err := c.readIndexBlock(root[j], &leaf); err != nil {
					return err
				}
				inThisLeaf := remainLeaves - j*entriesPerIndex
				if inThisLeaf > entriesPerIndex {
					inThisLeaf = entriesPerIndex
				}
				for k := 0; k < inThisLeaf; k++ {
					if leaf[k] != 0 {
						if err := releaseOne(leaf[k]); err != nil {
							return err
						}
					}
				}
				if err := releaseOne(root[j]); err != nil {
					return err
				}
			}
			if err := releaseOne(raw.DoublyIndirect); err != nil {
				return err
			}
		}
	}

	if err := fm.Release(sector, 1); err != nil {
		return err
	}
	c.dropLocked(sector)

	return nil
}

// dropLocked removes sector from the cache if resident, without
// writing it back (the sector is about to be reused; see §9 Open
// Question: "release without flushing").
func (c *Cache) dropLocked(sector uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	slot, ok := c.index[sector]
	if !ok {
		return
	}
	delete(c.index, sector)
	c.entries[slot] = cacheEntry{}
}
