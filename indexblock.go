package pintosfs

import "encoding/binary"

// entriesPerIndex is the number of sector indices packed into one
// index block (a single 512-byte sector of 128 little-endian uint32s).
const entriesPerIndex = SectorSize / 4

// indexBlock is the in-memory decode of an on-disk index block: 128
// sector indices, no other fields (§3).
type indexBlock [entriesPerIndex]uint32

func (b *indexBlock) marshal() []byte {
	buf := make([]byte, SectorSize)
	for i, v := range b {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return buf
}

func (b *indexBlock) unmarshal(buf []byte) {
	for i := range b {
		b[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
}

// readIndexBlock reads and decodes the index block at sector through
// the cache.
func (c *Cache) readIndexBlock(sector uint32, blk *indexBlock) error {
	h, err := c.Get(sector)
	if err != nil {
		return err
	}
	defer h.Release()
	blk.unmarshal(h.Bytes())
	return nil
}

// writeIndexBlock encodes and writes blk to sector through the cache,
// marking the entry dirty.
func (c *Cache) writeIndexBlock(sector uint32, blk *indexBlock) error {
	h, err := c.Get(sector)
	if err != nil {
		return err
	}
	defer h.Release()
	copy(h.Bytes(), blk.marshal())
	h.MarkDirty()
	return nil
}

// zeroSector writes 512 zero bytes to sector through the cache,
// marking the entry dirty. Used to zero-fill newly allocated data and
// index sectors.
func (c *Cache) zeroSector(sector uint32) error {
	h, err := c.Get(sector)
	if err != nil {
		return err
	}
	defer h.Release()
	var zero [SectorSize]byte
	copy(h.Bytes(), zero[:])
	h.MarkDirty()
	return nil
}
