package pintosfs

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// onDiskMagic verifies the structure of an on-disk inode sector.
const onDiskMagic = 0x494e4f44

// maxDirect is the number of direct data-block references held inline
// in an on-disk inode (123 in the spec).
const maxDirect = 123

// MaxFileSize is the addressing limit of the index tree: 123 direct +
// 128 single-indirect + 128*128 doubly-indirect blocks.
const MaxFileSize = (maxDirect + entriesPerIndex + entriesPerIndex*entriesPerIndex) * SectorSize

// InodeType distinguishes a file inode from a directory inode.
type InodeType uint32

const (
	FileInode InodeType = 1
	DirInode  InodeType = 2
)

// onDiskInode is the exact, byte-for-byte layout of §3's on-disk inode:
// length(4) + type(4) + direct[123](492) + indirect(4) +
// doubly_indirect(4) + magic(4) = 512 bytes, one sector. Encoded with
// explicit encoding/binary field writes (not reflection or gob) so two
// independent implementations agree on the wire format bit for bit.
type onDiskInode struct {
	Length         uint32
	Type           uint32
	Direct         [maxDirect]uint32
	Indirect       uint32
	DoublyIndirect uint32
	Magic          uint32
}

func (o *onDiskInode) marshal() []byte {
	buf := make([]byte, SectorSize)
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], o.Length)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], o.Type)
	off += 4
	for _, d := range o.Direct {
		binary.LittleEndian.PutUint32(buf[off:], d)
		off += 4
	}
	binary.LittleEndian.PutUint32(buf[off:], o.Indirect)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], o.DoublyIndirect)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], o.Magic)
	return buf
}

func (o *onDiskInode) unmarshal(buf []byte) {
	off := 0
	o.Length = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	o.Type = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	for i := range o.Direct {
		o.Direct[i] = binary.LittleEndian.Uint32(buf[off:])
		off += 4
	}
	o.Indirect = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	o.DoublyIndirect = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	o.Magic = binary.LittleEndian.Uint32(buf[off:])
}

// readInode reads and decodes the on-disk inode at sector through the
// cache, verifying the magic.
func (c *Cache) readInode(sector uint32, out *onDiskInode) error {
	h, err := c.Get(sector)
	if err != nil {
		return err
	}
	defer h.Release()
	out.unmarshal(h.Bytes())
	if out.Magic != onDiskMagic {
		return fmt.Errorf("%w: sector %d", ErrBadMagic, sector)
	}
	return nil
}

// writeInode encodes and writes raw to sector through the cache,
// marking the entry dirty.
func (c *Cache) writeInode(sector uint32, raw *onDiskInode) error {
	h, err := c.Get(sector)
	if err != nil {
		return err
	}
	defer h.Release()
	copy(h.Bytes(), raw.marshal())
	h.MarkDirty()
	return nil
}

// Inode is the in-memory descriptor for an open inode (§3). It never
// caches on-disk content itself; length and index-chain reads always go
// through the buffer cache. The extension lock serializes length
// changes and path-walk reads that must observe a consistent chain.
type Inode struct {
	fs     *Filesystem
	sector uint32
	kind   InodeType

	mu             sync.Mutex // guards openCount, removed, denyWriteCount below
	openCount      int
	removed        bool
	denyWriteCount int

	extLock sync.Mutex
}

// Sector returns the inode's owning sector number.
func (ino *Inode) Sector() uint32 { return ino.sector }

// Kind returns whether this inode is a file or a directory.
func (ino *Inode) Kind() InodeType { return ino.kind }

// sectorsNeeded computes how many sectors (data + index overhead) an
// inode of dataSectors data blocks requires, per §4.3's Create step 1.
func sectorsNeeded(dataSectors int) int {
	total := dataSectors
	if dataSectors > maxDirect {
		total++ // single indirect block
	}
	if dataSectors > maxDirect+entriesPerIndex {
		remain := dataSectors - maxDirect - entriesPerIndex
		leaves := (remain + entriesPerIndex - 1) / entriesPerIndex
		total += leaves + 1 // doubly-indirect leaves plus the root
	}
	return total
}

// buildChain lays out the data and index blocks for dataSectors worth
// of content, drawing sectors from alloc (which may be the free map's
// Allocate, or a bump allocator during bootstrap), zero-filling each
// data sector through the cache. It returns the direct/indirect/
// doubly-indirect fields of the owning on-disk inode.
func buildChain(cache *Cache, alloc func(n uint32) (uint32, bool), dataSectors int) (direct [maxDirect]uint32, indirect, doublyIndirect uint32, err error) {
	var dataFirst uint32
	directCount := dataSectors
	if directCount > maxDirect {
		directCount = maxDirect
	}
	if dataSectors > 0 {
		first, ok := alloc(uint32(dataSectors))
		if !ok {
			return direct, 0, 0, ErrNoSpace
		}
		dataFirst = first
		for i := 0; i < dataSectors; i++ {
			if err := cache.zeroSector(dataFirst + uint32(i)); err != nil {
				return direct, 0, 0, err
			}
		}
		for i := 0; i < directCount; i++ {
			direct[i] = dataFirst + uint32(i)
		}
	}

	if dataSectors > maxDirect {
		indirectSector, ok := alloc(1)
		if !ok {
			return direct, 0, 0, ErrNoSpace
		}
		var blk indexBlock
		remain := dataSectors - maxDirect
		if remain > entriesPerIndex {
			remain = entriesPerIndex
		}
		for i := 0; i < remain; i++ {
			blk[i] = dataFirst + uint32(maxDirect+i)
		}
		if err := cache.writeIndexBlock(indirectSector, &blk); err != nil {
			return direct, 0, 0, err
		}
		indirect = indirectSector
	}

	if dataSectors > maxDirect+entriesPerIndex {
		rootSector, ok := alloc(1)
		if !ok {
			return direct, 0, 0, ErrNoSpace
		}
		var root indexBlock
		remainLeaves := dataSectors - maxDirect - entriesPerIndex
		leafCount := (remainLeaves + entriesPerIndex - 1) / entriesPerIndex
		for j := 0; j < leafCount; j++ {
			leafSector, ok := alloc(1)
			if !ok {
				return direct, 0, 0, ErrNoSpace
			}
			var leaf indexBlock
			base := maxDirect + entriesPerIndex + j*entriesPerIndex
			inThisLeaf := remainLeaves - j*entriesPerIndex
			if inThisLeaf > entriesPerIndex {
				inThisLeaf = entriesPerIndex
			}
			for k := 0; k < inThisLeaf; k++ {
				leaf[k] = dataFirst + uint32(base+k)
			}
			if err := cache.writeIndexBlock(leafSector, &leaf); err != nil {
				return direct, 0, 0, err
			}
			root[j] = leafSector
		}
		if err := cache.writeIndexBlock(rootSector, &root); err != nil {
			return direct, 0, 0, err
		}
		doublyIndirect = rootSector
	}

	return direct, indirect, doublyIndirect, nil
}

// CreateInode lays out a new on-disk inode at sector with enough
// back-store to hold lengthBytes, per §4.3 Create. All newly allocated
// data sectors are zero-filled through the cache.
func (fs *Filesystem) CreateInode(sector uint32, lengthBytes int64, kind InodeType) error {
	dataSectors := int((lengthBytes + SectorSize - 1) / SectorSize)
	need := sectorsNeeded(dataSectors)

	if need > 0 && int(fs.freeMap.Left()) < need {
		return ErrNoSpace
	}

	raw := onDiskInode{Length: uint32(lengthBytes), Type: uint32(kind), Magic: onDiskMagic}

	direct, indirect, doublyIndirect, err := buildChain(fs.cache, fs.freeMap.Allocate, dataSectors)
	if err != nil {
		return err
	}
	raw.Direct = direct
	raw.Indirect = indirect
	raw.DoublyIndirect = doublyIndirect

	return fs.cache.writeInode(sector, &raw)
}

// OpenInode finds or creates the in-memory handle for sector,
// incrementing its open count (§4.3 open / reopen).
func (fs *Filesystem) OpenInode(sector uint32) (*Inode, error) {
	fs.openMu.Lock()
	defer fs.openMu.Unlock()

	if ino, ok := fs.openInodes[sector]; ok {
		ino.mu.Lock()
		ino.openCount++
		ino.mu.Unlock()
		return ino, nil
	}

	var raw onDiskInode
	if err := fs.cache.readInode(sector, &raw); err != nil {
		return nil, err
	}

	ino := &Inode{fs: fs, sector: sector, kind: InodeType(raw.Type), openCount: 1}
	fs.openInodes[sector] = ino
	return ino, nil
}

// Reopen increments the open count of an already-held inode.
func (ino *Inode) Reopen() *Inode {
	ino.mu.Lock()
	ino.openCount++
	ino.mu.Unlock()
	return ino
}

// Close decrements the open count; when it reaches zero the in-memory
// handle is dropped and, if the inode was removed, its sectors are
// returned to the free map.
func (ino *Inode) Close() error {
	ino.mu.Lock()
	ino.openCount--
	openCount := ino.openCount
	removed := ino.removed
	ino.mu.Unlock()

	if openCount > 0 {
		return nil
	}

	fs := ino.fs
	fs.openMu.Lock()
	delete(fs.openInodes, ino.sector)
	fs.openMu.Unlock()

	if removed {
		return fs.cache.CloseInode(ino.sector, fs.freeMap)
	}
	return nil
}

// Remove sets the removed flag; deallocation is deferred to the final
// Close (§4.3 remove).
func (ino *Inode) Remove() {
	ino.mu.Lock()
	ino.removed = true
	ino.mu.Unlock()
}

// Length returns the on-disk length, read through the cache.
func (ino *Inode) Length() (uint32, error) {
	var raw onDiskInode
	if err := ino.fs.cache.readInode(ino.sector, &raw); err != nil {
		return 0, err
	}
	return raw.Length, nil
}

// DenyWrite increments the deny-write count.
func (ino *Inode) DenyWrite() {
	ino.mu.Lock()
	ino.denyWriteCount++
	ino.mu.Unlock()
}

// AllowWrite decrements the deny-write count.
func (ino *Inode) AllowWrite() {
	ino.mu.Lock()
	if ino.denyWriteCount > 0 {
		ino.denyWriteCount--
	}
	ino.mu.Unlock()
}

func (ino *Inode) writeDenied() bool {
	ino.mu.Lock()
	defer ino.mu.Unlock()
	return ino.denyWriteCount > 0
}

// translate returns the device sector holding logical block index i of
// ino, reading whatever index blocks are needed through the cache.
func (ino *Inode) translate(raw *onDiskInode, i uint32) (uint32, error) {
	if i < maxDirect {
		return raw.Direct[i], nil
	}
	i -= maxDirect
	if i < entriesPerIndex {
		if raw.Indirect == 0 {
			return 0, nil
		}
		var blk indexBlock
		if err := ino.fs.cache.readIndexBlock(raw.Indirect, &blk); err != nil {
			return 0, err
		}
		return blk[i], nil
	}
	i -= entriesPerIndex
	if raw.DoublyIndirect == 0 {
		return 0, nil
	}
	j, k := i/entriesPerIndex, i%entriesPerIndex
	var root indexBlock
	if err := ino.fs.cache.readIndexBlock(raw.DoublyIndirect, &root); err != nil {
		return 0, err
	}
	if root[j] == 0 {
		return 0, nil
	}
	var leaf indexBlock
	if err := ino.fs.cache.readIndexBlock(root[j], &leaf); err != nil {
		return 0, err
	}
	return leaf[k], nil
}

// extend grows ino's back-store and length to cover newEndByte,
// allocating and zero-filling data and index sectors as needed (§4.3
// extend). Must be called with ino.extLock held.
func (ino *Inode) extend(newEndByte uint32) error {
	var raw onDiskInode
	if err := ino.fs.cache.readInode(ino.sector, &raw); err != nil {
		return err
	}

	cur := int((raw.Length + SectorSize - 1) / SectorSize)
	need := int((newEndByte + SectorSize - 1) / SectorSize)
	if need <= cur {
		if newEndByte > raw.Length {
			raw.Length = newEndByte
			return ino.fs.cache.writeInode(ino.sector, &raw)
		}
		return nil
	}

	fm := ino.fs.freeMap
	var indirectBlk indexBlock
	indirectLoaded := false
	var rootBlk indexBlock
	rootLoaded := false
	rootDirty := false

	loadIndirect := func() error {
		if indirectLoaded {
			return nil
		}
		if raw.Indirect != 0 {
			if err := ino.fs.cache.readIndexBlock(raw.Indirect, &indirectBlk); err != nil {
				return err
			}
		}
		indirectLoaded = true
		return nil
	}
	loadRoot := func() error {
		if rootLoaded {
			return nil
		}
		if raw.DoublyIndirect != 0 {
			if err := ino.fs.cache.readIndexBlock(raw.DoublyIndirect, &rootBlk); err != nil {
				return err
			}
		}
		rootLoaded = true
		return nil
	}

	curLeafIdx := -1
	var curLeaf indexBlock
	curLeafDirty := false
	flushLeaf := func() error {
		if curLeafIdx >= 0 && curLeafDirty {
			if err := ino.fs.cache.writeIndexBlock(rootBlk[curLeafIdx], &curLeaf); err != nil {
				return err
			}
		}
		curLeafDirty = false
		return nil
	}

	for idx := cur; idx < need; idx++ {
		dataSector, ok := fm.Allocate(1)
		if !ok {
			return ErrNoSpace
		}
		if err := ino.fs.cache.zeroSector(dataSector); err != nil {
			return err
		}

		switch {
		case idx < maxDirect:
			raw.Direct[idx] = dataSector

		case idx < maxDirect+entriesPerIndex:
			if raw.Indirect == 0 {
				s, ok := fm.Allocate(1)
				if !ok {
					return ErrNoSpace
				}
				raw.Indirect = s
				indirectBlk = indexBlock{}
				indirectLoaded = true
			} else if err := loadIndirect(); err != nil {
				return err
			}
			indirectBlk[idx-maxDirect] = dataSector
			if err := ino.fs.cache.writeIndexBlock(raw.Indirect, &indirectBlk); err != nil {
				return err
			}

		default:
			if raw.DoublyIndirect == 0 {
				s, ok := fm.Allocate(1)
				if !ok {
					return ErrNoSpace
				}
				raw.DoublyIndirect = s
				rootBlk = indexBlock{}
				rootLoaded = true
			} else if err := loadRoot(); err != nil {
				return err
			}

			rel := idx - maxDirect - entriesPerIndex
			j, k := rel/entriesPerIndex, rel%entriesPerIndex

			if j != curLeafIdx {
				if err := flushLeaf(); err != nil {
					return err
				}
				curLeafIdx = j
				if rootBlk[j] == 0 {
					s, ok := fm.Allocate(1)
					if !ok {
						return ErrNoSpace
					}
					rootBlk[j] = s
					curLeaf = indexBlock{}
					rootDirty = true
				} else {
					if err := ino.fs.cache.readIndexBlock(rootBlk[j], &curLeaf); err != nil {
						return err
					}
				}
			}
			curLeaf[k] = dataSector
			curLeafDirty = true
		}
	}

	if err := flushLeaf(); err != nil {
		return err
	}
	if rootDirty {
		if err := ino.fs.cache.writeIndexBlock(raw.DoublyIndirect, &rootBlk); err != nil {
			return err
		}
	}

	if newEndByte > raw.Length {
		raw.Length = newEndByte
	}
	return ino.fs.cache.writeInode(ino.sector, &raw)
}

// ReadAt copies up to len(dst) bytes starting at offset into dst,
// stopping at end of file (§4.3 read loop). It never errors on short
// reads at EOF; that is not an error condition.
func (ino *Inode) ReadAt(dst []byte, offset int64) (int, error) {
	ino.extLock.Lock()
	defer ino.extLock.Unlock()

	var raw onDiskInode
	if err := ino.fs.cache.readInode(ino.sector, &raw); err != nil {
		return 0, err
	}

	size := len(dst)
	read := 0
	off := offset
	for size > 0 {
		if uint32(off) >= raw.Length {
			break
		}
		sector, err := ino.translate(&raw, uint32(off)/SectorSize)
		if err != nil {
			return read, err
		}
		if sector == 0 {
			break
		}
		inSectorOff := int(off % SectorSize)
		sectorLeft := SectorSize - inSectorOff
		inodeLeft := int(raw.Length) - int(off)
		chunk := size
		if sectorLeft < chunk {
			chunk = sectorLeft
		}
		if inodeLeft < chunk {
			chunk = inodeLeft
		}
		if chunk <= 0 {
			break
		}
		if err := ino.fs.cache.ReadAt(sector, dst[read:read+chunk], chunk, inSectorOff); err != nil {
			return read, err
		}
		off += int64(chunk)
		size -= chunk
		read += chunk
	}
	return read, nil
}

// WriteAt copies src into the file starting at offset, extending the
// file (zero-filling any gap) as needed (§4.3 write loop). Returns 0
// immediately, writing nothing, if the inode is currently write-denied.
func (ino *Inode) WriteAt(src []byte, offset int64) (int, error) {
	if ino.writeDenied() {
		return 0, nil
	}

	ino.extLock.Lock()
	defer ino.extLock.Unlock()

	if err := ino.extend(uint32(offset + int64(len(src)))); err != nil {
		return 0, err
	}

	var raw onDiskInode
	if err := ino.fs.cache.readInode(ino.sector, &raw); err != nil {
		return 0, err
	}

	size := len(src)
	written := 0
	off := offset
	for size > 0 {
		if uint32(off) >= raw.Length {
			break
		}
		sector, err := ino.translate(&raw, uint32(off)/SectorSize)
		if err != nil {
			return written, err
		}
		if sector == 0 {
			break
		}
		inSectorOff := int(off % SectorSize)
		sectorLeft := SectorSize - inSectorOff
		inodeLeft := int(raw.Length) - int(off)
		chunk := size
		if sectorLeft < chunk {
			chunk = sectorLeft
		}
		if inodeLeft < chunk {
			chunk = inodeLeft
		}
		if chunk <= 0 {
			break
		}
		if err := ino.fs.cache.WriteAt(sector, src[written:written+chunk], chunk, inSectorOff); err != nil {
			return written, err
		}
		off += int64(chunk)
		size -= chunk
		written += chunk
	}
	return written, nil
}
