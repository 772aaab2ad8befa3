package pintosfs

import (
	"fmt"
)

// SectorSize is the fixed size of a block-device sector, S in the spec.
const SectorSize = 512

// BlockDevice is the raw, fixed-size-sector storage abstraction that
// everything else in pintosfs is layered on. Sector numbering is linear
// from 0; sector 0 holds the free-map inode and sector 1 the root
// directory inode (see FreeMap and Format).
type BlockDevice interface {
	ReadSector(n uint32, dst []byte) error
	WriteSector(n uint32, src []byte) error
	SectorCount() uint32
	Close() error
}

// memDevice is an in-memory BlockDevice, used by tests and as the
// backing store for Format when no file is given.
type memDevice struct {
	sectors [][SectorSize]byte
}

// NewMemDevice creates an in-memory device of n sectors, all zeroed.
func NewMemDevice(n uint32) BlockDevice {
	return &memDevice{sectors: make([][SectorSize]byte, n)}
}

func (d *memDevice) ReadSector(n uint32, dst []byte) error {
	if n >= uint32(len(d.sectors)) {
		return fmt.Errorf("%w: read sector %d out of range (%d sectors)", ErrDevice, n, len(d.sectors))
	}
	if len(dst) != SectorSize {
		return fmt.Errorf("%w: destination buffer must be %d bytes", ErrDevice, SectorSize)
	}
	copy(dst, d.sectors[n][:])
	return nil
}

func (d *memDevice) WriteSector(n uint32, src []byte) error {
	if n >= uint32(len(d.sectors)) {
		return fmt.Errorf("%w: write sector %d out of range (%d sectors)", ErrDevice, n, len(d.sectors))
	}
	if len(src) != SectorSize {
		return fmt.Errorf("%w: source buffer must be %d bytes", ErrDevice, SectorSize)
	}
	copy(d.sectors[n][:], src)
	return nil
}

func (d *memDevice) SectorCount() uint32 {
	return uint32(len(d.sectors))
}

func (d *memDevice) Close() error {
	return nil
}

// errInjector wraps a BlockDevice and fails reads/writes at or past a
// given sector, mirroring the teacher's mockReader used for exercising
// error paths in tests.
type errInjector struct {
	BlockDevice
	failAt  uint32
	failErr error
}

func (e *errInjector) ReadSector(n uint32, dst []byte) error {
	if e.failErr != nil && n >= e.failAt {
		return e.failErr
	}
	return e.BlockDevice.ReadSector(n, dst)
}

func (e *errInjector) WriteSector(n uint32, src []byte) error {
	if e.failErr != nil && n >= e.failAt {
		return e.failErr
	}
	return e.BlockDevice.WriteSector(n, src)
}
