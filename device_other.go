//go:build !linux && !darwin

package pintosfs

import (
	"fmt"
	"os"
)

// fileDevice is the portable fallback backend for GOOS without a
// golang.org/x/sys/unix Pread/Pwrite, using os.File's ReaderAt/WriterAt.
type fileDevice struct {
	f       *os.File
	sectors uint32
}

// OpenFileDevice opens (creating if necessary) path as a BlockDevice of
// sectorCount sectors. If the file is shorter than sectorCount*512
// bytes it is extended with zeros. A sectorCount of 0 means "use the
// file's existing size", for re-opening an already-formatted image.
func OpenFileDevice(path string, sectorCount uint32) (BlockDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDevice, err)
	}
	if sectorCount == 0 {
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: %v", ErrDevice, err)
		}
		sectorCount = uint32(info.Size() / SectorSize)
		return &fileDevice{f: f, sectors: sectorCount}, nil
	}
	size := int64(sectorCount) * SectorSize
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrDevice, err)
	}
	return &fileDevice{f: f, sectors: sectorCount}, nil
}

func (d *fileDevice) ReadSector(n uint32, dst []byte) error {
	if n >= d.sectors {
		return fmt.Errorf("%w: read sector %d out of range (%d sectors)", ErrDevice, n, d.sectors)
	}
	if len(dst) != SectorSize {
		return fmt.Errorf("%w: destination buffer must be %d bytes", ErrDevice, SectorSize)
	}
	_, err := d.f.ReadAt(dst, int64(n)*SectorSize)
	if err != nil {
		return fmt.Errorf("%w: read sector %d: %v", ErrDevice, n, err)
	}
	return nil
}

func (d *fileDevice) WriteSector(n uint32, src []byte) error {
	if n >= d.sectors {
		return fmt.Errorf("%w: write sector %d out of range (%d sectors)", ErrDevice, n, d.sectors)
	}
	if len(src) != SectorSize {
		return fmt.Errorf("%w: source buffer must be %d bytes", ErrDevice, SectorSize)
	}
	_, err := d.f.WriteAt(src, int64(n)*SectorSize)
	if err != nil {
		return fmt.Errorf("%w: write sector %d: %v", ErrDevice, n, err)
	}
	return nil
}

func (d *fileDevice) SectorCount() uint32 {
	return d.sectors
}

func (d *fileDevice) Close() error {
	return d.f.Close()
}
