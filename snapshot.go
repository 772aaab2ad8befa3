package pintosfs

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// snapshotMagic identifies a pintosfs snapshot stream, written ahead of
// the sector count and sector size so Import can sanity-check the
// stream before trusting its contents.
const snapshotMagic = 0x50464653 // "PFFS"

// Codec compresses and decompresses the raw sector stream a snapshot
// is made of. Registered codecs mirror the source's per-algorithm
// compressor/decompressor table (comp.go's RegisterCompHandler), one
// build-tag-gated file per optional algorithm instead of one
// kitchen-sink file.
type Codec interface {
	Name() string
	NewWriter(w io.Writer) (io.WriteCloser, error)
	NewReader(r io.Reader) (io.ReadCloser, error)
}

var (
	codecMu sync.Mutex
	codecs  = map[string]Codec{}
)

// RegisterCodec makes a codec available to Export/Import by name. It
// is normally called from an init function, including the build-tag
// gated ones in snapshot_xz.go.
func RegisterCodec(c Codec) {
	codecMu.Lock()
	defer codecMu.Unlock()
	codecs[c.Name()] = c
}

func lookupCodec(name string) (Codec, error) {
	codecMu.Lock()
	defer codecMu.Unlock()
	c, ok := codecs[name]
	if !ok {
		return nil, fmt.Errorf("pintosfs: unknown snapshot codec %q", name)
	}
	return c, nil
}

type gzipCodec struct{}

func (gzipCodec) Name() string { return "gzip" }

func (gzipCodec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return gzip.NewWriterLevel(w, gzip.BestSpeed)
}

func (gzipCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

func init() {
	RegisterCodec(gzipCodec{})
}

// Export streams every sector of fs's device through codecName's
// writer to w, prefixed by a small header. It reads through the cache
// so a concurrently-mounted snapshot sees each sector's latest
// in-memory contents, not just what has been written back to dev.
func Export(fs *Filesystem, w io.Writer, codecName string) error {
	codec, err := lookupCodec(codecName)
	if err != nil {
		return err
	}

	count := fs.dev.SectorCount()
	var header [12]byte
	binary.LittleEndian.PutUint32(header[0:4], snapshotMagic)
	binary.LittleEndian.PutUint32(header[4:8], count)
	binary.LittleEndian.PutUint32(header[8:12], SectorSize)
	if _, err := w.Write(header[:]); err != nil {
		return err
	}

	cw, err := codec.NewWriter(w)
	if err != nil {
		return err
	}

	var buf [SectorSize]byte
	for s := uint32(0); s < count; s++ {
		h, err := fs.cache.Get(s)
		if err != nil {
			cw.Close()
			return err
		}
		copy(buf[:], h.Bytes())
		h.Release()
		if _, err := cw.Write(buf[:]); err != nil {
			cw.Close()
			return err
		}
	}
	return cw.Close()
}

// Import decodes a stream written by Export into dev, which must have
// at least as many sectors as the snapshot, then mounts it. On a larger
// dev, sectors past the snapshot's free-map bitmap are not tracked and
// never allocated.
func Import(dev BlockDevice, r io.Reader, codecName string) (*Filesystem, error) {
	codec, err := lookupCodec(codecName)
	if err != nil {
		return nil, err
	}

	var header [12]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	magic := binary.LittleEndian.Uint32(header[0:4])
	count := binary.LittleEndian.Uint32(header[4:8])
	sectorSize := binary.LittleEndian.Uint32(header[8:12])
	if magic != snapshotMagic || sectorSize != SectorSize {
		return nil, ErrInvalid
	}
	if count > dev.SectorCount() {
		return nil, ErrNoSpace
	}

	cr, err := codec.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer cr.Close()

	var buf [SectorSize]byte
	for s := uint32(0); s < count; s++ {
		if _, err := io.ReadFull(cr, buf[:]); err != nil {
			return nil, err
		}
		if err := dev.WriteSector(s, buf[:]); err != nil {
			return nil, err
		}
	}

	return Mount(dev)
}
