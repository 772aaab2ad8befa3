package pintosfs

import "sync"

// Filesystem is the single object encapsulating the shared,
// process-wide state named in §5: the block device, the buffer cache,
// the free-sector map, and the open-inode table. It replaces the
// "global mutable state" the source keeps as file-scope globals (§9):
// every operation takes it as an explicit collaborator instead.
type Filesystem struct {
	dev     BlockDevice
	cache   *Cache
	freeMap *FreeMap

	openMu     sync.Mutex
	openInodes map[uint32]*Inode

	flusher Flusher
}

// Option configures Format or Mount.
type Option func(*Filesystem)

// WithFlusher installs a background write-behind task. The default is
// a no-op flusher: correctness depends only on the shutdown flush
// (§4.1), so this is purely a performance knob.
func WithFlusher(f Flusher) Option {
	return func(fs *Filesystem) { fs.flusher = f }
}

func newFilesystem(dev BlockDevice, opts []Option) *Filesystem {
	fs := &Filesystem{
		dev:        dev,
		cache:      NewCache(dev),
		openInodes: make(map[uint32]*Inode),
		flusher:    noopFlusher{},
	}
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

// rootDirInitialEntries is the entry count a new directory is pre-sized
// for (the root by Format, subdirectories by Process.Mkdir);
// Directory.Add extends the inode automatically past this via WriteAt,
// so this only needs to cover the "." and ".." entries installed at
// creation.
const rootDirInitialEntries = 2

// Format initializes a brand-new file system image on dev: the bitmap
// inode at sector 0 (marking itself and the root directory used) and
// an empty root directory at sector 1 (§4.2 FreeMap.create).
func Format(dev BlockDevice, opts ...Option) (*Filesystem, error) {
	fs := newFilesystem(dev, opts)

	fm, err := bootstrapFreeMap(fs, int64(rootDirInitialEntries)*dirEntrySize)
	if err != nil {
		return nil, err
	}
	fs.freeMap = fm

	root, err := fs.OpenRootDirectory()
	if err != nil {
		return nil, err
	}
	if err := root.Add(".", rootDirSector); err != nil {
		root.Close()
		return nil, err
	}
	// The root's ".." resolves to itself (§3 invariant).
	if err := root.Add("..", rootDirSector); err != nil {
		root.Close()
		return nil, err
	}
	if err := root.Close(); err != nil {
		return nil, err
	}

	fs.flusher.Spawn(fs)
	return fs, nil
}

// Mount re-opens an already-formatted image, reading the persisted
// free-sector bitmap back into memory (§4.2 FreeMap.open).
func Mount(dev BlockDevice, opts ...Option) (*Filesystem, error) {
	fs := newFilesystem(dev, opts)

	fm, err := openFreeMap(fs)
	if err != nil {
		return nil, err
	}
	fs.freeMap = fm

	fs.flusher.Spawn(fs)
	return fs, nil
}

// FreeSectors returns the number of currently free sectors.
func (fs *Filesystem) FreeSectors() uint32 {
	return fs.freeMap.Left()
}

// Shutdown stops the flusher and performs the one guaranteed flush of
// every dirty cache entry (§4.1, §9: correctness rests on this, not on
// the background task).
func (fs *Filesystem) Shutdown() error {
	fs.flusher.Join()
	if err := fs.freeMap.Close(); err != nil {
		return err
	}
	return fs.cache.FlushAll()
}
