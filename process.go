package pintosfs

import "sync"

// descKind distinguishes what a descriptor refers to.
type descKind int

const (
	descFile descKind = iota
	descDir
)

// fileHandle is an open file's position cursor, analogous to a Unix
// struct file; each Open call gets its own, even when two descriptors
// reference the same underlying Inode.
type fileHandle struct {
	ino       *Inode
	pos       int64
	denyWrite bool
}

type descriptor struct {
	kind descKind
	file *fileHandle
	dir  *Directory
	name string
}

// Process models the minimal per-process collaborator the syscall
// surface of §4.5 needs: a descriptor table (fd >= 2; 0 and 1 are
// reserved by the caller for console I/O and never allocated here), a
// current working directory, and the "current directory was removed
// out from under me" sticky flag from §4.4's Remove.
type Process struct {
	fs *Filesystem

	mu         sync.Mutex
	cwd        *Directory
	dirRemoved bool
	descs      map[int]*descriptor
	nextFd     int
}

// NewProcess creates a process whose current directory is the root.
func NewProcess(fs *Filesystem) (*Process, error) {
	root, err := fs.OpenRootDirectory()
	if err != nil {
		return nil, err
	}
	return &Process{
		fs:     fs,
		cwd:    root,
		descs:  make(map[int]*descriptor),
		nextFd: 2,
	}, nil
}

// Cwd returns the process's current directory handle.
func (p *Process) Cwd() *Directory {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cwd
}

// DirRemoved reports whether the process's current directory has been
// removed, which fails any subsequent relative path resolution.
func (p *Process) DirRemoved() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dirRemoved
}

func (p *Process) allocFd(d *descriptor) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	fd := p.nextFd
	p.nextFd++
	p.descs[fd] = d
	return fd
}

func (p *Process) lookupFd(fd int) (*descriptor, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.descs[fd]
	return d, ok
}

// Create creates a new, empty-or-sized file at path.
func (p *Process) Create(path string, size int64) error {
	dir, lastName, err := p.fs.OpenPath(p, path)
	if err != nil {
		return err
	}
	defer dir.Close()
	if lastName == "" {
		return ErrInvalid
	}
	if _, _, found, err := dir.Lookup(lastName); err != nil {
		return err
	} else if found {
		return ErrExists
	}

	sector, ok := p.fs.freeMap.Allocate(1)
	if !ok {
		return ErrNoSpace
	}
	if err := p.fs.CreateInode(sector, size, FileInode); err != nil {
		p.fs.freeMap.Release(sector, 1)
		return err
	}
	if err := dir.Add(lastName, sector); err != nil {
		p.fs.cache.CloseInode(sector, p.fs.freeMap)
		return err
	}
	return nil
}

// Mkdir creates a new, empty directory at path.
func (p *Process) Mkdir(path string) error {
	dir, lastName, err := p.fs.OpenPath(p, path)
	if err != nil {
		return err
	}
	defer dir.Close()
	if lastName == "" {
		return ErrExists
	}
	if _, _, found, err := dir.Lookup(lastName); err != nil {
		return err
	} else if found {
		return ErrExists
	}

	sector, ok := p.fs.freeMap.Allocate(1)
	if !ok {
		return ErrNoSpace
	}
	if err := p.fs.CreateDirectory(sector, dir.Inode().Sector(), rootDirInitialEntries); err != nil {
		p.fs.freeMap.Release(sector, 1)
		return err
	}
	if err := dir.Add(lastName, sector); err != nil {
		p.fs.cache.CloseInode(sector, p.fs.freeMap)
		return err
	}
	return nil
}

// Remove unlinks the name at path. The underlying inode's sectors are
// not reclaimed until its last opener closes it (§4.3). If path names
// the process's own current directory, subsequent relative path
// resolution in this process fails (§4.4).
func (p *Process) Remove(path string) error {
	dir, lastName, err := p.fs.OpenPath(p, path)
	if err != nil {
		return err
	}
	defer dir.Close()
	if lastName == "" {
		return ErrInvalid
	}

	removedSector, _, err := dir.Remove(lastName)
	if err != nil {
		return err
	}

	if removedSector == p.Cwd().Inode().Sector() {
		p.mu.Lock()
		p.dirRemoved = true
		p.mu.Unlock()
	}
	return nil
}

// Open opens path for reading/writing (file) or traversal (directory)
// and returns a new descriptor.
func (p *Process) Open(path string) (int, error) {
	return p.open(path, false)
}

// OpenExecutable opens path the way the process loader opens its own
// binary image: write-denied for as long as the descriptor is open
// (§4.5).
func (p *Process) OpenExecutable(path string) (int, error) {
	return p.open(path, true)
}

func (p *Process) open(path string, denyWrite bool) (int, error) {
	dir, lastName, err := p.fs.OpenPath(p, path)
	if err != nil {
		return 0, err
	}
	defer dir.Close()

	var sector uint32
	var name string
	if lastName == "" {
		sector = dir.Inode().Sector()
		name = "/"
	} else {
		entry, _, found, err := dir.Lookup(lastName)
		if err != nil {
			return 0, err
		}
		if !found {
			return 0, ErrNotFound
		}
		sector = entry.InodeSector
		name = lastName
	}

	ino, err := p.fs.OpenInode(sector)
	if err != nil {
		return 0, err
	}

	if ino.Kind() == DirInode {
		if denyWrite {
			ino.Close()
			return 0, ErrIsDir
		}
		d := &descriptor{kind: descDir, dir: p.fs.OpenDirectory(ino), name: name}
		return p.allocFd(d), nil
	}

	if denyWrite {
		ino.DenyWrite()
	}
	d := &descriptor{kind: descFile, file: &fileHandle{ino: ino, denyWrite: denyWrite}, name: name}
	return p.allocFd(d), nil
}

// Filesize returns the current length of the file open on fd.
func (p *Process) Filesize(fd int) (int64, error) {
	d, ok := p.lookupFd(fd)
	if !ok || d.kind != descFile {
		return 0, ErrBadDescriptor
	}
	n, err := d.file.ino.Length()
	return int64(n), err
}

// Read reads into buf from fd's current position, advancing it.
func (p *Process) Read(fd int, buf []byte) (int, error) {
	d, ok := p.lookupFd(fd)
	if !ok || d.kind != descFile {
		return 0, ErrBadDescriptor
	}
	n, err := d.file.ino.ReadAt(buf, d.file.pos)
	d.file.pos += int64(n)
	return n, err
}

// Write writes buf to fd's current position, advancing it and growing
// the file as needed.
func (p *Process) Write(fd int, buf []byte) (int, error) {
	d, ok := p.lookupFd(fd)
	if !ok || d.kind != descFile {
		return 0, ErrBadDescriptor
	}
	n, err := d.file.ino.WriteAt(buf, d.file.pos)
	d.file.pos += int64(n)
	return n, err
}

// Seek sets fd's byte position.
func (p *Process) Seek(fd int, pos int64) error {
	d, ok := p.lookupFd(fd)
	if !ok || d.kind != descFile {
		return ErrBadDescriptor
	}
	d.file.pos = pos
	return nil
}

// Tell returns fd's current byte position.
func (p *Process) Tell(fd int) (int64, error) {
	d, ok := p.lookupFd(fd)
	if !ok || d.kind != descFile {
		return 0, ErrBadDescriptor
	}
	return d.file.pos, nil
}

// Close releases fd.
func (p *Process) Close(fd int) error {
	p.mu.Lock()
	d, ok := p.descs[fd]
	if ok {
		delete(p.descs, fd)
	}
	p.mu.Unlock()
	if !ok {
		return ErrBadDescriptor
	}
	return p.closeDescriptor(d)
}

func (p *Process) closeDescriptor(d *descriptor) error {
	switch d.kind {
	case descFile:
		if d.file.denyWrite {
			d.file.ino.AllowWrite()
		}
		return d.file.ino.Close()
	case descDir:
		return d.dir.Close()
	}
	return nil
}

// Isdir reports whether fd refers to a directory.
func (p *Process) Isdir(fd int) bool {
	d, ok := p.lookupFd(fd)
	return ok && d.kind == descDir
}

// Inumber returns the inode sector backing fd.
func (p *Process) Inumber(fd int) (uint32, error) {
	d, ok := p.lookupFd(fd)
	if !ok {
		return 0, ErrBadDescriptor
	}
	if d.kind == descDir {
		return d.dir.Inode().Sector(), nil
	}
	return d.file.ino.Sector(), nil
}

// Readdir advances fd's directory cursor and returns the next visible
// entry name.
func (p *Process) Readdir(fd int) (string, bool, error) {
	d, ok := p.lookupFd(fd)
	if !ok || d.kind != descDir {
		return "", false, ErrBadDescriptor
	}
	return d.dir.Readdir()
}

// Chdir changes the process's current directory.
func (p *Process) Chdir(path string) error {
	dir, lastName, err := p.fs.OpenPath(p, path)
	if err != nil {
		return err
	}

	var target *Directory
	if lastName == "" {
		target = dir
	} else {
		entry, _, found, err := dir.Lookup(lastName)
		if err != nil {
			dir.Close()
			return err
		}
		if !found {
			dir.Close()
			return ErrNotFound
		}
		ino, err := p.fs.OpenInode(entry.InodeSector)
		dir.Close()
		if err != nil {
			return err
		}
		if ino.Kind() != DirInode {
			ino.Close()
			return ErrNotDir
		}
		target = p.fs.OpenDirectory(ino)
	}

	p.mu.Lock()
	old := p.cwd
	p.cwd = target
	p.dirRemoved = false
	p.mu.Unlock()
	return old.Close()
}

// CloseAll closes every open descriptor and the current directory,
// called on process teardown.
func (p *Process) CloseAll() error {
	p.mu.Lock()
	descs := p.descs
	p.descs = make(map[int]*descriptor)
	cwd := p.cwd
	p.cwd = nil
	p.mu.Unlock()

	var firstErr error
	for _, d := range descs {
		if err := p.closeDescriptor(d); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if cwd != nil {
		if err := cwd.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
