package pintosfs

// Directory wraps an inode reference plus a byte cursor used only by
// Readdir. The cursor deliberately lives on the directory handle, not
// on the inode (§9 Open Question resolution: "the relationship between
// pos on an in-memory inode and pos on a directory handle is
// inconsistent in the source; the directory handle owns its own
// cursor, the inode does not").
type Directory struct {
	ino *Inode
	pos int64
}

// CreateDirectory lays out a directory inode at sector sized for
// entryCount entries, then installs "." (pointing at sector itself)
// and ".." (pointing at parentSector) as its first two entries, per
// §3's invariant that every directory begins with those two entries.
func (fs *Filesystem) CreateDirectory(sector, parentSector uint32, entryCount int) error {
	if err := fs.CreateInode(sector, int64(entryCount)*dirEntrySize, DirInode); err != nil {
		return err
	}
	ino, err := fs.OpenInode(sector)
	if err != nil {
		return err
	}
	defer ino.Close()
	d := fs.OpenDirectory(ino.Reopen())
	defer d.Close()
	if err := d.Add(".", sector); err != nil {
		return err
	}
	return d.Add("..", parentSector)
}

// OpenDirectory wraps an already-open inode as a directory handle. The
// inode is not independently reopened; callers that want their own
// reference should call Inode.Reopen first.
func (fs *Filesystem) OpenDirectory(ino *Inode) *Directory {
	return &Directory{ino: ino}
}

// OpenRootDirectory opens a fresh handle on the root directory.
func (fs *Filesystem) OpenRootDirectory() (*Directory, error) {
	ino, err := fs.OpenInode(rootDirSector)
	if err != nil {
		return nil, err
	}
	return fs.OpenDirectory(ino), nil
}

// Reopen increments the underlying inode's open count and returns a new,
// independent handle on the same inode, with its own cursor at 0.
func (d *Directory) Reopen() *Directory {
	d.ino.Reopen()
	return &Directory{ino: d.ino}
}

// Close closes the underlying inode.
func (d *Directory) Close() error {
	return d.ino.Close()
}

// Inode returns the directory's underlying inode.
func (d *Directory) Inode() *Inode {
	return d.ino
}

// Lookup does a linear scan of entries for name, returning the first
// in_use entry whose name matches, its byte offset, and whether it was
// found.
func (d *Directory) Lookup(name string) (dirEntry, int64, bool, error) {
	var buf [dirEntrySize]byte
	var off int64
	for {
		n, err := d.ino.ReadAt(buf[:], off)
		if err != nil {
			return dirEntry{}, 0, false, err
		}
		if n < dirEntrySize {
			return dirEntry{}, 0, false, nil
		}
		var e dirEntry
		e.unmarshal(buf[:])
		if e.InUse && e.Name == name {
			return e, off, true, nil
		}
		off += dirEntrySize
	}
}

// Add writes a new entry {name, inodeSector} into the first free slot
// (strict first-fit from offset 0, per §9's Open Question resolution),
// or appends past end-of-file if none is free. It rejects empty or
// overlong names and duplicate names.
func (d *Directory) Add(name string, inodeSector uint32) error {
	if name == "" || len(name) > NameMax {
		return ErrNameTooLong
	}
	if _, _, found, err := d.Lookup(name); err != nil {
		return err
	} else if found {
		return ErrExists
	}

	var buf [dirEntrySize]byte
	var off int64
	for {
		n, err := d.ino.ReadAt(buf[:], off)
		if err != nil {
			return err
		}
		if n < dirEntrySize {
			break // end of file: append here
		}
		var e dirEntry
		e.unmarshal(buf[:])
		if !e.InUse {
			break // reuse this slot
		}
		off += dirEntrySize
	}

	e := dirEntry{InodeSector: inodeSector, Name: name, InUse: true}
	_, err := d.ino.WriteAt(e.marshal(), off)
	return err
}

// Remove looks up name, marks its slot free, and removes the target
// inode (deferring deallocation to its last close per §4.3). If the
// target is itself a directory, Remove requires it to contain no
// visible entries. It returns the removed entry's inode sector and
// whether it was a directory, so callers (the syscall surface) can
// decide whether to set the "current directory removed" sticky flag.
func (d *Directory) Remove(name string) (removedSector uint32, wasDir bool, err error) {
	entry, off, found, err := d.Lookup(name)
	if err != nil {
		return 0, false, err
	}
	if !found {
		return 0, false, ErrNotFound
	}

	target, err := d.ino.fs.OpenInode(entry.InodeSector)
	if err != nil {
		return 0, false, err
	}
	defer target.Close()

	if target.Kind() == DirInode {
		child := d.ino.fs.OpenDirectory(target.Reopen())
		defer child.Close()
		empty, err := child.isEmpty()
		if err != nil {
			return 0, false, err
		}
		if !empty {
			return 0, false, ErrNotEmpty
		}
	}

	var blank [dirEntrySize]byte
	zero := dirEntry{}
	copy(blank[:], zero.marshal())
	if _, err := d.ino.WriteAt(blank[:], off); err != nil {
		return 0, false, err
	}

	target.Remove()
	return entry.InodeSector, target.Kind() == DirInode, nil
}

// isEmpty reports whether a directory has no visible (non "."/"..")
// entries.
func (d *Directory) isEmpty() (bool, error) {
	saved := d.pos
	d.pos = 0
	_, ok, err := d.Readdir()
	d.pos = saved
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// Readdir advances the cursor and returns the next visible entry's
// name, skipping "." and "..". It returns ok=false at end of file; the
// cursor survives across calls.
func (d *Directory) Readdir() (string, bool, error) {
	var buf [dirEntrySize]byte
	for {
		n, err := d.ino.ReadAt(buf[:], d.pos)
		if err != nil {
			return "", false, err
		}
		if n < dirEntrySize {
			return "", false, nil
		}
		d.pos += dirEntrySize
		var e dirEntry
		e.unmarshal(buf[:])
		if !e.InUse {
			continue
		}
		if e.Name == "." || e.Name == ".." {
			continue
		}
		return e.Name, true, nil
	}
}

// OpenPath resolves input to the directory containing its final
// component (§4.4). If input starts with '/', the walk begins at the
// root; otherwise it begins at proc's current directory, which must
// not have been removed. Every intermediate component must exist and
// be a directory. The caller owns the returned Directory and must
// Close it; lastName is the final path component ("" for a path that
// is exactly "/").
func (fs *Filesystem) OpenPath(proc *Process, input string) (dir *Directory, lastName string, err error) {
	var walking *Directory
	if isAbsolute(input) {
		walking, err = fs.OpenRootDirectory()
		if err != nil {
			return nil, "", err
		}
	} else {
		if proc.DirRemoved() {
			return nil, "", ErrDirRemoved
		}
		walking = proc.Cwd().Reopen()
	}

	it := newPathIter(input)
	tok, ok := it.next()
	if !ok {
		return walking, "", nil
	}

	for {
		if !it.peek() {
			return walking, tok, nil
		}

		entry, _, found, lookErr := walking.Lookup(tok)
		if lookErr != nil {
			walking.Close()
			return nil, "", lookErr
		}
		if !found {
			walking.Close()
			return nil, "", ErrNotFound
		}

		childIno, openErr := fs.OpenInode(entry.InodeSector)
		if openErr != nil {
			walking.Close()
			return nil, "", openErr
		}
		if childIno.Kind() != DirInode {
			childIno.Close()
			walking.Close()
			return nil, "", ErrNotDir
		}

		walking.Close()
		walking = fs.OpenDirectory(childIno)

		tok, ok = it.next()
		if !ok {
			// peek() said another token existed; this cannot happen.
			walking.Close()
			return nil, "", ErrInvalid
		}
	}
}
