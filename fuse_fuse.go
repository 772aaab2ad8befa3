//go:build fuse

package pintosfs

import (
	"context"
	"errors"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// fuseNode is a FUSE tree node backed by a pintosfs inode sector.
// Getattr, Read, Write and Readdir open the node's Inode or Directory
// directly; Create, Mkdir and Unlink go through a short-lived Process
// whose current directory is the node's own directory, reusing the
// syscall surface of §4.5.
type fuseNode struct {
	fs.Inode
	fsys   *Filesystem
	sector uint32
}

var (
	_ fs.NodeLookuper  = (*fuseNode)(nil)
	_ fs.NodeReaddirer = (*fuseNode)(nil)
	_ fs.NodeGetattrer = (*fuseNode)(nil)
	_ fs.NodeOpener    = (*fuseNode)(nil)
	_ fs.NodeReader    = (*fuseNode)(nil)
	_ fs.NodeWriter    = (*fuseNode)(nil)
	_ fs.NodeCreater   = (*fuseNode)(nil)
	_ fs.NodeMkdirer   = (*fuseNode)(nil)
	_ fs.NodeUnlinker  = (*fuseNode)(nil)
	_ fs.NodeRmdirer   = (*fuseNode)(nil)
)

// MountFUSE publishes fsys as a FUSE file system at dir and returns the
// running server once the mount is up; call its Wait method to block
// until it is unmounted. It is the only entry point this file exports;
// callers that want an unmounted tree for testing should use the
// Filesystem API directly.
func MountFUSE(ctx context.Context, fsys *Filesystem, dir string, opts *fs.Options) (*fuse.Server, error) {
	root := &fuseNode{fsys: fsys, sector: rootDirSector}
	server, err := fs.Mount(dir, root, opts)
	if err != nil {
		return nil, err
	}
	return server, nil
}

func (n *fuseNode) process() (*Process, error) {
	proc, err := NewProcess(n.fsys)
	if err != nil {
		return nil, err
	}
	if n.sector != rootDirSector {
		ino, err := n.fsys.OpenInode(n.sector)
		if err != nil {
			proc.CloseAll()
			return nil, err
		}
		proc.cwd.Close()
		proc.cwd = n.fsys.OpenDirectory(ino)
	}
	return proc, nil
}

func (n *fuseNode) child(sector uint32) *fuseNode {
	return &fuseNode{fsys: n.fsys, sector: sector}
}

func toErrno(err error) syscall.Errno {
	switch {
	case err == nil:
		return fs.OK
	case errors.Is(err, ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, ErrNotDir):
		return syscall.ENOTDIR
	case errors.Is(err, ErrIsDir):
		return syscall.EISDIR
	case errors.Is(err, ErrExists):
		return syscall.EEXIST
	case errors.Is(err, ErrNotEmpty):
		return syscall.ENOTEMPTY
	case errors.Is(err, ErrNameTooLong):
		return syscall.ENAMETOOLONG
	case errors.Is(err, ErrNoSpace):
		return syscall.ENOSPC
	case errors.Is(err, ErrWriteDenied):
		return syscall.ETXTBSY
	default:
		return syscall.EIO
	}
}

func (n *fuseNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	ino, err := n.fsys.OpenInode(n.sector)
	if err != nil {
		return toErrno(err)
	}
	defer ino.Close()
	length, err := ino.Length()
	if err != nil {
		return toErrno(err)
	}
	out.Size = uint64(length)
	if ino.Kind() == DirInode {
		out.Mode = syscall.S_IFDIR | 0755
	} else {
		out.Mode = syscall.S_IFREG | 0644
	}
	out.Ino = uint64(n.sector)
	return fs.OK
}

func (n *fuseNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	proc, err := n.process()
	if err != nil {
		return nil, toErrno(err)
	}
	defer proc.CloseAll()

	dir := proc.fs.OpenDirectory(mustOpen(n.fsys, n.sector))
	defer dir.Close()

	entry, _, found, err := dir.Lookup(name)
	if err != nil {
		return nil, toErrno(err)
	}
	if !found {
		return nil, syscall.ENOENT
	}
	child := n.child(entry.InodeSector)
	out.Ino = uint64(entry.InodeSector)
	return n.NewInode(ctx, child, fs.StableAttr{Ino: uint64(entry.InodeSector)}), fs.OK
}

func mustOpen(fsys *Filesystem, sector uint32) *Inode {
	ino, err := fsys.OpenInode(sector)
	if err != nil {
		// The tree only ever references sectors it has already
		// validated via Lookup/Mkdir/Create; a failure here means
		// on-disk corruption, which readInode already detects via
		// its magic check.
		panic(err)
	}
	return ino
}

func (n *fuseNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	ino, err := n.fsys.OpenInode(n.sector)
	if err != nil {
		return nil, toErrno(err)
	}
	dir := n.fsys.OpenDirectory(ino)

	var entries []fuse.DirEntry
	for {
		name, ok, err := dir.Readdir()
		if err != nil {
			dir.Close()
			return nil, toErrno(err)
		}
		if !ok {
			break
		}
		entries = append(entries, fuse.DirEntry{Name: name})
	}
	dir.Close()
	return fs.NewListDirStream(entries), fs.OK
}

func (n *fuseNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	return nil, fuse.FOPEN_KEEP_CACHE, fs.OK
}

func (n *fuseNode) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	ino, err := n.fsys.OpenInode(n.sector)
	if err != nil {
		return nil, toErrno(err)
	}
	defer ino.Close()
	nr, err := ino.ReadAt(dest, off)
	if err != nil && nr == 0 {
		return nil, toErrno(err)
	}
	return fuse.ReadResultData(dest[:nr]), fs.OK
}

func (n *fuseNode) Write(ctx context.Context, f fs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	ino, err := n.fsys.OpenInode(n.sector)
	if err != nil {
		return 0, toErrno(err)
	}
	defer ino.Close()
	nw, err := ino.WriteAt(data, off)
	if err != nil {
		return uint32(nw), toErrno(err)
	}
	return uint32(nw), fs.OK
}

func (n *fuseNode) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	proc, err := n.process()
	if err != nil {
		return nil, nil, 0, toErrno(err)
	}
	defer proc.CloseAll()

	if err := proc.Create(name, 0); err != nil {
		return nil, nil, 0, toErrno(err)
	}
	dir := proc.fs.OpenDirectory(mustOpen(n.fsys, n.sector))
	defer dir.Close()
	entry, _, found, err := dir.Lookup(name)
	if err != nil || !found {
		return nil, nil, 0, syscall.EIO
	}
	child := n.child(entry.InodeSector)
	out.Ino = uint64(entry.InodeSector)
	return n.NewInode(ctx, child, fs.StableAttr{Ino: uint64(entry.InodeSector)}), nil, 0, fs.OK
}

func (n *fuseNode) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	proc, err := n.process()
	if err != nil {
		return nil, toErrno(err)
	}
	defer proc.CloseAll()

	if err := proc.Mkdir(name); err != nil {
		return nil, toErrno(err)
	}
	dir := proc.fs.OpenDirectory(mustOpen(n.fsys, n.sector))
	defer dir.Close()
	entry, _, found, err := dir.Lookup(name)
	if err != nil || !found {
		return nil, syscall.EIO
	}
	child := n.child(entry.InodeSector)
	out.Ino = uint64(entry.InodeSector)
	return n.NewInode(ctx, child, fs.StableAttr{Ino: uint64(entry.InodeSector), Mode: syscall.S_IFDIR}), fs.OK
}

func (n *fuseNode) Unlink(ctx context.Context, name string) syscall.Errno {
	proc, err := n.process()
	if err != nil {
		return toErrno(err)
	}
	defer proc.CloseAll()
	return toErrno(proc.Remove(name))
}

func (n *fuseNode) Rmdir(ctx context.Context, name string) syscall.Errno {
	return n.Unlink(ctx, name)
}
