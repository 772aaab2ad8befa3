package pintosfs

import "errors"

// Package-specific error variables, usable with errors.Is() for error handling.
var (
	// ErrNoSpace is returned when the free-sector map cannot satisfy an allocation.
	ErrNoSpace = errors.New("pintosfs: no free sectors")

	// ErrNotFound is returned when a directory lookup does not find the named entry.
	ErrNotFound = errors.New("pintosfs: no such file or directory")

	// ErrNotDir is returned when a path component that must be a directory is not one.
	ErrNotDir = errors.New("pintosfs: not a directory")

	// ErrIsDir is returned when an operation expecting a file is given a directory.
	ErrIsDir = errors.New("pintosfs: is a directory")

	// ErrExists is returned by create/mkdir when the target name is already in use.
	ErrExists = errors.New("pintosfs: file exists")

	// ErrNameTooLong is returned when a path component exceeds NameMax characters.
	ErrNameTooLong = errors.New("pintosfs: name too long")

	// ErrNotEmpty is returned when removing a directory that still has visible entries.
	ErrNotEmpty = errors.New("pintosfs: directory not empty")

	// ErrWriteDenied names the write-denied condition (mapped to ETXTBSY by the FUSE
	// adapter). Inode.WriteAt does not return it: a write to a write-denied inode
	// writes nothing and returns 0 with a nil error.
	ErrWriteDenied = errors.New("pintosfs: write denied")

	// ErrBadDescriptor is returned by the syscall surface for an unmapped or wrong-kind fd.
	ErrBadDescriptor = errors.New("pintosfs: bad file descriptor")

	// ErrInvalid is returned for malformed paths or arguments.
	ErrInvalid = errors.New("pintosfs: invalid argument")

	// ErrDevice wraps an underlying block device I/O failure.
	ErrDevice = errors.New("pintosfs: device error")

	// ErrBadMagic is returned when an on-disk inode's magic field does not match.
	ErrBadMagic = errors.New("pintosfs: corrupt inode (bad magic)")

	// ErrDirRemoved is returned when resolving a relative path against a removed cwd.
	ErrDirRemoved = errors.New("pintosfs: current directory has been removed")
)
