package pintosfs

import "testing"

func newTestProcess(t *testing.T, fs *Filesystem) *Process {
	t.Helper()
	p, err := NewProcess(fs)
	if err != nil {
		t.Fatalf("NewProcess: %v", err)
	}
	t.Cleanup(func() { p.CloseAll() })
	return p
}

func TestCreateOpenWriteReadCycle(t *testing.T) {
	fs := newTestFS(t, 128)
	p := newTestProcess(t, fs)

	if err := p.Create("/file.txt", 0); err != nil {
		t.Fatalf("Create: %v", err)
	}
	fd, err := p.Open("/file.txt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := p.Write(fd, []byte("payload")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := p.Seek(fd, 0); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	buf := make([]byte, 7)
	n, err := p.Read(fd, buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "payload" {
		t.Fatalf("Read = %q, want %q", buf[:n], "payload")
	}
	if err := p.Close(fd); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestMkdirChdirRelativePaths(t *testing.T) {
	fs := newTestFS(t, 128)
	p := newTestProcess(t, fs)

	if err := p.Mkdir("/d"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := p.Chdir("/d"); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	if err := p.Create("x", 0); err != nil {
		t.Fatalf("Create relative: %v", err)
	}

	relFd, err := p.Open("x")
	if err != nil {
		t.Fatalf("Open relative: %v", err)
	}
	relIno, err := p.Inumber(relFd)
	if err != nil {
		t.Fatalf("Inumber: %v", err)
	}
	p.Close(relFd)

	absFd, err := p.Open("/d/x")
	if err != nil {
		t.Fatalf("Open absolute: %v", err)
	}
	absIno, err := p.Inumber(absFd)
	if err != nil {
		t.Fatalf("Inumber: %v", err)
	}
	p.Close(absFd)

	if relIno != absIno {
		t.Fatalf("relative open inode %d != absolute open inode %d", relIno, absIno)
	}
}

func TestRemoveCurrentDirectorySetsStickyFlag(t *testing.T) {
	fs := newTestFS(t, 128)
	p := newTestProcess(t, fs)

	if err := p.Mkdir("/d"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := p.Chdir("/d"); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	if err := p.Remove("/d"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !p.DirRemoved() {
		t.Fatalf("DirRemoved() = false after removing own cwd")
	}

	if err := p.Create("y", 0); err != ErrDirRemoved {
		t.Fatalf("relative Create after dir removed = %v, want %v", err, ErrDirRemoved)
	}

	// Absolute paths still work; chdir clears the sticky flag.
	if err := p.Chdir("/"); err != nil {
		t.Fatalf("Chdir(/): %v", err)
	}
	if p.DirRemoved() {
		t.Fatalf("DirRemoved() = true after chdir to a live directory")
	}
}

func TestIsdirAndInumber(t *testing.T) {
	fs := newTestFS(t, 128)
	p := newTestProcess(t, fs)

	if err := p.Mkdir("/d"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	fd, err := p.Open("/d")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close(fd)

	if !p.Isdir(fd) {
		t.Fatalf("Isdir(/d) = false")
	}
	if _, err := p.Inumber(fd); err != nil {
		t.Fatalf("Inumber: %v", err)
	}
}

func TestCreateDuplicateNameFails(t *testing.T) {
	fs := newTestFS(t, 128)
	p := newTestProcess(t, fs)

	if err := p.Create("/a", 0); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := p.Create("/a", 0); err != ErrExists {
		t.Fatalf("duplicate Create error = %v, want %v", err, ErrExists)
	}
}

func TestBadDescriptorOperations(t *testing.T) {
	fs := newTestFS(t, 64)
	p := newTestProcess(t, fs)

	if _, err := p.Read(99, make([]byte, 1)); err != ErrBadDescriptor {
		t.Fatalf("Read on bad fd = %v, want %v", err, ErrBadDescriptor)
	}
	if err := p.Close(99); err != ErrBadDescriptor {
		t.Fatalf("Close on bad fd = %v, want %v", err, ErrBadDescriptor)
	}
}
