package pintosfs

import (
	"bytes"
	"testing"
)

func newTestFS(t *testing.T, sectors uint32) *Filesystem {
	t.Helper()
	fs, err := Format(NewMemDevice(sectors))
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	t.Cleanup(func() { fs.Shutdown() })
	return fs
}

func TestFreshInodeReadsZero(t *testing.T) {
	fs := newTestFS(t, 64)

	sector, ok := fs.freeMap.Allocate(1)
	if !ok {
		t.Fatalf("Allocate: failed")
	}
	if err := fs.CreateInode(sector, 100, FileInode); err != nil {
		t.Fatalf("CreateInode: %v", err)
	}

	ino, err := fs.OpenInode(sector)
	if err != nil {
		t.Fatalf("OpenInode: %v", err)
	}
	defer ino.Close()

	buf := make([]byte, 100)
	n, err := ino.ReadAt(buf, 0)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if n != 100 {
		t.Fatalf("ReadAt returned %d bytes, want 100", n)
	}
	if !bytes.Equal(buf, make([]byte, 100)) {
		t.Fatalf("fresh inode content is not all zero")
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	fs := newTestFS(t, 64)

	sector, ok := fs.freeMap.Allocate(1)
	if !ok {
		t.Fatalf("Allocate: failed")
	}
	if err := fs.CreateInode(sector, 0, FileInode); err != nil {
		t.Fatalf("CreateInode: %v", err)
	}
	ino, err := fs.OpenInode(sector)
	if err != nil {
		t.Fatalf("OpenInode: %v", err)
	}
	defer ino.Close()

	want := bytes.Repeat([]byte("abcdefgh"), 200) // spans several sectors
	n, err := ino.WriteAt(want, 0)
	if err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if n != len(want) {
		t.Fatalf("WriteAt returned %d, want %d", n, len(want))
	}

	got := make([]byte, len(want))
	n, err = ino.ReadAt(got, 0)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if n != len(want) || !bytes.Equal(got, want) {
		t.Fatalf("round-trip mismatch")
	}
}

func TestWriteExtendsAcrossIndirectBoundary(t *testing.T) {
	fs := newTestFS(t, 4096)

	sector, ok := fs.freeMap.Allocate(1)
	if !ok {
		t.Fatalf("Allocate: failed")
	}
	if err := fs.CreateInode(sector, 0, FileInode); err != nil {
		t.Fatalf("CreateInode: %v", err)
	}
	ino, err := fs.OpenInode(sector)
	if err != nil {
		t.Fatalf("OpenInode: %v", err)
	}
	defer ino.Close()

	// Past maxDirect sectors forces the single-indirect block into use.
	offset := int64(maxDirect+2) * SectorSize
	payload := []byte("past the direct blocks")
	if _, err := ino.WriteAt(payload, offset); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	got := make([]byte, len(payload))
	if _, err := ino.ReadAt(got, offset); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("indirect-block round trip mismatch: got %q, want %q", got, payload)
	}

	length, err := ino.Length()
	if err != nil {
		t.Fatalf("Length: %v", err)
	}
	if int64(length) != offset+int64(len(payload)) {
		t.Fatalf("Length() = %d, want %d", length, offset+int64(len(payload)))
	}
}

func TestWriteDeniedReturnsNothing(t *testing.T) {
	fs := newTestFS(t, 64)

	sector, ok := fs.freeMap.Allocate(1)
	if !ok {
		t.Fatalf("Allocate: failed")
	}
	if err := fs.CreateInode(sector, 16, FileInode); err != nil {
		t.Fatalf("CreateInode: %v", err)
	}
	ino, err := fs.OpenInode(sector)
	if err != nil {
		t.Fatalf("OpenInode: %v", err)
	}
	defer ino.Close()

	ino.DenyWrite()
	n, err := ino.WriteAt([]byte("denied"), 0)
	if err != nil {
		t.Fatalf("WriteAt under deny: %v", err)
	}
	if n != 0 {
		t.Fatalf("WriteAt under deny returned %d bytes, want 0", n)
	}

	ino.AllowWrite()
	n, err = ino.WriteAt([]byte("allowed"), 0)
	if err != nil || n != len("allowed") {
		t.Fatalf("WriteAt after AllowWrite: n=%d err=%v", n, err)
	}
}

func TestCloseOnRemoveReclaimsSectors(t *testing.T) {
	fs := newTestFS(t, 256)

	sector, ok := fs.freeMap.Allocate(1)
	if !ok {
		t.Fatalf("Allocate: failed")
	}
	// A few hundred bytes spanning multiple data sectors.
	if err := fs.CreateInode(sector, 4*SectorSize, FileInode); err != nil {
		t.Fatalf("CreateInode: %v", err)
	}
	ino, err := fs.OpenInode(sector)
	if err != nil {
		t.Fatalf("OpenInode: %v", err)
	}

	before := fs.FreeSectors()
	ino.Remove()
	if err := ino.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	after := fs.FreeSectors()

	if after <= before {
		t.Fatalf("FreeSectors after close-on-remove = %d, want > %d", after, before)
	}
}

func TestRemoveDoesNotReclaimUntilLastClose(t *testing.T) {
	fs := newTestFS(t, 256)

	sector, ok := fs.freeMap.Allocate(1)
	if !ok {
		t.Fatalf("Allocate: failed")
	}
	if err := fs.CreateInode(sector, SectorSize, FileInode); err != nil {
		t.Fatalf("CreateInode: %v", err)
	}

	first, err := fs.OpenInode(sector)
	if err != nil {
		t.Fatalf("OpenInode: %v", err)
	}
	second := first.Reopen()

	before := fs.FreeSectors()
	second.Remove()
	if err := second.Close(); err != nil {
		t.Fatalf("Close (second): %v", err)
	}
	if fs.FreeSectors() != before {
		t.Fatalf("sectors reclaimed while still open by another handle")
	}

	if err := first.Close(); err != nil {
		t.Fatalf("Close (first): %v", err)
	}
	if fs.FreeSectors() <= before {
		t.Fatalf("sectors not reclaimed after last close")
	}
}
