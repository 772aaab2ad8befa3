package pintosfs

import "testing"

func TestRootDirectoryHasDotAndDotDot(t *testing.T) {
	fs := newTestFS(t, 64)

	root, err := fs.OpenRootDirectory()
	if err != nil {
		t.Fatalf("OpenRootDirectory: %v", err)
	}
	defer root.Close()

	for _, name := range []string{".", ".."} {
		entry, _, found, err := root.Lookup(name)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", name, err)
		}
		if !found {
			t.Fatalf("Lookup(%q): not found", name)
		}
		if entry.InodeSector != rootDirSector {
			t.Fatalf("root %q -> sector %d, want %d", name, entry.InodeSector, rootDirSector)
		}
	}

	// Readdir must hide "." and "..".
	_, ok, err := root.Readdir()
	if err != nil {
		t.Fatalf("Readdir: %v", err)
	}
	if ok {
		t.Fatalf("Readdir on empty root returned an entry")
	}
}

func TestDirectoryAddLookupRemove(t *testing.T) {
	fs := newTestFS(t, 128)

	root, err := fs.OpenRootDirectory()
	if err != nil {
		t.Fatalf("OpenRootDirectory: %v", err)
	}
	defer root.Close()

	sector, ok := fs.freeMap.Allocate(1)
	if !ok {
		t.Fatalf("Allocate: failed")
	}
	if err := fs.CreateInode(sector, 0, FileInode); err != nil {
		t.Fatalf("CreateInode: %v", err)
	}
	if err := root.Add("foo", sector); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := root.Add("foo", sector); err != ErrExists {
		t.Fatalf("duplicate Add error = %v, want %v", err, ErrExists)
	}

	_, _, found, err := root.Lookup("foo")
	if err != nil || !found {
		t.Fatalf("Lookup(foo) found=%v err=%v", found, err)
	}

	removedSector, wasDir, err := root.Remove("foo")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if wasDir {
		t.Fatalf("Remove reported wasDir=true for a file")
	}
	if removedSector != sector {
		t.Fatalf("Remove returned sector %d, want %d", removedSector, sector)
	}

	if _, _, found, err := root.Lookup("foo"); err != nil || found {
		t.Fatalf("Lookup(foo) after remove: found=%v err=%v", found, err)
	}
}

func TestRemoveNonEmptyDirectoryFails(t *testing.T) {
	fs := newTestFS(t, 128)

	root, err := fs.OpenRootDirectory()
	if err != nil {
		t.Fatalf("OpenRootDirectory: %v", err)
	}
	defer root.Close()

	dirSector, ok := fs.freeMap.Allocate(1)
	if !ok {
		t.Fatalf("Allocate: failed")
	}
	if err := fs.CreateDirectory(dirSector, rootDirSector, rootDirInitialEntries); err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}
	if err := root.Add("sub", dirSector); err != nil {
		t.Fatalf("Add: %v", err)
	}

	childIno, err := fs.OpenInode(dirSector)
	if err != nil {
		t.Fatalf("OpenInode: %v", err)
	}
	child := fs.OpenDirectory(childIno)

	fileSector, ok := fs.freeMap.Allocate(1)
	if !ok {
		t.Fatalf("Allocate: failed")
	}
	if err := fs.CreateInode(fileSector, 0, FileInode); err != nil {
		t.Fatalf("CreateInode: %v", err)
	}
	if err := child.Add("leaf", fileSector); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := child.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, _, err := root.Remove("sub"); err != ErrNotEmpty {
		t.Fatalf("Remove non-empty dir error = %v, want %v", err, ErrNotEmpty)
	}
}

func TestAddRejectsOverlongName(t *testing.T) {
	fs := newTestFS(t, 64)
	root, err := fs.OpenRootDirectory()
	if err != nil {
		t.Fatalf("OpenRootDirectory: %v", err)
	}
	defer root.Close()

	longName := make([]byte, NameMax+1)
	for i := range longName {
		longName[i] = 'x'
	}
	if err := root.Add(string(longName), 2); err != ErrNameTooLong {
		t.Fatalf("Add overlong name error = %v, want %v", err, ErrNameTooLong)
	}
}
