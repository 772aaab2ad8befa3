package pintosfs

import (
	"testing"
	"time"
)

func TestFormatThenMountPreservesContent(t *testing.T) {
	dev := NewMemDevice(128)
	fs1, err := Format(dev)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}

	proc1, err := NewProcess(fs1)
	if err != nil {
		t.Fatalf("NewProcess: %v", err)
	}
	if err := proc1.Create("/hello", 0); err != nil {
		t.Fatalf("Create: %v", err)
	}
	fd, err := proc1.Open("/hello")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := proc1.Write(fd, []byte("world")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := proc1.CloseAll(); err != nil {
		t.Fatalf("CloseAll: %v", err)
	}
	if err := fs1.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	fs2, err := Mount(dev)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	defer fs2.Shutdown()

	proc2, err := NewProcess(fs2)
	if err != nil {
		t.Fatalf("NewProcess: %v", err)
	}
	defer proc2.CloseAll()

	fd2, err := proc2.Open("/hello")
	if err != nil {
		t.Fatalf("Open after remount: %v", err)
	}
	buf := make([]byte, 5)
	n, err := proc2.Read(fd2, buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 5 || string(buf) != "world" {
		t.Fatalf("content after remount = %q, want %q", buf[:n], "world")
	}
}

func TestWithFlusherSpawnsAndJoins(t *testing.T) {
	fs, err := Format(NewMemDevice(64), WithFlusher(NewTickerFlusher(5*time.Millisecond)))
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	// Shutdown must join the flusher goroutine without hanging.
	if err := fs.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
