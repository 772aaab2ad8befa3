package main

import (
	"fmt"
	"os"

	"github.com/pintosfs/pintosfs"
)

func runGet(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: pintosfs get <image> <src> <dst>")
	}
	image, src, dst := args[0], args[1], args[2]

	fsys, err := mountImage(image, 0, false)
	if err != nil {
		return err
	}
	defer fsys.Shutdown()

	proc, err := pintosfs.NewProcess(fsys)
	if err != nil {
		return err
	}
	defer proc.CloseAll()

	fd, err := proc.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer proc.Close(fd)

	size, err := proc.Filesize(fd)
	if err != nil {
		return err
	}

	buf := make([]byte, size)
	for read := 0; read < len(buf); {
		n, err := proc.Read(fd, buf[read:])
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
		read += n
	}

	return os.WriteFile(dst, buf, 0644)
}
