package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pintosfs/pintosfs"
)

func runPut(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: pintosfs put <image> <src> <dst>")
	}
	image, src, dst := args[0], args[1], args[2]

	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}

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

	if err := proc.Create(dst, int64(len(data))); err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	fd, err := proc.Open(dst)
	if err != nil {
		return err
	}
	defer proc.Close(fd)

	for written := 0; written < len(data); {
		n, err := proc.Write(fd, data[written:])
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		written += n
	}
	return nil
}
