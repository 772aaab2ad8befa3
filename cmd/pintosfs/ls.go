package main

import (
	"fmt"

	"github.com/pintosfs/pintosfs"
)

func runLs(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: pintosfs ls <image> [<path>]")
	}
	path := "/"
	if len(args) > 1 {
		path = args[1]
	}

	fsys, err := mountImage(args[0], 0, false)
	if err != nil {
		return err
	}
	defer fsys.Shutdown()

	proc, err := pintosfs.NewProcess(fsys)
	if err != nil {
		return err
	}
	defer proc.CloseAll()

	fd, err := proc.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer proc.Close(fd)
	if !proc.Isdir(fd) {
		return fmt.Errorf("%s is not a directory", path)
	}

	for {
		name, ok, err := proc.Readdir(fd)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		fmt.Println(name)
	}
	return nil
}
