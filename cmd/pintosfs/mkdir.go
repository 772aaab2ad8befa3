package main

import (
	"fmt"

	"github.com/pintosfs/pintosfs"
)

func runMkdir(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: pintosfs mkdir <image> <path>")
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

	return proc.Mkdir(args[1])
}
