package main

import (
	"fmt"

	"github.com/pintosfs/pintosfs"
)

func runRm(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: pintosfs rm <image> <path>")
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

	return proc.Remove(args[1])
}
