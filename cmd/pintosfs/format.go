package main

import (
	"fmt"
	"strconv"
)

func runFormat(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: pintosfs format <image> <sectors>")
	}
	sectors, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid sector count %q: %w", args[1], err)
	}

	fs, err := mountImage(args[0], uint32(sectors), true)
	if err != nil {
		return err
	}
	defer fs.Shutdown()

	fmt.Printf("formatted %s: %d sectors, %d free\n", args[0], sectors, fs.FreeSectors())
	return nil
}
