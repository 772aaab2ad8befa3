package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pintosfs/pintosfs"
)

func runSnapshot(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: pintosfs snapshot export|import ...")
	}
	switch args[0] {
	case "export":
		return runSnapshotExport(args[1:])
	case "import":
		return runSnapshotImport(args[1:])
	default:
		return fmt.Errorf("unknown snapshot subcommand %q", args[0])
	}
}

func runSnapshotExport(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: pintosfs snapshot export <image> <out> [codec]")
	}
	image, out := args[0], args[1]
	codec := "gzip"
	if len(args) > 2 {
		codec = args[2]
	}

	fsys, err := mountImage(image, 0, false)
	if err != nil {
		return err
	}
	defer fsys.Shutdown()

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating %s: %w", out, err)
	}
	defer f.Close()

	return pintosfs.Export(fsys, f, codec)
}

func runSnapshotImport(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: pintosfs snapshot import <in> <image> <sectors> [codec]")
	}
	in, image := args[0], args[1]
	sectors, err := strconv.ParseUint(args[2], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid sector count %q: %w", args[2], err)
	}
	codec := "gzip"
	if len(args) > 3 {
		codec = args[3]
	}

	r, err := os.Open(in)
	if err != nil {
		return fmt.Errorf("opening %s: %w", in, err)
	}
	defer r.Close()

	dev, err := pintosfs.OpenFileDevice(image, uint32(sectors))
	if err != nil {
		return err
	}

	fsys, err := pintosfs.Import(dev, r, codec)
	if err != nil {
		return err
	}
	return fsys.Shutdown()
}
