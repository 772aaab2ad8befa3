package main

import (
	"fmt"
	"os"

	"github.com/pintosfs/pintosfs"
)

const usage = `pintosfs - Pintos-style file system CLI tool

Usage:
  pintosfs format <image> <sectors>                 Create a new, empty file system image
  pintosfs ls <image> [<path>]                       List a directory's entries
  pintosfs put <image> <src> <dst>                    Copy a host file into the image
  pintosfs get <image> <src> <dst>                    Copy a file out of the image to the host
  pintosfs mkdir <image> <path>                       Create a directory
  pintosfs rm <image> <path>                          Remove a file or empty directory
  pintosfs snapshot export <image> <out> [codec]      Write a compressed snapshot of image
  pintosfs snapshot import <in> <image> <sectors> [codec]  Restore a snapshot into a new image
  pintosfs help                                       Show this help message

codec defaults to "gzip"; "xz" is available in builds with the xz tag.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "format":
		err = runFormat(os.Args[2:])
	case "ls":
		err = runLs(os.Args[2:])
	case "put":
		err = runPut(os.Args[2:])
	case "get":
		err = runGet(os.Args[2:])
	case "mkdir":
		err = runMkdir(os.Args[2:])
	case "rm":
		err = runRm(os.Args[2:])
	case "snapshot":
		err = runSnapshot(os.Args[2:])
	case "help":
		fmt.Println(usage)
		return
	default:
		fmt.Printf("Error: unknown command %q\n", os.Args[1])
		fmt.Println(usage)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func mountImage(path string, sectors uint32, create bool) (*pintosfs.Filesystem, error) {
	dev, err := pintosfs.OpenFileDevice(path, sectors)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	if create {
		return pintosfs.Format(dev)
	}
	return pintosfs.Mount(dev)
}
