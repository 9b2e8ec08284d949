//go:build linux || darwin || freebsd || netbsd || openbsd
// +build linux darwin freebsd netbsd openbsd

package objfile

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/go-delve/dwarfscan/pkg/logflags"
)

// mapFile maps the file at path read-only in memory.
func mapFile(path string) ([]byte, func() error, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer fh.Close()
	fi, err := fh.Stat()
	if err != nil {
		return nil, nil, err
	}
	size := fi.Size()
	if size == 0 {
		return nil, func() error { return nil }, nil
	}
	if int64(int(size)) != size {
		return nil, nil, fmt.Errorf("%s: file too large to map", path)
	}
	data, err := unix.Mmap(int(fh.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, &os.PathError{Op: "mmap", Path: path, Err: err}
	}
	if logflags.Loader() {
		logflags.LoaderLogger().Debugf("mapped %s (%d bytes)", path, size)
	}
	return data, func() error { return unix.Munmap(data) }, nil
}
