//go:build linux || darwin || freebsd || netbsd || openbsd

package device

import (
	"golang.org/x/sys/unix"
)

// allocFrameBuffer reserves a page-aligned shared anonymous region so the
// frame can be handed out page by page.
func allocFrameBuffer(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANON)
}

func releaseFrameBuffer(b []byte) error {
	return unix.Munmap(b)
}

func hostPageSize() int {
	return unix.Getpagesize()
}
