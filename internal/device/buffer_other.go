//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package device

import "os"

func allocFrameBuffer(size int) ([]byte, error) {
	return make([]byte, size), nil
}

func releaseFrameBuffer(_ []byte) error {
	return nil
}

func hostPageSize() int {
	return os.Getpagesize()
}
