//go:build linux

package directio

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// alloc returns a zeroed buffer suitable for I/O on f. Direct files get
// anonymous mappings, which are always page aligned; release must be
// called once the buffer is no longer needed.
func (f *File) alloc(size int) ([]byte, error) {
	if !f.direct {
		return make([]byte, size), nil
	}
	buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("allocate %d byte aligned buffer: %w", size, err)
	}
	return buf, nil
}

func (f *File) release(buf []byte) {
	if !f.direct {
		return
	}
	if err := unix.Munmap(buf); err != nil {
		logger.Warn("Failed to release %d byte aligned buffer: %v", len(buf), err)
	}
}
