package directio

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Open opens the backing object at path for direct I/O.
func Open(path string, opts Options) (*File, error) {
	if opts.Alignment < 0 || opts.Alignment&(opts.Alignment-1) != 0 {
		return nil, fmt.Errorf("alignment %d is not a power of two", opts.Alignment)
	}

	flags := os.O_RDWR
	if opts.ReadOnly {
		flags = os.O_RDONLY
	}

	direct := true
	file, err := os.OpenFile(path, flags|unix.O_DIRECT, 0)
	if err != nil && errors.Is(err, unix.EINVAL) && opts.AllowBuffered {
		logger.Warn("%s does not support O_DIRECT, falling back to buffered I/O", path)
		direct = false
		file, err = os.OpenFile(path, flags, 0)
	}
	if err != nil {
		return nil, fmt.Errorf("open backing object: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat backing object: %w", err)
	}
	mode := info.Mode()
	block := mode&os.ModeDevice != 0 && mode&os.ModeCharDevice == 0
	if !mode.IsRegular() && !block {
		file.Close()
		return nil, fmt.Errorf("backing object %s is neither a regular file nor a block device (mode %v)", path, mode)
	}

	f := &File{
		name:     path,
		file:     file,
		fd:       int(file.Fd()),
		direct:   direct,
		block:    block,
		readOnly: opts.ReadOnly,
	}

	switch {
	case opts.Alignment > 0:
		f.align = int64(opts.Alignment)
	case !direct:
		f.align = 1
	case block:
		sector, err := unix.IoctlGetInt(f.fd, unix.BLKSSZGET)
		if err != nil || sector <= 0 {
			logger.Warn("BLKSSZGET on %s failed (%v), using %d byte alignment", path, err, DefaultAlignment)
			sector = DefaultAlignment
		}
		f.align = int64(sector)
	default:
		f.align = DefaultAlignment
	}

	logger.Info("Opened backing object %s (direct=%v, block=%v, alignment=%d)", path, f.direct, f.block, f.align)
	return f, nil
}

// DeviceSize returns the size of the block device at path.
func DeviceSize(path string) (int64, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return 0, &os.PathError{Op: "open", Path: path, Err: err}
	}
	defer unix.Close(fd)
	return blockDeviceSize(fd)
}

func blockDeviceSize(fd int) (int64, error) {
	size, err := unix.IoctlGetInt(fd, unix.BLKGETSIZE64)
	if err != nil {
		return 0, fmt.Errorf("BLKGETSIZE64: %w", err)
	}
	return int64(size), nil
}
