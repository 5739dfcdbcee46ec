//go:build linux

package directio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"volfs/internal/logging"

	"golang.org/x/sys/unix"
)

var (
	logger = logging.GetLogger().WithPrefix("directio")

	// ErrClosed is returned for I/O on a File after Close.
	ErrClosed = errors.New("directio: file already closed")
)

// DefaultAlignment is used when the backing object does not report a
// logical block size of its own.
const DefaultAlignment = 4096

// Options control how the backing object is opened.
type Options struct {
	// ReadOnly opens the object O_RDONLY; Pwrite then fails with EROFS.
	ReadOnly bool

	// AllowBuffered reopens the object without O_DIRECT when the host
	// filesystem rejects it (tmpfs on older kernels, some FUSE mounts).
	AllowBuffered bool

	// Alignment overrides the detected block alignment. Zero means
	// BLKSSZGET for block devices, DefaultAlignment for direct files and
	// no alignment for buffered files.
	Alignment int
}

// File is an open backing object.
type File struct {
	name     string
	file     *os.File
	fd       int
	align    int64
	direct   bool
	block    bool
	readOnly bool

	// mu is held shared for aligned I/O and exclusively for
	// read-modify-write cycles.
	mu     sync.RWMutex
	closed bool
}

// Name returns the path the File was opened with.
func (f *File) Name() string { return f.name }

// Direct reports whether the object was opened with O_DIRECT.
func (f *File) Direct() bool { return f.direct }

// Alignment returns the block granularity every transfer is widened to.
func (f *File) Alignment() int { return int(f.align) }

// IsBlockDevice reports whether the object is a block device node.
func (f *File) IsBlockDevice() bool { return f.block }

// Size returns the current size of the backing object in bytes.
func (f *File) Size() (int64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return 0, ErrClosed
	}
	return f.sizeLocked()
}

func (f *File) sizeLocked() (int64, error) {
	if f.block {
		return blockDeviceSize(f.fd)
	}
	var st unix.Stat_t
	if err := unix.Fstat(f.fd, &st); err != nil {
		return 0, &os.PathError{Op: "fstat", Path: f.name, Err: err}
	}
	return st.Size, nil
}

// Pread reads up to length bytes starting at offset. The result is short
// only when the end of the backing object is reached.
func (f *File) Pread(offset int64, length int) ([]byte, error) {
	if offset < 0 || length < 0 {
		return nil, &os.PathError{Op: "pread", Path: f.name, Err: unix.EINVAL}
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, ErrClosed
	}
	if length == 0 {
		return []byte{}, nil
	}

	start := alignDown(offset, f.align)
	end := alignUp(offset+int64(length), f.align)
	buf, err := f.alloc(int(end - start))
	if err != nil {
		return nil, err
	}
	defer f.release(buf)

	n, err := f.preadFull(buf, start)
	if err != nil {
		logger.Error("pread %s at %d (%d bytes) failed: %v", f.name, start, len(buf), err)
		return nil, err
	}

	skip := int(offset - start)
	if n <= skip {
		return []byte{}, nil
	}
	avail := n - skip
	if avail > length {
		avail = length
	}
	out := make([]byte, avail)
	copy(out, buf[skip:skip+avail])
	logger.Trace("pread %s at %d: %d of %d bytes", f.name, offset, avail, length)
	return out, nil
}

// Pwrite writes data at offset and returns the number of bytes of data
// that reached the backing object.
func (f *File) Pwrite(offset int64, data []byte) (int, error) {
	if offset < 0 {
		return 0, &os.PathError{Op: "pwrite", Path: f.name, Err: unix.EINVAL}
	}
	if f.readOnly {
		return 0, &os.PathError{Op: "pwrite", Path: f.name, Err: unix.EROFS}
	}
	if len(data) == 0 {
		return 0, nil
	}

	if offset%f.align == 0 && int64(len(data))%f.align == 0 {
		return f.writeAligned(offset, data)
	}
	return f.writeMerged(offset, data)
}

func (f *File) writeAligned(offset int64, data []byte) (int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return 0, ErrClosed
	}

	buf, err := f.alloc(len(data))
	if err != nil {
		return 0, err
	}
	defer f.release(buf)
	copy(buf, data)

	n, err := f.pwriteFull(buf, offset)
	if err != nil {
		logger.Error("pwrite %s at %d (%d bytes) failed after %d bytes: %v", f.name, offset, len(buf), n, err)
	}
	logger.Trace("pwrite %s at %d: %d bytes", f.name, offset, n)
	return n, err
}

// writeMerged handles a write whose bounds do not fall on block
// boundaries by rewriting the enclosing aligned span.
func (f *File) writeMerged(offset int64, data []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, ErrClosed
	}

	var before int64
	if !f.block {
		size, err := f.sizeLocked()
		if err != nil {
			return 0, err
		}
		before = size
	}

	start := alignDown(offset, f.align)
	stop := offset + int64(len(data))
	end := alignUp(stop, f.align)
	buf, err := f.alloc(int(end - start))
	if err != nil {
		return 0, err
	}
	defer f.release(buf)

	if offset != start {
		if _, err := f.preadFull(buf[:f.align], start); err != nil {
			return 0, err
		}
	}
	if stop != end && (end-f.align > start || offset == start) {
		tail := end - f.align - start
		if _, err := f.preadFull(buf[tail:], end-f.align); err != nil {
			return 0, err
		}
	}
	copy(buf[offset-start:], data)

	n, err := f.pwriteFull(buf, start)
	written := n - int(offset-start)
	if written < 0 {
		written = 0
	}
	if written > len(data) {
		written = len(data)
	}
	if err != nil {
		logger.Error("merged pwrite %s at %d (%d bytes) failed after %d bytes: %v", f.name, offset, len(data), written, err)
		return written, err
	}

	// Padding past the caller's last byte must not grow an image file.
	if !f.block && end > before {
		want := before
		if stop > want {
			want = stop
		}
		if err := unix.Ftruncate(f.fd, want); err != nil {
			return written, &os.PathError{Op: "ftruncate", Path: f.name, Err: err}
		}
	}

	logger.Trace("merged pwrite %s at %d: %d bytes (span %d-%d)", f.name, offset, written, start, end)
	return written, nil
}

func (f *File) preadFull(buf []byte, offset int64) (int, error) {
	read := 0
	for read < len(buf) {
		n, err := unix.Pread(f.fd, buf[read:], offset+int64(read))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return read, &os.PathError{Op: "pread", Path: f.name, Err: err}
		}
		read += n
		// Disk reads come back short only at end of object. Retrying
		// from an unaligned position would fail under O_DIRECT anyway.
		if n == 0 || read < len(buf) {
			break
		}
	}
	return read, nil
}

func (f *File) pwriteFull(buf []byte, offset int64) (int, error) {
	written := 0
	for written < len(buf) {
		n, err := unix.Pwrite(f.fd, buf[written:], offset+int64(written))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return written, &os.PathError{Op: "pwrite", Path: f.name, Err: err}
		}
		if n == 0 {
			return written, &os.PathError{Op: "pwrite", Path: f.name, Err: io.ErrShortWrite}
		}
		written += n
	}
	return written, nil
}

// Close releases the file descriptor. Calling Close more than once is
// harmless.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	logger.Debug("Closing backing object %s", f.name)
	if err := f.file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", f.name, err)
	}
	return nil
}

func alignDown(n, align int64) int64 {
	return n - n%align
}

func alignUp(n, align int64) int64 {
	if r := n % align; r != 0 {
		return n + align - r
	}
	return n
}
