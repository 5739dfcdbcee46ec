package fs

import (
	"context"

	"volfs/internal/logging"
)

var (
	dispatchLogger = logging.GetLogger().WithPrefix("dispatch")
)

// VolumeIO is the direct I/O adapter the dispatcher forwards data
// requests to. Offsets are absolute offsets into the backing object.
// Implementations must tolerate concurrent calls if the filesystem is
// served multithreaded.
type VolumeIO interface {
	Pread(offset int64, length int) ([]byte, error)
	Pwrite(offset int64, data []byte) (int, error)
}

// Dispatcher answers every filesystem operation against the fixed
// two-inode namespace. It holds no mutable state; every call stands
// alone.
type Dispatcher struct {
	Unsupported

	ns    Namespace
	attrs *Projector
	vol   VolumeIO
}

var _ Operations = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher that takes attributes from attrs and
// forwards reads and writes to vol.
func NewDispatcher(attrs *Projector, vol VolumeIO) *Dispatcher {
	return &Dispatcher{attrs: attrs, vol: vol}
}

// Lookup resolves name in parent and returns the child's attributes.
func (d *Dispatcher) Lookup(_ context.Context, parent InodeID, name string) (Attributes, error) {
	ino, err := d.ns.ResolveChild(parent, name)
	if err != nil {
		return Attributes{}, NewFSError(OpLookup, parent, err)
	}
	attrs, err := d.attrs.AttributesFor(ino)
	if err != nil {
		return Attributes{}, NewFSError(OpLookup, ino, err)
	}
	return attrs, nil
}

func (d *Dispatcher) GetAttr(_ context.Context, ino InodeID) (Attributes, error) {
	attrs, err := d.attrs.AttributesFor(ino)
	if err != nil {
		return Attributes{}, NewFSError(OpGetAttr, ino, err)
	}
	return attrs, nil
}

// Access grants everything; there is no permission model.
func (d *Dispatcher) Access(_ context.Context, ino InodeID, _ uint32) error {
	if !d.ns.Exists(ino) {
		return NewFSError(OpAccess, ino, ErrNoSuchEntry)
	}
	return nil
}

// Truncate accepts any size and changes nothing. The backing object is
// never resized through the filesystem.
func (d *Dispatcher) Truncate(_ context.Context, ino InodeID, size uint64) error {
	if !d.ns.Exists(ino) {
		return NewFSError(OpTruncate, ino, ErrNoSuchEntry)
	}
	dispatchLogger.Debug("Ignoring truncate of %v to %d bytes", ino, size)
	return nil
}

func (d *Dispatcher) OpenDir(_ context.Context, ino InodeID) (HandleID, error) {
	if ino != RootDir {
		return 0, NewFSError(OpOpenDir, ino, ErrNoSuchEntry)
	}
	return HandleID(ino), nil
}

// ReadDir lists the root from offset. "." and ".." occupy offsets 0 and
// 1; the namespace children follow.
func (d *Dispatcher) ReadDir(_ context.Context, h HandleID, offset int64) ([]DirEntry, error) {
	if InodeID(h) != RootDir || offset < 0 {
		return nil, NewFSError(OpReadDir, InodeID(h), ErrNoSuchEntry)
	}

	dots := []DirEntry{
		{Name: ".", Inode: RootDir, Kind: KindDirectory, Next: 1},
		{Name: "..", Inode: RootDir, Kind: KindDirectory, Next: 2},
	}

	var entries []DirEntry
	childOffset := int64(0)
	if offset < int64(len(dots)) {
		entries = append(entries, dots[offset:]...)
	} else {
		childOffset = offset - int64(len(dots))
	}

	children, err := d.ns.ListChildren(RootDir, childOffset)
	if err != nil {
		return nil, NewFSError(OpReadDir, InodeID(h), err)
	}
	for _, child := range children {
		child.Next += int64(len(dots))
		entries = append(entries, child)
	}
	return entries, nil
}

func (d *Dispatcher) ReleaseDir(_ context.Context, h HandleID) error {
	if InodeID(h) != RootDir {
		return NewFSError(OpReleaseDir, InodeID(h), ErrNoSuchEntry)
	}
	return nil
}

func (d *Dispatcher) FsyncDir(_ context.Context, h HandleID, _ bool) error {
	if InodeID(h) != RootDir {
		return NewFSError(OpFsyncDir, InodeID(h), ErrNoSuchEntry)
	}
	return nil
}

func (d *Dispatcher) Open(_ context.Context, ino InodeID, _ uint32) (HandleID, error) {
	if ino != Volume {
		return 0, NewFSError(OpOpen, ino, ErrNoSuchEntry)
	}
	return HandleID(ino), nil
}

// Read forwards to the adapter. A short result is returned as is.
func (d *Dispatcher) Read(_ context.Context, h HandleID, offset int64, size int) ([]byte, error) {
	if InodeID(h) != Volume {
		return nil, NewFSError(OpRead, InodeID(h), ErrNoSuchEntry)
	}
	data, err := d.vol.Pread(offset, size)
	if err != nil {
		return nil, &BackingIOError{Op: OpRead, Offset: offset, Err: err}
	}
	return data, nil
}

// Write forwards to the adapter and reports how many bytes it took.
func (d *Dispatcher) Write(_ context.Context, h HandleID, offset int64, data []byte) (int, error) {
	if InodeID(h) != Volume {
		return 0, NewFSError(OpWrite, InodeID(h), ErrNoSuchEntry)
	}
	n, err := d.vol.Pwrite(offset, data)
	if err != nil {
		return n, &BackingIOError{Op: OpWrite, Offset: offset, Err: err}
	}
	return n, nil
}

// Flush has nothing to do: no writes are buffered at this layer.
func (d *Dispatcher) Flush(_ context.Context, h HandleID) error {
	if InodeID(h) != Volume {
		return NewFSError(OpFlush, InodeID(h), ErrNoSuchEntry)
	}
	return nil
}

func (d *Dispatcher) Fsync(_ context.Context, h HandleID, _ bool) error {
	if InodeID(h) != Volume {
		return NewFSError(OpFsync, InodeID(h), ErrNoSuchEntry)
	}
	return nil
}

func (d *Dispatcher) Release(_ context.Context, h HandleID) error {
	if InodeID(h) != Volume {
		return NewFSError(OpRelease, InodeID(h), ErrNoSuchEntry)
	}
	return nil
}

func (d *Dispatcher) StatFS(context.Context) (Capacity, error) {
	capacity, err := d.attrs.Capacity()
	if err != nil {
		return Capacity{}, NewFSError(OpStatFS, 0, err)
	}
	return capacity, nil
}

// Getxattr reports every attribute name as absent.
func (d *Dispatcher) Getxattr(_ context.Context, ino InodeID, _ string) ([]byte, error) {
	if !d.ns.Exists(ino) {
		return nil, NewFSError(OpGetxattr, ino, ErrNoSuchEntry)
	}
	return nil, NewFSError(OpGetxattr, ino, ErrNoAttribute)
}
