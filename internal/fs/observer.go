package fs

import (
	"context"
	"errors"
	"os"
	"time"

	"volfs/internal/logging"
)

// Event describes one completed operation.
type Event struct {
	Op       Op
	Inode    InodeID // target inode, or the inode a handle was opened on
	Name     string  // entry name for namespace operations
	Offset   int64   // read, write and readdir offset
	Size     int     // bytes requested or supplied
	Err      error
	Duration time.Duration
}

// Observer receives an Event after every operation. It must not block.
type Observer func(Event)

// Observe wraps ops so that obs sees every call. A nil obs returns ops
// unchanged.
func Observe(ops Operations, obs Observer) Operations {
	if obs == nil {
		return ops
	}
	return &observed{next: ops, obs: obs}
}

type observed struct {
	next Operations
	obs  Observer
}

var _ Operations = (*observed)(nil)

func (o *observed) emit(ev Event, start time.Time) {
	ev.Duration = time.Since(start)
	o.obs(ev)
}

func (o *observed) Lookup(ctx context.Context, parent InodeID, name string) (Attributes, error) {
	start := time.Now()
	attrs, err := o.next.Lookup(ctx, parent, name)
	o.emit(Event{Op: OpLookup, Inode: parent, Name: name, Err: err}, start)
	return attrs, err
}

func (o *observed) Forget(ctx context.Context, ino InodeID, n uint64) {
	start := time.Now()
	o.next.Forget(ctx, ino, n)
	o.emit(Event{Op: OpForget, Inode: ino, Size: int(n)}, start)
}

func (o *observed) GetAttr(ctx context.Context, ino InodeID) (Attributes, error) {
	start := time.Now()
	attrs, err := o.next.GetAttr(ctx, ino)
	o.emit(Event{Op: OpGetAttr, Inode: ino, Err: err}, start)
	return attrs, err
}

func (o *observed) Access(ctx context.Context, ino InodeID, mask uint32) error {
	start := time.Now()
	err := o.next.Access(ctx, ino, mask)
	o.emit(Event{Op: OpAccess, Inode: ino, Err: err}, start)
	return err
}

func (o *observed) Truncate(ctx context.Context, ino InodeID, size uint64) error {
	start := time.Now()
	err := o.next.Truncate(ctx, ino, size)
	o.emit(Event{Op: OpTruncate, Inode: ino, Offset: int64(size), Err: err}, start)
	return err
}

func (o *observed) OpenDir(ctx context.Context, ino InodeID) (HandleID, error) {
	start := time.Now()
	h, err := o.next.OpenDir(ctx, ino)
	o.emit(Event{Op: OpOpenDir, Inode: ino, Err: err}, start)
	return h, err
}

func (o *observed) ReadDir(ctx context.Context, h HandleID, offset int64) ([]DirEntry, error) {
	start := time.Now()
	entries, err := o.next.ReadDir(ctx, h, offset)
	o.emit(Event{Op: OpReadDir, Inode: InodeID(h), Offset: offset, Size: len(entries), Err: err}, start)
	return entries, err
}

func (o *observed) ReleaseDir(ctx context.Context, h HandleID) error {
	start := time.Now()
	err := o.next.ReleaseDir(ctx, h)
	o.emit(Event{Op: OpReleaseDir, Inode: InodeID(h), Err: err}, start)
	return err
}

func (o *observed) FsyncDir(ctx context.Context, h HandleID, datasync bool) error {
	start := time.Now()
	err := o.next.FsyncDir(ctx, h, datasync)
	o.emit(Event{Op: OpFsyncDir, Inode: InodeID(h), Err: err}, start)
	return err
}

func (o *observed) Open(ctx context.Context, ino InodeID, flags uint32) (HandleID, error) {
	start := time.Now()
	h, err := o.next.Open(ctx, ino, flags)
	o.emit(Event{Op: OpOpen, Inode: ino, Err: err}, start)
	return h, err
}

func (o *observed) Read(ctx context.Context, h HandleID, offset int64, size int) ([]byte, error) {
	start := time.Now()
	data, err := o.next.Read(ctx, h, offset, size)
	o.emit(Event{Op: OpRead, Inode: InodeID(h), Offset: offset, Size: size, Err: err}, start)
	return data, err
}

func (o *observed) Write(ctx context.Context, h HandleID, offset int64, data []byte) (int, error) {
	start := time.Now()
	n, err := o.next.Write(ctx, h, offset, data)
	o.emit(Event{Op: OpWrite, Inode: InodeID(h), Offset: offset, Size: len(data), Err: err}, start)
	return n, err
}

func (o *observed) Flush(ctx context.Context, h HandleID) error {
	start := time.Now()
	err := o.next.Flush(ctx, h)
	o.emit(Event{Op: OpFlush, Inode: InodeID(h), Err: err}, start)
	return err
}

func (o *observed) Fsync(ctx context.Context, h HandleID, datasync bool) error {
	start := time.Now()
	err := o.next.Fsync(ctx, h, datasync)
	o.emit(Event{Op: OpFsync, Inode: InodeID(h), Err: err}, start)
	return err
}

func (o *observed) Release(ctx context.Context, h HandleID) error {
	start := time.Now()
	err := o.next.Release(ctx, h)
	o.emit(Event{Op: OpRelease, Inode: InodeID(h), Err: err}, start)
	return err
}

func (o *observed) StatFS(ctx context.Context) (Capacity, error) {
	start := time.Now()
	capacity, err := o.next.StatFS(ctx)
	o.emit(Event{Op: OpStatFS, Err: err}, start)
	return capacity, err
}

func (o *observed) Getxattr(ctx context.Context, ino InodeID, name string) ([]byte, error) {
	start := time.Now()
	value, err := o.next.Getxattr(ctx, ino, name)
	o.emit(Event{Op: OpGetxattr, Inode: ino, Name: name, Err: err}, start)
	return value, err
}

func (o *observed) Destroy(ctx context.Context) {
	start := time.Now()
	o.next.Destroy(ctx)
	o.emit(Event{Op: OpDestroy}, start)
}

func (o *observed) Create(ctx context.Context, parent InodeID, name string, mode os.FileMode, flags uint32) (Attributes, HandleID, error) {
	start := time.Now()
	attrs, h, err := o.next.Create(ctx, parent, name, mode, flags)
	o.emit(Event{Op: OpCreate, Inode: parent, Name: name, Err: err}, start)
	return attrs, h, err
}

func (o *observed) Mkdir(ctx context.Context, parent InodeID, name string, mode os.FileMode) (Attributes, error) {
	start := time.Now()
	attrs, err := o.next.Mkdir(ctx, parent, name, mode)
	o.emit(Event{Op: OpMkdir, Inode: parent, Name: name, Err: err}, start)
	return attrs, err
}

func (o *observed) Mknod(ctx context.Context, parent InodeID, name string, mode os.FileMode, rdev uint32) (Attributes, error) {
	start := time.Now()
	attrs, err := o.next.Mknod(ctx, parent, name, mode, rdev)
	o.emit(Event{Op: OpMknod, Inode: parent, Name: name, Err: err}, start)
	return attrs, err
}

func (o *observed) Unlink(ctx context.Context, parent InodeID, name string) error {
	start := time.Now()
	err := o.next.Unlink(ctx, parent, name)
	o.emit(Event{Op: OpUnlink, Inode: parent, Name: name, Err: err}, start)
	return err
}

func (o *observed) Rmdir(ctx context.Context, parent InodeID, name string) error {
	start := time.Now()
	err := o.next.Rmdir(ctx, parent, name)
	o.emit(Event{Op: OpRmdir, Inode: parent, Name: name, Err: err}, start)
	return err
}

func (o *observed) Rename(ctx context.Context, parent InodeID, name string, newParent InodeID, newName string) error {
	start := time.Now()
	err := o.next.Rename(ctx, parent, name, newParent, newName)
	o.emit(Event{Op: OpRename, Inode: parent, Name: name, Err: err}, start)
	return err
}

func (o *observed) Symlink(ctx context.Context, parent InodeID, name string, target string) (Attributes, error) {
	start := time.Now()
	attrs, err := o.next.Symlink(ctx, parent, name, target)
	o.emit(Event{Op: OpSymlink, Inode: parent, Name: name, Err: err}, start)
	return attrs, err
}

func (o *observed) Link(ctx context.Context, ino InodeID, newParent InodeID, newName string) (Attributes, error) {
	start := time.Now()
	attrs, err := o.next.Link(ctx, ino, newParent, newName)
	o.emit(Event{Op: OpLink, Inode: ino, Name: newName, Err: err}, start)
	return attrs, err
}

func (o *observed) Chmod(ctx context.Context, ino InodeID, mode os.FileMode) error {
	start := time.Now()
	err := o.next.Chmod(ctx, ino, mode)
	o.emit(Event{Op: OpChmod, Inode: ino, Err: err}, start)
	return err
}

func (o *observed) Chown(ctx context.Context, ino InodeID, uid, gid uint32) error {
	start := time.Now()
	err := o.next.Chown(ctx, ino, uid, gid)
	o.emit(Event{Op: OpChown, Inode: ino, Err: err}, start)
	return err
}

func (o *observed) Utime(ctx context.Context, ino InodeID, atime, mtime time.Time) error {
	start := time.Now()
	err := o.next.Utime(ctx, ino, atime, mtime)
	o.emit(Event{Op: OpUtime, Inode: ino, Err: err}, start)
	return err
}

func (o *observed) Setxattr(ctx context.Context, ino InodeID, name string, value []byte, flags uint32) error {
	start := time.Now()
	err := o.next.Setxattr(ctx, ino, name, value, flags)
	o.emit(Event{Op: OpSetxattr, Inode: ino, Name: name, Size: len(value), Err: err}, start)
	return err
}

func (o *observed) Removexattr(ctx context.Context, ino InodeID, name string) error {
	start := time.Now()
	err := o.next.Removexattr(ctx, ino, name)
	o.emit(Event{Op: OpRemovexattr, Inode: ino, Name: name, Err: err}, start)
	return err
}

func (o *observed) Listxattr(ctx context.Context, ino InodeID) ([]string, error) {
	start := time.Now()
	names, err := o.next.Listxattr(ctx, ino)
	o.emit(Event{Op: OpListxattr, Inode: ino, Err: err}, start)
	return names, err
}

func (o *observed) Readlink(ctx context.Context, ino InodeID) (string, error) {
	start := time.Now()
	target, err := o.next.Readlink(ctx, ino)
	o.emit(Event{Op: OpReadlink, Inode: ino, Err: err}, start)
	return target, err
}

func (o *observed) Lock(ctx context.Context, h HandleID, wait bool) error {
	start := time.Now()
	err := o.next.Lock(ctx, h, wait)
	o.emit(Event{Op: OpLock, Inode: InodeID(h), Err: err}, start)
	return err
}

// LogObserver writes events to logger. Data transfers log at TRACE,
// everything else at DEBUG. Failures other than the expected namespace
// refusals log at WARN, backing I/O failures at ERROR.
func LogObserver(logger *logging.Logger) Observer {
	return func(ev Event) {
		var ioErr *BackingIOError
		switch {
		case ev.Err == nil:
			if ev.Op == OpRead || ev.Op == OpWrite {
				logger.Trace("%s %v off=%d size=%d (%v)", ev.Op, ev.Inode, ev.Offset, ev.Size, ev.Duration)
			} else {
				logger.Debug("%s %v %s(%v)", ev.Op, ev.Inode, nameField(ev.Name), ev.Duration)
			}
		case errors.As(ev.Err, &ioErr):
			logger.Error("%s %v off=%d size=%d failed: %v", ev.Op, ev.Inode, ev.Offset, ev.Size, ev.Err)
		case errors.Is(ev.Err, ErrNoSuchEntry), errors.Is(ev.Err, ErrNotSupported), errors.Is(ev.Err, ErrNoAttribute):
			logger.Debug("%s %v %srefused: %v", ev.Op, ev.Inode, nameField(ev.Name), ev.Err)
		default:
			logger.Warn("%s %v %sfailed: %v", ev.Op, ev.Inode, nameField(ev.Name), ev.Err)
		}
	}
}

func nameField(name string) string {
	if name == "" {
		return ""
	}
	return "name=" + name + " "
}
