package fs

import (
	"context"
	"fmt"
	"os"
	"time"
)

// InodeID identifies a namespace entry.
type InodeID uint64

// The only two inodes that ever exist.
const (
	RootDir InodeID = 1
	Volume  InodeID = 2
)

func (i InodeID) String() string {
	switch i {
	case RootDir:
		return "root"
	case Volume:
		return "volume"
	}
	return fmt.Sprintf("inode(%d)", uint64(i))
}

// HandleID is the token returned by Open and OpenDir. It is always the
// inode the handle was opened on.
type HandleID uint64

// Op names a filesystem operation.
type Op int

// Operation kinds, one per method of Operations.
const (
	OpLookup Op = iota + 1
	OpForget
	OpGetAttr
	OpAccess
	OpTruncate
	OpOpenDir
	OpReadDir
	OpReleaseDir
	OpFsyncDir
	OpOpen
	OpRead
	OpWrite
	OpFlush
	OpFsync
	OpRelease
	OpStatFS
	OpGetxattr
	OpDestroy

	OpCreate
	OpMkdir
	OpMknod
	OpUnlink
	OpRmdir
	OpRename
	OpSymlink
	OpLink
	OpChmod
	OpChown
	OpUtime
	OpSetxattr
	OpRemovexattr
	OpListxattr
	OpReadlink
	OpLock
)

var opNames = map[Op]string{
	OpLookup:      "lookup",
	OpForget:      "forget",
	OpGetAttr:     "getattr",
	OpAccess:      "access",
	OpTruncate:    "truncate",
	OpOpenDir:     "opendir",
	OpReadDir:     "readdir",
	OpReleaseDir:  "releasedir",
	OpFsyncDir:    "fsyncdir",
	OpOpen:        "open",
	OpRead:        "read",
	OpWrite:       "write",
	OpFlush:       "flush",
	OpFsync:       "fsync",
	OpRelease:     "release",
	OpStatFS:      "statfs",
	OpGetxattr:    "getxattr",
	OpDestroy:     "destroy",
	OpCreate:      "create",
	OpMkdir:       "mkdir",
	OpMknod:       "mknod",
	OpUnlink:      "unlink",
	OpRmdir:       "rmdir",
	OpRename:      "rename",
	OpSymlink:     "symlink",
	OpLink:        "link",
	OpChmod:       "chmod",
	OpChown:       "chown",
	OpUtime:       "utime",
	OpSetxattr:    "setxattr",
	OpRemovexattr: "removexattr",
	OpListxattr:   "listxattr",
	OpReadlink:    "readlink",
	OpLock:        "lock",
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Refused reports whether o is one of the namespace, permission or link
// mutations that always fail with ErrNotSupported.
func (o Op) Refused() bool {
	return o >= OpCreate && o <= OpLock
}

// Operations is the full request surface of the filesystem. Every method
// corresponds to one Op. Embed Unsupported to inherit ErrNotSupported
// for everything an implementation does not override.
type Operations interface {
	Lookup(ctx context.Context, parent InodeID, name string) (Attributes, error)
	Forget(ctx context.Context, ino InodeID, n uint64)
	GetAttr(ctx context.Context, ino InodeID) (Attributes, error)
	Access(ctx context.Context, ino InodeID, mask uint32) error
	Truncate(ctx context.Context, ino InodeID, size uint64) error

	OpenDir(ctx context.Context, ino InodeID) (HandleID, error)
	ReadDir(ctx context.Context, h HandleID, offset int64) ([]DirEntry, error)
	ReleaseDir(ctx context.Context, h HandleID) error
	FsyncDir(ctx context.Context, h HandleID, datasync bool) error

	Open(ctx context.Context, ino InodeID, flags uint32) (HandleID, error)
	Read(ctx context.Context, h HandleID, offset int64, size int) ([]byte, error)
	Write(ctx context.Context, h HandleID, offset int64, data []byte) (int, error)
	Flush(ctx context.Context, h HandleID) error
	Fsync(ctx context.Context, h HandleID, datasync bool) error
	Release(ctx context.Context, h HandleID) error

	StatFS(ctx context.Context) (Capacity, error)
	Getxattr(ctx context.Context, ino InodeID, name string) ([]byte, error)
	Destroy(ctx context.Context)

	Create(ctx context.Context, parent InodeID, name string, mode os.FileMode, flags uint32) (Attributes, HandleID, error)
	Mkdir(ctx context.Context, parent InodeID, name string, mode os.FileMode) (Attributes, error)
	Mknod(ctx context.Context, parent InodeID, name string, mode os.FileMode, rdev uint32) (Attributes, error)
	Unlink(ctx context.Context, parent InodeID, name string) error
	Rmdir(ctx context.Context, parent InodeID, name string) error
	Rename(ctx context.Context, parent InodeID, name string, newParent InodeID, newName string) error
	Symlink(ctx context.Context, parent InodeID, name string, target string) (Attributes, error)
	Link(ctx context.Context, ino InodeID, newParent InodeID, newName string) (Attributes, error)
	Chmod(ctx context.Context, ino InodeID, mode os.FileMode) error
	Chown(ctx context.Context, ino InodeID, uid, gid uint32) error
	Utime(ctx context.Context, ino InodeID, atime, mtime time.Time) error
	Setxattr(ctx context.Context, ino InodeID, name string, value []byte, flags uint32) error
	Removexattr(ctx context.Context, ino InodeID, name string) error
	Listxattr(ctx context.Context, ino InodeID) ([]string, error)
	Readlink(ctx context.Context, ino InodeID) (string, error)
	Lock(ctx context.Context, h HandleID, wait bool) error
}

// Unsupported answers every operation with ErrNotSupported. Forget and
// Destroy, which have no reply, do nothing.
type Unsupported struct{}

var _ Operations = Unsupported{}

func refuse(op Op, ino InodeID) error {
	return NewFSError(op, ino, ErrNotSupported)
}

func (Unsupported) Lookup(_ context.Context, parent InodeID, _ string) (Attributes, error) {
	return Attributes{}, refuse(OpLookup, parent)
}

func (Unsupported) Forget(context.Context, InodeID, uint64) {}

func (Unsupported) GetAttr(_ context.Context, ino InodeID) (Attributes, error) {
	return Attributes{}, refuse(OpGetAttr, ino)
}

func (Unsupported) Access(_ context.Context, ino InodeID, _ uint32) error {
	return refuse(OpAccess, ino)
}

func (Unsupported) Truncate(_ context.Context, ino InodeID, _ uint64) error {
	return refuse(OpTruncate, ino)
}

func (Unsupported) OpenDir(_ context.Context, ino InodeID) (HandleID, error) {
	return 0, refuse(OpOpenDir, ino)
}

func (Unsupported) ReadDir(_ context.Context, h HandleID, _ int64) ([]DirEntry, error) {
	return nil, refuse(OpReadDir, InodeID(h))
}

func (Unsupported) ReleaseDir(_ context.Context, h HandleID) error {
	return refuse(OpReleaseDir, InodeID(h))
}

func (Unsupported) FsyncDir(_ context.Context, h HandleID, _ bool) error {
	return refuse(OpFsyncDir, InodeID(h))
}

func (Unsupported) Open(_ context.Context, ino InodeID, _ uint32) (HandleID, error) {
	return 0, refuse(OpOpen, ino)
}

func (Unsupported) Read(_ context.Context, h HandleID, _ int64, _ int) ([]byte, error) {
	return nil, refuse(OpRead, InodeID(h))
}

func (Unsupported) Write(_ context.Context, h HandleID, _ int64, _ []byte) (int, error) {
	return 0, refuse(OpWrite, InodeID(h))
}

func (Unsupported) Flush(_ context.Context, h HandleID) error {
	return refuse(OpFlush, InodeID(h))
}

func (Unsupported) Fsync(_ context.Context, h HandleID, _ bool) error {
	return refuse(OpFsync, InodeID(h))
}

func (Unsupported) Release(_ context.Context, h HandleID) error {
	return refuse(OpRelease, InodeID(h))
}

func (Unsupported) StatFS(context.Context) (Capacity, error) {
	return Capacity{}, refuse(OpStatFS, 0)
}

func (Unsupported) Getxattr(_ context.Context, ino InodeID, _ string) ([]byte, error) {
	return nil, refuse(OpGetxattr, ino)
}

func (Unsupported) Destroy(context.Context) {}

func (Unsupported) Create(_ context.Context, parent InodeID, _ string, _ os.FileMode, _ uint32) (Attributes, HandleID, error) {
	return Attributes{}, 0, refuse(OpCreate, parent)
}

func (Unsupported) Mkdir(_ context.Context, parent InodeID, _ string, _ os.FileMode) (Attributes, error) {
	return Attributes{}, refuse(OpMkdir, parent)
}

func (Unsupported) Mknod(_ context.Context, parent InodeID, _ string, _ os.FileMode, _ uint32) (Attributes, error) {
	return Attributes{}, refuse(OpMknod, parent)
}

func (Unsupported) Unlink(_ context.Context, parent InodeID, _ string) error {
	return refuse(OpUnlink, parent)
}

func (Unsupported) Rmdir(_ context.Context, parent InodeID, _ string) error {
	return refuse(OpRmdir, parent)
}

func (Unsupported) Rename(_ context.Context, parent InodeID, _ string, _ InodeID, _ string) error {
	return refuse(OpRename, parent)
}

func (Unsupported) Symlink(_ context.Context, parent InodeID, _ string, _ string) (Attributes, error) {
	return Attributes{}, refuse(OpSymlink, parent)
}

func (Unsupported) Link(_ context.Context, ino InodeID, _ InodeID, _ string) (Attributes, error) {
	return Attributes{}, refuse(OpLink, ino)
}

func (Unsupported) Chmod(_ context.Context, ino InodeID, _ os.FileMode) error {
	return refuse(OpChmod, ino)
}

func (Unsupported) Chown(_ context.Context, ino InodeID, _, _ uint32) error {
	return refuse(OpChown, ino)
}

func (Unsupported) Utime(_ context.Context, ino InodeID, _, _ time.Time) error {
	return refuse(OpUtime, ino)
}

func (Unsupported) Setxattr(_ context.Context, ino InodeID, _ string, _ []byte, _ uint32) error {
	return refuse(OpSetxattr, ino)
}

func (Unsupported) Removexattr(_ context.Context, ino InodeID, _ string) error {
	return refuse(OpRemovexattr, ino)
}

func (Unsupported) Listxattr(_ context.Context, ino InodeID) ([]string, error) {
	return nil, refuse(OpListxattr, ino)
}

func (Unsupported) Readlink(_ context.Context, ino InodeID) (string, error) {
	return "", refuse(OpReadlink, ino)
}

func (Unsupported) Lock(_ context.Context, h HandleID, _ bool) error {
	return refuse(OpLock, InodeID(h))
}
