package fs

import (
	"context"

	"volfs/internal/logging"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

var (
	fileLogger = logging.GetLogger().WithPrefix("file")
)

// File is the volume node.
type File struct {
	node
}

// Open implements the NodeOpener interface. The kernel is told to bypass
// its page cache so every read and write reaches the backing object.
func (f *File) Open(ctx context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (fusefs.Handle, error) {
	fileLogger.Debug("Opening %v with flags %v", f.ino, req.Flags)
	var h HandleID
	err := f.fs.do(func() (err error) {
		h, err = f.ops().Open(ctx, f.ino, uint32(req.Flags))
		return err
	})
	if err != nil {
		return nil, ToFuseError(err)
	}
	resp.Flags |= fuse.OpenDirectIO
	return &FileHandle{fs: f.fs, h: h}, nil
}

// FileHandle is an open volume.
type FileHandle struct {
	fs *VolumeFS
	h  HandleID
}

// Read implements the HandleReader interface.
func (fh *FileHandle) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	fileLogger.Trace("Reading %d bytes at offset %d", req.Size, req.Offset)
	var data []byte
	err := fh.fs.do(func() (err error) {
		data, err = fh.fs.ops.Read(ctx, fh.h, req.Offset, req.Size)
		return err
	})
	if err != nil {
		return ToFuseError(err)
	}
	resp.Data = data
	return nil
}

// Write implements the HandleWriter interface.
func (fh *FileHandle) Write(ctx context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error {
	fileLogger.Trace("Writing %d bytes at offset %d", len(req.Data), req.Offset)
	var n int
	err := fh.fs.do(func() (err error) {
		n, err = fh.fs.ops.Write(ctx, fh.h, req.Offset, req.Data)
		return err
	})
	resp.Size = n
	return ToFuseError(err)
}

// Flush implements the HandleFlusher interface.
func (fh *FileHandle) Flush(ctx context.Context, _ *fuse.FlushRequest) error {
	return ToFuseError(fh.fs.do(func() error {
		return fh.fs.ops.Flush(ctx, fh.h)
	}))
}

// Release implements the HandleReleaser interface.
func (fh *FileHandle) Release(ctx context.Context, _ *fuse.ReleaseRequest) error {
	fileLogger.Debug("Releasing handle on %v", InodeID(fh.h))
	return ToFuseError(fh.fs.do(func() error {
		return fh.fs.ops.Release(ctx, fh.h)
	}))
}

func (fh *FileHandle) lock(ctx context.Context, wait bool) error {
	return ToFuseError(fh.fs.do(func() error {
		return fh.fs.ops.Lock(ctx, fh.h, wait)
	}))
}

// Lock implements fs.HandleLocker.
func (fh *FileHandle) Lock(ctx context.Context, _ *fuse.LockRequest) error {
	return fh.lock(ctx, false)
}

func (fh *FileHandle) LockWait(ctx context.Context, _ *fuse.LockWaitRequest) error {
	return fh.lock(ctx, true)
}

func (fh *FileHandle) Unlock(ctx context.Context, _ *fuse.UnlockRequest) error {
	return fh.lock(ctx, false)
}

func (fh *FileHandle) QueryLock(ctx context.Context, _ *fuse.QueryLockRequest, _ *fuse.QueryLockResponse) error {
	return fh.lock(ctx, false)
}
