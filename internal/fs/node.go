package fs

import (
	"context"
	"time"

	"volfs/internal/logging"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

var (
	nodeLogger = logging.GetLogger().WithPrefix("node")
)

// node holds what the root directory and the volume have in common: the
// inode they stand for and the filesystem that answers for them.
type node struct {
	fs  *VolumeFS
	ino InodeID
}

type inoder interface {
	inode() InodeID
}

func (n *node) inode() InodeID { return n.ino }

// inodeOf returns the inode behind a bazil node handed back by the kernel
// server, or zero for nodes this package did not create.
func inodeOf(fn fusefs.Node) InodeID {
	if in, ok := fn.(inoder); ok {
		return in.inode()
	}
	return 0
}

func (n *node) ops() Operations { return n.fs.ops }

// fillAttr copies attrs into the kernel's attribute record. Blocks are
// reported in 512-byte sectors.
func fillAttr(a *fuse.Attr, attrs Attributes) {
	a.Valid = attrs.AttrTimeout
	a.Inode = uint64(attrs.Inode)
	a.Size = attrs.Size
	a.Blocks = sectors(attrs.Blocks, attrs.BlockSize)
	a.Atime = attrs.Atime
	a.Mtime = attrs.Mtime
	a.Ctime = attrs.Ctime
	a.Mode = attrs.Mode
	a.Nlink = attrs.Nlink
	a.Uid = attrs.Uid
	a.Gid = attrs.Gid
	a.Rdev = uint32(attrs.Rdev)
	a.BlockSize = attrs.BlockSize
}

// Attr implements the Node interface.
func (n *node) Attr(ctx context.Context, a *fuse.Attr) error {
	nodeLogger.Trace("Getting attributes for %v", n.ino)
	var attrs Attributes
	err := n.fs.do(func() (err error) {
		attrs, err = n.ops().GetAttr(ctx, n.ino)
		return err
	})
	if err != nil {
		return ToFuseError(err)
	}
	fillAttr(a, attrs)
	return nil
}

// Access implements the NodeAccesser interface.
func (n *node) Access(ctx context.Context, req *fuse.AccessRequest) error {
	return ToFuseError(n.fs.do(func() error {
		return n.ops().Access(ctx, n.ino, req.Mask)
	}))
}

// Setattr implements the NodeSetattrer interface. Each attribute the
// request changes becomes its own operation; the first refusal wins.
func (n *node) Setattr(ctx context.Context, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	nodeLogger.Debug("Setattr on %v: %v", n.ino, req.Valid)
	err := n.fs.do(func() error {
		ops := n.ops()
		if req.Valid.Size() {
			if err := ops.Truncate(ctx, n.ino, req.Size); err != nil {
				return err
			}
		}
		if req.Valid.Mode() {
			if err := ops.Chmod(ctx, n.ino, req.Mode); err != nil {
				return err
			}
		}
		if req.Valid.Uid() || req.Valid.Gid() {
			uid, gid := ^uint32(0), ^uint32(0)
			if req.Valid.Uid() {
				uid = req.Uid
			}
			if req.Valid.Gid() {
				gid = req.Gid
			}
			if err := ops.Chown(ctx, n.ino, uid, gid); err != nil {
				return err
			}
		}
		if req.Valid.Atime() || req.Valid.Mtime() || req.Valid.AtimeNow() || req.Valid.MtimeNow() {
			now := time.Now()
			atime, mtime := req.Atime, req.Mtime
			if req.Valid.AtimeNow() {
				atime = now
			}
			if req.Valid.MtimeNow() {
				mtime = now
			}
			if err := ops.Utime(ctx, n.ino, atime, mtime); err != nil {
				return err
			}
		}
		attrs, err := ops.GetAttr(ctx, n.ino)
		if err != nil {
			return err
		}
		fillAttr(&resp.Attr, attrs)
		return nil
	})
	return ToFuseError(err)
}

// Fsync implements the NodeFsyncer interface. Handles are always the
// inode they were opened on.
func (n *node) Fsync(ctx context.Context, req *fuse.FsyncRequest) error {
	datasync := req.Flags&1 != 0
	return ToFuseError(n.fs.do(func() error {
		if req.Dir {
			return n.ops().FsyncDir(ctx, HandleID(n.ino), datasync)
		}
		return n.ops().Fsync(ctx, HandleID(n.ino), datasync)
	}))
}

// Forget implements the NodeForgetter interface.
func (n *node) Forget() {
	_ = n.fs.do(func() error {
		n.ops().Forget(context.Background(), n.ino, 1)
		return nil
	})
}

func (n *node) Getxattr(ctx context.Context, req *fuse.GetxattrRequest, resp *fuse.GetxattrResponse) error {
	var value []byte
	err := n.fs.do(func() (err error) {
		value, err = n.ops().Getxattr(ctx, n.ino, req.Name)
		return err
	})
	if err != nil {
		return ToFuseError(err)
	}
	resp.Xattr = value
	return nil
}

func (n *node) Setxattr(ctx context.Context, req *fuse.SetxattrRequest) error {
	return ToFuseError(n.fs.do(func() error {
		return n.ops().Setxattr(ctx, n.ino, req.Name, req.Xattr, req.Flags)
	}))
}

func (n *node) Listxattr(ctx context.Context, _ *fuse.ListxattrRequest, resp *fuse.ListxattrResponse) error {
	var names []string
	err := n.fs.do(func() (err error) {
		names, err = n.ops().Listxattr(ctx, n.ino)
		return err
	})
	if err != nil {
		return ToFuseError(err)
	}
	for _, name := range names {
		resp.Append(name)
	}
	return nil
}

func (n *node) Removexattr(ctx context.Context, req *fuse.RemovexattrRequest) error {
	return ToFuseError(n.fs.do(func() error {
		return n.ops().Removexattr(ctx, n.ino, req.Name)
	}))
}

func (n *node) Readlink(ctx context.Context, _ *fuse.ReadlinkRequest) (string, error) {
	var target string
	err := n.fs.do(func() (err error) {
		target, err = n.ops().Readlink(ctx, n.ino)
		return err
	})
	return target, ToFuseError(err)
}
