package fs

import (
	"context"

	"volfs/internal/logging"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

var (
	dirLogger = logging.GetLogger().WithPrefix("dir")
)

// Dir is the root directory node. It holds no entries of its own; every
// request goes to the filesystem's Operations.
type Dir struct {
	node
}

// Lookup implements the NodeRequestLookuper interface, finding a child node.
func (d *Dir) Lookup(ctx context.Context, req *fuse.LookupRequest, resp *fuse.LookupResponse) (fusefs.Node, error) {
	dirLogger.Debug("Looking up %q in %v", req.Name, d.ino)
	var attrs Attributes
	err := d.fs.do(func() (err error) {
		attrs, err = d.ops().Lookup(ctx, d.ino, req.Name)
		return err
	})
	if err != nil {
		return nil, ToFuseError(err)
	}
	child, err := d.fs.nodeFor(attrs.Inode)
	if err != nil {
		return nil, err
	}
	// bazil fills resp.Attr from child.Attr once we return.
	resp.EntryValid = attrs.EntryTimeout
	return child, nil
}

// Open implements the NodeOpener interface, returning a directory handle.
func (d *Dir) Open(ctx context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (fusefs.Handle, error) {
	dirLogger.Debug("Opening directory %v", d.ino)
	var h HandleID
	err := d.fs.do(func() (err error) {
		h, err = d.ops().OpenDir(ctx, d.ino)
		return err
	})
	if err != nil {
		return nil, ToFuseError(err)
	}
	return &DirHandle{fs: d.fs, h: h}, nil
}

// Create implements the NodeCreater interface.
func (d *Dir) Create(ctx context.Context, req *fuse.CreateRequest, resp *fuse.CreateResponse) (fusefs.Node, fusefs.Handle, error) {
	dirLogger.Debug("Create %q in %v", req.Name, d.ino)
	var (
		attrs Attributes
		h     HandleID
	)
	err := d.fs.do(func() (err error) {
		attrs, h, err = d.ops().Create(ctx, d.ino, req.Name, req.Mode, uint32(req.Flags))
		return err
	})
	if err != nil {
		return nil, nil, ToFuseError(err)
	}
	child, err := d.fs.nodeFor(attrs.Inode)
	if err != nil {
		return nil, nil, err
	}
	resp.EntryValid = attrs.EntryTimeout
	resp.Flags |= fuse.OpenDirectIO
	return child, &FileHandle{fs: d.fs, h: h}, nil
}

// Mkdir implements the NodeMkdirer interface.
func (d *Dir) Mkdir(ctx context.Context, req *fuse.MkdirRequest) (fusefs.Node, error) {
	dirLogger.Debug("Mkdir %q in %v", req.Name, d.ino)
	return d.entry(func() (Attributes, error) {
		return d.ops().Mkdir(ctx, d.ino, req.Name, req.Mode)
	})
}

// Mknod implements the NodeMknoder interface.
func (d *Dir) Mknod(ctx context.Context, req *fuse.MknodRequest) (fusefs.Node, error) {
	dirLogger.Debug("Mknod %q in %v", req.Name, d.ino)
	return d.entry(func() (Attributes, error) {
		return d.ops().Mknod(ctx, d.ino, req.Name, req.Mode, req.Rdev)
	})
}

// Symlink implements the NodeSymlinker interface.
func (d *Dir) Symlink(ctx context.Context, req *fuse.SymlinkRequest) (fusefs.Node, error) {
	dirLogger.Debug("Symlink %q -> %q in %v", req.NewName, req.Target, d.ino)
	return d.entry(func() (Attributes, error) {
		return d.ops().Symlink(ctx, d.ino, req.NewName, req.Target)
	})
}

// Link implements the NodeLinker interface.
func (d *Dir) Link(ctx context.Context, req *fuse.LinkRequest, old fusefs.Node) (fusefs.Node, error) {
	dirLogger.Debug("Link %q in %v", req.NewName, d.ino)
	return d.entry(func() (Attributes, error) {
		return d.ops().Link(ctx, inodeOf(old), d.ino, req.NewName)
	})
}

// Remove implements the NodeRemover interface, covering both unlink and
// rmdir.
func (d *Dir) Remove(ctx context.Context, req *fuse.RemoveRequest) error {
	dirLogger.Debug("Removing %q from %v (isDir=%v)", req.Name, d.ino, req.Dir)
	return ToFuseError(d.fs.do(func() error {
		if req.Dir {
			return d.ops().Rmdir(ctx, d.ino, req.Name)
		}
		return d.ops().Unlink(ctx, d.ino, req.Name)
	}))
}

// Rename implements the NodeRenamer interface.
func (d *Dir) Rename(ctx context.Context, req *fuse.RenameRequest, newDir fusefs.Node) error {
	dirLogger.Debug("Renaming %q to %q", req.OldName, req.NewName)
	return ToFuseError(d.fs.do(func() error {
		return d.ops().Rename(ctx, d.ino, req.OldName, inodeOf(newDir), req.NewName)
	}))
}

// entry runs an operation that creates a directory entry and resolves the
// resulting node.
func (d *Dir) entry(create func() (Attributes, error)) (fusefs.Node, error) {
	var attrs Attributes
	err := d.fs.do(func() (err error) {
		attrs, err = create()
		return err
	})
	if err != nil {
		return nil, ToFuseError(err)
	}
	return d.fs.nodeFor(attrs.Inode)
}

// DirHandle is an open root directory.
type DirHandle struct {
	fs *VolumeFS
	h  HandleID
}

// ReadDirAll implements the HandleReadDirAller interface, paging through
// the listing until the dispatcher returns nothing more.
func (dh *DirHandle) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	dirLogger.Debug("Reading directory contents: %v", InodeID(dh.h))
	var dirents []fuse.Dirent
	offset := int64(0)
	for {
		var entries []DirEntry
		err := dh.fs.do(func() (err error) {
			entries, err = dh.fs.ops.ReadDir(ctx, dh.h, offset)
			return err
		})
		if err != nil {
			return nil, ToFuseError(err)
		}
		if len(entries) == 0 {
			break
		}
		for _, e := range entries {
			dirents = append(dirents, fuse.Dirent{
				Inode: uint64(e.Inode),
				Type:  direntType(e.Kind),
				Name:  e.Name,
			})
		}
		next := entries[len(entries)-1].Next
		if next <= offset {
			break
		}
		offset = next
	}
	dirLogger.Trace("Directory %v contains %d entries", InodeID(dh.h), len(dirents))
	return dirents, nil
}

// Release implements the HandleReleaser interface.
func (dh *DirHandle) Release(ctx context.Context, _ *fuse.ReleaseRequest) error {
	return ToFuseError(dh.fs.do(func() error {
		return dh.fs.ops.ReleaseDir(ctx, dh.h)
	}))
}

func direntType(k Kind) fuse.DirentType {
	switch k {
	case KindDirectory:
		return fuse.DT_Dir
	case KindRegular:
		return fuse.DT_File
	}
	return fuse.DT_Unknown
}
