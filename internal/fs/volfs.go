package fs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"volfs/internal/logging"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

var (
	vfsLogger  = logging.GetLogger().WithPrefix("vfs")
	fuseLogger = logging.GetLogger().WithPrefix("fuse")
)

// MountOptions configure how the filesystem is presented to the kernel.
type MountOptions struct {
	FSName       string // shown as the mount source
	Subtype      string // shown as fuse.<subtype>
	AllowOther   bool
	ReadOnly     bool
	MaxReadahead uint32

	// Serialize handles one request at a time, the way a single-threaded
	// request loop would. Without it requests run concurrently and the
	// VolumeIO must tolerate that.
	Serialize bool

	// Debug logs every FUSE message at DEBUG level.
	Debug bool
}

// VolumeFS serves an Operations implementation over FUSE. It owns the
// two bazil nodes and the mount lifecycle, and holds no filesystem state
// of its own.
type VolumeFS struct {
	ops  Operations
	opts MountOptions

	root   *Dir
	volume *File

	serial sync.Mutex

	conn       *fuse.Conn
	mountPoint string
	done       chan struct{}
	serveErr   error
}

// NewVolumeFS creates a filesystem that forwards every request to ops.
func NewVolumeFS(ops Operations, opts MountOptions) *VolumeFS {
	vfsLogger.Debug("Creating volume filesystem (fsname=%q, serialize=%v)", opts.FSName, opts.Serialize)
	vfs := &VolumeFS{
		ops:  ops,
		opts: opts,
	}
	vfs.root = &Dir{node{fs: vfs, ino: RootDir}}
	vfs.volume = &File{node{fs: vfs, ino: Volume}}
	return vfs
}

// Root implements the fusefs.FS interface, returning the root directory node.
func (vfs *VolumeFS) Root() (fusefs.Node, error) {
	vfsLogger.Trace("Getting root directory node")
	return vfs.root, nil
}

// Statfs implements fusefs.FSStatfser.
func (vfs *VolumeFS) Statfs(ctx context.Context, _ *fuse.StatfsRequest, resp *fuse.StatfsResponse) error {
	var capacity Capacity
	err := vfs.do(func() (err error) {
		capacity, err = vfs.ops.StatFS(ctx)
		return err
	})
	if err != nil {
		return ToFuseError(err)
	}
	resp.Blocks = capacity.Blocks
	resp.Bfree = capacity.FreeBlocks
	resp.Bavail = capacity.AvailBlocks
	resp.Files = capacity.Files
	resp.Ffree = capacity.FreeFiles
	resp.Bsize = capacity.BlockSize
	resp.Frsize = capacity.FragmentSize
	resp.Namelen = capacity.NameLen
	return nil
}

// Destroy implements fusefs.FSDestroyer.
func (vfs *VolumeFS) Destroy() {
	_ = vfs.do(func() error {
		vfs.ops.Destroy(context.Background())
		return nil
	})
}

// do runs fn, one call at a time when serving single-threaded.
func (vfs *VolumeFS) do(fn func() error) error {
	if vfs.opts.Serialize {
		vfs.serial.Lock()
		defer vfs.serial.Unlock()
	}
	return fn()
}

// nodeFor returns the bazil node for ino. Both nodes live as long as the
// filesystem, so the kernel always sees the same node IDs.
func (vfs *VolumeFS) nodeFor(ino InodeID) (fusefs.Node, error) {
	switch ino {
	case RootDir:
		return vfs.root, nil
	case Volume:
		return vfs.volume, nil
	}
	return nil, fuse.ENOENT
}

func (vfs *VolumeFS) mountOptions() []fuse.MountOption {
	opts := []fuse.MountOption{
		fuse.FSName(vfs.opts.FSName),
		fuse.Subtype(vfs.opts.Subtype),
		// Without these the kernel answers lock requests itself.
		fuse.LockingPOSIX(),
		fuse.LockingFlock(),
	}
	if vfs.opts.AllowOther {
		opts = append(opts, fuse.AllowOther())
	}
	if vfs.opts.ReadOnly {
		opts = append(opts, fuse.ReadOnly())
	}
	if vfs.opts.MaxReadahead > 0 {
		opts = append(opts, fuse.MaxReadahead(vfs.opts.MaxReadahead))
	}
	return opts
}

// waitForMount polls until mountpoint sits on a different device from its
// parent, which is the first sign the kernel has attached the connection.
func waitForMount(mountpoint string) error {
	var lastErr error
	for i := 0; i < 30; i++ {
		mounted, err := isMountPoint(mountpoint)
		if err == nil && mounted {
			return nil
		}
		lastErr = err
		time.Sleep(100 * time.Millisecond)
	}
	if lastErr != nil {
		return fmt.Errorf("mount point not available after 3 seconds: %w", lastErr)
	}
	return fmt.Errorf("mount point not available after 3 seconds")
}

// Mount mounts the filesystem at mountPoint and starts serving it in the
// background. Use Wait to block until serving stops.
func (vfs *VolumeFS) Mount(mountPoint string) error {
	vfsLogger.Info("Mounting volume filesystem")
	vfsLogger.Debug("Mount point: %s", mountPoint)

	if vfs.conn != nil {
		return fmt.Errorf("already mounted at %s", vfs.mountPoint)
	}

	mountOpts := vfs.mountOptions()
	vfsLogger.Debug("Mounting with options: %+v", vfs.opts)

	c, err := fuse.Mount(mountPoint, mountOpts...)
	if err != nil {
		return fmt.Errorf("mount failed: %w", err)
	}
	vfs.conn = c
	vfs.mountPoint = mountPoint
	vfs.done = make(chan struct{})

	config := &fusefs.Config{}
	if vfs.opts.Debug {
		config.Debug = func(msg interface{}) {
			fuseLogger.Debug("%v", msg)
		}
	}
	server := fusefs.New(c, config)

	go func() {
		defer close(vfs.done)
		defer c.Close()
		if err := server.Serve(vfs); err != nil {
			vfsLogger.Error("FUSE server error: %v", err)
			vfs.serveErr = err
		}
		vfsLogger.Debug("FUSE server stopped")
	}()

	if err := waitForMount(mountPoint); err != nil {
		vfsLogger.Error("Mount point not ready: %v", err)
		if uerr := fuse.Unmount(mountPoint); uerr != nil {
			vfsLogger.Warn("Unmount after failed mount: %v", uerr)
		}
		return fmt.Errorf("mount point failed to initialize: %w", err)
	}

	vfsLogger.Info("Filesystem mounted successfully")
	return nil
}

// Wait blocks until the kernel stops sending requests, which happens
// after Unmount or an external fusermount -u.
func (vfs *VolumeFS) Wait() error {
	if vfs.done == nil {
		return nil
	}
	<-vfs.done
	return vfs.serveErr
}

// Unmount cleanly unmounts the filesystem.
func (vfs *VolumeFS) Unmount() error {
	if vfs.conn == nil {
		return nil
	}
	vfsLogger.Info("Unmounting filesystem from: %s", vfs.mountPoint)
	if err := fuse.Unmount(vfs.mountPoint); err != nil {
		vfsLogger.Error("Unmount failed: %v", err)
		return err
	}
	vfsLogger.Info("Unmount completed successfully")
	return nil
}
