package fs

import (
	"fmt"
	"os"
	"time"

	"volfs/internal/logging"
)

var (
	attrLogger = logging.GetLogger().WithPrefix("attr")
)

const (
	// BlockSize is the one block granularity the filesystem reports.
	BlockSize = 4096

	// CacheTimeout is how long the kernel may trust an entry or an
	// attribute record before asking again.
	CacheTimeout = 300 * time.Second

	maxNameLen = 255
)

// Attributes is the attribute record of an inode.
type Attributes struct {
	Inode     InodeID
	Mode      os.FileMode
	Nlink     uint32
	Uid       uint32
	Gid       uint32
	Rdev      uint64
	Size      uint64
	BlockSize uint32
	Blocks    uint64 // in BlockSize units
	Atime     time.Time
	Mtime     time.Time
	Ctime     time.Time

	EntryTimeout time.Duration
	AttrTimeout  time.Duration
}

// Capacity is the statfs answer. The filesystem is always full.
type Capacity struct {
	BlockSize    uint32
	FragmentSize uint32
	Blocks       uint64
	FreeBlocks   uint64
	AvailBlocks  uint64
	Files        uint64
	FreeFiles    uint64
	NameLen      uint32
}

// Projector derives attribute records from fresh host metadata on every
// call. It caches nothing.
type Projector struct {
	backing Backing
	stat    StatFunc
	ns      Namespace
}

// NewProjector creates a projector for backing. A nil stat uses Lstat.
func NewProjector(backing Backing, stat StatFunc) *Projector {
	if stat == nil {
		stat = Lstat
	}
	return &Projector{backing: backing, stat: stat}
}

// AttributesFor returns the record for ino: the containing directory's
// metadata for the root, the backing object's for the volume.
func (p *Projector) AttributesFor(ino InodeID) (Attributes, error) {
	kind, ok := p.ns.KindOf(ino)
	if !ok {
		return Attributes{}, ErrNoSuchEntry
	}

	path := p.backing.Path()
	if kind == KindDirectory {
		path = p.backing.Dir()
	}
	meta, err := p.stat(path)
	if err != nil {
		attrLogger.Warn("Failed to stat %q for %v: %v", path, ino, err)
		return Attributes{}, fmt.Errorf("stat %v: %w", ino, err)
	}

	mode := meta.Mode & (os.ModePerm | os.ModeSetuid | os.ModeSetgid | os.ModeSticky)
	if kind == KindDirectory {
		mode |= os.ModeDir
	}

	size := safeInt64ToUint64(meta.Size)
	attrs := Attributes{
		Inode:        ino,
		Mode:         mode,
		Nlink:        meta.Nlink,
		Uid:          meta.Uid,
		Gid:          meta.Gid,
		Rdev:         meta.Dev,
		Size:         size,
		BlockSize:    BlockSize,
		Blocks:       blockCount(size),
		Atime:        meta.Atime,
		Mtime:        meta.Mtime,
		Ctime:        meta.Ctime,
		EntryTimeout: CacheTimeout,
		AttrTimeout:  CacheTimeout,
	}
	attrLogger.Trace("Attributes for %v: mode=%v size=%d blocks=%d", ino, attrs.Mode, attrs.Size, attrs.Blocks)
	return attrs, nil
}

// Capacity reports the filesystem as exactly the size of the backing
// object with no free blocks and no free inodes.
func (p *Projector) Capacity() (Capacity, error) {
	meta, err := p.stat(p.backing.Path())
	if err != nil {
		attrLogger.Warn("Failed to stat backing object for statfs: %v", err)
		return Capacity{}, fmt.Errorf("statfs: %w", err)
	}
	return Capacity{
		BlockSize:    BlockSize,
		FragmentSize: BlockSize,
		Blocks:       blockCount(safeInt64ToUint64(meta.Size)),
		Files:        1,
		NameLen:      maxNameLen,
	}, nil
}

func blockCount(size uint64) uint64 {
	return (size + BlockSize - 1) / BlockSize
}
