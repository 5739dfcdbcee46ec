package fs

// VolumeName is the name of the single file in the root directory.
const VolumeName = "volume"

// Kind is the file type of an inode.
type Kind int

const (
	KindDirectory Kind = iota + 1
	KindRegular
)

// DirEntry is one directory listing entry. Next is the offset at which a
// listing resumes after this entry.
type DirEntry struct {
	Name  string
	Inode InodeID
	Kind  Kind
	Next  int64
}

// Namespace is the fixed table of the root directory and the volume.
// It has no state: nothing is ever created, renamed or removed.
type Namespace struct{}

// KindOf returns the kind of ino, or false if ino does not exist.
func (Namespace) KindOf(ino InodeID) (Kind, bool) {
	switch ino {
	case RootDir:
		return KindDirectory, true
	case Volume:
		return KindRegular, true
	}
	return 0, false
}

// Exists reports whether ino is one of the two fixed inodes.
func (ns Namespace) Exists(ino InodeID) bool {
	_, ok := ns.KindOf(ino)
	return ok
}

// ResolveChild looks name up in parent. "." and ".." name the parent
// itself; the root has no parent above it in this namespace.
func (Namespace) ResolveChild(parent InodeID, name string) (InodeID, error) {
	if parent != RootDir {
		return 0, ErrNoSuchEntry
	}
	switch name {
	case ".", "..":
		return parent, nil
	case VolumeName:
		return Volume, nil
	}
	return 0, ErrNoSuchEntry
}

// ListChildren returns the children of dir starting at offset. Offset 0
// yields the volume; every later offset yields nothing.
func (Namespace) ListChildren(dir InodeID, offset int64) ([]DirEntry, error) {
	if dir != RootDir {
		return nil, ErrNoSuchEntry
	}
	if offset != 0 {
		return nil, nil
	}
	return []DirEntry{{Name: VolumeName, Inode: Volume, Kind: KindRegular, Next: 1}}, nil
}
