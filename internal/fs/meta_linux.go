package fs

import (
	"os"
	"path/filepath"
	"time"

	"volfs/internal/directio"

	"golang.org/x/sys/unix"
)

// Meta is the host metadata a record is projected from.
type Meta struct {
	Mode  os.FileMode
	Nlink uint32
	Uid   uint32
	Gid   uint32
	Dev   uint64
	Size  int64
	Atime time.Time
	Mtime time.Time
	Ctime time.Time
}

// StatFunc queries host metadata for a path without following symlinks.
type StatFunc func(path string) (Meta, error)

// Lstat reads metadata for path. Block devices report a zero st_size, so
// their size is asked of the device itself.
func Lstat(path string) (Meta, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return Meta{}, &os.PathError{Op: "lstat", Path: path, Err: err}
	}

	m := Meta{
		Mode:  fileMode(st.Mode),
		Nlink: uint32(st.Nlink),
		Uid:   st.Uid,
		Gid:   st.Gid,
		Dev:   uint64(st.Dev),
		Size:  st.Size,
		Atime: time.Unix(st.Atim.Unix()),
		Mtime: time.Unix(st.Mtim.Unix()),
		Ctime: time.Unix(st.Ctim.Unix()),
	}

	if st.Mode&unix.S_IFMT == unix.S_IFBLK {
		size, err := directio.DeviceSize(path)
		if err != nil {
			return Meta{}, err
		}
		m.Size = size
	}
	return m, nil
}

func fileMode(mode uint32) os.FileMode {
	m := os.FileMode(mode & 0o777)
	switch mode & unix.S_IFMT {
	case unix.S_IFDIR:
		m |= os.ModeDir
	case unix.S_IFBLK:
		m |= os.ModeDevice
	case unix.S_IFCHR:
		m |= os.ModeDevice | os.ModeCharDevice
	case unix.S_IFLNK:
		m |= os.ModeSymlink
	case unix.S_IFIFO:
		m |= os.ModeNamedPipe
	case unix.S_IFSOCK:
		m |= os.ModeSocket
	}
	if mode&unix.S_ISUID != 0 {
		m |= os.ModeSetuid
	}
	if mode&unix.S_ISGID != 0 {
		m |= os.ModeSetgid
	}
	if mode&unix.S_ISVTX != 0 {
		m |= os.ModeSticky
	}
	return m
}

// isMountPoint reports whether path is the root of a mount, judged by its
// device differing from that of its parent.
func isMountPoint(path string) (bool, error) {
	var st, parent unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return false, &os.PathError{Op: "stat", Path: path, Err: err}
	}
	dir := filepath.Dir(filepath.Clean(path))
	if err := unix.Stat(dir, &parent); err != nil {
		return false, &os.PathError{Op: "stat", Path: dir, Err: err}
	}
	return st.Dev != parent.Dev, nil
}
