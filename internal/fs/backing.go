package fs

import (
	"fmt"
	"path/filepath"

	"volfs/internal/logging"
)

var (
	pathLogger = logging.GetLogger().WithPrefix("path")
)

// Backing identifies the object exposed as the volume. Both paths are
// absolute and resolved once when the filesystem is created.
type Backing struct {
	path string
	dir  string
}

// NewBacking resolves path against the working directory, follows any
// symlinks, and records the directory that contains the target. Metadata
// is later read with lstat, so the path must name the object itself and
// not a link to it (/dev/disk/by-id entries are links).
func NewBacking(path string) (Backing, error) {
	if path == "" {
		return Backing{}, fmt.Errorf("backing object path is empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Backing{}, fmt.Errorf("resolve backing object path %q: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return Backing{}, fmt.Errorf("resolve backing object path %q: %w", path, err)
	}
	b := Backing{
		path: resolved,
		dir:  filepath.Dir(resolved),
	}
	pathLogger.Trace("Resolved backing object: %q -> %q (dir %q)", path, b.path, b.dir)
	return b, nil
}

// Path returns the absolute path of the backing object.
func (b Backing) Path() string {
	return b.path
}

// Dir returns the directory containing the backing object. Its metadata
// is what the root directory reports.
func (b Backing) Dir() string {
	return b.dir
}

// String returns the string representation of the path
func (b Backing) String() string {
	return b.path
}
