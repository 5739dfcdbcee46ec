package fs

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// memVolume is an in-memory VolumeIO that grows on writes past the end.
type memVolume struct {
	mu   sync.Mutex
	data []byte
	err  error
}

func (m *memVolume) Pread(offset int64, length int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if offset >= int64(len(m.data)) {
		return nil, nil
	}
	end := offset + int64(length)
	if end > int64(len(m.data)) {
		end = int64(len(m.data))
	}
	out := make([]byte, end-offset)
	copy(out, m.data[offset:end])
	return out, nil
}

func (m *memVolume) Pwrite(offset int64, data []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	end := offset + int64(len(data))
	if end > int64(len(m.data)) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	copy(m.data[offset:], data)
	return len(data), nil
}

func (m *memVolume) size() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.data))
}

// fakeStat serves metadata from a table keyed by path. Paths not in the
// table fail with os.ErrNotExist.
type fakeStat struct {
	mu    sync.Mutex
	image string
	metas map[string]Meta
}

func (f *fakeStat) stat(path string) (Meta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.metas[path]
	if !ok {
		return Meta{}, &os.PathError{Op: "lstat", Path: path, Err: os.ErrNotExist}
	}
	return m, nil
}

// setImage replaces the metadata reported for the backing object.
func (f *fakeStat) setImage(m Meta) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metas[f.image] = m
}

var testTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// setupProjector returns a projector over a backing object whose metadata
// is faked: the given size, in a directory with mode 0755. The file itself
// exists but stays empty.
func setupProjector(t *testing.T, size int64) (*Projector, *fakeStat) {
	t.Helper()
	image := filepath.Join(t.TempDir(), "disk.img")
	if err := os.WriteFile(image, nil, 0640); err != nil {
		t.Fatalf("Failed to create image: %v", err)
	}
	backing, err := NewBacking(image)
	if err != nil {
		t.Fatalf("Failed to create backing: %v", err)
	}
	st := &fakeStat{image: backing.Path(), metas: map[string]Meta{
		backing.Dir(): {
			Mode: os.ModeDir | 0755, Nlink: 3, Uid: 10, Gid: 20,
			Atime: testTime, Mtime: testTime, Ctime: testTime,
		},
		backing.Path(): {
			Mode: 0640, Nlink: 1, Uid: 1000, Gid: 1000, Dev: 2049, Size: size,
			Atime: testTime, Mtime: testTime, Ctime: testTime,
		},
	}}
	return NewProjector(backing, st.stat), st
}

func setupDispatcher(t *testing.T, size int64) (*Dispatcher, *memVolume, *fakeStat) {
	t.Helper()
	proj, st := setupProjector(t, size)
	vol := &memVolume{data: make([]byte, size)}
	return NewDispatcher(proj, vol), vol, st
}
