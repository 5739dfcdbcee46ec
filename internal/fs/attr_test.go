package fs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestBlockCount(t *testing.T) {
	tests := []struct {
		size uint64
		want uint64
	}{
		{0, 0},
		{1, 1},
		{4095, 1},
		{4096, 1},
		{4097, 2},
		{1 << 30, 1 << 18},
	}
	for _, tt := range tests {
		if got := blockCount(tt.size); got != tt.want {
			t.Errorf("blockCount(%d) = %d, want %d", tt.size, got, tt.want)
		}
	}
}

func TestVolumeAttributes(t *testing.T) {
	proj, _ := setupProjector(t, 4097)

	attrs, err := proj.AttributesFor(Volume)
	if err != nil {
		t.Fatalf("Failed to get volume attributes: %v", err)
	}

	if attrs.Inode != Volume {
		t.Errorf("Expected inode %v, got %v", Volume, attrs.Inode)
	}
	if !attrs.Mode.IsRegular() {
		t.Errorf("Volume should be a regular file, got mode %v", attrs.Mode)
	}
	if attrs.Mode.Perm() != 0640 {
		t.Errorf("Expected permissions 0640, got %o", attrs.Mode.Perm())
	}
	if attrs.Size != 4097 {
		t.Errorf("Expected size 4097, got %d", attrs.Size)
	}
	if attrs.BlockSize != BlockSize {
		t.Errorf("Expected block size %d, got %d", BlockSize, attrs.BlockSize)
	}
	if attrs.Blocks != 2 {
		t.Errorf("Expected 2 blocks, got %d", attrs.Blocks)
	}
	if attrs.Uid != 1000 || attrs.Gid != 1000 {
		t.Errorf("Expected owner 1000:1000, got %d:%d", attrs.Uid, attrs.Gid)
	}
	if attrs.Rdev != 2049 {
		t.Errorf("Expected rdev 2049, got %d", attrs.Rdev)
	}
	if !attrs.Mtime.Equal(testTime) {
		t.Errorf("Expected mtime %v, got %v", testTime, attrs.Mtime)
	}
	if attrs.EntryTimeout != CacheTimeout || attrs.AttrTimeout != CacheTimeout {
		t.Errorf("Expected timeouts of %v, got %v/%v", CacheTimeout, attrs.EntryTimeout, attrs.AttrTimeout)
	}
}

func TestRootAttributesComeFromDirectory(t *testing.T) {
	proj, _ := setupProjector(t, 4096)

	attrs, err := proj.AttributesFor(RootDir)
	if err != nil {
		t.Fatalf("Failed to get root attributes: %v", err)
	}
	if !attrs.Mode.IsDir() {
		t.Errorf("Root should be a directory, got mode %v", attrs.Mode)
	}
	if attrs.Mode.Perm() != 0755 {
		t.Errorf("Expected permissions 0755, got %o", attrs.Mode.Perm())
	}
	if attrs.Uid != 10 || attrs.Gid != 20 {
		t.Errorf("Expected owner 10:20 from the directory, got %d:%d", attrs.Uid, attrs.Gid)
	}
	if attrs.Nlink != 3 {
		t.Errorf("Expected nlink 3, got %d", attrs.Nlink)
	}
}

func TestVolumeModeIsAlwaysRegular(t *testing.T) {
	proj, st := setupProjector(t, 0)
	st.setImage(Meta{Mode: os.ModeDevice | os.ModeSetgid | 0660, Size: 1 << 20})

	attrs, err := proj.AttributesFor(Volume)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !attrs.Mode.IsRegular() {
		t.Errorf("Block device backing should appear regular, got %v", attrs.Mode)
	}
	if attrs.Mode&os.ModeSetgid == 0 {
		t.Errorf("Expected setgid bit to be mirrored, got %v", attrs.Mode)
	}
	if attrs.Blocks != 256 {
		t.Errorf("Expected 256 blocks, got %d", attrs.Blocks)
	}
}

func TestAttributesTrackResize(t *testing.T) {
	proj, st := setupProjector(t, 4096)

	before, err := proj.AttributesFor(Volume)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if before.Size != 4096 || before.Blocks != 1 {
		t.Fatalf("Expected 4096 bytes in 1 block, got %d in %d", before.Size, before.Blocks)
	}

	st.setImage(Meta{Mode: 0644, Size: 3 * 4096})

	after, err := proj.AttributesFor(Volume)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if after.Size != 3*4096 || after.Blocks != 3 {
		t.Errorf("Expected resize to be visible, got %d bytes in %d blocks", after.Size, after.Blocks)
	}
}

func TestAttributesStatFailure(t *testing.T) {
	image := filepath.Join(t.TempDir(), "gone.img")
	if err := os.WriteFile(image, nil, 0644); err != nil {
		t.Fatalf("Failed to create image: %v", err)
	}
	backing, err := NewBacking(image)
	if err != nil {
		t.Fatalf("Failed to create backing: %v", err)
	}
	if err := os.Remove(image); err != nil {
		t.Fatalf("Failed to remove image: %v", err)
	}
	proj := NewProjector(backing, nil)

	if _, err := proj.AttributesFor(Volume); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
	if _, err := proj.AttributesFor(RootDir); err != nil {
		t.Errorf("Root should still stat through the real directory: %v", err)
	}
	if _, err := proj.AttributesFor(9); !errors.Is(err, ErrNoSuchEntry) {
		t.Errorf("Expected ErrNoSuchEntry for unknown inode, got %v", err)
	}
}

func TestAttributesFollowSymlinkedBacking(t *testing.T) {
	dir := t.TempDir()
	image := filepath.Join(dir, "disk.img")
	if err := os.WriteFile(image, make([]byte, 8192), 0644); err != nil {
		t.Fatalf("Failed to create image: %v", err)
	}
	linkDir := filepath.Join(dir, "by-id")
	if err := os.Mkdir(linkDir, 0755); err != nil {
		t.Fatalf("Failed to create link directory: %v", err)
	}
	link := filepath.Join(linkDir, "disk-link")
	if err := os.Symlink(image, link); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	backing, err := NewBacking(link)
	if err != nil {
		t.Fatalf("Failed to create backing: %v", err)
	}
	proj := NewProjector(backing, nil)

	attrs, err := proj.AttributesFor(Volume)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if attrs.Size != 8192 {
		t.Errorf("Expected the target's size 8192, got %d", attrs.Size)
	}
	if !attrs.Mode.IsRegular() {
		t.Errorf("Expected a regular file, got %v", attrs.Mode)
	}

	c, err := proj.Capacity()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if c.Blocks != 2 {
		t.Errorf("Expected 2 blocks, got %d", c.Blocks)
	}
}

func TestCapacity(t *testing.T) {
	tests := []struct {
		name   string
		size   int64
		blocks uint64
	}{
		{name: "empty", size: 0, blocks: 0},
		{name: "one block", size: 4096, blocks: 1},
		{name: "partial block", size: 4097, blocks: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proj, _ := setupProjector(t, tt.size)

			c, err := proj.Capacity()
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if c.BlockSize != 4096 || c.FragmentSize != 4096 {
				t.Errorf("Expected 4096 byte blocks, got %d/%d", c.BlockSize, c.FragmentSize)
			}
			if c.Blocks != tt.blocks {
				t.Errorf("Expected %d blocks, got %d", tt.blocks, c.Blocks)
			}
			if c.FreeBlocks != 0 || c.AvailBlocks != 0 || c.FreeFiles != 0 {
				t.Errorf("Expected a full filesystem, got %+v", c)
			}
			if c.Files != 1 {
				t.Errorf("Expected 1 file, got %d", c.Files)
			}
		})
	}
}
