package fs

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"testing"

	"bazil.org/fuse"
)

func TestToFuseError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "nil", err: nil, want: nil},
		{name: "no such entry", err: NewFSError(OpLookup, RootDir, ErrNoSuchEntry), want: fuse.ENOENT},
		{name: "not supported", err: NewFSError(OpMkdir, RootDir, ErrNotSupported), want: fuse.ENOSYS},
		{name: "no attribute", err: NewFSError(OpGetxattr, Volume, ErrNoAttribute), want: fuse.ErrNoXattr},
		{
			name: "backing errno passes through",
			err:  &BackingIOError{Op: OpWrite, Offset: 4096, Err: syscall.ENOSPC},
			want: fuse.Errno(syscall.ENOSPC),
		},
		{
			name: "backing error without errno",
			err:  &BackingIOError{Op: OpRead, Err: errors.New("short device")},
			want: fuse.EIO,
		},
		{
			name: "wrapped path error keeps errno",
			err:  fmt.Errorf("stat volume: %w", &os.PathError{Op: "lstat", Path: "/x", Err: syscall.EACCES}),
			want: fuse.Errno(syscall.EACCES),
		},
		{name: "not exist", err: fmt.Errorf("gone: %w", os.ErrNotExist), want: fuse.ENOENT},
		{name: "permission", err: os.ErrPermission, want: fuse.Errno(syscall.EACCES)},
		{name: "unknown", err: errors.New("something else"), want: fuse.EIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToFuseError(tt.err)
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	err := NewFSError(OpLookup, RootDir, ErrNoSuchEntry)
	if msg := err.Error(); !strings.Contains(msg, "lookup") || !strings.Contains(msg, "inode 1") {
		t.Errorf("Unexpected message: %q", msg)
	}

	err = NewFSError(OpStatFS, 0, errors.New("boom"))
	if msg := err.Error(); strings.Contains(msg, "inode") {
		t.Errorf("Message should omit a zero inode: %q", msg)
	}

	ioErr := &BackingIOError{Op: OpRead, Offset: 512, Err: syscall.EIO}
	if msg := ioErr.Error(); !strings.Contains(msg, "read") || !strings.Contains(msg, "512") {
		t.Errorf("Unexpected message: %q", msg)
	}
}
