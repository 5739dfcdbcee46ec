// Package fs implements the volfs namespace, attribute and dispatch layer
// and the FUSE nodes that serve it.
//
// This file contains error types and error handling utilities.
package fs

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"volfs/internal/logging"

	"bazil.org/fuse"
)

var (
	errLogger = logging.GetLogger().WithPrefix("error")

	// ErrNoSuchEntry indicates an inode, handle or name outside the fixed
	// two-node namespace.
	ErrNoSuchEntry = errors.New("no such entry")

	// ErrNotSupported indicates an operation the filesystem permanently
	// refuses: namespace, permission and link mutations.
	ErrNotSupported = errors.New("operation not supported")

	// ErrNoAttribute indicates a missing extended attribute.
	ErrNoAttribute = errors.New("no such attribute")
)

// Error wraps filesystem errors with the operation and inode they
// were raised for.
type Error struct {
	Op    Op      // Operation that failed
	Inode InodeID // Affected inode or handle, zero when not applicable
	Err   error   // Underlying error
}

// Error implements the error interface, providing a formatted error message
func (e *Error) Error() string {
	if e.Inode == 0 {
		return fmt.Sprintf("operation %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("operation %s on inode %d failed: %v", e.Op, e.Inode, e.Err)
}

// Unwrap implements error unwrapping for the errors.Is/As functions
func (e *Error) Unwrap() error {
	return e.Err
}

// NewFSError creates a new Error with the given operation, inode, and underlying error
func NewFSError(op Op, ino InodeID, err error) *Error {
	fsErr := &Error{
		Op:    op,
		Inode: ino,
		Err:   err,
	}
	errLogger.Trace("Created new FSError: %v", fsErr)
	return fsErr
}

// BackingIOError reports a failed read or write against the backing
// object. The cause is kept verbatim.
type BackingIOError struct {
	Op     Op
	Offset int64
	Err    error
}

func (e *BackingIOError) Error() string {
	return fmt.Sprintf("backing %s at offset %d: %v", e.Op, e.Offset, e.Err)
}

func (e *BackingIOError) Unwrap() error {
	return e.Err
}

// ToFuseError converts an error to the errno FUSE sends back to the
// kernel.
func ToFuseError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrNoSuchEntry):
		return fuse.ENOENT
	case errors.Is(err, ErrNotSupported):
		return fuse.ENOSYS
	case errors.Is(err, ErrNoAttribute):
		return fuse.ErrNoXattr
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		errLogger.Trace("Passing through errno %v for: %v", errno, err)
		return fuse.Errno(errno)
	}

	var ioErr *BackingIOError
	if errors.As(err, &ioErr) {
		errLogger.Debug("Backing I/O error without errno, returning EIO: %v", err)
		return fuse.EIO
	}

	errLogger.Trace("Converting standard error to FUSE error: %v", err)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fuse.ENOENT
	case errors.Is(err, os.ErrPermission):
		return fuse.Errno(syscall.EACCES)
	default:
		errLogger.Debug("Unknown error type, returning EIO: %v", err)
		return fuse.EIO
	}
}
