// internal/fs/interfaces.go

package fs

import (
	"bazil.org/fuse/fs"
)

// Node is implemented by both the root directory and the volume.
type Node interface {
	fs.Node
	fs.NodeAccesser
	fs.NodeSetattrer
	fs.NodeFsyncer
	fs.NodeForgetter
	fs.NodeGetxattrer
	fs.NodeSetxattrer
	fs.NodeListxattrer
	fs.NodeRemovexattrer
	fs.NodeReadlinker
}

// Directory is the root directory node. Every mutation it offers is
// answered by the Operations it forwards to.
type Directory interface {
	Node
	fs.NodeRequestLookuper
	fs.NodeOpener
	fs.NodeCreater
	fs.NodeMkdirer
	fs.NodeMknoder
	fs.NodeRemover
	fs.NodeRenamer
	fs.NodeSymlinker
	fs.NodeLinker
}

// DirHandleInterface is an open directory.
type DirHandleInterface interface {
	fs.Handle
	fs.HandleReadDirAller
	fs.HandleReleaser
}

// FileInterface is the volume node.
type FileInterface interface {
	Node
	fs.NodeOpener
}

// FileHandleInterface represents an open volume handle
type FileHandleInterface interface {
	fs.Handle
	fs.HandleReader
	fs.HandleWriter
	fs.HandleFlusher
	fs.HandleReleaser
	fs.HandleLocker
}

var (
	_ fs.FS          = (*VolumeFS)(nil)
	_ fs.FSStatfser  = (*VolumeFS)(nil)
	_ fs.FSDestroyer = (*VolumeFS)(nil)

	_ Directory           = (*Dir)(nil)
	_ DirHandleInterface  = (*DirHandle)(nil)
	_ FileInterface       = (*File)(nil)
	_ FileHandleInterface = (*FileHandle)(nil)
)
