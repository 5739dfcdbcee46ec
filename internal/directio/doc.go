// Package directio performs positioned, cache-bypassing reads and writes
// against a single backing object (a block device or an image file).
//
// Callers may pass any offset and length. The File widens every request
// to the object's alignment, reads or writes whole aligned blocks through
// page-aligned buffers, and hands back exactly the window that was asked
// for. Unaligned writes become read-modify-write cycles over the partial
// head and tail blocks.
//
// A File is safe for concurrent use. Aligned reads and writes run in
// parallel; an unaligned write holds an exclusive lock for the whole
// read-modify-write cycle so no other request observes or clobbers a
// half-merged block. Overlapping concurrent writes are otherwise ordered
// only by the device itself.
package directio
