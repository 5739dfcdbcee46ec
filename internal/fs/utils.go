package fs

func safeInt64ToUint64(n int64) uint64 {
	if n < 0 {
		return 0
	}
	return uint64(n)
}

// sectors converts a count of blockSize blocks to the 512-byte units the
// kernel expects in st_blocks.
func sectors(blocks uint64, blockSize uint32) uint64 {
	return blocks * uint64(blockSize) / 512
}
