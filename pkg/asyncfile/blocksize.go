package asyncfile

import (
	"os"

	"golang.org/x/sys/unix"
)

// blockSize returns the filesystem's preferred I/O block size for f, or
// defaultBlockSize if fstat fails or reports a non-positive Blksize.
func blockSize(f *os.File) int {
	var stat unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &stat); err != nil {
		return defaultBlockSize
	}
	if stat.Blksize <= 0 {
		return defaultBlockSize
	}
	return int(stat.Blksize)
}
