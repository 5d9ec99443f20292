package blockdev

import (
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

// blockDeviceSize asks the kernel for the size of a block device node.
// Returns ok=false for regular files.
func blockDeviceSize(f *os.File, st fs.FileInfo) (int64, bool) {
	if st.Mode()&os.ModeDevice == 0 {
		return 0, false
	}
	size, err := unix.IoctlGetInt(int(f.Fd()), unix.BLKGETSIZE64)
	if err != nil {
		return 0, false
	}
	return int64(size), true
}
