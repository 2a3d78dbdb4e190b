//go:build !windows

package datastore

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// getDiskFreeSpace returns the bytes available to unprivileged writers
// on the filesystem holding path.
func getDiskFreeSpace(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}

	// Bsize is signed on several platforms
	if stat.Bsize <= 0 {
		return 0, fmt.Errorf("datastore: invalid block size %d from filesystem", stat.Bsize)
	}

	return stat.Bavail * uint64(stat.Bsize), nil
}
