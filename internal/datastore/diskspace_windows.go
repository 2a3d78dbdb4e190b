//go:build windows

package datastore

import (
	"golang.org/x/sys/windows"
)

// getDiskFreeSpace returns the bytes available to the calling user on
// the volume holding path.
func getDiskFreeSpace(path string) (uint64, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}

	var freeToCaller, total, totalFree uint64
	if err := windows.GetDiskFreeSpaceEx(p, &freeToCaller, &total, &totalFree); err != nil {
		return 0, err
	}

	return freeToCaller, nil
}
