//go:build windows

package handler

import "golang.org/x/sys/windows"

// getDiskStats returns total and available bytes for the volume holding
// path, or zeros when it cannot be read.
func getDiskStats(path string) (total, free int64) {
	ptr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, 0
	}
	var freeBytes, totalBytes, totalFreeBytes uint64
	if err := windows.GetDiskFreeSpaceEx(ptr, &freeBytes, &totalBytes, &totalFreeBytes); err != nil {
		return 0, 0
	}
	return int64(totalBytes), int64(freeBytes)
}
