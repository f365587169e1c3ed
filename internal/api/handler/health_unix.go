//go:build !windows

package handler

import "golang.org/x/sys/unix"

// getDiskStats returns total and available bytes for the filesystem
// holding path, or zeros when it cannot be read.
func getDiskStats(path string) (total, free int64) {
	var fs unix.Statfs_t
	if err := unix.Statfs(path, &fs); err != nil {
		return 0, 0
	}
	return int64(fs.Blocks) * int64(fs.Bsize), int64(fs.Bavail) * int64(fs.Bsize)
}
