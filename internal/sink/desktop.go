package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/iconidentify/dispatcher/internal/domain"
)

// DesktopDir returns the current user's desktop directory.
func DesktopDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, "Desktop"), nil
}

// Desktop writes archives into a local directory, normally ~/Desktop.
type Desktop struct {
	dir       string
	logger    *slog.Logger
	freeSpace func(path string) int64
}

// NewDesktop creates a desktop sink writing into dir.
func NewDesktop(dir string, logger *slog.Logger) *Desktop {
	return &Desktop{
		dir:       dir,
		logger:    logger,
		freeSpace: freeDiskSpace,
	}
}

// Location returns the target directory.
func (d *Desktop) Location() string {
	return d.dir
}

// Save writes data to dir/name. An existing file is never overwritten;
// a numeric suffix is added instead.
func (d *Desktop) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := checkPayload(name, data); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return "", fmt.Errorf("create %s: %w", d.dir, err)
	}

	// A zero reading means the size is unknown; let the write decide.
	if free := d.freeSpace(d.dir); free > 0 && free < int64(len(data)) {
		return "", fmt.Errorf("%w: need %s, have %s", domain.ErrStorageFull,
			humanize.Bytes(uint64(len(data))), humanize.Bytes(uint64(free)))
	}

	// Write atomically via temp file
	tmp, err := os.CreateTemp(d.dir, ".mv_footage_*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write archive: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("sync archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close archive: %w", err)
	}

	path, err := d.link(tmpPath, name)
	if err != nil {
		return "", err
	}

	d.logger.Info("archive saved",
		"path", path,
		"size", humanize.Bytes(uint64(len(data))),
	)
	return path, nil
}

// link moves tmpPath to the first free variant of name.
func (d *Desktop) link(tmpPath, name string) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for n := 1; n < 1000; n++ {
		candidate := name
		if n > 1 {
			candidate = fmt.Sprintf("%s-%d%s", base, n, ext)
		}
		path := filepath.Join(d.dir, candidate)

		// os.Link fails if the target exists, unlike os.Rename.
		err := os.Link(tmpPath, path)
		if err == nil {
			return path, nil
		}
		if errors.Is(err, os.ErrExist) {
			continue
		}
		// Filesystems without hard links fall back to a checked rename.
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			if err := os.Rename(tmpPath, path); err != nil {
				return "", fmt.Errorf("move archive into place: %w", err)
			}
			return path, nil
		}
	}
	return "", fmt.Errorf("no free file name for %s in %s", name, d.dir)
}
