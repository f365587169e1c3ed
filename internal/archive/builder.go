package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/iconidentify/dispatcher/internal/domain"
)

// Builder writes workspace snapshots as ZIP archives.
type Builder struct {
	fallbackExt string
	now         func() time.Time
}

// NewBuilder creates a builder. An empty fallback uses DefaultFallbackExtension.
func NewBuilder(fallbackExt string) *Builder {
	if fallbackExt == "" {
		fallbackExt = DefaultFallbackExtension
	}
	return &Builder{
		fallbackExt: fallbackExt,
		now:         time.Now,
	}
}

// Plan returns the entries Build would write for folders.
func (b *Builder) Plan(folders []domain.Folder) []domain.ArchiveEntry {
	return Plan(folders, b.fallbackExt)
}

// Build serializes folders into a single in-memory archive.
func (b *Builder) Build(ctx context.Context, folders []domain.Folder) ([]byte, []domain.ArchiveEntry, error) {
	var buf bytes.Buffer
	entries, err := b.WriteTo(ctx, &buf, folders)
	if err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), entries, nil
}

// WriteTo streams the archive for folders into w.
func (b *Builder) WriteTo(ctx context.Context, w io.Writer, folders []domain.Folder) ([]domain.ArchiveEntry, error) {
	entries := b.Plan(folders)
	contents := make(map[domain.FileID]domain.Content)
	for _, folder := range folders {
		for _, file := range folder.Files {
			contents[file.ID] = file.Content
		}
	}

	zw := zip.NewWriter(w)
	modified := b.now()

	groups := make(map[string]bool)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			zw.Close()
			return nil, err
		}

		if !groups[entry.Group] {
			groups[entry.Group] = true
			if _, err := zw.CreateHeader(&zip.FileHeader{
				Name:     entry.Group + "/",
				Method:   zip.Store,
				Modified: modified,
			}); err != nil {
				zw.Close()
				return nil, fmt.Errorf("create folder %s: %w", entry.Group, err)
			}
		}

		if err := writeEntry(zw, entry, contents[entry.FileID], modified); err != nil {
			zw.Close()
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	return entries, nil
}

func writeEntry(zw *zip.Writer, entry domain.ArchiveEntry, content domain.Content, modified time.Time) error {
	if content == nil {
		return fmt.Errorf("write %s: no content for %s", entry.Path, entry.OriginalName)
	}

	dst, err := zw.CreateHeader(&zip.FileHeader{
		Name:     entry.Path,
		Method:   zip.Store,
		Modified: modified,
	})
	if err != nil {
		return fmt.Errorf("create entry %s: %w", entry.Path, err)
	}

	src, err := content.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", entry.OriginalName, err)
	}
	defer src.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("write %s: %w", entry.Path, err)
	}
	return nil
}
