package domain

import (
	"io"
	"time"

	"github.com/google/uuid"
)

// FolderID is a unique identifier for a virtual folder.
type FolderID string

// String returns the string representation of the FolderID.
func (id FolderID) String() string {
	return string(id)
}

// FileID is a unique identifier for a file reference.
type FileID string

// String returns the string representation of the FileID.
func (id FileID) String() string {
	return string(id)
}

// PreviewHandle is an opaque token under which a file's content is served
// for thumbnails. The zero value means no preview is registered.
type PreviewHandle string

// NewFolderID generates a fresh folder identifier.
func NewFolderID() FolderID {
	return FolderID("fld_" + uuid.New().String())
}

// NewFileID generates a fresh file identifier.
func NewFileID() FileID {
	return FileID("file_" + uuid.New().String())
}

// Content is the binary payload behind a file reference. It is owned by
// whatever produced it (an upload, a file on disk) and is never copied by
// the model.
type Content interface {
	// Open returns a fresh reader over the full content.
	Open() (io.ReadCloser, error)

	// Size returns the content length in bytes.
	Size() int64
}

// Releaser is implemented by content that holds resources which must be
// freed when the last reference to it is destroyed.
type Releaser interface {
	Release() error
}

// FileRef is an in-memory handle to a dropped file.
type FileRef struct {
	ID           FileID
	OriginalName string
	ContentType  string
	Content      Content
	Preview      PreviewHandle
	AddedAt      time.Time
}

// Size returns the content size, or 0 when no content is attached.
func (f FileRef) Size() int64 {
	if f.Content == nil {
		return 0
	}
	return f.Content.Size()
}

// Folder is a named, ordered group of file references.
type Folder struct {
	ID    FolderID
	Name  string
	Files []FileRef
}

// FileCount returns the number of files in the folder.
func (f Folder) FileCount() int {
	return len(f.Files)
}

// IndexOf returns the position of the file with the given ID, or -1.
func (f Folder) IndexOf(id FileID) int {
	for i, file := range f.Files {
		if file.ID == id {
			return i
		}
	}
	return -1
}

// TotalSize sums the content sizes of all files in the folder.
func (f Folder) TotalSize() int64 {
	var total int64
	for _, file := range f.Files {
		total += file.Size()
	}
	return total
}

// clone returns a copy whose Files slice does not alias the receiver's.
func (f Folder) clone() Folder {
	files := make([]FileRef, len(f.Files))
	copy(files, f.Files)
	f.Files = files
	return f
}
