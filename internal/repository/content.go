package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/iconidentify/dispatcher/internal/domain"
)

// ErrFileTooLarge is returned when an upload exceeds the configured limit.
var ErrFileTooLarge = errors.New("file exceeds maximum upload size")

// MemoryContent is content held entirely in memory.
type MemoryContent []byte

// Open returns a reader over the bytes.
func (c MemoryContent) Open() (io.ReadCloser, error) {
	return readSeekNopCloser{bytes.NewReader(c)}, nil
}

// Size returns the byte length.
func (c MemoryContent) Size() int64 {
	return int64(len(c))
}

type readSeekNopCloser struct {
	*bytes.Reader
}

func (readSeekNopCloser) Close() error { return nil }

// FileContent references a file on disk in place. It is never copied or
// removed by the dispatcher.
type FileContent struct {
	Path string
	size int64
}

// NewFileContent stats path and returns content referencing it.
func NewFileContent(path string) (*FileContent, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return &FileContent{Path: path, size: info.Size()}, nil
}

// Open opens the file for reading.
func (c *FileContent) Open() (io.ReadCloser, error) {
	return os.Open(c.Path)
}

// Size returns the size recorded when the reference was created.
func (c *FileContent) Size() int64 {
	return c.size
}

// TempFileContent is an uploaded payload spooled to a temporary file. The
// file is removed when the content is released.
type TempFileContent struct {
	FileContent
}

// Release removes the temporary file.
func (c *TempFileContent) Release() error {
	if err := os.Remove(c.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// UploadStore spools uploads into a temporary directory so large videos are
// not held in memory.
type UploadStore struct {
	tempPath    string
	maxFileSize int64
}

// NewUploadStore creates an upload store. A maxFileSize of 0 means no limit.
func NewUploadStore(tempPath string, maxFileSize int64) *UploadStore {
	return &UploadStore{
		tempPath:    tempPath,
		maxFileSize: maxFileSize,
	}
}

// Put copies r into a new temporary file.
func (s *UploadStore) Put(ctx context.Context, originalName string, r io.Reader) (domain.Content, error) {
	if err := os.MkdirAll(s.tempPath, 0755); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}

	ext := filepath.Ext(originalName)
	if strings.ContainsAny(ext, `/\`) {
		ext = ""
	}
	f, err := os.CreateTemp(s.tempPath, "upload_*"+ext)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	src := r
	if s.maxFileSize > 0 {
		src = io.LimitReader(r, s.maxFileSize+1)
	}
	n, err := io.Copy(f, contextReader{ctx: ctx, r: src})
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && s.maxFileSize > 0 && n > s.maxFileSize {
		err = ErrFileTooLarge
	}
	if err != nil {
		os.Remove(f.Name())
		if errors.Is(err, ErrFileTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("write upload: %w", err)
	}

	return &TempFileContent{FileContent{Path: f.Name(), size: n}}, nil
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
