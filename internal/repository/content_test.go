package repository

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iconidentify/dispatcher/internal/domain"
)

func readAll(t *testing.T, c domain.Content) string {
	t.Helper()
	rc, err := c.Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return string(data)
}

func TestMemoryContent(t *testing.T) {
	c := MemoryContent("hello")
	if c.Size() != 5 {
		t.Errorf("Size() = %d, want 5", c.Size())
	}
	if got := readAll(t, c); got != "hello" {
		t.Errorf("content = %q", got)
	}
	// Each Open starts from the beginning.
	if got := readAll(t, c); got != "hello" {
		t.Errorf("second read = %q", got)
	}
}

func TestNewFileContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(path, []byte("video"), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := NewFileContent(path)
	if err != nil {
		t.Fatalf("NewFileContent failed: %v", err)
	}
	if c.Size() != 5 {
		t.Errorf("Size() = %d, want 5", c.Size())
	}
	if got := readAll(t, c); got != "video" {
		t.Errorf("content = %q", got)
	}

	if _, err := NewFileContent(filepath.Join(dir, "missing.mp4")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := NewFileContent(dir); err == nil {
		t.Error("expected error for directory")
	}
}

func TestUploadStore_Put(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store := NewUploadStore(dir, 0)

	c, err := store.Put(context.Background(), "take1.MOV", strings.NewReader("footage"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if c.Size() != 7 {
		t.Errorf("Size() = %d, want 7", c.Size())
	}
	if got := readAll(t, c); got != "footage" {
		t.Errorf("content = %q", got)
	}

	tmp, ok := c.(*TempFileContent)
	if !ok {
		t.Fatalf("content type = %T, want *TempFileContent", c)
	}
	if filepath.Dir(tmp.Path) != dir {
		t.Errorf("upload stored in %q, want %q", filepath.Dir(tmp.Path), dir)
	}
	if filepath.Ext(tmp.Path) != ".MOV" {
		t.Errorf("extension = %q, want .MOV", filepath.Ext(tmp.Path))
	}

	if err := tmp.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(tmp.Path); !os.IsNotExist(err) {
		t.Error("temp file should be removed after Release")
	}
	// Releasing twice is harmless.
	if err := tmp.Release(); err != nil {
		t.Errorf("second Release failed: %v", err)
	}
}

func TestUploadStore_Put_TooLarge(t *testing.T) {
	dir := t.TempDir()
	store := NewUploadStore(dir, 4)

	_, err := store.Put(context.Background(), "big.mp4", strings.NewReader("12345"))
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("error = %v, want ErrFileTooLarge", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("rejected upload left %d files behind", len(entries))
	}

	if _, err := store.Put(context.Background(), "ok.mp4", strings.NewReader("1234")); err != nil {
		t.Errorf("upload at the limit should succeed: %v", err)
	}
}

func TestUploadStore_Put_Cancelled(t *testing.T) {
	dir := t.TempDir()
	store := NewUploadStore(dir, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Put(ctx, "a.mp4", strings.NewReader("data")); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("cancelled upload left %d files behind", len(entries))
	}
}
