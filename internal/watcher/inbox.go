// Package watcher drops files that appear in an inbox directory into the
// active folder.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/iconidentify/dispatcher/internal/domain"
	"github.com/iconidentify/dispatcher/internal/repository"
)

// ErrShutdownTimeout is returned when the watcher does not stop within timeout.
var ErrShutdownTimeout = errors.New("inbox watcher shutdown timed out")

// DefaultSettle is how long a file must stay unchanged before it is added.
const DefaultSettle = 2 * time.Second

// Dropper receives settled files.
type Dropper interface {
	AddFiles(ctx context.Context, folderID domain.FolderID, files []domain.FileRef) ([]domain.FileRef, error)
}

// Config holds inbox configuration.
type Config struct {
	Dir    string
	Settle time.Duration
}

// Inbox watches a directory and adds every settled file to the active
// folder. Files are referenced in place and never removed.
type Inbox struct {
	dir     string
	settle  time.Duration
	dropper Dropper
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	added   map[string]fileStamp

	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

type fileStamp struct {
	size    int64
	modTime time.Time
}

// New creates an inbox watcher.
func New(cfg Config, dropper Dropper, logger *slog.Logger) *Inbox {
	if cfg.Settle <= 0 {
		cfg.Settle = DefaultSettle
	}
	return &Inbox{
		dir:     cfg.Dir,
		settle:  cfg.Settle,
		dropper: dropper,
		logger:  logger.With("component", "inbox"),
		pending: make(map[string]*time.Timer),
		added:   make(map[string]fileStamp),
	}
}

// Start creates the inbox directory if needed and begins watching it.
func (i *Inbox) Start(ctx context.Context) error {
	if err := os.MkdirAll(i.dir, 0755); err != nil {
		return fmt.Errorf("create inbox: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(i.dir); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", i.dir, err)
	}
	i.watcher = w

	ctx, i.cancel = context.WithCancel(ctx)
	i.wg.Add(1)
	go i.run(ctx)

	i.logger.Info("inbox watcher started", "dir", i.dir, "settle", i.settle)
	return nil
}

// Stop ends watching and waits for in-flight drops.
func (i *Inbox) Stop(timeout time.Duration) error {
	if i.cancel == nil {
		return nil
	}
	i.cancel()

	done := make(chan struct{})
	go func() {
		i.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		i.logger.Info("inbox watcher stopped")
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}

func (i *Inbox) run(ctx context.Context) {
	defer i.wg.Done()
	defer i.watcher.Close()
	defer i.stopTimers()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-i.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				i.schedule(ctx, event.Name)
			}
		case err, ok := <-i.watcher.Errors:
			if !ok {
				return
			}
			i.logger.Error("fsnotify error", "error", err)
		}
	}
}

// schedule (re)starts the settle timer for path.
func (i *Inbox) schedule(ctx context.Context, path string) {
	if ignored(filepath.Base(path)) {
		return
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if t, ok := i.pending[path]; ok && t.Stop() {
		t.Reset(i.settle)
		return
	}
	i.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(i.settle, func() {
		defer i.wg.Done()
		i.mu.Lock()
		if i.pending[path] == t {
			delete(i.pending, path)
		}
		i.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		i.drop(ctx, path)
	})
	i.pending[path] = t
}

func (i *Inbox) stopTimers() {
	i.mu.Lock()
	defer i.mu.Unlock()
	for path, t := range i.pending {
		if t.Stop() {
			i.wg.Done()
		}
		delete(i.pending, path)
	}
}

func (i *Inbox) drop(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}
	stamp := fileStamp{size: info.Size(), modTime: info.ModTime()}

	i.mu.Lock()
	if prev, ok := i.added[path]; ok && prev == stamp {
		i.mu.Unlock()
		return
	}
	i.mu.Unlock()

	content, err := repository.NewFileContent(path)
	if err != nil {
		i.logger.Warn("skipping inbox file", "path", path, "error", err)
		return
	}

	name := filepath.Base(path)
	_, err = i.dropper.AddFiles(ctx, "", []domain.FileRef{{
		OriginalName: name,
		ContentType:  mime.TypeByExtension(filepath.Ext(name)),
		Content:      content,
	}})
	if err != nil {
		i.logger.Warn("failed to drop inbox file", "path", path, "error", err)
		return
	}

	i.mu.Lock()
	i.added[path] = stamp
	i.mu.Unlock()
	i.logger.Info("dropped inbox file", "name", name, "size", info.Size())
}

// ignored reports whether name is hidden or a partial download.
func ignored(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~") {
		return true
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".part", ".crdownload", ".download", ".tmp":
		return true
	}
	return false
}
