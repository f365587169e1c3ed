package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/iconidentify/dispatcher/internal/domain"
	"github.com/iconidentify/dispatcher/internal/metrics"
	"github.com/iconidentify/dispatcher/internal/preview"
)

// WorkspaceService owns the session's workspace and serializes every
// mutation to it.
type WorkspaceService struct {
	logger   *slog.Logger
	previews *preview.Registry

	mu       sync.Mutex
	ws       domain.Workspace
	pins     int
	deferred []domain.FileRef
	closed   bool
}

// NewWorkspaceService creates a service around ws.
func NewWorkspaceService(ws domain.Workspace, previews *preview.Registry, logger *slog.Logger) *WorkspaceService {
	s := &WorkspaceService{
		logger:   logger,
		previews: previews,
		ws:       ws,
	}
	metrics.SetWorkspaceSize(ws.Len(), ws.FileCount())
	return s
}

// Snapshot returns the current workspace. The value is immutable and stays
// valid regardless of later edits.
func (s *WorkspaceService) Snapshot() domain.Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ws
}

// Pin returns a snapshot whose content stays readable until unpin is
// called. Releases requested in the meantime are deferred.
func (s *WorkspaceService) Pin() (ws domain.Workspace, unpin func()) {
	s.mu.Lock()
	s.pins++
	ws = s.ws
	s.mu.Unlock()

	var once sync.Once
	return ws, func() {
		once.Do(s.unpin)
	}
}

func (s *WorkspaceService) unpin() {
	s.mu.Lock()
	s.pins--
	var pending []domain.FileRef
	if s.pins == 0 {
		pending = s.deferred
		s.deferred = nil
	}
	s.mu.Unlock()

	for _, f := range pending {
		s.releaseContent(f)
	}
}

// AddFolder creates a folder and makes it active.
func (s *WorkspaceService) AddFolder(ctx context.Context, name string) domain.Folder {
	s.mu.Lock()
	defer s.mu.Unlock()

	var folder domain.Folder
	s.ws, folder = s.ws.AddFolder(name)
	s.observe()

	s.logger.Info("created folder", "id", folder.ID, "name", folder.Name)
	return folder
}

// RenameFolder renames a folder. A blank name leaves it unchanged.
func (s *WorkspaceService) RenameFolder(ctx context.Context, id domain.FolderID, name string) (domain.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.ws.RenameFolder(id, name)
	if err != nil {
		return domain.Folder{}, err
	}
	s.ws = next

	folder, _ := s.ws.Folder(id)
	s.logger.Info("renamed folder", "id", id, "name", folder.Name)
	return folder, nil
}

// DeleteFolder removes a folder and releases everything it held.
func (s *WorkspaceService) DeleteFolder(ctx context.Context, id domain.FolderID) error {
	s.mu.Lock()
	next, removed, err := s.ws.DeleteFolder(id)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.ws = next
	release := s.detachLocked(removed)
	s.observe()
	s.mu.Unlock()

	for _, f := range release {
		s.releaseContent(f)
	}
	s.logger.Info("deleted folder", "id", id, "files", len(removed))
	return nil
}

// SetActive makes a folder the drop target.
func (s *WorkspaceService) SetActive(ctx context.Context, id domain.FolderID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.ws.SetActive(id)
	if err != nil {
		return err
	}
	s.ws = next
	return nil
}

// AddFiles appends files to a folder in the given order and registers a
// preview handle for each. An empty folderID targets the active folder.
func (s *WorkspaceService) AddFiles(ctx context.Context, folderID domain.FolderID, files []domain.FileRef) ([]domain.FileRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if folderID == "" {
		folderID = s.ws.ActiveID()
		if folderID == "" {
			return nil, domain.ErrNoActiveFolder
		}
	}
	if _, err := s.ws.Folder(folderID); err != nil {
		return nil, err
	}

	withPreview := make([]domain.FileRef, len(files))
	for i, f := range files {
		if f.Preview == "" && f.Content != nil {
			f.Preview = s.previews.Acquire(f.OriginalName, f.ContentType, f.Content)
		}
		withPreview[i] = f
	}

	next, added, err := s.ws.AddFiles(folderID, withPreview)
	if err != nil {
		for _, f := range withPreview {
			s.previews.Release(f.Preview)
		}
		return nil, err
	}
	s.ws = next
	s.observe()
	metrics.RecordFilesAdded(len(added))

	s.logger.Info("added files", "folder_id", folderID, "count", len(added))
	return added, nil
}

// DeleteFile removes one file reference and releases its resources.
func (s *WorkspaceService) DeleteFile(ctx context.Context, folderID domain.FolderID, fileID domain.FileID) error {
	s.mu.Lock()
	next, removed, err := s.ws.DeleteFile(folderID, fileID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.ws = next
	release := s.detachLocked([]domain.FileRef{removed})
	s.observe()
	s.mu.Unlock()

	for _, f := range release {
		s.releaseContent(f)
	}
	s.logger.Info("deleted file", "folder_id", folderID, "file_id", fileID)
	return nil
}

// ReorderFiles moves the file at index from to index to.
func (s *WorkspaceService) ReorderFiles(ctx context.Context, folderID domain.FolderID, from, to int) (domain.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.ws.ReorderFiles(folderID, from, to)
	if err != nil {
		return domain.Folder{}, err
	}
	s.ws = next
	folder, _ := s.ws.Folder(folderID)
	return folder, nil
}

// MoveFileTo moves activeID into overID's position.
func (s *WorkspaceService) MoveFileTo(ctx context.Context, folderID domain.FolderID, activeID, overID domain.FileID) (domain.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.ws.MoveFileTo(folderID, activeID, overID)
	if err != nil {
		return domain.Folder{}, err
	}
	s.ws = next
	folder, _ := s.ws.Folder(folderID)
	return folder, nil
}

// Preview returns the content registered under a preview handle.
func (s *WorkspaceService) Preview(h domain.PreviewHandle) (name, contentType string, content domain.Content, err error) {
	return s.previews.Lookup(h)
}

// Close ends the session: every preview handle and every remaining content
// resource is released. Content held by a pinned snapshot is released when
// the last pin is dropped. Close is idempotent.
func (s *WorkspaceService) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var release []domain.FileRef
	for _, folder := range s.ws.Folders() {
		release = append(release, folder.Files...)
	}
	pinned := s.pins > 0
	if pinned {
		s.deferred = append(s.deferred, release...)
		release = nil
	} else {
		release = append(release, s.deferred...)
		s.deferred = nil
	}
	s.mu.Unlock()

	s.previews.ReleaseAll()
	metrics.SetPreviewHandles(0)
	for _, f := range release {
		s.releaseContent(f)
	}
	s.logger.Info("workspace closed", "released", len(release), "pinned", pinned)
	return nil
}

// detachLocked drops the preview handles of removed files and returns the
// ones whose content may be released now. Callers hold s.mu.
func (s *WorkspaceService) detachLocked(removed []domain.FileRef) []domain.FileRef {
	for _, f := range removed {
		s.previews.Release(f.Preview)
	}
	metrics.RecordFilesRemoved(len(removed))
	if s.pins > 0 {
		s.deferred = append(s.deferred, removed...)
		return nil
	}
	return removed
}

func (s *WorkspaceService) releaseContent(f domain.FileRef) {
	r, ok := f.Content.(domain.Releaser)
	if !ok {
		return
	}
	if err := r.Release(); err != nil {
		s.logger.Warn("failed to release file content", "file_id", f.ID, "error", err)
	}
}

// observe publishes workspace size metrics. Callers hold s.mu.
func (s *WorkspaceService) observe() {
	metrics.SetWorkspaceSize(s.ws.Len(), s.ws.FileCount())
	metrics.SetPreviewHandles(s.previews.Len())
}
