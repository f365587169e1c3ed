package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iconidentify/dispatcher/internal/domain"
	"github.com/iconidentify/dispatcher/internal/metrics"
	"github.com/iconidentify/dispatcher/internal/repository"
	"github.com/iconidentify/dispatcher/internal/service"
)

// WorkspaceHandler handles folder and file HTTP requests.
type WorkspaceHandler struct {
	svc    *service.WorkspaceService
	store  repository.ContentStore
	logger *slog.Logger
}

// NewWorkspaceHandler creates a new workspace handler.
func NewWorkspaceHandler(svc *service.WorkspaceService, store repository.ContentStore, logger *slog.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{
		svc:    svc,
		store:  store,
		logger: logger,
	}
}

// FileResponse represents a file reference in API responses.
type FileResponse struct {
	ID           string `json:"id"`
	OriginalName string `json:"original_name"`
	ContentType  string `json:"content_type,omitempty"`
	Size         int64  `json:"size"`
	Position     int    `json:"position"`
	Label        string `json:"label"`
	PreviewURL   string `json:"preview_url,omitempty"`
	AddedAt      string `json:"added_at"`
}

// FolderResponse represents a folder in API responses.
type FolderResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Active    bool           `json:"active"`
	FileCount int            `json:"file_count"`
	Files     []FileResponse `json:"files"`
}

// WorkspaceResponse is the full model.
type WorkspaceResponse struct {
	ActiveID  string           `json:"active_id"`
	FileCount int              `json:"file_count"`
	Folders   []FolderResponse `json:"folders"`
}

func toFileResponse(f domain.FileRef, index int) FileResponse {
	resp := FileResponse{
		ID:           f.ID.String(),
		OriginalName: f.OriginalName,
		ContentType:  f.ContentType,
		Size:         f.Size(),
		Position:     index + 1,
		Label:        fmt.Sprintf("#%03d", index+1),
		AddedAt:      f.AddedAt.UTC().Format(time.RFC3339),
	}
	if f.Preview != "" {
		resp.PreviewURL = "/preview/" + string(f.Preview)
	}
	return resp
}

func toFolderResponse(f domain.Folder, activeID domain.FolderID) FolderResponse {
	files := make([]FileResponse, len(f.Files))
	for i, file := range f.Files {
		files[i] = toFileResponse(file, i)
	}
	return FolderResponse{
		ID:        f.ID.String(),
		Name:      f.Name,
		Active:    f.ID == activeID,
		FileCount: len(f.Files),
		Files:     files,
	}
}

func toWorkspaceResponse(ws domain.Workspace) WorkspaceResponse {
	folders := ws.Folders()
	resp := WorkspaceResponse{
		ActiveID:  ws.ActiveID().String(),
		FileCount: ws.FileCount(),
		Folders:   make([]FolderResponse, len(folders)),
	}
	for i, f := range folders {
		resp.Folders[i] = toFolderResponse(f, ws.ActiveID())
	}
	return resp
}

// Get returns the whole workspace.
func (h *WorkspaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toWorkspaceResponse(h.svc.Snapshot()))
}

// FolderRequest is the JSON body for folder creation and rename.
type FolderRequest struct {
	Name string `json:"name"`
}

// CreateFolder adds a folder and makes it active.
func (h *WorkspaceHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req FolderRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	folder := h.svc.AddFolder(r.Context(), req.Name)
	writeJSON(w, http.StatusCreated, toFolderResponse(folder, folder.ID))
}

// RenameFolder changes a folder's name. Blank names are ignored.
func (h *WorkspaceHandler) RenameFolder(w http.ResponseWriter, r *http.Request) {
	id := domain.FolderID(chi.URLParam(r, "id"))

	var req FolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	folder, err := h.svc.RenameFolder(r.Context(), id, req.Name)
	if err != nil {
		h.writeError(w, err, "Failed to rename folder")
		return
	}
	writeJSON(w, http.StatusOK, toFolderResponse(folder, h.svc.Snapshot().ActiveID()))
}

// DeleteFolder removes a folder and its files.
func (h *WorkspaceHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	id := domain.FolderID(chi.URLParam(r, "id"))

	if err := h.svc.DeleteFolder(r.Context(), id); err != nil {
		h.writeError(w, err, "Failed to delete folder")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ActivateFolder makes a folder the drop target.
func (h *WorkspaceHandler) ActivateFolder(w http.ResponseWriter, r *http.Request) {
	id := domain.FolderID(chi.URLParam(r, "id"))

	if err := h.svc.SetActive(r.Context(), id); err != nil {
		h.writeError(w, err, "Failed to activate folder")
		return
	}
	writeJSON(w, http.StatusOK, toWorkspaceResponse(h.svc.Snapshot()))
}

// UploadResponse lists the files created by an upload.
type UploadResponse struct {
	FolderID string         `json:"folder_id"`
	Files    []FileResponse `json:"files"`
}

// UploadFiles handles POST /folders/{id}/files.
func (h *WorkspaceHandler) UploadFiles(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, domain.FolderID(chi.URLParam(r, "id")))
}

// Drop handles POST /drop, adding files to the active folder.
func (h *WorkspaceHandler) Drop(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, "")
}

func (h *WorkspaceHandler) upload(w http.ResponseWriter, r *http.Request, folderID domain.FolderID) {
	ws := h.svc.Snapshot()
	if folderID == "" {
		folderID = ws.ActiveID()
		if folderID == "" {
			h.writeError(w, domain.ErrNoActiveFolder, "")
			return
		}
	}
	if _, err := ws.Folder(folderID); err != nil {
		h.writeError(w, err, "")
		return
	}

	files, err := h.readFiles(r)
	if err != nil {
		releaseAll(files)
		if errors.Is(err, repository.ErrFileTooLarge) {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		if errors.Is(err, domain.ErrNoPayload) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to read upload", "folder_id", folderID, "error", err)
		http.Error(w, "Failed to read upload", http.StatusBadRequest)
		return
	}

	added, err := h.svc.AddFiles(r.Context(), folderID, files)
	if err != nil {
		releaseAll(files)
		h.writeError(w, err, "Failed to add files")
		return
	}

	folder, _ := h.svc.Snapshot().Folder(folderID)
	offset := len(folder.Files) - len(added)
	resp := UploadResponse{FolderID: folderID.String(), Files: make([]FileResponse, len(added))}
	for i, f := range added {
		resp.Files[i] = toFileResponse(f, offset+i)
	}
	writeJSON(w, http.StatusCreated, resp)
}

// readFiles streams every "file" part of a multipart body into the store.
func (h *WorkspaceHandler) readFiles(r *http.Request) ([]domain.FileRef, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, domain.ErrNoPayload
	}

	var files []domain.FileRef
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return files, fmt.Errorf("read part: %w", err)
		}
		if part.FormName() != "file" || part.FileName() == "" {
			part.Close()
			continue
		}

		name := filepath.Base(part.FileName())
		content, err := h.store.Put(r.Context(), name, part)
		part.Close()
		if err != nil {
			return files, err
		}
		metrics.RecordUpload(content.Size())

		files = append(files, domain.FileRef{
			OriginalName: name,
			ContentType:  detectContentType(name, part.Header.Get("Content-Type")),
			Content:      content,
		})
	}

	if len(files) == 0 {
		return nil, domain.ErrNoPayload
	}
	return files, nil
}

// DeleteFile removes one file from a folder.
func (h *WorkspaceHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	folderID := domain.FolderID(chi.URLParam(r, "id"))
	fileID := domain.FileID(chi.URLParam(r, "fileID"))

	if err := h.svc.DeleteFile(r.Context(), folderID, fileID); err != nil {
		h.writeError(w, err, "Failed to delete file")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReorderRequest moves a file either by index or by drag-end IDs.
type ReorderRequest struct {
	From     *int   `json:"from,omitempty"`
	To       *int   `json:"to,omitempty"`
	ActiveID string `json:"active_id,omitempty"`
	OverID   string `json:"over_id,omitempty"`
}

// Reorder handles POST /folders/{id}/reorder.
func (h *WorkspaceHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	folderID := domain.FolderID(chi.URLParam(r, "id"))

	var req ReorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var (
		folder domain.Folder
		err    error
	)
	switch {
	case req.ActiveID != "" && req.OverID != "":
		folder, err = h.svc.MoveFileTo(r.Context(), folderID, domain.FileID(req.ActiveID), domain.FileID(req.OverID))
	case req.From != nil && req.To != nil:
		folder, err = h.svc.ReorderFiles(r.Context(), folderID, *req.From, *req.To)
	default:
		http.Error(w, "Either from/to or active_id/over_id is required", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.writeError(w, err, "Failed to reorder files")
		return
	}
	writeJSON(w, http.StatusOK, toFolderResponse(folder, h.svc.Snapshot().ActiveID()))
}

func (h *WorkspaceHandler) writeError(w http.ResponseWriter, err error, msg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(msg, "error", err)
		http.Error(w, msg, status)
		return
	}
	http.Error(w, err.Error(), status)
}

// detectContentType prefers the declared type and falls back to the
// extension.
func detectContentType(name, declared string) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	if declared != "" {
		return declared
	}
	return "application/octet-stream"
}

func releaseAll(files []domain.FileRef) {
	for _, f := range files {
		if r, ok := f.Content.(domain.Releaser); ok {
			r.Release()
		}
	}
}
