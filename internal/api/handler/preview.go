package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iconidentify/dispatcher/internal/domain"
	"github.com/iconidentify/dispatcher/internal/service"
)

// PreviewHandler serves file content behind preview handles.
type PreviewHandler struct {
	svc    *service.WorkspaceService
	logger *slog.Logger
}

// NewPreviewHandler creates a new preview handler.
func NewPreviewHandler(svc *service.WorkspaceService, logger *slog.Logger) *PreviewHandler {
	return &PreviewHandler{svc: svc, logger: logger}
}

// Serve handles GET /preview/{handle}. Seekable content supports range
// requests so the browser can scrub video thumbnails.
func (h *PreviewHandler) Serve(w http.ResponseWriter, r *http.Request) {
	handle := domain.PreviewHandle(chi.URLParam(r, "handle"))

	name, contentType, content, err := h.svc.Preview(handle)
	if err != nil {
		if errors.Is(err, domain.ErrPreviewNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load preview", http.StatusInternalServerError)
		return
	}

	rc, err := content.Open()
	if err != nil {
		h.logger.Warn("failed to open preview", "handle", handle, "error", err)
		http.Error(w, "Preview unavailable", http.StatusGone)
		return
	}
	defer rc.Close()

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("Cache-Control", "private, max-age=3600")

	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, name, time.Time{}, rs)
		return
	}

	w.Header().Set("Content-Length", strconv.FormatInt(content.Size(), 10))
	io.Copy(w, rc)
}
