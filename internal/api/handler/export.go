package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/iconidentify/dispatcher/internal/domain"
	"github.com/iconidentify/dispatcher/internal/service"
)

// ExportHandler handles export-related HTTP requests.
type ExportHandler struct {
	exportSvc      *service.ExportService
	maxArchiveSize int64
	logger         *slog.Logger
}

// NewExportHandler creates a new export handler. maxArchiveSize bounds
// prebuilt archive uploads; 0 means no limit.
func NewExportHandler(exportSvc *service.ExportService, maxArchiveSize int64, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{
		exportSvc:      exportSvc,
		maxArchiveSize: maxArchiveSize,
		logger:         logger,
	}
}

// PlanResponse lists the entries an export would write.
type PlanResponse struct {
	Entries []domain.ArchiveEntry `json:"entries"`
	Files   int                   `json:"files"`
	Bytes   int64                 `json:"bytes"`
}

// Plan returns the computed archive names for the current workspace.
func (h *ExportHandler) Plan(w http.ResponseWriter, r *http.Request) {
	entries := h.exportSvc.Plan()
	resp := PlanResponse{Entries: entries, Files: len(entries)}
	if resp.Entries == nil {
		resp.Entries = []domain.ArchiveEntry{}
	}
	for _, e := range entries {
		resp.Bytes += e.Size
	}
	writeJSON(w, http.StatusOK, resp)
}

// Export builds the archive and saves it. Save failures are reported in
// the body with success=false.
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	result, err := h.exportSvc.Export(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Status returns the current export state.
func (h *ExportHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.exportSvc.Status())
}

// History returns recent export results. ?limit= bounds the list.
func (h *ExportHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	results, err := h.exportSvc.History(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list exports", "error", err)
		http.Error(w, "Failed to list exports", http.StatusInternalServerError)
		return
	}
	if results == nil {
		results = []domain.ExportResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

// SaveArchive handles POST /archives: a multipart "file" holding an archive
// built elsewhere is saved through the sink.
func (h *ExportHandler) SaveArchive(w http.ResponseWriter, r *http.Request) {
	data, err := h.readArchive(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Archive too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.exportSvc.SaveArchive(r.Context(), data)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *ExportHandler) readArchive(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if h.maxArchiveSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxArchiveSize)
	}
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, domain.ErrNoPayload
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, domain.ErrNoPayload
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}
		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			return nil, domain.ErrNoPayload
		}
		return data, nil
	}
}

func (h *ExportHandler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("export request failed", "error", err)
		http.Error(w, "Export failed", status)
		return
	}
	http.Error(w, err.Error(), status)
}
