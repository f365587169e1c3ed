package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/iconidentify/dispatcher/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrFolderNotFound),
		errors.Is(err, domain.ErrFileNotFound),
		errors.Is(err, domain.ErrPreviewNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNoPayload),
		errors.Is(err, domain.ErrNothingToExport):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNoActiveFolder),
		errors.Is(err, domain.ErrExportInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStorageFull):
		return http.StatusInsufficientStorage
	default:
		return http.StatusInternalServerError
	}
}
