package api

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iconidentify/dispatcher/internal/api/handler"
	mw "github.com/iconidentify/dispatcher/internal/api/middleware"
	"github.com/iconidentify/dispatcher/internal/metrics"
)

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(
	workspaceHandler *handler.WorkspaceHandler,
	exportHandler *handler.ExportHandler,
	previewHandler *handler.PreviewHandler,
	healthHandler *handler.HealthHandler,
	uiHandler *handler.UIHandler,
	logger *slog.Logger,
	apiKey string,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath) // Normalize paths (e.g., //ready -> /ready)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger(logger))
	r.Use(mw.Recovery(logger))
	r.Use(metrics.Middleware)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(mw.CORS)

	// Health endpoints (no auth)
	r.Get("/health", healthHandler.Live)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", metrics.Handler())

	// Web UI (no auth - the page sends the API key itself)
	r.Get("/", uiHandler.Index)
	r.Get("/terms", uiHandler.Terms)
	r.Get("/privacy", uiHandler.Privacy)

	// Previews are loaded by <video> tags, so the key travels as ?key=.
	r.With(mw.APIKeyAuth(apiKey)).Get("/preview/{handle}", previewHandler.Serve)

	// API v1 (authenticated)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(apiKey))

		r.Get("/stats", healthHandler.Stats)

		// Folders and files
		r.Get("/workspace", workspaceHandler.Get)
		r.Post("/folders", workspaceHandler.CreateFolder)
		r.Patch("/folders/{id}", workspaceHandler.RenameFolder)
		r.Delete("/folders/{id}", workspaceHandler.DeleteFolder)
		r.Post("/folders/{id}/activate", workspaceHandler.ActivateFolder)
		r.Post("/folders/{id}/files", workspaceHandler.UploadFiles)
		r.Delete("/folders/{id}/files/{fileID}", workspaceHandler.DeleteFile)
		r.Post("/folders/{id}/reorder", workspaceHandler.Reorder)
		r.Post("/drop", workspaceHandler.Drop)

		// Export
		r.Get("/export/plan", exportHandler.Plan)
		r.Post("/export", exportHandler.Export)
		r.Get("/export/status", exportHandler.Status)
		r.Get("/exports", exportHandler.History)
		r.Post("/archives", exportHandler.SaveArchive)
	})

	return r
}
