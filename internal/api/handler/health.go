package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/iconidentify/dispatcher/internal/domain"
	"github.com/iconidentify/dispatcher/internal/repository"
	"github.com/iconidentify/dispatcher/internal/service"
)

var startTime = time.Now()

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	workspace *service.WorkspaceService
	exports   *service.ExportService
	history   repository.ExportHistory
	tempPath  string
	outputDir string
}

// NewHealthHandler creates a new health handler. history may be nil.
func NewHealthHandler(
	workspace *service.WorkspaceService,
	exports *service.ExportService,
	history repository.ExportHistory,
	tempPath, outputDir string,
) *HealthHandler {
	return &HealthHandler{
		workspace: workspace,
		exports:   exports,
		history:   history,
		tempPath:  tempPath,
		outputDir: outputDir,
	}
}

// HealthResponse is the JSON response for health checks.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Error     string `json:"error,omitempty"`
}

// Live handles GET /health - liveness probe.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready - readiness probe. Uploads need a writable temp
// directory and exports need a reachable history.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.check(ctx); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(HealthResponse{
			Status:    "error",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Error:     err.Error(),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) check(ctx context.Context) error {
	if err := os.MkdirAll(h.tempPath, 0755); err != nil {
		return fmt.Errorf("temp path: %w", err)
	}
	f, err := os.CreateTemp(h.tempPath, ".ready_*")
	if err != nil {
		return fmt.Errorf("temp path not writable: %w", err)
	}
	f.Close()
	os.Remove(f.Name())

	if h.history != nil {
		if _, err := h.history.List(ctx, 1); err != nil {
			return fmt.Errorf("export history: %w", err)
		}
	}
	return nil
}

// SystemStats contains process and workspace statistics.
type SystemStats struct {
	Uptime         int64              `json:"uptime_seconds"`
	UptimeHuman    string             `json:"uptime_human"`
	MemAllocMB     int64              `json:"mem_alloc_mb"`
	MemSysMB       int64              `json:"mem_sys_mb"`
	NumGoroutines  int                `json:"num_goroutines"`
	NumCPU         int                `json:"num_cpu"`
	Folders        int                `json:"folders"`
	Files          int                `json:"files"`
	ExportPhase    domain.ExportPhase `json:"export_phase"`
	OutputDir      string             `json:"output_dir,omitempty"`
	DiskFreeBytes  int64              `json:"disk_free_bytes"`
	DiskTotalBytes int64              `json:"disk_total_bytes"`
	DiskUsedPct    float64            `json:"disk_used_pct"`
}

// Stats handles GET /api/v1/stats.
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(startTime)
	ws := h.workspace.Snapshot()

	stats := SystemStats{
		Uptime:        int64(uptime.Seconds()),
		UptimeHuman:   formatUptime(uptime),
		MemAllocMB:    int64(m.Alloc / 1024 / 1024),
		MemSysMB:      int64(m.Sys / 1024 / 1024),
		NumGoroutines: runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		Folders:       ws.Len(),
		Files:         ws.FileCount(),
		ExportPhase:   h.exports.Status().Phase,
		OutputDir:     h.outputDir,
	}

	if h.outputDir != "" {
		total, free := getDiskStats(h.outputDir)
		stats.DiskTotalBytes = total
		stats.DiskFreeBytes = free
		if total > 0 {
			stats.DiskUsedPct = float64(total-free) / float64(total) * 100
		}
	}

	writeJSON(w, http.StatusOK, stats)
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}
