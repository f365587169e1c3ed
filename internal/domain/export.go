package domain

import (
	"time"
)

// ExportID identifies one export attempt.
type ExportID string

// String returns the string representation of the ExportID.
func (id ExportID) String() string {
	return string(id)
}

// ExportResult is the outcome of an export. Failures are reported here
// rather than as errors so callers can show the message to the user.
type ExportResult struct {
	ID        ExportID  `json:"id"`
	Success   bool      `json:"success"`
	Path      string    `json:"path,omitempty"`
	Error     string    `json:"error,omitempty"`
	Folders   int       `json:"folders"`
	Files     int       `json:"files"`
	Bytes     int64     `json:"bytes"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
}

// ExportPhase describes where an export currently is.
type ExportPhase string

const (
	ExportPhaseIdle      ExportPhase = "idle"
	ExportPhaseBuilding  ExportPhase = "building"
	ExportPhaseSaving    ExportPhase = "saving"
	ExportPhaseCompleted ExportPhase = "completed"
	ExportPhaseFailed    ExportPhase = "failed"
)

// Active reports whether the phase belongs to an export in flight.
func (p ExportPhase) Active() bool {
	return p == ExportPhaseBuilding || p == ExportPhaseSaving
}

// ExportStatus is a point-in-time view of the export state.
type ExportStatus struct {
	Phase     ExportPhase   `json:"phase"`
	ExportID  ExportID      `json:"export_id,omitempty"`
	StartedAt *time.Time    `json:"started_at,omitempty"`
	Last      *ExportResult `json:"last,omitempty"`
}

// ArchiveEntry is one planned file inside the archive.
type ArchiveEntry struct {
	FolderID     FolderID `json:"folder_id"`
	FileID       FileID   `json:"file_id"`
	Group        string   `json:"group"`
	Name         string   `json:"name"`
	Path         string   `json:"path"`
	OriginalName string   `json:"original_name"`
	Size         int64    `json:"size"`
}
