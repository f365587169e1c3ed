package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iconidentify/dispatcher/internal/archive"
	"github.com/iconidentify/dispatcher/internal/domain"
	"github.com/iconidentify/dispatcher/internal/metrics"
	"github.com/iconidentify/dispatcher/internal/repository"
	"github.com/iconidentify/dispatcher/internal/sink"
)

// exportFailedMessage is shown when the archive itself could not be built.
const exportFailedMessage = "export failed"

// ExportService builds archives from workspace snapshots and saves them
// through a sink.
type ExportService struct {
	workspace *WorkspaceService
	builder   *archive.Builder
	sink      sink.Sink
	history   repository.ExportHistory
	logger    *slog.Logger
	now       func() time.Time

	mu     sync.Mutex
	status domain.ExportStatus
}

// NewExportService creates a new export service. history may be nil.
func NewExportService(
	workspace *WorkspaceService,
	builder *archive.Builder,
	s sink.Sink,
	history repository.ExportHistory,
	logger *slog.Logger,
) *ExportService {
	return &ExportService{
		workspace: workspace,
		builder:   builder,
		sink:      s,
		history:   history,
		logger:    logger,
		now:       time.Now,
		status:    domain.ExportStatus{Phase: domain.ExportPhaseIdle},
	}
}

// Plan returns the archive entries the current workspace would produce.
func (s *ExportService) Plan() []domain.ArchiveEntry {
	return s.builder.Plan(s.workspace.Snapshot().Folders())
}

// Status returns a copy of the current export state.
func (s *ExportService) Status() domain.ExportStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := s.status
	if status.StartedAt != nil {
		t := *status.StartedAt
		status.StartedAt = &t
	}
	if status.Last != nil {
		last := *status.Last
		status.Last = &last
	}
	return status
}

// History returns recent export results, newest first.
func (s *ExportService) History(ctx context.Context, limit int) ([]domain.ExportResult, error) {
	if s.history == nil {
		return []domain.ExportResult{}, nil
	}
	return s.history.List(ctx, limit)
}

// Export builds an archive from the current workspace and saves it. Build
// and save failures are reported in the result; the returned error is only
// set when the export could not start. Once started, an export runs to
// completion even if ctx is cancelled.
func (s *ExportService) Export(ctx context.Context) (domain.ExportResult, error) {
	id, started, err := s.begin()
	if err != nil {
		return domain.ExportResult{}, err
	}
	ctx = context.WithoutCancel(ctx)

	ws, unpin := s.workspace.Pin()
	defer unpin()

	folders := ws.Folders()
	if ws.FileCount() == 0 {
		s.abort()
		return domain.ExportResult{}, domain.ErrNothingToExport
	}

	result := domain.ExportResult{
		ID:        id,
		StartedAt: started,
	}

	s.logger.Info("export started", "export_id", id, "files", ws.FileCount())

	data, entries, err := s.builder.Build(ctx, folders)
	if err != nil {
		s.logger.Error("archive build failed", "export_id", id, "error", err)
		result.Error = exportFailedMessage
		return s.finish(ctx, result), nil
	}
	result.Folders, result.Files = countGroups(entries), len(entries)
	result.Bytes = int64(len(data))

	s.setPhase(domain.ExportPhaseSaving)

	saved, err := sink.SaveArchive(ctx, s.sink, data, started)
	if err != nil {
		saved = sink.SaveResult{Error: err.Error()}
	}
	result.Success = saved.Success
	result.Path = saved.Path
	result.Error = saved.Error
	if !saved.Success {
		s.logger.Error("archive save failed", "export_id", id, "location", s.sink.Location(), "error", saved.Error)
	}

	return s.finish(ctx, result), nil
}

// SaveArchive saves an archive that was built elsewhere.
func (s *ExportService) SaveArchive(ctx context.Context, data []byte) (domain.ExportResult, error) {
	if len(data) == 0 {
		return domain.ExportResult{}, domain.ErrNoPayload
	}

	id, started, err := s.begin()
	if err != nil {
		return domain.ExportResult{}, err
	}
	ctx = context.WithoutCancel(ctx)
	s.setPhase(domain.ExportPhaseSaving)

	saved, err := sink.SaveArchive(ctx, s.sink, data, started)
	if err != nil {
		s.abort()
		return domain.ExportResult{}, err
	}

	result := domain.ExportResult{
		ID:        id,
		Success:   saved.Success,
		Path:      saved.Path,
		Error:     saved.Error,
		Bytes:     int64(len(data)),
		StartedAt: started,
	}
	if !saved.Success {
		s.logger.Error("archive save failed", "export_id", id, "error", saved.Error)
	}
	return s.finish(ctx, result), nil
}

// begin claims the single export slot.
func (s *ExportService) begin() (domain.ExportID, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Phase.Active() {
		return "", time.Time{}, domain.ErrExportInProgress
	}

	id := domain.ExportID("exp_" + uuid.New().String())
	started := s.now()
	s.status = domain.ExportStatus{
		Phase:     domain.ExportPhaseBuilding,
		ExportID:  id,
		StartedAt: &started,
		Last:      s.status.Last,
	}
	return id, started, nil
}

// abort gives the slot back without recording a result.
func (s *ExportService) abort() {
	s.mu.Lock()
	s.status = domain.ExportStatus{Phase: domain.ExportPhaseIdle, Last: s.status.Last}
	s.mu.Unlock()
}

func (s *ExportService) setPhase(phase domain.ExportPhase) {
	s.mu.Lock()
	s.status.Phase = phase
	s.mu.Unlock()
}

func (s *ExportService) finish(ctx context.Context, result domain.ExportResult) domain.ExportResult {
	duration := s.now().Sub(result.StartedAt)
	result.Duration = duration.Round(time.Millisecond).String()

	phase := domain.ExportPhaseCompleted
	if !result.Success {
		phase = domain.ExportPhaseFailed
	}

	s.mu.Lock()
	last := result
	s.status = domain.ExportStatus{Phase: phase, Last: &last}
	s.mu.Unlock()

	metrics.RecordExport(result.Success, result.Bytes, duration)

	if s.history != nil {
		if err := s.history.Record(ctx, result); err != nil {
			s.logger.Warn("failed to record export", "export_id", result.ID, "error", err)
		}
	}

	if result.Success {
		s.logger.Info("export completed",
			"export_id", result.ID,
			"path", result.Path,
			"files", result.Files,
			"duration", result.Duration,
		)
	}
	return result
}

func countGroups(entries []domain.ArchiveEntry) int {
	seen := make(map[string]bool)
	for _, e := range entries {
		seen[e.Group] = true
	}
	return len(seen)
}
