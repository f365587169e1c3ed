package repository

import (
	"context"
	"sync"

	"github.com/iconidentify/dispatcher/internal/domain"
)

// DefaultHistorySize is how many results the in-memory history keeps.
const DefaultHistorySize = 100

// InMemoryExportHistory keeps the most recent results in a ring buffer.
type InMemoryExportHistory struct {
	mu      sync.RWMutex
	results []domain.ExportResult
	head    int
	count   int
}

// NewInMemoryExportHistory creates a history holding at most size results.
func NewInMemoryExportHistory(size int) *InMemoryExportHistory {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &InMemoryExportHistory{
		results: make([]domain.ExportResult, size),
	}
}

// Record appends a result, evicting the oldest when full.
func (h *InMemoryExportHistory) Record(ctx context.Context, result domain.ExportResult) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.results[h.head] = result
	h.head = (h.head + 1) % len(h.results)
	if h.count < len(h.results) {
		h.count++
	}
	return nil
}

// List returns up to limit results, newest first. A limit of 0 returns all.
func (h *InMemoryExportHistory) List(ctx context.Context, limit int) ([]domain.ExportResult, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := h.count
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.ExportResult, 0, n)
	for i := 0; i < n; i++ {
		idx := (h.head - 1 - i + len(h.results)) % len(h.results)
		out = append(out, h.results[idx])
	}
	return out, nil
}

// Close is a no-op.
func (h *InMemoryExportHistory) Close() error {
	return nil
}
