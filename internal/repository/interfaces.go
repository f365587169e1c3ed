package repository

import (
	"context"
	"io"

	"github.com/iconidentify/dispatcher/internal/domain"
)

// ExportHistory records the outcome of every export attempt.
type ExportHistory interface {
	// Record appends a result.
	Record(ctx context.Context, result domain.ExportResult) error

	// List returns the most recent results, newest first.
	List(ctx context.Context, limit int) ([]domain.ExportResult, error)

	// Close releases any underlying resources.
	Close() error
}

// ContentStore turns incoming payloads into content the model can reference.
type ContentStore interface {
	// Put stores r under a name derived from originalName.
	Put(ctx context.Context, originalName string, r io.Reader) (domain.Content, error)
}
