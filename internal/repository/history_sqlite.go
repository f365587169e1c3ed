package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/iconidentify/dispatcher/internal/domain"
)

// NewExportHistory opens a SQLite history at path, or an in-memory ring of
// size results when path is empty.
func NewExportHistory(path string, size int) (ExportHistory, error) {
	if path == "" {
		return NewInMemoryExportHistory(size), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	return NewSQLiteExportHistory(path)
}

// SQLiteExportHistory persists export results so they survive restarts.
type SQLiteExportHistory struct {
	db *sql.DB
}

// NewSQLiteExportHistory opens (or creates) the history database at path.
func NewSQLiteExportHistory(path string) (*SQLiteExportHistory, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases consistent.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS exports (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL,
			success INTEGER NOT NULL,
			path TEXT,
			error TEXT,
			folders INTEGER NOT NULL,
			files INTEGER NOT NULL,
			bytes INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			duration TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_exports_started_at ON exports(started_at);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQLiteExportHistory{db: db}, nil
}

// Record inserts a result.
func (h *SQLiteExportHistory) Record(ctx context.Context, r domain.ExportResult) error {
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO exports (id, success, path, error, folders, files, bytes, started_at, duration)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, string(r.ID), r.Success, r.Path, r.Error, r.Folders, r.Files, r.Bytes,
		r.StartedAt.UTC().Format(time.RFC3339Nano), r.Duration)
	if err != nil {
		return fmt.Errorf("insert export %s: %w", r.ID, err)
	}
	return nil
}

// List returns up to limit results, newest first. A limit of 0 returns all.
func (h *SQLiteExportHistory) List(ctx context.Context, limit int) ([]domain.ExportResult, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, success, path, error, folders, files, bytes, started_at, duration
		FROM exports
		ORDER BY seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query exports: %w", err)
	}
	defer rows.Close()

	var results []domain.ExportResult
	for rows.Next() {
		var (
			r         domain.ExportResult
			id        string
			path      sql.NullString
			errMsg    sql.NullString
			startedAt string
			duration  sql.NullString
		)
		if err := rows.Scan(&id, &r.Success, &path, &errMsg, &r.Folders, &r.Files, &r.Bytes, &startedAt, &duration); err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		r.ID = domain.ExportID(id)
		r.Path = path.String
		r.Error = errMsg.String
		r.Duration = duration.String
		if t, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
			r.StartedAt = t
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Close closes the database.
func (h *SQLiteExportHistory) Close() error {
	return h.db.Close()
}
