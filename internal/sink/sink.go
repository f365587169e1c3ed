// Package sink persists finished archives outside the process.
package sink

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iconidentify/dispatcher/internal/domain"
)

// NamePrefix starts every generated archive name.
const NamePrefix = "mv_footage_"

// Sink stores archive bytes under a name and reports where they went.
type Sink interface {
	// Save writes data under name and returns the resulting location.
	Save(ctx context.Context, name string, data []byte) (string, error)

	// Location describes where archives end up, for logs and status.
	Location() string
}

// ArchiveName generates the timestamped archive name for t. The timestamp is
// the UTC ISO-8601 form truncated to seconds with ':' and '.' replaced by '-'.
func ArchiveName(t time.Time) string {
	ts := t.UTC().Format("2006-01-02T15:04:05")
	ts = strings.NewReplacer(":", "-", ".", "-").Replace(ts)
	return NamePrefix + ts + ".zip"
}

// SaveResult is the value form of a save attempt.
type SaveResult struct {
	Success bool   `json:"success"`
	Path    string `json:"path,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SaveArchive writes data to s under a name derived from now, converting any
// failure into a SaveResult. An empty payload is rejected with
// domain.ErrNoPayload rather than reported as a result.
func SaveArchive(ctx context.Context, s Sink, data []byte, now time.Time) (SaveResult, error) {
	if len(data) == 0 {
		return SaveResult{}, domain.ErrNoPayload
	}
	path, err := s.Save(ctx, ArchiveName(now), data)
	if err != nil {
		return SaveResult{Success: false, Error: err.Error()}, nil
	}
	return SaveResult{Success: true, Path: path}, nil
}

func checkPayload(name string, data []byte) error {
	if len(data) == 0 {
		return domain.ErrNoPayload
	}
	if name == "" || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid archive name %q", name)
	}
	return nil
}
