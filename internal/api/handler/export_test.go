package handler

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/iconidentify/dispatcher/internal/domain"
)

func TestExportHandler_Plan(t *testing.T) {
	env := newTestEnv(t)
	h := NewExportHandler(env.exports, 0, testLogger())
	env.addFile(t, "intro.MOV", "12345")
	env.addFile(t, "noext", "678")

	w := httptest.NewRecorder()
	h.Plan(w, httptest.NewRequest(http.MethodGet, "/api/v1/export/plan", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp PlanResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Files != 2 || resp.Bytes != 8 {
		t.Errorf("files = %d bytes = %d", resp.Files, resp.Bytes)
	}
	if resp.Entries[0].Path != "A_Melo/A_Melo_001.MOV" {
		t.Errorf("path[0] = %q", resp.Entries[0].Path)
	}
	if resp.Entries[1].Path != "A_Melo/A_Melo_002.mp4" {
		t.Errorf("path[1] = %q", resp.Entries[1].Path)
	}
}

func TestExportHandler_Plan_Empty(t *testing.T) {
	env := newTestEnv(t)
	h := NewExportHandler(env.exports, 0, testLogger())

	w := httptest.NewRecorder()
	h.Plan(w, httptest.NewRequest(http.MethodGet, "/api/v1/export/plan", nil))

	if !strings.Contains(w.Body.String(), `"entries":[]`) {
		t.Errorf("body = %s, want empty entries array", w.Body.String())
	}
}

func TestExportHandler_Export(t *testing.T) {
	env := newTestEnv(t)
	h := NewExportHandler(env.exports, 0, testLogger())
	env.addFile(t, "a.mp4", "first")
	env.addFile(t, "b.mov", "second")

	w := httptest.NewRecorder()
	h.Export(w, httptest.NewRequest(http.MethodPost, "/api/v1/export", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	var result domain.ExportResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !result.Success {
		t.Fatalf("export failed: %s", result.Error)
	}
	if filepath.Dir(result.Path) != env.outputDir {
		t.Errorf("path = %q, want inside %q", result.Path, env.outputDir)
	}
	if !strings.HasPrefix(filepath.Base(result.Path), "mv_footage_") {
		t.Errorf("archive name = %q", filepath.Base(result.Path))
	}

	data, err := os.ReadFile(result.Path)
	if err != nil {
		t.Fatalf("archive not written: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("invalid zip: %v", err)
	}
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	want := []string{"A_Melo/", "A_Melo/A_Melo_001.mp4", "A_Melo/A_Melo_002.mov"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("entries = %v, want %v", names, want)
	}

	// History and status reflect the export
	w = httptest.NewRecorder()
	h.History(w, httptest.NewRequest(http.MethodGet, "/api/v1/exports", nil))
	var history []domain.ExportResult
	json.NewDecoder(w.Body).Decode(&history)
	if len(history) != 1 || history[0].ID != result.ID {
		t.Errorf("history = %+v", history)
	}

	w = httptest.NewRecorder()
	h.Status(w, httptest.NewRequest(http.MethodGet, "/api/v1/export/status", nil))
	var status domain.ExportStatus
	json.NewDecoder(w.Body).Decode(&status)
	if status.Phase != domain.ExportPhaseCompleted {
		t.Errorf("phase = %q, want completed", status.Phase)
	}
}

func TestExportHandler_Export_NothingToExport(t *testing.T) {
	env := newTestEnv(t)
	h := NewExportHandler(env.exports, 0, testLogger())

	w := httptest.NewRecorder()
	h.Export(w, httptest.NewRequest(http.MethodPost, "/api/v1/export", nil))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestExportHandler_History_InvalidLimit(t *testing.T) {
	env := newTestEnv(t)
	h := NewExportHandler(env.exports, 0, testLogger())

	for _, limit := range []string{"abc", "-1"} {
		w := httptest.NewRecorder()
		h.History(w, httptest.NewRequest(http.MethodGet, "/api/v1/exports?limit="+limit, nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("limit=%s status = %d, want %d", limit, w.Code, http.StatusBadRequest)
		}
	}

	w := httptest.NewRecorder()
	h.History(w, httptest.NewRequest(http.MethodGet, "/api/v1/exports", nil))
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("empty history body = %q, want []", w.Body.String())
	}
}

func TestExportHandler_SaveArchive(t *testing.T) {
	env := newTestEnv(t)
	h := NewExportHandler(env.exports, 1024, testLogger())

	w := httptest.NewRecorder()
	h.SaveArchive(w, multipartRequest(t, "/api/v1/archives", "bundle.zip", "PK prebuilt"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	var result domain.ExportResult
	json.NewDecoder(w.Body).Decode(&result)
	if !result.Success {
		t.Fatalf("save failed: %s", result.Error)
	}
	data, _ := os.ReadFile(result.Path)
	if string(data) != "PK prebuilt" {
		t.Errorf("saved = %q", data)
	}
}

func TestExportHandler_SaveArchive_Errors(t *testing.T) {
	tests := []struct {
		name   string
		req    func(t *testing.T) *http.Request
		status int
	}{
		{
			name: "missing file",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/api/v1/archives")
			},
			status: http.StatusBadRequest,
		},
		{
			name: "empty file",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/api/v1/archives", "a.zip", "")
			},
			status: http.StatusBadRequest,
		},
		{
			name: "not multipart",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/v1/archives", strings.NewReader("zip"))
			},
			status: http.StatusBadRequest,
		},
		{
			name: "too large",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/api/v1/archives", "a.zip", strings.Repeat("x", 4096))
			},
			status: http.StatusRequestEntityTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			h := NewExportHandler(env.exports, 1024, testLogger())

			w := httptest.NewRecorder()
			h.SaveArchive(w, tt.req(t))
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}
