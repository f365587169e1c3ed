package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/iconidentify/dispatcher/internal/api/handler"
	"github.com/iconidentify/dispatcher/internal/archive"
	"github.com/iconidentify/dispatcher/internal/domain"
	"github.com/iconidentify/dispatcher/internal/preview"
	"github.com/iconidentify/dispatcher/internal/repository"
	"github.com/iconidentify/dispatcher/internal/service"
	"github.com/iconidentify/dispatcher/internal/sink"
)

func newTestServer(t *testing.T, apiKey string) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tempDir, outputDir := t.TempDir(), t.TempDir()

	history := repository.NewInMemoryExportHistory(10)
	ws := service.NewWorkspaceService(domain.NewWorkspace(domain.DefaultFolderNames...), preview.NewRegistry(), logger)
	exports := service.NewExportService(ws, archive.NewBuilder("mp4"), sink.NewDesktop(outputDir, logger), history, logger)
	t.Cleanup(func() { ws.Close() })

	r := NewRouter(
		handler.NewWorkspaceHandler(ws, repository.NewUploadStore(tempDir, 0), logger),
		handler.NewExportHandler(exports, 0, logger),
		handler.NewPreviewHandler(ws, logger),
		handler.NewHealthHandler(ws, exports, history, tempDir, outputDir),
		handler.NewUIHandler(),
		logger,
		apiKey,
	)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestRouter_PublicRoutes(t *testing.T) {
	srv := newTestServer(t, "secret")

	for _, path := range []string{"/health", "/ready", "/", "/terms", "/privacy", "/metrics", "//health"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want %d", path, resp.StatusCode, http.StatusOK)
		}
	}
}

func TestRouter_APIRequiresKey(t *testing.T) {
	srv := newTestServer(t, "secret")

	resp, err := http.Get(srv.URL + "/api/v1/workspace")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status without key = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/workspace", nil)
	req.Header.Set("X-API-Key", "secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status with key = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestRouter_FolderLifecycle(t *testing.T) {
	srv := newTestServer(t, "")

	do := func(method, path, body string) *http.Response {
		t.Helper()
		req, _ := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", method, path, err)
		}
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	resp := do(http.MethodPost, "/api/v1/folders", `{"name":"Bridge"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var folder handler.FolderResponse
	json.NewDecoder(resp.Body).Decode(&folder)

	resp = do(http.MethodPatch, "/api/v1/folders/"+folder.ID, `{"name":"Outro"}`)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("rename status = %d", resp.StatusCode)
	}

	resp = do(http.MethodDelete, "/api/v1/folders/"+folder.ID, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d", resp.StatusCode)
	}

	resp = do(http.MethodPost, "/api/v1/export", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty export status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	resp = do(http.MethodGet, "/preview/pv_unknown", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown preview status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}
