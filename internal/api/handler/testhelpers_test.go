package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/iconidentify/dispatcher/internal/archive"
	"github.com/iconidentify/dispatcher/internal/domain"
	"github.com/iconidentify/dispatcher/internal/preview"
	"github.com/iconidentify/dispatcher/internal/repository"
	"github.com/iconidentify/dispatcher/internal/service"
	"github.com/iconidentify/dispatcher/internal/sink"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEnv wires real services over temporary directories.
type testEnv struct {
	workspace *service.WorkspaceService
	exports   *service.ExportService
	history   repository.ExportHistory
	store     *repository.UploadStore
	outputDir string
	tempDir   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		outputDir: t.TempDir(),
		tempDir:   t.TempDir(),
		history:   repository.NewInMemoryExportHistory(10),
	}
	env.workspace = service.NewWorkspaceService(
		domain.NewWorkspace(domain.DefaultFolderNames...),
		preview.NewRegistry(),
		testLogger(),
	)
	env.exports = service.NewExportService(
		env.workspace,
		archive.NewBuilder("mp4"),
		sink.NewDesktop(env.outputDir, testLogger()),
		env.history,
		testLogger(),
	)
	env.store = repository.NewUploadStore(env.tempDir, 1<<20)
	t.Cleanup(func() { env.workspace.Close() })
	return env
}

// addFile puts an in-memory file into the active folder.
func (e *testEnv) addFile(t *testing.T, name, data string) domain.FileRef {
	t.Helper()
	added, err := e.workspace.AddFiles(context.Background(), "", []domain.FileRef{{
		OriginalName: name,
		ContentType:  "video/mp4",
		Content:      repository.MemoryContent(data),
	}})
	if err != nil {
		t.Fatalf("AddFiles failed: %v", err)
	}
	return added[0]
}

// withURLParams attaches chi route parameters to a request.
func withURLParams(req *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// multipartRequest builds a request with one "file" part per name/content pair.
func multipartRequest(t *testing.T, target string, files ...string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for i := 0; i+1 < len(files); i += 2 {
		part, err := mw.CreateFormFile("file", files[i])
		if err != nil {
			t.Fatal(err)
		}
		part.Write([]byte(files[i+1]))
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// failingHistory fails every call.
type failingHistory struct{}

func (failingHistory) Record(context.Context, domain.ExportResult) error {
	return errors.New("database is locked")
}

func (failingHistory) List(context.Context, int) ([]domain.ExportResult, error) {
	return nil, errors.New("database is locked")
}

func (failingHistory) Close() error { return nil }
