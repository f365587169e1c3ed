package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewUIHandler(t *testing.T) {
	handler := NewUIHandler()
	if handler == nil {
		t.Fatal("handler should not be nil")
	}
}

func TestUIHandler_Pages(t *testing.T) {
	handler := NewUIHandler()

	tests := []struct {
		name     string
		path     string
		serve    http.HandlerFunc
		contains string
	}{
		{name: "index", path: "/", serve: handler.Index, contains: "DISPATCHER"},
		{name: "terms", path: "/terms", serve: handler.Terms, contains: "利用規約"},
		{name: "privacy", path: "/privacy", serve: handler.Privacy, contains: "プライバシーポリシー"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()

			tt.serve(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
			}

			contentType := w.Header().Get("Content-Type")
			if contentType != "text/html; charset=utf-8" {
				t.Errorf("Content-Type = %q, want %q", contentType, "text/html; charset=utf-8")
			}

			body := w.Body.String()
			if !strings.Contains(body, "<!DOCTYPE html>") {
				t.Error("response should contain HTML content")
			}
			if !strings.Contains(body, tt.contains) {
				t.Errorf("response should contain %q", tt.contains)
			}
		})
	}
}
