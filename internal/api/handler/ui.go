package handler

import (
	"net/http"

	"github.com/iconidentify/dispatcher/pkg/ui"
)

// UIHandler serves the web UI.
type UIHandler struct{}

// NewUIHandler creates a new UI handler.
func NewUIHandler() *UIHandler {
	return &UIHandler{}
}

// Index serves the folder board.
func (h *UIHandler) Index(w http.ResponseWriter, r *http.Request) {
	serveHTML(w, ui.IndexHTML)
}

// Terms serves the terms of use page.
func (h *UIHandler) Terms(w http.ResponseWriter, r *http.Request) {
	serveHTML(w, ui.TermsHTML)
}

// Privacy serves the privacy policy page.
func (h *UIHandler) Privacy(w http.ResponseWriter, r *http.Request) {
	serveHTML(w, ui.PrivacyHTML)
}

func serveHTML(w http.ResponseWriter, page []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}
