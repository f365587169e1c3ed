// Package ui provides the embedded web pages served by the dispatcher.
package ui

import (
	_ "embed"
)

// IndexHTML is the folder board: sidebar of folders, a grid of files for
// the active folder, and the export button.
//
//go:embed index.html
var IndexHTML []byte

// TermsHTML is the terms of use page.
//
//go:embed terms.html
var TermsHTML []byte

// PrivacyHTML is the privacy policy page.
//
//go:embed privacy.html
var PrivacyHTML []byte
