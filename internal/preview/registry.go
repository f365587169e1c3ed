// Package preview hands out short-lived handles that let the UI stream a
// file's content for playback.
package preview

import (
	"sync"

	"github.com/google/uuid"

	"github.com/iconidentify/dispatcher/internal/domain"
)

type entry struct {
	content     domain.Content
	contentType string
	name        string
}

// Registry maps preview handles to content.
type Registry struct {
	mu      sync.RWMutex
	entries map[domain.PreviewHandle]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[domain.PreviewHandle]entry)}
}

// Acquire registers content and returns a new handle for it.
func (r *Registry) Acquire(name, contentType string, content domain.Content) domain.PreviewHandle {
	h := domain.PreviewHandle("pv_" + uuid.New().String())

	r.mu.Lock()
	r.entries[h] = entry{content: content, contentType: contentType, name: name}
	r.mu.Unlock()

	return h
}

// Release invalidates a handle. Unknown handles are ignored.
func (r *Registry) Release(h domain.PreviewHandle) {
	r.mu.Lock()
	delete(r.entries, h)
	r.mu.Unlock()
}

// ReleaseAll invalidates every handle.
func (r *Registry) ReleaseAll() {
	r.mu.Lock()
	r.entries = make(map[domain.PreviewHandle]entry)
	r.mu.Unlock()
}

// Lookup returns the content behind a handle.
func (r *Registry) Lookup(h domain.PreviewHandle) (name, contentType string, content domain.Content, err error) {
	r.mu.RLock()
	e, ok := r.entries[h]
	r.mu.RUnlock()

	if !ok {
		return "", "", nil, domain.ErrPreviewNotFound
	}
	return e.name, e.contentType, e.content, nil
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
