package tabular

import (
	"sort"
	"strings"
	"sync"
)

// GeneralSlot is the registry key for the fallback source without a
// category of its own.
const GeneralSlot = "general"

// Registry maps category names to raw tabular text blobs uploaded by
// the admin. It is the single source of truth for uploaded data; the
// loader consumes it lazily.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]string)}
}

// Set stores (or replaces) the tabular text for a category.
// Callers must invalidate the loader afterwards.
func (r *Registry) Set(category, text string) {
	category = strings.TrimSpace(category)
	if category == "" {
		return
	}
	r.mu.Lock()
	r.sources[category] = text
	r.mu.Unlock()
}

// Delete removes a category's source.
func (r *Registry) Delete(category string) {
	r.mu.Lock()
	delete(r.sources, strings.TrimSpace(category))
	r.mu.Unlock()
}

// Categories returns the category names with non-empty text, sorted,
// excluding the general fallback slot.
func (r *Registry) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.sources))
	for name, text := range r.sources {
		if name == GeneralSlot || strings.TrimSpace(text) == "" {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Text returns the raw blob for a category, or "".
func (r *Registry) Text(category string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[category]
}

// General returns the fallback blob, or "".
func (r *Registry) General() string {
	return r.Text(GeneralSlot)
}
