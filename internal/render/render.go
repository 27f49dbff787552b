// Package render turns stored records into the attribute maps clients
// receive.
package render

import (
	"sync"

	"github.com/tonimelisma/schema-api/internal/store"
)

// Renderer renders one record.
type Renderer interface {
	Render(rec *store.Record) map[string]any
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(rec *store.Record) map[string]any

// Render implements Renderer.
func (f RendererFunc) Render(rec *store.Record) map[string]any {
	return f(rec)
}

// Raw dumps every attribute except the entity's hidden columns.
var Raw = RendererFunc(func(rec *store.Record) map[string]any {
	attrs := rec.Attributes()

	for _, col := range rec.Entity().Hidden {
		delete(attrs, col)
	}

	return attrs
})

// Registry picks a renderer per entity type and falls back to Raw.
type Registry struct {
	mu     sync.RWMutex
	byType map[string]Renderer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byType: make(map[string]Renderer)}
}

// Register sets the renderer for an entity type.
func (r *Registry) Register(entityType string, renderer Renderer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byType[entityType] = renderer
}

// Render renders rec with its type's renderer. A renderer that returns nil
// falls back to Raw.
func (r *Registry) Render(rec *store.Record) map[string]any {
	r.mu.RLock()
	renderer, ok := r.byType[rec.Entity().Type]
	r.mu.RUnlock()

	if ok {
		if attrs := renderer.Render(rec); attrs != nil {
			return attrs
		}
	}

	return Raw.Render(rec)
}
