package store

import (
	"context"
	"sync"
)

// Event is a record lifecycle event.
type Event int

// Lifecycle events. The -ing events fire before the write and may abort it
// by returning an error; the -ed events fire after it.
const (
	Creating Event = iota
	Created
	Updating
	Updated
	Deleting
	Deleted
	Restoring
	Restored
)

var eventNames = [...]string{
	Creating:  "creating",
	Created:   "created",
	Updating:  "updating",
	Updated:   "updated",
	Deleting:  "deleting",
	Deleted:   "deleted",
	Restoring: "restoring",
	Restored:  "restored",
}

func (e Event) String() string {
	if int(e) < len(eventNames) {
		return eventNames[e]
	}

	return "unknown"
}

// completed reports whether observers are told about the event.
func (e Event) completed() bool {
	switch e {
	case Created, Updated, Deleted, Restored:
		return true
	}

	return false
}

// HookFunc runs inside the write transaction. Writes made through repo are
// part of the same transaction and fire their own events.
type HookFunc func(ctx context.Context, repo *Repo, rec *Record) error

// Hooks is the process-wide registry of lifecycle hooks.
type Hooks struct {
	mu     sync.RWMutex
	byType map[string]map[Event][]HookFunc
	global map[Event][]HookFunc
}

func newHooks() *Hooks {
	return &Hooks{
		byType: make(map[string]map[Event][]HookFunc),
		global: make(map[Event][]HookFunc),
	}
}

// On registers a hook for one entity type.
func (h *Hooks) On(entityType string, ev Event, fn HookFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.byType[entityType] == nil {
		h.byType[entityType] = make(map[Event][]HookFunc)
	}

	h.byType[entityType][ev] = append(h.byType[entityType][ev], fn)
}

// OnAny registers a hook for every entity type. Type-specific hooks run
// first.
func (h *Hooks) OnAny(ev Event, fn HookFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.global[ev] = append(h.global[ev], fn)
}

func (h *Hooks) handlers(entityType string, ev Event) []HookFunc {
	h.mu.RLock()
	defer h.mu.RUnlock()

	typed := h.byType[entityType][ev]
	out := make([]HookFunc, 0, len(typed)+len(h.global[ev]))
	out = append(out, typed...)

	return append(out, h.global[ev]...)
}

// Change is a completed lifecycle event with a snapshot of the record as it
// was right after the write.
type Change struct {
	Event  Event
	Record *Record
}

// Observer receives completed lifecycle events.
type Observer interface {
	Observe(ctx context.Context, ch Change)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ch Change)

// Observe calls f.
func (f ObserverFunc) Observe(ctx context.Context, ch Change) {
	f(ctx, ch)
}
