package sync

import (
	"context"
	"slices"

	"github.com/tonimelisma/schema-api/internal/store"
)

// OperationLog collects the completed writes of one transaction. Create one
// per request and pass it to store.WithTx as an observer. Not safe for
// concurrent use.
type OperationLog struct {
	entries []*Operation
}

// NewOperationLog returns an empty log.
func NewOperationLog() *OperationLog {
	return &OperationLog{}
}

// Observe implements store.Observer.
func (l *OperationLog) Observe(_ context.Context, ch store.Change) {
	if op, ok := OperationFromChange(ch); ok {
		l.entries = append(l.entries, op)
	}
}

// Entries returns the logged operations, newest first, so the first entry
// for an entity carries its most recent snapshot.
func (l *OperationLog) Entries() []*Operation {
	out := slices.Clone(l.entries)
	slices.Reverse(out)

	return out
}

// Len returns the number of logged operations.
func (l *OperationLog) Len() int {
	return len(l.entries)
}
