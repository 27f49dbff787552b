// Package sync implements the change-synchronization pipeline: a batch of
// raw client mutations is reduced to one canonical operation per entity,
// authorized, validated, persisted in a single transaction with cascades
// and business hooks, and merged with every side-effect write into the
// list of operations that the client and observers receive.
package sync

import (
	"github.com/tonimelisma/schema-api/internal/schema"
	"github.com/tonimelisma/schema-api/internal/store"
)

// Kind is a mutation kind. The wire form is the single letter.
type Kind string

// Mutation kinds.
const (
	KindCreate Kind = "C"
	KindUpdate Kind = "U"
	KindDelete Kind = "D"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindCreate, KindUpdate, KindDelete:
		return true
	}

	return false
}

// Ability returns the authorization and validation ability for the kind.
func (k Kind) Ability() string {
	switch k {
	case KindCreate:
		return "create"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	}

	return ""
}

// rank orders kinds for merging side-effect operations:
// Delete beats Create beats Update.
func (k Kind) rank() int {
	switch k {
	case KindDelete:
		return 3
	case KindCreate:
		return 2
	case KindUpdate:
		return 1
	}

	return 0
}

// RawEvent is one client mutation as received. Keys keeps the attribute
// names in the order the client sent them.
type RawEvent struct {
	Type  string
	ID    string
	Kind  Kind
	Attrs map[string]any
	Keys  []string
}

// keys returns the attribute names in client order.
func (e RawEvent) keys() []string {
	if len(e.Keys) == len(e.Attrs) {
		return e.Keys
	}

	out := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		out = append(out, k)
	}

	return out
}

// Operation is one canonical mutation of one entity: either a reduced
// client request or a side effect observed while persisting.
type Operation struct {
	Type   string
	ID     string
	Kind   Kind
	Attrs  map[string]any
	Entity *schema.Entity
	Record *store.Record

	// restore marks a create addressed to a soft-deleted row.
	restore bool
}

// Key identifies the entity the operation applies to.
func (o *Operation) Key() string {
	typ := o.Type
	if o.Entity != nil {
		typ = o.Entity.Type
	}

	return typ + "\x00" + o.ID
}

// AttrRenderer renders a record for output.
type AttrRenderer interface {
	Render(rec *store.Record) map[string]any
}

// Payload is the wire form of an operation.
type Payload struct {
	ID   string         `json:"id"`
	Type string         `json:"type"`
	Op   Kind           `json:"op"`
	Attr map[string]any `json:"attr"`
}

// Payload renders the operation. Deletes carry no attributes.
func (o *Operation) Payload(r AttrRenderer) Payload {
	attr := map[string]any{}

	switch {
	case o.Kind == KindDelete:
	case o.Record != nil:
		attr = r.Render(o.Record)
	case o.Attrs != nil:
		attr = o.Attrs
	}

	return Payload{ID: o.ID, Type: o.Type, Op: o.Kind, Attr: attr}
}

// OperationFromChange converts a completed store write into an operation.
// A restore counts as a create.
func OperationFromChange(ch store.Change) (*Operation, bool) {
	var kind Kind

	switch ch.Event {
	case store.Created, store.Restored:
		kind = KindCreate
	case store.Updated:
		kind = KindUpdate
	case store.Deleted:
		kind = KindDelete
	default:
		return nil, false
	}

	e := ch.Record.Entity()

	return &Operation{
		Type:   e.Type,
		ID:     ch.Record.Key(),
		Kind:   kind,
		Entity: e,
		Record: ch.Record,
	}, true
}
