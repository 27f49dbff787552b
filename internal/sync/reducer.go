package sync

import "fmt"

// Reduce folds raw events into one canonical operation per (type, id), in
// order of first appearance.
//
// Within a group:
//   - a group that starts with a create and ends with a delete never
//     touched the database and is dropped;
//   - attributes merge last-writer-wins;
//   - a delete sets the kind to delete and clears the attributes, a create
//     sets it to create, an update only sets it when nothing else has;
//   - a delete result never carries attributes.
//
// Reduce does not resolve types or load records; see Engine.
func Reduce(events []RawEvent) ([]*Operation, error) {
	var order []string

	groups := make(map[string][]RawEvent)

	for i, ev := range events {
		if ev.Type == "" || ev.ID == "" {
			return nil, &BatchError{
				Err: ErrInvalidBatch, Type: ev.Type, ID: ev.ID,
				Cause: fmt.Errorf("item %d: id and type are required", i),
			}
		}

		if !ev.Kind.Valid() {
			return nil, &BatchError{
				Err: ErrInvalidBatch, Type: ev.Type, ID: ev.ID,
				Cause: fmt.Errorf("item %d: unknown op %q", i, ev.Kind),
			}
		}

		key := ev.Type + "\x00" + ev.ID
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}

		groups[key] = append(groups[key], ev)
	}

	ops := make([]*Operation, 0, len(order))

	for _, key := range order {
		if op := fold(groups[key]); op != nil {
			ops = append(ops, op)
		}
	}

	return ops, nil
}

// fold reduces one group. It returns nil for a create-then-delete group.
func fold(evs []RawEvent) *Operation {
	if evs[0].Kind == KindCreate && evs[len(evs)-1].Kind == KindDelete {
		return nil
	}

	op := &Operation{
		Type:  evs[0].Type,
		ID:    evs[0].ID,
		Attrs: make(map[string]any),
	}

	for _, ev := range evs {
		for _, k := range ev.keys() {
			op.Attrs[k] = ev.Attrs[k]
		}

		switch ev.Kind {
		case KindDelete:
			op.Kind = KindDelete
			clear(op.Attrs)
		case KindCreate:
			op.Kind = KindCreate
		case KindUpdate:
			if op.Kind == "" {
				op.Kind = KindUpdate
			}
		}
	}

	if op.Kind == KindDelete {
		clear(op.Attrs)
	}

	return op
}
