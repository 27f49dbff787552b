package sync

// MergeExtras combines the explicit operations of a batch with the side
// effects observed while persisting it. The extras are expected newest
// first (see OperationLog).
//
// Extras on an entity the batch addressed explicitly are dropped. The rest
// collapse to one operation per entity, in order of first appearance: the
// first entry seen supplies the record snapshot and the kind is the
// strongest seen (Delete, then Create, then Update). The result is the
// explicit operations followed by the collapsed extras.
func MergeExtras(explicit, extras []*Operation) []*Operation {
	addressed := make(map[string]bool, len(explicit))
	for _, op := range explicit {
		addressed[op.Key()] = true
	}

	var order []string

	merged := make(map[string]*Operation)

	for _, x := range extras {
		key := x.Key()
		if addressed[key] {
			continue
		}

		base, ok := merged[key]
		if !ok {
			cp := *x
			merged[key] = &cp
			order = append(order, key)

			continue
		}

		if x.Kind.rank() > base.Kind.rank() {
			base.Kind = x.Kind
		}
	}

	out := make([]*Operation, 0, len(explicit)+len(order))
	out = append(out, explicit...)

	for _, key := range order {
		op := merged[key]
		if op.Kind == KindDelete {
			op.Attrs = nil
		}

		out = append(out, op)
	}

	return out
}
