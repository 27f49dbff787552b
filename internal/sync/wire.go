package sync

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// wireEvent is one element of the request array: {id, type, op, attr}.
type wireEvent struct {
	ID   json.RawMessage `json:"id"`
	Type string          `json:"type"`
	Op   string          `json:"op"`
	Attr json.RawMessage `json:"attr"`
}

// DecodeBatch reads a JSON array of mutations. Numbers are decoded as int64
// when integral and float64 otherwise; attribute order is preserved in
// RawEvent.Keys. Malformed input yields ErrInvalidBatch.
func DecodeBatch(r io.Reader) ([]RawEvent, error) {
	var wire []wireEvent

	dec := json.NewDecoder(r)
	if err := dec.Decode(&wire); err != nil {
		return nil, &BatchError{Err: ErrInvalidBatch, Cause: err}
	}

	if dec.More() {
		return nil, &BatchError{Err: ErrInvalidBatch, Cause: errors.New("trailing data after batch")}
	}

	events := make([]RawEvent, 0, len(wire))

	for i, w := range wire {
		id, err := decodeID(w.ID)
		if err != nil {
			return nil, &BatchError{Err: ErrInvalidBatch, Type: w.Type, Cause: fmt.Errorf("item %d: %w", i, err)}
		}

		attrs, keys, err := decodeAttrs(w.Attr)
		if err != nil {
			return nil, &BatchError{Err: ErrInvalidBatch, Type: w.Type, ID: id, Cause: fmt.Errorf("item %d: %w", i, err)}
		}

		events = append(events, RawEvent{
			Type:  w.Type,
			ID:    id,
			Kind:  Kind(w.Op),
			Attrs: attrs,
			Keys:  keys,
		})
	}

	return events, nil
}

// decodeID accepts string and numeric ids.
func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var n json.Number

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	if err := dec.Decode(&n); err != nil {
		return "", fmt.Errorf("id must be a string or a number: %w", err)
	}

	return n.String(), nil
}

// decodeAttrs decodes the attr object keeping key order.
func decodeAttrs(raw json.RawMessage) (map[string]any, []string, error) {
	attrs := make(map[string]any)

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return attrs, nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, fmt.Errorf("attr: %w", err)
	}

	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, errors.New("attr must be an object")
	}

	var keys []string

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("attr: %w", err)
		}

		key, _ := tok.(string)

		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, nil, fmt.Errorf("attr %q: %w", key, err)
		}

		if _, dup := attrs[key]; !dup {
			keys = append(keys, key)
		}

		attrs[key] = normalizeNumbers(v)
	}

	return attrs, keys, nil
}

// normalizeNumbers replaces json.Number values with int64 or float64.
func normalizeNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}

		if f, err := x.Float64(); err == nil {
			return f
		}

		return x.String()
	case map[string]any:
		for k, val := range x {
			x[k] = normalizeNumbers(val)
		}

		return x
	case []any:
		for i, val := range x {
			x[i] = normalizeNumbers(val)
		}

		return x
	}

	return v
}
