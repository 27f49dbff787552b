package store

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tonimelisma/schema-api/internal/schema"
)

// TimeLayout is the storage format for managed timestamps. It is fixed
// width in UTC, so lexical order equals chronological order and SQL range
// predicates on the text columns are correct.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Accepted input layouts for ParseTime, tried in order.
var parseLayouts = []string{
	TimeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// FormatTime renders t in the storage format.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a timestamp in any of the accepted layouts. Values
// without a zone are taken as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("store: unrecognized timestamp %q", s)
}

// isJSONColumn reports whether values of the column are JSON documents.
func isJSONColumn(c schema.Column) bool {
	return c.Type == "json" || c.Type == "jsonb"
}

func isBlobColumn(c schema.Column) bool {
	return c.Type == "blob" || strings.HasPrefix(c.Type, "binary") || strings.HasPrefix(c.Type, "varbinary")
}

// fromDB normalizes a scanned driver value for the given column.
func fromDB(c schema.Column, v any) any {
	switch x := v.(type) {
	case []byte:
		if isBlobColumn(c) {
			return x
		}

		v = string(x)
	case time.Time:
		return FormatTime(x)
	}

	if s, ok := v.(string); ok && isJSONColumn(c) {
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err == nil {
			return decoded
		}
	}

	return v
}

// toDB converts an attribute value into something the driver can bind.
func toDB(v any) (any, error) {
	switch x := v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return nil, fmt.Errorf("store: encoding json value: %w", err)
		}

		return string(b), nil
	case time.Time:
		return FormatTime(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}

		return x.Float64()
	}

	return v, nil
}

// Equivalent reports whether two attribute values are the same for dirty
// tracking purposes: numbers compare by value regardless of their Go type
// or string spelling, booleans compare against 0/1, and structured values
// compare by their JSON encoding.
func Equivalent(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			return fa == fb || (math.IsNaN(fa) && math.IsNaN(fb))
		}
	}

	switch a.(type) {
	case map[string]any, []any:
		ja, errA := json.Marshal(a)
		jb, errB := json.Marshal(b)

		return errA == nil && errB == nil && string(ja) == string(jb)
	}

	return fmt.Sprint(a) == fmt.Sprint(b)
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case bool:
		if x {
			return 1, true
		}

		return 0, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}

	return 0, false
}

// quote renders an SQL identifier.
func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func quoteAll(idents []string) string {
	q := make([]string, len(idents))
	for i, id := range idents {
		q[i] = quote(id)
	}

	return strings.Join(q, ", ")
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}

	return strings.Repeat("?, ", n-1) + "?"
}
