package schema

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// TableToType converts a table name to its API type name: a lower-case
// ASCII slug with dashes, e.g. "order_rows" -> "order-rows".
func TableToType(table string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

	folded, _, err := transform.String(t, table)
	if err != nil {
		folded = table
	}

	var b strings.Builder

	dash := false

	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}

			dash = false

			b.WriteRune(r)

			continue
		}

		dash = true
	}

	return b.String()
}

// TypeToTable converts an API type name to its conventional table name:
// snake case with dashes turned into underscores, e.g. "order-rows" and
// "OrderRows" -> "order_rows".
func TypeToTable(typ string) string {
	var b strings.Builder

	rs := []rune(typ)
	for i, r := range rs {
		switch {
		case r == '-' || r == ' ':
			b.WriteByte('_')
		case unicode.IsUpper(r):
			if i > 0 && (unicode.IsLower(rs[i-1]) || unicode.IsDigit(rs[i-1])) {
				b.WriteByte('_')
			}

			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}

	return b.String()
}

// singular strips a plural suffix from a table name for key conventions
// ("categories" -> "category", "posts" -> "post").
func singular(table string) string {
	switch {
	case strings.HasSuffix(table, "ies"):
		return strings.TrimSuffix(table, "ies") + "y"
	case strings.HasSuffix(table, "ss"):
		return table
	case strings.HasSuffix(table, "s"):
		return strings.TrimSuffix(table, "s")
	}

	return table
}
