package validate

import (
	"regexp"
	"strings"

	"github.com/tonimelisma/schema-api/internal/schema"
)

var (
	lengthRe = regexp.MustCompile(`\((\d+)\)`)
	scaleRe  = regexp.MustCompile(`\(\s*\d+\s*,\s*(\d+)\s*\)`)
)

var integerTypes = []string{"tinyint", "smallint", "mediumint", "bigint", "integer", "int"}

// ColumnRules maps a column's declared type to the rules its values must
// satisfy, without presence rules.
func ColumnRules(c schema.Column) []string {
	t := strings.ToLower(strings.TrimSpace(c.Type))
	name, _, _ := strings.Cut(t, "(")
	name = strings.TrimSpace(name)

	switch {
	case t == "tinyint(1)" || name == "boolean" || name == "bool":
		return []string{RuleBoolean}
	case hasPrefix(name, integerTypes...):
		return []string{RuleInteger}
	case name == "decimal" || name == "numeric":
		if m := scaleRe.FindStringSubmatch(t); m != nil {
			return []string{RuleDecimal + ":0," + m[1]}
		}

		return []string{RuleNumeric}
	case hasPrefix(name, "float", "double", "real"):
		return []string{RuleNumeric}
	case name == "date":
		return []string{RuleDate}
	case strings.HasPrefix(name, "time") && !strings.HasPrefix(name, "timestamp"):
		return []string{RuleDateFormat + ":H:i:s"}
	case name == "datetime" || strings.Contains(t, "timestamp"):
		return []string{RuleDate}
	case strings.Contains(t, "json"):
		return []string{RuleArray}
	case strings.Contains(t, "blob") || name == "binary" || name == "varbinary" || name == "bytea":
		return []string{RuleString}
	}

	rules := []string{RuleString}

	if m := lengthRe.FindStringSubmatch(t); m != nil {
		if strings.HasPrefix(t, "char(") {
			rules = append(rules, RuleSize+":"+m[1])
		} else {
			rules = append(rules, RuleMax+":"+m[1])
		}
	}

	return rules
}

// SchemaRules derives the rules of every client-writable column of e for
// ability. On create, non-nullable columns are required, database default
// or not; otherwise every field is optional and nullable where the column
// is.
func SchemaRules(e *schema.Entity, ability string) map[string]string {
	rules := make(map[string]string)

	for _, c := range e.Columns {
		if !e.IsFillable(c.Name) {
			continue
		}

		set := ColumnRules(c)

		if ability == "create" && !c.Nullable {
			set = append([]string{RuleRequired}, set...)
		} else {
			if c.Nullable {
				set = append([]string{RuleNullable}, set...)
			}

			set = append([]string{RuleSometimes}, set...)
		}

		rules[c.Name] = strings.Join(set, "|")
	}

	return rules
}

func hasPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}

	return false
}
