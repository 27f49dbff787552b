package validate

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Rule names understood by the validator.
const (
	RuleRequired   = "required"
	RuleSometimes  = "sometimes"
	RuleNullable   = "nullable"
	RuleString     = "string"
	RuleInteger    = "integer"
	RuleNumeric    = "numeric"
	RuleBoolean    = "boolean"
	RuleArray      = "array"
	RuleDate       = "date"
	RuleDateFormat = "date_format"
	RuleDecimal    = "decimal"
	RuleMax        = "max"
	RuleMin        = "min"
	RuleSize       = "size"
	RuleIn         = "in"
	RuleEmail      = "email"
	RuleUUID       = "uuid"
)

// ErrInvalidRule is returned for rule strings that cannot be parsed.
var ErrInvalidRule = errors.New("validate: invalid rule")

// params is the number of parameters each rule takes: 0 none, 1 exactly
// one, -1 one or more.
var params = map[string]int{
	RuleRequired:   0,
	RuleSometimes:  0,
	RuleNullable:   0,
	RuleString:     0,
	RuleInteger:    0,
	RuleNumeric:    0,
	RuleBoolean:    0,
	RuleArray:      0,
	RuleDate:       0,
	RuleDateFormat: 1,
	RuleDecimal:    -1,
	RuleMax:        1,
	RuleMin:        1,
	RuleSize:       1,
	RuleIn:         -1,
	RuleEmail:      0,
	RuleUUID:       0,
}

type rule struct {
	name   string
	params []string
	// num holds numeric parameters of max, min, size and decimal.
	num []float64
	// tag is the validator tag that checks the rule; empty for presence
	// rules.
	tag string
}

// fieldRules is the compiled rule list of one field.
type fieldRules struct {
	source string
	rules  []rule
}

// parseRules compiles a pipe-separated rule string such as
// "required|string|max:255".
func parseRules(s string) (fieldRules, error) {
	fr := fieldRules{source: s}

	for _, part := range strings.Split(s, "|") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, arg, hasArg := strings.Cut(part, ":")

		want, ok := params[name]
		if !ok {
			return fieldRules{}, fmt.Errorf("%w: unknown rule %q", ErrInvalidRule, name)
		}

		r := rule{name: name}

		if hasArg {
			if name == RuleDateFormat {
				r.params = []string{arg}
			} else {
				r.params = strings.Split(arg, ",")
			}
		}

		switch {
		case want == 0 && len(r.params) > 0:
			return fieldRules{}, fmt.Errorf("%w: %s takes no parameters", ErrInvalidRule, name)
		case want == 1 && len(r.params) != 1:
			return fieldRules{}, fmt.Errorf("%w: %s takes one parameter", ErrInvalidRule, name)
		case want == -1 && len(r.params) == 0:
			return fieldRules{}, fmt.Errorf("%w: %s needs parameters", ErrInvalidRule, name)
		case name == RuleDecimal && len(r.params) > 2:
			return fieldRules{}, fmt.Errorf("%w: decimal takes one or two parameters", ErrInvalidRule)
		}

		if name == RuleMax || name == RuleMin || name == RuleSize || name == RuleDecimal {
			for _, p := range r.params {
				n, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
				if err != nil {
					return fieldRules{}, fmt.Errorf("%w: %s parameter %q is not a number", ErrInvalidRule, name, p)
				}

				r.num = append(r.num, n)
			}
		}

		tag, err := r.validatorTag()
		if err != nil {
			return fieldRules{}, err
		}

		r.tag = tag
		fr.rules = append(fr.rules, r)
	}

	return fr, nil
}

func (fr fieldRules) has(name string) bool {
	return slices.ContainsFunc(fr.rules, func(r rule) bool { return r.name == name })
}

// numeric reports whether size rules compare the value itself rather than
// its length.
func (fr fieldRules) numeric() bool {
	return fr.has(RuleInteger) || fr.has(RuleNumeric) || fr.has(RuleDecimal)
}

// check returns the failure messages for one field. Presence rules are
// decided here because a map key that is absent and one that holds a zero
// value look the same to a tag check.
func (fr fieldRules) check(field string, v any, present bool) []string {
	if fr.has(RuleSometimes) && !present {
		return nil
	}

	label := strings.ReplaceAll(field, "_", " ")

	if fr.has(RuleRequired) && isEmpty(v, present) {
		return []string{fmt.Sprintf("The %s field is required.", label)}
	}

	if !present || (v == nil && fr.has(RuleNullable)) {
		return nil
	}

	var msgs []string

	for _, r := range fr.rules {
		if msg := r.check(label, v, fr.numeric()); msg != "" {
			msgs = append(msgs, msg)
		}
	}

	return msgs
}

func (r rule) check(label string, v any, numeric bool) string {
	if r.tag == "" {
		return ""
	}

	subject := v

	switch r.name {
	case RuleIn:
		subject = fmt.Sprint(v)
	case RuleDateFormat:
		// The datetime tag only accepts strings.
		if _, ok := v.(string); !ok {
			return r.message(label, "")
		}
	case RuleMax, RuleMin, RuleSize:
		size, unit, ok := sizeOf(v, numeric)
		if !ok {
			return ""
		}

		if checker.Var(size, r.tag) != nil {
			return r.message(label, unit)
		}

		return ""
	}

	if checker.Var(subject, r.tag) != nil {
		return r.message(label, "")
	}

	return ""
}

func (r rule) message(label, unit string) string {
	switch r.name {
	case RuleString:
		return fmt.Sprintf("The %s field must be a string.", label)
	case RuleInteger:
		return fmt.Sprintf("The %s field must be an integer.", label)
	case RuleNumeric:
		return fmt.Sprintf("The %s field must be a number.", label)
	case RuleBoolean:
		return fmt.Sprintf("The %s field must be true or false.", label)
	case RuleArray:
		return fmt.Sprintf("The %s field must be an array.", label)
	case RuleDate:
		return fmt.Sprintf("The %s field must be a valid date.", label)
	case RuleDateFormat:
		return fmt.Sprintf("The %s field must match the format %s.", label, r.params[0])
	case RuleDecimal:
		return fmt.Sprintf("The %s field must have %s decimal places.", label, strings.Join(r.params, "-"))
	case RuleIn:
		return fmt.Sprintf("The selected %s is invalid.", label)
	case RuleEmail:
		return fmt.Sprintf("The %s field must be a valid email address.", label)
	case RuleUUID:
		return fmt.Sprintf("The %s field must be a valid UUID.", label)
	case RuleMax, RuleMin, RuleSize:
		return r.sizeMessage(label, unit)
	}

	return fmt.Sprintf("The %s field is invalid.", label)
}

func (r rule) sizeMessage(label, unit string) string {
	shown := strconv.FormatFloat(r.num[0], 'f', -1, 64)

	switch r.name {
	case RuleMax:
		switch unit {
		case "characters":
			return fmt.Sprintf("The %s field must not be greater than %s characters.", label, shown)
		case "items":
			return fmt.Sprintf("The %s field must not have more than %s items.", label, shown)
		}

		return fmt.Sprintf("The %s field must not be greater than %s.", label, shown)
	case RuleMin:
		switch unit {
		case "characters":
			return fmt.Sprintf("The %s field must be at least %s characters.", label, shown)
		case "items":
			return fmt.Sprintf("The %s field must have at least %s items.", label, shown)
		}

		return fmt.Sprintf("The %s field must be at least %s.", label, shown)
	}

	switch unit {
	case "characters":
		return fmt.Sprintf("The %s field must be %s characters.", label, shown)
	case "items":
		return fmt.Sprintf("The %s field must contain %s items.", label, shown)
	}

	return fmt.Sprintf("The %s field must be %s.", label, shown)
}

// sizeOf measures v for max, min and size: the number itself for numeric
// fields, the item count of arrays and the character count of strings.
func sizeOf(v any, numeric bool) (float64, string, bool) {
	if numeric {
		if n, ok := asNumber(v); ok {
			return n, "", true
		}
	}

	switch x := v.(type) {
	case string:
		return float64(utf8.RuneCountInString(x)), "characters", true
	case []any:
		return float64(len(x)), "items", true
	case map[string]any:
		return float64(len(x)), "items", true
	}

	if n, ok := asNumber(v); ok {
		return n, "", true
	}

	return 0, "", false
}

func isEmpty(v any, present bool) bool {
	if !present || v == nil {
		return true
	}

	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x) == ""
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	}

	return false
}

func asNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}

	return 0, false
}

// goLayout converts a date_format pattern such as "Y-m-d H:i:s" to a Go layout.
func goLayout(pattern string) string {
	var b strings.Builder

	for _, c := range pattern {
		switch c {
		case 'Y':
			b.WriteString("2006")
		case 'y':
			b.WriteString("06")
		case 'm':
			b.WriteString("01")
		case 'n':
			b.WriteString("1")
		case 'd':
			b.WriteString("02")
		case 'j':
			b.WriteString("2")
		case 'H':
			b.WriteString("15")
		case 'G':
			b.WriteString("15")
		case 'i':
			b.WriteString("04")
		case 's':
			b.WriteString("05")
		case 'A':
			b.WriteString("PM")
		case 'P':
			b.WriteString("-07:00")
		case 'c':
			b.WriteString(time.RFC3339)
		default:
			b.WriteRune(c)
		}
	}

	return b.String()
}
