package validate

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Custom validator tags for JSON attribute values. Decoded JSON arrives as
// string, float64, int64, bool, []any or map[string]any, so the type rules
// look at the value's kind rather than a declared Go type.
const (
	tagString   = "json_string"
	tagInteger  = "json_integer"
	tagBoolean  = "json_boolean"
	tagArray    = "json_array"
	tagDate     = "json_date"
	tagDecimals = "decimal_places"
)

// Escapes for separators inside tag parameters.
const (
	escComma = "0x2C"
	escPipe  = "0x7C"
)

// dateLayouts are accepted by the date rule.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000000Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// checker runs every tag check. *validator.Validate caches parsed tags and
// is safe for concurrent use.
var checker = newChecker()

func newChecker() *validator.Validate {
	v := validator.New()

	custom := map[string]validator.Func{
		tagString:   isString,
		tagInteger:  isInteger,
		tagBoolean:  isBoolean,
		tagArray:    isArray,
		tagDate:     isDate,
		tagDecimals: hasDecimalPlaces,
	}

	for tag, fn := range custom {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("validate: registering %s: %v", tag, err))
		}
	}

	return v
}

// validatorTag translates a parsed rule into the tag that checks it.
// Presence rules have no tag.
func (r rule) validatorTag() (string, error) {
	switch r.name {
	case RuleRequired, RuleSometimes, RuleNullable:
		return "", nil
	case RuleString:
		return tagString, nil
	case RuleInteger:
		return tagInteger, nil
	case RuleNumeric:
		return "numeric", nil
	case RuleBoolean:
		return tagBoolean, nil
	case RuleArray:
		return tagArray, nil
	case RuleDate:
		return tagDate, nil
	case RuleDateFormat:
		return "datetime=" + escapeParam(goLayout(r.params[0])), nil
	case RuleDecimal:
		return tagDecimals + "=" + strings.Join(trimAll(r.params), " "), nil
	case RuleMax:
		return "max=" + strings.TrimSpace(r.params[0]), nil
	case RuleMin:
		return "min=" + strings.TrimSpace(r.params[0]), nil
	case RuleSize:
		return "len=" + strings.TrimSpace(r.params[0]), nil
	case RuleIn:
		quoted := make([]string, len(r.params))

		for i, p := range r.params {
			if strings.Contains(p, "'") {
				return "", fmt.Errorf("%w: in value %q contains a quote", ErrInvalidRule, p)
			}

			quoted[i] = "'" + escapeParam(p) + "'"
		}

		return "oneof=" + strings.Join(quoted, " "), nil
	case RuleEmail:
		return "email", nil
	case RuleUUID:
		return "uuid", nil
	}

	return "", fmt.Errorf("%w: unknown rule %q", ErrInvalidRule, r.name)
}

func escapeParam(s string) string {
	s = strings.ReplaceAll(s, ",", escComma)
	return strings.ReplaceAll(s, "|", escPipe)
}

func trimAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.TrimSpace(s)
	}

	return out
}

func isString(fl validator.FieldLevel) bool {
	return fl.Field().Kind() == reflect.String
}

func isInteger(fl validator.FieldLevel) bool {
	f := fl.Field()

	switch f.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	case reflect.Float32, reflect.Float64:
		x := f.Float()
		return x == math.Trunc(x) && !math.IsInf(x, 0)
	case reflect.String:
		_, err := strconv.ParseInt(strings.TrimSpace(f.String()), 10, 64)
		return err == nil
	}

	return false
}

func isBoolean(fl validator.FieldLevel) bool {
	f := fl.Field()

	switch f.Kind() {
	case reflect.Bool:
		return true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return f.Int() == 0 || f.Int() == 1
	case reflect.String:
		return f.String() == "0" || f.String() == "1"
	}

	return false
}

func isArray(fl validator.FieldLevel) bool {
	k := fl.Field().Kind()
	return k == reflect.Slice || k == reflect.Map
}

func isDate(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}

	s := fl.Field().String()

	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}

	return false
}

// hasDecimalPlaces checks the number of digits after the decimal point
// against "lo" or "lo hi".
func hasDecimalPlaces(fl validator.FieldLevel) bool {
	bounds := strings.Fields(fl.Param())
	if len(bounds) == 0 {
		return false
	}

	lo, err := strconv.ParseFloat(bounds[0], 64)
	if err != nil {
		return false
	}

	hi := lo
	if len(bounds) > 1 {
		if hi, err = strconv.ParseFloat(bounds[1], 64); err != nil {
			return false
		}
	}

	var text string

	f := fl.Field()

	switch f.Kind() {
	case reflect.Float32, reflect.Float64:
		text = strconv.FormatFloat(f.Float(), 'f', -1, 64)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		text = strconv.FormatInt(f.Int(), 10)
	case reflect.String:
		text = f.String()
		if _, err := strconv.ParseFloat(text, 64); err != nil {
			return false
		}
	default:
		return false
	}

	n := 0.0
	if _, frac, ok := strings.Cut(text, "."); ok {
		n = float64(len(frac))
	}

	return n >= lo && n <= hi
}
