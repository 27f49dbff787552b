package validate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/schema-api/internal/schema"
)

type layout map[string][]schema.Column

func (l layout) Tables(context.Context) ([]string, error) {
	out := make([]string, 0, len(l))
	for t := range l {
		out = append(out, t)
	}

	return out, nil
}

func (l layout) Columns(_ context.Context, table string) ([]schema.Column, error) {
	return l[table], nil
}

var testLayout = layout{
	"orders": {
		{Name: "id", Type: "text", PrimaryKey: true},
		{Name: "number", Type: "integer"},
		{Name: "text", Type: "text"},
		{Name: "total", Type: "decimal(10,2)", HasDefault: true},
		{Name: "owner_id", Type: "text", Nullable: true},
		{Name: "created_at", Type: "datetime", Nullable: true},
		{Name: "updated_at", Type: "datetime", Nullable: true},
	},
	"posts": {
		{Name: "id", Type: "text", PrimaryKey: true},
		{Name: "title", Type: "varchar(255)"},
		{Name: "slug", Type: "char(8)", Nullable: true},
		{Name: "published", Type: "tinyint(1)", Nullable: true},
		{Name: "meta", Type: "json", Nullable: true},
		{Name: "created_at", Type: "datetime", Nullable: true},
		{Name: "updated_at", Type: "datetime", Nullable: true},
		{Name: "deleted_at", Type: "datetime", Nullable: true},
	},
	"tallies": {
		{Name: "id", Type: "text", PrimaryKey: true},
		{Name: "quantity", Type: "decimal(10,2)", HasDefault: true},
		{Name: "note", Type: "text", Nullable: true, HasDefault: true},
	},
}

const testSchema = `
[entities.orders]
guarded = ["total"]

[entities.orders.rules.create]
number = "required|integer|min:1"
text = "required|string|max:10"
owner_id = "sometimes|nullable|uuid"

[entities.posts]

[entities.tallies]
`

func newValidator(t *testing.T) (*Validator, *schema.Directory) {
	t.Helper()

	f, err := schema.Parse([]byte(testSchema), schema.FormatTOML)
	require.NoError(t, err)

	dir, err := schema.Build(t.Context(), f, testLayout, schema.Options{})
	require.NoError(t, err)

	v, err := New(dir, nil)
	require.NoError(t, err)

	return v, dir
}

func resolve(t *testing.T, dir *schema.Directory, typ string) *schema.Entity {
	t.Helper()

	e, err := dir.Resolve(typ)
	require.NoError(t, err)

	return e
}

func TestValidate_DeclaredRules(t *testing.T) {
	t.Parallel()

	v, dir := newValidator(t)
	orders := resolve(t, dir, "orders")

	tests := []struct {
		name  string
		attrs map[string]any
		want  map[string][]string
	}{
		{
			name:  "valid",
			attrs: map[string]any{"number": int64(3), "text": "short", "owner_id": nil},
		},
		{
			name:  "missing required fields",
			attrs: map[string]any{},
			want: map[string][]string{
				"number": {"The number field is required."},
				"text":   {"The text field is required."},
			},
		},
		{
			name:  "wrong types and sizes",
			attrs: map[string]any{"number": 0.5, "text": "far too long text", "owner_id": "nope"},
			want: map[string][]string{
				"number":   {"The number field must be an integer.", "The number field must be at least 1."},
				"text":     {"The text field must not be greater than 10 characters."},
				"owner_id": {"The owner id field must be a valid UUID."},
			},
		},
		{
			name:  "blank string counts as missing",
			attrs: map[string]any{"number": int64(1), "text": "  "},
			want:  map[string][]string{"text": {"The text field is required."}},
		},
		{
			name:  "valid uuid",
			attrs: map[string]any{"number": "2", "text": "x", "owner_id": "0b9c8f4e-6d3a-4a55-9f3e-2c1d0a7b8e90"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, v.Validate(orders, "create", tt.attrs))
		})
	}
}

func TestValidate_DerivedRules(t *testing.T) {
	t.Parallel()

	v, dir := newValidator(t)
	posts := resolve(t, dir, "posts")

	assert.Equal(t, map[string]string{
		"title":     "required|string|max:255",
		"slug":      "sometimes|nullable|string|size:8",
		"published": "sometimes|nullable|boolean",
		"meta":      "sometimes|nullable|array",
	}, v.Rules(posts, "create"))

	assert.Equal(t, "sometimes|string|max:255", v.Rules(posts, "update")["title"])
	assert.Empty(t, v.Rules(posts, "delete"))

	assert.Nil(t, v.Validate(posts, "update", map[string]any{"published": int64(1)}))
	assert.Nil(t, v.Validate(posts, "create", map[string]any{"title": "t", "meta": map[string]any{"a": 1.0}}))

	assert.Equal(t, map[string][]string{
		"title":     {"The title field is required."},
		"slug":      {"The slug field must be 8 characters."},
		"published": {"The published field must be true or false."},
		"meta":      {"The meta field must be an array."},
	}, v.Validate(posts, "create", map[string]any{"slug": "abc", "published": "yes", "meta": "{}"}))

	assert.Nil(t, v.Validate(posts, "delete", nil))
}

func TestValidate_GuardedColumnsAreNotRequired(t *testing.T) {
	t.Parallel()

	v, dir := newValidator(t)
	orders := resolve(t, dir, "orders")

	rules := v.Rules(orders, "update")
	assert.NotContains(t, rules, "total")
	assert.NotContains(t, rules, "id")
	assert.NotContains(t, rules, "created_at")
	assert.Equal(t, "sometimes|integer", rules["number"])
}

func TestValidate_DefaultedColumnsAreRequiredOnCreate(t *testing.T) {
	t.Parallel()

	v, dir := newValidator(t)
	tallies := resolve(t, dir, "tallies")

	assert.Equal(t, map[string]string{
		"quantity": "required|decimal:0,2",
		"note":     "sometimes|nullable|string",
	}, SchemaRules(tallies, "create"))
	assert.Equal(t, "sometimes|decimal:0,2", SchemaRules(tallies, "update")["quantity"])

	assert.Equal(t, map[string][]string{
		"quantity": {"The quantity field is required."},
	}, v.Validate(tallies, "create", map[string]any{}))
	assert.Nil(t, v.Validate(tallies, "create", map[string]any{"quantity": 1.5}))
	assert.Nil(t, v.Validate(tallies, "update", map[string]any{}))
}

func TestNew_RejectsInvalidRules(t *testing.T) {
	t.Parallel()

	f, err := schema.Parse([]byte(`
[entities.orders.rules.create]
number = "required|integr"
text = "max"

[entities.orders.rules.update]
number = "between:1,2"
`), schema.FormatTOML)
	require.NoError(t, err)

	dir, err := schema.Build(t.Context(), f, testLayout, schema.Options{})
	require.NoError(t, err)

	_, err = New(dir, nil)
	require.ErrorIs(t, err, ErrInvalidRule)
	assert.Contains(t, err.Error(), `unknown rule "integr"`)
	assert.Contains(t, err.Error(), "max takes one parameter")
	assert.Contains(t, err.Error(), `unknown rule "between"`)
}

func TestParseRules_Tags(t *testing.T) {
	t.Parallel()

	fr, err := parseRules("sometimes|nullable|string|max:255|in:a b,c|date_format:d,m")
	require.NoError(t, err)
	require.Len(t, fr.rules, 6)

	tags := make([]string, len(fr.rules))
	for i, r := range fr.rules {
		tags[i] = r.tag
	}

	assert.Equal(t, []string{"", "", tagString, "max=255", "oneof='a b' 'c'", "datetime=020x2C01"}, tags)

	_, err = parseRules("in:it's")
	require.ErrorIs(t, err, ErrInvalidRule)
}

func TestRuleChecks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rules string
		value any
		ok    bool
	}{
		{"numeric", "12.5", true},
		{"numeric", "abc", false},
		{"integer", 4.0, true},
		{"integer", "4", true},
		{"boolean", true, true},
		{"boolean", int64(2), false},
		{"date", "2024-03-01", true},
		{"date", "2024-03-01 10:00:00", true},
		{"date", "yesterday", false},
		{"date_format:H:i:s", "10:11:12", true},
		{"date_format:H:i:s", "10:11", false},
		{"decimal:0,2", 10.25, true},
		{"decimal:0,2", 10.125, false},
		{"decimal:2", "3.10", true},
		{"in:draft,published", "draft", true},
		{"in:draft,published", "other", false},
		{"email", "ada@example.com", true},
		{"email", "Ada <ada@example.com>", false},
		{"max:2", []any{1, 2, 3}, false},
		{"min:2|numeric", int64(1), false},
		{"size:3", "äöü", true},
		{"nullable|string", nil, true},
		{"string", nil, false},
		{"array", []any{}, true},
		{"array", map[string]any{"a": 1.0}, true},
		{"array", "[]", false},
		{"in:1,2", int64(2), true},
		{"in:in stock,sold out", "sold out", true},
		{"in:in stock,sold out", "sold", false},
		{"date_format:Y-m-d H:i:s", "2024-03-01 10:11:12", true},
		{"date_format:Y-m-d H:i:s", int64(5), false},
		{"uuid", "0b9c8f4e-6d3a-4a55-9f3e-2c1d0a7b8e90", true},
		{"uuid", int64(5), false},
		{"email", int64(5), false},
		{"numeric", true, false},
		{"max:3", true, true},
		{"string|max:3", "abcd", false},
		{"decimal:0,2", "1.5", true},
		{"decimal:0,2", "x", false},
	}

	for _, tt := range tests {
		fr, err := parseRules(tt.rules)
		require.NoError(t, err)

		msgs := fr.check("field", tt.value, true)
		assert.Equal(t, tt.ok, len(msgs) == 0, "%s with %#v: %v", tt.rules, tt.value, msgs)
	}
}
