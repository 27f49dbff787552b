package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tonimelisma/schema-api/internal/schema"
)

func TestColumnRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		typ  string
		want []string
	}{
		{"varchar(255)", []string{"string", "max:255"}},
		{"VARCHAR(100)", []string{"string", "max:100"}},
		{"char(8)", []string{"string", "size:8"}},
		{"text", []string{"string"}},
		{"", []string{"string"}},
		{"tinyint(1)", []string{"boolean"}},
		{"boolean", []string{"boolean"}},
		{"tinyint", []string{"integer"}},
		{"integer", []string{"integer"}},
		{"bigint unsigned", []string{"integer"}},
		{"decimal(10,2)", []string{"decimal:0,2"}},
		{"numeric", []string{"numeric"}},
		{"double", []string{"numeric"}},
		{"real", []string{"numeric"}},
		{"date", []string{"date"}},
		{"time", []string{"date_format:H:i:s"}},
		{"datetime", []string{"date"}},
		{"timestamp", []string{"date"}},
		{"json", []string{"array"}},
		{"jsonb", []string{"array"}},
		{"blob", []string{"string"}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ColumnRules(schema.Column{Name: "c", Type: tt.typ}), tt.typ)
	}
}
