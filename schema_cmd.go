package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/schema-api/internal/config"
	"github.com/tonimelisma/schema-api/internal/schema"
	"github.com/tonimelisma/schema-api/internal/validate"
)

// ruleAbilities are the abilities validation rules are derived for.
var ruleAbilities = []string{"create", "update"}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [type]",
		Short: "Show the entity directory",
		Long: `Show every entity type exposed by the API, as built from the schema file
and the database. With a type argument, show its columns, relations and
effective validation rules.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runSchema,
	}
}

func runSchema(cmd *cobra.Command, args []string) error {
	out, closeLog, err := logOutput(resolvedCfg)
	if err != nil {
		return err
	}
	defer closeLog()

	logger, _ := buildLogger(resolvedCfg, out)

	st, dir, err := openDirectory(cmd.Context(), readOnlyConfig(resolvedCfg), logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if len(args) == 0 {
		if flagJSON {
			return writeJSON(os.Stdout, entitySummaries(dir.Entities()))
		}

		printEntities(os.Stdout, dir.Entities())

		return nil
	}

	e, err := dir.Resolve(args[0])
	if err != nil {
		return err
	}

	v, err := validate.New(dir, logger)
	if err != nil {
		return err
	}

	detail := describeEntity(e, v)

	if flagJSON {
		return writeJSON(os.Stdout, detail)
	}

	printEntityDetail(os.Stdout, detail)

	return nil
}

// readOnlyConfig returns a copy of cfg that runs no migrations, so inspecting
// the schema never changes the database.
func readOnlyConfig(cfg *config.Config) *config.Config {
	c := *cfg
	c.Database.MigrationsDir = ""

	return &c
}

type entitySummary struct {
	Type        string `json:"type"`
	Table       string `json:"table"`
	PrimaryKey  string `json:"primary_key"`
	SoftDeletes bool   `json:"soft_deletes"`
	Listed      bool   `json:"listed"`
	Relations   int    `json:"relations"`
}

func entitySummaries(entities []*schema.Entity) []entitySummary {
	out := make([]entitySummary, len(entities))
	for i, e := range entities {
		out[i] = entitySummary{
			Type:        e.Type,
			Table:       e.Table,
			PrimaryKey:  e.PrimaryKey,
			SoftDeletes: e.SoftDeletes,
			Listed:      !e.APIIgnore,
			Relations:   len(e.Relations),
		}
	}

	return out
}

func printEntities(w io.Writer, entities []*schema.Entity) {
	rows := make([][]string, 0, len(entities))
	for _, s := range entitySummaries(entities) {
		rows = append(rows, []string{
			s.Type, s.Table, s.PrimaryKey, yesNo(s.SoftDeletes), yesNo(s.Listed), fmt.Sprint(s.Relations),
		})
	}

	printTable(w, []string{"TYPE", "TABLE", "KEY", "SOFT DELETES", "LISTED", "RELATIONS"}, rows)
}

type columnDetail struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	Fillable bool   `json:"fillable"`
	Hidden   bool   `json:"hidden"`
}

type relationDetail struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Type       string `json:"type"`
	ForeignKey string `json:"foreign_key,omitempty"`
	PivotTable string `json:"pivot_table,omitempty"`
	Include    bool   `json:"include"`
	Cascade    bool   `json:"cascade_delete"`
}

type entityDetail struct {
	entitySummary
	Columns   []columnDetail               `json:"columns"`
	RelList   []relationDetail             `json:"relation_list"`
	Rules     map[string]map[string]string `json:"rules"`
	Modifiers []string                     `json:"modifiers,omitempty"`
}

func describeEntity(e *schema.Entity, v *validate.Validator) entityDetail {
	d := entityDetail{
		entitySummary: entitySummaries([]*schema.Entity{e})[0],
		Rules:         make(map[string]map[string]string, len(ruleAbilities)),
		Modifiers:     e.Modifiers,
	}

	for _, c := range e.Columns {
		d.Columns = append(d.Columns, columnDetail{
			Name:     c.Name,
			Type:     c.Type,
			Nullable: c.Nullable,
			Fillable: e.IsFillable(c.Name),
			Hidden:   e.IsHidden(c.Name),
		})
	}

	for _, r := range e.Relations {
		d.RelList = append(d.RelList, relationDetail{
			Name:       r.Name,
			Kind:       string(r.Kind),
			Type:       r.Type,
			ForeignKey: r.ForeignKey,
			PivotTable: r.PivotTable,
			Include:    r.Include,
			Cascade:    r.CascadeDelete,
		})
	}

	for _, ability := range ruleAbilities {
		d.Rules[ability] = v.Rules(e, ability)
	}

	return d
}

func printEntityDetail(w io.Writer, d entityDetail) {
	fmt.Fprintf(w, "%s (table %s, key %s)\n\n", d.Type, d.Table, d.PrimaryKey)

	rows := make([][]string, len(d.Columns))
	for i, c := range d.Columns {
		rows[i] = []string{c.Name, c.Type, yesNo(c.Nullable), yesNo(c.Fillable), yesNo(c.Hidden)}
	}

	printTable(w, []string{"COLUMN", "TYPE", "NULLABLE", "FILLABLE", "HIDDEN"}, rows)

	if len(d.RelList) > 0 {
		fmt.Fprintln(w)

		rows = rows[:0]
		for _, r := range d.RelList {
			rows = append(rows, []string{r.Name, r.Kind, r.Type, yesNo(r.Include), yesNo(r.Cascade)})
		}

		printTable(w, []string{"RELATION", "KIND", "TYPE", "INCLUDED", "CASCADES"}, rows)
	}

	for _, ability := range ruleAbilities {
		rules := d.Rules[ability]
		if len(rules) == 0 {
			continue
		}

		fmt.Fprintf(w, "\n%s rules:\n", ability)

		fields := make([]string, 0, len(rules))
		for f := range rules {
			fields = append(fields, f)
		}

		slices.Sort(fields)

		for _, f := range fields {
			fmt.Fprintf(w, "  %s: %s\n", f, rules[f])
		}
	}

	if len(d.Modifiers) > 0 {
		fmt.Fprintf(w, "\nmodifiers: %s\n", strings.Join(d.Modifiers, ", "))
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}

	return nil
}
