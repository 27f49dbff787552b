package schema

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Schema file formats.
const (
	FormatTOML = "toml"
	FormatYAML = "yaml"
)

// File is the on-disk schema description.
type File struct {
	Entities map[string]EntityDef `toml:"entities" yaml:"entities"`
}

// EntityDef declares one entity type. Unset fields take conventional
// defaults when the directory is built.
type EntityDef struct {
	Table            string                       `toml:"table" yaml:"table"`
	PrimaryKey       string                       `toml:"primary_key" yaml:"primary_key"`
	SoftDeletes      *bool                        `toml:"soft_deletes" yaml:"soft_deletes"`
	Timestamps       *bool                        `toml:"timestamps" yaml:"timestamps"`
	Fillable         []string                     `toml:"fillable" yaml:"fillable"`
	Guarded          []string                     `toml:"guarded" yaml:"guarded"`
	APIIgnore        bool                         `toml:"api_ignore" yaml:"api_ignore"`
	BroadcastIgnored bool                         `toml:"broadcast_ignored" yaml:"broadcast_ignored"`
	Hidden           []string                     `toml:"hidden" yaml:"hidden"`
	Modifiers        []string                     `toml:"modifiers" yaml:"modifiers"`
	Filterable       []string                     `toml:"filterable" yaml:"filterable"`
	Sortable         []string                     `toml:"sortable" yaml:"sortable"`
	Rules            map[string]map[string]string `toml:"rules" yaml:"rules"`
	Policy           map[string]string            `toml:"policy" yaml:"policy"`
	Relations        []RelationDef                `toml:"relations" yaml:"relations"`
}

// RelationDef declares one relation of an entity.
type RelationDef struct {
	Name            string `toml:"name" yaml:"name"`
	Kind            string `toml:"kind" yaml:"kind"`
	Type            string `toml:"type" yaml:"type"`
	ForeignKey      string `toml:"foreign_key" yaml:"foreign_key"`
	OwnerKey        string `toml:"owner_key" yaml:"owner_key"`
	PivotTable      string `toml:"pivot_table" yaml:"pivot_table"`
	ForeignPivotKey string `toml:"foreign_pivot_key" yaml:"foreign_pivot_key"`
	RelatedPivotKey string `toml:"related_pivot_key" yaml:"related_pivot_key"`
	Include         bool   `toml:"include" yaml:"include"`
	CascadeDelete   bool   `toml:"cascade_delete" yaml:"cascade_delete"`
	ForceDelete     bool   `toml:"force_delete" yaml:"force_delete"`
}

var (
	validAbilities  = []string{"view", "list", "create", "update", "delete"}
	validRuleKinds  = []string{"create", "update", "delete"}
	validModifiers  = []string{ModifierFilter, ModifierSort, ModifierLatest}
	validRelKinds   = []string{string(HasOne), string(HasMany), string(BelongsTo), string(BelongsToMany)}
	errUnknownField = errors.New("schema: unknown field")
)

// LoadFile reads a schema file. The format is chosen by extension: .yaml and
// .yml are YAML, everything else is TOML. A missing file yields an empty
// schema so that autodiscovery alone can drive the directory.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &File{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("schema: reading %s: %w", path, err)
	}

	format := FormatTOML

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = FormatYAML
	}

	f, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("schema: parsing %s: %w", path, err)
	}

	return f, nil
}

// Parse decodes schema file contents in the given format and checks them
// for structural mistakes. Unknown fields are errors.
func Parse(data []byte, format string) (*File, error) {
	f := &File{}

	switch format {
	case FormatTOML:
		md, err := toml.Decode(string(data), f)
		if err != nil {
			return nil, fmt.Errorf("schema: decoding toml: %w", err)
		}

		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}

			return nil, fmt.Errorf("%w: %s", errUnknownField, strings.Join(keys, ", "))
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)

		if err := dec.Decode(f); err != nil {
			return nil, fmt.Errorf("schema: decoding yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("schema: unsupported format %q", format)
	}

	if err := f.validate(); err != nil {
		return nil, err
	}

	return f, nil
}

// validate accumulates every structural problem in the file.
func (f *File) validate() error {
	var errs []error

	for typ, def := range f.Entities {
		for ability := range def.Policy {
			if !slices.Contains(validAbilities, ability) {
				errs = append(errs, fmt.Errorf("schema: %s: unknown policy ability %q", typ, ability))
			}
		}

		for kind := range def.Rules {
			if !slices.Contains(validRuleKinds, kind) {
				errs = append(errs, fmt.Errorf("schema: %s: unknown rules kind %q", typ, kind))
			}
		}

		for _, m := range def.Modifiers {
			if !slices.Contains(validModifiers, m) {
				errs = append(errs, fmt.Errorf("schema: %s: unknown modifier %q", typ, m))
			}
		}

		seen := make(map[string]bool, len(def.Relations))

		for _, rel := range def.Relations {
			if rel.Name == "" {
				errs = append(errs, fmt.Errorf("schema: %s: relation without a name", typ))
				continue
			}

			if seen[rel.Name] {
				errs = append(errs, fmt.Errorf("schema: %s: duplicate relation %q", typ, rel.Name))
			}

			seen[rel.Name] = true

			if !slices.Contains(validRelKinds, rel.Kind) {
				errs = append(errs, fmt.Errorf("schema: %s.%s: unknown relation kind %q", typ, rel.Name, rel.Kind))
			}

			if rel.Type == "" {
				errs = append(errs, fmt.Errorf("schema: %s.%s: relation type is required", typ, rel.Name))
			}

			if rel.Kind == string(BelongsToMany) && rel.PivotTable == "" {
				errs = append(errs, fmt.Errorf("schema: %s.%s: pivot_table is required", typ, rel.Name))
			}

			if rel.ForceDelete && !rel.CascadeDelete {
				errs = append(errs, fmt.Errorf("schema: %s.%s: force_delete requires cascade_delete", typ, rel.Name))
			}
		}
	}

	return errors.Join(errs...)
}
