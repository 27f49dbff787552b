// Package validate checks mutation attributes against per-entity rules.
// Rules come from the schema file's [entities.<type>.rules.<ability>]
// tables; entities without declared rules for an ability fall back to
// rules derived from their column types.
package validate

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/tonimelisma/schema-api/internal/schema"
)

// Validator validates operation attributes. It is safe for concurrent use.
type Validator struct {
	logger *slog.Logger

	mu       sync.RWMutex
	compiled map[string]map[string]fieldRules
}

// New compiles the declared rules of every entity in dir and reports all
// invalid rule strings at once.
func New(dir *schema.Directory, logger *slog.Logger) (*Validator, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	v := &Validator{
		logger:   logger,
		compiled: make(map[string]map[string]fieldRules),
	}

	var errs []error

	for _, e := range dir.Entities() {
		for ability, declared := range e.Rules {
			set, err := compile(declared)
			if err != nil {
				errs = append(errs, fmt.Errorf("validate: %s %s: %w", e.Type, ability, err))
				continue
			}

			v.compiled[cacheKey(e, ability)] = set
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return v, nil
}

// Validate implements the sync engine's validator. It returns the failure
// messages per field; nil means valid. Deletes carry no attributes and
// only fail on declared delete rules.
func (v *Validator) Validate(e *schema.Entity, ability string, attrs map[string]any) map[string][]string {
	set := v.ruleSet(e, ability)

	var failed map[string][]string

	for _, field := range slices.Sorted(maps.Keys(set)) {
		val, present := attrs[field]

		if msgs := set[field].check(field, val, present); len(msgs) > 0 {
			if failed == nil {
				failed = make(map[string][]string)
			}

			failed[field] = msgs
		}
	}

	return failed
}

// Rules returns the effective rule strings for e and ability.
func (v *Validator) Rules(e *schema.Entity, ability string) map[string]string {
	set := v.ruleSet(e, ability)

	out := make(map[string]string, len(set))
	for field, fr := range set {
		out[field] = fr.source
	}

	return out
}

func (v *Validator) ruleSet(e *schema.Entity, ability string) map[string]fieldRules {
	key := cacheKey(e, ability)

	v.mu.RLock()
	set, ok := v.compiled[key]
	v.mu.RUnlock()

	if ok {
		return set
	}

	var derived map[string]string
	if ability == "create" || ability == "update" {
		derived = SchemaRules(e, ability)
	}

	set, err := compile(derived)
	if err != nil {
		v.logger.Error("invalid derived validation rules",
			slog.String("type", e.Type),
			slog.String("error", err.Error()),
		)
	}

	v.mu.Lock()
	v.compiled[key] = set
	v.mu.Unlock()

	v.logger.Debug("derived validation rules",
		slog.String("type", e.Type),
		slog.String("ability", ability),
		slog.Int("fields", len(set)),
	)

	return set
}

func compile(rules map[string]string) (map[string]fieldRules, error) {
	set := make(map[string]fieldRules, len(rules))

	var errs []error

	for field, s := range rules {
		fr, err := parseRules(s)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
			continue
		}

		set[field] = fr
	}

	return set, errors.Join(errs...)
}

func cacheKey(e *schema.Entity, ability string) string {
	return e.Type + "\x00" + ability
}
