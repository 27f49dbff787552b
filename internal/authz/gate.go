// Package authz decides which actor may view, list, create, update or
// delete which entity. Policies are declared per entity and ability in the
// schema file; abilities without a declaration use the default policy.
package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tonimelisma/schema-api/internal/schema"
	"github.com/tonimelisma/schema-api/internal/store"
)

// Policy rule names.
const (
	PolicyAllow         = "allow"
	PolicyAny           = "any"
	PolicyDeny          = "deny"
	PolicyNone          = "none"
	PolicyAuthenticated = "authenticated"
	PolicyOwner         = "owner"
	PolicySelf          = "self"
)

// ErrInvalidPolicy is returned for policy strings that cannot be parsed.
var ErrInvalidPolicy = errors.New("authz: invalid policy")

// policy is one compiled rule.
type policy struct {
	kind   string
	column string
}

// parsePolicy compiles a rule such as "owner:author_id".
func parsePolicy(s string) (policy, error) {
	kind, column, _ := strings.Cut(strings.TrimSpace(s), ":")

	switch kind {
	case PolicyAllow, PolicyAny:
		return policy{kind: PolicyAllow}, nil
	case PolicyDeny, PolicyNone:
		return policy{kind: PolicyDeny}, nil
	case PolicyAuthenticated, PolicySelf:
		return policy{kind: kind}, nil
	case PolicyOwner:
		if column == "" {
			return policy{}, fmt.Errorf("%w: owner needs a column", ErrInvalidPolicy)
		}

		return policy{kind: kind, column: column}, nil
	}

	return policy{}, fmt.Errorf("%w: unknown rule %q", ErrInvalidPolicy, s)
}

// allows evaluates the rule. rec is nil when the subject is the entity
// type itself (creates and lists); record-bound rules then only require
// an authenticated actor.
func (p policy) allows(actor *Actor, rec *store.Record) bool {
	switch p.kind {
	case PolicyAllow:
		return true
	case PolicyDeny:
		return false
	}

	if actor == nil {
		return false
	}

	switch p.kind {
	case PolicyOwner:
		if rec == nil {
			return true
		}

		owner := rec.Get(p.column)

		return owner != nil && fmt.Sprint(owner) == actor.ID
	case PolicySelf:
		return rec == nil || rec.Key() == actor.ID
	}

	return true
}

// Gate evaluates policies. It is read-only after construction.
type Gate struct {
	fallback policy
	rules    map[string]map[string]policy
	logger   *slog.Logger
}

// NewGate compiles the policies of every entity in dir. defaultPolicy
// applies to abilities an entity does not declare.
func NewGate(dir *schema.Directory, defaultPolicy string, logger *slog.Logger) (*Gate, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	fallback, err := parsePolicy(defaultPolicy)
	if err != nil {
		return nil, fmt.Errorf("authz: default policy: %w", err)
	}

	g := &Gate{
		fallback: fallback,
		rules:    make(map[string]map[string]policy),
		logger:   logger,
	}

	var errs []error

	for _, e := range dir.Entities() {
		for ability, rule := range e.Policy {
			p, err := parsePolicy(rule)
			if err != nil {
				errs = append(errs, fmt.Errorf("authz: %s %s: %w", e.Type, ability, err))
				continue
			}

			if p.kind == PolicyOwner && !e.HasColumn(p.column) {
				errs = append(errs, fmt.Errorf("authz: %s %s: %w: no column %q", e.Type, ability, ErrInvalidPolicy, p.column))
				continue
			}

			if g.rules[e.Type] == nil {
				g.rules[e.Type] = make(map[string]policy)
			}

			g.rules[e.Type][ability] = p
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return g, nil
}

// Allows reports whether the actor in ctx may perform ability on e, or on
// rec when it is non-nil.
func (g *Gate) Allows(ctx context.Context, ability string, e *schema.Entity, rec *store.Record) (bool, error) {
	actor, _ := ActorFrom(ctx)

	return g.AllowsActor(actor, ability, e, rec), nil
}

// AllowsActor is Allows with an explicit actor; nil is anonymous.
func (g *Gate) AllowsActor(actor *Actor, ability string, e *schema.Entity, rec *store.Record) bool {
	p, ok := g.rules[e.Type][ability]
	if !ok {
		p = g.fallback
	}

	allowed := p.allows(actor, rec)

	if !allowed {
		attrs := []any{
			slog.String("ability", ability),
			slog.String("type", e.Type),
		}

		if rec != nil {
			attrs = append(attrs, slog.String("id", rec.Key()))
		}

		if actor != nil {
			attrs = append(attrs, slog.String("actor", actor.ID))
		}

		g.logger.Debug("access denied", attrs...)
	}

	return allowed
}
