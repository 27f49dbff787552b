package schema

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Resolver names accepted by Options.Resolvers.
const (
	ResolverRegistry = "registry"
	ResolverTable    = "table"
)

// Decorator names accepted by Options.Decorators.
const (
	DecoratorValidating = "validating"
	DecoratorCaching    = "caching"
)

// ErrUnknownType is returned when no resolver recognizes a type name.
var ErrUnknownType = errors.New("schema: unknown entity type")

// ErrInvalidEntity is returned by the validating decorator for an entity
// that cannot be used (no table or no usable primary key).
var ErrInvalidEntity = errors.New("schema: invalid entity")

// Resolver maps a type name to its entity.
type Resolver interface {
	Resolve(name string) (*Entity, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(name string) (*Entity, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(name string) (*Entity, error) {
	return f(name)
}

// registryResolver looks up declared type names.
func registryResolver(byType map[string]*Entity) Resolver {
	return ResolverFunc(func(name string) (*Entity, error) {
		if e, ok := byType[name]; ok {
			return e, nil
		}

		return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
	})
}

// tableResolver maps a type name to its conventional table and looks that up.
func tableResolver(byTable map[string]*Entity) Resolver {
	return ResolverFunc(func(name string) (*Entity, error) {
		if e, ok := byTable[TypeToTable(name)]; ok {
			return e, nil
		}

		return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
	})
}

// chainResolver tries each resolver in order. Only ErrUnknownType moves on
// to the next one; any other error is final.
type chainResolver []Resolver

func (c chainResolver) Resolve(name string) (*Entity, error) {
	for _, r := range c {
		e, err := r.Resolve(name)
		if err == nil {
			return e, nil
		}

		if !errors.Is(err, ErrUnknownType) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
}

// validatingResolver rejects entities that cannot be persisted.
func validatingResolver(next Resolver) Resolver {
	return ResolverFunc(func(name string) (*Entity, error) {
		e, err := next.Resolve(name)
		if err != nil {
			return nil, err
		}

		if e.Table == "" || e.PrimaryKey == "" || !e.HasColumn(e.PrimaryKey) {
			return nil, fmt.Errorf("%w: %q has no table or primary key", ErrInvalidEntity, name)
		}

		return e, nil
	})
}

type cacheEntry struct {
	entity *Entity
	err    error
}

// cachingResolver memoizes hits and unknown-type misses.
type cachingResolver struct {
	next  Resolver
	mu    sync.RWMutex
	cache map[string]cacheEntry
}

func (c *cachingResolver) Resolve(name string) (*Entity, error) {
	c.mu.RLock()
	entry, ok := c.cache[name]
	c.mu.RUnlock()

	if ok {
		return entry.entity, entry.err
	}

	e, err := c.next.Resolve(name)
	if err != nil && !errors.Is(err, ErrUnknownType) {
		return nil, err
	}

	c.mu.Lock()
	c.cache[name] = cacheEntry{entity: e, err: err}
	c.mu.Unlock()

	return e, err
}

// composeResolver builds the resolver chain and wraps it with decorators in
// the listed order, so the last decorator is the outermost.
func composeResolver(
	resolvers, decorators []string,
	byType, byTable map[string]*Entity,
	logger *slog.Logger,
) (Resolver, error) {
	if len(resolvers) == 0 {
		resolvers = []string{ResolverRegistry, ResolverTable}
	}

	var chain chainResolver

	for _, name := range resolvers {
		switch name {
		case ResolverRegistry:
			chain = append(chain, registryResolver(byType))
		case ResolverTable:
			chain = append(chain, tableResolver(byTable))
		default:
			return nil, fmt.Errorf("schema: unknown resolver %q", name)
		}
	}

	var r Resolver = chain

	for _, name := range decorators {
		switch name {
		case DecoratorValidating:
			r = validatingResolver(r)
		case DecoratorCaching:
			r = &cachingResolver{next: r, cache: make(map[string]cacheEntry)}
		default:
			return nil, fmt.Errorf("schema: unknown resolver decorator %q", name)
		}
	}

	logger.Debug("composed entity resolver",
		slog.Any("resolvers", resolvers),
		slog.Any("decorators", decorators),
	)

	return r, nil
}
