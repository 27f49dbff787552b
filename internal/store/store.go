// Package store persists entity records in SQLite. All writes run inside a
// transaction opened by WithTx; lifecycle hooks and cascades registered on
// the store participate in that same transaction, and observers see every
// completed write.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/tonimelisma/schema-api/internal/schema"
)

// Sentinel errors.
var (
	ErrNotFound            = errors.New("store: record not found")
	ErrNotSoftDeletable    = errors.New("store: entity does not support soft deletes")
	ErrInvalidQuery        = errors.New("store: invalid query")
	ErrTransactionFinished = errors.New("store: transaction already finished")
)

const defaultMaxOpenConns = 4

// Options configures Open.
type Options struct {
	MaxOpenConns int
	Logger       *slog.Logger

	// Now overrides the clock used for managed timestamps.
	Now func() time.Time
}

// Store is the database handle shared by the whole process.
type Store struct {
	db      *sql.DB
	hooks   *Hooks
	logger  *slog.Logger
	nowFunc func() time.Time

	mu        sync.RWMutex
	committed []Observer
}

// Open opens (creating if needed) the SQLite database at path.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	// DSN parameters ensure pragmas apply to every connection from the pool.
	// Write transactions take the lock up front so concurrent requests queue
	// on busy_timeout instead of failing on lock upgrade.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"+
			"&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"+
			"&_txlock=immediate",
		path,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: opening database %s: %w", path, err)
	}

	maxConns := opts.MaxOpenConns
	if maxConns <= 0 {
		maxConns = defaultMaxOpenConns
	}

	db.SetMaxOpenConns(maxConns)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: connecting to %s: %w", path, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	nowFunc := opts.Now
	if nowFunc == nil {
		nowFunc = time.Now
	}

	logger.Debug("database opened",
		slog.String("path", path),
		slog.Int("max_open_conns", maxConns),
	)

	return &Store{
		db:      db,
		hooks:   newHooks(),
		logger:  logger,
		nowFunc: nowFunc,
	}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Hooks returns the lifecycle hook registry.
func (s *Store) Hooks() *Hooks {
	return s.hooks
}

// Now returns the store clock's current time.
func (s *Store) Now() time.Time {
	return s.nowFunc()
}

// OnCommit registers an observer that receives every completed write after
// its transaction commits. Writes of rolled-back transactions are never
// delivered.
func (s *Store) OnCommit(obs Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.committed = append(s.committed, obs)
}

// WithTx runs fn in one transaction. The observers are told about every
// completed write as it happens, including writes made by hooks and
// cascades. The transaction commits when fn returns nil and rolls back
// otherwise.
func (s *Store) WithTx(ctx context.Context, observers []Observer, fn func(*Repo) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	repo := &Repo{
		store:     s,
		q:         tx,
		observers: observers,
		deleting:  make(map[string]bool),
	}

	err = fn(repo)
	repo.done = true

	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: committing transaction: %w", err)
	}

	s.deliverCommitted(ctx, repo.changes)

	return nil
}

func (s *Store) deliverCommitted(ctx context.Context, changes []Change) {
	s.mu.RLock()
	observers := append([]Observer(nil), s.committed...)
	s.mu.RUnlock()

	if len(observers) == 0 {
		return
	}

	for _, ch := range changes {
		for _, obs := range observers {
			obs.Observe(ctx, ch)
		}
	}
}

// Find loads one record by primary key outside any transaction.
func (s *Store) Find(ctx context.Context, e *schema.Entity, id any, withTrashed bool) (*Record, error) {
	return find(ctx, s.db, e, id, withTrashed)
}

// querier is the subset of *sql.DB and *sql.Tx used for reads and writes.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func find(ctx context.Context, q querier, e *schema.Entity, id any, withTrashed bool) (*Record, error) {
	recs, err := collect(ctx, q, Query{
		Entity:      e,
		WithTrashed: withTrashed,
		Where:       []Condition{{Column: e.PrimaryKey, Op: OpEq, Values: []any{id}}},
		Limit:       1,
	})
	if err != nil {
		return nil, err
	}

	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: %s %v", ErrNotFound, e.Type, id)
	}

	return recs[0], nil
}
