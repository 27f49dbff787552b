package store

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/schema-api/internal/schema"
	"github.com/tonimelisma/schema-api/testutil"
)

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

// testLogger returns a debug-level logger that writes to t.Log.
func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// testClock hands out strictly increasing times one second apart.
type testClock struct{ t time.Time }

func (c *testClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestStore(t *testing.T) (*Store, *schema.Directory, *testClock) {
	t.Helper()

	ctx := t.Context()
	clock := &testClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}

	s, err := Open(ctx, filepath.Join(t.TempDir(), "test.db"), Options{Logger: testLogger(t), Now: clock.now})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.Migrate(ctx, testutil.Migrations())
	require.NoError(t, err)

	f, err := schema.Parse(testutil.Schema(), schema.FormatTOML)
	require.NoError(t, err)

	dir, err := schema.Build(ctx, f, s, schema.Options{Logger: testLogger(t)})
	require.NoError(t, err)

	return s, dir, clock
}

func entity(t *testing.T, dir *schema.Directory, typ string) *schema.Entity {
	t.Helper()

	e, err := dir.Resolve(typ)
	require.NoError(t, err)

	return e
}

func insert(t *testing.T, s *Store, e *schema.Entity, attrs map[string]any) *Record {
	t.Helper()

	rec := NewRecord(e)
	for k, v := range attrs {
		rec.Set(k, v)
	}

	require.NoError(t, s.WithTx(t.Context(), nil, func(r *Repo) error {
		_, err := r.Save(t.Context(), rec)
		return err
	}))

	return rec
}

func TestColumns(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestStore(t)

	cols, err := s.Columns(t.Context(), "posts")
	require.NoError(t, err)

	byName := map[string]schema.Column{}
	for _, c := range cols {
		byName[c.Name] = c
	}

	assert.True(t, byName["id"].PrimaryKey)
	assert.False(t, byName["id"].Nullable)
	assert.Equal(t, "varchar(255)", byName["title"].Type)
	assert.False(t, byName["title"].Nullable)
	assert.True(t, byName["content"].Nullable)
	assert.Equal(t, "json", byName["meta"].Type)

	missing, err := s.Columns(t.Context(), "nope")
	require.NoError(t, err)
	assert.Empty(t, missing)

	tables, err := s.Tables(t.Context())
	require.NoError(t, err)
	assert.Contains(t, tables, "order_rows")
	assert.Contains(t, tables, "goose_db_version")
}

func TestSave_InsertSetsTimestampsAndRefreshes(t *testing.T) {
	t.Parallel()

	s, dir, _ := newTestStore(t)
	orders := entity(t, dir, "orders")

	rec := insert(t, s, orders, map[string]any{"id": "o1", "number": 7, "text": "first"})

	assert.True(t, rec.Exists())
	assert.Equal(t, "2024-03-01T12:00:01.000000Z", rec.Get("created_at"))
	assert.Equal(t, rec.Get("created_at"), rec.Get("updated_at"))
	assert.EqualValues(t, 0, rec.Get("total"), "column default is read back")
	assert.Nil(t, rec.Get("deleted_at"))
	assert.False(t, rec.IsDirty())
}

func TestSave_UnchangedRecordIsNotWritten(t *testing.T) {
	t.Parallel()

	s, dir, _ := newTestStore(t)
	orders := entity(t, dir, "orders")
	rec := insert(t, s, orders, map[string]any{"id": "o1", "number": 7, "text": "first"})

	var seen []Event

	obs := ObserverFunc(func(_ context.Context, ch Change) { seen = append(seen, ch.Event) })

	require.NoError(t, s.WithTx(t.Context(), []Observer{obs}, func(r *Repo) error {
		rec.Set("number", "7") // same value, different spelling
		written, err := r.Save(t.Context(), rec)
		assert.False(t, written)

		return err
	}))

	assert.Empty(t, seen)
	assert.Equal(t, "2024-03-01T12:00:01.000000Z", rec.Get("updated_at"))
}

func TestSave_UpdateWritesDirtyColumns(t *testing.T) {
	t.Parallel()

	s, dir, _ := newTestStore(t)
	posts := entity(t, dir, "posts")
	rec := insert(t, s, posts, map[string]any{"id": "p1", "title": "A"})

	require.NoError(t, s.WithTx(t.Context(), nil, func(r *Repo) error {
		ignored := rec.Fill(map[string]any{"title": "B", "id": "other", "created_at": "x", "bogus": 1})
		assert.Equal(t, []string{"bogus", "created_at", "id"}, ignored)

		written, err := r.Save(t.Context(), rec)
		assert.True(t, written)

		return err
	}))

	fresh, err := s.Find(t.Context(), posts, "p1", false)
	require.NoError(t, err)
	assert.Equal(t, "B", fresh.Get("title"))
	assert.Equal(t, "2024-03-01T12:00:02.000000Z", fresh.Get("updated_at"))
	assert.Equal(t, "2024-03-01T12:00:01.000000Z", fresh.Get("created_at"))
}

func TestSave_JSONColumnRoundTrip(t *testing.T) {
	t.Parallel()

	s, dir, _ := newTestStore(t)
	posts := entity(t, dir, "posts")

	insert(t, s, posts, map[string]any{
		"id": "p1", "title": "A",
		"meta": map[string]any{"tags": []any{"x", "y"}},
	})

	fresh, err := s.Find(t.Context(), posts, "p1", false)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"tags": []any{"x", "y"}}, fresh.Get("meta"))
}

func TestDelete_SoftAndRestore(t *testing.T) {
	t.Parallel()

	s, dir, _ := newTestStore(t)
	posts := entity(t, dir, "posts")
	rec := insert(t, s, posts, map[string]any{"id": "p1", "title": "A"})

	require.NoError(t, s.WithTx(t.Context(), nil, func(r *Repo) error {
		return r.Delete(t.Context(), rec)
	}))

	assert.True(t, rec.Trashed())

	deletedAt, ok := rec.DeletedAt()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 2, 0, time.UTC), deletedAt)

	_, err := s.Find(t.Context(), posts, "p1", false)
	require.ErrorIs(t, err, ErrNotFound)

	trashed, err := s.Find(t.Context(), posts, "p1", true)
	require.NoError(t, err)
	assert.True(t, trashed.Trashed())

	require.NoError(t, s.WithTx(t.Context(), nil, func(r *Repo) error {
		return r.Restore(t.Context(), trashed)
	}))

	live, err := s.Find(t.Context(), posts, "p1", false)
	require.NoError(t, err)
	assert.False(t, live.Trashed())
}

func TestDelete_HardWhenNotSoftDeletable(t *testing.T) {
	t.Parallel()

	s, dir, _ := newTestStore(t)
	users := entity(t, dir, "users")
	rec := insert(t, s, users, map[string]any{"id": "u1", "name": "Ann", "email": "a@example.com"})

	require.NoError(t, s.WithTx(t.Context(), nil, func(r *Repo) error {
		return r.Delete(t.Context(), rec)
	}))

	assert.False(t, rec.Exists())
	assert.Equal(t, "Ann", rec.Get("name"), "attributes survive for rendering")

	_, err := s.Find(t.Context(), users, "u1", true)
	require.ErrorIs(t, err, ErrNotFound)

	err = s.WithTx(t.Context(), nil, func(r *Repo) error {
		return r.Restore(t.Context(), rec)
	})
	require.ErrorIs(t, err, ErrNotSoftDeletable)
}

func TestHooks_OrderAndObservers(t *testing.T) {
	t.Parallel()

	s, dir, _ := newTestStore(t)
	posts := entity(t, dir, "posts")

	var calls []string

	s.Hooks().OnAny(Created, func(_ context.Context, _ *Repo, rec *Record) error {
		calls = append(calls, "any:"+rec.Key())
		return nil
	})
	s.Hooks().On("posts", Created, func(_ context.Context, _ *Repo, rec *Record) error {
		calls = append(calls, "posts:"+rec.Key())
		return nil
	})
	s.Hooks().On("posts", Creating, func(_ context.Context, _ *Repo, rec *Record) error {
		rec.Set("slug", "auto")
		return nil
	})

	obs := ObserverFunc(func(_ context.Context, ch Change) {
		calls = append(calls, "observer:"+ch.Event.String())
	})

	rec := NewRecord(posts)
	rec.Set("id", "p1")
	rec.Set("title", "A")

	require.NoError(t, s.WithTx(t.Context(), []Observer{obs}, func(r *Repo) error {
		_, err := r.Save(t.Context(), rec)
		return err
	}))

	assert.Equal(t, []string{"posts:p1", "any:p1", "observer:created"}, calls)
	assert.Equal(t, "auto", rec.Get("slug"))
}

func TestHooks_ErrorRollsBack(t *testing.T) {
	t.Parallel()

	s, dir, _ := newTestStore(t)
	posts := entity(t, dir, "posts")

	boom := errors.New("boom")
	s.Hooks().On("posts", Created, func(context.Context, *Repo, *Record) error { return boom })

	var committed []Change
	s.OnCommit(ObserverFunc(func(_ context.Context, ch Change) { committed = append(committed, ch) }))

	rec := NewRecord(posts)
	rec.Set("id", "p1")
	rec.Set("title", "A")

	err := s.WithTx(t.Context(), nil, func(r *Repo) error {
		_, err := r.Save(t.Context(), rec)
		return err
	})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, committed)

	_, err = s.Find(t.Context(), posts, "p1", true)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestOnCommit_DeliversAfterCommit(t *testing.T) {
	t.Parallel()

	s, dir, _ := newTestStore(t)
	posts := entity(t, dir, "posts")

	var committed []string
	s.OnCommit(ObserverFunc(func(_ context.Context, ch Change) {
		committed = append(committed, ch.Event.String()+":"+ch.Record.Key())
	}))

	rec := insert(t, s, posts, map[string]any{"id": "p1", "title": "A"})

	require.NoError(t, s.WithTx(t.Context(), nil, func(r *Repo) error {
		return r.Delete(t.Context(), rec)
	}))

	assert.Equal(t, []string{"created:p1", "deleted:p1"}, committed)
}

func TestRepo_UnusableAfterTransaction(t *testing.T) {
	t.Parallel()

	s, dir, _ := newTestStore(t)
	posts := entity(t, dir, "posts")

	var leaked *Repo
	require.NoError(t, s.WithTx(t.Context(), nil, func(r *Repo) error {
		leaked = r
		return nil
	}))

	_, err := leaked.Find(t.Context(), posts, "p1", false)
	require.ErrorIs(t, err, ErrTransactionFinished)
}

func TestEquivalent(t *testing.T) {
	t.Parallel()

	assert.True(t, Equivalent(int64(1), 1.0))
	assert.True(t, Equivalent("1.50", 1.5))
	assert.True(t, Equivalent(true, int64(1)))
	assert.True(t, Equivalent(nil, nil))
	assert.True(t, Equivalent(map[string]any{"a": 1}, map[string]any{"a": 1.0}))
	assert.False(t, Equivalent(nil, ""))
	assert.False(t, Equivalent("a", "b"))
	assert.False(t, Equivalent(int64(1), 2))
}

func TestParseTime(t *testing.T) {
	t.Parallel()

	want := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, in := range []string{
		"2024-03-01T12:00:00.000000Z",
		"2024-03-01T14:00:00+02:00",
		"2024-03-01 12:00:00",
	} {
		got, err := ParseTime(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), in)
	}

	_, err := ParseTime("yesterday")
	require.Error(t, err)
}
