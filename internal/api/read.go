package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tonimelisma/schema-api/internal/schema"
	"github.com/tonimelisma/schema-api/internal/store"
	"github.com/tonimelisma/schema-api/internal/stream"
	"github.com/tonimelisma/schema-api/internal/sync"
)

// resolve looks up a listed entity type. Types hidden from the API are
// reported as unknown.
func (s *Server) resolve(typ string) (*schema.Entity, error) {
	e, err := s.dir.Resolve(typ)
	if err != nil || e.APIIgnore {
		return nil, &sync.BatchError{Err: sync.ErrUnknownEntityType, Type: typ, Cause: err}
	}

	return e, nil
}

func (s *Server) allowed(ctx context.Context, ability string, e *schema.Entity, rec *store.Record) (bool, error) {
	if s.gate == nil {
		return true, nil
	}

	return s.gate.Allows(ctx, ability, e, rec)
}

// gzipParam returns the requested compression level or the configured
// default.
func (s *Server) gzipParam(q url.Values) (int, error) {
	raw := q.Get("gzip")
	if raw == "" {
		return s.gzipLevel(), nil
	}

	level, err := strconv.Atoi(raw)
	if err != nil || level < 0 || level > 9 {
		return 0, fmt.Errorf("%w: gzip must be an integer between 0 and 9", errBadRequest)
	}

	return level, nil
}

func sinceParam(q url.Values) (*time.Time, error) {
	raw := q.Get("since")
	if raw == "" {
		return nil, nil
	}

	t, err := store.ParseTime(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: since: %w", errBadRequest, err)
	}

	return &t, nil
}

// handleIndex streams one entity type, or every listed type the caller may
// list when no type is given.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	since, err := sinceParam(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	level, err := s.gzipParam(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	entities, err := s.listable(ctx, chi.URLParam(r, "type"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	sw, err := stream.NewResponse(w, http.StatusOK, stream.Options{GzipLevel: level})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	for _, e := range entities {
		if err := s.streamEntity(ctx, sw, e, since, q); err != nil {
			s.abortStream(r, err)
			return
		}
	}

	if err := sw.Close(); err != nil {
		s.abortStream(r, err)
	}
}

// listable returns the entities an index request covers. A named type the
// caller may not list is forbidden; in the all-types index such types are
// skipped.
func (s *Server) listable(ctx context.Context, typ string) ([]*schema.Entity, error) {
	if typ != "" {
		e, err := s.resolve(typ)
		if err != nil {
			return nil, err
		}

		ok, err := s.allowed(ctx, "list", e, nil)
		if err != nil {
			return nil, &sync.BatchError{Err: sync.ErrStorageFailure, Type: e.Type, Cause: err}
		}

		if !ok {
			return nil, &sync.BatchError{Err: sync.ErrForbidden, Type: e.Type}
		}

		return []*schema.Entity{e}, nil
	}

	var out []*schema.Entity

	for _, e := range s.dir.Listed() {
		ok, err := s.allowed(ctx, "list", e, nil)
		if err != nil {
			return nil, &sync.BatchError{Err: sync.ErrStorageFailure, Type: e.Type, Cause: err}
		}

		if ok {
			out = append(out, e)
		}
	}

	return out, nil
}

func (s *Server) streamEntity(ctx context.Context, sw *stream.Writer, e *schema.Entity, since *time.Time, q url.Values) error {
	query := applyModifiers(sync.DeltaQuery(e, since), q)

	cur, err := s.store.Select(ctx, query)
	if err != nil {
		return err
	}
	defer cur.Close()

	n := 0

	for cur.Next() {
		rec := cur.Record()

		if err := sw.Write(sync.Payload{
			ID:   rec.Key(),
			Type: e.Type,
			Op:   sync.Classify(e, since, rec),
			Attr: s.renderer.Render(rec),
		}); err != nil {
			return err
		}

		n++
	}

	if err := cur.Err(); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.Streamed(e.Type, n)
	}

	return nil
}

// handleGet streams one entity followed by the records of its included
// relations.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	level, err := s.gzipParam(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	e, err := s.resolve(chi.URLParam(r, "type"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")

	rec, err := s.store.Find(ctx, e, id, false)

	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, r, &sync.BatchError{Err: sync.ErrEntityNotFound, Type: e.Type, ID: id})
		return
	case err != nil:
		s.writeError(w, r, &sync.BatchError{Err: sync.ErrStorageFailure, Type: e.Type, ID: id, Cause: err})
		return
	}

	ok, err := s.allowed(ctx, "view", e, rec)
	if err != nil || !ok {
		s.writeError(w, r, &sync.BatchError{Err: sync.ErrForbidden, Type: e.Type, ID: id, Cause: err})
		return
	}

	sw, err := stream.NewResponse(w, http.StatusOK, stream.Options{GzipLevel: level})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := sw.Write(s.payload(rec)); err != nil {
		s.abortStream(r, err)
		return
	}

	if err := s.streamIncluded(ctx, sw, e, []*store.Record{rec}); err != nil {
		s.abortStream(r, err)
		return
	}

	if err := sw.Close(); err != nil {
		s.abortStream(r, err)
	}
}

func (s *Server) payload(rec *store.Record) sync.Payload {
	return sync.Payload{
		ID:   rec.Key(),
		Type: rec.Entity().Type,
		Op:   sync.KindCreate,
		Attr: s.renderer.Render(rec),
	}
}

// streamIncluded writes the related records of every included relation of
// the parents, querying parent keys in chunks of the relationship batch
// size. Related records the caller may not view are left out.
func (s *Server) streamIncluded(ctx context.Context, sw *stream.Writer, e *schema.Entity, parents []*store.Record) error {
	for _, rel := range e.IncludedRelations() {
		related := rel.Related()
		if related == nil || related.APIIgnore {
			continue
		}

		keys := make([]any, 0, len(parents))
		for _, p := range parents {
			if k := p.Get(rel.LocalKey()); k != nil {
				keys = append(keys, k)
			}
		}

		for start := 0; start < len(keys); start += s.batchSize {
			chunk := keys[start:min(start+s.batchSize, len(keys))]

			if err := s.streamRelated(ctx, sw, rel, chunk); err != nil {
				return err
			}
		}
	}

	return nil
}

func (s *Server) streamRelated(ctx context.Context, sw *stream.Writer, rel *schema.Relation, keys []any) error {
	cur, err := s.store.SelectRelated(ctx, rel, keys, false)
	if err != nil {
		return err
	}
	defer cur.Close()

	n := 0

	for cur.Next() {
		rec := cur.Record()

		if ok, err := s.allowed(ctx, "view", rel.Related(), rec); err != nil || !ok {
			continue
		}

		if err := sw.Write(s.payload(rec)); err != nil {
			return err
		}

		n++
	}

	if err := cur.Err(); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.Streamed(rel.Type, n)
	}

	return nil
}

// abortStream logs a failure after the status line was sent. The client
// sees a truncated stream.
func (s *Server) abortStream(r *http.Request, err error) {
	logger := s.requestLogger(r)

	if isClientGone(r.Context(), err) {
		logger.Debug("client went away mid-stream", slog.String("error", err.Error()))
		return
	}

	logger.Error("stream aborted", slog.String("error", err.Error()))
}

// applyModifiers adds the query modifiers the entity opted into, in their
// declared order. Unknown or disallowed columns are ignored.
func applyModifiers(query store.Query, q url.Values) store.Query {
	e := query.Entity

	for _, m := range e.Modifiers {
		switch m {
		case schema.ModifierFilter:
			query.Where = append(query.Where, filterConditions(e, q)...)
		case schema.ModifierSort:
			query.OrderBy = append(query.OrderBy, sortOrder(e, q.Get("sort"))...)
		case schema.ModifierLatest:
			if e.HasColumn(schema.CreatedAtColumn) {
				query.OrderBy = append(query.OrderBy, store.Order{Column: schema.CreatedAtColumn, Desc: true})
			}
		}
	}

	return query
}

// filterConditions reads filter[column]=value parameters. An empty value
// matches NULL and a comma-separated value matches any of its items.
func filterConditions(e *schema.Entity, q url.Values) []store.Condition {
	var out []store.Condition

	for _, col := range allowedColumns(e, e.Filterable) {
		values, ok := q["filter["+col+"]"]
		if !ok || len(values) == 0 {
			continue
		}

		v := values[0]

		switch {
		case v == "":
			out = append(out, store.Condition{Column: col, Op: store.OpIsNull})
		case strings.Contains(v, ","):
			items := strings.Split(v, ",")
			in := make([]any, len(items))

			for i, it := range items {
				in[i] = strings.TrimSpace(it)
			}

			out = append(out, store.Condition{Column: col, Op: store.OpIn, Values: in})
		default:
			out = append(out, store.Condition{Column: col, Op: store.OpEq, Values: []any{v}})
		}
	}

	return out
}

// sortOrder parses sort=-a,b into descending a then ascending b.
func sortOrder(e *schema.Entity, raw string) []store.Order {
	allowed := allowedColumns(e, e.Sortable)

	var out []store.Order

	for piece := range strings.SplitSeq(raw, ",") {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}

		col, desc := strings.CutPrefix(piece, "-")
		if !slices.Contains(allowed, col) {
			continue
		}

		out = append(out, store.Order{Column: col, Desc: desc})
	}

	return out
}

// allowedColumns returns the declared list, or every column when none is
// declared.
func allowedColumns(e *schema.Entity, declared []string) []string {
	if len(declared) > 0 {
		return declared
	}

	return e.ColumnNames()
}
