package api

import (
	"bufio"
	"compress/gzip"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/schema-api/internal/authz"
	"github.com/tonimelisma/schema-api/internal/metrics"
	"github.com/tonimelisma/schema-api/internal/render"
	"github.com/tonimelisma/schema-api/internal/schema"
	"github.com/tonimelisma/schema-api/internal/store"
	"github.com/tonimelisma/schema-api/internal/stream"
	"github.com/tonimelisma/schema-api/internal/sync"
	"github.com/tonimelisma/schema-api/internal/validate"
	"github.com/tonimelisma/schema-api/testutil"
)

const testSecret = "test-secret"

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// testClock advances 10ms on every reading.
type testClock struct{ t time.Time }

func (c *testClock) now() time.Time {
	c.t = c.t.Add(10 * time.Millisecond)
	return c.t
}

type testEnv struct {
	dbPath string
	store  *store.Store
	dir    *schema.Directory
	clock  *testClock
	tokens *authz.Tokens
	srv    *httptest.Server
	base   string
}

type envConfig struct {
	defaultPolicy string
	opts          Options
}

type envOption func(*envConfig)

func withDefaultPolicy(p string) envOption {
	return func(c *envConfig) { c.defaultPolicy = p }
}

func withOptions(fn func(*Options)) envOption {
	return func(c *envConfig) { fn(&c.opts) }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	ctx := t.Context()
	logger := testLogger(t)
	clock := &testClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	dbPath := filepath.Join(t.TempDir(), "api.db")

	s, err := store.Open(ctx, dbPath, store.Options{Logger: logger, Now: clock.now})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.Migrate(ctx, testutil.Migrations())
	require.NoError(t, err)

	f, err := schema.Parse(testutil.Schema(), schema.FormatTOML)
	require.NoError(t, err)

	dir, err := schema.Build(ctx, f, s, schema.Options{Logger: logger})
	require.NoError(t, err)

	sync.NewCascadeEngine(sync.DefaultRestoreTolerance, logger).Install(s.Hooks())

	cfg := &envConfig{defaultPolicy: authz.PolicyAllow}
	for _, opt := range opts {
		opt(cfg)
	}

	gate, err := authz.NewGate(dir, cfg.defaultPolicy, logger)
	require.NoError(t, err)

	validator, err := validate.New(dir, logger)
	require.NoError(t, err)

	m := metrics.New()
	tokens := authz.NewTokens(testSecret, "")

	engine := sync.NewEngine(&sync.EngineConfig{
		Directory:  dir,
		Store:      s,
		Authorizer: gate,
		Validator:  validator,
		Recorder:   m,
		Logger:     logger,
	})

	o := cfg.opts
	o.Directory = dir
	o.Store = s
	o.Engine = engine
	o.Gate = gate
	o.Tokens = tokens
	o.Renderer = render.NewRegistry()
	o.Metrics = m
	o.Logger = logger

	srv := httptest.NewServer(NewServer(&o))
	t.Cleanup(srv.Close)

	return &testEnv{
		dbPath: dbPath,
		store:  s,
		dir:    dir,
		clock:  clock,
		tokens: tokens,
		srv:    srv,
		base:   srv.URL + DefaultBasePath,
	}
}

func (env *testEnv) entity(t *testing.T, typ string) *schema.Entity {
	t.Helper()

	e, err := env.dir.Resolve(typ)
	require.NoError(t, err)

	return e
}

func (env *testEnv) insert(t *testing.T, typ string, attrs map[string]any) *store.Record {
	t.Helper()

	rec := store.NewRecord(env.entity(t, typ))
	for k, v := range attrs {
		rec.Set(k, v)
	}

	env.save(t, rec)

	return rec
}

func (env *testEnv) save(t *testing.T, rec *store.Record) {
	t.Helper()

	require.NoError(t, env.store.WithTx(t.Context(), nil, func(r *store.Repo) error {
		_, err := r.Save(t.Context(), rec)
		return err
	}))
}

func (env *testEnv) delete(t *testing.T, rec *store.Record) {
	t.Helper()

	require.NoError(t, env.store.WithTx(t.Context(), nil, func(r *store.Repo) error {
		return r.Delete(t.Context(), rec)
	}))
}

// exec runs raw SQL for tables that are not exposed as entities.
func (env *testEnv) exec(t *testing.T, query string) {
	t.Helper()

	db, err := sql.Open("sqlite", env.dbPath)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.ExecContext(t.Context(), query)
	require.NoError(t, err)
}

func (env *testEnv) token(t *testing.T, subject string) string {
	t.Helper()

	tok, err := env.tokens.Issue(subject, time.Hour)
	require.NoError(t, err)

	return tok
}

type request struct {
	method  string
	path    string
	body    string
	token   string
	headers map[string]string
}

func (env *testEnv) do(t *testing.T, req request) *http.Response {
	t.Helper()

	if req.method == "" {
		req.method = http.MethodGet
	}

	var body io.Reader
	if req.body != "" {
		body = strings.NewReader(req.body)
	}

	r, err := http.NewRequestWithContext(t.Context(), req.method, env.base+req.path, body)
	require.NoError(t, err)

	if req.token != "" {
		r.Header.Set("Authorization", "Bearer "+req.token)
	}

	for k, v := range req.headers {
		r.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(r)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	return resp
}

// lines decodes an NDJSON body.
func lines(t *testing.T, r io.Reader) []sync.Payload {
	t.Helper()

	var out []sync.Payload

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		var p sync.Payload
		require.NoError(t, json.Unmarshal(sc.Bytes(), &p), sc.Text())
		out = append(out, p)
	}

	require.NoError(t, sc.Err())

	return out
}

func summary(ps []sync.Payload) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Type+" "+p.ID+" "+string(p.Op))
	}

	return out
}

func decodeError(t *testing.T, resp *http.Response) errorBody {
	t.Helper()

	var body errorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	return body
}

func TestSync_StreamsPersistedOperations(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	resp := env.do(t, request{
		method: http.MethodPut,
		path:   "/sync",
		body: `[
			{"id":"u1","type":"users","op":"C","attr":{"name":"Ada","email":"ada@example.com"}},
			{"id":"p1","type":"posts","op":"C","attr":{"title":"first","author_id":"u1"}},
			{"id":"p1","type":"posts","op":"U","attr":{"title":"second"}},
			{"id":"p2","type":"posts","op":"C","attr":{"title":"gone"}},
			{"id":"p2","type":"posts","op":"D"}
		]`,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, stream.ContentType, resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	got := lines(t, resp.Body)
	require.Equal(t, []string{"users u1 C", "posts p1 C"}, summary(got))

	assert.Equal(t, "Ada", got[0].Attr["name"])
	assert.NotContains(t, got[0].Attr, "email", "hidden column")
	assert.Equal(t, "second", got[1].Attr["title"])
	assert.NotEmpty(t, got[1].Attr["created_at"])
}

func TestSync_ErrorStatuses(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.insert(t, "users", map[string]any{"id": "u1", "name": "Ada", "email": "a@example.com"})

	tests := []struct {
		name   string
		body   string
		status int
		want   errorBody
	}{
		{
			name:   "malformed json",
			body:   `[{"id":`,
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown op",
			body:   `[{"id":"u1","type":"users","op":"X"}]`,
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown type",
			body:   `[{"id":"x1","type":"nope","op":"C"}]`,
			status: http.StatusNotFound,
			want:   errorBody{Error: "unknown entity type", ID: "x1", Type: "nope"},
		},
		{
			name:   "ignored type",
			body:   `[{"id":"s1","type":"secrets","op":"C","attr":{"value":"v"}}]`,
			status: http.StatusNotFound,
			want:   errorBody{Error: "unknown entity type", ID: "s1", Type: "secrets"},
		},
		{
			name:   "missing record",
			body:   `[{"id":"p9","type":"posts","op":"U","attr":{"title":"t"}}]`,
			status: http.StatusNotFound,
			want:   errorBody{Error: "entity not found", ID: "p9", Type: "posts"},
		},
		{
			name:   "forbidden",
			body:   `[{"id":"u1","type":"users","op":"D"}]`,
			status: http.StatusForbidden,
			want:   errorBody{Error: "forbidden", ID: "u1", Type: "users"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, request{method: http.MethodPut, path: "/sync", body: tt.body})
			require.Equal(t, tt.status, resp.StatusCode)

			body := decodeError(t, resp)
			if tt.want.Error != "" {
				assert.Equal(t, tt.want, body)
			} else {
				assert.True(t, strings.HasPrefix(body.Error, "invalid batch"), body.Error)
			}
		})
	}
}

func TestSync_ValidationFailureListsEveryOperation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	resp := env.do(t, request{
		method: http.MethodPut,
		path:   "/sync",
		body: `[
			{"id":"o1","type":"orders","op":"C","attr":{"owner_id":"u1"}},
			{"id":"o2","type":"orders","op":"C","attr":{"number":"x","text":"ok"}},
			{"id":"o3","type":"orders","op":"C","attr":{"number":3,"text":"fine"}}
		]`,
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var entries []sync.ValidationEntry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	require.Len(t, entries, 2)

	assert.Equal(t, "o1", entries[0].ID)
	assert.Equal(t, "orders", entries[0].Type)
	assert.Contains(t, entries[0].Errors, "number")
	assert.Contains(t, entries[0].Errors, "text")

	assert.Equal(t, "o2", entries[1].ID)
	assert.Contains(t, entries[1].Errors, "number")
	assert.NotContains(t, entries[1].Errors, "text")

	index := env.do(t, request{path: "/orders"})
	require.Equal(t, http.StatusOK, index.StatusCode)
	assert.Empty(t, lines(t, index.Body), "nothing is written")
}

func TestSync_Authentication(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, withDefaultPolicy(authz.PolicyAuthenticated))
	body := `[{"id":"c1","type":"categories","op":"C","attr":{"name":"news"}}]`

	resp := env.do(t, request{method: http.MethodPut, path: "/sync", body: body, token: "garbage"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid token", decodeError(t, resp).Error)

	resp = env.do(t, request{method: http.MethodPut, path: "/sync", body: body})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, request{method: http.MethodPut, path: "/sync", body: body, token: env.token(t, "u1")})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"categories c1 C"}, summary(lines(t, resp.Body)))
}

func TestSync_Limits(t *testing.T) {
	t.Parallel()

	t.Run("rate", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, withOptions(func(o *Options) {
			o.RateLimit = 0.001
			o.RateBurst = 1
		}))

		first := env.do(t, request{method: http.MethodPut, path: "/sync", body: `[]`})
		assert.Equal(t, http.StatusOK, first.StatusCode)

		second := env.do(t, request{method: http.MethodPut, path: "/sync", body: `[]`})
		assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
		assert.Equal(t, "1", second.Header.Get("Retry-After"))

		// Reads are not limited.
		assert.Equal(t, http.StatusOK, env.do(t, request{path: "/posts"}).StatusCode)
	})

	t.Run("body size", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, withOptions(func(o *Options) { o.MaxBodySize = 16 }))

		resp := env.do(t, request{
			method: http.MethodPut,
			path:   "/sync",
			body:   `[{"id":"c1","type":"categories","op":"C","attr":{"name":"a long category name"}}]`,
		})
		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	})
}

func TestIndex_AllListedTypes(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.insert(t, "users", map[string]any{"id": "u1", "name": "Ada", "email": "a@example.com"})
	env.insert(t, "posts", map[string]any{"id": "p1", "title": "hello"})
	env.insert(t, "secrets", map[string]any{"id": "s1", "value": "hidden"})

	resp := env.do(t, request{path: "/"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := summary(lines(t, resp.Body))
	assert.ElementsMatch(t, []string{"users u1 C", "posts p1 C"}, got)
}

func TestIndex_Delta(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	edited := env.insert(t, "posts", map[string]any{"id": "p1", "title": "edited"})
	env.insert(t, "posts", map[string]any{"id": "p2", "title": "untouched"})
	removed := env.insert(t, "posts", map[string]any{"id": "p3", "title": "removed"})

	since := env.clock.t.Add(time.Millisecond)

	edited.Set("title", "edited again")
	env.save(t, edited)
	env.delete(t, removed)
	env.insert(t, "posts", map[string]any{"id": "p4", "title": "fresh"})

	resp := env.do(t, request{path: "/posts?since=" + url.QueryEscape(store.FormatTime(since))})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	// posts are listed latest first.
	assert.Equal(t, []string{"posts p4 C", "posts p3 D", "posts p1 U"}, summary(lines(t, resp.Body)))

	full := env.do(t, request{path: "/posts"})
	assert.Equal(t, []string{"posts p4 C", "posts p2 C", "posts p1 C"}, summary(lines(t, full.Body)))
}

func TestIndex_QueryModifiers(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.insert(t, "users", map[string]any{"id": "u1", "name": "Ada", "email": "a@example.com"})
	env.insert(t, "users", map[string]any{"id": "u2", "name": "Bob", "email": "b@example.com"})
	env.insert(t, "posts", map[string]any{"id": "p1", "title": "a", "published": 1, "author_id": "u1"})
	env.insert(t, "posts", map[string]any{"id": "p2", "title": "b", "published": 1, "author_id": "u2"})
	env.insert(t, "posts", map[string]any{"id": "p3", "title": "c", "published": 0})

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"latest first", "", []string{"posts p3 C", "posts p2 C", "posts p1 C"}},
		{"sort descending", "?sort=-title", []string{"posts p3 C", "posts p2 C", "posts p1 C"}},
		{"sort ascending", "?sort=title", []string{"posts p1 C", "posts p2 C", "posts p3 C"}},
		{"sort ignores unknown columns", "?sort=content,title", []string{"posts p1 C", "posts p2 C", "posts p3 C"}},
		{"filter equals", "?filter[published]=1&sort=title", []string{"posts p1 C", "posts p2 C"}},
		{"filter null", "?filter[author_id]=", []string{"posts p3 C"}},
		{"filter list", "?filter[author_id]=u1,%20u2&sort=title", []string{"posts p1 C", "posts p2 C"}},
		{"filter ignores undeclared columns", "?filter[title]=a&sort=title", []string{"posts p1 C", "posts p2 C", "posts p3 C"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, request{path: "/posts" + tt.query})
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.want, summary(lines(t, resp.Body)))
		})
	}
}

func TestIndex_Errors(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	tests := []struct {
		path   string
		status int
	}{
		{"/nope", http.StatusNotFound},
		{"/secrets", http.StatusNotFound},
		{"/posts?gzip=12", http.StatusBadRequest},
		{"/posts?gzip=fast", http.StatusBadRequest},
		{"/posts?since=yesterday", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp := env.do(t, request{path: tt.path})
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.NotEmpty(t, decodeError(t, resp).Error)
		})
	}
}

func TestIndex_ListPolicy(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, withDefaultPolicy(authz.PolicyAuthenticated))
	env.insert(t, "posts", map[string]any{"id": "p1", "title": "hello"})

	resp := env.do(t, request{path: "/posts"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, errorBody{Error: "forbidden", Type: "posts"}, decodeError(t, resp))

	all := env.do(t, request{path: "/"})
	require.Equal(t, http.StatusOK, all.StatusCode)
	assert.Empty(t, lines(t, all.Body), "unlisted types are skipped")

	authed := env.do(t, request{path: "/posts", token: env.token(t, "u1")})
	require.Equal(t, http.StatusOK, authed.StatusCode)
	assert.Equal(t, []string{"posts p1 C"}, summary(lines(t, authed.Body)))
}

func TestIndex_Gzip(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.insert(t, "posts", map[string]any{"id": "p1", "title": "hello"})

	// Setting Accept-Encoding stops the client from decompressing.
	resp := env.do(t, request{path: "/posts?gzip=6", headers: map[string]string{"Accept-Encoding": "gzip"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))

	zr, err := gzip.NewReader(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, []string{"posts p1 C"}, summary(lines(t, zr)))

	plain := env.do(t, request{path: "/posts?gzip=0", headers: map[string]string{"Accept-Encoding": "gzip"}})
	assert.Empty(t, plain.Header.Get("Content-Encoding"))
}

func TestIndex_DefaultGzipLevel(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, withOptions(func(o *Options) { o.GzipLevel = func() int { return 1 } }))

	resp := env.do(t, request{path: "/posts", headers: map[string]string{"Accept-Encoding": "gzip"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
}

func TestGet_StreamsEntityWithIncludedRelations(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.insert(t, "users", map[string]any{"id": "u1", "name": "Ada", "email": "a@example.com"})
	env.insert(t, "posts", map[string]any{"id": "p1", "title": "hello", "author_id": "u1"})
	env.insert(t, "posts", map[string]any{"id": "p2", "title": "other"})
	env.insert(t, "comments", map[string]any{"id": "c1", "post_id": "p1", "body": "one"})
	env.insert(t, "comments", map[string]any{"id": "c2", "post_id": "p1", "body": "two"})
	env.insert(t, "comments", map[string]any{"id": "c3", "post_id": "p2", "body": "elsewhere"})
	env.insert(t, "attachments", map[string]any{"id": "a1", "post_id": "p1", "path": "/a"})
	env.insert(t, "categories", map[string]any{"id": "k1", "name": "news"})
	env.insert(t, "categories", map[string]any{"id": "k2", "name": "misc"})
	env.exec(t, `INSERT INTO category_posts (category_id, post_id) VALUES ('k1', 'p1'), ('k2', 'p2')`)

	resp := env.do(t, request{path: "/posts/p1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := lines(t, resp.Body)
	assert.Equal(t, []string{
		"posts p1 C",
		"users u1 C",
		"comments c1 C",
		"comments c2 C",
		"categories k1 C",
	}, summary(got))
	assert.Equal(t, "hello", got[0].Attr["title"])
}

func TestGet_Errors(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.insert(t, "users", map[string]any{"id": "u1", "name": "Ada", "email": "a@example.com"})
	env.insert(t, "orders", map[string]any{"id": "o1", "number": 1, "text": "mine", "owner_id": "u1"})

	resp := env.do(t, request{path: "/orders/o9", token: env.token(t, "u1")})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, errorBody{Error: "entity not found", ID: "o9", Type: "orders"}, decodeError(t, resp))

	resp = env.do(t, request{path: "/orders/o1", token: env.token(t, "u2")})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, request{path: "/orders/o1"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, request{path: "/orders/o1", token: env.token(t, "u1")})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"orders o1 C"}, summary(lines(t, resp.Body)))

	resp = env.do(t, request{path: "/secrets/s1"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	resp := env.do(t, request{path: "/health"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]string{"status": "ok"}, func() map[string]string {
		var m map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
		return m
	}())

	env.do(t, request{method: http.MethodPut, path: "/sync", body: `[]`})

	resp = env.do(t, request{path: "/metrics"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `schema_api_http_requests_total{code="200",method="PUT",route="/schema-api/sync"} 1`)
	assert.Contains(t, string(body), `schema_api_sync_batches_total{result="ok"} 1`)
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	id := "0b9e4c39-4c6f-4d2a-8c55-3c1c4b0d6a11"

	resp := env.do(t, request{path: "/health", headers: map[string]string{RequestIDHeader: id}})
	assert.Equal(t, id, resp.Header.Get(RequestIDHeader))

	resp = env.do(t, request{path: "/health", headers: map[string]string{RequestIDHeader: "not-a-uuid"}})
	assert.NotEqual(t, "not-a-uuid", resp.Header.Get(RequestIDHeader))
	assert.Len(t, resp.Header.Get(RequestIDHeader), 36)
}

func TestNormalizeBasePath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultBasePath, normalizeBasePath(""))
	assert.Equal(t, "/api", normalizeBasePath("api/"))
	assert.Equal(t, "/v1/sync-api", normalizeBasePath("/v1/sync-api"))
}
