// Package api exposes the sync engine and the entity directory over HTTP:
// a mutation endpoint, streamed list and single-entity reads, the broadcast
// websocket, health and metrics.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/tonimelisma/schema-api/internal/authz"
	"github.com/tonimelisma/schema-api/internal/metrics"
	"github.com/tonimelisma/schema-api/internal/render"
	"github.com/tonimelisma/schema-api/internal/schema"
	"github.com/tonimelisma/schema-api/internal/store"
	"github.com/tonimelisma/schema-api/internal/sync"
)

// DefaultBasePath is the route prefix used when none is configured.
const DefaultBasePath = "/schema-api"

// Defaults applied by NewServer.
const (
	DefaultRelationshipBatchSize = 500
	DefaultMaxBodySize           = 10 << 20
)

// Options holds the collaborators and settings of a Server. Tokens,
// Metrics and Broadcast are optional: without Tokens every caller is
// anonymous, and without Broadcast the websocket route is not mounted.
type Options struct {
	Directory *schema.Directory
	Store     *store.Store
	Engine    *sync.Engine
	Gate      *authz.Gate
	Tokens    *authz.Tokens
	Renderer  *render.Registry
	Metrics   *metrics.Metrics
	Broadcast http.Handler
	Logger    *slog.Logger

	BasePath              string
	RelationshipBatchSize int
	MaxBodySize           int64

	// GzipLevel returns the compression level used when a request does not
	// name one. It is read per request so config reloads apply live.
	GzipLevel func() int

	// RateLimit caps sync requests per second across all callers; zero
	// disables the limiter.
	RateLimit float64
	RateBurst int
}

// Server serves the HTTP API.
type Server struct {
	dir       *schema.Directory
	store     *store.Store
	engine    *sync.Engine
	gate      *authz.Gate
	tokens    *authz.Tokens
	renderer  *render.Registry
	metrics   *metrics.Metrics
	broadcast http.Handler
	logger    *slog.Logger

	basePath  string
	batchSize int
	maxBody   int64
	gzipLevel func() int
	limiter   *rate.Limiter

	router chi.Router
}

// NewServer builds the router.
func NewServer(opts *Options) *Server {
	s := &Server{
		dir:       opts.Directory,
		store:     opts.Store,
		engine:    opts.Engine,
		gate:      opts.Gate,
		tokens:    opts.Tokens,
		renderer:  opts.Renderer,
		metrics:   opts.Metrics,
		broadcast: opts.Broadcast,
		logger:    opts.Logger,
		basePath:  normalizeBasePath(opts.BasePath),
		batchSize: opts.RelationshipBatchSize,
		maxBody:   opts.MaxBodySize,
		gzipLevel: opts.GzipLevel,
	}

	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}

	if s.renderer == nil {
		s.renderer = render.NewRegistry()
	}

	if s.batchSize <= 0 {
		s.batchSize = DefaultRelationshipBatchSize
	}

	if s.maxBody <= 0 {
		s.maxBody = DefaultMaxBodySize
	}

	if s.gzipLevel == nil {
		s.gzipLevel = func() int { return 0 }
	}

	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = max(1, int(opts.RateLimit))
		}

		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	s.router = s.routes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// BasePath returns the route prefix in use.
func (s *Server) BasePath() string {
	return s.basePath
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestID, s.observe, middleware.Recoverer)

	r.Route(s.basePath, func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		if s.metrics != nil {
			r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
		}

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			if s.broadcast != nil {
				r.Method(http.MethodGet, "/broadcast", s.broadcast)
			}

			r.With(s.rateLimit).Put("/sync", s.handleSync)
			r.Get("/", s.handleIndex)
			r.Get("/{type}", s.handleIndex)
			r.Get("/{type}/{id}", s.handleGet)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func normalizeBasePath(p string) string {
	if p == "" {
		return DefaultBasePath
	}

	p = "/" + strings.Trim(p, "/")

	return p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
