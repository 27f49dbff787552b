package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/schema-api/internal/api"
	"github.com/tonimelisma/schema-api/internal/authz"
	"github.com/tonimelisma/schema-api/internal/broadcast"
	"github.com/tonimelisma/schema-api/internal/config"
	"github.com/tonimelisma/schema-api/internal/metrics"
	"github.com/tonimelisma/schema-api/internal/render"
	"github.com/tonimelisma/schema-api/internal/schema"
	"github.com/tonimelisma/schema-api/internal/store"
	"github.com/tonimelisma/schema-api/internal/sync"
	"github.com/tonimelisma/schema-api/internal/validate"
)

const readHeaderTimeout = 10 * time.Second

// app is one assembled server: database, entity directory and HTTP API.
type app struct {
	store    *store.Store
	dir      *schema.Directory
	server   *api.Server
	listener *broadcast.Listener // set in model-events broadcasting mode
}

// openDirectory opens the database, applies migrations when a directory is
// configured, and builds the entity directory from the schema file.
func openDirectory(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*store.Store, *schema.Directory, error) {
	st, err := store.Open(ctx, cfg.Database.Path, store.Options{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		Logger:       logger,
	})
	if err != nil {
		return nil, nil, err
	}

	if dir := cfg.Database.MigrationsDir; dir != "" {
		if _, err := st.Migrate(ctx, os.DirFS(dir)); err != nil {
			st.Close()
			return nil, nil, err
		}
	}

	file, err := schema.LoadFile(cfg.Schema.Path)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	dir, err := schema.Build(ctx, file, st, schema.Options{
		Autodiscover: cfg.Schema.Autodiscover,
		Resolvers:    cfg.Schema.Resolvers,
		Decorators:   cfg.Schema.Decorators,
		Logger:       logger,
	})
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	return st, dir, nil
}

// newApp wires every component for the config in holder.
func newApp(ctx context.Context, holder *config.Holder, logger *slog.Logger) (*app, error) {
	cfg := holder.Config()

	st, dir, err := openDirectory(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	a, err := assemble(cfg, holder, st, dir, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	return a, nil
}

func assemble(cfg *config.Config, holder *config.Holder, st *store.Store, dir *schema.Directory, logger *slog.Logger) (*app, error) {
	validator, err := validate.New(dir, logger)
	if err != nil {
		return nil, err
	}

	gate, err := authz.NewGate(dir, cfg.Auth.DefaultPolicy, logger)
	if err != nil {
		return nil, err
	}

	var tokens *authz.Tokens
	if cfg.Auth.JWTSecret != "" {
		tokens = authz.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	}

	sync.NewCascadeEngine(cfg.Sync.RestoreToleranceDuration(), logger).Install(st.Hooks())

	m := metrics.New()
	renderer := render.NewRegistry()

	engineCfg := &sync.EngineConfig{
		Directory:  dir,
		Store:      st,
		Authorizer: gate,
		Validator:  validator,
		Recorder:   m,
		Logger:     logger,
	}

	a := &app{store: st, dir: dir}

	var ws http.Handler

	if cfg.Broadcasting.Enabled {
		viewer, err := dir.Resolve(cfg.Broadcasting.ViewerType)
		if err != nil {
			return nil, fmt.Errorf("broadcasting viewer type: %w", err)
		}

		hub := broadcast.NewHub()
		b := broadcast.NewBroadcaster(hub, &broadcast.GateViewers{Store: st, Viewer: viewer, Gate: gate}, renderer, m, logger)

		switch cfg.Broadcasting.Mode {
		case config.ModeModelEvents:
			a.listener = broadcast.NewListener(b, cfg.Broadcasting.QueueSize, m, logger)
			st.OnCommit(a.listener)
		default:
			engineCfg.Notifier = b
		}

		ws = &broadcast.WebsocketHandler{
			Hub:            hub,
			Buffer:         cfg.Broadcasting.SubscriberBuffer,
			OriginPatterns: cfg.HTTP.AllowedOrigins,
			Gauge:          m,
			Logger:         logger,
		}

		logger.Info("broadcasting enabled",
			slog.String("mode", cfg.Broadcasting.Mode),
			slog.String("viewer_type", viewer.Type),
		)
	}

	a.server = api.NewServer(&api.Options{
		Directory:             dir,
		Store:                 st,
		Engine:                sync.NewEngine(engineCfg),
		Gate:                  gate,
		Tokens:                tokens,
		Renderer:              renderer,
		Metrics:               m,
		Broadcast:             ws,
		Logger:                logger,
		BasePath:              cfg.HTTP.BasePath,
		RelationshipBatchSize: cfg.HTTP.RelationshipBatchSize,
		MaxBodySize:           cfg.HTTP.MaxBodyBytes(),
		GzipLevel:             holder.GzipLevel,
		RateLimit:             cfg.HTTP.RateLimit,
		RateBurst:             cfg.HTTP.RateBurst,
	})

	return a, nil
}

// Close releases the database.
func (a *app) Close() error {
	return a.store.Close()
}

// serve runs the HTTP server on ln together with the broadcast listener and
// the config watchers until ctx is canceled, then shuts the server down
// within the configured timeout.
func (a *app) serve(ctx context.Context, ln net.Listener, holder *config.Holder, onReload config.ReloadFunc, logger *slog.Logger) error {
	srv := &http.Server{
		Handler:           a.server,
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server listening",
			slog.String("addr", ln.Addr().String()),
			slog.String("base_path", a.server.BasePath()),
		)

		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		timeout := holder.Config().HTTP.ShutdownTimeoutDuration()
		logger.Info("shutting down server", slog.Duration("timeout", timeout))

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), timeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http: %w", err)
		}

		return nil
	})

	if a.listener != nil {
		g.Go(func() error { return a.listener.Run(gctx) })
	}

	g.Go(func() error { return config.Watch(gctx, holder, onReload, logger) })

	g.Go(func() error {
		reloadOnSIGHUP(gctx, func() { _ = config.Reload(holder, onReload, logger) })
		return nil
	})

	return g.Wait()
}
