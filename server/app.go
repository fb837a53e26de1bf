// Package server boots a preact-kit application: it mounts the API routes
// and pages of an app on a gorilla/mux router, serves its static files,
// bundles its client entry and runs the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bnolan/preact-kit/bridge"
	"github.com/bnolan/preact-kit/cache"
	"github.com/bnolan/preact-kit/config"
	"github.com/bnolan/preact-kit/inflight"
	"github.com/bnolan/preact-kit/logcolors"
	"github.com/bnolan/preact-kit/metrics"
	"github.com/bnolan/preact-kit/middleware"
	"github.com/bnolan/preact-kit/render"
	"github.com/bnolan/preact-kit/routes"
	"github.com/bnolan/preact-kit/stats"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Options describe the application to boot
type Options struct {
	// Config is the configuration to boot with. When nil, the
	// configuration loaded from the environment (config.Get) is used.
	Config      *config.Config
	APIHandlers routes.Exports
	Pages       render.Exports
	// Stats defaults to the process-wide stats
	Stats *stats.Stats
}

// App is a booted application. It owns the route registry, the response
// cache and the in-flight registry used while rendering.
type App struct {
	cfg      config.Config
	router   *mux.Router
	handler  http.Handler
	registry *routes.Registry
	bridge   *bridge.Bridge
	renderer *render.Renderer
	stats    *stats.Stats
	store    *stats.Store
	metrics  *metrics.Collector
	pages    map[string]bool

	closeOnce sync.Once
	closeErr  error
}

// CreateApp wires the application described by opts. It bundles the client
// entry synchronously, so the bundle is in place before the first request.
func CreateApp(ctx context.Context, opts Options) (*App, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := config.Get()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	st := opts.Stats
	if st == nil {
		st = stats.Get()
	}

	c, err := cache.New(cache.Options{
		MaxEntries: cfg.Cache.MaxEntries,
		MaxAge:     cfg.CacheMaxAge(),
	})
	if err != nil {
		return nil, err
	}

	registry := routes.NewRegistry()
	b := bridge.New(registry, c, inflight.NewRegistry(), bridge.WithStats(st))

	app := &App{
		cfg:      cfg,
		router:   mux.NewRouter(),
		registry: registry,
		bridge:   b,
		renderer: render.NewRenderer(b, cfg.Configuration.MaxRenderPasses).WithStats(st),
		stats:    st,
		pages:    make(map[string]bool),
	}

	if cfg.FeatureFlags.Stats {
		if err := app.openStatsStore(); err != nil {
			return nil, err
		}
	}

	if cfg.FeatureFlags.Bundle {
		if err := app.bundle(); err != nil {
			app.Close()
			return nil, err
		}
	}

	if err := app.mount(opts.APIHandlers, opts.Pages); err != nil {
		app.Close()
		return nil, err
	}

	app.handler = app.middleware(app.router)
	log.Infof("%s App ready: %d API routes, %d pages", logcolors.LogServer, registry.Len(), len(app.pages))
	return app, nil
}

// path resolves a configured path against the app root
func (a *App) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(a.cfg.Configuration.RootDir, p)
}

func (a *App) openStatsStore() error {
	store, err := stats.NewStore(a.path(a.cfg.Configuration.StatsDBPath), a.stats)
	if err != nil {
		return err
	}
	if err := store.Load(); err != nil {
		log.Warnf("%s %v", logcolors.LogStats, err)
	}
	if interval := a.cfg.Configuration.StatsAutoSaveIntervalInSeconds; interval > 0 {
		store.StartAutoSave(time.Duration(interval) * time.Second)
	}
	a.store = store
	return nil
}

func (a *App) bundle() error {
	entry := a.path(a.cfg.Configuration.ClientEntry)
	if _, err := os.Stat(entry); err != nil {
		log.Infof("%s No client entry at %s, skipping bundle", logcolors.LogBundle, entry)
		return nil
	}
	return Bundle(entry, a.path(a.cfg.Configuration.BundleOutFile))
}

// mount registers every route on the router. Order matters: operational
// endpoints, then API routes, then pages, then static files as the fallback.
func (a *App) mount(apiHandlers routes.Exports, pages render.Exports) error {
	a.router.HandleFunc("/health", a.healthHandler).Methods(http.MethodGet)
	a.router.HandleFunc("/stats", a.statsHandler).Methods(http.MethodGet)
	if a.cfg.FeatureFlags.Metrics {
		a.metrics = metrics.New(a.stats, metrics.Gauges{
			CacheEntries: a.bridge.Cache().Len,
			InFlight:     a.bridge.InFlight().Len,
			Routes:       a.registry.Len,
		})
		a.router.Handle("/metrics", a.metrics.Handler()).Methods(http.MethodGet)
		log.Infof("%s Prometheus metrics at /metrics", logcolors.LogMetrics)
	}

	apiPaths, err := routes.Discover(a.path(a.cfg.Configuration.APIDir), apiHandlers, a.registry)
	if err != nil {
		return err
	}
	for _, p := range apiPaths {
		handler, _ := a.registry.Resolve(p)
		a.router.Handle(p, a.apiHandler(handler))
	}
	a.router.PathPrefix(routes.APIPrefix + "/").HandlerFunc(a.apiNotFound)

	names := make([]string, 0, len(pages))
	for name, page := range pages {
		if page != nil {
			names = append(names, name)
		}
	}
	selected, err := routes.Select(a.path(a.cfg.Configuration.PagesDir), names)
	if err != nil {
		return err
	}
	for _, name := range selected {
		route := routes.PageRoute(name)
		a.router.Handle(route, a.pageHandler(pages[name])).Methods(http.MethodGet, http.MethodHead)
		a.pages[route] = true
		log.Infof("%s %s -> %s", logcolors.LogPage, logcolors.Route(route), name)
	}

	if publicDir := a.path(a.cfg.Configuration.PublicDir); dirExists(publicDir) {
		a.router.PathPrefix("/").Handler(http.FileServer(http.Dir(publicDir)))
		log.Infof("%s Serving static files from %s", logcolors.LogServer, publicDir)
	}
	return nil
}

func dirExists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// middleware builds the chain: logging, CORS, ops key, rate limiting on
// API routes, then instrumentation closest to the router.
func (a *App) middleware(next http.Handler) http.Handler {
	conf := a.cfg.Configuration

	handler := a.instrument(next)

	limiter := middleware.NewIPRateLimiter(rate.Limit(conf.RateLimitPerSecond), conf.RateLimitBurstLimit)
	limited := middleware.RateLimitMiddleware(limiter, a.stats)(handler)
	unlimited := handler
	handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if routes.IsAPIPath(r.URL.Path) {
			limited.ServeHTTP(w, r)
			return
		}
		unlimited.ServeHTTP(w, r)
	})

	handler = middleware.OpsKeyMiddleware(conf.OpsAPIKey, conf.OpsAPIKeyRequired, []string{"/stats", "/metrics"})(handler)

	handler = cors.New(cors.Options{
		AllowedOrigins:   conf.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowCredentials: true,
	}).Handler(handler)

	return middleware.LoggingMiddleware(handler)
}

// instrument records request counters, status codes and latencies
func (a *App) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		kind := stats.ClassifyPath(r.URL.Path, a.pages)

		rec := middleware.NewResponseRecorder(w)
		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		a.stats.RecordRequest(kind)
		a.stats.RecordStatusCode(rec.StatusCode)
		a.stats.RecordResponseTime(elapsed, kind)
		if a.metrics != nil {
			a.metrics.Observe(kind, rec.StatusCode, elapsed)
		}
	})
}

// Handler returns the root HTTP handler including all middleware
func (a *App) Handler() http.Handler {
	return a.handler
}

// Bridge returns the in-process data bridge used by page renders
func (a *App) Bridge() *bridge.Bridge {
	return a.bridge
}

// Routes returns the API route registry
func (a *App) Routes() *routes.Registry {
	return a.registry
}

// Pages returns the mounted page routes in lexical order
func (a *App) Pages() []string {
	out := make([]string, 0, len(a.pages))
	for p := range a.pages {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// ListenAndServe serves on the configured port until ctx is done, then shuts
// down gracefully and closes the app.
func (a *App) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+a.cfg.Configuration.Port)
	if err != nil {
		a.Close()
		return fmt.Errorf("failed to listen on port %s: %w", a.cfg.Configuration.Port, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("%s Listening on %s", logcolors.LogServer, ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout())
		defer cancel()

		log.Infof("%s Shutting down", logcolors.LogServer)
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	return errors.Join(err, a.Close())
}

// Close persists stats and releases the stats database. It is safe to call
// more than once.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		if a.store != nil {
			a.closeErr = a.store.Close()
		}
	})
	return a.closeErr
}
