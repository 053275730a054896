package server

import (
	"io/fs"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-chat-backend/internal/api"
	"github.com/sirosfoundation/go-chat-backend/internal/backend"
	"github.com/sirosfoundation/go-chat-backend/internal/metrics"
	"github.com/sirosfoundation/go-chat-backend/internal/realtime"
	"github.com/sirosfoundation/go-chat-backend/internal/router"
	"github.com/sirosfoundation/go-chat-backend/internal/service"
	"github.com/sirosfoundation/go-chat-backend/pkg/config"
	"github.com/sirosfoundation/go-chat-backend/pkg/middleware"
)

// App is the request-handling half of the process: the middleware pipeline,
// the ordered dispatch table and everything the handlers depend on. It owns
// no listener; Server binds one and serves App.Handler on it.
type App struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    backend.Backend
	services *service.Services
	handlers *api.Handlers
	hub      *realtime.Hub

	frontend  fs.FS
	providers []RouteProvider

	table  *router.Table
	engine *gin.Engine
	state  stateTracker
}

// AppOption customizes an App
type AppOption func(*App)

// WithFrontend serves static files and the index document from fsys
// instead of the configured directory
func WithFrontend(fsys fs.FS) AppOption {
	return func(a *App) { a.frontend = fsys }
}

// WithRouteProviders replaces the default auth and messages groups
func WithRouteProviders(providers ...RouteProvider) AppOption {
	return func(a *App) { a.providers = providers }
}

// NewApp assembles the application around store. It performs no I/O: the
// store is connected later by Server.
func NewApp(cfg *config.Config, store backend.Backend, logger *zap.Logger, opts ...AppOption) *App {
	a := &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
	}

	a.services = service.NewServices(store, cfg, logger)
	a.handlers = api.NewHandlers(a.services, cfg, logger)
	a.hub = realtime.NewHub(cfg, a.services.User, logger)
	a.services.Message.SetNotifier(a.hub)

	requireUser := middleware.RequireUser(a.services.User, cfg.JWT.CookieName, logger)
	a.providers = []RouteProvider{
		NewAuthProvider(a.handlers, requireUser, middleware.NewAuthRateLimiter(cfg.RateLimit, logger)),
		NewMessagesProvider(a.handlers, requireUser),
	}

	for _, opt := range opts {
		opt(a)
	}
	if a.frontend == nil {
		a.frontend = os.DirFS(cfg.Static.Root)
	}

	a.table = router.NewTable(logger, a.rules()...)
	a.engine = a.buildEngine()
	return a
}

// rules lists the dispatch rules in evaluation order. The collaborator
// groups come first, then the fixed service endpoints, then the front end:
// existing static files, the index document for any other read, and a 404
// for everything else.
func (a *App) rules() []router.Rule {
	rules := make([]router.Rule, 0, len(a.providers)+7)
	for _, p := range a.providers {
		rules = append(rules, router.Prefix(p.Name(), p.Prefix(), mount(p, a.logger)))
	}

	rules = append(rules,
		router.Exact("status", "/api/status", a.handlers.Status(a.stateName, string(a.store.Type())), http.MethodGet, http.MethodHead),
		router.Exact("health", "/api/health", a.handlers.Health(a.store.Ping), http.MethodGet, http.MethodHead),
	)
	if a.cfg.Metrics.Enabled {
		rules = append(rules, router.Exact("metrics", a.cfg.Metrics.Path, gin.WrapH(promhttp.Handler()), http.MethodGet))
	}
	rules = append(rules,
		router.Exact("realtime", a.cfg.Realtime.Path, a.hub.Handle, http.MethodGet),
		router.Static("static", a.frontend, a.cfg.Static.AssetsPrefix, a.logger),
		router.SPA("spa", a.frontend, a.cfg.Static.Index, a.logger),
		router.NotFound("not-found"),
	)
	return rules
}

// buildEngine wires the fixed pre-processing pipeline ahead of dispatch
func (a *App) buildEngine() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.Logger(a.logger))
	if a.cfg.Metrics.Enabled {
		engine.Use(metrics.Middleware(a.cfg.Metrics.Path))
	}
	engine.Use(middleware.Pipeline(a.cfg, a.logger)...)
	a.table.Register(engine)
	return engine
}

// Handler returns the root HTTP handler
func (a *App) Handler() http.Handler {
	return a.engine
}

// Rules lists the dispatch rule names in evaluation order
func (a *App) Rules() []string {
	return a.table.Names()
}

// State returns the current lifecycle state
func (a *App) State() State {
	return a.state.Load()
}

func (a *App) stateName() string {
	return a.State().String()
}

// Services exposes the application services
func (a *App) Services() *service.Services {
	return a.services
}

// Hub exposes the realtime hub
func (a *App) Hub() *realtime.Hub {
	return a.hub
}

// Start launches background workers
func (a *App) Start() {
	a.services.Start()
}

// Close releases realtime connections, workers and the store
func (a *App) Close() error {
	a.hub.Close()
	a.services.Stop()
	return a.store.Close()
}
