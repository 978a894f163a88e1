package core

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"

	stratahttp "github.com/strata-go/framework/http"
	redisstore "github.com/strata-go/framework/store/redis"

	"github.com/strata-go/framework/store/memory"
	"github.com/strata-go/framework/websocket"
)

// App is the framework kernel and the primary entry point of the
// application.
//
// It aggregates the service container, the HTTP router, the WebSocket
// connection manager, and server configuration. Build-time state (routes,
// middleware, error handlers) must be configured before Listen.
type App struct {
	Container *Container
	Router    *stratahttp.Router
	Sockets   *websocket.Manager
	Config    *Config
	Log       *slog.Logger

	// Server is optional. If nil, Listen will create a default http.Server.
	Server *http.Server

	srv      *http.Server
	sessions *stratahttp.SessionManager
}

// New creates a new Strata application instance with a default container,
// router, and connection manager.
func New() *App {
	_ = AutoLoadEnv(".")
	cfg := NewConfig()
	if cfg.Key == "" {
		if k, err := GenerateAppKey(); err == nil {
			cfg.Key = k
		}
	}

	log := slog.Default()

	ropts := []stratahttp.RouterOption{
		stratahttp.WithLogger(log),
		stratahttp.WithDebug(cfg.Debug),
	}
	if cfg.StrictSlashes {
		ropts = append(ropts, stratahttp.StrictSlashes())
	}
	if !cfg.CaseSensitive {
		ropts = append(ropts, stratahttp.CaseInsensitive())
	}

	wopts := []websocket.ManagerOption{websocket.WithManagerLogger(log)}
	if cfg.StrictSlashes {
		wopts = append(wopts, websocket.WithStrictSlashes())
	}
	if !cfg.CaseSensitive {
		wopts = append(wopts, websocket.WithCaseInsensitive())
	}

	return &App{
		Container: NewContainer(),
		Router:    stratahttp.NewRouter(ropts...),
		Sockets:   websocket.NewManager(wopts...),
		Config:    cfg,
		Log:       log,
	}
}

// LoadEnv loads a dotenv file into the process environment
// (non-overwriting) and refreshes app config.
func (a *App) LoadEnv(path string) error {
	if err := LoadEnv(path); err != nil {
		return err
	}
	if a.Config == nil {
		a.Config = NewConfig()
		return nil
	}
	a.Config.RefreshFromEnv()
	return nil
}

// Env returns current application environment name.
func (a *App) Env() string {
	if a.Config == nil {
		return ""
	}
	return a.Config.Env
}

// Debug indicates whether the application is running in debug mode.
func (a *App) Debug() bool {
	if a.Config == nil {
		return false
	}
	return a.Config.Debug
}

// Root returns the process working directory.
func (a *App) Root() string {
	wd, _ := os.Getwd()
	return wd
}

// Web enables the default "web" middleware stack: sessions + CSRF, with
// the session store selected by SESSION_DRIVER.
func (a *App) Web() error {
	if a.Config == nil {
		a.Config = NewConfig()
	}

	store, err := a.sessionStore()
	if err != nil {
		return err
	}

	sm, err := stratahttp.NewSessionManager(a.Config.Key, store)
	if err != nil {
		return err
	}
	a.sessions = sm

	if err := Instance(a.Container, sm); err != nil {
		return err
	}

	a.Use(
		stratahttp.Sessions(sm),
		stratahttp.CSRF(sm),
	)
	return nil
}

// MustWeb is like Web but panics on error.
func (a *App) MustWeb() {
	if err := a.Web(); err != nil {
		panic(err)
	}
}

// Sessions returns the session manager, nil unless Web was called.
func (a *App) Sessions() *stratahttp.SessionManager {
	return a.sessions
}

func (a *App) sessionStore() (stratahttp.SessionStore, error) {
	switch a.Config.SessionDriver {
	case "", "memory":
		return memory.New(), nil
	case "redis":
		client := goredis.NewClient(&goredis.Options{Addr: a.Config.RedisAddr})
		return redisstore.New(client), nil
	default:
		return nil, fmt.Errorf("unknown SESSION_DRIVER %q", a.Config.SessionDriver)
	}
}

// Get registers a GET route.
func (a *App) Get(path string, handler stratahttp.HandlerFunc, opts ...stratahttp.RouteOption) {
	a.Router.Get(path, handler, opts...)
}

// Post registers a POST route.
func (a *App) Post(path string, handler stratahttp.HandlerFunc, opts ...stratahttp.RouteOption) {
	a.Router.Post(path, handler, opts...)
}

// Put registers a PUT route.
func (a *App) Put(path string, handler stratahttp.HandlerFunc, opts ...stratahttp.RouteOption) {
	a.Router.Put(path, handler, opts...)
}

// Patch registers a PATCH route.
func (a *App) Patch(path string, handler stratahttp.HandlerFunc, opts ...stratahttp.RouteOption) {
	a.Router.Patch(path, handler, opts...)
}

// Delete registers a DELETE route.
func (a *App) Delete(path string, handler stratahttp.HandlerFunc, opts ...stratahttp.RouteOption) {
	a.Router.Delete(path, handler, opts...)
}

// Group registers a group of routes under a common prefix.
func (a *App) Group(prefix string, fn func(r *stratahttp.Router)) {
	a.Router.Group(prefix, fn)
}

// Use registers middleware globally for the application.
func (a *App) Use(mw ...stratahttp.Middleware) {
	a.Router.Use(mw...)
}

// WS registers a WebSocket connection handler under a path pattern.
func (a *App) WS(path string, handler websocket.HandlerFunc, mw ...websocket.Middleware) {
	a.Sockets.MustBind(path, handler, mw...)
}

// HandleError registers an error handler for the dynamic type of target.
func (a *App) HandleError(target error, h stratahttp.ErrorHandler) {
	a.Router.Errors().Register(target, h)
}

// URL returns a route path by its name.
func (a *App) URL(name string, params map[string]string) string {
	return a.Router.URL(name, params)
}

// Views configures the directory used for rendering templates via
// Context.View().
func (a *App) Views(dir string) {
	a.Router.SetViewsDir(dir)
}

// ViewFuncs registers template functions available to every view.
func (a *App) ViewFuncs(funcs template.FuncMap) {
	a.Router.ViewFuncs(funcs)
}

// Handler returns the root http.Handler: WebSocket upgrade requests go to
// the connection manager, everything else to the router.
func (a *App) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsUpgrade(r) {
			a.Sockets.ServeHTTP(w, r)
			return
		}
		a.Router.ServeHTTP(w, r)
	})
}

// Listen starts the HTTP server on the given address.
func (a *App) Listen(addr string) error {
	srv := a.Server
	if srv == nil {
		srv = &http.Server{
			Addr:              addr,
			Handler:           a.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	if srv.Addr == "" {
		srv.Addr = addr
	}
	if srv.Handler == nil {
		srv.Handler = a.Handler()
	}

	a.srv = srv
	fmt.Printf("Strata listening on %s\n", srv.Addr)
	return srv.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server started by Listen.
func (a *App) Shutdown(ctx context.Context) error {
	if a.srv == nil {
		return nil
	}
	return a.srv.Shutdown(ctx)
}
