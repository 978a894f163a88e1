package websocket

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"

	gorilla "github.com/gorilla/websocket"

	stratahttp "github.com/strata-go/framework/http"
)

// HandlerFunc is the signature of a WebSocket connection handler. It
// typically calls Accept, then loops over Receive until the connection
// closes.
type HandlerFunc func(*Conn) error

// Middleware wraps a connection handler. Not invoking next rejects the
// connection: close it first (with an application code such as 4001) so
// the peer learns why.
type Middleware func(next HandlerFunc) HandlerFunc

type route struct {
	pattern *stratahttp.Pattern
	handler HandlerFunc
	chain   []Middleware
}

// Manager owns the WebSocket route table and drives one connection per
// request through upgrade, the middleware chain, and the handler. It is
// the fault boundary for connection handlers.
//
// WS routes are a separate table from HTTP routes but use the same
// matcher: literals, {name}, {name:int}, {name:path}, and * segments, with
// "more literal segments wins, else registration order" tie-breaks.
type Manager struct {
	mu     sync.RWMutex
	routes []*route
	mw     []Middleware

	upgrader      gorilla.Upgrader
	log           *slog.Logger
	strictSlashes bool
	caseSensitive bool
}

// ManagerOption configures a Manager at construction time.
type ManagerOption func(*Manager)

// WithManagerLogger sets the logger used for fault reports.
func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.log = l }
}

// WithCheckOrigin sets the origin policy applied during upgrade.
func WithCheckOrigin(fn func(r *http.Request) bool) ManagerOption {
	return func(m *Manager) { m.upgrader.CheckOrigin = fn }
}

// WithStrictSlashes makes /ws/chat and /ws/chat/ distinct paths.
func WithStrictSlashes() ManagerOption {
	return func(m *Manager) { m.strictSlashes = true }
}

// WithCaseInsensitive makes literal segments match regardless of case.
func WithCaseInsensitive() ManagerOption {
	return func(m *Manager) { m.caseSensitive = false }
}

// IsUpgrade reports whether the request asks for a WebSocket upgrade.
func IsUpgrade(r *http.Request) bool {
	return gorilla.IsWebSocketUpgrade(r)
}

// NewManager creates an empty connection manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		log:           slog.Default(),
		caseSensitive: true,
		upgrader: gorilla.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Use registers middleware for every subsequently bound route.
func (m *Manager) Use(mw ...Middleware) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mw = append(m.mw, mw...)
}

// Bind registers a connection handler under a path pattern.
//
// Like HTTP registration, a pattern that conflicts with an existing entry
// (identical segment shape) fails with *ConfigurationError at build time.
func (m *Manager) Bind(path string, handler HandlerFunc, mw ...Middleware) error {
	if handler == nil {
		return &stratahttp.ConfigurationError{Pattern: path, Message: "handler is nil"}
	}

	pattern, err := stratahttp.ParsePattern(path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.routes {
		if m.strictSlashes && existing.pattern.HasTrailingSlash() != pattern.HasTrailingSlash() {
			continue
		}
		if samePatternShape(existing.pattern, pattern, m.caseSensitive) {
			return &stratahttp.ConfigurationError{Pattern: path, Message: "conflicts with " + existing.pattern.String()}
		}
	}

	m.routes = append(m.routes, &route{
		pattern: pattern,
		handler: handler,
		chain:   append(append([]Middleware(nil), m.mw...), mw...),
	})
	return nil
}

// MustBind is like Bind but panics on error.
func (m *Manager) MustBind(path string, handler HandlerFunc, mw ...Middleware) {
	if err := m.Bind(path, handler, mw...); err != nil {
		panic(err)
	}
}

func (m *Manager) resolve(path string) (*route, map[string]string, bool) {
	segs := stratahttp.SplitPath(path, m.strictSlashes)
	trailing := stratahttp.TrailingSlash(path)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		best       *route
		bestValues []string
	)
	for _, rt := range m.routes {
		if m.strictSlashes && rt.pattern.HasTrailingSlash() != trailing {
			continue
		}
		values, ok := rt.pattern.Match(segs, m.caseSensitive)
		if !ok {
			continue
		}
		if best == nil || rt.pattern.Literals() > best.pattern.Literals() {
			best = rt
			bestValues = values
		}
	}
	if best == nil {
		return nil, nil, false
	}

	names := best.pattern.ParamNames()
	params := make(map[string]string, len(names))
	for i, name := range names {
		params[name] = bestValues[i]
	}
	return best, params, true
}

// ServeHTTP upgrades the request and runs the connection until it closes.
// The serving goroutine lives as long as the connection.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt, params, ok := m.resolve(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	sock, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the handshake error.
		return
	}

	m.serve(newConn(sock, params), rt)
}

// serve is the connection fault boundary: handler panics and returned
// errors end in a 1011 close frame if the transport is still writable; an
// explicit close issued earlier by the application takes precedence.
func (m *Manager) serve(c *Conn, rt *route) {
	defer func() {
		if rec := recover(); rec != nil {
			m.log.Error("websocket handler panicked", "pattern", rt.pattern.String(), "panic", rec)
			_ = c.Close(CloseInternalError, "internal error")
		}
	}()

	terminal := func(c *Conn) error {
		// Pre-accept middleware may have closed the connection; the
		// handler then never runs.
		if st := c.State(); st == StateClosing || st == StateClosed {
			return nil
		}
		return rt.handler(c)
	}

	err := buildChain(rt.chain, terminal)(c)
	switch {
	case err == nil:
		_ = c.Close(CloseNormal, "")
	case isClosed(err):
		// Peer went away or the handler raced a close; nothing to report.
		_ = c.Close(CloseNormal, "")
	default:
		m.log.Error("websocket handler fault", "pattern", rt.pattern.String(), "error", err)
		_ = c.Close(CloseInternalError, "internal error")
	}
}

func isClosed(err error) bool {
	var ce *ClosedError
	return errors.As(err, &ce)
}

// buildChain nests middleware around the terminal handler, first-bound
// outermost, with a fresh at-most-once continuation per connection.
func buildChain(mws []Middleware, terminal HandlerFunc) HandlerFunc {
	h := terminal
	for i := len(mws) - 1; i >= 0; i-- {
		mw := mws[i]
		if mw == nil {
			continue
		}
		next := h
		h = func(c *Conn) error {
			return mw(callOnce(next))(c)
		}
	}
	return h
}

func callOnce(next HandlerFunc) HandlerFunc {
	called := false
	return func(c *Conn) error {
		if called {
			panic(&stratahttp.ChainUsageError{Message: "continuation invoked twice"})
		}
		called = true
		return next(c)
	}
}

func samePatternShape(a, b *stratahttp.Pattern, caseSensitive bool) bool {
	return a.Shape(caseSensitive) == b.Shape(caseSensitive)
}
