package http

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
)

// HandlerFunc is the primary handler signature for Strata.
type HandlerFunc func(*Context)

// Middleware wraps a handler with additional behavior.
//
// It follows a functional style: the middleware receives the next handler
// (its continuation) and returns a new handler. Invoking the continuation
// delegates to the inner layers; not invoking it short-circuits the chain.
type Middleware func(next HandlerFunc) HandlerFunc

type routeOptions struct {
	name       string
	middleware []Middleware
}

// RouteOption configures per-route behavior (named routes, middleware, ...).
type RouteOption func(*routeOptions)

// Named assigns a name to a route.
func Named(name string) RouteOption {
	return func(o *routeOptions) {
		o.name = name
	}
}

// WithMiddleware attaches middleware to a single route.
func WithMiddleware(mw ...Middleware) RouteOption {
	return func(o *routeOptions) {
		o.middleware = append(o.middleware, mw...)
	}
}

// Route is a single registered entry: one compiled pattern, a method set,
// the terminal handler, and the middleware chain scoped to it. Routes are
// created at build time and immutable thereafter.
type Route struct {
	pattern *Pattern
	methods map[string]bool
	handler HandlerFunc
	chain   []Middleware
	name    string
}

// Pattern returns the route's path template.
func (rt *Route) Pattern() string { return rt.pattern.String() }

// Methods returns the route's method set, sorted.
func (rt *Route) Methods() []string {
	out := make([]string, 0, len(rt.methods))
	for m := range rt.methods {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

type routerState struct {
	mu     sync.RWMutex
	routes []*Route
	names  map[string]*Route
	views  *viewEngine
	errors *ErrorRegistry
	log    *slog.Logger

	strictSlashes bool
	caseSensitive bool
	debug         bool

	notFound         HandlerFunc
	methodNotAllowed HandlerFunc
}

// Router is the HTTP dispatch core: a route table plus the request loop
// that resolves a path, runs the middleware chain, and converts faults into
// responses.
//
// The table is populated at application build time and not mutated while
// serving.
type Router struct {
	prefix string
	state  *routerState
	mw     []Middleware
}

// RouterOption configures a Router at construction time.
type RouterOption func(*routerState)

// StrictSlashes makes /users and /users/ distinct paths. By default the
// trailing slash is normalized away.
func StrictSlashes() RouterOption {
	return func(s *routerState) { s.strictSlashes = true }
}

// CaseInsensitive makes literal segments match regardless of case.
func CaseInsensitive() RouterOption {
	return func(s *routerState) { s.caseSensitive = false }
}

// WithLogger sets the logger used for fault reports.
func WithLogger(l *slog.Logger) RouterOption {
	return func(s *routerState) { s.log = l }
}

// WithDebug includes fault details in error responses. Leave it off in
// production.
func WithDebug(debug bool) RouterOption {
	return func(s *routerState) { s.debug = debug }
}

// WithNotFound sets a custom handler for unmatched paths.
func WithNotFound(h HandlerFunc) RouterOption {
	return func(s *routerState) { s.notFound = h }
}

// WithMethodNotAllowed sets a custom handler for method mismatches. The
// Allow header is set before the handler runs.
func WithMethodNotAllowed(h HandlerFunc) RouterOption {
	return func(s *routerState) { s.methodNotAllowed = h }
}

// NewRouter creates a new router.
func NewRouter(opts ...RouterOption) *Router {
	state := &routerState{
		names:         make(map[string]*Route),
		views:         newViewEngine("views"),
		errors:        NewErrorRegistry(),
		log:           slog.Default(),
		caseSensitive: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(state)
		}
	}
	return &Router{state: state}
}

// SetViewsDir configures the directory used for Context.View().
func (r *Router) SetViewsDir(dir string) {
	r.state.views.SetDir(dir)
}

// ViewFuncs registers template functions available to every view.
func (r *Router) ViewFuncs(funcs template.FuncMap) {
	r.state.views.AddFuncs(funcs)
}

// Errors returns the registry mapping error kinds to handlers. Configure it
// at build time.
func (r *Router) Errors() *ErrorRegistry {
	return r.state.errors
}

// Use registers middleware for the current router scope.
//
// When called on the root router, middleware becomes effectively global.
// Middleware applies to routes registered after the Use call.
func (r *Router) Use(mw ...Middleware) {
	r.mw = append(r.mw, mw...)
}

// URL returns a route path by its name, substituting params into the
// pattern's parameter segments.
func (r *Router) URL(name string, params map[string]string) string {
	r.state.mu.RLock()
	rt := r.state.names[name]
	r.state.mu.RUnlock()
	if rt == nil {
		return ""
	}

	var b strings.Builder
	for _, seg := range rt.pattern.segments {
		b.WriteByte('/')
		switch seg.kind {
		case segLiteral:
			b.WriteString(seg.literal)
		case segWildcard:
			b.WriteByte('*')
		default:
			b.WriteString(params[seg.name])
		}
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}

// Get registers a GET route.
func (r *Router) Get(path string, handler HandlerFunc, opts ...RouteOption) {
	r.mustHandle([]string{http.MethodGet}, path, handler, opts...)
}

// Post registers a POST route.
func (r *Router) Post(path string, handler HandlerFunc, opts ...RouteOption) {
	r.mustHandle([]string{http.MethodPost}, path, handler, opts...)
}

// Put registers a PUT route.
func (r *Router) Put(path string, handler HandlerFunc, opts ...RouteOption) {
	r.mustHandle([]string{http.MethodPut}, path, handler, opts...)
}

// Patch registers a PATCH route.
func (r *Router) Patch(path string, handler HandlerFunc, opts ...RouteOption) {
	r.mustHandle([]string{http.MethodPatch}, path, handler, opts...)
}

// Delete registers a DELETE route.
func (r *Router) Delete(path string, handler HandlerFunc, opts ...RouteOption) {
	r.mustHandle([]string{http.MethodDelete}, path, handler, opts...)
}

// Options registers an OPTIONS route.
func (r *Router) Options(path string, handler HandlerFunc, opts ...RouteOption) {
	r.mustHandle([]string{http.MethodOptions}, path, handler, opts...)
}

// Group creates a new router scope under prefix.
func (r *Router) Group(prefix string, fn func(r *Router)) {
	if fn == nil {
		return
	}
	child := &Router{prefix: joinPath(r.prefix, prefix), state: r.state, mw: append([]Middleware(nil), r.mw...)}
	fn(child)
}

func (r *Router) mustHandle(methods []string, path string, handler HandlerFunc, opts ...RouteOption) {
	if err := r.Handle(methods, path, handler, opts...); err != nil {
		panic(err)
	}
}

// Handle registers a handler for the given methods and path pattern.
//
// Registration fails with a *ConfigurationError when the pattern is
// malformed or conflicts with an existing entry for any overlapping method.
// Conflicts are detected on the normalized segment shape, so /users/{id}
// collides with /users/{name} but not with /users/me.
func (r *Router) Handle(methods []string, path string, handler HandlerFunc, opts ...RouteOption) error {
	if handler == nil {
		return &ConfigurationError{Pattern: path, Message: "handler is nil"}
	}
	if len(methods) == 0 {
		return &ConfigurationError{Pattern: path, Message: "no methods given"}
	}

	var ro routeOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&ro)
		}
	}

	full := joinPath(r.prefix, path)
	pattern, err := ParsePattern(full)
	if err != nil {
		return err
	}

	methodSet := make(map[string]bool, len(methods))
	for _, m := range methods {
		methodSet[strings.ToUpper(strings.TrimSpace(m))] = true
	}

	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	shape := pattern.Shape(r.state.caseSensitive)
	for _, existing := range r.state.routes {
		if existing.pattern.Shape(r.state.caseSensitive) != shape {
			continue
		}
		if r.state.strictSlashes && existing.pattern.HasTrailingSlash() != pattern.HasTrailingSlash() {
			continue
		}
		for m := range methodSet {
			if existing.methods[m] {
				return &ConfigurationError{Pattern: full, Message: "conflicts with " + existing.pattern.String() + " for " + m}
			}
		}
	}

	rt := &Route{
		pattern: pattern,
		methods: methodSet,
		handler: handler,
		chain:   append(append([]Middleware(nil), r.mw...), ro.middleware...),
		name:    ro.name,
	}

	if ro.name != "" {
		if existing := r.state.names[ro.name]; existing != nil && existing.pattern.String() != full {
			return &ConfigurationError{Pattern: full, Message: "duplicate route name " + ro.name}
		}
		r.state.names[ro.name] = rt
	}

	r.state.routes = append(r.state.routes, rt)
	return nil
}

type matchKind int

const (
	matchFound matchKind = iota
	matchNotFound
	matchMethodNotAllowed
)

// matchResult is the outcome of resolving one request path against the
// table. It lives for a single request.
type matchResult struct {
	kind   matchKind
	route  *Route
	params map[string]string
	allow  []string
}

// resolve walks registered routes in order, keeps the most specific pattern
// match (more literal segments wins, earlier registration breaks ties), and
// distinguishes "no pattern matched" from "pattern matched under another
// method" so the loop can emit 404 vs 405.
func (s *routerState) resolve(path, method string) matchResult {
	segs := pathSegments(s.normalize(path))
	trailing := TrailingSlash(path)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		best       *Route
		bestValues []string
		allow      map[string]bool
	)

	for _, rt := range s.routes {
		if s.strictSlashes && rt.pattern.HasTrailingSlash() != trailing {
			continue
		}
		values, ok := rt.pattern.Match(segs, s.caseSensitive)
		if !ok {
			continue
		}
		if !rt.methods[method] {
			if allow == nil {
				allow = make(map[string]bool)
			}
			for m := range rt.methods {
				allow[m] = true
			}
			continue
		}
		if best == nil || rt.pattern.Literals() > best.pattern.Literals() {
			best = rt
			bestValues = values
		}
	}

	if best != nil {
		names := best.pattern.params
		params := make(map[string]string, len(names))
		for i, name := range names {
			params[name] = bestValues[i]
		}
		return matchResult{kind: matchFound, route: best, params: params}
	}

	if len(allow) > 0 {
		list := make([]string, 0, len(allow))
		for m := range allow {
			list = append(list, m)
		}
		sort.Strings(list)
		return matchResult{kind: matchMethodNotAllowed, allow: list}
	}

	return matchResult{kind: matchNotFound}
}

func (s *routerState) normalize(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if !s.strictSlashes && len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}

// ServeHTTP implements http.Handler. It is the fault boundary: panics from
// middleware and handlers are recovered here and converted into responses,
// nowhere else.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	state := r.state
	rw := wrapResponseWriter(w)
	ctx := NewContext(rw, req, state.views)

	defer func() {
		if rec := recover(); rec != nil {
			state.fault(ctx, rec)
		}
	}()

	res := state.resolve(req.URL.Path, req.Method)
	switch res.kind {
	case matchNotFound:
		if state.notFound != nil {
			state.notFound(ctx)
			return
		}
		writeJSONError(rw, http.StatusNotFound, "Not Found", nil)

	case matchMethodNotAllowed:
		rw.Header().Set("Allow", strings.Join(res.allow, ", "))
		if state.methodNotAllowed != nil {
			state.methodNotAllowed(ctx)
			return
		}
		writeJSONError(rw, http.StatusMethodNotAllowed, "Method Not Allowed", nil)

	default:
		ctx.params = res.params
		ctx.route = res.route
		buildChain(res.route.chain, res.route.handler)(ctx)
	}
}

// fault converts a recovered panic into a user-visible response. Unhandled
// kinds fall back to a generic 500 plus exactly one report to the logger.
func (s *routerState) fault(ctx *Context, rec any) {
	req := ctx.Request

	switch v := rec.(type) {
	case HTTPError:
		s.renderError(ctx, v.Status, v.Message, v.Err)
	case *HTTPError:
		s.renderError(ctx, v.Status, v.Message, v.Err)
	case *ResponseSentError:
		// Nothing further can be written; report and stop.
		s.log.Error("response written twice", "method", req.Method, "path", req.URL.Path)
	case *ChainUsageError:
		s.log.Error("middleware chain misuse", "method", req.Method, "path", req.URL.Path, "error", v.Message)
		if s.debug {
			s.renderError(ctx, http.StatusInternalServerError, v.Error(), nil)
		} else {
			s.renderError(ctx, http.StatusInternalServerError, "Internal Server Error", nil)
		}
	case error:
		if h := s.errors.lookup(v); h != nil {
			s.runErrorHandler(ctx, v, h)
			return
		}
		s.log.Error("unhandled fault", "method", req.Method, "path", req.URL.Path, "error", v)
		if s.debug {
			s.renderError(ctx, http.StatusInternalServerError, v.Error(), nil)
		} else {
			s.renderError(ctx, http.StatusInternalServerError, "Internal Server Error", nil)
		}
	default:
		s.log.Error("panic in handler", "method", req.Method, "path", req.URL.Path, "panic", v)
		s.renderError(ctx, http.StatusInternalServerError, "Internal Server Error", nil)
	}
}

// runErrorHandler guards registered error handlers: if one faults itself,
// the request still ends with a generic 500 instead of crashing the server.
func (s *routerState) runErrorHandler(ctx *Context, err error, h ErrorHandler) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("error handler panicked", "error", err, "panic", rec)
			s.renderError(ctx, http.StatusInternalServerError, "Internal Server Error", nil)
		}
	}()
	h(ctx, err)
}

func (s *routerState) renderError(ctx *Context, status int, message string, err error) {
	if ctx.Response().Written() {
		s.log.Error("fault after response started", "status", status, "message", message)
		return
	}
	writeJSONError(ctx.ResponseWriter, status, message, err)
}

type fieldErrorer interface {
	FieldErrors() map[string]string
}

func writeJSONError(w http.ResponseWriter, status int, message string, err error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	payload := map[string]any{"message": message}
	if err != nil {
		if fe, ok := err.(fieldErrorer); ok {
			payload["fields"] = fe.FieldErrors()
		}
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func joinPath(prefix, path string) string {
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	if prefix == "" || prefix == "/" {
		return path
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return strings.TrimRight(prefix, "/") + path
}

func isParamSegment(seg string) (string, bool) {
	if len(seg) < 3 {
		return "", false
	}
	if seg[0] != '{' || seg[len(seg)-1] != '}' {
		return "", false
	}
	name := seg[1 : len(seg)-1]
	if name == "" || strings.ContainsAny(name, "/{}") {
		return "", false
	}
	return name, true
}
