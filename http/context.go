package http

import (
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
)

// Context wraps the response writer and *http.Request for one dispatch and
// provides ergonomic helpers.
//
// A Context is owned by the goroutine serving its request and must not be
// retained after the handler returns.
type Context struct {
	ResponseWriter ResponseWriter
	Request        *http.Request

	params map[string]string
	route  *Route
	views  *viewEngine
	values map[string]any

	session *Session
	csrf    string
}

// HTTPError is a typed error used to propagate HTTP failures through panics.
//
// The dispatch loop recovers these and converts them into responses.
type HTTPError struct {
	Status  int
	Message string
	Err     error
}

func (e HTTPError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e HTTPError) Unwrap() error { return e.Err }

// Validator is the narrow capability the framework expects from a schema
// validator collaborator.
type Validator interface {
	Validate(v any) error
}

// NewContext creates a new request context.
func NewContext(w ResponseWriter, r *http.Request, views *viewEngine) *Context {
	return &Context{ResponseWriter: w, Request: r, views: views}
}

// Response returns the response writer with status/size inspection.
func (c *Context) Response() ResponseWriter {
	return c.ResponseWriter
}

// Param returns a route parameter by name.
func (c *Context) Param(name string) string {
	if c.params == nil {
		return ""
	}
	return c.params[name]
}

// Params returns a copy of all route parameters.
func (c *Context) Params() map[string]string {
	out := make(map[string]string, len(c.params))
	for k, v := range c.params {
		out[k] = v
	}
	return out
}

// Route returns the matched route, or nil for 404/405 handlers.
func (c *Context) Route() *Route {
	return c.route
}

// Set stores a request-scoped value. Values set by outer middleware are
// visible to all inner layers and the handler.
func (c *Context) Set(key string, value any) {
	if c.values == nil {
		c.values = make(map[string]any)
	}
	c.values[key] = value
}

// Value returns a request-scoped value previously stored with Set.
func (c *Context) Value(key string) any {
	if c.values == nil {
		return nil
	}
	return c.values[key]
}

// Cancelled reports whether the client went away or the request deadline
// passed. Middleware post-phases should avoid further I/O once this is true.
func (c *Context) Cancelled() bool {
	return c.Request.Context().Err() != nil
}

// Session returns the current request session.
//
// It is nil unless the Sessions middleware is enabled.
func (c *Context) Session() *Session {
	return c.session
}

// CSRFToken returns the CSRF token for the current session.
//
// It is empty unless Sessions+CSRF middleware is enabled.
func (c *Context) CSRFToken() string {
	return c.csrf
}

// MustValidate validates v with the given validator collaborator.
//
// On failure, it panics with an HTTPError (422) and attaches the validation
// error as Err.
func (c *Context) MustValidate(v any, with Validator) {
	if with == nil {
		return
	}
	if err := with.Validate(v); err != nil {
		panic(HTTPError{Status: http.StatusUnprocessableEntity, Message: "Validation failed", Err: err})
	}
}

// JSON writes a JSON response.
func (c *Context) JSON(status int, data any) {
	c.ResponseWriter.Header().Set("Content-Type", "application/json; charset=utf-8")
	c.ResponseWriter.WriteHeader(status)
	if err := json.NewEncoder(c.ResponseWriter).Encode(data); err != nil {
		panic(HTTPError{Status: http.StatusInternalServerError, Message: "Failed to encode JSON", Err: err})
	}
}

// String writes a plain-text response.
func (c *Context) String(status int, text string) {
	c.ResponseWriter.Header().Set("Content-Type", "text/plain; charset=utf-8")
	c.ResponseWriter.WriteHeader(status)
	_, _ = io.WriteString(c.ResponseWriter, text)
}

// NoContent writes an empty response with the given status.
func (c *Context) NoContent(status int) {
	c.ResponseWriter.WriteHeader(status)
}

// View renders an HTML template from the configured views directory.
// Templates can call {{csrf}} to embed the current session's CSRF token.
//
// On failure, it panics with an HTTPError (500).
func (c *Context) View(name string, data any) {
	if c.views == nil {
		panic(HTTPError{Status: http.StatusInternalServerError, Message: "View engine is not configured"})
	}

	c.ResponseWriter.Header().Set("Content-Type", "text/html; charset=utf-8")
	c.ResponseWriter.WriteHeader(http.StatusOK)

	funcs := template.FuncMap{
		"csrf": func() string { return c.csrf },
	}
	if err := c.views.Render(c.ResponseWriter, name, data, funcs); err != nil {
		panic(HTTPError{Status: http.StatusInternalServerError, Message: "Failed to render view", Err: err})
	}
}

// MustBind decodes the JSON request body into v and validates that:
// - JSON is syntactically valid
// - Unknown fields are rejected
// - The body contains exactly one JSON value
//
// On failure, it panics with an HTTPError (400).
func (c *Context) MustBind(v any) {
	if v == nil {
		panic(HTTPError{Status: http.StatusBadRequest, Message: "Invalid JSON", Err: errors.New("bind target is nil")})
	}

	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		panic(HTTPError{Status: http.StatusBadRequest, Message: "Invalid JSON", Err: err})
	}

	// Ensure there is no trailing JSON.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			err = errors.New("unexpected trailing JSON")
		}
		panic(HTTPError{Status: http.StatusBadRequest, Message: "Invalid JSON", Err: err})
	}
}
