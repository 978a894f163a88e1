package http

import (
	"errors"
	"reflect"
)

// ConfigurationError reports an invalid route registration: a malformed
// pattern, a conflicting pattern, or a duplicate route name.
//
// It is raised at application build time, never while serving requests.
type ConfigurationError struct {
	Pattern string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Pattern == "" {
		return "router: " + e.Message
	}
	return "router: " + e.Pattern + ": " + e.Message
}

// ChainUsageError reports a middleware that invoked its continuation more
// than once. Re-running inner handlers is never safe, so the second
// invocation fails instead.
type ChainUsageError struct {
	Message string
}

func (e *ChainUsageError) Error() string {
	return "chain: " + e.Message
}

// ResponseSentError reports an attempt to write a response that has already
// been sent.
type ResponseSentError struct{}

func (e *ResponseSentError) Error() string {
	return "response: already sent"
}

// ErrSessionNotFound is returned by a SessionStore when no data exists for
// the given session id.
var ErrSessionNotFound = errors.New("session: not found")

// ErrorHandler converts a handler fault into a response.
//
// The response may already be partially written; handlers should check
// ctx.Response().Written() before setting a status.
type ErrorHandler func(ctx *Context, err error)

// ErrorRegistry maps error kinds to handlers.
//
// Lookup prefers an exact dynamic-type match, then tries registered targets
// in registration order via errors.As (covering wrapped errors), and finally
// falls back to the catch-all default if one is set.
type ErrorRegistry struct {
	exact    map[reflect.Type]ErrorHandler
	order    []reflect.Type
	fallback ErrorHandler
}

// NewErrorRegistry creates an empty registry.
func NewErrorRegistry() *ErrorRegistry {
	return &ErrorRegistry{exact: make(map[reflect.Type]ErrorHandler)}
}

// Register binds a handler to the dynamic type of target.
//
// Registering the same type twice is a configuration error and panics.
func (r *ErrorRegistry) Register(target error, h ErrorHandler) {
	if target == nil || h == nil {
		panic(&ConfigurationError{Message: "error handler registration requires a target and a handler"})
	}

	t := reflect.TypeOf(target)
	if _, exists := r.exact[t]; exists {
		panic(&ConfigurationError{Message: "error handler already registered for " + t.String()})
	}

	r.exact[t] = h
	r.order = append(r.order, t)
}

// Default sets the catch-all handler used when no registered kind matches.
func (r *ErrorRegistry) Default(h ErrorHandler) {
	r.fallback = h
}

func (r *ErrorRegistry) lookup(err error) ErrorHandler {
	if err == nil {
		return nil
	}

	if h, ok := r.exact[reflect.TypeOf(err)]; ok {
		return h
	}

	// Wrapped or ancestor kinds: probe registered targets in registration
	// order using errors.As.
	for _, t := range r.order {
		target := reflect.New(t)
		if errors.As(err, target.Interface()) {
			return r.exact[t]
		}
	}

	return r.fallback
}
