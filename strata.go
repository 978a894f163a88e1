// Package strata is the public facade of the Strata web framework: an
// HTTP router with onion middleware chains, a WebSocket connection
// manager, and the kernel gluing them to configuration and services.
//
// Most applications only import this package:
//
//	app := strata.New()
//	app.MustWeb()
//	app.Get("/users/{id}", func(ctx *strata.Context) {
//		ctx.JSON(200, map[string]string{"id": ctx.Param("id")})
//	})
//	app.WS("/chat/{room}", chatHandler)
//	app.Listen(":8080")
package strata

import (
	"github.com/strata-go/framework/core"
	stratahttp "github.com/strata-go/framework/http"
	"github.com/strata-go/framework/websocket"
)

// App is the main application type.
//
// It is a facade over the internal kernel implementation to provide a
// clean public API.
type App = core.App

// Config is the application configuration.
type Config = core.Config

// Context is the request context passed into HTTP handlers.
type Context = stratahttp.Context

// HandlerFunc is the primary HTTP handler signature for Strata.
type HandlerFunc = stratahttp.HandlerFunc

// Middleware is a router middleware.
type Middleware = stratahttp.Middleware

// RouteOption configures per-route behavior.
type RouteOption = stratahttp.RouteOption

// ErrorHandler converts a handler fault into a response.
type ErrorHandler = stratahttp.ErrorHandler

// Conn is one WebSocket connection.
type Conn = websocket.Conn

// WSHandlerFunc is the WebSocket connection handler signature.
type WSHandlerFunc = websocket.HandlerFunc

// WSMiddleware wraps a WebSocket connection handler.
type WSMiddleware = websocket.Middleware

// Hub is an application-owned broadcast registry of open connections.
type Hub = websocket.Hub

// New creates a new Strata application instance.
func New() *App {
	return core.New()
}

// NewHub creates an empty broadcast hub.
func NewHub() *Hub { return websocket.NewHub() }

// Named assigns a name to a route.
func Named(name string) RouteOption { return stratahttp.Named(name) }

// WithMiddleware attaches middleware to a single route.
func WithMiddleware(mw ...Middleware) RouteOption { return stratahttp.WithMiddleware(mw...) }
