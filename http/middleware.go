package http

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Logger logs one line per request after the inner layers finish: method,
// path, status, duration. Being a post-phase, it observes the final status
// even when an inner middleware short-circuited.
func Logger(log *slog.Logger) Middleware {
	if log == nil {
		log = slog.Default()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx *Context) {
			start := time.Now()
			next(ctx)
			if ctx.Cancelled() {
				return
			}
			log.Info("request",
				"method", ctx.Request.Method,
				"path", ctx.Request.URL.Path,
				"status", ctx.Response().Status(),
				"bytes", ctx.Response().Size(),
				"duration", time.Since(start),
			)
		}
	}
}

// CORSOptions configures the CORS middleware.
type CORSOptions struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// CORS sets cross-origin headers and answers preflight requests without
// invoking the inner chain.
func CORS(opts CORSOptions) Middleware {
	if len(opts.AllowedMethods) == 0 {
		opts.AllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions}
	}
	methods := strings.Join(opts.AllowedMethods, ", ")
	headers := strings.Join(opts.AllowedHeaders, ", ")

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx *Context) {
			origin := ctx.Request.Header.Get("Origin")
			if origin != "" && originAllowed(opts.AllowedOrigins, origin) {
				h := ctx.ResponseWriter.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", methods)
				if headers != "" {
					h.Set("Access-Control-Allow-Headers", headers)
				}
			}

			if ctx.Request.Method == http.MethodOptions && ctx.Request.Header.Get("Access-Control-Request-Method") != "" {
				ctx.NoContent(http.StatusNoContent)
				return
			}
			next(ctx)
		}
	}
}

func originAllowed(allowed []string, origin string) bool {
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

// RateLimit throttles requests per client address using a token bucket.
// Clients over the limit get a 429 without reaching the inner chain.
func RateLimit(limit rate.Limit, burst int) Middleware {
	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx *Context) {
			host, _, err := net.SplitHostPort(ctx.Request.RemoteAddr)
			if err != nil {
				host = ctx.Request.RemoteAddr
			}

			mu.Lock()
			lim := limiters[host]
			if lim == nil {
				lim = rate.NewLimiter(limit, burst)
				limiters[host] = lim
			}
			mu.Unlock()

			if !lim.Allow() {
				panic(HTTPError{Status: http.StatusTooManyRequests, Message: "Too Many Requests"})
			}
			next(ctx)
		}
	}
}
