package http

import (
	"net/http"
)

// ResponseWriter extends http.ResponseWriter with methods to inspect what
// has been written. Middleware post-phases use it to observe the status the
// inner layers produced.
type ResponseWriter interface {
	http.ResponseWriter
	// Status returns the HTTP status code of the response, or 200 if the
	// response has not been written yet.
	Status() int
	// Size returns the number of body bytes written so far.
	Size() int
	// Written reports whether the status line has been sent.
	Written() bool
}

// responseWriter tracks response state and enforces the write-once
// contract: headers and status may be set exactly once. A second
// WriteHeader is a programming defect and panics with *ResponseSentError.
type responseWriter struct {
	http.ResponseWriter
	status  int
	size    int
	written bool
}

var (
	_ http.ResponseWriter = (*responseWriter)(nil)
	_ http.Flusher        = (*responseWriter)(nil)
	_ ResponseWriter      = (*responseWriter)(nil)
)

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w}
}

func (rw *responseWriter) Status() int {
	if rw.status == 0 {
		return http.StatusOK
	}
	return rw.status
}

func (rw *responseWriter) Size() int { return rw.size }

func (rw *responseWriter) Written() bool { return rw.written }

func (rw *responseWriter) WriteHeader(status int) {
	if rw.written {
		panic(&ResponseSentError{})
	}
	rw.status = status
	rw.written = true
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.written = true
		rw.status = http.StatusOK
	}
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func (rw *responseWriter) Flush() {
	_ = http.NewResponseController(rw.ResponseWriter).Flush()
}
