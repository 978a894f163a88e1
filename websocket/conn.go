package websocket

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	gorilla "github.com/gorilla/websocket"
)

// Message types, passed through to the transport verbatim.
const (
	TextMessage   = gorilla.TextMessage
	BinaryMessage = gorilla.BinaryMessage
)

// Close codes. 1000-1015 carry protocol-level meanings; 4000-4999 are free
// for application use (auth rejection, rate limiting, ...).
const (
	CloseNormal        = gorilla.CloseNormalClosure
	CloseGoingAway     = gorilla.CloseGoingAway
	CloseInternalError = gorilla.CloseInternalServerErr
)

// State is the lifecycle phase of a Connection.
type State int

const (
	// StateConnecting: transport accepted, application accept pending.
	StateConnecting State = iota
	// StateOpen: application called Accept; Send/Receive are legal.
	StateOpen
	// StateClosing: close initiated by either side, frames draining.
	StateClosing
	// StateClosed: terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// ClosedError reports an operation attempted on a closed connection, or a
// receive that was unblocked by the peer going away. It is always surfaced
// to the caller, never swallowed.
type ClosedError struct {
	Code   int
	Reason string
}

func (e *ClosedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("websocket: connection closed (%d)", e.Code)
	}
	return fmt.Sprintf("websocket: connection closed (%d): %s", e.Code, e.Reason)
}

// ErrNotAccepted is returned by Send/Receive before Accept has been called.
var ErrNotAccepted = fmt.Errorf("websocket: connection not accepted")

// transport is the subset of *gorilla.Conn the connection drives. Tests
// substitute a fake.
type transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Conn is one WebSocket connection: a state machine over the transport
// plus the route parameters extracted at connect time.
//
// A Conn is driven by a single goroutine calling Receive; Send and Close
// are safe to call from other goroutines (broadcast fan-out relies on
// this).
type Conn struct {
	mu     sync.Mutex // guards state, closeCode, closeReason, values
	state  State
	sock   transport
	params map[string]string
	values map[string]any

	wmu sync.Mutex // serializes transport writes

	closeCode   int
	closeReason string
}

func newConn(sock transport, params map[string]string) *Conn {
	return &Conn{
		state:  StateConnecting,
		sock:   sock,
		params: params,
	}
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Param returns a route parameter by name.
func (c *Conn) Param(name string) string {
	return c.params[name]
}

// Params returns a copy of all route parameters.
func (c *Conn) Params() map[string]string {
	out := make(map[string]string, len(c.params))
	for k, v := range c.params {
		out[k] = v
	}
	return out
}

// Set stores a connection-scoped value, visible for the connection's
// lifetime.
func (c *Conn) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values == nil {
		c.values = make(map[string]any)
	}
	c.values[key] = value
}

// Value returns a connection-scoped value previously stored with Set.
func (c *Conn) Value(key string) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[key]
}

// CloseCode returns the close code recorded when the connection left the
// open state, or 0 while it is still connecting/open.
func (c *Conn) CloseCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode
}

// Accept transitions the connection from connecting to open. It is a
// no-op on an already-open connection and fails with *ClosedError once the
// connection has been closed (for example by pre-accept middleware).
func (c *Conn) Accept() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateConnecting:
		c.state = StateOpen
		return nil
	case StateOpen:
		return nil
	default:
		return &ClosedError{Code: c.closeCode, Reason: c.closeReason}
	}
}

// Receive blocks until the next message arrives or the connection closes.
// A peer disconnect unblocks it with *ClosedError rather than hanging.
func (c *Conn) Receive() (messageType int, data []byte, err error) {
	c.mu.Lock()
	switch c.state {
	case StateConnecting:
		c.mu.Unlock()
		return 0, nil, ErrNotAccepted
	case StateClosing, StateClosed:
		code, reason := c.closeCode, c.closeReason
		c.mu.Unlock()
		return 0, nil, &ClosedError{Code: code, Reason: reason}
	}
	c.mu.Unlock()

	messageType, data, err = c.sock.ReadMessage()
	if err != nil {
		code, reason := CloseGoingAway, ""
		if ce, ok := err.(*gorilla.CloseError); ok {
			code, reason = ce.Code, ce.Text
		}
		c.markClosed(code, reason)
		// Report the recorded close, which may come from a concurrent
		// local Close rather than the read error.
		c.mu.Lock()
		code, reason = c.closeCode, c.closeReason
		c.mu.Unlock()
		return 0, nil, &ClosedError{Code: code, Reason: reason}
	}
	return messageType, data, nil
}

// Send writes one message. It fails with *ClosedError once the connection
// is closing or closed.
func (c *Conn) Send(messageType int, data []byte) error {
	c.mu.Lock()
	switch c.state {
	case StateConnecting:
		c.mu.Unlock()
		return ErrNotAccepted
	case StateClosing, StateClosed:
		code, reason := c.closeCode, c.closeReason
		c.mu.Unlock()
		return &ClosedError{Code: code, Reason: reason}
	}
	c.mu.Unlock()

	c.wmu.Lock()
	err := c.sock.WriteMessage(messageType, data)
	c.wmu.Unlock()
	if err != nil {
		c.markClosed(CloseGoingAway, "")
		return &ClosedError{Code: CloseGoingAway}
	}
	return nil
}

// SendText writes one text message.
func (c *Conn) SendText(text string) error {
	return c.Send(TextMessage, []byte(text))
}

// SendJSON writes one text message holding the JSON encoding of v.
func (c *Conn) SendJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Send(TextMessage, b)
}

// Close initiates the closing handshake with the given code and reason and
// tears down the transport. The first close wins: code and reason from a
// later Close (including the manager's 1011 on handler fault) never
// overwrite an explicit earlier one. Closing a closed connection is a
// no-op.
func (c *Conn) Close(code int, reason string) error {
	c.mu.Lock()
	if c.state == StateClosed || c.state == StateClosing {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosing
	c.closeCode = code
	c.closeReason = reason
	c.mu.Unlock()

	c.wmu.Lock()
	deadline := time.Now().Add(time.Second)
	_ = c.sock.WriteControl(gorilla.CloseMessage, gorilla.FormatCloseMessage(code, reason), deadline)
	err := c.sock.Close()
	c.wmu.Unlock()

	c.mu.Lock()
	c.state = StateClosed
	c.mu.Unlock()
	return err
}

// markClosed records a close observed from the transport side (peer drop
// or write failure) without attempting a handshake.
func (c *Conn) markClosed(code int, reason string) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	if c.closeCode == 0 {
		c.closeCode = code
		c.closeReason = reason
	}
	c.state = StateClosed
	c.mu.Unlock()

	_ = c.sock.Close()
}
