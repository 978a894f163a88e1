// Package memory implements an in-process session store. Sessions vanish
// on restart; use it for development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	stratahttp "github.com/strata-go/framework/http"
)

var _ stratahttp.SessionStore = (*Store)(nil)

type entry struct {
	data      map[string]any
	expiresAt time.Time
}

// Store keeps session data in a mutex-guarded map with per-entry expiry.
type Store struct {
	mu       sync.Mutex
	sessions map[string]entry
}

// New creates an empty store.
func New() *Store {
	return &Store{sessions: make(map[string]entry)}
}

// Load returns the data saved for id, or ErrSessionNotFound when the id is
// unknown or expired. Expired entries are reaped lazily.
func (s *Store) Load(_ context.Context, id string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		return nil, stratahttp.ErrSessionNotFound
	}
	if time.Now().After(e.expiresAt) {
		delete(s.sessions, id)
		return nil, stratahttp.ErrSessionNotFound
	}

	out := make(map[string]any, len(e.data))
	for k, v := range e.data {
		out[k] = v
	}
	return out, nil
}

// Save persists data under id for at most ttl.
func (s *Store) Save(_ context.Context, id string, data map[string]any, ttl time.Duration) error {
	copied := make(map[string]any, len(data))
	for k, v := range data {
		copied[k] = v
	}

	s.mu.Lock()
	s.sessions[id] = entry{data: copied, expiresAt: time.Now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

// Delete removes the session. Deleting a missing session is not an error.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}
