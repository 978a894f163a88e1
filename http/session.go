package http

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SessionStore is the narrow contract a session storage backend must
// satisfy. Implementations live outside the dispatch core (see
// store/memory and store/redis).
type SessionStore interface {
	// Load returns the data saved for the session id, or ErrSessionNotFound.
	Load(ctx context.Context, id string) (map[string]any, error)
	// Save persists the data under the session id for at most ttl.
	Save(ctx context.Context, id string, data map[string]any, ttl time.Duration) error
	// Delete removes the session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error
}

// Session represents per-client state keyed by an encrypted cookie id and
// persisted through a SessionStore.
type Session struct {
	ID      string
	Values  map[string]any
	Flashes map[string]any
	CSRF    string

	dirty bool
	fresh bool
}

func newSession() *Session {
	return &Session{
		ID:      randomToken(),
		Values:  make(map[string]any),
		Flashes: make(map[string]any),
		CSRF:    randomToken(),
		dirty:   true,
		fresh:   true,
	}
}

// Get returns a value from the session.
func (s *Session) Get(key string) any {
	if s == nil {
		return nil
	}
	return s.Values[key]
}

// Put sets a value in the session.
func (s *Session) Put(key string, value any) {
	if s == nil {
		return
	}
	if s.Values == nil {
		s.Values = make(map[string]any)
	}
	s.Values[key] = value
	s.dirty = true
}

// Forget removes a value from the session.
func (s *Session) Forget(key string) {
	if s == nil {
		return
	}
	delete(s.Values, key)
	s.dirty = true
}

// Flash sets a value that is meant to be used once.
func (s *Session) Flash(key string, value any) {
	if s == nil {
		return
	}
	if s.Flashes == nil {
		s.Flashes = make(map[string]any)
	}
	s.Flashes[key] = value
	s.dirty = true
}

// PullFlash reads and removes a flash value.
func (s *Session) PullFlash(key string) any {
	if s == nil {
		return nil
	}
	v := s.Flashes[key]
	delete(s.Flashes, key)
	s.dirty = true
	return v
}

// SessionManager loads and saves sessions around each request. The cookie
// carries only the encrypted session id; data lives in the configured
// store.
type SessionManager struct {
	CookieName string
	Key        []byte
	Path       string
	Domain     string
	Secure     bool
	HTTPOnly   bool
	SameSite   http.SameSite
	TTL        time.Duration

	store SessionStore
}

// NewSessionManager creates a manager with the given application key and
// backing store.
func NewSessionManager(appKey string, store SessionStore) (*SessionManager, error) {
	if store == nil {
		return nil, fmt.Errorf("session: store is nil")
	}
	key, err := deriveKey(appKey)
	if err != nil {
		return nil, err
	}
	return &SessionManager{
		CookieName: "strata_session",
		Key:        key,
		Path:       "/",
		Secure:     false,
		HTTPOnly:   true,
		SameSite:   http.SameSiteLaxMode,
		TTL:        14 * 24 * time.Hour,
		store:      store,
	}, nil
}

// Store returns the backing session store.
func (m *SessionManager) Store() SessionStore { return m.store }

func deriveKey(appKey string) ([]byte, error) {
	appKey = strings.TrimSpace(appKey)
	if appKey == "" {
		return nil, fmt.Errorf("session: APP_KEY is empty")
	}

	if strings.HasPrefix(appKey, "base64:") {
		raw := strings.TrimPrefix(appKey, "base64:")
		b, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("session: invalid base64 APP_KEY")
		}
		sum := sha256.Sum256(b)
		return sum[:], nil
	}

	sum := sha256.Sum256([]byte(appKey))
	return sum[:], nil
}

func (m *SessionManager) load(r *http.Request) *Session {
	c, err := r.Cookie(m.CookieName)
	if err != nil {
		return newSession()
	}

	id, err := m.decrypt(c.Value)
	if err != nil {
		return newSession()
	}

	data, err := m.store.Load(r.Context(), id)
	if err != nil {
		return newSession()
	}

	s := &Session{ID: id, Values: make(map[string]any), Flashes: make(map[string]any)}
	if v, ok := data["values"].(map[string]any); ok {
		s.Values = v
	}
	if v, ok := data["flashes"].(map[string]any); ok {
		s.Flashes = v
	}
	if v, ok := data["csrf"].(string); ok {
		s.CSRF = v
	}
	if s.CSRF == "" {
		s.CSRF = randomToken()
		s.dirty = true
	}
	return s
}

func (m *SessionManager) save(ctx context.Context, w http.ResponseWriter, s *Session) error {
	if s == nil || !s.dirty {
		return nil
	}

	data := map[string]any{
		"values":  s.Values,
		"flashes": s.Flashes,
		"csrf":    s.CSRF,
	}
	if err := m.store.Save(ctx, s.ID, data, m.TTL); err != nil {
		return err
	}

	if !s.fresh {
		return nil
	}

	enc, err := m.encrypt(s.ID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.CookieName,
		Value:    enc,
		Path:     m.Path,
		Domain:   m.Domain,
		Secure:   m.Secure,
		HttpOnly: m.HTTPOnly,
		SameSite: m.SameSite,
		Expires:  time.Now().Add(m.TTL),
	})
	return nil
}

// Destroy removes the session from the store and expires the cookie.
func (m *SessionManager) Destroy(ctx context.Context, w http.ResponseWriter, s *Session) error {
	if s == nil {
		return nil
	}
	if err := m.store.Delete(ctx, s.ID); err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.CookieName,
		Value:    "",
		Path:     m.Path,
		Domain:   m.Domain,
		MaxAge:   -1,
		HttpOnly: m.HTTPOnly,
		SameSite: m.SameSite,
	})
	s.dirty = false
	return nil
}

func (m *SessionManager) encrypt(id string) (string, error) {
	block, err := aes.NewCipher(m.Key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nil, nonce, []byte(id), nil)
	out := append(nonce, ciphertext...)
	return "v1." + base64.RawURLEncoding.EncodeToString(out), nil
}

func (m *SessionManager) decrypt(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("session: empty cookie")
	}
	if !strings.HasPrefix(value, "v1.") {
		return "", fmt.Errorf("session: unsupported cookie version")
	}

	blob, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(value, "v1."))
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(m.Key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(blob) < gcm.NonceSize() {
		return "", fmt.Errorf("session: invalid cookie payload")
	}

	nonce := blob[:gcm.NonceSize()]
	ciphertext := blob[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func randomToken() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
