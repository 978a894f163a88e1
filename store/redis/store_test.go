package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	stratahttp "github.com/strata-go/framework/http"
)

// fakeCommands records keys and expirations so tests can run without a
// Redis server.
type fakeCommands struct {
	data map[string]string
	ttl  map[string]time.Duration
}

func newFakeCommands() *fakeCommands {
	return &fakeCommands{data: make(map[string]string), ttl: make(map[string]time.Duration)}
}

func (f *fakeCommands) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeCommands) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	raw, ok := value.([]byte)
	if !ok {
		return redis.NewStatusResult("", errors.New("unexpected value type"))
	}
	f.data[key] = string(raw)
	f.ttl[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeCommands) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, key := range keys {
		if _, ok := f.data[key]; ok {
			delete(f.data, key)
			delete(f.ttl, key)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeCommands) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func TestStoreRoundTrip(t *testing.T) {
	fake := newFakeCommands()
	store := New(fake)
	ctx := context.Background()

	data := map[string]any{"user_id": float64(7), "name": "alice"}
	if err := store.Save(ctx, "abc", data, time.Hour); err != nil {
		t.Fatal(err)
	}

	if _, ok := fake.data["strata:session:abc"]; !ok {
		t.Fatalf("keys = %v, want the default prefix applied", fake.data)
	}
	if ttl := fake.ttl["strata:session:abc"]; ttl != time.Hour {
		t.Errorf("ttl = %v, want 1h", ttl)
	}

	got, err := store.Load(ctx, "abc")
	if err != nil {
		t.Fatal(err)
	}
	if got["user_id"] != float64(7) || got["name"] != "alice" {
		t.Errorf("loaded %v", got)
	}
}

func TestStoreLoadMissing(t *testing.T) {
	store := New(newFakeCommands())
	if _, err := store.Load(context.Background(), "nope"); !errors.Is(err, stratahttp.ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestStoreDelete(t *testing.T) {
	fake := newFakeCommands()
	store := New(fake)
	ctx := context.Background()

	if err := store.Save(ctx, "abc", map[string]any{"k": "v"}, time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, "abc"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load(ctx, "abc"); !errors.Is(err, stratahttp.ErrSessionNotFound) {
		t.Errorf("err after delete = %v, want ErrSessionNotFound", err)
	}

	// Deleting a missing session is not an error.
	if err := store.Delete(ctx, "abc"); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestStoreCustomPrefix(t *testing.T) {
	fake := newFakeCommands()
	store := New(fake, WithPrefix("app:sess:"))

	if err := store.Save(context.Background(), "abc", map[string]any{"k": "v"}, time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, ok := fake.data["app:sess:abc"]; !ok {
		t.Errorf("keys = %v, want the custom prefix applied", fake.data)
	}
}

func TestStorePing(t *testing.T) {
	if err := New(newFakeCommands()).Ping(context.Background()); err != nil {
		t.Errorf("ping: %v", err)
	}
}
