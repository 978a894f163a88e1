package http

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func get(t *testing.T, srv *httptest.Server, path string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(body)
}

func TestRegisterConflict(t *testing.T) {
	r := NewRouter()
	ok := func(ctx *Context) { ctx.String(http.StatusOK, "ok") }

	if err := r.Handle([]string{"GET"}, "/users/{id}", ok); err != nil {
		t.Fatalf("first registration: %v", err)
	}

	// Identical shape after normalizing parameter names, overlapping method.
	err := r.Handle([]string{"GET", "POST"}, "/users/{name}", ok)
	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("duplicate shape registration returned %v, want *ConfigurationError", err)
	}

	// Same shape but disjoint method set is fine.
	if err := r.Handle([]string{"POST"}, "/users/{name}", ok); err != nil {
		t.Fatalf("disjoint-method registration: %v", err)
	}

	// Different shape never conflicts.
	if err := r.Handle([]string{"GET"}, "/users/me", ok); err != nil {
		t.Fatalf("literal registration: %v", err)
	}

	if err := r.Handle([]string{"GET"}, "/broken", nil); err == nil {
		t.Fatalf("nil handler registration should fail")
	}
}

func TestNotFoundVsMethodNotAllowed(t *testing.T) {
	r := NewRouter()
	r.Get("/users/{id}", func(ctx *Context) {
		ctx.String(http.StatusOK, "user "+ctx.Param("id"))
	})

	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, body := get(t, srv, "/users/42")
	if resp.StatusCode != http.StatusOK || body != "user 42" {
		t.Fatalf("GET /users/42 = %d %q", resp.StatusCode, body)
	}

	resp, _ = get(t, srv, "/nope")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET /nope = %d, want 404", resp.StatusCode)
	}

	post, err := http.Post(srv.URL+"/users/42", "text/plain", strings.NewReader(""))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	post.Body.Close()
	if post.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST /users/42 = %d, want 405", post.StatusCode)
	}
	if allow := post.Header.Get("Allow"); allow != "GET" {
		t.Errorf("Allow = %q, want %q", allow, "GET")
	}
}

func TestAllowHeaderListsAllMethods(t *testing.T) {
	r := NewRouter()
	h := func(ctx *Context) { ctx.NoContent(http.StatusNoContent) }
	r.Get("/things/{id}", h)
	r.Delete("/things/{name}", h)

	srv := httptest.NewServer(r)
	defer srv.Close()

	post, err := http.Post(srv.URL+"/things/1", "text/plain", strings.NewReader(""))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	post.Body.Close()
	if post.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", post.StatusCode)
	}
	if allow := post.Header.Get("Allow"); allow != "DELETE, GET" {
		t.Errorf("Allow = %q, want %q", allow, "DELETE, GET")
	}
}

func TestSpecificityTieBreak(t *testing.T) {
	r := NewRouter()
	r.Get("/users/{id}", func(ctx *Context) { ctx.String(http.StatusOK, "param:"+ctx.Param("id")) })
	r.Get("/users/me", func(ctx *Context) { ctx.String(http.StatusOK, "literal") })

	srv := httptest.NewServer(r)
	defer srv.Close()

	// More literal segments wins even though the param route registered first.
	if _, body := get(t, srv, "/users/me"); body != "literal" {
		t.Errorf("GET /users/me = %q, want literal route", body)
	}
	if _, body := get(t, srv, "/users/42"); body != "param:42" {
		t.Errorf("GET /users/42 = %q, want param route", body)
	}
}

func TestRegistrationOrderTieBreak(t *testing.T) {
	r := NewRouter()
	// Same literal count; earlier registration must win.
	r.Get("/a/{x}/c", func(ctx *Context) { ctx.String(http.StatusOK, "first") })
	r.Get("/a/b/{y}", func(ctx *Context) { ctx.String(http.StatusOK, "second") })

	srv := httptest.NewServer(r)
	defer srv.Close()

	if _, body := get(t, srv, "/a/b/c"); body != "first" {
		t.Errorf("GET /a/b/c = %q, want first-registered route", body)
	}
}

func TestMultipleParamsInDeclarationOrder(t *testing.T) {
	r := NewRouter()
	r.Get("/orgs/{org}/repos/{repo}", func(ctx *Context) {
		ctx.String(http.StatusOK, ctx.Param("org")+"/"+ctx.Param("repo"))
	})

	srv := httptest.NewServer(r)
	defer srv.Close()

	if _, body := get(t, srv, "/orgs/acme/repos/site"); body != "acme/site" {
		t.Errorf("params = %q, want acme/site", body)
	}
}

func TestTrailingSlashHandling(t *testing.T) {
	lax := NewRouter()
	lax.Get("/users", func(ctx *Context) { ctx.String(http.StatusOK, "ok") })
	srvLax := httptest.NewServer(lax)
	defer srvLax.Close()

	if resp, _ := get(t, srvLax, "/users/"); resp.StatusCode != http.StatusOK {
		t.Errorf("lax router: GET /users/ = %d, want 200", resp.StatusCode)
	}

	strict := NewRouter(StrictSlashes())
	strict.Get("/users", func(ctx *Context) { ctx.String(http.StatusOK, "ok") })
	srvStrict := httptest.NewServer(strict)
	defer srvStrict.Close()

	if resp, _ := get(t, srvStrict, "/users/"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("strict router: GET /users/ = %d, want 404", resp.StatusCode)
	}
}

func TestCaseInsensitiveRouter(t *testing.T) {
	r := NewRouter(CaseInsensitive())
	r.Get("/Users/{id}", func(ctx *Context) { ctx.String(http.StatusOK, ctx.Param("id")) })

	srv := httptest.NewServer(r)
	defer srv.Close()

	if resp, body := get(t, srv, "/users/9"); resp.StatusCode != http.StatusOK || body != "9" {
		t.Errorf("GET /users/9 = %d %q", resp.StatusCode, body)
	}
}

func TestURLByName(t *testing.T) {
	r := NewRouter()
	r.Get("/users/{id}/posts/{post:int}", func(ctx *Context) {}, Named("user.post"))

	got := r.URL("user.post", map[string]string{"id": "7", "post": "12"})
	if got != "/users/7/posts/12" {
		t.Errorf("URL = %q, want /users/7/posts/12", got)
	}
	if r.URL("missing", nil) != "" {
		t.Errorf("URL for unknown name should be empty")
	}
}

func TestGroupPrefixAndScopedMiddleware(t *testing.T) {
	var trace []string
	mw := func(label string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx *Context) {
				trace = append(trace, label)
				next(ctx)
			}
		}
	}

	r := NewRouter()
	r.Use(mw("root"))
	r.Group("/api", func(api *Router) {
		api.Use(mw("api"))
		api.Get("/ping", func(ctx *Context) { ctx.String(http.StatusOK, "pong") })
	})
	r.Get("/bare", func(ctx *Context) { ctx.String(http.StatusOK, "bare") })

	srv := httptest.NewServer(r)
	defer srv.Close()

	trace = nil
	if _, body := get(t, srv, "/api/ping"); body != "pong" {
		t.Fatalf("GET /api/ping = %q", body)
	}
	if strings.Join(trace, ",") != "root,api" {
		t.Errorf("trace = %v, want [root api]", trace)
	}

	trace = nil
	get(t, srv, "/bare")
	if strings.Join(trace, ",") != "root" {
		t.Errorf("trace = %v, want [root]", trace)
	}
}
