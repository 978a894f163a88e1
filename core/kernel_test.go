package core

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"

	stratahttp "github.com/strata-go/framework/http"
	"github.com/strata-go/framework/websocket"
)

func TestAppDispatchesHTTPAndWebSocket(t *testing.T) {
	app := New()
	app.Get("/ping", func(ctx *stratahttp.Context) {
		ctx.String(http.StatusOK, "pong")
	})
	app.WS("/ws/echo", func(c *websocket.Conn) error {
		if err := c.Accept(); err != nil {
			return err
		}
		mt, data, err := c.Receive()
		if err != nil {
			return err
		}
		return c.Send(mt, data)
	})

	srv := httptest.NewServer(app.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ping")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "pong" {
		t.Errorf("GET /ping = %d %q", resp.StatusCode, body)
	}

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/echo"
	conn, wsResp, err := gorilla.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if wsResp != nil {
		wsResp.Body.Close()
	}
	defer conn.Close()

	if err := conn.WriteMessage(gorilla.TextMessage, []byte("hi")); err != nil {
		t.Fatal(err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil || string(data) != "hi" {
		t.Errorf("echo = %q %v", data, err)
	}
}

func TestAppWebBindsSessionManager(t *testing.T) {
	t.Setenv("SESSION_DRIVER", "memory")
	app := New()
	if err := app.Web(); err != nil {
		t.Fatal(err)
	}

	if app.Sessions() == nil {
		t.Fatal("Sessions() is nil after Web")
	}
	sm, err := Resolve[*stratahttp.SessionManager](app.Container)
	if err != nil {
		t.Fatalf("container resolve: %v", err)
	}
	if sm != app.Sessions() {
		t.Errorf("container holds a different session manager")
	}
}

func TestAppUnknownSessionDriver(t *testing.T) {
	t.Setenv("SESSION_DRIVER", "etcd")
	app := New()
	if err := app.Web(); err == nil {
		t.Errorf("unknown driver should fail")
	}
}

func TestAppHandleError(t *testing.T) {
	app := New()
	app.HandleError(&testFault{}, func(ctx *stratahttp.Context, err error) {
		ctx.String(http.StatusConflict, "handled")
	})
	app.Get("/fault", func(ctx *stratahttp.Context) {
		panic(&testFault{})
	})

	srv := httptest.NewServer(app.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/fault")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict || string(body) != "handled" {
		t.Errorf("GET /fault = %d %q", resp.StatusCode, body)
	}
}

type testFault struct{}

func (e *testFault) Error() string { return "test fault" }
