package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func echoServer(t *testing.T) *httptest.Server {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(t *testing.T, httpURL string) *url.URL {
	u, err := url.Parse(strings.Replace(httpURL, "http://", "ws://", 1))
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	return u
}

func TestDialSendReceiveText(t *testing.T) {
	srv := echoServer(t)
	u := wsURL(t, srv.URL)

	conn, err := Dial(context.Background(), u, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer conn.Close(1000, "done")

	if conn.State() != StateOpen {
		t.Fatalf("expected StateOpen after dial, got %v", conn.State())
	}

	if err := conn.SendText("hello"); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}

	select {
	case msg := <-conn.Incoming:
		if msg.Kind != MessageText || string(msg.Data) != "hello" {
			t.Fatalf("expected echoed text %q, got kind=%v data=%q", "hello", msg.Kind, msg.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for echo")
	}
}

func TestCloseTransitionsState(t *testing.T) {
	srv := echoServer(t)
	u := wsURL(t, srv.URL)

	conn, err := Dial(context.Background(), u, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := conn.Close(1000, "bye"); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if conn.State() != StateClosed {
		t.Fatalf("expected StateClosed after close, got %v", conn.State())
	}

	if err := conn.SendText("after close"); err == nil {
		t.Fatalf("expected send after close to fail")
	}
}

func TestInvalidSchemeRejected(t *testing.T) {
	u, _ := url.Parse("http://example.com/socket")
	if _, err := Dial(context.Background(), u, nil, nil); err == nil {
		t.Fatalf("expected error for non-ws scheme")
	}
}
