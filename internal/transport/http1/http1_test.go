package http1

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"netstack/internal/errs"
	"netstack/internal/types"
)

func TestRoundTripGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "yes")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	tr := New(DefaultConfig(), nil)
	defer tr.Close()

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	req := &types.Request{URL: u, Method: types.MethodGet, Headers: types.NewHeader()}

	resp, err := tr.RoundTrip(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	if resp.Headers.Get("X-Test") != "yes" {
		t.Fatalf("expected X-Test header to survive round trip")
	}
	if string(resp.Body.Bytes) != "hello" {
		t.Fatalf("expected body %q, got %q", "hello", resp.Body.Bytes)
	}
}

func TestRoundTripPostBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := make([]byte, r.ContentLength)
		r.Body.Read(body)
		w.Write(body)
	}))
	defer srv.Close()

	tr := New(DefaultConfig(), nil)
	defer tr.Close()

	u, _ := url.Parse(srv.URL)
	req := &types.Request{
		URL:     u,
		Method:  types.MethodPost,
		Headers: types.NewHeader(),
		Body:    &types.RequestBody{Kind: types.BodyText, Text: "payload"},
	}

	resp, err := tr.RoundTrip(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Body.Bytes) != "payload" {
		t.Fatalf("expected echoed body %q, got %q", "payload", resp.Body.Bytes)
	}
}

func TestRoundTripConnectionRefused(t *testing.T) {
	tr := New(DefaultConfig(), nil)
	defer tr.Close()

	u, _ := url.Parse("http://127.0.0.1:1")
	req := &types.Request{URL: u, Method: types.MethodGet, Headers: types.NewHeader()}

	_, err := tr.RoundTrip(context.Background(), req)
	if err == nil {
		t.Fatalf("expected connection error")
	}
	if !errs.Is(err, errs.KindConnectionFailed) {
		t.Fatalf("expected KindConnectionFailed, got %v", err)
	}
}

func TestPingUnsupported(t *testing.T) {
	tr := New(DefaultConfig(), nil)
	defer tr.Close()

	_, err := tr.Ping(context.Background())
	if !errs.Is(err, errs.KindProtocol) {
		t.Fatalf("expected KindProtocol, got %v", err)
	}
}
