package cors

import (
	"net/url"
	"testing"

	"netstack/internal/types"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestValidateRequestSameOriginViolation(t *testing.T) {
	p := NewPolicy()
	req := &types.Request{
		URL:    mustURL(t, "https://api.example.com/data"),
		Origin: "https://app.example.com",
		Mode:   types.ModeSameOrigin,
	}
	if _, err := p.ValidateRequest(req); err == nil {
		t.Fatalf("expected same-origin violation error")
	}
}

func TestValidateRequestWildcardDisallowedWithCredentials(t *testing.T) {
	p := NewPolicy().WithAllowCredentials(true)
	req := &types.Request{
		URL:         mustURL(t, "https://api.example.com/data"),
		Origin:      "https://app.example.com",
		Mode:        types.ModeCors,
		Credentials: types.CredentialsInclude,
	}
	if _, err := p.ValidateRequest(req); err == nil {
		t.Fatalf("expected wildcard-disallowed-with-credentials error")
	}
}

func TestNeedsPreflight(t *testing.T) {
	get := &types.Request{Method: types.MethodGet, Mode: types.ModeCors, Headers: types.NewHeader()}
	if NeedsPreflight(get) {
		t.Fatalf("simple GET with no custom headers must not need preflight")
	}

	put := &types.Request{Method: types.MethodPut, Mode: types.ModeCors, Headers: types.NewHeader()}
	if !NeedsPreflight(put) {
		t.Fatalf("PUT must need preflight")
	}

	customHeader := types.NewHeader()
	customHeader.Set("X-Custom", "1")
	getCustom := &types.Request{Method: types.MethodGet, Mode: types.ModeCors, Headers: customHeader}
	if !NeedsPreflight(getCustom) {
		t.Fatalf("GET with custom header must need preflight")
	}

	noCors := &types.Request{Method: types.MethodPut, Mode: types.ModeNoCors, Headers: types.NewHeader()}
	if NeedsPreflight(noCors) {
		t.Fatalf("non-CORS mode must never need preflight")
	}

	post := &types.Request{Method: types.MethodPost, Mode: types.ModeCors, Headers: types.NewHeader()}
	if !NeedsPreflight(post) {
		t.Fatalf("cross-origin POST must need preflight: POST is not in the simple-method set")
	}
}

func TestBuildPreflight(t *testing.T) {
	headers := types.NewHeader()
	headers.Set("X-Custom-B", "1")
	headers.Set("X-Custom-A", "2")
	req := &types.Request{
		URL:     mustURL(t, "https://api.example.com/data"),
		Method:  types.MethodPut,
		Origin:  "https://app.example.com",
		Mode:    types.ModeCors,
		Headers: headers,
	}

	pre := BuildPreflight(req)
	if pre.Method != types.MethodOptions {
		t.Fatalf("expected OPTIONS, got %s", pre.Method)
	}
	if pre.Headers.Get(headerRequestMethod) != "PUT" {
		t.Fatalf("expected Access-Control-Request-Method: PUT")
	}
	if got := pre.Headers.Get(headerRequestHeaders); got != "x-custom-a, x-custom-b" {
		t.Fatalf("expected lowercased sorted comma-joined headers, got %q", got)
	}
}

func TestBuildResponseHeadersCredentialsNeverWildcard(t *testing.T) {
	p := NewPolicy().WithAllowCredentials(true).WithAllowedOrigins("https://app.example.com")
	h := p.BuildResponseHeaders("https://app.example.com")
	if h.Get(headerAllowOrigin) != "https://app.example.com" {
		t.Fatalf("expected echoed origin, got %q", h.Get(headerAllowOrigin))
	}
	if h.Get(headerAllowCredentials) != "true" {
		t.Fatalf("expected Allow-Credentials: true")
	}
}

func TestBuildResponseHeadersWildcardWithoutCredentials(t *testing.T) {
	p := NewPolicy()
	h := p.BuildResponseHeaders("https://app.example.com")
	if h.Get(headerAllowOrigin) != "*" {
		t.Fatalf("expected wildcard origin, got %q", h.Get(headerAllowOrigin))
	}
}
