package cookiejar

import (
	"net/url"
	"testing"
	"time"

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

func TestParseSetCookieBasic(t *testing.T) {
	c, ok := ParseSetCookie("sessionid=abc123; Domain=example.com; Path=/app; Secure; HttpOnly; SameSite=Strict")
	if !ok {
		t.Fatalf("expected successful parse")
	}
	if c.Name != "sessionid" || c.Value != "abc123" {
		t.Fatalf("unexpected name/value: %+v", c)
	}
	if c.Domain != "example.com" || c.Path != "/app" {
		t.Fatalf("unexpected domain/path: %+v", c)
	}
	if !c.Secure || !c.HttpOnly || c.SameSite != types.SameSiteStrict {
		t.Fatalf("unexpected flags: %+v", c)
	}
}

func TestParseSetCookieMaxAge(t *testing.T) {
	c, ok := ParseSetCookie("a=1; Max-Age=60")
	if !ok {
		t.Fatalf("expected successful parse")
	}
	if c.Session {
		t.Fatalf("Max-Age cookie must not be a session cookie")
	}
	if c.Expires.Before(time.Now()) {
		t.Fatalf("expected future expiry")
	}
}

func TestParseSetCookieRejectsPublicSuffixDomain(t *testing.T) {
	if _, ok := ParseSetCookie("a=1; Domain=co.uk"); ok {
		t.Fatalf("expected Set-Cookie with a bare public-suffix Domain to be rejected")
	}
	if _, ok := ParseSetCookie("a=1; Domain=com"); ok {
		t.Fatalf("expected Set-Cookie with a bare public-suffix Domain to be rejected")
	}
}

func TestAddRejectsPublicSuffixDomain(t *testing.T) {
	j := New()
	u := mustURL(t, "https://example.co.uk/")
	j.Add(types.Cookie{Name: "a", Value: "1", Domain: "co.uk", Path: "/", Session: true}, u)

	if len(j.Matches(u)) != 0 {
		t.Fatalf("expected a public-suffix-scoped cookie to be rejected, not stored")
	}
}

func TestAddFillsDomainAndPath(t *testing.T) {
	j := New()
	u := mustURL(t, "https://app.example.com/account/settings")
	j.Add(types.Cookie{Name: "a", Value: "1", Session: true}, u)

	matches := j.Matches(u)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].Domain != "app.example.com" || matches[0].Path != "/account" {
		t.Fatalf("unexpected filled domain/path: %+v", matches[0])
	}
}

func TestMatchesDomainSuffix(t *testing.T) {
	j := New()
	root := mustURL(t, "https://example.com/")
	j.Add(types.Cookie{Name: "a", Value: "1", Domain: "example.com", Path: "/", Session: true}, root)

	sub := mustURL(t, "https://www.example.com/")
	if len(j.Matches(sub)) != 1 {
		t.Fatalf("expected subdomain to match parent-domain cookie")
	}

	other := mustURL(t, "https://notexample.com/")
	if len(j.Matches(other)) != 0 {
		t.Fatalf("unrelated domain must not match")
	}
}

func TestMatchesSecureRequiresHTTPS(t *testing.T) {
	j := New()
	u := mustURL(t, "https://example.com/")
	j.Add(types.Cookie{Name: "a", Value: "1", Domain: "example.com", Path: "/", Secure: true, Session: true}, u)

	plain := mustURL(t, "http://example.com/")
	if len(j.Matches(plain)) != 0 {
		t.Fatalf("secure cookie must not match http request")
	}
	if len(j.Matches(u)) != 1 {
		t.Fatalf("secure cookie must match https request")
	}
}

func TestMatchesExpiredExcluded(t *testing.T) {
	j := New()
	u := mustURL(t, "https://example.com/")
	j.Add(types.Cookie{
		Name: "a", Value: "1", Domain: "example.com", Path: "/",
		Expires: time.Now().Add(-time.Hour), Session: false,
	}, u)

	if len(j.Matches(u)) != 0 {
		t.Fatalf("expired cookie must be excluded")
	}
}

func TestPathMatchingRules(t *testing.T) {
	j := New()
	u := mustURL(t, "https://example.com/app")
	j.Add(types.Cookie{Name: "a", Value: "1", Domain: "example.com", Path: "/app", Session: true}, u)

	exact := mustURL(t, "https://example.com/app")
	nested := mustURL(t, "https://example.com/app/settings")
	sibling := mustURL(t, "https://example.com/apples")

	if len(j.Matches(exact)) != 1 {
		t.Fatalf("exact path must match")
	}
	if len(j.Matches(nested)) != 1 {
		t.Fatalf("nested path must match")
	}
	if len(j.Matches(sibling)) != 0 {
		t.Fatalf("sibling path with shared prefix but no separator must not match")
	}
}
