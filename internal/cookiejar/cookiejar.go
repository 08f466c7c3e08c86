// Package cookiejar implements a cookie store: WHATWG Set-Cookie parsing
// plus domain/path/secure/expiry matching.
//
// golang.org/x/net/publicsuffix gives the eTLD-aware domain handling the
// teacher corpus reaches for whenever cookie/domain scoping needs to avoid
// treating a public suffix itself as a settable cookie domain.
package cookiejar

import (
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"netstack/internal/types"
)

type cookieKey struct {
	name, domain, path string
}

// Jar is a mutex-guarded cookie store keyed by (name, domain, path).
type Jar struct {
	mu      sync.RWMutex
	entries map[cookieKey]types.Cookie
}

func New() *Jar {
	return &Jar{entries: make(map[cookieKey]types.Cookie)}
}

// Add stores cookie, filling a missing Domain/Path from u. A cookie whose
// Domain is explicitly set to a bare public suffix is rejected outright: a
// host-only cookie (empty Domain, filled from u) is always fine since it
// scopes to the exact host rather than every subdomain of a suffix.
func (j *Jar) Add(cookie types.Cookie, u *url.URL) {
	if cookie.Domain == "" {
		cookie.Domain = u.Hostname()
	} else if isPublicSuffix(cookie.Domain) {
		return
	}
	if cookie.Path == "" {
		cookie.Path = defaultPath(u.Path)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries[cookieKey{cookie.Name, cookie.Domain, cookie.Path}] = cookie
}

func defaultPath(urlPath string) string {
	if urlPath == "" || urlPath[0] != '/' {
		return "/"
	}
	idx := strings.LastIndex(urlPath, "/")
	if idx <= 0 {
		return "/"
	}
	return urlPath[:idx]
}

// Matches returns every live cookie applicable to u.
func (j *Jar) Matches(u *url.URL) []types.Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()

	now := time.Now()
	var out []types.Cookie
	for _, c := range j.entries {
		if !c.Session && !c.Expires.IsZero() && now.After(c.Expires) {
			continue
		}
		if c.Secure && u.Scheme != "https" {
			continue
		}
		if !domainMatches(u.Hostname(), c.Domain) {
			continue
		}
		if !pathMatches(u.Path, c.Path) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func domainMatches(host, cookieDomain string) bool {
	if host == cookieDomain {
		return true
	}
	return strings.HasSuffix(host, "."+cookieDomain)
}

func pathMatches(urlPath, cookiePath string) bool {
	if urlPath == "" {
		urlPath = "/"
	}
	if urlPath == cookiePath {
		return true
	}
	if strings.HasPrefix(urlPath, cookiePath) {
		if strings.HasSuffix(cookiePath, "/") {
			return true
		}
		if len(urlPath) > len(cookiePath) && urlPath[len(cookiePath)] == '/' {
			return true
		}
	}
	return false
}

// EffectiveTLDPlusOne is used when callers need to reject a Set-Cookie that
// tries to scope a cookie to a bare public suffix (e.g. "co.uk").
func EffectiveTLDPlusOne(host string) (string, error) {
	return publicsuffix.EffectiveTLDPlusOne(host)
}

// isPublicSuffix reports whether domain is itself a public suffix (e.g.
// "com", "co.uk", "github.io") rather than a registrable domain or a
// subdomain of one. A Set-Cookie trying to scope a cookie this broadly is
// rejected per the WHATWG cookie grammar.
func isPublicSuffix(domain string) bool {
	suffix, _ := publicsuffix.PublicSuffix(domain)
	return suffix == domain
}

// ParseSetCookie parses one Set-Cookie header value per the WHATWG grammar.
func ParseSetCookie(header string) (types.Cookie, bool) {
	parts := strings.Split(header, ";")
	if len(parts) == 0 {
		return types.Cookie{}, false
	}

	nameValue := strings.SplitN(strings.TrimSpace(parts[0]), "=", 2)
	if len(nameValue) != 2 {
		return types.Cookie{}, false
	}
	c := types.Cookie{
		Name:    strings.TrimSpace(nameValue[0]),
		Value:   strings.TrimSpace(nameValue[1]),
		Path:    "",
		Session: true,
	}
	if c.Name == "" {
		return types.Cookie{}, false
	}

	for _, attr := range parts[1:] {
		attr = strings.TrimSpace(attr)
		if attr == "" {
			continue
		}
		kv := strings.SplitN(attr, "=", 2)
		key := strings.ToLower(strings.TrimSpace(kv[0]))
		var val string
		if len(kv) == 2 {
			val = strings.TrimSpace(kv[1])
		}

		switch key {
		case "domain":
			d := strings.TrimPrefix(val, ".")
			if d != "" && isPublicSuffix(d) {
				return types.Cookie{}, false
			}
			c.Domain = d
		case "path":
			c.Path = val
		case "secure":
			c.Secure = true
		case "httponly":
			c.HttpOnly = true
		case "samesite":
			c.SameSite = parseSameSite(val)
		case "max-age":
			if secs, err := strconv.Atoi(val); err == nil {
				c.Expires = time.Now().Add(time.Duration(secs) * time.Second)
				c.Session = false
			}
		case "expires":
			if t, err := time.Parse(time.RFC1123, val); err == nil {
				c.Expires = t
				c.Session = false
			} else if t, err := time.Parse(time.RFC850, val); err == nil {
				c.Expires = t
				c.Session = false
			}
		}
	}
	return c, true
}

func parseSameSite(val string) types.SameSite {
	switch strings.ToLower(val) {
	case "lax":
		return types.SameSiteLax
	case "strict":
		return types.SameSiteStrict
	default:
		return types.SameSiteNone
	}
}

// Clear discards every stored cookie.
func (j *Jar) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = make(map[cookieKey]types.Cookie)
}
