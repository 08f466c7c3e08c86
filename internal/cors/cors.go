// Package cors implements a cross-origin request validator and preflight
// state machine.
//
// Header name constants follow jub0bs/fcors's internal/middleware.go naming
// convention (headerRequestMethod, headerAllowOrigin, ...); the validation
// logic itself is grounded on original_source's cors_validator component,
// widened where this package's preflight-necessity rule is broader than the
// Rust original.
package cors

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"netstack/internal/errs"
	"netstack/internal/types"
)

const (
	headerOrigin = "Origin"

	headerRequestMethod  = "Access-Control-Request-Method"
	headerRequestHeaders = "Access-Control-Request-Headers"

	headerAllowOrigin      = "Access-Control-Allow-Origin"
	headerAllowCredentials = "Access-Control-Allow-Credentials"
	headerAllowMethods     = "Access-Control-Allow-Methods"
	headerAllowHeaders     = "Access-Control-Allow-Headers"
	headerMaxAge           = "Access-Control-Max-Age"

	wildcard            = "*"
	valueTrue           = "true"
	allowedMethodsValue = "GET, POST, PUT, DELETE, PATCH, OPTIONS"
	allowedHeadersValue = "Content-Type, Authorization, X-Requested-With"
	maxAgeValue         = "3600"
)

// simpleMethods is the CORS simple-method set; anything else forces a
// preflight regardless of headers. POST is deliberately excluded: spec §4.3
// and original_source's preflight.rs (`is_simple_method = matches!(Get|Head)`)
// define the set as exactly {GET, HEAD}.
var simpleMethods = map[types.Method]bool{
	types.MethodGet:  true,
	types.MethodHead: true,
}

// Policy is {enforce_same_origin, allow_credentials, optional allowed-origins list}.
type Policy struct {
	EnforceSameOrigin bool
	AllowCredentials  bool
	AllowedOrigins    []string // nil/empty means "*" (any origin)
}

func NewPolicy() *Policy { return &Policy{} }

func (p *Policy) WithEnforceSameOrigin(v bool) *Policy { p.EnforceSameOrigin = v; return p }
func (p *Policy) WithAllowCredentials(v bool) *Policy  { p.AllowCredentials = v; return p }
func (p *Policy) WithAllowedOrigins(origins ...string) *Policy {
	p.AllowedOrigins = append([]string(nil), origins...)
	return p
}

func (p *Policy) isWildcardConfigured() bool {
	return len(p.AllowedOrigins) == 0
}

// ValidateRequest checks a request's mode/origin/credentials combination and
// returns the request-side headers to attach, or a CorsError.
func (p *Policy) ValidateRequest(req *types.Request) (*types.Header, error) {
	if req.Mode == types.ModeSameOrigin && !sameOrigin(req.Origin, req.URL.Scheme+"://"+req.URL.Host) {
		return nil, errs.Cors("same-origin violation")
	}
	if p.AllowCredentials && p.isWildcardConfigured() {
		return nil, errs.Cors("wildcard disallowed with credentials")
	}

	h := types.NewHeader()
	if req.Origin != "" {
		h.Set(headerOrigin, req.Origin)
	}
	if p.AllowCredentials && req.Credentials == types.CredentialsInclude {
		h.Set(headerAllowCredentials, valueTrue)
	}
	return h, nil
}

func sameOrigin(a, b string) bool {
	return a != "" && a == b
}

// NeedsPreflight reports whether req requires an OPTIONS preflight: mode is
// Cors AND (method is not simple OR custom headers are present).
func NeedsPreflight(req *types.Request) bool {
	if req.Mode != types.ModeCors {
		return false
	}
	if !simpleMethods[req.Method] {
		return true
	}
	if req.Headers == nil {
		return false
	}
	for _, name := range req.Headers.Names() {
		if !isSimpleHeader(name) {
			return true
		}
	}
	return false
}

var simpleHeaders = map[string]bool{
	"accept":           true,
	"accept-language":  true,
	"content-language": true,
	"content-type":     true,
}

func isSimpleHeader(name string) bool {
	return simpleHeaders[strings.ToLower(name)]
}

// sortedLowerHeaderNames returns h's header names lowercased and sorted, the
// form both the Access-Control-Request-Headers value and the preflight
// cache key are built from.
func sortedLowerHeaderNames(h *types.Header) []string {
	if h == nil || h.Len() == 0 {
		return nil
	}
	names := append([]string(nil), h.Names()...)
	for i, n := range names {
		names[i] = strings.ToLower(n)
	}
	sort.Strings(names)
	return names
}

// BuildPreflight clones req into an OPTIONS preflight request.
func BuildPreflight(req *types.Request) *types.Request {
	pre := req.Clone()
	pre.Method = types.MethodOptions
	pre.Headers = types.NewHeader()
	if req.Origin != "" {
		pre.Headers.Set(headerOrigin, req.Origin)
	}
	pre.Headers.Set(headerRequestMethod, string(req.Method))

	if names := sortedLowerHeaderNames(req.Headers); len(names) > 0 {
		pre.Headers.Set(headerRequestHeaders, strings.Join(names, ", "))
	}
	return pre
}

// PreflightCacheKey returns a stable key identifying req by (origin, URL,
// method, header-set), the tuple spec §4.1 step 5 says a cached preflight
// decision is keyed on for the Access-Control-Max-Age window.
func PreflightCacheKey(req *types.Request) string {
	url := ""
	if req.URL != nil {
		url = req.URL.String()
	}
	names := sortedLowerHeaderNames(req.Headers)
	return req.Origin + "\x00" + url + "\x00" + string(req.Method) + "\x00" + strings.Join(names, ",")
}

// DefaultMaxAge is the Access-Control-Max-Age fallback used both when
// building response headers and when a preflight response omits the
// header entirely.
const DefaultMaxAge = 3600 * time.Second

// ParseMaxAge reads an Access-Control-Max-Age header value in seconds,
// falling back to DefaultMaxAge when absent or invalid.
func ParseMaxAge(raw string) time.Duration {
	if raw == "" {
		return DefaultMaxAge
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		return DefaultMaxAge
	}
	return time.Duration(secs) * time.Second
}

// BuildResponseHeaders constructs the CORS response headers for origin.
func (p *Policy) BuildResponseHeaders(origin string) *types.Header {
	h := types.NewHeader()
	allowOrigin := origin
	if !p.AllowCredentials && p.isWildcardConfigured() {
		allowOrigin = wildcard
	}
	h.Set(headerAllowOrigin, allowOrigin)
	h.Set(headerAllowMethods, allowedMethodsValue)
	h.Set(headerAllowHeaders, allowedHeadersValue)
	h.Set(headerMaxAge, maxAgeValue)
	if p.AllowCredentials {
		h.Set(headerAllowCredentials, valueTrue)
	}
	return h
}
