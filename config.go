// Package netstack is the browser-style core network stack: orchestration,
// security policy engines, and protocol-neutral transports behind one
// façade, in the spirit of odac-run-odac's Proxy type tying together
// firewall, TLS, and transport concerns behind one entry point.
package netstack

import (
	"log"
	"time"

	"netstack/internal/cookiejar"
	"netstack/internal/cors"
	"netstack/internal/dnscache"
	"netstack/internal/httpcache"
	"netstack/internal/mixedcontent"
	"netstack/internal/platform"
	"netstack/internal/proxyconfig"
	"netstack/internal/throttle"
	"netstack/internal/tlsmgr"
)

// Config is the whole-stack configuration, built by successive With* calls
// and handed to New (which keeps the pointer), mirroring spec §9's "plain records
// constructed by builder-style successive settings" and, concretely, the
// way odac-run-odac's config.Website/Firewall/SSL structs are assembled
// before being handed to proxy.NewProxy.
type Config struct {
	CORSPolicy         cors.Policy
	MixedContentPolicy mixedcontent.Policy
	CTPolicy           tlsmgr.CTPolicy
	TLSConfig          *tlsmgr.Config

	DoH                *dnscache.DoHConfig
	Proxy              proxyconfig.Config

	RewriteMethodOn3xx bool
	MaxRedirects       int
	EnableHTTP3        bool

	DNSTimeout  time.Duration
	DialTimeout time.Duration

	Logger *log.Logger
}

// DefaultConfig matches odac-run-odac's own defaults where an equivalent
// setting exists (TLS min version, logging format); the rest are
// conservative browser-style defaults.
func DefaultConfig() *Config {
	return &Config{
		MixedContentPolicy: mixedcontent.Policy{UpgradeInsecureRequests: true},
		CTPolicy:           tlsmgr.DefaultCTPolicy(),
		TLSConfig:          tlsmgr.NewConfig().WithALPNProtocols("h3", "h2", "http/1.1"),
		Proxy:              proxyconfig.None(),
		RewriteMethodOn3xx: true,
		MaxRedirects:       20,
		DNSTimeout:         5 * time.Second,
		DialTimeout:        10 * time.Second,
		Logger:             platform.NewLogger(),
	}
}

func (c *Config) WithCORSPolicy(p cors.Policy) *Config {
	c.CORSPolicy = p
	return c
}

func (c *Config) WithMixedContentPolicy(p mixedcontent.Policy) *Config {
	c.MixedContentPolicy = p
	return c
}

func (c *Config) WithCTPolicy(p tlsmgr.CTPolicy) *Config {
	c.CTPolicy = p
	return c
}

func (c *Config) WithTLSConfig(cfg *tlsmgr.Config) *Config {
	c.TLSConfig = cfg
	return c
}

func (c *Config) WithDoH(cfg dnscache.DoHConfig) *Config {
	c.DoH = &cfg
	return c
}

func (c *Config) WithProxy(p proxyconfig.Config) *Config {
	c.Proxy = p
	return c
}

func (c *Config) WithRewriteMethodOn3xx(b bool) *Config {
	c.RewriteMethodOn3xx = b
	return c
}

func (c *Config) WithMaxRedirects(n int) *Config {
	c.MaxRedirects = n
	return c
}

func (c *Config) WithHTTP3(enabled bool) *Config {
	c.EnableHTTP3 = enabled
	return c
}

// Stores bundles the process-lifetime-shared state stores (§3's
// "Lifecycles": cookie/HSTS/pin stores live for the process lifetime
// unless explicitly cleared) so callers can seed or inspect them before
// and after New.
type Stores struct {
	Cookies      *cookiejar.Jar
	Cache        *httpcache.Cache
	HSTS         *tlsmgr.HSTSStore
	Certificates *tlsmgr.CertificateStore
}

func NewStores() *Stores {
	return &Stores{
		Cookies:      cookiejar.New(),
		Cache:        httpcache.New(),
		HSTS:         tlsmgr.NewHSTSStore(),
		Certificates: tlsmgr.NewCertificateStore(),
	}
}
