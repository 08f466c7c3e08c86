// Package dnscache resolves hostnames to IP addresses with a TTL cache and
// optional DNS-over-HTTPS, grounded on the sibling odac-dns module's use of
// github.com/miekg/dns and on dns_resolver's StandardResolver/DnsCache split
// (resolve-through-cache, clear_expired sweep, DohConfig fallback flag).
package dnscache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"sync"
	"time"

	"github.com/miekg/dns"

	"netstack/internal/errs"
)

const defaultTTL = 5 * time.Minute

// DoHConfig configures DNS-over-HTTPS resolution.
type DoHConfig struct {
	Enabled      bool
	ResolverURL  string
	UseFallback bool
}

func GoogleDoH() DoHConfig {
	return DoHConfig{Enabled: true, ResolverURL: "https://dns.google/dns-query", UseFallback: true}
}

func CloudflareDoH() DoHConfig {
	return DoHConfig{Enabled: true, ResolverURL: "https://cloudflare-dns.com/dns-query", UseFallback: true}
}

type cacheEntry struct {
	addrs     []netip.Addr
	expiresAt time.Time
}

// cache is a TTL-expiring map of hostname -> resolved addresses.
type cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

func newCache() *cache {
	return &cache{entries: make(map[string]cacheEntry)}
}

func (c *cache) get(host string) ([]netip.Addr, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[host]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.addrs, true
}

func (c *cache) put(host string, addrs []netip.Addr, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[host] = cacheEntry{addrs: addrs, expiresAt: time.Now().Add(ttl)}
}

func (c *cache) clearExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}

func (c *cache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *cache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// Resolver resolves hostnames to IP addresses, caching results by TTL and
// optionally routing lookups through a DNS-over-HTTPS endpoint.
type Resolver struct {
	cache      *cache
	doh        *DoHConfig
	httpClient *http.Client
	dnsClient  *dns.Client
	servers    []string // "host:port" system resolvers, used when DoH is disabled
}

// NewResolver builds a resolver. A nil doh means plain system DNS via
// github.com/miekg/dns against /etc/resolv.conf servers.
func NewResolver(doh *DoHConfig) *Resolver {
	r := &Resolver{
		cache:     newCache(),
		doh:       doh,
		dnsClient: &dns.Client{Timeout: 5 * time.Second},
	}
	if doh != nil && doh.Enabled {
		r.httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	if cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf"); err == nil {
		for _, s := range cfg.Servers {
			r.servers = append(r.servers, net.JoinHostPort(s, cfg.Port))
		}
	}
	if len(r.servers) == 0 {
		r.servers = []string{"8.8.8.8:53"}
	}
	return r
}

func WithGoogleDoH() *Resolver {
	cfg := GoogleDoH()
	return NewResolver(&cfg)
}

func WithCloudflareDoH() *Resolver {
	cfg := CloudflareDoH()
	return NewResolver(&cfg)
}

// Resolve returns the cached or freshly looked-up addresses for host.
func (r *Resolver) Resolve(ctx context.Context, host string) ([]netip.Addr, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		return []netip.Addr{addr}, nil
	}
	if addrs, ok := r.cache.get(host); ok {
		return addrs, nil
	}

	var addrs []netip.Addr
	var err error
	if r.doh != nil && r.doh.Enabled {
		addrs, err = r.resolveDoH(ctx, host)
		if err != nil && r.doh.UseFallback {
			addrs, err = r.resolvePlain(ctx, host)
		}
	} else {
		addrs, err = r.resolvePlain(ctx, host)
	}
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, errs.DNS(fmt.Sprintf("no addresses found for %s", host), nil)
	}

	r.cache.put(host, addrs, defaultTTL)
	return addrs, nil
}

// ResolveWithTimeout is Resolve bounded by timeout.
func (r *Resolver) ResolveWithTimeout(ctx context.Context, host string, timeout time.Duration) ([]netip.Addr, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		addrs []netip.Addr
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		addrs, err := r.Resolve(ctx, host)
		ch <- result{addrs, err}
	}()

	select {
	case <-ctx.Done():
		return nil, errs.NewTimeout(fmt.Sprintf("resolving %s", host), timeout)
	case res := <-ch:
		return res.addrs, res.err
	}
}

func (r *Resolver) resolvePlain(ctx context.Context, host string) ([]netip.Addr, error) {
	fqdn := dns.Fqdn(host)
	var addrs []netip.Addr

	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		msg := new(dns.Msg)
		msg.SetQuestion(fqdn, qtype)
		msg.RecursionDesired = true

		resp, _, err := r.dnsClient.ExchangeContext(ctx, msg, r.servers[0])
		if err != nil {
			continue
		}
		for _, rr := range resp.Answer {
			switch rec := rr.(type) {
			case *dns.A:
				if a, ok := netip.AddrFromSlice(rec.A.To4()); ok {
					addrs = append(addrs, a)
				}
			case *dns.AAAA:
				if a, ok := netip.AddrFromSlice(rec.AAAA.To16()); ok {
					addrs = append(addrs, a)
				}
			}
		}
	}
	if len(addrs) == 0 {
		return nil, errs.DNS(fmt.Sprintf("dns resolution failed for %s", host), nil)
	}
	return addrs, nil
}

// resolveDoH performs a DNS-over-HTTPS lookup using RFC 8484 wire format
// over the configured resolver URL.
func (r *Resolver) resolveDoH(ctx context.Context, host string) ([]netip.Addr, error) {
	var addrs []netip.Addr
	fqdn := dns.Fqdn(host)

	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		msg := new(dns.Msg)
		msg.SetQuestion(fqdn, qtype)
		msg.Id = dns.Id()

		packed, err := msg.Pack()
		if err != nil {
			return nil, errs.DNS("failed to pack DoH query", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.doh.ResolverURL, bytes.NewReader(packed))
		if err != nil {
			return nil, errs.DNS("failed to build DoH request", err)
		}
		req.Header.Set("Content-Type", "application/dns-message")
		req.Header.Set("Accept", "application/dns-message")

		resp, err := r.httpClient.Do(req)
		if err != nil {
			return nil, errs.DNS("DoH request failed", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, errs.DNS("failed to read DoH response", err)
		}

		reply := new(dns.Msg)
		if err := reply.Unpack(body); err != nil {
			continue
		}
		for _, rr := range reply.Answer {
			switch rec := rr.(type) {
			case *dns.A:
				if a, ok := netip.AddrFromSlice(rec.A.To4()); ok {
					addrs = append(addrs, a)
				}
			case *dns.AAAA:
				if a, ok := netip.AddrFromSlice(rec.AAAA.To16()); ok {
					addrs = append(addrs, a)
				}
			}
		}
	}
	return addrs, nil
}

// ClearCache discards every cached entry.
func (r *Resolver) ClearCache() { r.cache.reset() }

// CacheSize reports the number of cache entries, including expired entries
// that SweepExpired has not yet removed.
func (r *Resolver) CacheSize() int { return r.cache.size() }

// SweepExpired drops expired cache entries. It runs only when a caller
// invokes it; the orchestrator starts no background sweeper.
func (r *Resolver) SweepExpired() { r.cache.clearExpired() }
