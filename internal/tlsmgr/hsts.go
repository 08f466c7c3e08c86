package tlsmgr

import (
	"strings"
	"sync"
	"time"

	"netstack/internal/types"
)

// HSTSStore records {host -> (expiry, includeSubdomains)}.
type HSTSStore struct {
	mu      sync.RWMutex
	entries map[string]types.HSTSEntry
}

func NewHSTSStore() *HSTSStore {
	return &HSTSStore{entries: make(map[string]types.HSTSEntry)}
}

// Set records or refreshes an HSTS policy for host.
func (s *HSTSStore) Set(host string, maxAge time.Duration, includeSubdomains bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if maxAge <= 0 {
		delete(s.entries, host)
		return
	}
	s.entries[host] = types.HSTSEntry{
		Host:              host,
		Expiry:            time.Now().Add(maxAge),
		IncludeSubdomains: includeSubdomains,
	}
}

// IsEnabled reports whether host (or an ancestor domain of a
// includeSubdomains entry) has a live, unexpired HSTS policy.
func (s *HSTSStore) IsEnabled(host string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	if e, ok := s.entries[host]; ok && now.Before(e.Expiry) {
		return true
	}
	for stored, e := range s.entries {
		if !e.IncludeSubdomains || !now.Before(e.Expiry) {
			continue
		}
		if isSubdomainOf(host, stored) {
			return true
		}
	}
	return false
}

// isSubdomainOf reports whether host is a strict, label-aligned descendant
// of domain (e.g. "www.secure.com" is a subdomain of "secure.com", but
// "notsecure.com" is not).
func isSubdomainOf(host, domain string) bool {
	if host == domain {
		return false
	}
	suffix := "." + domain
	return strings.HasSuffix(host, suffix)
}

// Clear discards every recorded entry.
func (s *HSTSStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]types.HSTSEntry)
}
