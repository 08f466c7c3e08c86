package platform

import (
	"context"
	"crypto/x509"
	"net"
	"net/http"
	"os"
	"strings"
	"time"
)

// SystemCertPool returns the host's trust store, used as the default root
// CA set for outbound TLS unless a caller supplies its own.
func SystemCertPool() (*x509.CertPool, error) {
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		return x509.NewCertPool(), nil
	}
	return pool, nil
}

// IsOnline does a best-effort connectivity probe by attempting a short TCP
// dial to the HTTPS port of a well-known DNS resolver (1.1.1.1:443); the orchestrator uses this to
// short-circuit network status reporting without waiting on a full fetch.
func IsOnline(ctx context.Context) bool {
	d := net.Dialer{Timeout: 2 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", "1.1.1.1:443")
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// ProxyFromEnvironment mirrors net/http.ProxyFromEnvironment's precedence
// (HTTPS_PROXY/https_proxy, HTTP_PROXY/http_proxy, NO_PROXY/no_proxy) but
// returns the proxy URL as a string ("" when no proxy applies) so callers outside net/http's RoundTripper can
// reuse it for proxyconfig.Config construction.
func ProxyFromEnvironment(targetURL string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, targetURL, nil)
	if err != nil {
		return "", err
	}
	u, err := http.ProxyFromEnvironment(req)
	if err != nil || u == nil {
		return "", err
	}
	return u.String(), nil
}

// NoProxyHosts parses the NO_PROXY/no_proxy environment variable into a
// host suffix list.
func NoProxyHosts() []string {
	val := os.Getenv("NO_PROXY")
	if val == "" {
		val = os.Getenv("no_proxy")
	}
	if val == "" {
		return nil
	}
	var hosts []string
	for _, h := range strings.Split(val, ",") {
		h = strings.TrimSpace(h)
		if h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}
