// Package tlsmgr builds outbound TLS configuration and implements the
// certificate-pin, HSTS, and Certificate Transparency policy engines that
// sit between DNS resolution and transport dial.
//
// The ALPN-ordered, builder-style Config mirrors odac-run-odac's TLS setup
// in server/proxy/main.go (ordered NextProtos, curve preferences), adapted
// from a server listener config to a client dial config.
package tlsmgr

import (
	"crypto/tls"
	"crypto/x509"
)

// Config is a builder for outbound TLS configuration. Callers chain
// WithALPNProtocols the way odac-run-odac's proxy config chains website
// settings.
type Config struct {
	alpnProtocols []string
	minVersion    uint16
	rootCAs       *x509.CertPool
	insecureSkip  bool
}

func NewConfig() *Config {
	return &Config{minVersion: tls.VersionTLS12}
}

// WithALPNProtocols sets the ordered ALPN protocol list, e.g. "h3","h2","http/1.1".
func (c *Config) WithALPNProtocols(protocols ...string) *Config {
	c.alpnProtocols = append([]string(nil), protocols...)
	return c
}

func (c *Config) WithMinVersion(v uint16) *Config {
	c.minVersion = v
	return c
}

func (c *Config) WithRootCAs(pool *x509.CertPool) *Config {
	c.rootCAs = pool
	return c
}

// WithInsecureSkipVerify disables chain verification; exposed only for
// tests against ephemeral local TLS servers.
func (c *Config) WithInsecureSkipVerify() *Config {
	c.insecureSkip = true
	return c
}

// ALPNProtocols returns the configured protocol list.
func (c *Config) ALPNProtocols() []string {
	return append([]string(nil), c.alpnProtocols...)
}

// StdConfig builds a *tls.Config ready for use by a client dialer. It sets
// no verification callbacks: the orchestrator runs the pin and CT checks
// itself over a separate handshake (NetworkStack.verifyCertificatePolicy),
// so that failures surface as structured errs.Certificate rather than
// generic TLS alerts.
func (c *Config) StdConfig(serverName string) *tls.Config {
	return &tls.Config{
		ServerName:         serverName,
		NextProtos:         append([]string(nil), c.alpnProtocols...),
		MinVersion:         c.minVersion,
		RootCAs:            c.rootCAs,
		InsecureSkipVerify: c.insecureSkip,
		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
			tls.CurveP384,
		},
	}
}
