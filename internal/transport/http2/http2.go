// Package http2 implements an HTTP/2 transport: a single long-lived
// multiplexed connection per authority with settings validation and a
// native ping for RTT measurement.
//
// The ALPN/TLS shape is grounded on odac-run-odac's server/proxy/main.go
// TLS config (NextProtos ordered "h2" before "http/1.1", curve
// preferences); here it is built client-side via golang.org/x/net/http2's
// Transport rather than http.Server's ALPN negotiation.
package http2

import (
	"context"
	"crypto/tls"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/net/http2"

	"netstack/internal/errs"
	"netstack/internal/tlsmgr"
	"netstack/internal/types"
)

// Settings mirrors the peer-negotiable HTTP/2 SETTINGS frame parameters.
type Settings struct {
	MaxConcurrentStreams uint32 // 1..=math.MaxUint32
	InitialWindowSize    uint32 // <= 2^31-1
	MaxFrameSize         uint32 // [16384, 16777215]
	EnablePush           bool
}

func DefaultSettings() Settings {
	return Settings{
		MaxConcurrentStreams: 100,
		InitialWindowSize:    1 << 20,
		MaxFrameSize:         16384,
		EnablePush:           false,
	}
}

// Validate checks s against the allowed HTTP/2 SETTINGS ranges.
func (s Settings) Validate() error {
	if s.MaxConcurrentStreams < 1 {
		return errs.Protocol("http2", "max-concurrent-streams must be >= 1")
	}
	if s.InitialWindowSize > math.MaxInt32 {
		return errs.Protocol("http2", "initial-window-size exceeds 2^31-1")
	}
	if s.MaxFrameSize < 16384 || s.MaxFrameSize > 16777215 {
		return errs.Protocol("http2", "max-frame-size must be in [16384, 16777215]")
	}
	return nil
}

// Transport is a single multiplexed HTTP/2 client connection per authority.
// connFor dials a *http2.ClientConn lazily on first use (via
// http2.Transport.NewClientConn, outside that transport's own pool) and
// caches it in conn; it is reused while requests target the same authority
// and it can take new requests, and replaced otherwise. Ping measures RTT on
// that cached connection rather than opening a throwaway one.
type Transport struct {
	settings  Settings
	tlsConfig *tlsmgr.Config
	transport *http2.Transport

	mu       sync.Mutex
	authority string
	conn      *http2.ClientConn
}

func New(settings Settings, tlsConfig *tlsmgr.Config) (*Transport, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	var std *tls.Config
	if tlsConfig != nil {
		std = tlsConfig.StdConfig("")
	} else {
		std = &tls.Config{}
	}
	std.NextProtos = []string{"h2"}

	t := &http2.Transport{
		TLSClientConfig:  std,
		AllowHTTP:        false,
		ReadIdleTimeout:  0,
		PingTimeout:      0,
		MaxReadFrameSize: settings.MaxFrameSize,
	}

	return &Transport{settings: settings, tlsConfig: tlsConfig, transport: t}, nil
}

// connFor returns a live *http2.ClientConn to authority, dialing one if the
// cached connection is absent, closed, or for a different authority.
func (t *Transport) connFor(ctx context.Context, authority string) (*http2.ClientConn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil && t.authority == authority && t.conn.CanTakeNewRequest() {
		return t.conn, nil
	}

	dialer := tls.Dialer{Config: t.transport.TLSClientConfig}
	rawConn, err := dialer.DialContext(ctx, "tcp", authority)
	if err != nil {
		return nil, errs.ConnectionFailed("http/2 dial to "+authority+" failed", err)
	}

	cc, err := t.transport.NewClientConn(rawConn)
	if err != nil {
		rawConn.Close()
		return nil, errs.ConnectionFailed("http/2 handshake with "+authority+" failed", err)
	}

	t.authority = authority
	t.conn = cc
	return cc, nil
}

func (t *Transport) RoundTrip(ctx context.Context, req *types.Request) (*types.Response, error) {
	var body io.Reader
	if req.Body != nil {
		switch req.Body.Kind {
		case types.BodyBytes:
			body = newReader(req.Body.Bytes)
		case types.BodyText:
			body = newReader([]byte(req.Body.Text))
		case types.BodyStream:
			body = req.Body.Stream
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, string(req.Method), req.URL.String(), body)
	if err != nil {
		return nil, errs.InvalidURL(err.Error())
	}
	if req.Headers != nil {
		for _, name := range req.Headers.Names() {
			for _, v := range req.Headers.Values(name) {
				httpReq.Header.Add(name, v)
			}
		}
	}

	cc, err := t.connFor(ctx, authority(req.URL))
	if err != nil {
		return nil, err
	}

	resp, err := cc.RoundTrip(httpReq)
	if err != nil {
		return nil, errs.ConnectionFailed("http/2 round trip failed", err)
	}
	defer resp.Body.Close()

	headers := types.NewHeader()
	for name, values := range resp.Header {
		for _, v := range values {
			headers.Add(name, v)
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.IO("failed to read response body", err)
	}

	return &types.Response{
		URL:        resp.Request.URL,
		Status:     resp.StatusCode,
		StatusText: resp.Status,
		Headers:    headers,
		Body:       &types.ResponseBody{Kind: types.BodyBytes, Bytes: data},
	}, nil
}

// Ping issues an HTTP/2 PING frame on the most recently used connection and
// reports the measured round trip in milliseconds. A RoundTrip call must
// precede Ping so a connection exists to measure.
func (t *Transport) Ping(ctx context.Context) (int64, error) {
	t.mu.Lock()
	cc := t.conn
	t.mu.Unlock()
	if cc == nil {
		return 0, errs.Protocol("http2", "no established connection to ping")
	}

	start := time.Now()
	if err := cc.Ping(ctx); err != nil {
		return 0, errs.ConnectionFailed("http/2 ping failed", err)
	}
	return time.Since(start).Milliseconds(), nil
}

func (t *Transport) Close() error {
	t.transport.CloseIdleConnections()
	return nil
}

// authority returns the host:port a connection should be dialed for,
// defaulting the port from the URL scheme when absent.
func authority(u *url.URL) string {
	if u.Port() != "" {
		return u.Host
	}
	if u.Scheme == "http" {
		return net.JoinHostPort(u.Hostname(), "80")
	}
	return net.JoinHostPort(u.Hostname(), "443")
}

type byteReader struct {
	b []byte
	i int
}

func newReader(b []byte) *byteReader { return &byteReader{b: b} }

func (r *byteReader) Read(p []byte) (int, error) {
	if r.i >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.i:])
	r.i += n
	return n, nil
}
