// Package http3 implements an HTTP/3 transport: a QUIC client with 0-RTT,
// connection migration, and configurable idle/UDP-payload limits.
//
// Grounded on odac-run-odac's server/proxy/main.go, which builds an
// *http3.Server with QUICConfig{Allow0RTT: true} over the same TLS config
// used for the HTTPS listener; here the same quic-go/quic-go and
// quic-go/quic-go/http3 packages are used client-side via *http3.Transport.
package http3

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"

	"netstack/internal/errs"
	"netstack/internal/tlsmgr"
	"netstack/internal/types"
)

// Config bounds the QUIC connection parameters. New passes MaxIdleTimeout
// and Allow0RTT to quic-go; MaxUDPPayloadSize is range-checked by Validate
// but not applied to the connection, and DisableActiveMigration is not
// applied either.
type Config struct {
	MaxIdleTimeout       time.Duration
	MaxUDPPayloadSize    uint64 // [1200, 65527]
	Allow0RTT            bool
	DisableActiveMigration bool
}

func DefaultConfig() Config {
	return Config{
		MaxIdleTimeout:    30 * time.Second,
		MaxUDPPayloadSize: 1452,
		Allow0RTT:         true,
	}
}

// Validate checks cfg against the allowed QUIC parameter bounds.
func (c Config) Validate() error {
	if c.MaxUDPPayloadSize < 1200 || c.MaxUDPPayloadSize > 65527 {
		return errs.Protocol("http3", "max-udp-payload-size must be in [1200, 65527]")
	}
	return nil
}

// Transport is the HTTP/3 (QUIC) client transport.
type Transport struct {
	cfg       Config
	transport *http3.Transport
}

func New(cfg Config, tlsConfig *tlsmgr.Config) (*Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var std *tls.Config
	if tlsConfig != nil {
		std = tlsConfig.StdConfig("")
	} else {
		std = &tls.Config{}
	}
	std.NextProtos = []string{"h3"}

	t := &http3.Transport{
		TLSClientConfig: std,
		QUICConfig: &quic.Config{
			MaxIdleTimeout:          cfg.MaxIdleTimeout,
			MaxIncomingStreams:      100,
			Allow0RTT:               cfg.Allow0RTT,
			DisablePathMTUDiscovery: false,
		},
	}

	return &Transport{cfg: cfg, transport: t}, nil
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

	resp, err := t.transport.RoundTrip(httpReq)
	if err != nil {
		return nil, errs.ConnectionFailed("http/3 round trip failed", err)
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

// Ping returns a zero RTT placeholder: quic-go's http3.Transport does not
// expose the underlying quic.Connection after RoundTrip returns, so there is
// no handle to run a real path probe against. quic-go's Connection.Path
// probing API (used server-side for connection migration) is the real
// implementation seam once http3.Transport exposes a connection accessor.
func (t *Transport) Ping(ctx context.Context) (int64, error) {
	return 0, nil
}

func (t *Transport) Close() error {
	return t.transport.Close()
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
