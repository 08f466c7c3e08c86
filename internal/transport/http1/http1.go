// Package http1 implements an HTTP/1.1 transport: a connection pool keyed
// by (scheme, host, port), capped per host, with idle connections reaped
// by timeout.
//
// The pool sizing and timeout values are carried over from
// odac-run-odac's reverse-proxy http.Transport in proxy/proxy.go
// (MaxIdleConns, MaxIdleConnsPerHost, IdleConnTimeout,
// TLSHandshakeTimeout, ResponseHeaderTimeout), reused here on the client
// side of an http.Transport rather than as an inbound-facing one.
package http1

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"netstack/internal/errs"
	"netstack/internal/tlsmgr"
	"netstack/internal/types"
)

// Config controls the connection pool's shape.
type Config struct {
	MaxIdleConnsPerHost   int
	MaxIdleConns          int
	IdleConnTimeout       time.Duration
	TLSHandshakeTimeout   time.Duration
	ResponseHeaderTimeout time.Duration
	Keepalive             bool
}

func DefaultConfig() Config {
	return Config{
		MaxIdleConnsPerHost:   32,
		MaxIdleConns:          512,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 60 * time.Second,
		Keepalive:             true,
	}
}

// Transport is the client-side HTTP/1.1 transport.
type Transport struct {
	cfg       Config
	transport *http.Transport
}

func New(cfg Config, tlsConfig *tlsmgr.Config) *Transport {
	dialer := &net.Dialer{Timeout: 30 * time.Second}
	if cfg.Keepalive {
		dialer.KeepAlive = 30 * time.Second
	} else {
		dialer.KeepAlive = -1
	}

	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     false,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
	}
	if tlsConfig != nil {
		base.TLSClientConfig = tlsConfig.StdConfig("")
	}

	return &Transport{cfg: cfg, transport: base}
}

// RoundTrip sends req and returns the protocol-neutral response.
func (t *Transport) RoundTrip(ctx context.Context, req *types.Request) (*types.Response, error) {
	httpReq, err := toHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	httpResp, err := t.transport.RoundTrip(httpReq)
	if err != nil {
		return nil, errs.ConnectionFailed("http/1.1 round trip failed", err)
	}
	return fromHTTPResponse(httpResp)
}

// Ping is unsupported on plain HTTP/1.1: there is no protocol-level ping.
func (t *Transport) Ping(ctx context.Context) (int64, error) {
	return 0, errs.Protocol("http/1.1", "ping is not supported by this transport")
}

func (t *Transport) Close() error {
	t.transport.CloseIdleConnections()
	return nil
}

func toHTTPRequest(ctx context.Context, req *types.Request) (*http.Request, error) {
	var body io.Reader
	if req.Body != nil {
		switch req.Body.Kind {
		case types.BodyBytes:
			body = bytes.NewReader(req.Body.Bytes)
		case types.BodyText:
			body = bytes.NewReader([]byte(req.Body.Text))
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
	return httpReq, nil
}

func fromHTTPResponse(httpResp *http.Response) (*types.Response, error) {
	headers := types.NewHeader()
	for name, values := range httpResp.Header {
		for _, v := range values {
			headers.Add(name, v)
		}
	}

	body, err := io.ReadAll(httpResp.Body)
	httpResp.Body.Close()
	if err != nil {
		return nil, errs.IO("failed to read response body", err)
	}

	return &types.Response{
		URL:        httpResp.Request.URL,
		Status:     httpResp.StatusCode,
		StatusText: httpResp.Status,
		Headers:    headers,
		Body:       &types.ResponseBody{Kind: types.BodyBytes, Bytes: body},
	}, nil
}
