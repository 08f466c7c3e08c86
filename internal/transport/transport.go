// Package transport defines the capability set shared by the HTTP-shaped
// transports (HTTP/1.1, HTTP/2, HTTP/3): send a request, measure round-trip
// time, and close. WebSocket and FTP have their own connection types and do
// not implement it; the set has no stream-opening operation.
package transport

import (
	"context"

	"netstack/internal/types"
)

// RoundTripper sends a protocol-neutral request and returns a
// protocol-neutral response. Every HTTP-shaped transport implements this.
type RoundTripper interface {
	RoundTrip(ctx context.Context, req *types.Request) (*types.Response, error)
	// Ping measures round-trip time to the remote endpoint in
	// milliseconds. HTTP/2 sends a PING frame; HTTP/3 returns a zero
	// placeholder; plain HTTP/1.1, which has no native ping, returns
	// errs.Protocol.
	Ping(ctx context.Context) (rtt int64, err error)
	// Close releases transport-owned resources (pooled connections,
	// QUIC endpoints, control sockets).
	Close() error
}
