// Package errs defines the network stack's error taxonomy.
//
// Every kind except Timeout shares the *Error type and is told apart by its
// Kind tag (see Is); Timeout is a separate type so callers can use errors.As
// to recover its wait duration. This mirrors the tagged NetworkError enum
// the stack was ported from.
package errs

import (
	"fmt"
	"time"
)

// Kind identifies which taxonomy bucket an error belongs to.
type Kind string

const (
	KindConnectionFailed Kind = "connection_failed"
	KindDNS              Kind = "dns"
	KindTLS              Kind = "tls"
	KindProtocol         Kind = "protocol"
	KindTimeout          Kind = "timeout"
	KindAborted          Kind = "aborted"
	KindInvalidURL       Kind = "invalid_url"
	KindTooManyRedirects Kind = "too_many_redirects"
	KindCache            Kind = "cache"
	KindProxy            Kind = "proxy"
	KindCors             Kind = "cors"
	KindMixedContent     Kind = "mixed_content"
	KindCertificate      Kind = "certificate"
	KindWebSocket        Kind = "websocket"
	KindWebRTC           Kind = "webrtc"
	KindIO               Kind = "io"
	KindOther            Kind = "other"
)

// Error is the common shape for every taxonomy member: a kind tag plus a
// short human-readable description, optionally wrapping a cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func new(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

func ConnectionFailed(msg string, cause error) error { return new(KindConnectionFailed, msg, cause) }
func DNS(msg string, cause error) error              { return new(KindDNS, msg, cause) }
func TLS(msg string, cause error) error               { return new(KindTLS, msg, cause) }
func Protocol(codec, msg string) error {
	return new(KindProtocol, fmt.Sprintf("%s: %s", codec, msg), nil)
}
func Aborted(msg string) error          { return new(KindAborted, msg, nil) }
func InvalidURL(msg string) error       { return new(KindInvalidURL, msg, nil) }
func TooManyRedirects(n int) error {
	return new(KindTooManyRedirects, fmt.Sprintf("exceeded %d redirects", n), nil)
}
func Cache(msg string, cause error) error        { return new(KindCache, msg, cause) }
func Proxy(msg string, cause error) error        { return new(KindProxy, msg, cause) }
func Cors(msg string) error                      { return new(KindCors, msg, nil) }
func MixedContent(msg string) error              { return new(KindMixedContent, msg, nil) }
func Certificate(msg string) error               { return new(KindCertificate, msg, nil) }
func WebSocket(msg string, cause error) error    { return new(KindWebSocket, msg, cause) }
func WebRTC(msg string) error                    { return new(KindWebRTC, msg, nil) }
func IO(msg string, cause error) error           { return new(KindIO, msg, cause) }
func Other(msg string, cause error) error        { return new(KindOther, msg, cause) }

// Timeout carries the elapsed/allotted duration alongside the message, the
// one taxonomy member that needs extra structured data.
type Timeout struct {
	Duration time.Duration
	Message  string
}

func (e *Timeout) Error() string {
	return fmt.Sprintf("timeout: %s (after %s)", e.Message, e.Duration)
}

func NewTimeout(msg string, d time.Duration) error {
	return &Timeout{Duration: d, Message: msg}
}

// Is reports whether err carries the given Kind, looking through Error and
// Timeout (which is reported as KindTimeout).
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	if _, ok := err.(*Timeout); ok {
		return kind == KindTimeout
	}
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}
