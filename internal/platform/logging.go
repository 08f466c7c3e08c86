// Package platform carries the ambient, host-specific concerns shared by
// every other package: logging, the system certificate pool, a network
// reachability probe, and environment-based proxy discovery.
package platform

import (
	"bytes"
	"io"
	"log"
	"os"
)

// LogFilter implements io.Writer to suppress noisy log lines, ported from
// odac-run-odac's log_filter.go (there used to silence TLS handshake noise
// on an inbound listener; here it silences transient client-side
// connection noise).
type LogFilter struct {
	w       io.Writer
	ignores [][]byte
}

func NewLogFilter(w io.Writer, ignores []string) *LogFilter {
	ignoreBytes := make([][]byte, len(ignores))
	for i, s := range ignores {
		ignoreBytes[i] = []byte(s)
	}
	return &LogFilter{w: w, ignores: ignoreBytes}
}

func (f *LogFilter) Write(p []byte) (int, error) {
	for _, ignore := range f.ignores {
		if bytes.Contains(p, ignore) {
			return len(p), nil
		}
	}
	return f.w.Write(p)
}

// NewLogger builds the stack's default *log.Logger: stderr, filtered to
// drop expected transient connection noise.
func NewLogger() *log.Logger {
	return log.New(NewLogFilter(os.Stderr, []string{
		"connection reset by peer",
		"use of closed network connection",
	}), "netstack: ", log.LstdFlags|log.Lmicroseconds)
}
