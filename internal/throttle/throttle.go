// Package throttle implements the token-bucket bandwidth limiter and
// NetworkCondition presets used to simulate constrained connections, plus a
// usage tracker.
//
// The limiter itself sits on golang.org/x/time/rate the way the rest of the
// pack reaches for that module for request-rate limiting. Condition presets and
// kbps_to_bytes_per_sec are ported verbatim from
// bandwidth_limiter/src/conditions.rs; BandwidthTracker mirrors
// bandwidth_limiter/src/tracker.rs.
package throttle

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// NetworkCondition is a named or custom network speed/latency preset.
type NetworkCondition struct {
	name         string
	downloadKbps uint32
	uploadKbps   uint32
	latencyMs    uint32
}

var (
	Offline = NetworkCondition{name: "offline", downloadKbps: 0, uploadKbps: 0, latencyMs: 0}
	Slow2G  = NetworkCondition{name: "slow-2g", downloadKbps: 50, uploadKbps: 50, latencyMs: 2000}
	G2      = NetworkCondition{name: "2g", downloadKbps: 250, uploadKbps: 250, latencyMs: 800}
	G3      = NetworkCondition{name: "3g", downloadKbps: 750, uploadKbps: 750, latencyMs: 200}
	G4      = NetworkCondition{name: "4g", downloadKbps: 4000, uploadKbps: 4000, latencyMs: 50}
	WiFi    = NetworkCondition{name: "wifi", downloadKbps: 30000, uploadKbps: 30000, latencyMs: 10}
)

// Custom builds a NetworkCondition from explicit kbps/latency values.
func Custom(downloadKbps, uploadKbps, latencyMs uint32) NetworkCondition {
	return NetworkCondition{name: "custom", downloadKbps: downloadKbps, uploadKbps: uploadKbps, latencyMs: latencyMs}
}

// kbpsToBytesPerSec converts kilobits/sec to bytes/sec: 1 Kbps = 125 B/s.
func kbpsToBytesPerSec(kbps uint32) uint64 {
	return uint64(kbps) * 1000 / 8
}

func (c NetworkCondition) DownloadBytesPerSec() uint64 { return kbpsToBytesPerSec(c.downloadKbps) }
func (c NetworkCondition) UploadBytesPerSec() uint64   { return kbpsToBytesPerSec(c.uploadKbps) }
func (c NetworkCondition) Latency() time.Duration {
	return time.Duration(c.latencyMs) * time.Millisecond
}
func (c NetworkCondition) Name() string { return c.name }

// maxBurstBytes bounds the token bucket's capacity generously above any
// single transfer this stack issues, so WaitN never rejects a request for
// exceeding burst size; the bucket is drained to empty at construction so
// capacity never substitutes for the latency+rate timing below.
const maxBurstBytes = 1 << 30

// Limiter throttles downstream/upstream byte flow per NetworkCondition using
// a token-bucket (golang.org/x/time/rate), one bucket per direction. Per
// spec §4.10, the configured latency is charged once, on each direction's
// first Wait call, on top of the bytes/rate delay; later calls are governed
// by the bucket alone (per-byte, no repeated latency).
type Limiter struct {
	mu            sync.Mutex
	condition     NetworkCondition
	download      *rate.Limiter
	upload        *rate.Limiter
	downloadFirst bool
	uploadFirst   bool
}

// NewLimiter builds a Limiter for condition with both buckets starting
// empty, so the very first Wait call pays the full bytes/rate cost rather
// than being served instantly from a pre-filled burst.
func NewLimiter(condition NetworkCondition) *Limiter {
	dl := rate.Inf
	if bps := condition.DownloadBytesPerSec(); bps > 0 || condition == Offline {
		dl = rate.Limit(bps)
	}
	ul := rate.Inf
	if bps := condition.UploadBytesPerSec(); bps > 0 || condition == Offline {
		ul = rate.Limit(bps)
	}

	download := rate.NewLimiter(dl, maxBurstBytes)
	upload := rate.NewLimiter(ul, maxBurstBytes)
	now := time.Now()
	download.AllowN(now, maxBurstBytes)
	upload.AllowN(now, maxBurstBytes)

	return &Limiter{
		condition:     condition,
		download:      download,
		upload:        upload,
		downloadFirst: true,
		uploadFirst:   true,
	}
}

// WaitDownload blocks for condition.Latency() on the first call, then for
// however long the token bucket needs to accumulate n bytes of budget.
func (l *Limiter) WaitDownload(ctx context.Context, n int) error {
	if l.condition == Offline {
		<-ctx.Done()
		return ctx.Err()
	}
	if err := l.chargeLatencyOnce(ctx, &l.downloadFirst, l.download); err != nil {
		return err
	}
	return l.download.WaitN(ctx, n)
}

// WaitUpload blocks for condition.Latency() on the first call, then for
// however long the token bucket needs to accumulate n bytes of budget.
func (l *Limiter) WaitUpload(ctx context.Context, n int) error {
	if l.condition == Offline {
		<-ctx.Done()
		return ctx.Err()
	}
	if err := l.chargeLatencyOnce(ctx, &l.uploadFirst, l.upload); err != nil {
		return err
	}
	return l.upload.WaitN(ctx, n)
}

// chargeLatencyOnce sleeps for the configured latency the first time it is
// called for a given direction (first points at that direction's flag) and
// is a no-op on every subsequent call. The budget bucket accrued during the
// sleep is discarded, so the bytes/rate wait that follows is paid in full.
func (l *Limiter) chargeLatencyOnce(ctx context.Context, first *bool, bucket *rate.Limiter) error {
	l.mu.Lock()
	charge := *first
	*first = false
	latency := l.condition.Latency()
	l.mu.Unlock()
	if !charge || latency <= 0 {
		return nil
	}
	timer := time.NewTimer(latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		if accrued := int(bucket.Tokens()); accrued > 0 {
			bucket.AllowN(time.Now(), accrued)
		}
		return nil
	}
}

// Condition returns the limiter's configured condition.
func (l *Limiter) Condition() NetworkCondition {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.condition
}

// SetCondition swaps the active condition, rebuilds both buckets empty, and
// resets the first-access latency charge for the new condition.
func (l *Limiter) SetCondition(condition NetworkCondition) {
	fresh := NewLimiter(condition)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.condition = fresh.condition
	l.download = fresh.download
	l.upload = fresh.upload
	l.downloadFirst = true
	l.uploadFirst = true
}

// Tracker accumulates bytes sent/received since construction or the last
// Reset, mirroring bandwidth_limiter::tracker::BandwidthTracker.
type Tracker struct {
	mu            sync.Mutex
	bytesSent     uint64
	bytesReceived uint64
	startTime     time.Time
}

func NewTracker() *Tracker {
	return &Tracker{startTime: time.Now()}
}

func (t *Tracker) RecordDownload(n uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bytesReceived += n
}

func (t *Tracker) RecordUpload(n uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bytesSent += n
}

func (t *Tracker) BytesSent() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bytesSent
}

func (t *Tracker) BytesReceived() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bytesReceived
}

func (t *Tracker) ElapsedSecs() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Since(t.startTime).Seconds()
}

func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bytesSent = 0
	t.bytesReceived = 0
	t.startTime = time.Now()
}
