package throttle

import (
	"context"
	"testing"
	"time"
)

func TestConditionPresetValues(t *testing.T) {
	if Slow2G.DownloadBytesPerSec() != 6250 {
		t.Fatalf("expected Slow2G download 6250 B/s, got %d", Slow2G.DownloadBytesPerSec())
	}
	if Slow2G.Latency() != 2000*time.Millisecond {
		t.Fatalf("expected Slow2G latency 2000ms, got %s", Slow2G.Latency())
	}
	if G4.DownloadBytesPerSec() != 500000 {
		t.Fatalf("expected 4G download 500000 B/s, got %d", G4.DownloadBytesPerSec())
	}
}

func TestCustomCondition(t *testing.T) {
	c := Custom(100, 50, 150)
	if c.DownloadBytesPerSec() != 12500 {
		t.Fatalf("expected 12500 B/s download, got %d", c.DownloadBytesPerSec())
	}
	if c.UploadBytesPerSec() != 6250 {
		t.Fatalf("expected 6250 B/s upload, got %d", c.UploadBytesPerSec())
	}
	if c.Latency() != 150*time.Millisecond {
		t.Fatalf("expected 150ms latency, got %s", c.Latency())
	}
}

func TestKbpsConversion(t *testing.T) {
	if kbpsToBytesPerSec(8) != 1000 {
		t.Fatalf("expected 8 Kbps == 1000 B/s, got %d", kbpsToBytesPerSec(8))
	}
	if kbpsToBytesPerSec(1000) != 125000 {
		t.Fatalf("expected 1000 Kbps == 125000 B/s, got %d", kbpsToBytesPerSec(1000))
	}
}

func TestLimiterOfflineBlocksUntilCanceled(t *testing.T) {
	l := NewLimiter(Offline)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.WaitDownload(ctx, 10)
	if err == nil {
		t.Fatalf("expected offline limiter to block until context cancellation")
	}
}

func TestLimiterSlow2GDownloadTiming(t *testing.T) {
	l := NewLimiter(Slow2G)
	start := time.Now()
	if err := l.WaitDownload(context.Background(), 10240); err != nil {
		t.Fatalf("WaitDownload: %v", err)
	}
	elapsed := time.Since(start)
	if elapsed < 3500*time.Millisecond || elapsed > 4000*time.Millisecond {
		t.Fatalf("expected elapsed in [3.5s, 4.0s], got %s", elapsed)
	}
}

func TestTrackerRecordAndReset(t *testing.T) {
	tr := NewTracker()
	tr.RecordDownload(1000)
	tr.RecordDownload(500)
	tr.RecordUpload(250)

	if tr.BytesReceived() != 1500 {
		t.Fatalf("expected 1500 bytes received, got %d", tr.BytesReceived())
	}
	if tr.BytesSent() != 250 {
		t.Fatalf("expected 250 bytes sent, got %d", tr.BytesSent())
	}

	tr.Reset()
	if tr.BytesReceived() != 0 || tr.BytesSent() != 0 {
		t.Fatalf("expected counters to reset to zero")
	}
}
