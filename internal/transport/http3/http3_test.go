package http3

import (
	"context"
	"testing"

	"netstack/internal/errs"
	"netstack/internal/tlsmgr"
)

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("expected default config to validate, got %v", err)
	}

	bad := Config{MaxUDPPayloadSize: 100}
	if err := bad.Validate(); !errs.Is(err, errs.KindProtocol) {
		t.Fatalf("expected protocol error for undersized payload, got %v", err)
	}

	bad = Config{MaxUDPPayloadSize: 70000}
	if err := bad.Validate(); !errs.Is(err, errs.KindProtocol) {
		t.Fatalf("expected protocol error for oversized payload, got %v", err)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{MaxUDPPayloadSize: 1}, nil)
	if !errs.Is(err, errs.KindProtocol) {
		t.Fatalf("expected protocol error, got %v", err)
	}
}

func TestNewAndClose(t *testing.T) {
	tr, err := New(DefaultConfig(), tlsmgr.NewConfig().WithInsecureSkipVerify())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
}

func TestPingReturnsZeroPlaceholder(t *testing.T) {
	tr, err := New(DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer tr.Close()

	rtt, err := tr.Ping(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rtt != 0 {
		t.Fatalf("expected zero rtt placeholder, got %d", rtt)
	}
}
