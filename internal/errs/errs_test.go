package errs

import (
	"testing"
	"time"
)

func TestIsKind(t *testing.T) {
	err := Cors("same-origin violation")
	if !Is(err, KindCors) {
		t.Fatalf("expected KindCors, got %v", err)
	}
	if Is(err, KindTLS) {
		t.Fatalf("did not expect KindTLS match")
	}
}

func TestTimeoutCarriesDuration(t *testing.T) {
	err := NewTimeout("dns lookup", 2*time.Second)
	to, ok := err.(*Timeout)
	if !ok {
		t.Fatalf("expected *Timeout, got %T", err)
	}
	if to.Duration != 2*time.Second {
		t.Fatalf("expected 2s, got %s", to.Duration)
	}
	if !Is(err, KindTimeout) {
		t.Fatalf("expected Is to report KindTimeout")
	}
}

func TestWrappedErrorUnwrap(t *testing.T) {
	cause := ConnectionFailed("refused", nil)
	wrapped := new(KindIO, "write failed", cause)
	if wrapped.Unwrap() != cause {
		t.Fatalf("expected Unwrap to return cause")
	}
}
