package tlsmgr

import (
	"crypto/sha256"
	"testing"
	"time"

	"netstack/internal/types"
)

func TestConfigALPNOrdering(t *testing.T) {
	c := NewConfig().WithALPNProtocols("h3", "h2", "http/1.1")
	std := c.StdConfig("example.com")
	want := []string{"h3", "h2", "http/1.1"}
	if len(std.NextProtos) != len(want) {
		t.Fatalf("expected %d protocols, got %d", len(want), len(std.NextProtos))
	}
	for i, p := range want {
		if std.NextProtos[i] != p {
			t.Fatalf("protocol %d: got %s, want %s", i, std.NextProtos[i], p)
		}
	}
}

func TestCertificateStoreVerify(t *testing.T) {
	leaf := []byte("fake-der-encoded-leaf-certificate")
	digest := sha256.Sum256(leaf)

	store := NewCertificateStore()
	store.SetPins("secure.com", []types.CertificatePin{
		{Algorithm: types.PinSHA256, Digest: digest[:]},
	})

	res, err := store.Verify("secure.com", [][]byte{leaf})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Result != PinValid {
		t.Fatalf("expected PinValid, got %v", res.Result)
	}

	res, err = store.Verify("secure.com", [][]byte{[]byte("different-cert")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Result != PinInvalid {
		t.Fatalf("expected PinInvalid, got %v", res.Result)
	}

	res, err = store.Verify("unpinned.com", [][]byte{leaf})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Result != PinNotPinned {
		t.Fatalf("expected PinNotPinned, got %v", res.Result)
	}

	if _, err := store.Verify("secure.com", nil); err == nil {
		t.Fatalf("expected error for empty chain")
	}
}

func TestHSTSIncludeSubdomains(t *testing.T) {
	s := NewHSTSStore()
	s.Set("secure.com", 365*24*time.Hour, true)

	if !s.IsEnabled("secure.com") {
		t.Fatalf("expected exact host to be enabled")
	}
	if !s.IsEnabled("www.secure.com") {
		t.Fatalf("expected subdomain to be enabled via includeSubdomains")
	}
	if s.IsEnabled("notsecure.com") {
		t.Fatalf("unrelated domain must not be enabled")
	}
	if s.IsEnabled("evilsecure.com") {
		t.Fatalf("suffix-but-not-label-aligned domain must not be enabled")
	}
}

func TestHSTSExpiry(t *testing.T) {
	s := NewHSTSStore()
	s.Set("short.com", 1*time.Millisecond, false)
	time.Sleep(5 * time.Millisecond)
	if s.IsEnabled("short.com") {
		t.Fatalf("expected expired entry to report disabled")
	}
}

func TestCTPolicyDefaultNotChecked(t *testing.T) {
	p := DefaultCTPolicy()
	res := p.Verify(nil)
	if res.Result != CTNotChecked {
		t.Fatalf("expected CTNotChecked, got %v", res.Result)
	}
}

func TestCTPolicyValidAndInsufficient(t *testing.T) {
	p := CTPolicy{RequireSCT: true, MinSCTCount: 2}
	good := types.SCT{Version: 0, Signature: []byte{1, 2, 3}}

	res := p.Verify([]types.SCT{good})
	if res.Result != CTInvalid || res.Reason != "insufficient SCTs" {
		t.Fatalf("expected insufficient SCTs, got %+v", res)
	}

	res = p.Verify([]types.SCT{good, good})
	if res.Result != CTValid || res.Count != 2 {
		t.Fatalf("expected CTValid count=2, got %+v", res)
	}
}

func TestCTPolicyInvalidSCTShortCircuits(t *testing.T) {
	p := CTPolicy{RequireSCT: true, MinSCTCount: 1}
	bad := types.SCT{Version: 1, Signature: []byte{1}}
	res := p.Verify([]types.SCT{bad})
	if res.Result != CTInvalid {
		t.Fatalf("expected CTInvalid for bad version, got %+v", res)
	}
}
