package platform

import (
	"bytes"
	"testing"
)

func TestLogFilterSuppressesIgnored(t *testing.T) {
	var buf bytes.Buffer
	f := NewLogFilter(&buf, []string{"noisy"})

	f.Write([]byte("this is noisy output\n"))
	if buf.Len() != 0 {
		t.Fatalf("expected noisy line to be suppressed, got %q", buf.String())
	}

	f.Write([]byte("this is fine\n"))
	if buf.String() != "this is fine\n" {
		t.Fatalf("expected non-matching line to pass through, got %q", buf.String())
	}
}

func TestSystemCertPoolNeverNil(t *testing.T) {
	pool, err := SystemCertPool()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool == nil {
		t.Fatalf("expected non-nil cert pool")
	}
}

func TestNoProxyHostsEmpty(t *testing.T) {
	t.Setenv("NO_PROXY", "")
	t.Setenv("no_proxy", "")
	if hosts := NoProxyHosts(); hosts != nil {
		t.Fatalf("expected nil for unset NO_PROXY, got %v", hosts)
	}
}

func TestNoProxyHostsParsed(t *testing.T) {
	t.Setenv("NO_PROXY", "localhost, 127.0.0.1 ,internal.example.com")
	hosts := NoProxyHosts()
	want := []string{"localhost", "127.0.0.1", "internal.example.com"}
	if len(hosts) != len(want) {
		t.Fatalf("expected %v, got %v", want, hosts)
	}
	for i, h := range want {
		if hosts[i] != h {
			t.Fatalf("expected %v, got %v", want, hosts)
		}
	}
}
