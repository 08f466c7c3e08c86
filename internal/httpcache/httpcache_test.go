package httpcache

import (
	"net/url"
	"testing"
	"time"

	"netstack/internal/types"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestParseCacheControl(t *testing.T) {
	maxAge, sMaxAge, noStore, noCache, mustRevalidate := ParseCacheControl("max-age=60, must-revalidate")
	if maxAge != 60*time.Second {
		t.Fatalf("expected max-age=60s, got %s", maxAge)
	}
	if sMaxAge != 0 || noStore || noCache || !mustRevalidate {
		t.Fatalf("unexpected flags: sMaxAge=%s noStore=%v noCache=%v mustRevalidate=%v", sMaxAge, noStore, noCache, mustRevalidate)
	}
}

func TestPutAndFreshness(t *testing.T) {
	c := New()
	u := mustURL(t, "https://example.com/resource")

	headers := types.NewHeader()
	headers.Set("Cache-Control", "max-age=3600")
	resp := &types.Response{Headers: headers, Status: 200}

	key := BuildKey("GET", u, "", nil)
	c.Put(key, resp, []byte("body"))

	entry, ok := c.Get(key)
	if !ok {
		t.Fatalf("expected entry to be stored")
	}
	if !entry.IsFresh() {
		t.Fatalf("expected fresh entry immediately after storing")
	}
}

func TestNoStoreSkipsCaching(t *testing.T) {
	c := New()
	u := mustURL(t, "https://example.com/resource")

	headers := types.NewHeader()
	headers.Set("Cache-Control", "no-store")
	resp := &types.Response{Headers: headers, Status: 200}

	key := BuildKey("GET", u, "", nil)
	c.Put(key, resp, []byte("body"))

	if _, ok := c.Get(key); ok {
		t.Fatalf("no-store response must not be cached")
	}
}

func TestVaryTagDistinguishesEntries(t *testing.T) {
	u := mustURL(t, "https://example.com/resource")

	reqA := types.NewHeader()
	reqA.Set("Accept-Encoding", "gzip")
	reqB := types.NewHeader()
	reqB.Set("Accept-Encoding", "br")

	keyA := BuildKey("GET", u, "Accept-Encoding", reqA)
	keyB := BuildKey("GET", u, "Accept-Encoding", reqB)

	if keyA == keyB {
		t.Fatalf("expected different Vary tags to produce different keys")
	}
}

func TestApplyRevalidationRefreshesMetadataOnly(t *testing.T) {
	c := New()
	u := mustURL(t, "https://example.com/resource")

	headers := types.NewHeader()
	headers.Set("Cache-Control", "max-age=1")
	headers.Set("ETag", `"v1"`)
	resp := &types.Response{Headers: headers, Status: 200}

	key := BuildKey("GET", u, "", nil)
	c.Put(key, resp, []byte("original body"))
	entry, _ := c.Get(key)

	time.Sleep(1100 * time.Millisecond)
	if entry.IsFresh() {
		t.Fatalf("expected entry to go stale after max-age elapses")
	}

	revalHeaders := types.NewHeader()
	revalHeaders.Set("Cache-Control", "max-age=3600")
	revalHeaders.Set("ETag", `"v1"`)
	entry.ApplyRevalidation(&types.Response{Headers: revalHeaders, Status: 304})

	if !entry.IsFresh() {
		t.Fatalf("expected entry to be fresh again after revalidation")
	}
	if string(entry.Body) != "original body" {
		t.Fatalf("304 revalidation must not alter the stored body")
	}
}
