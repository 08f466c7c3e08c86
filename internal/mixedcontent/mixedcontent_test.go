package mixedcontent

import (
	"net/url"
	"testing"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestCheckUpgrade(t *testing.T) {
	p := Policy{UpgradeInsecureRequests: true}
	d, err := p.Check(mustURL(t, "https://app.example.com"), mustURL(t, "http://img.example.com/a.png"), CategoryPassive)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Action != ActionUpgrade || d.UpgradedURL.Scheme != "https" {
		t.Fatalf("expected upgrade to https, got %+v", d)
	}
}

func TestCheckBlockActive(t *testing.T) {
	p := Policy{}
	_, err := p.Check(mustURL(t, "https://app.example.com"), mustURL(t, "http://cdn.example.com/a.js"), CategoryActive)
	if err == nil {
		t.Fatalf("expected active mixed content to be blocked")
	}
}

func TestCheckWarnPassive(t *testing.T) {
	p := Policy{}
	d, err := p.Check(mustURL(t, "https://app.example.com"), mustURL(t, "http://img.example.com/a.png"), CategoryPassive)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Action != ActionWarn {
		t.Fatalf("expected warn-and-permit for passive content, got %+v", d)
	}
}

func TestCheckBlockAllOverridesPassive(t *testing.T) {
	p := Policy{BlockAllMixedContent: true}
	_, err := p.Check(mustURL(t, "https://app.example.com"), mustURL(t, "http://img.example.com/a.png"), CategoryPassive)
	if err == nil {
		t.Fatalf("expected block_all_mixed_content to block even passive content")
	}
}

func TestCheckPermitsInsecureInitiator(t *testing.T) {
	p := Policy{}
	d, err := p.Check(mustURL(t, "http://app.example.com"), mustURL(t, "http://img.example.com/a.png"), CategoryActive)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Action != ActionPermit {
		t.Fatalf("http-to-http is not mixed content, expected permit")
	}
}
