// Package mixedcontent implements a mixed-content blocker/upgrader: an
// HTTPS page fetching an HTTP subresource either gets upgraded, blocked, or
// (for passive content) warned-and-permitted.
package mixedcontent

import (
	"net/url"
	"strings"

	"netstack/internal/errs"
)

// ContentCategory distinguishes active (script-like) from passive
// (media-like) subresources, which are treated differently.
type ContentCategory int

const (
	CategoryActive ContentCategory = iota
	CategoryPassive
)

// Policy is {block_all_mixed_content, upgrade_insecure_requests}.
type Policy struct {
	BlockAllMixedContent   bool
	UpgradeInsecureRequests bool
}

// Decision is the outcome of checking a subresource fetch.
type Decision struct {
	Action     Action
	UpgradedURL *url.URL
	Warning    string
}

type Action int

const (
	ActionPermit Action = iota
	ActionUpgrade
	ActionBlock
	ActionWarn
)

// Check evaluates fetching subresourceURL (as category) from an initiator
// whose own URL is initiatorURL.
func (p Policy) Check(initiatorURL, subresourceURL *url.URL, category ContentCategory) (Decision, error) {
	if initiatorURL.Scheme != "https" || subresourceURL.Scheme != "http" {
		return Decision{Action: ActionPermit}, nil
	}

	if p.UpgradeInsecureRequests {
		upgraded := *subresourceURL
		upgraded.Scheme = "https"
		return Decision{Action: ActionUpgrade, UpgradedURL: &upgraded}, nil
	}

	if category == CategoryActive || p.BlockAllMixedContent {
		return Decision{}, errs.MixedContent(blockedMessage(subresourceURL))
	}

	return Decision{
		Action:  ActionWarn,
		Warning: "passive mixed content permitted: " + subresourceURL.String(),
	}, nil
}

func blockedMessage(u *url.URL) string {
	var b strings.Builder
	b.WriteString("blocked insecure subresource: ")
	b.WriteString(u.String())
	return b.String()
}
