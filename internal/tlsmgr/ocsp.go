// Client-side OCSP stapling verification, adapted from odac-run-odac's
// server-side GetCertificate/fetchOCSP staple-serving logic in
// server/proxy/proxy/proxy.go: where that code staples a fetched OCSP
// response for remote clients to consume, here we instead consume the
// staple a remote server attached and verify it with the same
// ocsp.ParseResponse call.
package tlsmgr

import (
	"crypto/x509"
	"time"

	"golang.org/x/crypto/ocsp"

	"netstack/internal/errs"
)

// OCSPVerification is the outcome of checking a peer's OCSP staple.
type OCSPVerification struct {
	Checked    bool // false when no staple was presented
	Good       bool
	NextUpdate time.Time
}

// VerifyStapledResponse validates a stapled OCSP response against leaf and
// issuer. Presenting no staple is not itself an error (stapling is
// best-effort): callers decide whether to require one via CTPolicy-style
// configuration.
func VerifyStapledResponse(staple []byte, leaf, issuer *x509.Certificate) (OCSPVerification, error) {
	if len(staple) == 0 {
		return OCSPVerification{Checked: false}, nil
	}
	resp, err := ocsp.ParseResponseForCert(staple, leaf, issuer)
	if err != nil {
		return OCSPVerification{}, errs.Certificate("invalid OCSP staple: " + err.Error())
	}
	if resp.Status != ocsp.Good {
		return OCSPVerification{Checked: true, Good: false, NextUpdate: resp.NextUpdate}, nil
	}
	return OCSPVerification{Checked: true, Good: true, NextUpdate: resp.NextUpdate}, nil
}
