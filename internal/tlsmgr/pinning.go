package tlsmgr

import (
	"crypto/sha256"
	"crypto/sha512"
	"sync"

	"netstack/internal/errs"
	"netstack/internal/types"
)

// PinResult is the outcome of verifying a chain against a host's pin set.
type PinResult int

const (
	PinValid PinResult = iota
	PinInvalid
	PinNotPinned
)

// PinVerification carries a PinResult plus, for PinInvalid, the reason.
type PinVerification struct {
	Result PinResult
	Reason string
}

// CertificateStore maps host to an ordered list of pins, grounded on
// certificate_pinning/src/lib.rs's CertificatePinner.verify (first match
// wins, empty chain and unknown algorithm are hard failures).
type CertificateStore struct {
	mu   sync.RWMutex
	pins map[string][]types.CertificatePin
}

func NewCertificateStore() *CertificateStore {
	return &CertificateStore{pins: make(map[string][]types.CertificatePin)}
}

// SetPins replaces the pin set for host.
func (s *CertificateStore) SetPins(host string, pins []types.CertificatePin) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pins[host] = append([]types.CertificatePin(nil), pins...)
}

// Pins returns the pin set currently recorded for host.
func (s *CertificateStore) Pins(host string) []types.CertificatePin {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.CertificatePin(nil), s.pins[host]...)
}

// Verify checks derChain's leaf (derChain[0]) against host's pins.
func (s *CertificateStore) Verify(host string, derChain [][]byte) (PinVerification, error) {
	s.mu.RLock()
	pins := s.pins[host]
	s.mu.RUnlock()

	if len(pins) == 0 {
		return PinVerification{Result: PinNotPinned}, nil
	}
	if len(derChain) == 0 {
		return PinVerification{}, errs.Certificate("empty certificate chain")
	}
	leaf := derChain[0]

	for _, pin := range pins {
		digest, err := digestFor(pin.Algorithm, leaf)
		if err != nil {
			return PinVerification{}, err
		}
		if bytesEqual(digest, pin.Digest) {
			return PinVerification{Result: PinValid}, nil
		}
	}
	return PinVerification{Result: PinInvalid, Reason: "no configured pin matched leaf certificate"}, nil
}

func digestFor(algo types.PinAlgorithm, leaf []byte) ([]byte, error) {
	switch algo {
	case types.PinSHA256:
		d := sha256.Sum256(leaf)
		return d[:], nil
	case types.PinSHA384:
		d := sha512.Sum384(leaf)
		return d[:], nil
	case types.PinSHA512:
		d := sha512.Sum512(leaf)
		return d[:], nil
	default:
		return nil, errs.Certificate("unknown pin algorithm")
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
