// Certificate Transparency policy, grounded on
// certificate_transparency/src/{sct,policy}.rs: each SCT validates
// independently (version 0, 32-byte log ID, non-empty signature); the
// first invalid SCT short-circuits the whole check.
package tlsmgr

import (
	"fmt"

	"netstack/internal/types"
)

// CTResult is the outcome of a CT policy check.
type CTResult int

const (
	CTNotChecked CTResult = iota
	CTValid
	CTInvalid
)

type CTVerification struct {
	Result CTResult
	Count  int
	Reason string
}

// CTPolicy is {require_sct, min_sct_count}.
type CTPolicy struct {
	RequireSCT  bool
	MinSCTCount int
}

func DefaultCTPolicy() CTPolicy  { return CTPolicy{RequireSCT: false, MinSCTCount: 0} }
func LenientCTPolicy() CTPolicy { return CTPolicy{RequireSCT: true, MinSCTCount: 1} }
func StrictCTPolicy() CTPolicy  { return CTPolicy{RequireSCT: true, MinSCTCount: 2} }

// Verify checks scts against p.
func (p CTPolicy) Verify(scts []types.SCT) CTVerification {
	if !p.RequireSCT {
		return CTVerification{Result: CTNotChecked}
	}
	for _, sct := range scts {
		if reason := validateSCT(sct); reason != "" {
			return CTVerification{Result: CTInvalid, Reason: reason}
		}
	}
	if len(scts) >= p.MinSCTCount {
		return CTVerification{Result: CTValid, Count: len(scts)}
	}
	return CTVerification{Result: CTInvalid, Reason: "insufficient SCTs"}
}

func validateSCT(sct types.SCT) string {
	if sct.Version != 0 {
		return fmt.Sprintf("unsupported SCT version %d", sct.Version)
	}
	if len(sct.LogID) != 32 {
		return "log ID must be 32 bytes"
	}
	if len(sct.Signature) == 0 {
		return "signature must not be empty"
	}
	return ""
}
