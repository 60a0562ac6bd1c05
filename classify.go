package danetls

import (
	"crypto/x509"
	"fmt"
)

//
// MatchKind describes how a DANE TLSA record matched the verified
// certificate chain.
//
type MatchKind int

const (
	MatchNone   MatchKind = iota // no DANE match (PKIX verification)
	MatchEE                      // matched the end-entity certificate
	MatchTACert                  // matched a trust-anchor certificate
	MatchTAKey                   // trust-anchor public key verified the chain
)

// String returns a description of the match kind as reported to the
// operator.
func (k MatchKind) String() string {
	switch k {
	case MatchEE:
		return "matched EE certificate"
	case MatchTACert:
		return "matched TA certificate"
	case MatchTAKey:
		return "TA public key verified certificate"
	default:
		return "no DANE match"
	}
}

//
// Verdict is the TLS engine's peer verification result for one attempt.
// When OK is false, Err and Code carry the underlying verification
// failure for diagnostics. For a successful DANE verification, Record,
// Depth and Kind identify the matched TLSA record: depth 0 means the
// end-entity certificate matched, a larger depth means a trust-anchor
// or intermediate certificate matched. PeerName, when non-empty,
// confirms that hostname checks were in scope and passed.
//
type Verdict struct {
	OK       bool
	Code     string      // verification error code, e.g. x509 error text
	Err      error       // underlying verification error
	Record   *TLSARecord // matched TLSA record, nil for PKIX
	Depth    int         // chain depth of the match
	Kind     MatchKind
	PeerName string              // verified peer name
	Chain    []*x509.Certificate // peer certificate chain as presented
}

//
// DANE reports whether the verdict represents a DANE match.
//
func (v Verdict) DANE() bool {
	return v.Record != nil
}

//
// MatchDescription returns the operator-facing description of a DANE
// match, in the style "3 1 1 [2bdea841...] matched EE certificate at
// depth 0". Returns the empty string for non-DANE verdicts.
//
func (v Verdict) MatchDescription() string {
	if v.Record == nil {
		return ""
	}
	data := v.Record.Data
	if len(data) > 6 {
		data = data[:6]
	}
	short := TLSARecord{Usage: v.Record.Usage, Selector: v.Record.Selector,
		MatchingType: v.Record.MatchingType, Data: data}
	return fmt.Sprintf("DANE TLSA %s... %s at depth %d", short, v.Kind, v.Depth)
}

//
// Classify interprets a verification verdict into an attempt outcome.
// Classification is a pure function of the verdict: applying it twice
// to the same verdict yields the same outcome. It never overrides a
// handshake-layer failure, since the orchestrator only classifies
// verdicts after a completed handshake.
//
func Classify(v Verdict) Outcome {
	if v.OK {
		return OutcomeSuccess
	}
	return OutcomeVerifyFailed
}
