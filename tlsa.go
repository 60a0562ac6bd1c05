package danetls

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"encoding/hex"
	"fmt"
)

//
// DANE Certificate Usage modes
//
const (
	PkixTA = 0 // Certificate Authority Constraint
	PkixEE = 1 // Service Certificate Constraint
	DaneTA = 2 // Trust Anchor Assertion
	DaneEE = 3 // Domain Issued Certificate
)

//
// TLSA Selectors
//
const (
	SelectorCert = 0 // full certificate
	SelectorSPKI = 1 // subject public key info
)

//
// TLSA Matching Types
//
const (
	MatchingTypeFull   = 0 // exact match on selected content
	MatchingTypeSHA256 = 1 // SHA-256 digest of selected content
	MatchingTypeSHA512 = 2 // SHA-512 digest of selected content
)

//
// TLSARecord holds the rdata of a single TLSA resource record. The
// association data is kept in raw binary form, as delivered by the DNS
// collaborator. Records are immutable once constructed; a run holds them
// in a shared read-only slice in resolver-returned order. Duplicates are
// permitted and evaluated independently.
//
type TLSARecord struct {
	Usage        uint8  // Certificate Usage
	Selector     uint8  // 0: full cert, 1: subject public key
	MatchingType uint8  // 0: exact, 1: SHA-256, 2: SHA-512
	Data         []byte // Certificate association data
}

//
// String returns the presentation form of the TLSA record, with the
// association data hex encoded.
//
func (tr TLSARecord) String() string {
	return fmt.Sprintf("%d %d %d %s", tr.Usage, tr.Selector,
		tr.MatchingType, hex.EncodeToString(tr.Data))
}

//
// Usable reports whether the record is structurally fit to be submitted
// to the TLS engine as trust material. The matching type must be a
// recognized value and the association data length must agree with it:
// digest types require exactly the digest length, the exact-match type
// accepts any non-empty data. Unusable records are excluded from
// verification but must still be reported to the operator.
//
func (tr TLSARecord) Usable() bool {
	switch tr.MatchingType {
	case MatchingTypeFull:
		return len(tr.Data) > 0
	case MatchingTypeSHA256:
		return len(tr.Data) == sha256.Size
	case MatchingTypeSHA512:
		return len(tr.Data) == sha512.Size
	default:
		return false
	}
}

//
// selectedData extracts the portion of the certificate selected by the
// TLSA selector: the whole DER certificate, or its subject public key
// info.
//
func selectedData(selector uint8, cert *x509.Certificate) ([]byte, error) {
	switch selector {
	case SelectorCert:
		return cert.Raw, nil
	case SelectorSPKI:
		return cert.RawSubjectPublicKeyInfo, nil
	default:
		return nil, fmt.Errorf("unknown TLSA selector: %d", selector)
	}
}

//
// ComputeTLSA calculates the TLSA association data for the given
// certificate under the given selector and matching type.
//
func ComputeTLSA(selector, mtype uint8, cert *x509.Certificate) ([]byte, error) {

	preimage, err := selectedData(selector, cert)
	if err != nil {
		return nil, err
	}

	switch mtype {
	case MatchingTypeFull:
		return preimage, nil
	case MatchingTypeSHA256:
		sum := sha256.Sum256(preimage)
		return sum[:], nil
	case MatchingTypeSHA512:
		sum := sha512.Sum512(preimage)
		return sum[:], nil
	default:
		return nil, fmt.Errorf("unknown TLSA matching type: %d", mtype)
	}
}

//
// usableRecords partitions the record set into records fit for
// submission to the TLS engine and the rejected remainder. Order is
// preserved in both slices.
//
func usableRecords(records []TLSARecord) (usable, rejected []TLSARecord) {
	for _, tr := range records {
		if tr.Usable() {
			usable = append(usable, tr)
		} else {
			rejected = append(rejected, tr)
		}
	}
	return usable, rejected
}
