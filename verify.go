package danetls

import (
	"bytes"
	"crypto/x509"
	"fmt"
	"os"
)

//
// loadTrustStore returns the PKIX root certificate pool: the system
// store by default, or the PEM file at cafile when set. A failure here
// is run-fatal; it must be detected before the first connection
// attempt.
//
func loadTrustStore(cafile string) (*x509.CertPool, error) {

	if cafile == "" {
		pool, err := x509.SystemCertPool()
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrTrustStore, err.Error())
		}
		return pool, nil
	}

	pem, err := os.ReadFile(cafile)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTrustStore, err.Error())
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("%w: no certificates in %s", ErrTrustStore, cafile)
	}
	return pool, nil
}

//
// verifyChain performs certificate chain validation of the given chain
// (list) of certificates. On success it returns a list of verified
// chains. If "root" is true, the supplied root store is used to find a
// trust anchor. Otherwise, the tail certificate of the chain is used as
// the root trust anchor (self signed mode), as appropriate for DANE
// usage modes that pin a non-public CA.
//
func verifyChain(certs []*x509.Certificate, roots *x509.CertPool,
	root bool) ([][]*x509.Certificate, error) {

	var opts x509.VerifyOptions

	if root {
		opts.Roots = roots
		opts.Intermediates = x509.NewCertPool()
		for _, cert := range certs[1:] {
			opts.Intermediates.AddCert(cert)
		}
		return certs[0].Verify(opts)
	}

	opts.Roots = x509.NewCertPool()
	chainlength := len(certs)
	last := certs[chainlength-1]
	opts.Roots.AddCert(last)
	if chainlength >= 3 {
		opts.Intermediates = x509.NewCertPool()
		for _, cert := range certs[1:] {
			opts.Intermediates.AddCert(cert)
		}
	}
	return certs[0].Verify(opts)
}

//
// recordMatch describes where in a chain a TLSA record matched.
//
type recordMatch struct {
	record TLSARecord
	depth  int
	kind   MatchKind
}

//
// matchRecord checks one TLSA record against the verified chain.
// EE usage modes match the end-entity certificate at depth 0; TA usage
// modes match any certificate above it. PKIX-constrained usage modes
// additionally require that PKIX chain validation succeeded (okpkix).
//
func matchRecord(chain []*x509.Certificate, tr TLSARecord,
	okpkix bool) (*recordMatch, error) {

	switch tr.Usage {
	case PkixEE, DaneEE:
		computed, err := ComputeTLSA(tr.Selector, tr.MatchingType, chain[0])
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(computed, tr.Data) {
			return nil, nil
		}
		if tr.Usage == PkixEE && !okpkix {
			return nil, fmt.Errorf("matched EE certificate but PKIX failed")
		}
		return &recordMatch{record: tr, depth: 0, kind: MatchEE}, nil

	case PkixTA, DaneTA:
		for i, cert := range chain[1:] {
			computed, err := ComputeTLSA(tr.Selector, tr.MatchingType, cert)
			if err != nil {
				return nil, err
			}
			if !bytes.Equal(computed, tr.Data) {
				continue
			}
			if tr.Usage == PkixTA && !okpkix {
				return nil, fmt.Errorf(
					"matched TA certificate at depth %d but PKIX failed", i+1)
			}
			kind := MatchTACert
			if tr.Selector == SelectorSPKI {
				kind = MatchTAKey
			}
			return &recordMatch{record: tr, depth: i + 1, kind: kind}, nil
		}
		return nil, nil

	default:
		return nil, fmt.Errorf("invalid usage mode: %d", tr.Usage)
	}
}

//
// matchChain checks all TLSA records against the verified chain and
// returns the first match in record-set order. The non-match reasons
// are collected for diagnostics.
//
func matchChain(chain []*x509.Certificate, records []TLSARecord,
	okpkix bool) (*recordMatch, []string) {

	var reasons []string
	for _, tr := range records {
		m, err := matchRecord(chain, tr, okpkix)
		if m != nil {
			return m, reasons
		}
		if err != nil {
			reasons = append(reasons, fmt.Sprintf("%s: %s", tr, err.Error()))
		} else {
			reasons = append(reasons, fmt.Sprintf("%s: no match", tr))
		}
	}
	return nil, reasons
}

//
// verifier accumulates the peer verification verdict for one attempt.
// It is installed as the VerifyPeerCertificate callback of a TLS
// session configured with InsecureSkipVerify, which hands the raw peer
// chain to us without prior validation.
//
type verifier struct {
	config      *Config
	roots       *x509.CertPool
	attemptDane bool
	records     []TLSARecord // usable, engine-accepted records
	verdict     Verdict
	peerChain   []*x509.Certificate
}

//
// fail records a failed verdict and returns the underlying error so
// the handshake is torn down.
//
func (v *verifier) fail(code string, err error) error {
	v.verdict = Verdict{OK: false, Code: code, Err: err, Chain: v.peerChain}
	return err
}

//
// verify is the peer certificate verification callback. For a DANE
// attempt it validates the chain (allowing a self-signed anchor when
// the public PKIX validation fails) and requires a TLSA record match;
// otherwise it performs conventional PKIX validation against the root
// store plus a hostname check.
//
func (v *verifier) verify(rawCerts [][]byte, _ [][]*x509.Certificate) error {

	certs := make([]*x509.Certificate, len(rawCerts))
	for i, asn1Data := range rawCerts {
		cert, err := x509.ParseCertificate(asn1Data)
		if err != nil {
			return v.fail("bad certificate",
				fmt.Errorf("failed to parse server certificate: %s", err.Error()))
		}
		certs[i] = cert
	}
	if len(certs) == 0 {
		return v.fail("bad certificate", fmt.Errorf("empty peer certificate chain"))
	}
	v.peerChain = certs

	chains, err := verifyChain(certs, v.roots, true)
	okpkix := err == nil

	if !v.attemptDane {
		if !okpkix {
			return v.fail(err.Error(), err)
		}
		if nameErr := certs[0].VerifyHostname(v.config.Hostname); nameErr != nil {
			return v.fail(nameErr.Error(), nameErr)
		}
		v.verdict = Verdict{OK: true, PeerName: v.config.Hostname, Chain: certs}
		return nil
	}

	if !okpkix {
		chains, err = verifyChain(certs, v.roots, false)
		if err != nil {
			return v.fail("certificate chain invalid",
				fmt.Errorf("DANE TLS error: cert chain: %s", err.Error()))
		}
	}

	match, reasons := matchChain(chains[0], v.records, okpkix)
	if match == nil {
		failure := fmt.Errorf("DANE TLS authentication failed")
		return v.fail(fmt.Sprintf("no TLSA record matched: %v", reasons), failure)
	}

	// Per RFC 7671 section 5.1, DANE-EE matches do not require name
	// checks, unless explicitly configured.
	nameInScope := match.record.Usage != DaneEE || v.config.DaneEEname
	var peername string
	if nameInScope {
		if nameErr := certs[0].VerifyHostname(v.config.Hostname); nameErr != nil {
			return v.fail(nameErr.Error(), nameErr)
		}
		peername = v.config.Hostname
	}

	v.verdict = Verdict{
		OK:       true,
		Record:   &match.record,
		Depth:    match.depth,
		Kind:     match.kind,
		PeerName: peername,
		Chain:    certs,
	}
	return nil
}
