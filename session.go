package danetls

import (
	"crypto/tls"
	"crypto/x509"
	"net"
)

//
// session is one TLS client session over an established transport
// connection. The orchestrator drives Handshake, reads the verification
// Verdict, and shuts the session down regardless of outcome. The
// indirection exists so orchestration tests can substitute a scripted
// session.
//
type session interface {
	Handshake() error
	Verdict() Verdict
	Version() string
	Cipher() string
	Close() error
}

//
// engineAccepts reports whether the TLS engine accepts a structurally
// usable TLSA record as trust material. Acceptance is independent of the
// usability filter: a record can pass the structural checks and still
// be rejected here for an out-of-range usage or selector.
//
func engineAccepts(tr TLSARecord) bool {
	return tr.Usage <= DaneEE && tr.Selector <= SelectorSPKI
}

//
// tlsSession wraps a crypto/tls client connection with a verifier
// capturing the peer verification verdict.
//
type tlsSession struct {
	conn *tls.Conn
	v    *verifier
}

//
// newTLSSession prepares a TLS client session on the given transport
// connection. The tls.Config disables the standard verification path
// and installs the verifier callback, which performs DANE or PKIX
// verification bound to the configured hostname. The submitted records
// must already have passed the usability filter and engine acceptance.
//
func newTLSSession(conn net.Conn, config *Config, roots *x509.CertPool,
	attemptDane bool, records []TLSARecord) session {

	v := &verifier{
		config:      config,
		roots:       roots,
		attemptDane: attemptDane,
		records:     records,
	}
	tlsconfig := &tls.Config{
		ServerName:         config.Hostname,
		InsecureSkipVerify: true,
		VerifyPeerCertificate: func(rawCerts [][]byte,
			verifiedChains [][]*x509.Certificate) error {
			return v.verify(rawCerts, verifiedChains)
		},
	}
	return &tlsSession{conn: tls.Client(conn, tlsconfig), v: v}
}

func (s *tlsSession) Handshake() error {
	return s.conn.Handshake()
}

func (s *tlsSession) Verdict() Verdict {
	return s.v.verdict
}

func (s *tlsSession) Version() string {
	return tls.VersionName(s.conn.ConnectionState().Version)
}

func (s *tlsSession) Cipher() string {
	return tls.CipherSuiteName(s.conn.ConnectionState().CipherSuite)
}

// Close performs an orderly TLS shutdown. The underlying transport
// connection is closed by the orchestrator.
func (s *tlsSession) Close() error {
	return s.conn.Close()
}
