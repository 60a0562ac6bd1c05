package danetls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

//
// Certificate fixtures for verification tests. All keys are throwaway
// P-256 keys generated per test.
//

func makeCert(t *testing.T, template, parent *x509.Certificate,
	pub *ecdsa.PublicKey, signer *ecdsa.PrivateKey) *x509.Certificate {

	t.Helper()
	der, err := x509.CreateCertificate(rand.Reader, template, parent, pub, signer)
	require.NoError(t, err, "creating test certificate")
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err, "parsing test certificate")
	return cert
}

// selfSignedCert returns a self-signed server certificate for name,
// valid for an hour either side of now.
func selfSignedCert(t *testing.T, name string) *x509.Certificate {

	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: name},
		DNSNames:              []string{name},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	return makeCert(t, template, template, &key.PublicKey, key)
}

// caSignedChain returns a leaf server certificate for name signed by a
// fresh test CA, along with the CA certificate.
func caSignedChain(t *testing.T, name string) (leaf, ca *x509.Certificate) {

	t.Helper()
	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	leafKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	caTemplate := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "danetls test CA"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	ca = makeCert(t, caTemplate, caTemplate, &caKey.PublicKey, caKey)

	leafTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: name},
		DNSNames:     []string{name},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	leaf = makeCert(t, leafTemplate, ca, &leafKey.PublicKey, caKey)
	return leaf, ca
}

// recordFor computes a TLSA record matching the given certificate.
func recordFor(t *testing.T, usage, selector, mtype uint8,
	cert *x509.Certificate) TLSARecord {

	t.Helper()
	data, err := ComputeTLSA(selector, mtype, cert)
	require.NoError(t, err)
	return TLSARecord{Usage: usage, Selector: selector,
		MatchingType: mtype, Data: data}
}
