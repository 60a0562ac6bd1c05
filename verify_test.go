package danetls

import (
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVerifier(config *Config, roots *x509.CertPool, attemptDane bool,
	records []TLSARecord) *verifier {
	return &verifier{
		config:      config,
		roots:       roots,
		attemptDane: attemptDane,
		records:     records,
	}
}

func TestVerifyPKIXSuccess(t *testing.T) {

	leaf, ca := caSignedChain(t, "good.example.com")
	roots := x509.NewCertPool()
	roots.AddCert(ca)

	config := NewConfig("good.example.com", 443)
	v := newVerifier(config, roots, false, nil)

	err := v.verify([][]byte{leaf.Raw}, nil)
	require.NoError(t, err)
	assert.True(t, v.verdict.OK)
	assert.Equal(t, "good.example.com", v.verdict.PeerName,
		"name checks were in scope and passed")
	assert.False(t, v.verdict.DANE())
}

func TestVerifyPKIXWrongName(t *testing.T) {

	leaf, ca := caSignedChain(t, "good.example.com")
	roots := x509.NewCertPool()
	roots.AddCert(ca)

	config := NewConfig("other.example.com", 443)
	v := newVerifier(config, roots, false, nil)

	err := v.verify([][]byte{leaf.Raw}, nil)
	require.Error(t, err)
	assert.False(t, v.verdict.OK)
	assert.NotEmpty(t, v.verdict.Code, "verdict code preserved for diagnostics")
}

func TestVerifyPKIXUnknownCA(t *testing.T) {

	leaf, _ := caSignedChain(t, "good.example.com")

	config := NewConfig("good.example.com", 443)
	v := newVerifier(config, x509.NewCertPool(), false, nil)

	err := v.verify([][]byte{leaf.Raw}, nil)
	require.Error(t, err)
	assert.False(t, v.verdict.OK)
}

func TestVerifyDaneEE(t *testing.T) {

	cert := selfSignedCert(t, "good.example.com")
	tr := recordFor(t, DaneEE, SelectorSPKI, MatchingTypeSHA256, cert)

	config := NewConfig("good.example.com", 443)
	v := newVerifier(config, x509.NewCertPool(), true, []TLSARecord{tr})

	err := v.verify([][]byte{cert.Raw}, nil)
	require.NoError(t, err)
	assert.True(t, v.verdict.OK)
	require.NotNil(t, v.verdict.Record)
	assert.Equal(t, 0, v.verdict.Depth, "EE match is at depth 0")
	assert.Equal(t, MatchEE, v.verdict.Kind)
	assert.Empty(t, v.verdict.PeerName,
		"DANE-EE skips name checks by default")
}

func TestVerifyDaneEEWithNameCheck(t *testing.T) {

	cert := selfSignedCert(t, "good.example.com")
	tr := recordFor(t, DaneEE, SelectorCert, MatchingTypeSHA512, cert)

	config := NewConfig("good.example.com", 443)
	config.DaneEEname = true
	v := newVerifier(config, x509.NewCertPool(), true, []TLSARecord{tr})

	err := v.verify([][]byte{cert.Raw}, nil)
	require.NoError(t, err)
	assert.Equal(t, "good.example.com", v.verdict.PeerName)
}

func TestVerifyDaneTA(t *testing.T) {

	leaf, ca := caSignedChain(t, "good.example.com")
	tr := recordFor(t, DaneTA, SelectorCert, MatchingTypeSHA256, ca)

	config := NewConfig("good.example.com", 443)
	v := newVerifier(config, x509.NewCertPool(), true, []TLSARecord{tr})

	err := v.verify([][]byte{leaf.Raw, ca.Raw}, nil)
	require.NoError(t, err)
	assert.True(t, v.verdict.OK)
	assert.Equal(t, 1, v.verdict.Depth, "TA match is above the EE certificate")
	assert.Equal(t, MatchTACert, v.verdict.Kind)
	assert.Equal(t, "good.example.com", v.verdict.PeerName,
		"non-EE usage modes keep name checks in scope")
}

func TestVerifyDaneTAPublicKey(t *testing.T) {

	leaf, ca := caSignedChain(t, "good.example.com")
	tr := recordFor(t, DaneTA, SelectorSPKI, MatchingTypeSHA256, ca)

	config := NewConfig("good.example.com", 443)
	v := newVerifier(config, x509.NewCertPool(), true, []TLSARecord{tr})

	err := v.verify([][]byte{leaf.Raw, ca.Raw}, nil)
	require.NoError(t, err)
	assert.Equal(t, MatchTAKey, v.verdict.Kind)
}

func TestVerifyDaneNoMatch(t *testing.T) {

	cert := selfSignedCert(t, "good.example.com")
	other := selfSignedCert(t, "other.example.com")
	tr := recordFor(t, DaneEE, SelectorCert, MatchingTypeSHA256, other)

	config := NewConfig("good.example.com", 443)
	v := newVerifier(config, x509.NewCertPool(), true, []TLSARecord{tr})

	err := v.verify([][]byte{cert.Raw}, nil)
	require.Error(t, err)
	assert.False(t, v.verdict.OK)
	assert.Contains(t, v.verdict.Code, "no TLSA record matched")
}

func TestVerifyPkixUsageRequiresPKIX(t *testing.T) {

	// A PKIX-EE record matching the certificate must not authenticate
	// when PKIX chain validation itself failed (empty root store).
	cert := selfSignedCert(t, "good.example.com")
	tr := recordFor(t, PkixEE, SelectorCert, MatchingTypeSHA256, cert)

	config := NewConfig("good.example.com", 443)
	v := newVerifier(config, x509.NewCertPool(), true, []TLSARecord{tr})

	err := v.verify([][]byte{cert.Raw}, nil)
	require.Error(t, err)
	assert.False(t, v.verdict.OK)
}

func TestVerifyEmptyChain(t *testing.T) {

	config := NewConfig("good.example.com", 443)
	v := newVerifier(config, x509.NewCertPool(), false, nil)

	err := v.verify(nil, nil)
	require.Error(t, err)
	assert.False(t, v.verdict.OK)
}

func TestMatchChainFirstMatchWins(t *testing.T) {

	cert := selfSignedCert(t, "good.example.com")
	miss := TLSARecord{DaneEE, SelectorCert, MatchingTypeSHA256, make([]byte, 32)}
	hit := recordFor(t, DaneEE, SelectorCert, MatchingTypeSHA256, cert)

	m, reasons := matchChain([]*x509.Certificate{cert},
		[]TLSARecord{miss, hit}, false)
	require.NotNil(t, m)
	assert.Equal(t, hit.String(), m.record.String())
	assert.Len(t, reasons, 1, "non-matching records are reported")
}

func TestLoadTrustStoreMissingFile(t *testing.T) {

	_, err := loadTrustStore("/nonexistent/cafile.pem")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTrustStore)
}

func TestLoadTrustStoreFromFile(t *testing.T) {

	ca := selfSignedCert(t, "ca.example.com")
	path := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(path, CertToPEMBytes(ca), 0600))

	pool, err := loadTrustStore(path)
	require.NoError(t, err)
	assert.NotNil(t, pool)
}
