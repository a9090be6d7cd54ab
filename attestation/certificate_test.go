package attestation

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSoftwareAttester(t *testing.T, claims SoftwareClaims) *SoftwareAttester {
	t.Helper()
	_, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return NewSoftwareAttester(key, claims)
}

func defaultClaims() SoftwareClaims {
	return SoftwareClaims{Measurement: measurementA, Signer: signerA, SVN: 3}
}

func nodeKey(b byte) interfaces.PublicKey {
	var pk interfaces.PublicKey
	for i := range pk {
		pk[i] = b
	}
	return pk
}

func newVerifier(t *testing.T, attesters ...Attester) *Verifier {
	t.Helper()
	v, err := NewVerifier(basePolicy(), testLogger(), attesters...)
	require.NoError(t, err)
	return v
}

// certWithExtension self-signs a certificate carrying an arbitrary extension payload.
func certWithExtension(t *testing.T, key *ecdsa.PrivateKey, ext []byte) []byte {
	t.Helper()
	template := &x509.Certificate{
		SerialNumber: big.NewInt(7),
		Subject:      pkix.Name{CommonName: "test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	if ext != nil {
		template.ExtraExtensions = []pkix.Extension{{Id: OIDAttestationReport, Value: ext}}
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	return der
}

func TestCertificate_RoundTrip(t *testing.T) {
	attester := newSoftwareAttester(t, defaultClaims())
	der, certKey, err := CreateCertificate(attester, nodeKey(0x42))
	require.NoError(t, err)
	require.NotNil(t, certKey)

	pub, report, err := newVerifier(t, attester).VerifyCertificate(der)
	require.NoError(t, err)
	assert.Equal(t, nodeKey(0x42), pub)
	assert.Equal(t, TypeSoftware, report.Type)
	assert.Equal(t, []byte(measurementA), []byte(report.Measurement))
}

func TestCertificate_Rejections(t *testing.T) {
	attester := newSoftwareAttester(t, defaultClaims())
	der, _, err := CreateCertificate(attester, nodeKey(0x42))
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	raw, err := extractRawReport(cert)
	require.NoError(t, err)

	otherKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	t.Run("garbage", func(t *testing.T) {
		_, _, err := newVerifier(t, attester).VerifyCertificate([]byte("not a cert"))
		assert.Equal(t, AuthInvalidCert, resultOf(err))
	})

	t.Run("missing extension", func(t *testing.T) {
		_, _, err := newVerifier(t, attester).VerifyCertificate(certWithExtension(t, otherKey, nil))
		assert.Equal(t, AuthInvalidCert, resultOf(err))
	})

	t.Run("quote moved to another key", func(t *testing.T) {
		ext, err := json.Marshal(raw)
		require.NoError(t, err)
		_, _, err = newVerifier(t, attester).VerifyCertificate(certWithExtension(t, otherKey, ext))
		assert.Equal(t, AuthInvalidCert, resultOf(err))
	})

	t.Run("unknown type", func(t *testing.T) {
		ext, err := json.Marshal(RawReport{Type: "sev-snp", Quote: raw.Quote})
		require.NoError(t, err)
		_, _, err = newVerifier(t, attester).VerifyCertificate(certWithExtension(t, otherKey, ext))
		assert.Equal(t, AuthUnknownAttestationType, resultOf(err))
	})

	t.Run("untrusted signer", func(t *testing.T) {
		stranger := newSoftwareAttester(t, defaultClaims())
		_, _, err := newVerifier(t, stranger).VerifyCertificate(der)
		assert.Equal(t, AuthSignatureInvalid, resultOf(err))
	})

	t.Run("expired", func(t *testing.T) {
		v := newVerifier(t, attester)
		v.Now = func() time.Time { return time.Now().Add(2 * CertValidity) }
		_, _, err := v.VerifyCertificate(der)
		assert.Equal(t, AuthInvalidCert, resultOf(err))
	})

	t.Run("policy mismatch", func(t *testing.T) {
		wrong := newSoftwareAttester(t, SoftwareClaims{Measurement: measurementB, Signer: signerA, SVN: 3})
		der, _, err := CreateCertificate(wrong, nodeKey(1))
		require.NoError(t, err)
		_, _, err = newVerifier(t, wrong).VerifyCertificate(der)
		assert.Equal(t, AuthMeasurementMismatch, resultOf(err))
		assert.ErrorIs(t, err, interfaces.ErrAttestation)
	})

	t.Run("zero public key", func(t *testing.T) {
		der, _, err := CreateCertificate(attester, interfaces.PublicKey{})
		require.NoError(t, err)
		_, _, err = newVerifier(t, attester).VerifyCertificate(der)
		assert.Equal(t, AuthMalformedPublicKey, resultOf(err))
	})
}

func TestNewVerifier_Config(t *testing.T) {
	_, err := NewVerifier(basePolicy(), testLogger())
	assert.ErrorIs(t, err, interfaces.ErrInvalidConfig)

	bad := basePolicy()
	bad.Production = true
	bad.AllowDebug = true
	_, err = NewVerifier(bad, testLogger(), &DCAPAttester{})
	assert.ErrorIs(t, err, interfaces.ErrInvalidConfig)
}

func TestBundle(t *testing.T) {
	attester := newSoftwareAttester(t, defaultClaims())
	der, _, err := CreateCertificate(attester, nodeKey(9))
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	raw, err := extractRawReport(cert)
	require.NoError(t, err)

	collateral := []byte("collateral")
	bundle := Combine(der, raw.Quote, collateral)

	c, q, col, err := SplitCombined(bundle)
	require.NoError(t, err)
	assert.Equal(t, der, c)
	assert.Equal(t, raw.Quote, q)
	assert.Equal(t, collateral, col)

	v := newVerifier(t, attester)
	pub, report, err := v.VerifyBundle(bundle)
	require.NoError(t, err)
	assert.Equal(t, nodeKey(9), pub)
	assert.Equal(t, collateral, report.Collateral)

	_, _, err = v.VerifyBundle(Combine(der, nil, nil))
	assert.NoError(t, err, "empty quote falls back to the certificate")

	_, _, err = v.VerifyBundle(Combine(der, []byte("other quote"), nil))
	assert.Equal(t, AuthInvalidCert, resultOf(err))

	for _, truncated := range [][]byte{nil, bundle[:5], bundle[:len(bundle)-1], append(append([]byte{}, bundle...), 0)} {
		_, _, _, err := SplitCombined(truncated)
		assert.ErrorIs(t, err, interfaces.ErrAttestation)
	}
}

func TestDCAPAttester_RejectsGarbage(t *testing.T) {
	_, err := (&DCAPAttester{}).Verify([]byte("definitely not a tdx quote"))
	assert.Equal(t, AuthInvalidInput, resultOf(err))

	_, err = AttesterFor(TypeDCAP, "")
	assert.NoError(t, err)
	_, err = AttesterFor("nitro", "")
	assert.ErrorIs(t, err, interfaces.ErrInvalidConfig)
}
