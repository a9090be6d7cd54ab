package attestation

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
	"github.com/scrtlabs/SecretNetwork-sub003/metrics"
)

const (
	certCommonName = "SecretTEE"
	// CertValidity is how long a freshly issued attestation certificate is valid.
	CertValidity = 365 * 24 * time.Hour
)

// ReportDataFor binds an X25519 key and a certificate key into quote report data.
func ReportDataFor(pub interfaces.PublicKey, spki []byte) [ReportDataSize]byte {
	var rd [ReportDataSize]byte
	copy(rd[:interfaces.PublicKeySize], pub[:])
	digest := sha256.Sum256(spki)
	copy(rd[interfaces.PublicKeySize:], digest[:])
	return rd
}

// CreateCertificate issues a self-signed certificate whose extension carries
// a quote binding pub to the certificate key.
func CreateCertificate(attester Attester, pub interfaces.PublicKey) ([]byte, *ecdsa.PrivateKey, error) {
	certKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	spki, err := x509.MarshalPKIXPublicKey(&certKey.PublicKey)
	if err != nil {
		return nil, nil, err
	}

	quote, err := attester.Produce(ReportDataFor(pub, spki))
	if err != nil {
		return nil, nil, fmt.Errorf("producing quote: %w", err)
	}

	ext, err := json.Marshal(RawReport{Type: attester.Type(), Quote: quote})
	if err != nil {
		return nil, nil, err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 64))
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber:    serial,
		Subject:         pkix.Name{CommonName: certCommonName},
		NotBefore:       now.Add(-time.Minute),
		NotAfter:        now.Add(CertValidity),
		KeyUsage:        x509.KeyUsageDigitalSignature,
		ExtraExtensions: []pkix.Extension{{Id: OIDAttestationReport, Value: ext}},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &certKey.PublicKey, certKey)
	if err != nil {
		return nil, nil, err
	}
	return der, certKey, nil
}

// Verifier authenticates attestation certificates against a policy.
type Verifier struct {
	attesters map[string]Attester
	policy    Policy
	log       *slog.Logger

	// Now is the clock used for the validity window.
	Now func() time.Time
}

// NewVerifier validates policy and registers the attesters by type.
func NewVerifier(policy Policy, log *slog.Logger, attesters ...Attester) (*Verifier, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if len(attesters) == 0 {
		return nil, fmt.Errorf("%w: no attesters configured", interfaces.ErrInvalidConfig)
	}

	v := &Verifier{
		attesters: make(map[string]Attester, len(attesters)),
		policy:    policy,
		log:       log,
		Now:       time.Now,
	}
	for _, a := range attesters {
		v.attesters[a.Type()] = a
	}
	return v, nil
}

// Policy returns the configured policy.
func (v *Verifier) Policy() Policy {
	return v.policy
}

// VerifyCertificate checks the certificate, its embedded quote and the
// policy, and returns the attested X25519 public key.
func (v *Verifier) VerifyCertificate(der []byte) (interfaces.PublicKey, *Report, error) {
	pub, report, err := v.verifyCertificate(der)
	v.record(err)
	return pub, report, err
}

func (v *Verifier) verifyCertificate(der []byte) (interfaces.PublicKey, *Report, error) {
	cert, raw, err := parseAttestationCertificate(der, v.Now())
	if err != nil {
		return interfaces.PublicKey{}, nil, err
	}

	attester, ok := v.attesters[raw.Type]
	if !ok {
		return interfaces.PublicKey{}, nil, reject(AuthUnknownAttestationType, "%q", raw.Type)
	}

	report, err := attester.Verify(raw.Quote)
	if err != nil {
		return interfaces.PublicKey{}, nil, err
	}

	spkiDigest := sha256.Sum256(cert.RawSubjectPublicKeyInfo)
	if len(report.ReportData) != ReportDataSize || !bytes.Equal(report.ReportData[interfaces.PublicKeySize:], spkiDigest[:]) {
		return interfaces.PublicKey{}, nil, reject(AuthInvalidCert, "quote is not bound to the certificate key")
	}

	if err := v.policy.Evaluate(report, v.log); err != nil {
		return interfaces.PublicKey{}, nil, err
	}

	pub, err := report.PublicKey()
	if err != nil || pub == (interfaces.PublicKey{}) {
		return interfaces.PublicKey{}, nil, reject(AuthMalformedPublicKey, "")
	}

	return pub, report, nil
}

func (v *Verifier) record(err error) {
	result := AuthSuccess
	if err != nil {
		result = AuthInvalidInput
		var authErr *AuthError
		if errors.As(err, &authErr) {
			result = authErr.Result
		}
		v.log.Warn("Attestation rejected", slog.String("reason", result.String()), "err", err)
	}
	metrics.AttestationVerdicts.WithLabelValues(result.MetricLabel()).Inc()
}

func parseAttestationCertificate(der []byte, now time.Time) (*x509.Certificate, *RawReport, error) {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, reject(AuthInvalidCert, "could not parse certificate: %v", err)
	}

	if err := cert.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature); err != nil {
		return nil, nil, reject(AuthInvalidCert, "certificate is not self-signed: %v", err)
	}

	if now.Before(cert.NotBefore) || now.After(cert.NotAfter) {
		return nil, nil, reject(AuthInvalidCert, "certificate outside its validity window")
	}

	raw, err := extractRawReport(cert)
	if err != nil {
		return nil, nil, err
	}
	return cert, raw, nil
}

func extractRawReport(cert *x509.Certificate) (*RawReport, error) {
	for _, ext := range cert.Extensions {
		if !ext.Id.Equal(OIDAttestationReport) {
			continue
		}
		var raw RawReport
		if err := json.Unmarshal(ext.Value, &raw); err != nil {
			return nil, reject(AuthInvalidCert, "could not parse attestation extension: %v", err)
		}
		if len(raw.Quote) == 0 {
			return nil, reject(AuthInvalidCert, "attestation extension has no quote")
		}
		return &raw, nil
	}
	return nil, reject(AuthInvalidCert, "attestation extension missing")
}
