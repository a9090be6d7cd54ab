package attestation

import (
	"fmt"

	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
)

// ReportDataSize is the size of the user data a quote binds.
const ReportDataSize = 64

// QuoteStatus is the platform verdict carried by a quote.
type QuoteStatus string

const (
	StatusOK                                QuoteStatus = "OK"
	StatusSwHardeningNeeded                 QuoteStatus = "SW_HARDENING_NEEDED"
	StatusConfigurationNeeded               QuoteStatus = "CONFIGURATION_NEEDED"
	StatusConfigurationAndSwHardeningNeeded QuoteStatus = "CONFIGURATION_AND_SW_HARDENING_NEEDED"
	StatusGroupOutOfDate                    QuoteStatus = "GROUP_OUT_OF_DATE"
	StatusGroupRevoked                      QuoteStatus = "GROUP_REVOKED"
	StatusSignatureInvalid                  QuoteStatus = "SIGNATURE_INVALID"
	StatusSignatureRevoked                  QuoteStatus = "SIGNATURE_REVOKED"
	StatusKeyRevoked                        QuoteStatus = "KEY_REVOKED"
	StatusSigrlVersionMismatch              QuoteStatus = "SIGRL_VERSION_MISMATCH"
)

// Report is the verified content of a quote.
type Report struct {
	Type        string      `json:"type"`
	Measurement []byte      `json:"measurement"`
	Signer      []byte      `json:"signer"`
	SVN         uint32      `json:"svn"`
	Status      QuoteStatus `json:"status"`
	Advisories  []string    `json:"advisories,omitempty"`
	Debug       bool        `json:"debug"`
	ReportData  []byte      `json:"report_data"`

	// Quote is the raw hardware evidence the fields above were read from.
	Quote []byte `json:"-"`
	// Collateral accompanies the quote in combined bundles. It is kept for audit only.
	Collateral []byte `json:"-"`
}

// PublicKey returns the attested X25519 key, the first half of the report data.
func (r *Report) PublicKey() (interfaces.PublicKey, error) {
	if len(r.ReportData) < interfaces.PublicKeySize {
		return interfaces.PublicKey{}, fmt.Errorf("%w: report data too short", interfaces.ErrInvalidInput)
	}
	return interfaces.NewPublicKeyFromBytes(r.ReportData[:interfaces.PublicKeySize])
}

// AuthResult is the outcome of authenticating a peer's attestation.
type AuthResult int

const (
	AuthSuccess AuthResult = iota
	AuthGroupOutOfDate
	AuthSignatureInvalid
	AuthSignatureRevoked
	AuthGroupRevoked
	AuthKeyRevoked
	AuthSigrlVersionMismatch
	AuthConfigurationNeeded
	AuthSwHardeningAndConfigurationNeeded
	AuthBadQuoteStatus
	AuthMeasurementMismatch
	AuthSignerMismatch
	AuthSVNTooLow
	AuthAdvisoryNotAllowed
	AuthDebugNotAllowed
	AuthInvalidInput
	AuthInvalidCert
	AuthMalformedPublicKey
	AuthUnknownAttestationType
	AuthNotInCurrentBlock
)

// String returns the operator facing reason.
func (r AuthResult) String() string {
	switch r {
	case AuthSuccess:
		return "enclave quote is valid"
	case AuthGroupOutOfDate:
		return "enclave quote status was GROUP_OUT_OF_DATE which is not allowed"
	case AuthSignatureInvalid:
		return "enclave quote status was SIGNATURE_INVALID which is not allowed"
	case AuthSignatureRevoked:
		return "enclave quote status was SIGNATURE_REVOKED which is not allowed"
	case AuthGroupRevoked:
		return "enclave quote status was GROUP_REVOKED which is not allowed"
	case AuthKeyRevoked:
		return "enclave quote status was KEY_REVOKED which is not allowed"
	case AuthSigrlVersionMismatch:
		return "enclave quote status was SIGRL_VERSION_MISMATCH which is not allowed"
	case AuthConfigurationNeeded:
		return "enclave quote status was CONFIGURATION_NEEDED which is not allowed"
	case AuthSwHardeningAndConfigurationNeeded:
		return "enclave quote status was CONFIGURATION_AND_SW_HARDENING_NEEDED which is not allowed"
	case AuthBadQuoteStatus:
		return "enclave quote status invalid"
	case AuthMeasurementMismatch:
		return "registering enclave had a different code measurement"
	case AuthSignerMismatch:
		return "registering enclave had a different signer"
	case AuthSVNTooLow:
		return "enclave security version is below the required minimum"
	case AuthAdvisoryNotAllowed:
		return "platform has security advisories that are not allowed"
	case AuthDebugNotAllowed:
		return "enclave runs in debug mode"
	case AuthInvalidInput:
		return "enclave received invalid inputs"
	case AuthInvalidCert:
		return "the provided certificate was invalid"
	case AuthMalformedPublicKey:
		return "the public key in the certificate appears to be malformed"
	case AuthUnknownAttestationType:
		return "unsupported attestation type"
	case AuthNotInCurrentBlock:
		return "certificate was not found in the current block"
	default:
		return fmt.Sprintf("unknown auth result %d", int(r))
	}
}

// MetricLabel returns a short stable label for metrics.
func (r AuthResult) MetricLabel() string {
	switch r {
	case AuthSuccess:
		return "success"
	case AuthGroupOutOfDate, AuthSVNTooLow:
		return "out_of_date"
	case AuthSignatureInvalid, AuthSignatureRevoked, AuthGroupRevoked, AuthKeyRevoked, AuthSigrlVersionMismatch:
		return "revoked_or_invalid"
	case AuthMeasurementMismatch, AuthSignerMismatch, AuthDebugNotAllowed:
		return "identity"
	case AuthInvalidInput, AuthInvalidCert, AuthMalformedPublicKey, AuthUnknownAttestationType:
		return "malformed"
	default:
		return "rejected"
	}
}

// AuthError carries the specific rejection reason. It matches
// interfaces.ErrAttestation with errors.Is.
type AuthError struct {
	Result AuthResult
	Detail string
}

func (e *AuthError) Error() string {
	if e.Detail == "" {
		return e.Result.String()
	}
	return e.Result.String() + ": " + e.Detail
}

func (e *AuthError) Unwrap() error {
	return interfaces.ErrAttestation
}

// NewAuthError builds a rejection for checks made outside this package.
func NewAuthError(result AuthResult, detail string) *AuthError {
	return &AuthError{Result: result, Detail: detail}
}

func reject(result AuthResult, format string, args ...any) error {
	return &AuthError{Result: result, Detail: fmt.Sprintf(format, args...)}
}

func statusResult(s QuoteStatus) AuthResult {
	switch s {
	case StatusGroupOutOfDate:
		return AuthGroupOutOfDate
	case StatusSignatureInvalid:
		return AuthSignatureInvalid
	case StatusSignatureRevoked:
		return AuthSignatureRevoked
	case StatusGroupRevoked:
		return AuthGroupRevoked
	case StatusKeyRevoked:
		return AuthKeyRevoked
	case StatusSigrlVersionMismatch:
		return AuthSigrlVersionMismatch
	case StatusConfigurationNeeded:
		return AuthConfigurationNeeded
	case StatusConfigurationAndSwHardeningNeeded:
		return AuthSwHardeningAndConfigurationNeeded
	default:
		return AuthBadQuoteStatus
	}
}
