package attestation

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"log/slog"
	"slices"

	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
)

// SigningMethod selects which code identity fields a peer must match.
type SigningMethod string

const (
	// SigningMethodMeasurement requires both an allowed measurement and an allowed signer.
	SigningMethodMeasurement SigningMethod = "MRENCLAVE"
	// SigningMethodSigner requires an allowed signer only.
	SigningMethodSigner SigningMethod = "MRSIGNER"
	// SigningMethodNone skips code identity checks.
	SigningMethodNone SigningMethod = "NONE"
)

// Policy decides which verified reports are acceptable.
//
// Evaluate is monotone: tightening any field (raising MinSVN, removing
// allowed values, clearing a flag) never accepts a report the looser
// policy rejected.
type Policy struct {
	SigningMethod       SigningMethod `yaml:"signing_method"`
	AllowedMeasurements []HexBytes    `yaml:"allowed_measurements"`
	AllowedSigners      []HexBytes    `yaml:"allowed_signers"`
	MinSVN              uint32        `yaml:"min_svn"`
	AllowDegradedStatus bool          `yaml:"allow_degraded_status"`
	AllowedAdvisories   []string      `yaml:"allowed_advisories"`
	AllowDebug          bool          `yaml:"allow_debug"`
	Production          bool          `yaml:"production"`
}

// HexBytes is a byte string written as hex in config files.
type HexBytes []byte

// UnmarshalText decodes hex.
func (h *HexBytes) UnmarshalText(text []byte) error {
	raw, err := hex.DecodeString(string(bytes.TrimPrefix(text, []byte("0x"))))
	if err != nil {
		return err
	}
	*h = raw
	return nil
}

// MarshalText encodes hex.
func (h HexBytes) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(h)), nil
}

// Validate rejects contradictory policies. A production policy never
// accepts debug enclaves or degraded platform status.
func (p Policy) Validate() error {
	switch p.SigningMethod {
	case SigningMethodMeasurement:
		if len(p.AllowedMeasurements) == 0 || len(p.AllowedSigners) == 0 {
			return fmt.Errorf("%w: MRENCLAVE policy needs allowed measurements and signers", interfaces.ErrInvalidConfig)
		}
	case SigningMethodSigner:
		if len(p.AllowedSigners) == 0 {
			return fmt.Errorf("%w: MRSIGNER policy needs allowed signers", interfaces.ErrInvalidConfig)
		}
	case SigningMethodNone:
		if p.Production {
			return fmt.Errorf("%w: production policy must check code identity", interfaces.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown signing method %q", interfaces.ErrInvalidConfig, p.SigningMethod)
	}

	if p.Production && p.AllowDebug {
		return fmt.Errorf("%w: debug enclaves cannot be allowed by a production policy", interfaces.ErrInvalidConfig)
	}
	if p.Production && p.AllowDegradedStatus {
		return fmt.Errorf("%w: degraded platform status cannot be allowed by a production policy", interfaces.ErrInvalidConfig)
	}
	return nil
}

// Evaluate checks a verified report against the policy. Rejections are
// returned as *AuthError. log receives warnings for accepted degraded reports.
func (p Policy) Evaluate(r *Report, log *slog.Logger) error {
	if err := p.evaluateStatus(r, log); err != nil {
		return err
	}

	if r.Debug && !p.AllowDebug {
		return reject(AuthDebugNotAllowed, "")
	}

	switch p.SigningMethod {
	case SigningMethodMeasurement:
		if !containsBytes(p.AllowedMeasurements, r.Measurement) {
			return reject(AuthMeasurementMismatch, "received %x", r.Measurement)
		}
		if !containsBytes(p.AllowedSigners, r.Signer) {
			return reject(AuthSignerMismatch, "received %x", r.Signer)
		}
	case SigningMethodSigner:
		if !containsBytes(p.AllowedSigners, r.Signer) {
			return reject(AuthSignerMismatch, "received %x", r.Signer)
		}
	case SigningMethodNone:
	default:
		return reject(AuthBadQuoteStatus, "unknown signing method %q", p.SigningMethod)
	}

	if r.SVN < p.MinSVN {
		return reject(AuthSVNTooLow, "svn %d < %d", r.SVN, p.MinSVN)
	}

	return nil
}

func (p Policy) evaluateStatus(r *Report, log *slog.Logger) error {
	switch r.Status {
	case StatusOK, StatusSwHardeningNeeded, StatusConfigurationAndSwHardeningNeeded:
	case StatusGroupOutOfDate:
		if !p.AllowDegradedStatus {
			return reject(AuthGroupOutOfDate, "")
		}
		log.Warn("Accepting attestation with degraded platform status",
			slog.String("status", string(r.Status)))
	default:
		return reject(statusResult(r.Status), "")
	}

	var vulnerable []string
	for _, advisory := range r.Advisories {
		if !slices.Contains(p.AllowedAdvisories, advisory) {
			vulnerable = append(vulnerable, advisory)
		}
	}
	if len(vulnerable) == 0 {
		return nil
	}
	if !p.AllowDegradedStatus {
		return reject(AuthAdvisoryNotAllowed, "%v", vulnerable)
	}
	log.Warn("Platform has vulnerabilities that will not be approved on a production network",
		slog.Any("advisories", vulnerable))
	return nil
}

func containsBytes(set []HexBytes, value []byte) bool {
	for _, v := range set {
		if bytes.Equal(v, value) {
			return true
		}
	}
	return false
}
