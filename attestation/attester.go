package attestation

import (
	"encoding/asn1"
	"fmt"

	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
)

const (
	// TypeSoftware is the signed software report used in development networks.
	TypeSoftware = "software"
	// TypeDCAP is an Intel TDX quote verified against DCAP collateral.
	TypeDCAP = "tdx-dcap"
)

// OIDAttestationReport marks the certificate extension holding the RawReport.
var OIDAttestationReport = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 66704, 98646, 1}

// Attester produces quotes over report data and verifies quotes of its type.
type Attester interface {
	Type() string
	Produce(reportData [ReportDataSize]byte) ([]byte, error)
	Verify(quote []byte) (*Report, error)
}

// RawReport is the payload of the attestation certificate extension.
type RawReport struct {
	Type  string `json:"type"`
	Quote []byte `json:"quote"`
}

// AttesterFor builds an attester by type name. The software attester needs
// its key material and is configured with NewSoftwareAttester instead.
func AttesterFor(attestationType, remoteAddress string) (Attester, error) {
	switch attestationType {
	case TypeDCAP:
		return &DCAPAttester{RemoteAddress: remoteAddress}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported attestation type %q", interfaces.ErrInvalidConfig, attestationType)
	}
}
