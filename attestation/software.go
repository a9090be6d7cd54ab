package attestation

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
)

// SoftwareClaims are the identity fields a software attester vouches for.
type SoftwareClaims struct {
	Measurement HexBytes    `json:"measurement" yaml:"measurement"`
	Signer      HexBytes    `json:"signer" yaml:"signer"`
	SVN         uint32      `json:"svn" yaml:"svn"`
	Status      QuoteStatus `json:"status" yaml:"status"`
	Advisories  []string    `json:"advisories,omitempty" yaml:"advisories"`
	Debug       bool        `json:"debug" yaml:"debug"`
}

type softwareBody struct {
	SoftwareClaims
	ReportData []byte `json:"report_data"`
}

type softwareQuote struct {
	Body      []byte `json:"body"`
	Signature []byte `json:"signature"`
}

// SoftwareAttester signs reports with an Ed25519 key. It offers no hardware
// guarantee and exists for local networks and tests.
type SoftwareAttester struct {
	key     ed25519.PrivateKey
	claims  SoftwareClaims
	trusted []ed25519.PublicKey
}

// NewSoftwareAttester signs with key and accepts reports signed by key or
// any of trusted. A nil key gives a verify-only attester.
func NewSoftwareAttester(key ed25519.PrivateKey, claims SoftwareClaims, trusted ...ed25519.PublicKey) *SoftwareAttester {
	if claims.Status == "" {
		claims.Status = StatusOK
	}
	a := &SoftwareAttester{key: key, claims: claims}
	if key != nil {
		a.trusted = append(a.trusted, key.Public().(ed25519.PublicKey))
	}
	a.trusted = append(a.trusted, trusted...)
	return a
}

func (a *SoftwareAttester) Type() string { return TypeSoftware }

func (a *SoftwareAttester) Produce(reportData [ReportDataSize]byte) ([]byte, error) {
	if a.key == nil {
		return nil, fmt.Errorf("software attester has no signing key")
	}

	body, err := json.Marshal(softwareBody{SoftwareClaims: a.claims, ReportData: reportData[:]})
	if err != nil {
		return nil, err
	}
	return json.Marshal(softwareQuote{Body: body, Signature: ed25519.Sign(a.key, body)})
}

func (a *SoftwareAttester) Verify(quote []byte) (*Report, error) {
	var q softwareQuote
	if err := json.Unmarshal(quote, &q); err != nil {
		return nil, reject(AuthInvalidInput, "could not parse software quote: %v", err)
	}

	trusted := false
	for _, pub := range a.trusted {
		if ed25519.Verify(pub, q.Body, q.Signature) {
			trusted = true
			break
		}
	}
	if !trusted {
		return nil, reject(AuthSignatureInvalid, "software quote not signed by a trusted key")
	}

	var body softwareBody
	if err := json.Unmarshal(q.Body, &body); err != nil {
		return nil, reject(AuthInvalidInput, "could not parse software report: %v", err)
	}
	if len(body.ReportData) != ReportDataSize {
		return nil, reject(AuthInvalidInput, "report data has %d bytes", len(body.ReportData))
	}

	return &Report{
		Type:        TypeSoftware,
		Measurement: body.Measurement,
		Signer:      body.Signer,
		SVN:         body.SVN,
		Status:      body.Status,
		Advisories:  body.Advisories,
		Debug:       body.Debug,
		ReportData:  body.ReportData,
		Quote:       quote,
	}, nil
}
