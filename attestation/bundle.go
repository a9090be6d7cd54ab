package attestation

import (
	"bytes"
	"encoding/binary"

	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
)

const bundleHeaderSize = 12

// Combine packs a certificate, a quote and its collateral as three
// little-endian u32 lengths followed by the three blobs.
func Combine(cert, quote, collateral []byte) []byte {
	out := make([]byte, bundleHeaderSize, bundleHeaderSize+len(cert)+len(quote)+len(collateral))
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(cert)))
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(quote)))
	binary.LittleEndian.PutUint32(out[8:12], uint32(len(collateral)))
	out = append(out, cert...)
	out = append(out, quote...)
	return append(out, collateral...)
}

// SplitCombined reverses Combine. Truncated or padded bundles are rejected.
func SplitCombined(b []byte) (cert, quote, collateral []byte, err error) {
	if len(b) < bundleHeaderSize {
		return nil, nil, nil, reject(AuthInvalidInput, "bundle header truncated")
	}

	sizes := [3]uint64{
		uint64(binary.LittleEndian.Uint32(b[0:4])),
		uint64(binary.LittleEndian.Uint32(b[4:8])),
		uint64(binary.LittleEndian.Uint32(b[8:12])),
	}
	if bundleHeaderSize+sizes[0]+sizes[1]+sizes[2] != uint64(len(b)) {
		return nil, nil, nil, reject(AuthInvalidInput, "bundle length mismatch")
	}

	rest := b[bundleHeaderSize:]
	cert, rest = rest[:sizes[0]], rest[sizes[0]:]
	quote, rest = rest[:sizes[1]], rest[sizes[1]:]
	collateral = rest[:sizes[2]]
	return cert, quote, collateral, nil
}

// VerifyBundle verifies a combined bundle. A non-empty quote must be the one
// embedded in the certificate. Collateral is attached to the report.
func (v *Verifier) VerifyBundle(b []byte) (interfaces.PublicKey, *Report, error) {
	pub, report, err := v.verifyBundle(b)
	v.record(err)
	return pub, report, err
}

func (v *Verifier) verifyBundle(b []byte) (interfaces.PublicKey, *Report, error) {
	cert, quote, collateral, err := SplitCombined(b)
	if err != nil {
		return interfaces.PublicKey{}, nil, err
	}

	pub, report, err := v.verifyCertificate(cert)
	if err != nil {
		return interfaces.PublicKey{}, nil, err
	}

	if len(quote) != 0 && !bytes.Equal(quote, report.Quote) {
		return interfaces.PublicKey{}, nil, reject(AuthInvalidCert, "bundle quote differs from the certificate quote")
	}

	report.Collateral = collateral
	return pub, report, nil
}
