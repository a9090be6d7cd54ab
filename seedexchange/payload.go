package seedexchange

import (
	"encoding/binary"
	"fmt"

	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
)

// Magic prefixes every seed payload.
const Magic = "secret"

// PayloadSize is magic ‖ seed id ‖ genesis ciphertext ‖ current ciphertext.
const PayloadSize = len(Magic) + 2 + 2*EncryptedSeedSize

// Payload is the provider's answer to an authenticated node.
type Payload struct {
	SeedID  uint16
	Genesis []byte
	Current []byte
}

func (p *Payload) Marshal() []byte {
	out := make([]byte, 0, PayloadSize)
	out = append(out, Magic...)
	out = binary.BigEndian.AppendUint16(out, p.SeedID)
	out = append(out, p.Genesis...)
	return append(out, p.Current...)
}

// ParsePayload decodes a payload, checking magic and exact length.
func ParsePayload(b []byte) (*Payload, error) {
	if len(b) != PayloadSize {
		return nil, fmt.Errorf("%w: seed payload has %d bytes, want %d", interfaces.ErrInvalidInput, len(b), PayloadSize)
	}
	if string(b[:len(Magic)]) != Magic {
		return nil, fmt.Errorf("%w: bad seed payload magic", interfaces.ErrInvalidInput)
	}

	rest := b[len(Magic):]
	return &Payload{
		SeedID:  binary.BigEndian.Uint16(rest[:2]),
		Genesis: rest[2 : 2+EncryptedSeedSize],
		Current: rest[2+EncryptedSeedSize:],
	}, nil
}
