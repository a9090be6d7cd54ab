package interfaces

import (
	"context"

	"github.com/scrtlabs/SecretNetwork-sub003/cryptoutils"
)

// KeyPair is an X25519 key pair derived from the seed or generated fresh.
type KeyPair = cryptoutils.KeyPair

// KeySource hands out derived key material. Every method fails with
// ErrNotInitialized until the seed has been loaded.
type KeySource interface {
	// SeedExchangeKeyPair returns the key pair used to encrypt seeds for joining nodes.
	SeedExchangeKeyPair(gen Generation) (KeyPair, error)

	// IOKeyPair returns the key pair used for contract call input and output encryption.
	IOKeyPair(gen Generation) (KeyPair, error)

	// ConsensusStateIKM returns the input key material for contract state and contract keys.
	ConsensusStateIKM(gen Generation) (AESKey, error)
}

// SeedSource exposes the raw seed. Only the seed exchange provider consumes it.
type SeedSource interface {
	ExportSeed(gen Generation) (Seed, error)
	SeedID() uint16
}

// SeedSink installs seeds received from a provider. Both generations are
// sealed before they become visible, or neither is.
type SeedSink interface {
	SetSeeds(ctx context.Context, genesis, current Seed, seedID uint16) error
}
