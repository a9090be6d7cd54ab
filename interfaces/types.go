// Package interfaces defines the core interfaces and types shared by the
// enclave components. It provides the contract between components without
// implementation details.
package interfaces

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// SeedSize is the size of the network-wide master secret.
	SeedSize = 32
	// PublicKeySize is the size of an X25519 public key.
	PublicKeySize = 32
	// PrivateKeySize is the size of an X25519 private scalar.
	PrivateKeySize = 32
	// SymmetricKeySize is the size of every derived symmetric key.
	SymmetricKeySize = 32
)

// Seed is the 32-byte root of all derived key material.
type Seed [SeedSize]byte

// IsZero reports whether the seed is unset.
func (s Seed) IsZero() bool {
	return s == Seed{}
}

// AESKey is a 32-byte symmetric key derived from a Seed or another AESKey.
type AESKey [SymmetricKeySize]byte

// IsZero reports whether the key is unset.
func (k AESKey) IsZero() bool {
	return k == AESKey{}
}

// PublicKey is an X25519 public point.
type PublicKey [PublicKeySize]byte

// NewPublicKeyFromBytes creates a public key from a byte slice of exactly 32 bytes.
func NewPublicKeyFromBytes(source []byte) (PublicKey, error) {
	if len(source) != PublicKeySize {
		return PublicKey{}, fmt.Errorf("%w: public key must be %d bytes, got %d", ErrInvalidInput, PublicKeySize, len(source))
	}

	var pk PublicKey
	copy(pk[:], source)
	return pk, nil
}

// NewPublicKeyFromHex parses a hex encoded public key, with or without a 0x prefix.
func NewPublicKeyFromHex(source string) (PublicKey, error) {
	clean := strings.TrimPrefix(source, "0x")
	raw, err := hex.DecodeString(clean)
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: invalid hex format: %v", ErrInvalidInput, err)
	}
	return NewPublicKeyFromBytes(raw)
}

// String returns hex representation.
func (pk PublicKey) String() string {
	return hex.EncodeToString(pk[:])
}

// Bytes returns the raw 32 bytes.
func (pk PublicKey) Bytes() []byte {
	return pk[:]
}

// IsZero reports whether pk is unset.
func (pk PublicKey) IsZero() bool {
	return pk == PublicKey{}
}

// Generation selects between the genesis and the current seed lineage.
type Generation int

const (
	// Genesis is the seed the network was created with.
	Genesis Generation = iota
	// Current is the seed produced by the latest rotation.
	Current
)

// String returns generation name.
func (g Generation) String() string {
	switch g {
	case Genesis:
		return "genesis"
	case Current:
		return "current"
	default:
		return "unknown"
	}
}

// ParseGeneration parses a generation name.
func ParseGeneration(s string) (Generation, error) {
	switch strings.ToLower(s) {
	case "genesis":
		return Genesis, nil
	case "current", "":
		return Current, nil
	default:
		return 0, errors.New("unknown seed generation " + s)
	}
}

// Generations holds one value per seed generation.
type Generations[T any] struct {
	Genesis T
	Current T
}

// Get returns the value for the requested generation.
func (g Generations[T]) Get(gen Generation) T {
	if gen == Genesis {
		return g.Genesis
	}
	return g.Current
}
