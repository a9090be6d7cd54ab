package cryptoutils

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

var (
	// ErrInvalidKeySize is returned when key bytes have the wrong length.
	ErrInvalidKeySize = errors.New("invalid key size")

	// ErrWeakPublicKey is returned when a Diffie-Hellman exchange yields the all-zero secret.
	ErrWeakPublicKey = errors.New("low order public key")
)

// KeyPair is an X25519 private scalar and its public point.
type KeyPair struct {
	Private [32]byte
	Public  [32]byte
}

// GenerateKeyPair creates a fresh random key pair.
func GenerateKeyPair() (KeyPair, error) {
	var secret [32]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return KeyPair{}, fmt.Errorf("failed to read randomness: %w", err)
	}
	defer Wipe(secret[:])
	return KeyPairFromSecret(secret)
}

// KeyPairFromSecret deterministically builds a key pair from 32 secret bytes.
func KeyPairFromSecret(secret [32]byte) (KeyPair, error) {
	pub, err := curve25519.X25519(secret[:], curve25519.Basepoint)
	if err != nil {
		return KeyPair{}, fmt.Errorf("failed to compute public key: %w", err)
	}

	kp := KeyPair{Private: secret}
	copy(kp.Public[:], pub)
	return kp, nil
}

// SharedSecret computes the X25519 Diffie-Hellman secret between the pair's
// private key and peer.
func (kp KeyPair) SharedSecret(peer []byte) ([32]byte, error) {
	var out [32]byte
	if len(peer) != 32 {
		return out, ErrInvalidKeySize
	}

	shared, err := curve25519.X25519(kp.Private[:], peer)
	if err != nil {
		return out, ErrWeakPublicKey
	}
	copy(out[:], shared)
	return out, nil
}

// IsZero reports whether the pair is unset.
func (kp KeyPair) IsZero() bool {
	var zero [32]byte
	return subtle.ConstantTimeCompare(kp.Private[:], zero[:]) == 1
}

// PublicHex returns the hex encoded public key.
func (kp KeyPair) PublicHex() string {
	return hex.EncodeToString(kp.Public[:])
}
