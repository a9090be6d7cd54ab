package seedexchange

import (
	"crypto/rand"
	"fmt"

	"github.com/scrtlabs/SecretNetwork-sub003/cryptoutils"
	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
)

// EncryptedSeedSize is the wire size of one encrypted seed: nonce ‖ ciphertext ‖ tag.
const EncryptedSeedSize = cryptoutils.NonceSize + interfaces.SeedSize + cryptoutils.TagSize

var seedExchangeLabel = []byte("seed-exchange")

// EncryptSeed encrypts seed under a key derived from the Diffie-Hellman
// secret, with the recipient's public key as associated data.
func EncryptSeed(shared [32]byte, seed interfaces.Seed, recipient interfaces.PublicKey) ([]byte, error) {
	key := cryptoutils.DeriveKey(shared[:], seedExchangeLabel)
	defer cryptoutils.Wipe(key[:])

	var nonce [cryptoutils.NonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ct, err := cryptoutils.SealWithNonce(key, nonce, seed[:], recipient[:])
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, EncryptedSeedSize)
	out = append(out, nonce[:]...)
	return append(out, ct...), nil
}

// DecryptSeed reverses EncryptSeed. Anything but an authentic ciphertext of
// exactly one seed is ErrDecryption.
func DecryptSeed(shared [32]byte, ciphertext []byte, recipient interfaces.PublicKey) (interfaces.Seed, error) {
	var seed interfaces.Seed
	if len(ciphertext) != EncryptedSeedSize {
		return seed, interfaces.ErrDecryption
	}

	key := cryptoutils.DeriveKey(shared[:], seedExchangeLabel)
	defer cryptoutils.Wipe(key[:])

	plaintext, err := cryptoutils.Open(key, ciphertext, recipient[:])
	if err != nil {
		return seed, interfaces.ErrDecryption
	}
	defer cryptoutils.Wipe(plaintext)

	if len(plaintext) != interfaces.SeedSize {
		return seed, interfaces.ErrDecryption
	}
	copy(seed[:], plaintext)
	return seed, nil
}
