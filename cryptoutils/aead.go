package cryptoutils

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/oasisprotocol/deoxysii"
)

// NonceSize is the Deoxys-II-256-128 nonce size.
const NonceSize = deoxysii.NonceSize

// TagSize is the authentication tag overhead of every ciphertext.
const TagSize = deoxysii.TagSize

// ErrAuthentication is returned when a ciphertext does not authenticate.
var ErrAuthentication = errors.New("message authentication failed")

// SealWithNonce encrypts plaintext under key with an explicit nonce.
// Deoxys-II is nonce-misuse resistant: a repeated (key, nonce) pair only
// reveals equality of plaintexts.
func SealWithNonce(key [KeySize]byte, nonce [NonceSize]byte, plaintext, ad []byte) ([]byte, error) {
	aead, err := deoxysii.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return aead.Seal(nil, nonce[:], plaintext, ad), nil
}

// OpenWithNonce decrypts a ciphertext produced by SealWithNonce.
func OpenWithNonce(key [KeySize]byte, nonce [NonceSize]byte, ciphertext, ad []byte) ([]byte, error) {
	aead, err := deoxysii.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce[:], ciphertext, ad)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}

// Seal encrypts plaintext with a random nonce and returns nonce ‖ ciphertext.
func Seal(key [KeySize]byte, plaintext, ad []byte) ([]byte, error) {
	var nonce [NonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ct, err := SealWithNonce(key, nonce, plaintext, ad)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, NonceSize+len(ct))
	out = append(out, nonce[:]...)
	return append(out, ct...), nil
}

// Open decrypts the output of Seal.
func Open(key [KeySize]byte, sealed, ad []byte) ([]byte, error) {
	if len(sealed) < NonceSize+TagSize {
		return nil, ErrAuthentication
	}

	var nonce [NonceSize]byte
	copy(nonce[:], sealed[:NonceSize])
	return OpenWithNonce(key, nonce, sealed[NonceSize:], ad)
}
