package secretmsg

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/scrtlabs/SecretNetwork-sub003/cryptoutils"
	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
)

const (
	NonceSize  = 32
	HeaderSize = NonceSize + interfaces.PublicKeySize
	// MinSize is a header plus an empty authenticated ciphertext.
	MinSize = HeaderSize + cryptoutils.TagSize
)

// Direction separates requests from replies under the same key.
type Direction byte

const (
	Request  Direction = 0x01
	Response Direction = 0x02
)

// SecretMessage is the encrypted envelope of one contract call input or output.
type SecretMessage struct {
	Nonce      [NonceSize]byte
	PublicKey  interfaces.PublicKey
	Ciphertext []byte
}

// Parse decodes nonce ‖ caller public key ‖ ciphertext. Short input is
// ErrDecryption and is never handed to the cipher.
func Parse(b []byte) (*SecretMessage, error) {
	if len(b) < MinSize {
		return nil, interfaces.ErrDecryption
	}
	msg := &SecretMessage{Ciphertext: append([]byte(nil), b[HeaderSize:]...)}
	copy(msg.Nonce[:], b[:NonceSize])
	copy(msg.PublicKey[:], b[NonceSize:HeaderSize])
	return msg, nil
}

func (m *SecretMessage) Marshal() []byte {
	out := make([]byte, 0, HeaderSize+len(m.Ciphertext))
	out = append(out, m.Nonce[:]...)
	out = append(out, m.PublicKey[:]...)
	return append(out, m.Ciphertext...)
}

// Base64 is the encoding contracts and clients exchange.
func (m *SecretMessage) Base64() string {
	return base64.StdEncoding.EncodeToString(m.Marshal())
}

// NewNonce returns a random message nonce.
func NewNonce() ([NonceSize]byte, error) {
	var n [NonceSize]byte
	if _, err := rand.Read(n[:]); err != nil {
		return n, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return n, nil
}

// DeriveMessageKey mixes the Diffie-Hellman secret with the message nonce.
// The raw DH output is never used as a key.
func DeriveMessageKey(shared [32]byte, nonce [NonceSize]byte) [cryptoutils.KeySize]byte {
	return cryptoutils.DeriveKey(shared[:], nonce[:])
}

func aeadNonce(dir Direction) [cryptoutils.NonceSize]byte {
	var n [cryptoutils.NonceSize]byte
	n[0] = byte(dir)
	return n
}

// SealWithKey encrypts plaintext for dir. The direction is bound both as
// associated data and in the cipher nonce.
func SealWithKey(key [cryptoutils.KeySize]byte, dir Direction, plaintext []byte) ([]byte, error) {
	return cryptoutils.SealWithNonce(key, aeadNonce(dir), plaintext, []byte{byte(dir)})
}

// OpenWithKey reverses SealWithKey. Every failure is ErrDecryption.
func OpenWithKey(key [cryptoutils.KeySize]byte, dir Direction, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < cryptoutils.TagSize {
		return nil, interfaces.ErrDecryption
	}
	plaintext, err := cryptoutils.OpenWithNonce(key, aeadNonce(dir), ciphertext, []byte{byte(dir)})
	if err != nil {
		return nil, interfaces.ErrDecryption
	}
	return plaintext, nil
}
