package cryptoutils

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	sealEnvelopeVersion = 1
	sealKDF             = "hkdf-sha256"
)

var (
	// ErrEnvelopeInvalid is returned for envelopes with an unknown layout.
	ErrEnvelopeInvalid = errors.New("sealed envelope is invalid")
)

// SealEnvelope is the on-disk representation of a sealed secret.
type SealEnvelope struct {
	Version    uint32 `json:"version"`
	KDF        string `json:"kdf"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// DeriveSealingKey derives the platform sealing key from a platform secret
// and the identity of the running code. Data sealed under one identity
// cannot be unsealed under another.
func DeriveSealingKey(platformSecret []byte, identity []byte) [KeySize]byte {
	salt := append([]byte("enclave-seal-v1-"), identity...)

	var out [KeySize]byte
	key := argon2.IDKey(platformSecret, salt, 1, 64*1024, 4, KeySize)
	copy(out[:], key)
	Wipe(key)
	return out
}

// SealBytes encrypts plaintext for storage under name. The name is bound as
// associated data so blobs cannot be swapped between names.
func SealBytes(sealingKey [KeySize]byte, name string, plaintext []byte) ([]byte, error) {
	objKey := DeriveKey(sealingKey[:], []byte("seal/"+name))
	defer Wipe(objKey[:])

	aead, err := chacha20poly1305.NewX(objKey[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	env := SealEnvelope{
		Version:    sealEnvelopeVersion,
		KDF:        sealKDF,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, []byte(name)),
	}
	return json.Marshal(env)
}

// OpenBytes reverses SealBytes.
func OpenBytes(sealingKey [KeySize]byte, name string, raw []byte) ([]byte, error) {
	var env SealEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, ErrEnvelopeInvalid
	}
	if env.Version != sealEnvelopeVersion || env.KDF != sealKDF || len(env.Nonce) != chacha20poly1305.NonceSizeX {
		return nil, ErrEnvelopeInvalid
	}

	objKey := DeriveKey(sealingKey[:], []byte("seal/"+name))
	defer Wipe(objKey[:])

	aead, err := chacha20poly1305.NewX(objKey[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, []byte(name))
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}
