package cryptoutils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/hkdf"
)

// KDFSalt is the versioned domain separation salt for every derivation in
// the key hierarchy. Changing it changes every derived key.
var KDFSalt = []byte("enclave-kdf-v1")

// KeySize is the size of every derived key.
const KeySize = 32

// DeriveKey derives a 32-byte key from ikm and a context label using
// HKDF-SHA256 with the versioned salt. The result is a pure function of
// (ikm, label).
func DeriveKey(ikm []byte, label []byte) [KeySize]byte {
	var out [KeySize]byte
	r := hkdf.New(sha256.New, ikm, KDFSalt, label)
	if _, err := io.ReadFull(r, out[:]); err != nil {
		// hkdf only fails past 255 blocks of output
		panic("hkdf: " + err.Error())
	}
	return out
}

// DeriveOrderLabel encodes a numeric derivation order as the label used
// for seed-derived keys.
func DeriveOrderLabel(order uint32) []byte {
	var label [4]byte
	binary.BigEndian.PutUint32(label[:], order)
	return label[:]
}

// HMACSHA256 computes HMAC-SHA256(key, parts...).
func HMACSHA256(key []byte, parts ...[]byte) [32]byte {
	mac := hmac.New(sha256.New, key)
	for _, p := range parts {
		mac.Write(p)
	}
	var out [32]byte
	copy(out[:], mac.Sum(nil))
	return out
}

// Wipe overwrites b with zeros.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
