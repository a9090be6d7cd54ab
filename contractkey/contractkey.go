package contractkey

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
)

const (
	HashSize = sha256.Size
	// KeySize is sender id ‖ authentication id.
	KeySize = 2 * HashSize
)

// ContractKey identifies and authenticates one (signer, code, height) triple.
type ContractKey [KeySize]byte

// ParseContractKey copies exactly KeySize bytes.
func ParseContractKey(b []byte) (ContractKey, error) {
	var k ContractKey
	if len(b) != KeySize {
		return k, fmt.Errorf("%w: contract key must be %d bytes, got %d", interfaces.ErrInvalidInput, KeySize, len(b))
	}
	copy(k[:], b)
	return k, nil
}

func (k ContractKey) SenderID() [HashSize]byte {
	var id [HashSize]byte
	copy(id[:], k[:HashSize])
	return id
}

func (k ContractKey) AuthenticationID() [HashSize]byte {
	var id [HashSize]byte
	copy(id[:], k[HashSize:])
	return id
}

func (k ContractKey) String() string {
	return hex.EncodeToString(k[:])
}

// CodeHash is the SHA-256 of the contract code.
func CodeHash(code []byte) [HashSize]byte {
	return sha256.Sum256(code)
}

// SenderID is SHA-256(signer ‖ height as big-endian u64).
func SenderID(signer []byte, height uint64) [HashSize]byte {
	h := sha256.New()
	h.Write(signer)
	h.Write(binary.BigEndian.AppendUint64(nil, height))
	var id [HashSize]byte
	copy(id[:], h.Sum(nil))
	return id
}

func equal(a, b [HashSize]byte) bool {
	return hmac.Equal(a[:], b[:])
}
