package contractkey

import (
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
)

// AdminEntry makes Admin the admin of Contract without a proof.
type AdminEntry struct {
	Contract string `json:"contract"`
	Admin    string `json:"admin"`
}

// CodeHashEntry lets Contract run code with CodeHash under a contract key
// that was issued to SenderID for code with KeyCodeHash. The key must still
// authenticate against KeyCodeHash.
type CodeHashEntry struct {
	Contract    string `json:"contract"`
	CodeHash    string `json:"code_hash"`
	SenderID    string `json:"sender_id"`
	KeyCodeHash string `json:"key_code_hash"`
}

type codeHashOverride struct {
	codeHash    [HashSize]byte
	senderID    [HashSize]byte
	keyCodeHash [HashSize]byte
}

// PolicyDocument is the signed body of an override policy.
type PolicyDocument struct {
	Version    uint64          `json:"version"`
	IssuedAt   int64           `json:"issued_at"`
	Admins     []AdminEntry    `json:"admins"`
	CodeHashes []CodeHashEntry `json:"code_hashes"`
}

// SignedPolicy is the wire format. The signature covers keccak256 of the
// exact policy bytes.
type SignedPolicy struct {
	Policy    json.RawMessage `json:"policy"`
	Signature hexutil.Bytes   `json:"signature"`
}

// OverridePolicy is a verified, immutable override table. A nil policy
// overrides nothing.
type OverridePolicy struct {
	version    uint64
	signer     common.Address
	admins     map[string]string
	codeHashes map[string][]codeHashOverride
}

// SignPolicy serializes doc and signs it with a secp256k1 key.
func SignPolicy(doc PolicyDocument, key *ecdsa.PrivateKey) ([]byte, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(crypto.Keccak256(body), key)
	if err != nil {
		return nil, fmt.Errorf("signing override policy: %w", err)
	}
	return json.Marshal(SignedPolicy{Policy: body, Signature: sig})
}

// LoadPolicy verifies raw against the allowed signer addresses and builds
// the override table.
func LoadPolicy(raw []byte, allowedSigners []common.Address) (*OverridePolicy, error) {
	var signed SignedPolicy
	if err := json.Unmarshal(raw, &signed); err != nil {
		return nil, fmt.Errorf("%w: override policy: %v", interfaces.ErrInvalidConfig, err)
	}
	if len(signed.Signature) != crypto.SignatureLength {
		return nil, fmt.Errorf("%w: override policy signature has %d bytes", interfaces.ErrInvalidConfig, len(signed.Signature))
	}

	pub, err := crypto.SigToPub(crypto.Keccak256(signed.Policy), signed.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: override policy signature: %v", interfaces.ErrInvalidConfig, err)
	}
	signer := crypto.PubkeyToAddress(*pub)
	if !slices.Contains(allowedSigners, signer) {
		return nil, fmt.Errorf("%w: override policy signed by unknown address %s", interfaces.ErrInvalidConfig, signer.Hex())
	}

	var doc PolicyDocument
	if err := json.Unmarshal(signed.Policy, &doc); err != nil {
		return nil, fmt.Errorf("%w: override policy body: %v", interfaces.ErrInvalidConfig, err)
	}

	p := &OverridePolicy{
		version:    doc.Version,
		signer:     signer,
		admins:     make(map[string]string, len(doc.Admins)),
		codeHashes: make(map[string][]codeHashOverride, len(doc.CodeHashes)),
	}
	for _, a := range doc.Admins {
		p.admins[normalize(a.Contract)] = normalize(a.Admin)
	}
	for _, c := range doc.CodeHashes {
		var o codeHashOverride
		for _, f := range []struct {
			name  string
			value string
			out   *[HashSize]byte
		}{
			{"code_hash", c.CodeHash, &o.codeHash},
			{"sender_id", c.SenderID, &o.senderID},
			{"key_code_hash", c.KeyCodeHash, &o.keyCodeHash},
		} {
			if err := decodeHash(f.value, f.out); err != nil {
				return nil, fmt.Errorf("%w: bad %s for %s: %v", interfaces.ErrInvalidConfig, f.name, c.Contract, err)
			}
		}
		contract := normalize(c.Contract)
		p.codeHashes[contract] = append(p.codeHashes[contract], o)
	}
	return p, nil
}

func decodeHash(s string, out *[HashSize]byte) error {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return err
	}
	if len(raw) != HashSize {
		return fmt.Errorf("need %d bytes, got %d", HashSize, len(raw))
	}
	copy(out[:], raw)
	return nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (p *OverridePolicy) Version() uint64 {
	if p == nil {
		return 0
	}
	return p.version
}

func (p *OverridePolicy) Signer() common.Address {
	if p == nil {
		return common.Address{}
	}
	return p.signer
}

// IsHardcodedAdmin reports whether admin is the enumerated admin of contract.
// The proof must be all zeros: a real proof never takes this path.
func (p *OverridePolicy) IsHardcodedAdmin(contract, admin string, proof []byte) bool {
	if p == nil || len(proof) != HashSize || !isZero(proof) {
		return false
	}
	want, ok := p.admins[normalize(contract)]
	return ok && want == normalize(admin)
}

// KeyCodeHash returns the code hash a key of senderID must authenticate
// against when contract runs code with codeHash. ok is false unless the
// exact (contract, sender, code hash) triple is enumerated.
func (p *OverridePolicy) KeyCodeHash(contract string, senderID, codeHash [HashSize]byte) (keyCodeHash [HashSize]byte, ok bool) {
	if p == nil {
		return keyCodeHash, false
	}
	for _, o := range p.codeHashes[normalize(contract)] {
		if o.codeHash == codeHash && o.senderID == senderID {
			return o.keyCodeHash, true
		}
	}
	return keyCodeHash, false
}

func isZero(b []byte) bool {
	var acc byte
	for _, v := range b {
		acc |= v
	}
	return acc == 0
}
