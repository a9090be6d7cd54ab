package contractkey

import (
	"crypto/sha256"
	"fmt"
	"log/slog"

	"github.com/scrtlabs/SecretNetwork-sub003/cryptoutils"
	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
)

// Secrets is the key material the binder needs from the keychain.
type Secrets interface {
	ConsensusStateIKM(gen interfaces.Generation) (interfaces.AESKey, error)
	CallbackSecret(gen interfaces.Generation) (interfaces.AESKey, error)
	AdminProofSecret() (interfaces.AESKey, error)
	ContractKeyProofSecret() (interfaces.AESKey, error)
}

// Binder generates and validates contract keys and the proofs tied to them.
// Contract keys use the genesis state key so they outlive seed rotation.
type Binder struct {
	secrets   Secrets
	overrides *OverridePolicy
	log       *slog.Logger
}

// NewBinder creates a binder. overrides may be nil.
func NewBinder(secrets Secrets, overrides *OverridePolicy, log *slog.Logger) *Binder {
	return &Binder{secrets: secrets, overrides: overrides, log: log}
}

// SetOverrides installs a newer override policy. Older versions are rejected.
func (b *Binder) SetOverrides(p *OverridePolicy) error {
	if b.overrides != nil && p != nil && p.Version() < b.overrides.Version() {
		return fmt.Errorf("%w: override policy version %d is older than %d", interfaces.ErrInvalidConfig, p.Version(), b.overrides.Version())
	}
	b.overrides = p
	return nil
}

func (b *Binder) Overrides() *OverridePolicy {
	return b.overrides
}

func (b *Binder) authenticationID(senderID, codeHash [HashSize]byte) ([HashSize]byte, error) {
	ikm, err := b.secrets.ConsensusStateIKM(interfaces.Genesis)
	if err != nil {
		return [HashSize]byte{}, err
	}
	authKey := cryptoutils.DeriveKey(ikm[:], senderID[:])
	defer cryptoutils.Wipe(authKey[:])
	return cryptoutils.HMACSHA256(authKey[:], senderID[:], codeHash[:]), nil
}

// Generate computes the contract key of code instantiated by signer at height.
func (b *Binder) Generate(signer, code []byte, height uint64) (ContractKey, error) {
	if len(signer) == 0 {
		return ContractKey{}, fmt.Errorf("%w: empty signer", interfaces.ErrInvalidInput)
	}

	senderID := SenderID(signer, height)
	authID, err := b.authenticationID(senderID, CodeHash(code))
	if err != nil {
		return ContractKey{}, err
	}

	var key ContractKey
	copy(key[:HashSize], senderID[:])
	copy(key[HashSize:], authID[:])
	return key, nil
}

// Validate recomputes the authentication id from the embedded sender id and
// code, comparing in constant time. The error is only set when key material
// is unavailable.
func (b *Binder) Validate(key ContractKey, code []byte) (bool, error) {
	return b.validateHash(key, CodeHash(code))
}

func (b *Binder) validateHash(key ContractKey, codeHash [HashSize]byte) (bool, error) {
	expected, err := b.authenticationID(key.SenderID(), codeHash)
	if err != nil {
		return false, err
	}
	return equal(expected, key.AuthenticationID()), nil
}

// ValidateFor validates key for contract. When validation fails, an override
// entry for the exact (contract, sender id, code hash) triple lets the key
// authenticate against the code hash it was issued for instead. The key is
// authenticated either way. Anything else is ErrContractKeyMismatch.
func (b *Binder) ValidateFor(contract string, key ContractKey, code []byte) error {
	codeHash := CodeHash(code)
	ok, err := b.validateHash(key, codeHash)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	keyCodeHash, listed := b.overrides.KeyCodeHash(contract, key.SenderID(), codeHash)
	if !listed {
		return interfaces.ErrContractKeyMismatch
	}
	ok, err = b.validateHash(key, keyCodeHash)
	if err != nil {
		return err
	}
	if !ok {
		b.log.Warn("Contract key rejected despite override entry",
			slog.String("contract", contract))
		return interfaces.ErrContractKeyMismatch
	}
	b.log.Warn("Contract key accepted through override policy",
		slog.String("contract", contract),
		slog.Uint64("policyVersion", b.overrides.Version()))
	return nil
}

// AdminProof authenticates admin as the admin of contract.
func (b *Binder) AdminProof(contract, admin string) ([HashSize]byte, error) {
	secret, err := b.secrets.AdminProofSecret()
	if err != nil {
		return [HashSize]byte{}, err
	}
	return cryptoutils.HMACSHA256(secret[:], []byte(contract), []byte{0}, []byte(admin)), nil
}

// VerifyAdminProof accepts a matching proof, or the all-zero proof of an
// admin enumerated by the override policy.
func (b *Binder) VerifyAdminProof(contract, admin string, proof []byte) (bool, error) {
	if b.overrides.IsHardcodedAdmin(contract, admin, proof) {
		return true, nil
	}
	if len(proof) != HashSize {
		return false, nil
	}
	expected, err := b.AdminProof(contract, admin)
	if err != nil {
		return false, err
	}
	var got [HashSize]byte
	copy(got[:], proof)
	return equal(expected, got), nil
}

// KeyProof proves that key was issued by an enclave for contract. It lets a
// contract migration carry its key forward.
func (b *Binder) KeyProof(contract string, key ContractKey) ([HashSize]byte, error) {
	secret, err := b.secrets.ContractKeyProofSecret()
	if err != nil {
		return [HashSize]byte{}, err
	}
	return cryptoutils.HMACSHA256(secret[:], []byte(contract), key[:]), nil
}

func (b *Binder) VerifyKeyProof(contract string, key ContractKey, proof []byte) (bool, error) {
	if len(proof) != HashSize {
		return false, nil
	}
	expected, err := b.KeyProof(contract, key)
	if err != nil {
		return false, err
	}
	var got [HashSize]byte
	copy(got[:], proof)
	return equal(expected, got), nil
}

// CallbackSignature is SHA-256(callback secret ‖ contract ‖ msg). It marks a
// message one contract sends to another as produced inside the enclave.
func (b *Binder) CallbackSignature(contract, msg []byte) ([HashSize]byte, error) {
	secret, err := b.secrets.CallbackSecret(interfaces.Current)
	if err != nil {
		return [HashSize]byte{}, err
	}
	h := sha256.New()
	h.Write(secret[:])
	h.Write(contract)
	h.Write(msg)
	var sig [HashSize]byte
	copy(sig[:], h.Sum(nil))
	return sig, nil
}

// VerifyCallbackSignature checks sig in constant time.
func (b *Binder) VerifyCallbackSignature(contract, msg, sig []byte) (bool, error) {
	if len(sig) != HashSize {
		return false, nil
	}
	expected, err := b.CallbackSignature(contract, msg)
	if err != nil {
		return false, err
	}
	var got [HashSize]byte
	copy(got[:], sig)
	return equal(expected, got), nil
}
