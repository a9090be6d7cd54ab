package contractkey

import (
	"bytes"
	"encoding/hex"
	"io"
	"log/slog"
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
	"github.com/scrtlabs/SecretNetwork-sub003/keychain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedOf(b byte) interfaces.Seed {
	var s interfaces.Seed
	copy(s[:], bytes.Repeat([]byte{b}, interfaces.SeedSize))
	return s
}

func newBinder(t *testing.T, genesis, current byte) *Binder {
	t.Helper()
	k, err := keychain.NewStatic(seedOf(genesis), seedOf(current), 1, testLogger())
	require.NoError(t, err)
	return NewBinder(k, nil, testLogger())
}

func TestGenerateValidate_Property(t *testing.T) {
	b := newBinder(t, 1, 2)
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		signer := make([]byte, 1+rng.Intn(40))
		rng.Read(signer)
		code := make([]byte, rng.Intn(200))
		rng.Read(code)
		height := rng.Uint64()

		key, err := b.Generate(signer, code, height)
		require.NoError(t, err)

		ok, err := b.Validate(key, code)
		require.NoError(t, err)
		require.True(t, ok)

		other := append(bytes.Clone(code), byte(rng.Intn(256)))
		ok, err = b.Validate(key, other)
		require.NoError(t, err)
		require.False(t, ok, "different code must not validate")

		tampered := key
		tampered[rng.Intn(HashSize)] ^= 0x80
		ok, err = b.Validate(tampered, code)
		require.NoError(t, err)
		require.False(t, ok, "altered sender id must not validate")
	}
}

func TestContractKey_Reproducible(t *testing.T) {
	a := newBinder(t, 1, 2)
	sameGenesis := newBinder(t, 1, 9)
	otherNetwork := newBinder(t, 3, 3)

	key, err := a.Generate([]byte("secret1creator"), []byte("code"), 42)
	require.NoError(t, err)

	ok, err := sameGenesis.Validate(key, []byte("code"))
	require.NoError(t, err)
	assert.True(t, ok, "rotation of the current seed keeps contract keys valid")

	ok, err = otherNetwork.Validate(key, []byte("code"))
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, SenderID([]byte("secret1creator"), 42), key.SenderID())
	assert.NotEqual(t, SenderID([]byte("secret1creator"), 43), key.SenderID())
}

func TestBinder_NotInitialized(t *testing.T) {
	b := NewBinder(keychain.New(nil, testLogger()), nil, testLogger())
	_, err := b.Generate([]byte("s"), []byte("c"), 1)
	assert.ErrorIs(t, err, interfaces.ErrNotInitialized)
	_, err = b.Validate(ContractKey{}, []byte("c"))
	assert.ErrorIs(t, err, interfaces.ErrNotInitialized)
}

func TestParseContractKey(t *testing.T) {
	_, err := ParseContractKey(make([]byte, KeySize-1))
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput)
	k, err := ParseContractKey(bytes.Repeat([]byte{7}, KeySize))
	require.NoError(t, err)
	assert.Equal(t, byte(7), k.AuthenticationID()[0])
}

func signedPolicy(t *testing.T, doc PolicyDocument) ([]byte, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	raw, err := SignPolicy(doc, key)
	require.NoError(t, err)
	return raw, crypto.PubkeyToAddress(key.PublicKey)
}

func TestOverridePolicy(t *testing.T) {
	b := newBinder(t, 1, 2)
	issuedCode := []byte("legacy code v1")
	legacyCode := []byte("legacy code")
	legacyHash := CodeHash(legacyCode)
	issuedHash := CodeHash(issuedCode)

	legacyKey, err := b.Generate([]byte("creator"), issuedCode, 1)
	require.NoError(t, err)
	sender := legacyKey.SenderID()

	doc := PolicyDocument{
		Version:  3,
		IssuedAt: 1700000000,
		Admins:   []AdminEntry{{Contract: "secret1legacy", Admin: "secret1admin"}},
		CodeHashes: []CodeHashEntry{{
			Contract:    "secret1legacy",
			CodeHash:    hex.EncodeToString(legacyHash[:]),
			SenderID:    hex.EncodeToString(sender[:]),
			KeyCodeHash: hex.EncodeToString(issuedHash[:]),
		}},
	}
	raw, signer := signedPolicy(t, doc)

	t.Run("unknown signer", func(t *testing.T) {
		_, err := LoadPolicy(raw, []common.Address{{0x01}})
		assert.ErrorIs(t, err, interfaces.ErrInvalidConfig)
	})

	t.Run("tampered body", func(t *testing.T) {
		tampered := bytes.Replace(raw, []byte("secret1admin"), []byte("secret1evil!"), 1)
		_, err := LoadPolicy(tampered, []common.Address{signer})
		assert.ErrorIs(t, err, interfaces.ErrInvalidConfig)
	})

	t.Run("entry without sender id", func(t *testing.T) {
		incomplete, incompleteSigner := signedPolicy(t, PolicyDocument{
			CodeHashes: []CodeHashEntry{{Contract: "secret1legacy", CodeHash: hex.EncodeToString(legacyHash[:])}},
		})
		_, err := LoadPolicy(incomplete, []common.Address{incompleteSigner})
		assert.ErrorIs(t, err, interfaces.ErrInvalidConfig)
	})

	policy, err := LoadPolicy(raw, []common.Address{signer})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), policy.Version())
	assert.Equal(t, signer, policy.Signer())

	zero := make([]byte, HashSize)
	assert.True(t, policy.IsHardcodedAdmin("secret1legacy", "SECRET1ADMIN", zero))
	assert.False(t, policy.IsHardcodedAdmin("secret1legacy", "secret1admin", bytes.Repeat([]byte{1}, HashSize)))
	assert.False(t, policy.IsHardcodedAdmin("secret1other", "secret1admin", zero))

	assert.ErrorIs(t, b.ValidateFor("secret1legacy", legacyKey, legacyCode), interfaces.ErrContractKeyMismatch)

	require.NoError(t, b.SetOverrides(policy))
	assert.NoError(t, b.ValidateFor("secret1legacy", legacyKey, legacyCode))
	assert.NoError(t, b.ValidateFor("secret1legacy", legacyKey, issuedCode), "the issued code still validates")
	assert.ErrorIs(t, b.ValidateFor("secret1another", legacyKey, legacyCode), interfaces.ErrContractKeyMismatch, "contract is exact")
	assert.ErrorIs(t, b.ValidateFor("secret1legacy", legacyKey, []byte("patched")), interfaces.ErrContractKeyMismatch, "code hash is exact")

	t.Run("listed pair still authenticates the key", func(t *testing.T) {
		assert.ErrorIs(t, b.ValidateFor("secret1legacy", ContractKey{}, legacyCode), interfaces.ErrContractKeyMismatch)

		foreign, err := b.Generate([]byte("someone else"), issuedCode, 1)
		require.NoError(t, err)
		assert.ErrorIs(t, b.ValidateFor("secret1legacy", foreign, legacyCode), interfaces.ErrContractKeyMismatch)

		forged := legacyKey
		forged[KeySize-1] ^= 0x01
		assert.ErrorIs(t, b.ValidateFor("secret1legacy", forged, legacyCode), interfaces.ErrContractKeyMismatch)

		otherNetwork := newBinder(t, 3, 3)
		require.NoError(t, otherNetwork.SetOverrides(policy))
		assert.ErrorIs(t, otherNetwork.ValidateFor("secret1legacy", legacyKey, legacyCode), interfaces.ErrContractKeyMismatch)
	})

	older, olderSigner := signedPolicy(t, PolicyDocument{Version: 2})
	olderPolicy, err := LoadPolicy(older, []common.Address{olderSigner})
	require.NoError(t, err)
	assert.ErrorIs(t, b.SetOverrides(olderPolicy), interfaces.ErrInvalidConfig)

	var nilPolicy *OverridePolicy
	_, listed := nilPolicy.KeyCodeHash("secret1legacy", sender, legacyHash)
	assert.False(t, listed)
	assert.False(t, nilPolicy.IsHardcodedAdmin("secret1legacy", "secret1admin", zero))
}

func TestProofs(t *testing.T) {
	b := newBinder(t, 1, 2)

	proof, err := b.AdminProof("secret1c", "secret1a")
	require.NoError(t, err)
	ok, err := b.VerifyAdminProof("secret1c", "secret1a", proof[:])
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = b.VerifyAdminProof("secret1c", "secret1b", proof[:])
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = b.VerifyAdminProof("secret1c", "secret1a", make([]byte, HashSize))
	require.NoError(t, err)
	assert.False(t, ok, "zero proof needs an override entry")

	key, err := b.Generate([]byte("creator"), []byte("code"), 5)
	require.NoError(t, err)
	kp, err := b.KeyProof("secret1c", key)
	require.NoError(t, err)
	ok, err = b.VerifyKeyProof("secret1c", key, kp[:])
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = b.VerifyKeyProof("secret1d", key, kp[:])
	require.NoError(t, err)
	assert.False(t, ok)

	sig, err := b.CallbackSignature([]byte("secret1c"), []byte(`{"ping":{}}`))
	require.NoError(t, err)
	ok, err = b.VerifyCallbackSignature([]byte("secret1c"), []byte(`{"ping":{}}`), sig[:])
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = b.VerifyCallbackSignature([]byte("secret1c"), []byte(`{"pong":{}}`), sig[:])
	require.NoError(t, err)
	assert.False(t, ok)
}
