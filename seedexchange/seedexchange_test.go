package seedexchange

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"io"
	"log/slog"
	"testing"

	"github.com/scrtlabs/SecretNetwork-sub003/attestation"
	"github.com/scrtlabs/SecretNetwork-sub003/cryptoutils"
	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
	"github.com/scrtlabs/SecretNetwork-sub003/keychain"
	"github.com/scrtlabs/SecretNetwork-sub003/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sequentialSeed() interfaces.Seed {
	var s interfaces.Seed
	for i := range s {
		s[i] = byte(i + 1)
	}
	return s
}

func TestSeedExchange_EndToEndScenario(t *testing.T) {
	seed := sequentialSeed()

	provider, err := cryptoutils.GenerateKeyPair()
	require.NoError(t, err)
	requester, err := cryptoutils.GenerateKeyPair()
	require.NoError(t, err)
	requesterPub := interfaces.PublicKey(requester.Public)

	z, err := provider.SharedSecret(requester.Public[:])
	require.NoError(t, err)
	zPrime, err := requester.SharedSecret(provider.Public[:])
	require.NoError(t, err)
	require.Equal(t, z, zPrime)

	c, err := EncryptSeed(z, seed, requesterPub)
	require.NoError(t, err)
	require.Len(t, c, EncryptedSeedSize)

	got, err := DecryptSeed(zPrime, c, requesterPub)
	require.NoError(t, err)
	assert.Equal(t, seed, got)

	stranger, err := cryptoutils.GenerateKeyPair()
	require.NoError(t, err)
	wrongShared, err := stranger.SharedSecret(provider.Public[:])
	require.NoError(t, err)

	tests := []struct {
		name   string
		shared [32]byte
		ct     []byte
		ad     interfaces.PublicKey
	}{
		{"wrong recipient key", wrongShared, c, interfaces.PublicKey(stranger.Public)},
		{"wrong associated data", zPrime, c, interfaces.PublicKey(stranger.Public)},
		{"truncated ciphertext", zPrime, c[:len(c)-1], requesterPub},
		{"empty ciphertext", zPrime, nil, requesterPub},
		{"flipped byte", zPrime, flip(c, 20), requesterPub},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := DecryptSeed(tt.shared, tt.ct, tt.ad)
			assert.ErrorIs(t, err, interfaces.ErrDecryption)
			assert.True(t, out.IsZero())
		})
	}
}

func flip(b []byte, i int) []byte {
	out := bytes.Clone(b)
	out[i] ^= 0x01
	return out
}

func TestPayload(t *testing.T) {
	p := &Payload{SeedID: 0x0102, Genesis: bytes.Repeat([]byte{1}, EncryptedSeedSize), Current: bytes.Repeat([]byte{2}, EncryptedSeedSize)}
	raw := p.Marshal()
	require.Len(t, raw, PayloadSize)
	assert.Equal(t, Magic, string(raw[:len(Magic)]))

	parsed, err := ParsePayload(raw)
	require.NoError(t, err)
	assert.Equal(t, p, parsed)

	_, err = ParsePayload(raw[:len(raw)-1])
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput)

	bad := bytes.Clone(raw)
	bad[0] = 'S'
	_, err = ParsePayload(bad)
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput)
}

type fixture struct {
	attester *attestation.SoftwareAttester
	verifier *attestation.Verifier
	source   *keychain.Keychain
	network  interfaces.PublicKey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	_, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	claims := attestation.SoftwareClaims{Measurement: []byte{0xaa}, Signer: []byte{0x5a}, SVN: 1}
	attester := attestation.NewSoftwareAttester(key, claims)

	verifier, err := attestation.NewVerifier(attestation.Policy{
		SigningMethod:       attestation.SigningMethodMeasurement,
		AllowedMeasurements: []attestation.HexBytes{{0xaa}},
		AllowedSigners:      []attestation.HexBytes{{0x5a}},
	}, testLogger(), attester)
	require.NoError(t, err)

	var genesis, current interfaces.Seed
	copy(genesis[:], bytes.Repeat([]byte{0x11}, 32))
	copy(current[:], bytes.Repeat([]byte{0x22}, 32))
	source, err := keychain.NewStatic(genesis, current, 4, testLogger())
	require.NoError(t, err)

	exchange, err := source.SeedExchangeKeyPair(interfaces.Genesis)
	require.NoError(t, err)

	return &fixture{attester: attester, verifier: verifier, source: source, network: interfaces.PublicKey(exchange.Public)}
}

func newJoiningKeychain(t *testing.T) *keychain.Keychain {
	t.Helper()
	backend, err := storage.NewFileBackend(t.TempDir(), testLogger())
	require.NoError(t, err)
	sealer, err := storage.NewSealer(backend, bytes.Repeat([]byte{0x44}, 32), []byte("node"), testLogger())
	require.NoError(t, err)
	return keychain.New(sealer, testLogger())
}

func TestProviderRequester(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	provider := NewProvider(f.source, f.source, f.verifier, nil, testLogger())
	providerKey, err := provider.PublicKey()
	require.NoError(t, err)

	joining := newJoiningKeychain(t)
	requester, err := NewRequester(f.attester, joining, f.network, testLogger())
	require.NoError(t, err)

	cert, err := requester.Attest()
	require.NoError(t, err)
	again, err := requester.Attest()
	require.NoError(t, err)
	assert.Equal(t, cert, again)

	payload, err := provider.Authenticate(ctx, cert)
	require.NoError(t, err)
	require.Len(t, payload, PayloadSize)

	require.NoError(t, requester.Accept(ctx, payload, providerKey))
	assert.True(t, joining.IsInitialized())
	assert.Equal(t, uint16(4), joining.SeedID())

	for _, gen := range []interfaces.Generation{interfaces.Genesis, interfaces.Current} {
		want, err := f.source.IOKeyPair(gen)
		require.NoError(t, err)
		got, err := joining.IOKeyPair(gen)
		require.NoError(t, err)
		assert.Equal(t, want.Public, got.Public, gen.String())
	}
}

func TestRequester_RejectsTamperedPayload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	provider := NewProvider(f.source, f.source, f.verifier, nil, testLogger())
	providerKey, err := provider.PublicKey()
	require.NoError(t, err)

	joining := newJoiningKeychain(t)
	requester, err := NewRequester(f.attester, joining, f.network, testLogger())
	require.NoError(t, err)
	cert, err := requester.Attest()
	require.NoError(t, err)
	payload, err := provider.Authenticate(ctx, cert)
	require.NoError(t, err)

	t.Run("current seed corrupted", func(t *testing.T) {
		err := requester.Accept(ctx, flip(payload, len(payload)-1), providerKey)
		assert.ErrorIs(t, err, interfaces.ErrDecryption)
		assert.False(t, joining.IsInitialized(), "genesis must not be installed alone")
	})

	t.Run("wrong provider key", func(t *testing.T) {
		other, err := cryptoutils.GenerateKeyPair()
		require.NoError(t, err)
		err = requester.Accept(ctx, payload, interfaces.PublicKey(other.Public))
		assert.ErrorIs(t, err, interfaces.ErrAttestation)
		assert.False(t, joining.IsInitialized())
	})

	t.Run("payload for another node", func(t *testing.T) {
		other, err := NewRequester(f.attester, newJoiningKeychain(t), f.network, testLogger())
		require.NoError(t, err)
		err = other.Accept(ctx, payload, providerKey)
		assert.ErrorIs(t, err, interfaces.ErrDecryption)
	})
}

func TestRequester_PinsNetworkKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := NewRequester(f.attester, newJoiningKeychain(t), interfaces.PublicKey{}, testLogger())
	assert.ErrorIs(t, err, interfaces.ErrInvalidConfig)

	// A provider holding a different seed still produces a well formed
	// payload; the joining node must refuse it.
	var genesis, current interfaces.Seed
	copy(genesis[:], bytes.Repeat([]byte{0x66}, 32))
	copy(current[:], bytes.Repeat([]byte{0x77}, 32))
	impostorKeys, err := keychain.NewStatic(genesis, current, 1, testLogger())
	require.NoError(t, err)
	impostor := NewProvider(impostorKeys, impostorKeys, f.verifier, nil, testLogger())
	impostorKey, err := impostor.PublicKey()
	require.NoError(t, err)
	require.NotEqual(t, f.network, impostorKey)

	joining := newJoiningKeychain(t)
	requester, err := NewRequester(f.attester, joining, f.network, testLogger())
	require.NoError(t, err)
	cert, err := requester.Attest()
	require.NoError(t, err)
	payload, err := impostor.Authenticate(ctx, cert)
	require.NoError(t, err)

	err = requester.Accept(ctx, payload, impostorKey)
	assert.ErrorIs(t, err, interfaces.ErrAttestation)
	assert.False(t, joining.IsInitialized())
}

func TestProvider_RejectsUnattested(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	provider := NewProvider(f.source, f.source, f.verifier, nil, testLogger())

	_, err := provider.Authenticate(ctx, nil)
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput)

	_, rogueKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	rogue := attestation.NewSoftwareAttester(rogueKey, attestation.SoftwareClaims{Measurement: []byte{0xaa}, Signer: []byte{0x5a}})
	requester, err := NewRequester(rogue, newJoiningKeychain(t), f.network, testLogger())
	require.NoError(t, err)
	cert, err := requester.Attest()
	require.NoError(t, err)

	_, err = provider.Authenticate(ctx, cert)
	assert.ErrorIs(t, err, interfaces.ErrAttestation)
}

func TestProvider_RegistrationCrossCheck(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ledger := NewBlockMessages()
	provider := NewProvider(f.source, f.source, f.verifier, ledger, testLogger())

	requester, err := NewRequester(f.attester, newJoiningKeychain(t), f.network, testLogger())
	require.NoError(t, err)
	cert, err := requester.Attest()
	require.NoError(t, err)

	_, err = provider.Authenticate(ctx, cert)
	assert.ErrorIs(t, err, interfaces.ErrAttestation)

	require.True(t, ledger.SetBlock(10, [][]byte{cert}))
	_, err = provider.Authenticate(ctx, cert)
	require.NoError(t, err)

	assert.False(t, ledger.SetBlock(9, nil), "older block ignored")
	require.True(t, ledger.SetBlock(11, nil))
	_, err = provider.Authenticate(ctx, cert)
	assert.ErrorIs(t, err, interfaces.ErrAttestation)
}

func TestProvider_AcceptsCombinedBundle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	provider := NewProvider(f.source, f.source, f.verifier, nil, testLogger())

	requester, err := NewRequester(f.attester, newJoiningKeychain(t), f.network, testLogger())
	require.NoError(t, err)
	cert, err := requester.Attest()
	require.NoError(t, err)

	payload, err := provider.Authenticate(ctx, attestation.Combine(cert, nil, []byte("collateral")))
	require.NoError(t, err)
	assert.Len(t, payload, PayloadSize)
}
