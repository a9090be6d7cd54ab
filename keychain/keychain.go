package keychain

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/scrtlabs/SecretNetwork-sub003/cryptoutils"
	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
	"github.com/scrtlabs/SecretNetwork-sub003/storage"
)

// Derivation orders of the seed-derived keys.
const (
	OrderSeedExchange     uint32 = 1
	OrderIO               uint32 = 2
	OrderStateIKM         uint32 = 3
	OrderCallback         uint32 = 4
	OrderAdminProof       uint32 = 7
	OrderContractKeyProof uint32 = 8
)

// SeedVersion is the layout version of the sealed seed blob.
const SeedVersion byte = 2

const (
	sealedSeeds           = "consensus_seeds"
	sealedRegistrationKey = "registration_key"

	// version ‖ seed id ‖ genesis ‖ current
	sealedSeedsSize = 1 + 2 + 2*interfaces.SeedSize
)

type derivedKeys struct {
	seedExchange interfaces.KeyPair
	io           interfaces.KeyPair
	stateIKM     interfaces.AESKey
	callback     interfaces.AESKey
}

// Keychain owns the consensus seeds and every key derived from them.
// It is read on every call and written only at load and rotation time.
type Keychain struct {
	mu    sync.RWMutex
	store interfaces.SealedStore
	log   *slog.Logger

	loaded  bool
	seeds   interfaces.Generations[interfaces.Seed]
	seedID  uint16
	derived interfaces.Generations[derivedKeys]

	adminProof       interfaces.AESKey
	contractKeyProof interfaces.AESKey

	registration *interfaces.KeyPair
}

// New creates an empty keychain backed by store. Nothing is usable until
// Initialize, Bootstrap or SetSeeds succeeds.
func New(store interfaces.SealedStore, log *slog.Logger) *Keychain {
	return &Keychain{store: store, log: log}
}

// NewStatic creates an in-memory keychain holding the given seeds.
// It cannot persist rotations or received seeds.
func NewStatic(genesis, current interfaces.Seed, seedID uint16, log *slog.Logger) (*Keychain, error) {
	k := New(nil, log)
	if err := k.install(genesis, current, seedID); err != nil {
		return nil, err
	}
	return k, nil
}

// Initialize loads the seeds from sealed storage. A missing seed is
// ErrNotInitialized: the keychain never generates one implicitly.
func (k *Keychain) Initialize(ctx context.Context) error {
	if k.store == nil {
		return fmt.Errorf("%w: keychain has no sealed store", interfaces.ErrInvalidConfig)
	}

	raw, err := storage.UnsealExact(ctx, k.store, sealedSeeds, sealedSeedsSize)
	if storage.IsNotFound(err) {
		return fmt.Errorf("%w: no sealed seed at %s", interfaces.ErrNotInitialized, k.store.LocationURI())
	}
	if err != nil {
		return fmt.Errorf("loading seeds: %w", err)
	}
	defer cryptoutils.Wipe(raw)

	genesis, current, seedID, err := decodeSeeds(raw)
	if err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.installLocked(genesis, current, seedID); err != nil {
		return err
	}

	if err := k.loadRegistrationKeyLocked(ctx); err != nil {
		return err
	}

	k.log.Info("Keychain initialized",
		slog.Int("seed_id", int(seedID)),
		slog.String("seed_exchange_pubkey", k.derived.Current.seedExchange.PublicHex()))
	return nil
}

// Bootstrap generates the network's genesis seed. It is the only place a
// fresh seed is created and refuses to run on a node that already has one.
// The existence check and the seal run under the write lock, so concurrent
// callers cannot both create a seed.
func (k *Keychain) Bootstrap(ctx context.Context) error {
	if k.store == nil {
		return fmt.Errorf("%w: keychain has no sealed store", interfaces.ErrInvalidConfig)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if k.loaded {
		return interfaces.ErrAlreadyInitialized
	}
	if _, err := k.store.Unseal(ctx, sealedSeeds); err == nil {
		return interfaces.ErrAlreadyInitialized
	} else if !storage.IsNotFound(err) {
		return fmt.Errorf("checking for existing seed: %w", err)
	}

	var seed interfaces.Seed
	if _, err := rand.Read(seed[:]); err != nil {
		return fmt.Errorf("failed to generate seed: %w", err)
	}
	defer cryptoutils.Wipe(seed[:])

	if err := k.sealAndInstallLocked(ctx, seed, seed, 1); err != nil {
		return err
	}

	k.log.Info("Generated genesis seed")
	return nil
}

// SetSeeds seals both generations and then installs them. If sealing
// fails the keychain is left unchanged.
func (k *Keychain) SetSeeds(ctx context.Context, genesis, current interfaces.Seed, seedID uint16) error {
	if genesis.IsZero() || current.IsZero() {
		return fmt.Errorf("%w: zero seed", interfaces.ErrInvalidInput)
	}
	if k.store == nil {
		return fmt.Errorf("%w: keychain has no sealed store", interfaces.ErrInvalidConfig)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	return k.sealAndInstallLocked(ctx, genesis, current, seedID)
}

func (k *Keychain) sealAndInstallLocked(ctx context.Context, genesis, current interfaces.Seed, seedID uint16) error {
	blob := encodeSeeds(genesis, current, seedID)
	defer cryptoutils.Wipe(blob)

	if err := k.store.Seal(ctx, sealedSeeds, blob); err != nil {
		return fmt.Errorf("sealing seeds: %w", err)
	}
	return k.installLocked(genesis, current, seedID)
}

// Rotate replaces the current seed with a fresh one. Genesis never changes.
func (k *Keychain) Rotate(ctx context.Context) (uint16, error) {
	if k.store == nil {
		return 0, fmt.Errorf("%w: keychain has no sealed store", interfaces.ErrInvalidConfig)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.loaded {
		return 0, interfaces.ErrNotInitialized
	}

	var next interfaces.Seed
	if _, err := rand.Read(next[:]); err != nil {
		return 0, fmt.Errorf("failed to generate seed: %w", err)
	}
	defer cryptoutils.Wipe(next[:])

	nextID := k.seedID + 1
	blob := encodeSeeds(k.seeds.Genesis, next, nextID)
	defer cryptoutils.Wipe(blob)

	if err := k.store.Seal(ctx, sealedSeeds, blob); err != nil {
		return 0, fmt.Errorf("sealing rotated seed: %w", err)
	}

	if err := k.installLocked(k.seeds.Genesis, next, nextID); err != nil {
		return 0, err
	}

	k.log.Info("Rotated current seed", slog.Int("seed_id", int(nextID)))
	return nextID, nil
}

func (k *Keychain) install(genesis, current interfaces.Seed, seedID uint16) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.installLocked(genesis, current, seedID)
}

func (k *Keychain) installLocked(genesis, current interfaces.Seed, seedID uint16) error {
	if genesis.IsZero() || current.IsZero() {
		return fmt.Errorf("%w: zero seed", interfaces.ErrInvalidInput)
	}

	g, err := deriveAll(genesis)
	if err != nil {
		return err
	}
	c, err := deriveAll(current)
	if err != nil {
		return err
	}

	k.seeds = interfaces.Generations[interfaces.Seed]{Genesis: genesis, Current: current}
	k.seedID = seedID
	k.derived = interfaces.Generations[derivedKeys]{Genesis: g, Current: c}
	k.adminProof = interfaces.AESKey(cryptoutils.DeriveKey(genesis[:], cryptoutils.DeriveOrderLabel(OrderAdminProof)))
	k.contractKeyProof = interfaces.AESKey(cryptoutils.DeriveKey(genesis[:], cryptoutils.DeriveOrderLabel(OrderContractKeyProof)))
	k.loaded = true
	return nil
}

func deriveAll(seed interfaces.Seed) (derivedKeys, error) {
	sx, err := cryptoutils.KeyPairFromSecret(cryptoutils.DeriveKey(seed[:], cryptoutils.DeriveOrderLabel(OrderSeedExchange)))
	if err != nil {
		return derivedKeys{}, fmt.Errorf("deriving seed exchange key: %w", err)
	}
	io, err := cryptoutils.KeyPairFromSecret(cryptoutils.DeriveKey(seed[:], cryptoutils.DeriveOrderLabel(OrderIO)))
	if err != nil {
		return derivedKeys{}, fmt.Errorf("deriving io key: %w", err)
	}

	return derivedKeys{
		seedExchange: sx,
		io:           io,
		stateIKM:     interfaces.AESKey(cryptoutils.DeriveKey(seed[:], cryptoutils.DeriveOrderLabel(OrderStateIKM))),
		callback:     interfaces.AESKey(cryptoutils.DeriveKey(seed[:], cryptoutils.DeriveOrderLabel(OrderCallback))),
	}, nil
}

func encodeSeeds(genesis, current interfaces.Seed, seedID uint16) []byte {
	blob := make([]byte, 0, sealedSeedsSize)
	blob = append(blob, SeedVersion)
	blob = binary.BigEndian.AppendUint16(blob, seedID)
	blob = append(blob, genesis[:]...)
	return append(blob, current[:]...)
}

func decodeSeeds(raw []byte) (genesis, current interfaces.Seed, seedID uint16, err error) {
	if len(raw) != sealedSeedsSize {
		return genesis, current, 0, fmt.Errorf("%w: seed blob has %d bytes", interfaces.ErrSealedCorrupt, len(raw))
	}
	if raw[0] != SeedVersion {
		return genesis, current, 0, fmt.Errorf("%w: unsupported seed version %d", interfaces.ErrSealedCorrupt, raw[0])
	}
	seedID = binary.BigEndian.Uint16(raw[1:3])
	copy(genesis[:], raw[3:3+interfaces.SeedSize])
	copy(current[:], raw[3+interfaces.SeedSize:])
	if genesis.IsZero() || current.IsZero() {
		return genesis, current, 0, fmt.Errorf("%w: zero seed", interfaces.ErrSealedCorrupt)
	}
	return genesis, current, seedID, nil
}

// IsInitialized reports whether seeds are loaded.
func (k *Keychain) IsInitialized() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.loaded
}

// SeedExchangeKeyPair returns the key pair used to encrypt seeds for joining nodes.
func (k *Keychain) SeedExchangeKeyPair(gen interfaces.Generation) (interfaces.KeyPair, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if !k.loaded {
		return interfaces.KeyPair{}, interfaces.ErrNotInitialized
	}
	return k.derived.Get(gen).seedExchange, nil
}

// IOKeyPair returns the key pair used for contract input and output encryption.
func (k *Keychain) IOKeyPair(gen interfaces.Generation) (interfaces.KeyPair, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if !k.loaded {
		return interfaces.KeyPair{}, interfaces.ErrNotInitialized
	}
	return k.derived.Get(gen).io, nil
}

// ConsensusStateIKM returns the input key material for contract state and contract keys.
func (k *Keychain) ConsensusStateIKM(gen interfaces.Generation) (interfaces.AESKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if !k.loaded {
		return interfaces.AESKey{}, interfaces.ErrNotInitialized
	}
	return k.derived.Get(gen).stateIKM, nil
}

// CallbackSecret returns the key authenticating callbacks between contracts.
func (k *Keychain) CallbackSecret(gen interfaces.Generation) (interfaces.AESKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if !k.loaded {
		return interfaces.AESKey{}, interfaces.ErrNotInitialized
	}
	return k.derived.Get(gen).callback, nil
}

// AdminProofSecret returns the key behind admin proofs. It is derived from
// genesis so proofs survive rotation.
func (k *Keychain) AdminProofSecret() (interfaces.AESKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if !k.loaded {
		return interfaces.AESKey{}, interfaces.ErrNotInitialized
	}
	return k.adminProof, nil
}

// ContractKeyProofSecret returns the key behind contract key proofs.
func (k *Keychain) ContractKeyProofSecret() (interfaces.AESKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if !k.loaded {
		return interfaces.AESKey{}, interfaces.ErrNotInitialized
	}
	return k.contractKeyProof, nil
}

// ExportSeed returns a copy of the raw seed. Only the seed exchange
// provider and the backup path call it.
func (k *Keychain) ExportSeed(gen interfaces.Generation) (interfaces.Seed, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if !k.loaded {
		return interfaces.Seed{}, interfaces.ErrNotInitialized
	}
	return k.seeds.Get(gen), nil
}

// SeedID returns the id of the current seed. It starts at 1 and grows with every rotation.
func (k *Keychain) SeedID() uint16 {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.seedID
}

var errNoRegistrationKey = errors.New("registration key not created")

var (
	_ interfaces.KeySource  = (*Keychain)(nil)
	_ interfaces.SeedSource = (*Keychain)(nil)
	_ interfaces.SeedSink   = (*Keychain)(nil)
)
