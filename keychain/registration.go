package keychain

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/scrtlabs/SecretNetwork-sub003/cryptoutils"
	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
	"github.com/scrtlabs/SecretNetwork-sub003/storage"
)

// CreateRegistrationKey generates the node's registration key pair and
// seals it. The public half is what a joining node attests to.
func (k *Keychain) CreateRegistrationKey(ctx context.Context) (interfaces.KeyPair, error) {
	if k.store == nil {
		return interfaces.KeyPair{}, fmt.Errorf("%w: keychain has no sealed store", interfaces.ErrInvalidConfig)
	}

	kp, err := cryptoutils.GenerateKeyPair()
	if err != nil {
		return interfaces.KeyPair{}, err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.store.Seal(ctx, sealedRegistrationKey, kp.Private[:]); err != nil {
		return interfaces.KeyPair{}, fmt.Errorf("sealing registration key: %w", err)
	}
	k.registration = &kp

	k.log.Info("Created registration key", slog.String("pubkey", kp.PublicHex()))
	return kp, nil
}

// RegistrationKey returns the sealed registration key pair, loading it on first use.
func (k *Keychain) RegistrationKey(ctx context.Context) (interfaces.KeyPair, error) {
	k.mu.RLock()
	if k.registration != nil {
		defer k.mu.RUnlock()
		return *k.registration, nil
	}
	k.mu.RUnlock()

	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.loadRegistrationKeyLocked(ctx); err != nil {
		return interfaces.KeyPair{}, err
	}
	if k.registration == nil {
		return interfaces.KeyPair{}, fmt.Errorf("%w: %v", interfaces.ErrNotInitialized, errNoRegistrationKey)
	}
	return *k.registration, nil
}

// loadRegistrationKeyLocked loads the registration key if one was sealed.
// A missing key is not an error.
func (k *Keychain) loadRegistrationKeyLocked(ctx context.Context) error {
	if k.registration != nil || k.store == nil {
		return nil
	}

	raw, err := storage.UnsealExact(ctx, k.store, sealedRegistrationKey, interfaces.PrivateKeySize)
	if storage.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading registration key: %w", err)
	}
	defer cryptoutils.Wipe(raw)

	var secret [interfaces.PrivateKeySize]byte
	copy(secret[:], raw)
	kp, err := cryptoutils.KeyPairFromSecret(secret)
	cryptoutils.Wipe(secret[:])
	if err != nil {
		return fmt.Errorf("loading registration key: %w", err)
	}
	k.registration = &kp
	return nil
}
