package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/99designs/keyring"
	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
)

// KeyringBackend stores sealed blobs in the operating system keyring
// (Secret Service, KWallet, keyctl, macOS Keychain) or its encrypted file fallback.
type KeyringBackend struct {
	ring        keyring.Keyring
	service     string
	log         *slog.Logger
	locationURI string
}

// KeyringOptions configures OpenKeyringBackend.
type KeyringOptions struct {
	// Service is the keyring service name items are grouped under.
	Service string
	// Backend restricts the keyring implementation ("file", "keyctl", "secret-service", ...).
	// Empty lets the library pick the first available one.
	Backend string
	// FileDir is used by the "file" backend.
	FileDir string
	// FilePasswordEnv names the environment variable holding the "file" backend password.
	FilePasswordEnv string
}

// OpenKeyringBackend opens the configured keyring.
func OpenKeyringBackend(opts KeyringOptions, log *slog.Logger) (*KeyringBackend, error) {
	if opts.Service == "" {
		return nil, fmt.Errorf("%w: empty keyring service name", interfaces.ErrInvalidConfig)
	}

	cfg := keyring.Config{
		ServiceName:              opts.Service,
		KeychainTrustApplication: true,
		KeyCtlScope:              "user",
		FileDir:                  opts.FileDir,
	}
	if opts.Backend != "" {
		cfg.AllowedBackends = []keyring.BackendType{keyring.BackendType(opts.Backend)}
	}
	if opts.FilePasswordEnv != "" {
		password, ok := os.LookupEnv(opts.FilePasswordEnv)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not set", interfaces.ErrInvalidConfig, opts.FilePasswordEnv)
		}
		cfg.FilePasswordFunc = keyring.FixedStringPrompt(password)
	}

	ring, err := keyring.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open keyring: %v", interfaces.ErrInvalidConfig, err)
	}

	return NewKeyringBackend(ring, opts.Service, log), nil
}

// NewKeyringBackend wraps an already opened keyring.
func NewKeyringBackend(ring keyring.Keyring, service string, log *slog.Logger) *KeyringBackend {
	return &KeyringBackend{
		ring:        ring,
		service:     service,
		log:         log,
		locationURI: fmt.Sprintf("keyring://%s", service),
	}
}

// Get retrieves a blob from the keyring.
func (b *KeyringBackend) Get(ctx context.Context, name string) ([]byte, error) {
	if err := interfaces.ValidateSealedName(name); err != nil {
		return nil, err
	}

	item, err := b.ring.Get(name)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, interfaces.ErrSealedNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get item from keyring: %v", interfaces.ErrBackendUnavailable, err)
	}
	return item.Data, nil
}

// Put stores a blob in the keyring.
func (b *KeyringBackend) Put(ctx context.Context, name string, data []byte) error {
	if err := interfaces.ValidateSealedName(name); err != nil {
		return err
	}

	err := b.ring.Set(keyring.Item{
		Key:         name,
		Data:        data,
		Label:       fmt.Sprintf("%s %s", b.service, name),
		Description: "sealed enclave secret",
	})
	if err != nil {
		return fmt.Errorf("%w: failed to store item in keyring: %v", interfaces.ErrBackendUnavailable, err)
	}

	b.log.Debug("Stored sealed blob in keyring", slog.String("service", b.service), slog.String("name", name))
	return nil
}

// Delete removes a blob from the keyring.
func (b *KeyringBackend) Delete(ctx context.Context, name string) error {
	if err := interfaces.ValidateSealedName(name); err != nil {
		return err
	}

	err := b.ring.Remove(name)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: failed to remove item from keyring: %v", interfaces.ErrBackendUnavailable, err)
	}
	return nil
}

// Available checks that the keyring can enumerate its items.
func (b *KeyringBackend) Available(ctx context.Context) bool {
	if _, err := b.ring.Keys(); err != nil {
		b.log.Debug("Keyring backend unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this storage backend.
func (b *KeyringBackend) Name() string {
	return fmt.Sprintf("keyring-%s", b.service)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *KeyringBackend) LocationURI() string {
	return b.locationURI
}
