package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/scrtlabs/SecretNetwork-sub003/cryptoutils"
	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
)

// Sealer implements interfaces.SealedStore on top of any blob backend.
// Blobs leave the process only as authenticated ciphertext bound to the
// object name and to the sealing identity.
type Sealer struct {
	backend    interfaces.BlobBackend
	sealingKey [cryptoutils.KeySize]byte
	log        *slog.Logger
}

// NewSealer creates a sealed store over backend. platformSecret and
// identity feed the sealing key derivation; identity is normally the code
// measurement of the running enclave.
func NewSealer(backend interfaces.BlobBackend, platformSecret, identity []byte, log *slog.Logger) (*Sealer, error) {
	if len(platformSecret) < 16 {
		return nil, fmt.Errorf("%w: platform secret must be at least 16 bytes", interfaces.ErrInvalidConfig)
	}

	return &Sealer{
		backend:    backend,
		sealingKey: cryptoutils.DeriveSealingKey(platformSecret, identity),
		log:        log,
	}, nil
}

// Seal encrypts data and writes it synchronously. Only a fully completed
// write returns nil.
func (s *Sealer) Seal(ctx context.Context, name string, data []byte) error {
	if err := interfaces.ValidateSealedName(name); err != nil {
		return err
	}

	blob, err := cryptoutils.SealBytes(s.sealingKey, name, data)
	if err != nil {
		return fmt.Errorf("sealing %s: %w", name, err)
	}

	if err := s.backend.Put(ctx, name, blob); err != nil {
		s.log.Error("Failed to persist sealed object",
			slog.String("name", name),
			slog.String("backend", s.backend.Name()),
			"err", err)
		return fmt.Errorf("writing %s: %w", name, err)
	}

	s.log.Debug("Sealed object", slog.String("name", name), slog.String("backend", s.backend.Name()))
	return nil
}

// Unseal reads and authenticates the object stored under name.
func (s *Sealer) Unseal(ctx context.Context, name string) ([]byte, error) {
	if err := interfaces.ValidateSealedName(name); err != nil {
		return nil, err
	}

	blob, err := s.backend.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	data, err := cryptoutils.OpenBytes(s.sealingKey, name, blob)
	if err != nil {
		s.log.Warn("Sealed object failed authentication", slog.String("name", name), "err", err)
		return nil, fmt.Errorf("%w: %s", interfaces.ErrSealedCorrupt, name)
	}
	return data, nil
}

// Remove deletes the object stored under name.
func (s *Sealer) Remove(ctx context.Context, name string) error {
	return s.backend.Delete(ctx, name)
}

// Available checks if the underlying backend is accessible.
func (s *Sealer) Available(ctx context.Context) bool {
	return s.backend.Available(ctx)
}

// LocationURI returns the URI of the underlying backend.
func (s *Sealer) LocationURI() string {
	return s.backend.LocationURI()
}

// UnsealExact unseals name and rejects any payload whose length is not size.
func UnsealExact(ctx context.Context, store interfaces.SealedStore, name string, size int) ([]byte, error) {
	data, err := store.Unseal(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(data) != size {
		cryptoutils.Wipe(data)
		return nil, fmt.Errorf("%w: %s has %d bytes, expected %d", interfaces.ErrSealedCorrupt, name, len(data), size)
	}
	return data, nil
}

// IsNotFound reports whether err means the sealed object does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, interfaces.ErrSealedNotFound)
}
