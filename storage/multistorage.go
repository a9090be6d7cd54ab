package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
)

// MultiBackend replicates sealed blobs across several backends.
// A write succeeds only if every available backend accepted it; reads use
// the first backend that holds the blob.
type MultiBackend struct {
	backends []interfaces.BlobBackend
	log      *slog.Logger
}

// NewMultiBackend creates a new replicating backend.
func NewMultiBackend(backends []interfaces.BlobBackend, logger *slog.Logger) *MultiBackend {
	if logger == nil {
		logger = slog.Default()
	}

	return &MultiBackend{
		backends: backends,
		log:      logger,
	}
}

// Get returns the blob from the first available backend that has it.
// ErrSealedNotFound is returned only when every reachable backend reported it missing.
func (m *MultiBackend) Get(ctx context.Context, name string) ([]byte, error) {
	start := time.Now()
	var errs []error
	reachable := 0

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable", slog.String("backend_name", backend.Name()))
			continue
		}
		reachable++

		data, err := backend.Get(ctx, name)
		if err == nil {
			m.log.Debug("Fetched sealed blob",
				slog.String("backend_name", backend.Name()),
				slog.String("name", name),
				slog.Duration("duration", time.Since(start)))
			return data, nil
		}

		if !errors.Is(err, interfaces.ErrSealedNotFound) {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			m.log.Debug("Failed to fetch from backend",
				slog.String("backend_name", backend.Name()),
				slog.String("name", name),
				"err", err)
		}
	}

	if reachable == 0 {
		return nil, fmt.Errorf("%w: no storage backend reachable", interfaces.ErrBackendUnavailable)
	}
	if len(errs) == 0 {
		return nil, interfaces.ErrSealedNotFound
	}

	m.log.Error("All backends failed to fetch sealed blob",
		slog.String("name", name),
		slog.Int("failed_backends", len(errs)))
	return nil, errors.Join(errs...)
}

// Put writes the blob to every available backend.
func (m *MultiBackend) Put(ctx context.Context, name string, data []byte) error {
	start := time.Now()
	var errs []error
	written := 0

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Warn("Skipping unavailable backend on write", slog.String("backend_name", backend.Name()))
			continue
		}

		if err := backend.Put(ctx, name, data); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			m.log.Error("Failed to store to backend",
				slog.String("backend_name", backend.Name()),
				slog.String("name", name),
				"err", err)
			continue
		}
		written++
	}

	if len(errs) > 0 {
		return fmt.Errorf("write of %s incomplete: %w", name, errors.Join(errs...))
	}
	if written == 0 {
		return fmt.Errorf("%w: no storage backend reachable", interfaces.ErrBackendUnavailable)
	}

	m.log.Debug("Stored sealed blob",
		slog.String("name", name),
		slog.Int("backends", written),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// Delete removes the blob from every available backend.
func (m *MultiBackend) Delete(ctx context.Context, name string) error {
	var errs []error
	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			continue
		}
		if err := backend.Delete(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Available checks if any backend is available.
func (m *MultiBackend) Available(ctx context.Context) bool {
	for _, backend := range m.backends {
		if backend.Available(ctx) {
			return true
		}
	}
	return false
}

// Name returns the name of this backend.
func (m *MultiBackend) Name() string {
	return "multi-storage"
}

// LocationURI returns a combined URI of all backends.
func (m *MultiBackend) LocationURI() string {
	var locations []string
	for _, backend := range m.backends {
		locations = append(locations, backend.LocationURI())
	}

	return "multi:[" + strings.Join(locations, ",") + "]"
}
