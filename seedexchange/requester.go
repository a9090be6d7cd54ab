package seedexchange

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/scrtlabs/SecretNetwork-sub003/attestation"
	"github.com/scrtlabs/SecretNetwork-sub003/cryptoutils"
	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
	"github.com/scrtlabs/SecretNetwork-sub003/metrics"
)

// Requester is the joining side of the exchange. It holds a fresh key pair
// for the lifetime of one join attempt and only accepts seeds encrypted by
// the network's seed exchange key.
type Requester struct {
	attester attestation.Attester
	sink     interfaces.SeedSink
	log      *slog.Logger

	kp      interfaces.KeyPair
	network interfaces.PublicKey

	mu   sync.Mutex
	cert []byte
}

// NewRequester creates a requester with a fresh key pair. network is the
// genesis seed exchange public key of the network being joined.
func NewRequester(attester attestation.Attester, sink interfaces.SeedSink, network interfaces.PublicKey, log *slog.Logger) (*Requester, error) {
	kp, err := cryptoutils.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return NewRequesterWithKey(kp, attester, sink, network, log)
}

// NewRequesterWithKey uses an existing key pair, such as the sealed registration key.
func NewRequesterWithKey(kp interfaces.KeyPair, attester attestation.Attester, sink interfaces.SeedSink, network interfaces.PublicKey, log *slog.Logger) (*Requester, error) {
	if kp.IsZero() {
		return nil, fmt.Errorf("%w: zero key pair", interfaces.ErrInvalidInput)
	}
	if network.IsZero() {
		return nil, fmt.Errorf("%w: network seed exchange key is not configured", interfaces.ErrInvalidConfig)
	}
	return &Requester{attester: attester, sink: sink, log: log, kp: kp, network: network}, nil
}

func (r *Requester) PublicKey() interfaces.PublicKey {
	return interfaces.PublicKey(r.kp.Public)
}

// Attest returns the attestation certificate for the requester key. It is
// produced once and reused.
func (r *Requester) Attest() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cert != nil {
		return r.cert, nil
	}

	cert, _, err := attestation.CreateCertificate(r.attester, r.PublicKey())
	if err != nil {
		return nil, err
	}
	r.cert = cert
	return cert, nil
}

// Accept decrypts both seed generations from a provider payload and installs
// them. providerKey must be the network key. Either both seeds are
// installed or nothing changes.
func (r *Requester) Accept(ctx context.Context, raw []byte, providerKey interfaces.PublicKey) error {
	err := r.accept(ctx, raw, providerKey)
	if err != nil {
		metrics.SeedExchanges.WithLabelValues("failed").Inc()
		return err
	}
	metrics.SeedExchanges.WithLabelValues("accepted").Inc()
	return nil
}

func (r *Requester) accept(ctx context.Context, raw []byte, providerKey interfaces.PublicKey) error {
	if providerKey != r.network {
		return fmt.Errorf("%w: provider key %s is not the network seed exchange key", interfaces.ErrAttestation, providerKey)
	}

	payload, err := ParsePayload(raw)
	if err != nil {
		return err
	}

	shared, err := r.kp.SharedSecret(providerKey[:])
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrInvalidInput, err)
	}
	defer cryptoutils.Wipe(shared[:])

	genesis, err := DecryptSeed(shared, payload.Genesis, r.PublicKey())
	if err != nil {
		return fmt.Errorf("genesis seed: %w", err)
	}
	defer cryptoutils.Wipe(genesis[:])

	current, err := DecryptSeed(shared, payload.Current, r.PublicKey())
	if err != nil {
		return fmt.Errorf("current seed: %w", err)
	}
	defer cryptoutils.Wipe(current[:])

	if err := r.sink.SetSeeds(ctx, genesis, current, payload.SeedID); err != nil {
		return err
	}

	r.log.Info("Received consensus seeds", slog.Int("seedID", int(payload.SeedID)))
	return nil
}
