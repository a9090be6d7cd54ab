package seedexchange

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/scrtlabs/SecretNetwork-sub003/attestation"
	"github.com/scrtlabs/SecretNetwork-sub003/cryptoutils"
	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
	"github.com/scrtlabs/SecretNetwork-sub003/metrics"
)

// CertificateVerifier authenticates a joining node's attestation.
type CertificateVerifier interface {
	VerifyCertificate(der []byte) (interfaces.PublicKey, *attestation.Report, error)
	VerifyBundle(b []byte) (interfaces.PublicKey, *attestation.Report, error)
}

// Provider releases the consensus seeds to attested nodes.
type Provider struct {
	keys     interfaces.KeySource
	seeds    interfaces.SeedSource
	verifier CertificateVerifier
	ledger   RegistrationLedger
	log      *slog.Logger
}

// NewProvider creates a provider. ledger may be nil when joining nodes talk
// to the provider directly instead of registering on chain.
func NewProvider(keys interfaces.KeySource, seeds interfaces.SeedSource, verifier CertificateVerifier, ledger RegistrationLedger, log *slog.Logger) *Provider {
	return &Provider{
		keys:     keys,
		seeds:    seeds,
		verifier: verifier,
		ledger:   ledger,
		log:      log,
	}
}

// PublicKey is the provider's seed exchange public key. It comes from the
// genesis generation so it survives rotations.
func (p *Provider) PublicKey() (interfaces.PublicKey, error) {
	kp, err := p.keys.SeedExchangeKeyPair(interfaces.Genesis)
	if err != nil {
		return interfaces.PublicKey{}, err
	}
	return interfaces.PublicKey(kp.Public), nil
}

// Authenticate verifies a node's certificate, or combined certificate
// bundle, and returns both seed generations encrypted to the attested key.
func (p *Provider) Authenticate(ctx context.Context, cert []byte) ([]byte, error) {
	payload, err := p.authenticate(ctx, cert)
	if err != nil {
		metrics.SeedExchanges.WithLabelValues("rejected").Inc()
		return nil, err
	}
	metrics.SeedExchanges.WithLabelValues("served").Inc()
	return payload, nil
}

func (p *Provider) authenticate(ctx context.Context, cert []byte) ([]byte, error) {
	if len(cert) == 0 {
		return nil, fmt.Errorf("%w: empty certificate", interfaces.ErrInvalidInput)
	}

	if p.ledger != nil {
		found, err := p.ledger.ContainsCertificate(ctx, cert)
		if err != nil {
			return nil, fmt.Errorf("%w: registration ledger: %v", interfaces.ErrBackendUnavailable, err)
		}
		if !found {
			return nil, attestation.NewAuthError(attestation.AuthNotInCurrentBlock, "")
		}
	}

	var (
		target interfaces.PublicKey
		report *attestation.Report
		err    error
	)
	if isCombinedBundle(cert) {
		target, report, err = p.verifier.VerifyBundle(cert)
	} else {
		target, report, err = p.verifier.VerifyCertificate(cert)
	}
	if err != nil {
		return nil, err
	}

	kp, err := p.keys.SeedExchangeKeyPair(interfaces.Genesis)
	if err != nil {
		return nil, err
	}

	shared, err := kp.SharedSecret(target[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidInput, err)
	}
	defer cryptoutils.Wipe(shared[:])

	out := &Payload{SeedID: p.seeds.SeedID()}
	for _, gen := range []interfaces.Generation{interfaces.Genesis, interfaces.Current} {
		seed, err := p.seeds.ExportSeed(gen)
		if err != nil {
			return nil, err
		}
		ct, err := EncryptSeed(shared, seed, target)
		cryptoutils.Wipe(seed[:])
		if err != nil {
			return nil, err
		}
		if gen == interfaces.Genesis {
			out.Genesis = ct
		} else {
			out.Current = ct
		}
	}

	p.log.Info("Released seeds to attested node",
		slog.String("attestationType", report.Type),
		slog.String("nodeKey", target.String()),
		slog.Int("seedID", int(out.SeedID)))

	return out.Marshal(), nil
}

// isCombinedBundle reports whether b parses as three length-prefixed parts.
func isCombinedBundle(b []byte) bool {
	if len(b) < 12 {
		return false
	}
	total := uint64(12)
	for i := 0; i < 3; i++ {
		total += uint64(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return total == uint64(len(b))
}
