package keychain

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hashicorp/vault/shamir"
	"github.com/scrtlabs/SecretNetwork-sub003/cryptoutils"
	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
)

// SplitSeed splits both seed generations into parts shares, any threshold of
// which rebuild them. The shares are key material: hand each to one
// administrator and never store them together.
func (k *Keychain) SplitSeed(parts, threshold int) ([][]byte, error) {
	if threshold < 2 {
		return nil, fmt.Errorf("%w: threshold must be at least 2", interfaces.ErrInvalidInput)
	}
	if parts < threshold {
		return nil, fmt.Errorf("%w: total shares must be at least equal to threshold", interfaces.ErrInvalidInput)
	}

	k.mu.RLock()
	if !k.loaded {
		k.mu.RUnlock()
		return nil, interfaces.ErrNotInitialized
	}
	blob := encodeSeeds(k.seeds.Genesis, k.seeds.Current, k.seedID)
	k.mu.RUnlock()
	defer cryptoutils.Wipe(blob)

	shares, err := shamir.Split(blob, parts, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to split seed: %w", err)
	}
	return shares, nil
}

// Recovery collects administrator-signed seed shares until the threshold is
// reached and then restores the seeds into a keychain.
type Recovery struct {
	mu        sync.Mutex
	threshold int
	admins    map[string][]byte
	shares    map[string][]byte
	log       *slog.Logger
}

// NewRecovery creates a recovery session accepting shares signed by one of
// the given PEM encoded ECDSA or Ed25519 administrator keys.
func NewRecovery(threshold int, adminPubKeysPEM [][]byte, log *slog.Logger) (*Recovery, error) {
	if threshold < 2 {
		return nil, fmt.Errorf("%w: threshold must be at least 2", interfaces.ErrInvalidConfig)
	}
	if len(adminPubKeysPEM) < threshold {
		return nil, fmt.Errorf("%w: fewer administrators than threshold", interfaces.ErrInvalidConfig)
	}

	r := &Recovery{
		threshold: threshold,
		admins:    make(map[string][]byte),
		shares:    make(map[string][]byte),
		log:       log,
	}
	for _, publicKeyPEM := range adminPubKeysPEM {
		if _, err := parseAdminKey(publicKeyPEM); err != nil {
			return nil, fmt.Errorf("%w: invalid admin pubkey: %v", interfaces.ErrInvalidConfig, err)
		}
		r.admins[fingerprint(publicKeyPEM)] = publicKeyPEM
	}
	return r, nil
}

// SubmitShare verifies the administrator's signature over share and stores
// it. One share is kept per administrator. It reports whether enough shares
// are present to restore.
func (r *Recovery) SubmitShare(share, signature, adminPubKeyPEM []byte) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fp := fingerprint(adminPubKeyPEM)
	registered, found := r.admins[fp]
	if !found {
		return false, fmt.Errorf("%w: unregistered admin public key", interfaces.ErrInvalidInput)
	}
	if !bytes.Equal(registered, adminPubKeyPEM) {
		return false, fmt.Errorf("%w: invalid pubkey passed for a matching fingerprint", interfaces.ErrInvalidInput)
	}

	pubKey, err := parseAdminKey(adminPubKeyPEM)
	if err != nil {
		return false, err
	}
	if !verifyShare(pubKey, share, signature) {
		return false, fmt.Errorf("%w: invalid share signature", interfaces.ErrInvalidInput)
	}

	r.shares[fp] = bytes.Clone(share)
	r.log.Info("Accepted seed share",
		slog.String("admin", fp[:16]),
		slog.Int("received", len(r.shares)),
		slog.Int("threshold", r.threshold))
	return len(r.shares) >= r.threshold, nil
}

// Restore combines the collected shares and installs the seeds into k.
// The shares are wiped whether or not the restore succeeds.
func (r *Recovery) Restore(ctx context.Context, k *Keychain) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.shares) < r.threshold {
		return fmt.Errorf("%w: have %d of %d shares", interfaces.ErrNotInitialized, len(r.shares), r.threshold)
	}

	shares := make([][]byte, 0, len(r.shares))
	for _, share := range r.shares {
		shares = append(shares, share)
	}
	defer func() {
		for fp, share := range r.shares {
			cryptoutils.Wipe(share)
			delete(r.shares, fp)
		}
	}()

	blob, err := shamir.Combine(shares)
	if err != nil {
		return fmt.Errorf("failed to reconstruct seed: %w", err)
	}
	defer cryptoutils.Wipe(blob)

	genesis, current, seedID, err := decodeSeeds(blob)
	if err != nil {
		return fmt.Errorf("reconstructed seed is invalid: %w", err)
	}
	return k.SetSeeds(ctx, genesis, current, seedID)
}

// SignShare signs a share with an administrator's ECDSA key.
func SignShare(share []byte, privateKey *ecdsa.PrivateKey) ([]byte, error) {
	digest := sha256.Sum256(share)
	return ecdsa.SignASN1(rand.Reader, privateKey, digest[:])
}

func verifyShare(pubKey any, share, signature []byte) bool {
	switch key := pubKey.(type) {
	case *ecdsa.PublicKey:
		digest := sha256.Sum256(share)
		return ecdsa.VerifyASN1(key, digest[:], signature)
	case ed25519.PublicKey:
		return ed25519.Verify(key, share, signature)
	default:
		return false
	}
}

func parseAdminKey(publicKeyPEM []byte) (any, error) {
	block, _ := pem.Decode(publicKeyPEM)
	if block == nil {
		return nil, errors.New("failed to decode admin public key PEM")
	}

	pubKey, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse admin public key: %w", err)
	}

	switch pubKey.(type) {
	case *ecdsa.PublicKey, ed25519.PublicKey:
		return pubKey, nil
	default:
		return nil, errors.New("admin public key is neither ECDSA nor ED25519 key")
	}
}

func fingerprint(publicKeyPEM []byte) string {
	sum := sha256.Sum256(publicKeyPEM)
	return hex.EncodeToString(sum[:])
}
