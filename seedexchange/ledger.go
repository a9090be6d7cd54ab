package seedexchange

import (
	"context"
	"crypto/sha256"
	"sync"
)

// RegistrationLedger answers whether a certificate was submitted in the
// current verified block.
type RegistrationLedger interface {
	ContainsCertificate(ctx context.Context, cert []byte) (bool, error)
}

// BlockMessages is an in-memory RegistrationLedger fed with the
// registration messages of the latest verified block.
type BlockMessages struct {
	mu     sync.RWMutex
	height uint64
	certs  map[[32]byte]struct{}
}

func NewBlockMessages() *BlockMessages {
	return &BlockMessages{certs: map[[32]byte]struct{}{}}
}

// SetBlock replaces the known certificates with those of block height.
// Older heights are ignored.
func (b *BlockMessages) SetBlock(height uint64, certs [][]byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if height < b.height {
		return false
	}

	b.height = height
	b.certs = make(map[[32]byte]struct{}, len(certs))
	for _, c := range certs {
		b.certs[sha256.Sum256(c)] = struct{}{}
	}
	return true
}

func (b *BlockMessages) Height() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.height
}

func (b *BlockMessages) ContainsCertificate(_ context.Context, cert []byte) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.certs[sha256.Sum256(cert)]
	return ok, nil
}
