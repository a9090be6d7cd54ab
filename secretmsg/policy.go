package secretmsg

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
)

// PlaintextEntry allows unencrypted input for one contract at one code version.
type PlaintextEntry struct {
	Contract string `yaml:"contract"`
	CodeHash string `yaml:"code_hash"`
}

// PlaintextPolicy decides whether input that is not a SecretMessage may be
// passed through. The zero policy denies everything.
type PlaintextPolicy struct {
	mu      sync.RWMutex
	allowed map[PlaintextEntry]struct{}
	log     *slog.Logger
}

func NewPlaintextPolicy(entries []PlaintextEntry, log *slog.Logger) *PlaintextPolicy {
	p := &PlaintextPolicy{log: log}
	p.Set(entries)
	return p
}

func normalize(e PlaintextEntry) PlaintextEntry {
	return PlaintextEntry{
		Contract: strings.ToLower(strings.TrimSpace(e.Contract)),
		CodeHash: strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e.CodeHash), "0x")),
	}
}

// Set replaces the allow list.
func (p *PlaintextPolicy) Set(entries []PlaintextEntry) {
	allowed := make(map[PlaintextEntry]struct{}, len(entries))
	for _, e := range entries {
		allowed[normalize(e)] = struct{}{}
	}
	p.mu.Lock()
	p.allowed = allowed
	p.mu.Unlock()
}

// Allows reports whether contract at codeHash may receive plaintext.
func (p *PlaintextPolicy) Allows(contract, codeHash string) bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.allowed[normalize(PlaintextEntry{Contract: contract, CodeHash: codeHash})]
	return ok
}

// OpenedRequest is an opened SecretMessage together with the I/O key generation
// its reply must be sealed under.
type OpenedRequest struct {
	Message    *SecretMessage
	Generation interfaces.Generation
}

// DecryptInput opens input as a SecretMessage. Input too short to be one is
// passed through only when the policy allows it for this contract version;
// each pass-through is logged and returns a nil OpenedRequest. A well-formed
// message that fails to decrypt is always an error.
func (c *Codec) DecryptInput(policy *PlaintextPolicy, contract, codeHash string, input []byte) ([]byte, *OpenedRequest, error) {
	msg, err := Parse(input)
	if err != nil {
		if !policy.Allows(contract, codeHash) {
			return nil, nil, fmt.Errorf("%w: plaintext input not allowed for %s", interfaces.ErrDecryption, contract)
		}
		policy.log.Warn("Accepting plaintext contract input",
			slog.String("contract", contract),
			slog.String("code_hash", codeHash),
			slog.Int("size", len(input)))
		return input, nil, nil
	}

	plaintext, gen, err := c.Decrypt(msg)
	if err != nil {
		return nil, nil, err
	}
	return plaintext, &OpenedRequest{Message: msg, Generation: gen}, nil
}
