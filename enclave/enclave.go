package enclave

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/scrtlabs/SecretNetwork-sub003/attestation"
	"github.com/scrtlabs/SecretNetwork-sub003/contractkey"
	"github.com/scrtlabs/SecretNetwork-sub003/doorbell"
	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
	"github.com/scrtlabs/SecretNetwork-sub003/keychain"
	"github.com/scrtlabs/SecretNetwork-sub003/metrics"
	"github.com/scrtlabs/SecretNetwork-sub003/secretmsg"
	"github.com/scrtlabs/SecretNetwork-sub003/seedexchange"
)

// DefaultReserveSize is the memory held back for the failure path.
const DefaultReserveSize = 1 << 20

// Config wires the components of an Enclave. Keychain, Attester, Verifier
// and Doorbell are required.
type Config struct {
	Keychain  *keychain.Keychain
	Attester  attestation.Attester
	Verifier  *attestation.Verifier
	Doorbell  *doorbell.Doorbell
	Ledger    seedexchange.RegistrationLedger
	Overrides *contractkey.OverridePolicy
	Plaintext *secretmsg.PlaintextPolicy
	// NetworkKey is the genesis seed exchange key of the network. A joining
	// node only installs seeds encrypted under it; InitNode fails without it.
	NetworkKey interfaces.PublicKey

	MaxDepth    int
	ReserveSize int
	Log         *slog.Logger
}

// Enclave is the trusted core behind a small set of byte oriented
// entrypoints. Every entrypoint is admitted through the doorbell and never
// panics across the boundary.
type Enclave struct {
	keys      *keychain.Keychain
	attester  attestation.Attester
	bell      *doorbell.Doorbell
	codec     *secretmsg.Codec
	binder    *contractkey.Binder
	provider  *seedexchange.Provider
	plaintext *secretmsg.PlaintextPolicy
	network   interfaces.PublicKey
	maxDepth  int
	log       *slog.Logger

	reqMu     sync.Mutex
	requester *seedexchange.Requester

	reserveMu   sync.Mutex
	reserve     []byte
	reserveSize int
}

func New(cfg Config) (*Enclave, error) {
	if cfg.Keychain == nil || cfg.Attester == nil || cfg.Verifier == nil || cfg.Doorbell == nil {
		return nil, fmt.Errorf("%w: keychain, attester, verifier and doorbell are required", interfaces.ErrInvalidConfig)
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxDepth < 1 {
		cfg.MaxDepth = doorbell.DefaultMaxDepth
	}
	if cfg.ReserveSize <= 0 {
		cfg.ReserveSize = DefaultReserveSize
	}
	plaintext := cfg.Plaintext
	if plaintext == nil {
		plaintext = secretmsg.NewPlaintextPolicy(nil, log)
	}

	e := &Enclave{
		keys:        cfg.Keychain,
		attester:    cfg.Attester,
		bell:        cfg.Doorbell,
		codec:       secretmsg.NewCodec(cfg.Keychain),
		binder:      contractkey.NewBinder(cfg.Keychain, cfg.Overrides, log),
		provider:    seedexchange.NewProvider(cfg.Keychain, cfg.Keychain, cfg.Verifier, cfg.Ledger, log),
		plaintext:   plaintext,
		network:     cfg.NetworkKey,
		maxDepth:    cfg.MaxDepth,
		log:         log,
		reserveSize: cfg.ReserveSize,
	}
	e.restoreReserve()
	return e, nil
}

// CallContext returns a fresh root context for a host call.
func (e *Enclave) CallContext() *doorbell.CallContext {
	return doorbell.NewCallContext(e.bell, e.maxDepth)
}

// Binder exposes contract key operations that need no admission, such as
// override policy updates.
func (e *Enclave) Binder() *contractkey.Binder {
	return e.binder
}

// Plaintext is the plaintext input policy in force.
func (e *Enclave) Plaintext() *secretmsg.PlaintextPolicy {
	return e.plaintext
}

func (e *Enclave) restoreReserve() {
	e.reserveMu.Lock()
	defer e.reserveMu.Unlock()
	if e.reserve == nil {
		e.reserve = make([]byte, e.reserveSize)
	}
}

func (e *Enclave) releaseReserve() {
	e.reserveMu.Lock()
	e.reserve = nil
	e.reserveMu.Unlock()
	debug.FreeOSMemory()
}

// call runs fn one level below parent, admitted by the doorbell. A nil
// parent starts a new outermost call.
func (e *Enclave) call(ctx context.Context, parent *doorbell.CallContext, name string, fn func(cc *doorbell.CallContext) ([]byte, error)) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			e.releaseReserve()
			e.log.Error("Recovered panic in entrypoint",
				slog.String("entrypoint", name),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			err := fmt.Errorf("panic in %s: %v", name, r)
			if perr, ok := r.(error); ok && interfaces.KindOf(perr) == interfaces.KindResource {
				err = fmt.Errorf("%w: %v", interfaces.ErrResourceExhausted, perr)
			}
			res = resultOf(nil, err)
		}
		metrics.EntrypointCalls.WithLabelValues(name, res.Status.String()).Inc()
	}()

	e.restoreReserve()

	if parent == nil {
		parent = e.CallContext()
	}
	cc, err := parent.Enter()
	if err != nil {
		return resultOf(nil, err)
	}

	token, err := e.bell.Acquire(ctx, cc)
	if err != nil {
		return resultOf(nil, err)
	}
	defer token.Release()

	out, err := fn(cc)
	if err != nil {
		e.log.Debug("Entrypoint failed", slog.String("entrypoint", name), "err", err)
	}
	return resultOf(out, err)
}
