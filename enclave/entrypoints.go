package enclave

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/scrtlabs/SecretNetwork-sub003/contractkey"
	"github.com/scrtlabs/SecretNetwork-sub003/doorbell"
	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
	"github.com/scrtlabs/SecretNetwork-sub003/secretmsg"
	"github.com/scrtlabs/SecretNetwork-sub003/seedexchange"
)

const (
	// MaxCertificateSize bounds certificates and combined bundles.
	MaxCertificateSize = 1 << 20
	// MaxCodeSize bounds contract code handed to key derivation.
	MaxCodeSize = 8 << 20
	// MaxMessageSize bounds contract inputs and outputs.
	MaxMessageSize = 4 << 20
)

func checkSize(name string, b []byte, minSize, maxSize int) error {
	if len(b) < minSize {
		return fmt.Errorf("%w: %s is %d bytes, need at least %d", interfaces.ErrInvalidInput, name, len(b), minSize)
	}
	if maxSize > 0 && len(b) > maxSize {
		return fmt.Errorf("%w: %s is %d bytes, limit is %d", interfaces.ErrInvalidInput, name, len(b), maxSize)
	}
	return nil
}

func checkExact(name string, b []byte, size int) error {
	if len(b) != size {
		return fmt.Errorf("%w: %s must be %d bytes, got %d", interfaces.ErrInvalidInput, name, size, len(b))
	}
	return nil
}

// InitBootstrap creates the network seed on the first node and returns the
// contract I/O public key.
func (e *Enclave) InitBootstrap(ctx context.Context) Result {
	return e.call(ctx, nil, "init_bootstrap", func(*doorbell.CallContext) ([]byte, error) {
		if err := e.keys.Bootstrap(ctx); err != nil {
			return nil, err
		}
		pub, err := e.codec.IOPublicKey()
		if err != nil {
			return nil, err
		}
		e.log.Info("Bootstrapped network seed", slog.String("io_public_key", pub.String()))
		return pub.Bytes(), nil
	})
}

// Start loads sealed seeds on restart. A node without sealed seeds reports
// a configuration error.
func (e *Enclave) Start(ctx context.Context) Result {
	return e.call(ctx, nil, "start", func(*doorbell.CallContext) ([]byte, error) {
		return nil, e.keys.Initialize(ctx)
	})
}

func (e *Enclave) registrationRequester(ctx context.Context) (*seedexchange.Requester, error) {
	e.reqMu.Lock()
	defer e.reqMu.Unlock()

	if e.requester != nil {
		return e.requester, nil
	}
	kp, err := e.keys.RegistrationKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("no registration key: %w", err)
	}
	r, err := seedexchange.NewRequesterWithKey(kp, e.attester, e.keys, e.network, e.log)
	if err != nil {
		return nil, err
	}
	e.requester = r
	return r, nil
}

// CreateRegistrationKey creates and seals the key a joining node registers
// with, and returns its public half.
func (e *Enclave) CreateRegistrationKey(ctx context.Context) Result {
	return e.call(ctx, nil, "create_registration_key", func(*doorbell.CallContext) ([]byte, error) {
		kp, err := e.keys.CreateRegistrationKey(ctx)
		if err != nil {
			return nil, err
		}
		e.reqMu.Lock()
		e.requester = nil
		e.reqMu.Unlock()
		return kp.Public[:], nil
	})
}

// AttestationReport returns the attestation certificate binding the
// registration key.
func (e *Enclave) AttestationReport(ctx context.Context) Result {
	return e.call(ctx, nil, "attestation_report", func(*doorbell.CallContext) ([]byte, error) {
		r, err := e.registrationRequester(ctx)
		if err != nil {
			return nil, err
		}
		return r.Attest()
	})
}

// InitNode installs the seeds a provider sent in reply to this node's
// attestation certificate. providerKey must equal the configured network key.
func (e *Enclave) InitNode(ctx context.Context, payload, providerKey []byte) Result {
	return e.call(ctx, nil, "init_node", func(*doorbell.CallContext) ([]byte, error) {
		if err := checkExact("seed payload", payload, seedexchange.PayloadSize); err != nil {
			return nil, err
		}
		pub, err := interfaces.NewPublicKeyFromBytes(providerKey)
		if err != nil {
			return nil, err
		}
		r, err := e.registrationRequester(ctx)
		if err != nil {
			return nil, err
		}
		if err := r.Accept(ctx, payload, pub); err != nil {
			return nil, err
		}
		io, err := e.codec.IOPublicKey()
		if err != nil {
			return nil, err
		}
		return io.Bytes(), nil
	})
}

// AuthenticateNewNode verifies a joining node's certificate and returns the
// encrypted seed payload for it.
func (e *Enclave) AuthenticateNewNode(ctx context.Context, parent *doorbell.CallContext, cert []byte) Result {
	return e.call(ctx, parent, "authenticate_new_node", func(*doorbell.CallContext) ([]byte, error) {
		if err := checkSize("certificate", cert, 1, MaxCertificateSize); err != nil {
			return nil, err
		}
		return e.provider.Authenticate(ctx, cert)
	})
}

// SeedExchangePublicKey is the key joining nodes expect seed payloads from.
func (e *Enclave) SeedExchangePublicKey() (interfaces.PublicKey, error) {
	return e.provider.PublicKey()
}

// RotateSeed replaces the current seed generation. The genesis seed and
// everything derived from it stays unchanged.
func (e *Enclave) RotateSeed(ctx context.Context) Result {
	return e.call(ctx, nil, "rotate_seed", func(*doorbell.CallContext) ([]byte, error) {
		id, err := e.keys.Rotate(ctx)
		if err != nil {
			return nil, err
		}
		return []byte{byte(id >> 8), byte(id)}, nil
	})
}

// GenerateContractKey binds signer, code and height into a contract key.
func (e *Enclave) GenerateContractKey(ctx context.Context, parent *doorbell.CallContext, signer, code []byte, height uint64) Result {
	return e.call(ctx, parent, "generate_contract_key", func(*doorbell.CallContext) ([]byte, error) {
		if err := checkSize("signer", signer, 1, 256); err != nil {
			return nil, err
		}
		if err := checkSize("code", code, 1, MaxCodeSize); err != nil {
			return nil, err
		}
		key, err := e.binder.Generate(signer, code, height)
		if err != nil {
			return nil, err
		}
		return key[:], nil
	})
}

// ValidateContractKey checks that key authenticates code for contract.
func (e *Enclave) ValidateContractKey(ctx context.Context, parent *doorbell.CallContext, contract string, key, code []byte) Result {
	return e.call(ctx, parent, "validate_contract_key", func(*doorbell.CallContext) ([]byte, error) {
		ck, err := contractkey.ParseContractKey(key)
		if err != nil {
			return nil, err
		}
		if err := checkSize("code", code, 1, MaxCodeSize); err != nil {
			return nil, err
		}
		return nil, e.binder.ValidateFor(contract, ck, code)
	})
}

// DecryptInput opens a contract call input.
func (e *Enclave) DecryptInput(ctx context.Context, parent *doorbell.CallContext, contract, codeHash string, input []byte) Result {
	return e.call(ctx, parent, "decrypt_input", func(*doorbell.CallContext) ([]byte, error) {
		if err := checkSize("input", input, 1, MaxMessageSize); err != nil {
			return nil, err
		}
		plaintext, _, err := e.codec.DecryptInput(e.plaintext, contract, codeHash, input)
		return plaintext, err
	})
}

// EncryptOutput encrypts a contract result for the caller of request, the
// encrypted input the result answers. The reply is sealed under the I/O key
// generation that opens request, so callers holding the genesis key can
// read it after a rotation.
func (e *Enclave) EncryptOutput(ctx context.Context, parent *doorbell.CallContext, output, request []byte) Result {
	return e.call(ctx, parent, "encrypt_output", func(*doorbell.CallContext) ([]byte, error) {
		if err := checkSize("output", output, 1, MaxMessageSize); err != nil {
			return nil, err
		}
		if err := checkSize("request", request, secretmsg.MinSize, MaxMessageSize); err != nil {
			return nil, err
		}
		msg, err := secretmsg.Parse(request)
		if err != nil {
			return nil, err
		}
		gen, err := e.codec.RequestGeneration(msg)
		if err != nil {
			return nil, err
		}
		return e.codec.EncryptOutput(output, gen, msg.Nonce, msg.PublicKey)
	})
}
