package flags

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/scrtlabs/SecretNetwork-sub003/attestation"
	"github.com/scrtlabs/SecretNetwork-sub003/common"
	"github.com/scrtlabs/SecretNetwork-sub003/contractkey"
	"github.com/scrtlabs/SecretNetwork-sub003/doorbell"
	"github.com/scrtlabs/SecretNetwork-sub003/enclave"
	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
	"github.com/scrtlabs/SecretNetwork-sub003/keychain"
	"github.com/scrtlabs/SecretNetwork-sub003/secretmsg"
	"github.com/scrtlabs/SecretNetwork-sub003/storage"
)

// Node holds the components a node command works with.
type Node struct {
	Config   *NodeConfig
	Keychain *keychain.Keychain
	Verifier *attestation.Verifier
	Enclave  *enclave.Enclave
}

func readHexFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(string(raw)), "0x"))
}

// OpenStore builds the sealed store from the configured storage URIs.
func (c *NodeConfig) OpenStore(log *slog.Logger) (interfaces.SealedStore, error) {
	backend, err := storage.NewStorageBackendFactory(log).CreateMultiBackend(c.Storage)
	if err != nil {
		return nil, err
	}
	secret, err := readHexFile(c.PlatformSecretFile)
	if err != nil {
		return nil, fmt.Errorf("%w: platform secret: %v", interfaces.ErrInvalidConfig, err)
	}

	identity := []byte(c.Attestation.Claims.Measurement)
	if len(identity) == 0 {
		identity = []byte(common.PackageName)
	}
	return storage.NewSealer(backend, secret, identity, log)
}

// BuildAttester creates the configured attestation provider.
func (c *NodeConfig) BuildAttester() (attestation.Attester, error) {
	if c.Attestation.Type != attestation.TypeSoftware {
		return attestation.AttesterFor(c.Attestation.Type, c.Attestation.RemoteAddress)
	}

	seed, err := readHexFile(c.Attestation.SoftwareKeyFile)
	if err != nil || len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: software attester key must be a hex %d-byte seed", interfaces.ErrInvalidConfig, ed25519.SeedSize)
	}
	trusted := make([]ed25519.PublicKey, 0, len(c.Attestation.TrustedKeys))
	for _, k := range c.Attestation.TrustedKeys {
		if len(k) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("%w: trusted software key has %d bytes", interfaces.ErrInvalidConfig, len(k))
		}
		trusted = append(trusted, ed25519.PublicKey(k))
	}
	return attestation.NewSoftwareAttester(ed25519.NewKeyFromSeed(seed), c.Attestation.Claims, trusted...), nil
}

// LoadOverrides verifies the signed override policy, if one is configured.
func (c *NodeConfig) LoadOverrides() (*contractkey.OverridePolicy, error) {
	if c.Overrides.File == "" {
		return nil, nil
	}
	if len(c.Overrides.Signers) == 0 {
		return nil, fmt.Errorf("%w: override policy without allowed signers", interfaces.ErrInvalidConfig)
	}

	signers := make([]ethcommon.Address, 0, len(c.Overrides.Signers))
	for _, s := range c.Overrides.Signers {
		if !ethcommon.IsHexAddress(s) {
			return nil, fmt.Errorf("%w: invalid override signer %q", interfaces.ErrInvalidConfig, s)
		}
		signers = append(signers, ethcommon.HexToAddress(s))
	}

	raw, err := os.ReadFile(c.Overrides.File)
	if err != nil {
		return nil, fmt.Errorf("%w: reading override policy: %v", interfaces.ErrInvalidConfig, err)
	}
	return contractkey.LoadPolicy(raw, signers)
}

// BuildNode wires the sealed store, keychain, attestation and enclave from
// the config. Seeds are not loaded.
func BuildNode(cfg *NodeConfig, log *slog.Logger) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := cfg.OpenStore(log)
	if err != nil {
		return nil, err
	}
	attester, err := cfg.BuildAttester()
	if err != nil {
		return nil, err
	}
	verifier, err := attestation.NewVerifier(cfg.Policy, log, attester)
	if err != nil {
		return nil, err
	}
	bell, err := doorbell.New(cfg.Doorbell.Capacity, cfg.Doorbell.Timeout)
	if err != nil {
		return nil, err
	}
	overrides, err := cfg.LoadOverrides()
	if err != nil {
		return nil, err
	}

	keys := keychain.New(store, log)
	var network interfaces.PublicKey
	if cfg.Providers.Key != "" {
		if network, err = interfaces.NewPublicKeyFromHex(cfg.Providers.Key); err != nil {
			return nil, fmt.Errorf("%w: providers.key: %v", interfaces.ErrInvalidConfig, err)
		}
	}

	e, err := enclave.New(enclave.Config{
		Keychain:   keys,
		Attester:   attester,
		Verifier:   verifier,
		Doorbell:   bell,
		Overrides:  overrides,
		Plaintext:  secretmsg.NewPlaintextPolicy(cfg.PlaintextFallback, log),
		NetworkKey: network,
		MaxDepth:   cfg.Doorbell.MaxDepth,
		Log:        log,
	})
	if err != nil {
		return nil, err
	}

	return &Node{Config: cfg, Keychain: keys, Verifier: verifier, Enclave: e}, nil
}
