package flags

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/scrtlabs/SecretNetwork-sub003/attestation"
	"github.com/scrtlabs/SecretNetwork-sub003/doorbell"
	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
	"github.com/scrtlabs/SecretNetwork-sub003/secretmsg"
	"gopkg.in/yaml.v3"
)

// NodeConfig is the YAML node configuration. Flags override the fields they
// name.
type NodeConfig struct {
	// Storage lists sealed store URIs; several build a replicating store.
	Storage []string `yaml:"storage"`
	// PlatformSecretFile holds the hex platform secret the sealing key derives from.
	PlatformSecretFile string `yaml:"platform_secret_file"`

	Attestation AttestationConfig  `yaml:"attestation"`
	Policy      attestation.Policy `yaml:"policy"`
	Doorbell    DoorbellConfig     `yaml:"doorbell"`

	// PlaintextFallback lists the contract versions allowed to receive
	// unencrypted input.
	PlaintextFallback []secretmsg.PlaintextEntry `yaml:"plaintext_fallback"`
	Overrides         OverridesConfig            `yaml:"overrides"`
	Providers         ProvidersConfig            `yaml:"providers"`
	RateLimit         RateLimitConfig            `yaml:"rate_limit"`
}

type AttestationConfig struct {
	// Type is attestation.TypeSoftware or attestation.TypeDCAP.
	Type          string `yaml:"type"`
	RemoteAddress string `yaml:"remote_address"`

	// SoftwareKeyFile holds the hex Ed25519 seed of a software attester.
	SoftwareKeyFile string                     `yaml:"software_key_file"`
	Claims          attestation.SoftwareClaims `yaml:"claims"`
	// TrustedKeys are Ed25519 keys of other software attesters in the network.
	TrustedKeys []attestation.HexBytes `yaml:"trusted_keys"`
}

type DoorbellConfig struct {
	Capacity int           `yaml:"capacity"`
	Timeout  time.Duration `yaml:"timeout"`
	MaxDepth int           `yaml:"max_depth"`
}

// OverridesConfig points at a signed override policy document.
type OverridesConfig struct {
	File    string   `yaml:"file"`
	Signers []string `yaml:"signers"`
}

// ProvidersConfig says where a joining node finds seed providers. URLs are
// tried first, then the SRV name.
type ProvidersConfig struct {
	// Key is the hex genesis seed exchange key of the network. Joining
	// refuses payloads from any other key.
	Key       string   `yaml:"key"`
	URLs      []string `yaml:"urls"`
	SRV       string   `yaml:"srv"`
	DNSServer string   `yaml:"dns_server"`
}

type RateLimitConfig struct {
	RPS     float64       `yaml:"rps"`
	Burst   int           `yaml:"burst"`
	IdleTTL time.Duration `yaml:"idle_ttl"`
}

// DefaultNodeConfig is used for every field the config file leaves out.
func DefaultNodeConfig() *NodeConfig {
	return &NodeConfig{
		Storage:     []string{"file:///var/lib/secret-enclave"},
		Attestation: AttestationConfig{Type: attestation.TypeDCAP},
		Doorbell: DoorbellConfig{
			Capacity: doorbell.DefaultCapacity,
			Timeout:  doorbell.DefaultTimeout,
			MaxDepth: doorbell.DefaultMaxDepth,
		},
		RateLimit: RateLimitConfig{RPS: 1, Burst: 5, IdleTTL: 10 * time.Minute},
	}
}

// LoadNodeConfig reads path over the defaults. An empty path returns the
// defaults.
func LoadNodeConfig(path string) (*NodeConfig, error) {
	cfg := DefaultNodeConfig()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading node config: %v", interfaces.ErrInvalidConfig, err)
	}
	if err := ParseNodeConfig(raw, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseNodeConfig decodes raw into cfg, rejecting unknown fields.
func ParseNodeConfig(raw []byte, cfg *NodeConfig) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("%w: parsing node config: %v", interfaces.ErrInvalidConfig, err)
	}
	return nil
}

// Validate checks the parts every command needs.
func (c *NodeConfig) Validate() error {
	if len(c.Storage) == 0 {
		return fmt.Errorf("%w: no storage configured", interfaces.ErrInvalidConfig)
	}
	if c.PlatformSecretFile == "" {
		return fmt.Errorf("%w: platform_secret_file is required", interfaces.ErrInvalidConfig)
	}
	if c.Doorbell.Capacity <= 0 || c.Doorbell.Timeout <= 0 {
		return fmt.Errorf("%w: doorbell capacity and timeout must be positive", interfaces.ErrInvalidConfig)
	}
	if c.Providers.Key != "" {
		if _, err := interfaces.NewPublicKeyFromHex(c.Providers.Key); err != nil {
			return fmt.Errorf("%w: providers.key: %v", interfaces.ErrInvalidConfig, err)
		}
	}
	switch c.Attestation.Type {
	case attestation.TypeSoftware:
		if c.Attestation.SoftwareKeyFile == "" {
			return fmt.Errorf("%w: software attestation needs software_key_file", interfaces.ErrInvalidConfig)
		}
		if c.Policy.Production {
			return fmt.Errorf("%w: software attestation cannot back a production policy", interfaces.ErrInvalidConfig)
		}
	case attestation.TypeDCAP:
	default:
		return fmt.Errorf("%w: unknown attestation type %q", interfaces.ErrInvalidConfig, c.Attestation.Type)
	}
	return c.Policy.Validate()
}
