package storage

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
)

// VaultBackend stores sealed blobs in a HashiCorp Vault KV v2 mount.
// Vault only ever holds the sealed envelope, never plaintext key material.
type VaultBackend struct {
	client      *api.Client
	mountPath   string
	dataPath    string
	log         *slog.Logger
	locationURI string
}

// VaultAuth selects how the node authenticates to Vault. Token takes
// precedence; otherwise the client certificate is presented.
type VaultAuth struct {
	Token      string
	ClientCert *tls.Certificate
}

// NewVaultBackend creates a new Vault storage backend.
//
// Parameters:
//   - address: Vault server address (e.g. https://vault.example.com:8200)
//   - mountPath: KV v2 mount path (e.g. "secret")
//   - dataPath: path within the mount (e.g. "enclave/node-1")
//   - auth: token or client certificate
//   - log: structured logger
func NewVaultBackend(address, mountPath, dataPath string, auth VaultAuth, log *slog.Logger) (*VaultBackend, error) {
	config := api.DefaultConfig()
	config.Address = address

	transport := &http.Transport{}
	if auth.ClientCert != nil {
		transport.TLSClientConfig = &tls.Config{
			Certificates: []tls.Certificate{*auth.ClientCert},
			MinVersion:   tls.VersionTLS12,
		}
	}
	config.HttpClient = &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Vault client: %v", interfaces.ErrInvalidConfig, err)
	}
	if auth.Token != "" {
		client.SetToken(auth.Token)
	}

	mountPath = strings.Trim(mountPath, "/")
	dataPath = strings.Trim(dataPath, "/")
	if mountPath == "" {
		return nil, fmt.Errorf("%w: empty Vault mount path", interfaces.ErrInvalidConfig)
	}

	return &VaultBackend{
		client:      client,
		mountPath:   mountPath,
		dataPath:    dataPath,
		log:         log,
		locationURI: fmt.Sprintf("vault://%s/%s/%s", strings.TrimPrefix(strings.TrimPrefix(address, "https://"), "http://"), mountPath, dataPath),
	}, nil
}

func (b *VaultBackend) secretPath(name string) string {
	if b.dataPath == "" {
		return fmt.Sprintf("%s/data/%s", b.mountPath, name)
	}
	return fmt.Sprintf("%s/data/%s/%s", b.mountPath, b.dataPath, name)
}

func (b *VaultBackend) metadataPath(name string) string {
	if b.dataPath == "" {
		return fmt.Sprintf("%s/metadata/%s", b.mountPath, name)
	}
	return fmt.Sprintf("%s/metadata/%s/%s", b.mountPath, b.dataPath, name)
}

// Get retrieves a blob from Vault.
func (b *VaultBackend) Get(ctx context.Context, name string) ([]byte, error) {
	if err := interfaces.ValidateSealedName(name); err != nil {
		return nil, err
	}

	path := b.secretPath(name)
	secret, err := b.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		b.log.Error("Failed to read from Vault", slog.String("path", path), "err", err)
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	if secret == nil || secret.Data == nil {
		return nil, interfaces.ErrSealedNotFound
	}

	// KV v2 returns a nil "data" for soft-deleted versions.
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok || data == nil {
		return nil, interfaces.ErrSealedNotFound
	}

	content, ok := data["content"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: invalid content format in Vault data", interfaces.ErrSealedCorrupt)
	}

	blob, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrSealedCorrupt, err)
	}

	b.log.Debug("Fetched sealed blob from Vault", slog.String("path", path), slog.Int("size", len(blob)))
	return blob, nil
}

// Put writes a blob to Vault. Vault acknowledges a write only once it is
// persisted by its storage backend.
func (b *VaultBackend) Put(ctx context.Context, name string, data []byte) error {
	if err := interfaces.ValidateSealedName(name); err != nil {
		return err
	}

	start := time.Now()
	path := b.secretPath(name)
	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"content": base64.StdEncoding.EncodeToString(data),
		},
	}

	if _, err := b.client.Logical().WriteWithContext(ctx, path, secretData); err != nil {
		b.log.Error("Failed to write to Vault", slog.String("path", path), "err", err)
		return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	b.log.Debug("Stored sealed blob in Vault",
		slog.String("path", path),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// Delete removes every version of the blob.
func (b *VaultBackend) Delete(ctx context.Context, name string) error {
	if err := interfaces.ValidateSealedName(name); err != nil {
		return err
	}

	if _, err := b.client.Logical().DeleteWithContext(ctx, b.metadataPath(name)); err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	return nil
}

// Available checks that Vault is initialized and unsealed.
func (b *VaultBackend) Available(ctx context.Context) bool {
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health, err := b.client.Sys().HealthWithContext(healthCtx)
	if err != nil {
		b.log.Debug("Vault health check failed", "err", err)
		return false
	}

	if !health.Initialized || health.Sealed {
		b.log.Debug("Vault is not available",
			slog.Bool("initialized", health.Initialized),
			slog.Bool("sealed", health.Sealed))
		return false
	}

	return true
}

// Name returns a unique identifier for this storage backend.
func (b *VaultBackend) Name() string {
	return fmt.Sprintf("vault-%s-%s", b.mountPath, b.dataPath)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *VaultBackend) LocationURI() string {
	return b.locationURI
}
