package storage

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
)

// StorageBackendFactory creates blob backends from location URIs and
// combines several of them for redundant storage.
type StorageBackendFactory struct {
	log *slog.Logger
}

// NewStorageBackendFactory creates a new factory instance.
func NewStorageBackendFactory(logger *slog.Logger) *StorageBackendFactory {
	return &StorageBackendFactory{log: logger}
}

// StorageBackendFor creates a backend from a location URI.
//
// Supported schemes:
//   - file:///abs/path or file://./relative/path
//   - vault://host:port/mount/path?tls=true&token_env=VAULT_TOKEN&cert=/c.pem&key=/k.pem
//   - s3://[ACCESS_KEY:SECRET_KEY@]bucket/prefix?region=us-east-1&endpoint=http://minio:9000
//   - keyring://service?backend=file&dir=/var/lib/enclave/keyring&password_env=KEYRING_PASSWORD
func (sf *StorageBackendFactory) StorageBackendFor(uri string) (interfaces.BlobBackend, error) {
	loc, err := interfaces.NewStorageBackendLocation(uri)
	if err != nil {
		return nil, err
	}

	sf.log.Debug("Creating storage backend", slog.String("scheme", loc.Scheme), slog.String("host", loc.Host))

	switch loc.Scheme {
	case "file":
		return sf.createFileBackend(loc)
	case "vault":
		return sf.createVaultBackend(loc)
	case "s3":
		return sf.createS3Backend(loc)
	case "keyring":
		return sf.createKeyringBackend(loc)
	default:
		return nil, fmt.Errorf("%w: unsupported backend scheme %s", interfaces.ErrInvalidLocationURI, loc.Scheme)
	}
}

// CreateMultiBackend creates a replicating backend from several URIs.
// Unlike a cache, sealed storage must not silently lose a replica, so any
// URI that fails to produce a backend is a configuration error.
func (sf *StorageBackendFactory) CreateMultiBackend(uris []string) (interfaces.BlobBackend, error) {
	if len(uris) == 0 {
		return nil, fmt.Errorf("%w: no storage backends configured", interfaces.ErrInvalidConfig)
	}

	backends := make([]interfaces.BlobBackend, 0, len(uris))
	for _, uri := range uris {
		backend, err := sf.StorageBackendFor(uri)
		if err != nil {
			sf.log.Error("Failed to create storage backend", "err", err, slog.String("locationURI", redactURI(uri)))
			return nil, err
		}
		backends = append(backends, backend)
	}

	if len(backends) == 1 {
		return backends[0], nil
	}
	return NewMultiBackend(backends, sf.log), nil
}

// createFileBackend handles file:///absolute/path/ and file://./relative/path/.
func (sf *StorageBackendFactory) createFileBackend(loc interfaces.StorageBackendLocation) (interfaces.BlobBackend, error) {
	path := loc.Path
	if loc.Host != "" {
		path = loc.Host + "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return nil, fmt.Errorf("%w: empty path in file URI", interfaces.ErrInvalidLocationURI)
	}

	return NewFileBackend(path, sf.log)
}

func (sf *StorageBackendFactory) createVaultBackend(loc interfaces.StorageBackendLocation) (interfaces.BlobBackend, error) {
	scheme := "http"
	if loc.GetParamBool("tls") {
		scheme = "https"
	}
	address := fmt.Sprintf("%s://%s", scheme, loc.Host)

	parts := strings.SplitN(strings.Trim(loc.Path, "/"), "/", 2)
	mount := parts[0]
	var dataPath string
	if len(parts) == 2 {
		dataPath = parts[1]
	}

	var auth VaultAuth
	if env := loc.GetParam("token_env"); env != "" {
		auth.Token = os.Getenv(env)
		if auth.Token == "" {
			return nil, fmt.Errorf("%w: %s is empty", interfaces.ErrInvalidConfig, env)
		}
	}
	if certFile, keyFile := loc.GetParam("cert"), loc.GetParam("key"); certFile != "" || keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("%w: loading Vault client certificate: %v", interfaces.ErrInvalidConfig, err)
		}
		auth.ClientCert = &cert
	}

	return NewVaultBackend(address, mount, dataPath, auth, sf.log)
}

// createS3Backend handles s3://[ACCESS_KEY:SECRET_KEY@]bucket/prefix?region=...&endpoint=....
func (sf *StorageBackendFactory) createS3Backend(loc interfaces.StorageBackendLocation) (interfaces.BlobBackend, error) {
	region := loc.GetParam("region")
	if region == "" {
		region = "us-east-1"
	}

	var accessKey, secretKey string
	if loc.Auth != "" {
		accessKey, secretKey, _ = strings.Cut(loc.Auth, ":")
	}

	return NewS3Backend(loc.Host, strings.TrimPrefix(loc.Path, "/"), region, loc.GetParam("endpoint"), accessKey, secretKey, sf.log)
}

func (sf *StorageBackendFactory) createKeyringBackend(loc interfaces.StorageBackendLocation) (interfaces.BlobBackend, error) {
	return OpenKeyringBackend(KeyringOptions{
		Service:         loc.Host,
		Backend:         loc.GetParam("backend"),
		FileDir:         loc.GetParam("dir"),
		FilePasswordEnv: loc.GetParam("password_env"),
	}, sf.log)
}

func redactURI(uri string) string {
	loc, err := interfaces.NewStorageBackendLocation(uri)
	if err != nil || loc.Auth == "" {
		return uri
	}
	return strings.Replace(uri, loc.Auth+"@", "***@", 1)
}
