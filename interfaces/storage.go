package interfaces

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
)

var sealedNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// ValidateSealedName checks that name is usable as a sealed object name on every backend.
func ValidateSealedName(name string) error {
	if !sealedNamePattern.MatchString(name) {
		return fmt.Errorf("%w: invalid sealed object name %q", ErrInvalidInput, name)
	}
	return nil
}

// StorageBackendLocation represents URI for storage backend.
type StorageBackendLocation struct {
	Raw    string     // Original URI
	Scheme string     // Protocol
	Host   string     // Hostname
	Path   string     // Resource path
	Query  url.Values // Query parameters
	Auth   string     // Authentication info
}

// NewStorageBackendLocation creates a new storage location from a URI string with validation.
func NewStorageBackendLocation(uri string) (StorageBackendLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return StorageBackendLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	switch parsed.Scheme {
	case "file", "s3", "vault", "keyring":
	default:
		return StorageBackendLocation{}, fmt.Errorf("%w: unsupported storage scheme %q", ErrInvalidLocationURI, parsed.Scheme)
	}

	var auth string
	if parsed.User != nil {
		auth = parsed.User.String()
	}

	return StorageBackendLocation{
		Raw:    uri,
		Scheme: parsed.Scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
		Auth:   auth,
	}, nil
}

// String returns the original URI string.
func (loc StorageBackendLocation) String() string {
	return loc.Raw
}

// GetParam returns a query parameter value.
func (loc StorageBackendLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}

// GetParamBool returns a boolean query parameter value.
func (loc StorageBackendLocation) GetParamBool(name string) bool {
	value := loc.Query.Get(name)
	return value == "true" || value == "1" || value == "yes"
}

// BlobBackend stores opaque named blobs on untrusted storage.
// Backends never see plaintext secrets; the Sealer encrypts before Put.
type BlobBackend interface {
	// Put writes data under name, replacing any previous value.
	// It returns only after the write is durable or has failed.
	Put(ctx context.Context, name string, data []byte) error

	// Get returns the blob stored under name or ErrSealedNotFound.
	Get(ctx context.Context, name string) ([]byte, error)

	// Delete removes the blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// Available checks if backend is accessible.
	Available(ctx context.Context) bool

	// Name returns identifier for logging.
	Name() string

	// LocationURI returns URI identifying this backend.
	LocationURI() string
}

// SealedStore persists small secrets so that they are opaque outside the trust boundary.
type SealedStore interface {
	// Seal encrypts and durably stores data under name.
	Seal(ctx context.Context, name string, data []byte) error

	// Unseal loads and authenticates the secret stored under name.
	Unseal(ctx context.Context, name string) ([]byte, error)

	// Remove deletes the secret stored under name.
	Remove(ctx context.Context, name string) error

	// Available checks if the underlying storage is accessible.
	Available(ctx context.Context) bool

	// LocationURI returns URI identifying the underlying storage.
	LocationURI() string
}
