package interfaces

import (
	"errors"
)

var (
	// ErrNotInitialized is returned when key material is requested before the seed is loaded.
	ErrNotInitialized = errors.New("keychain not initialized")

	// ErrAlreadyInitialized is returned when a bootstrap is attempted on a node that already holds a seed.
	ErrAlreadyInitialized = errors.New("keychain already initialized")

	// ErrInvalidConfig is returned for bad storage paths, contradictory policies and similar startup errors.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrAttestation is returned when a peer attestation is rejected.
	// The wrapped message carries the operator-facing reason.
	ErrAttestation = errors.New("attestation rejected")

	// ErrDecryption is the single error surfaced for every authenticated decryption failure.
	ErrDecryption = errors.New("decryption error")

	// ErrInvalidInput is returned when an entrypoint receives malformed or undersized input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrBusy is returned when the enclave admission slots stay exhausted past the wait timeout.
	ErrBusy = errors.New("enclave busy")

	// ErrRecursionLimit is returned when nested calls exceed the configured depth ceiling.
	ErrRecursionLimit = errors.New("recursion limit exceeded")

	// ErrResourceExhausted is returned when a call ran out of memory or another hard resource.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrSealedNotFound is returned when the requested sealed object does not exist.
	ErrSealedNotFound = errors.New("sealed object not found")

	// ErrSealedCorrupt is returned when a sealed object fails authentication or has the wrong size.
	ErrSealedCorrupt = errors.New("sealed object corrupt")

	// ErrBackendUnavailable is returned when a storage backend is not accessible.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidLocationURI is returned when a storage location URI is malformed or unsupported.
	ErrInvalidLocationURI = errors.New("invalid storage location URI")

	// ErrContractKeyMismatch is returned when a contract key does not authenticate the supplied code.
	ErrContractKeyMismatch = errors.New("contract key mismatch")
)

// ErrorKind is the coarse error class used at the entrypoint boundary.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindConfiguration
	KindTrust
	KindCrypto
	KindTransient
	KindResource
	KindInput
	KindInternal
)

// String returns kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindConfiguration:
		return "configuration"
	case KindTrust:
		return "trust"
	case KindCrypto:
		return "crypto"
	case KindTransient:
		return "transient"
	case KindResource:
		return "resource"
	case KindInput:
		return "input"
	default:
		return "internal"
	}
}

// KindOf classifies err into one of the error classes.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNotInitialized),
		errors.Is(err, ErrAlreadyInitialized),
		errors.Is(err, ErrInvalidConfig),
		errors.Is(err, ErrInvalidLocationURI):
		return KindConfiguration
	case errors.Is(err, ErrAttestation), errors.Is(err, ErrContractKeyMismatch):
		return KindTrust
	case errors.Is(err, ErrDecryption), errors.Is(err, ErrSealedCorrupt):
		return KindCrypto
	case errors.Is(err, ErrBusy), errors.Is(err, ErrBackendUnavailable):
		return KindTransient
	case errors.Is(err, ErrRecursionLimit), errors.Is(err, ErrResourceExhausted):
		return KindResource
	case errors.Is(err, ErrInvalidInput):
		return KindInput
	default:
		return KindInternal
	}
}
