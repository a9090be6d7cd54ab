// Package storage implements the sealed store: small secrets persisted on
// untrusted storage so that they are opaque outside the enclave.
//
// Backends only move opaque blobs:
//
//   - File system storage, one file per secret under the storage root
//   - HashiCorp Vault KV v2
//   - S3-compatible object storage
//   - The operating system keyring
//
// A Sealer wraps any backend and encrypts every object with a key derived
// from the platform secret and the code identity of the running enclave.
// The object name is bound as associated data, so a blob copied to another
// name does not unseal.
//
// # Storage URI Format
//
// Backends are specified using URI format:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Examples:
//
//   - file:///var/lib/enclave/sealed
//   - vault://vault.example.com:8200/secret/enclave/node-1?tls=true&token_env=VAULT_TOKEN
//   - s3://bucket-name/prefix?region=us-west-2
//   - keyring://secret-enclave?backend=file&dir=/var/lib/enclave/keyring&password_env=KEYRING_PASSWORD
//
// Several URIs build a MultiBackend. Writes must succeed on every reachable
// backend; a partial write is reported as an error.
//
// # Sealed Object Format
//
// Every object is a JSON envelope:
//
//	{"version":1,"kdf":"hkdf-sha256","nonce":"...","ciphertext":"..."}
//
// Height scoped artifacts additionally wrap their payload as
// {"height":h,"version":v,"payload":"..."} before sealing.
package storage
