// Package interfaces defines the types and contracts shared by the enclave
// components.
//
// # Types
//
// Seed, PublicKey, AESKey and KeyPair are fixed-size key material. Generation
// selects the genesis or current seed.
//
// # Contracts
//
//   - SealedStore: confidential, integrity protected persistence bound to the
//     running code. BlobBackend is the untrusted storage underneath.
//   - KeySource, SeedSource and SeedSink: what seed exchange and the codecs
//     need from the keychain.
//
// # Errors
//
// Sentinel errors are wrapped with fmt.Errorf and %w. KindOf classifies any
// error into an ErrorKind (configuration, trust, crypto, transient, resource,
// input, internal); the enclave entrypoints map kinds to result statuses.
package interfaces
