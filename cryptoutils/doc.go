// Package cryptoutils holds the cryptographic primitives of the enclave.
//
//   - DeriveKey: HKDF-SHA256 with the versioned salt "enclave-kdf-v1" and a
//     caller label; DeriveOrderLabel builds the big-endian order labels of the
//     key hierarchy.
//   - Seal/Open and SealWithNonce/OpenWithNonce: Deoxys-II-256-128, the
//     misuse resistant AEAD used by seed exchange and contract messages.
//   - KeyPair: X25519 key pairs and Diffie-Hellman.
//   - Sealing envelopes: argon2id key derivation with XChaCha20-Poly1305 for
//     data written to untrusted storage.
//   - EncryptForAdmin/DecryptAsAdmin: ECDH P-256 escrow of seed shares to
//     administrator keys.
//
// Every decryption failure is reported without detail; callers map it to
// interfaces.ErrDecryption.
package cryptoutils
