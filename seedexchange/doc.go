// Package seedexchange moves the consensus seeds from an initialized node to
// an attested joining node.
//
// The provider verifies the joiner's attestation certificate, computes the
// X25519 secret between its genesis seed exchange key and the attested key,
// and encrypts each seed with Deoxys-II under HKDF(secret, "seed-exchange"),
// binding the joiner's public key as associated data. The joiner accepts the
// payload only if both seeds decrypt to exactly 32 bytes.
package seedexchange
