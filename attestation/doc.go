// Package attestation issues and verifies the certificates enclaves use to
// prove what code they run.
//
// A certificate is self-signed by a fresh P-256 key and carries a quote in
// the extension at OIDAttestationReport. The quote's 64 bytes of report data
// are the node's X25519 public key followed by the SHA-256 of the
// certificate's SubjectPublicKeyInfo, so a quote cannot be moved to another
// certificate. Verification checks the self-signature, the validity window,
// the quote through the Attester of its type, the key binding and finally
// the Policy.
package attestation
