// Package secretmsg encrypts contract call inputs and outputs between a
// caller and the enclave.
//
// A SecretMessage is nonce(32) ‖ caller X25519 public key(32) ‖ ciphertext.
// The message key is HKDF(DH(enclave I/O key, caller key), nonce) and the
// cipher is Deoxys-II with the message direction as associated data, so a
// reply can never be replayed as a request.
package secretmsg
