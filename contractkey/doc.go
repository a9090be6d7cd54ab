// Package contractkey binds contract instances to their code and creator.
//
// A contract key is sender_id ‖ authentication_id where
//
//	sender_id         = SHA-256(signer ‖ height)
//	authentication_id = HMAC-SHA256(HKDF(state IKM, sender_id), sender_id ‖ code_hash)
//
// Any enclave holding the same consensus state key recomputes it. Historical
// exceptions live in a versioned OverridePolicy signed with secp256k1, never
// in code.
package contractkey
