// Package keychain holds the consensus seeds and the keys derived from them.
//
// A node gets its seeds in exactly one of three ways: Bootstrap on the first
// node of a network, SetSeeds after a successful seed exchange, or Initialize
// from sealed storage on restart. Until one of them succeeds every getter
// returns interfaces.ErrNotInitialized; a zero key is never handed out.
//
// Every key is HKDF-SHA256(seed, order) with a versioned salt, where order is
// the big-endian u32 derivation order:
//
//	1 seed exchange key pair
//	2 contract I/O key pair
//	3 consensus state IKM
//	4 callback secret
//	7 admin proof secret (genesis only)
//	8 contract key proof secret (genesis only)
//
// Both seed generations are sealed together as one blob so a restart never
// observes a genesis seed from one exchange next to a current seed from another.
package keychain
