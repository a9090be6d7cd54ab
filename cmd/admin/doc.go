// Command admin is the administrator tool for enclave nodes.
//
// Commands:
//
//	status                  print the node's seed state
//	generate-admin          generate an administrator ECDSA P-256 key pair
//	generate-admins-config  write the admin keys file a node loads with --admin-keys-file
//	escrow                  split the node's seed, one encrypted share per administrator
//	fetch-share             fetch this administrator's encrypted share to a file
//	init-recovery           put a node without a seed into recovery mode
//	submit-share            decrypt the fetched share and submit it, signed
//	wait-ready              wait until the node holds a seed
//	sign-policy             sign a contract key override policy with a secp256k1 key
//
// Administrator IDs are the hex sha256 fingerprint of the public key PEM.
// Requests are authenticated by X-Admin-ID and X-Admin-Signature, an ECDSA
// signature over sha256(path || body).
package main
