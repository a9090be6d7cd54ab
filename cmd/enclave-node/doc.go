// Command enclave-node runs a confidential contract enclave node.
//
// Commands:
//
//	init-bootstrap  create the network seed on the first node and print the I/O public key
//	init-node       attest to a seed provider, install the seeds it returns, print the I/O public key
//	rotate-seed     replace the current seed generation and print the new seed id
//	serve           serve the seed exchange, and with --admin-keys-file the admin API
//
// Every command reads the YAML node config given by --config (ENCLAVE_CONFIG).
// --storage (ENCLAVE_STORAGE) and --platform-secret-file override the sealed
// storage settings of the config.
//
// A node started with serve on an empty sealed store waits for
// administrators to restore the seed through POST /admin/init/recover and
// POST /admin/share before serving the seed exchange.
package main
