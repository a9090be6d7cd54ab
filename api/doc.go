/*
Package api holds the HTTP surface of an enclave node.

Subpackages:

  - seedhandler: the attested seed exchange endpoint and its client
  - clients: the administrator client for seed escrow and recovery

This package holds the server configuration and the admin API bodies used
for seed escrow and recovery. Admin requests are authenticated by an ECDSA
signature over the request path and body, sent in the X-Admin-ID and
X-Admin-Signature headers.
*/
package api
