/*
Package httpserver serves a node's HTTP surface: the seed exchange for
joining nodes, the administrator seed escrow API, and health endpoints.

# Seed exchange

Mounted from api/seedhandler when the node holds seeds:

  - POST /api/attested/seed - attestation certificate in, encrypted seed payload out
  - GET /api/public/seed_exchange_key - provider key, hex

# Admin API

Mounted under /admin when enabled. Every mutating request carries
X-Admin-ID and X-Admin-Signature, an ECDSA P-256 signature over
sha256(path || body) by a whitelisted administrator key.

  - GET /admin/status - seed state and escrow parameters
  - POST /admin/escrow - split the seed and encrypt one share per administrator
  - GET /admin/share - fetch the caller's encrypted share
  - POST /admin/init/recover - start collecting shares on a node without a seed
  - POST /admin/share - submit a signed share; the seed is restored at threshold

# Health

  - GET /livez - liveness
  - GET /readyz - ready when not draining and, with the admin API on, the node holds a seed
  - GET /drain, GET /undrain - toggle readiness for load balancers

Metrics are served separately by the metrics package when a metrics
address is configured.
*/
package httpserver
