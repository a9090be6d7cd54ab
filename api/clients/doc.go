/*
Package clients implements the administrator side of a node's admin API.

AdminClient signs every mutating request with the administrator's ECDSA
P-256 key: X-Admin-ID names the administrator and X-Admin-Signature holds a
base64 ASN.1 signature over sha256(path || body).

Escrow on a node holding the seed:

	c := clients.NewAdminClient("http://node:8080/admin", adminID, key)
	if _, err := c.Escrow(2, 3); err != nil { ... }
	share, err := c.FetchShare()
	plain, err := cryptoutils.DecryptAsAdmin(privPEM, encrypted)

Recovery on a node that lost its sealed seed:

	err := c.InitRecover(2)
	err = c.SubmitShare(plain)
	err = c.WaitForReady(ctx, time.Second)
*/
package clients
