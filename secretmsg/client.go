package secretmsg

import (
	"github.com/scrtlabs/SecretNetwork-sub003/cryptoutils"
	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
)

// Client is the caller side of the message channel.
type Client struct {
	kp         interfaces.KeyPair
	enclaveKey interfaces.PublicKey
}

// NewClient uses kp against the enclave I/O public key.
func NewClient(kp interfaces.KeyPair, enclaveKey interfaces.PublicKey) *Client {
	return &Client{kp: kp, enclaveKey: enclaveKey}
}

func (c *Client) key(nonce [NonceSize]byte) ([cryptoutils.KeySize]byte, error) {
	shared, err := c.kp.SharedSecret(c.enclaveKey[:])
	if err != nil {
		return [cryptoutils.KeySize]byte{}, interfaces.ErrDecryption
	}
	defer cryptoutils.Wipe(shared[:])
	return DeriveMessageKey(shared, nonce), nil
}

// EncryptRequest encrypts plaintext under a fresh nonce.
func (c *Client) EncryptRequest(plaintext []byte) (*SecretMessage, error) {
	nonce, err := NewNonce()
	if err != nil {
		return nil, err
	}
	key, err := c.key(nonce)
	if err != nil {
		return nil, err
	}
	defer cryptoutils.Wipe(key[:])

	ct, err := SealWithKey(key, Request, plaintext)
	if err != nil {
		return nil, err
	}
	return &SecretMessage{Nonce: nonce, PublicKey: interfaces.PublicKey(c.kp.Public), Ciphertext: ct}, nil
}

// DecryptResponse opens a reply to the request sent with nonce.
func (c *Client) DecryptResponse(nonce [NonceSize]byte, ciphertext []byte) ([]byte, error) {
	key, err := c.key(nonce)
	if err != nil {
		return nil, err
	}
	defer cryptoutils.Wipe(key[:])
	return OpenWithKey(key, Response, ciphertext)
}
