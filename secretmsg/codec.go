package secretmsg

import (
	"github.com/scrtlabs/SecretNetwork-sub003/cryptoutils"
	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
)

// IOKeys supplies the enclave I/O key pair.
type IOKeys interface {
	IOKeyPair(gen interfaces.Generation) (interfaces.KeyPair, error)
}

// Codec is the enclave side of the message channel. Requests are accepted
// under the current or the genesis I/O key so clients holding the
// pre-rotation key keep working. A reply is sealed under the generation that
// opened its request.
type Codec struct {
	keys IOKeys
}

func NewCodec(keys IOKeys) *Codec {
	return &Codec{keys: keys}
}

// IOPublicKey is the key clients encrypt to.
func (c *Codec) IOPublicKey() (interfaces.PublicKey, error) {
	kp, err := c.keys.IOKeyPair(interfaces.Current)
	if err != nil {
		return interfaces.PublicKey{}, err
	}
	return interfaces.PublicKey(kp.Public), nil
}

func (c *Codec) keyFor(gen interfaces.Generation, nonce [NonceSize]byte, peer interfaces.PublicKey) ([cryptoutils.KeySize]byte, error) {
	kp, err := c.keys.IOKeyPair(gen)
	if err != nil {
		return [cryptoutils.KeySize]byte{}, err
	}
	shared, err := kp.SharedSecret(peer[:])
	if err != nil {
		return [cryptoutils.KeySize]byte{}, interfaces.ErrDecryption
	}
	defer cryptoutils.Wipe(shared[:])
	return DeriveMessageKey(shared, nonce), nil
}

// EncryptionKey derives the per message key under the current I/O key.
func (c *Codec) EncryptionKey(msg *SecretMessage) (interfaces.AESKey, error) {
	key, err := c.keyFor(interfaces.Current, msg.Nonce, msg.PublicKey)
	return interfaces.AESKey(key), err
}

// Decrypt opens a request and reports the I/O key generation that opened
// it. Any failure other than a missing keychain is ErrDecryption, whatever
// check failed.
func (c *Codec) Decrypt(msg *SecretMessage) ([]byte, interfaces.Generation, error) {
	var lastErr error = interfaces.ErrDecryption
	for _, gen := range []interfaces.Generation{interfaces.Current, interfaces.Genesis} {
		key, err := c.keyFor(gen, msg.Nonce, msg.PublicKey)
		if err != nil {
			lastErr = err
			continue
		}
		plaintext, err := OpenWithKey(key, Request, msg.Ciphertext)
		cryptoutils.Wipe(key[:])
		if err == nil {
			return plaintext, gen, nil
		}
		lastErr = err
	}
	return nil, interfaces.Current, lastErr
}

// RequestGeneration reports which I/O key generation opens msg.
func (c *Codec) RequestGeneration(msg *SecretMessage) (interfaces.Generation, error) {
	plaintext, gen, err := c.Decrypt(msg)
	cryptoutils.Wipe(plaintext)
	return gen, err
}

// Encrypt seals a reply to the caller of the request identified by nonce
// and callerKey, under the I/O key generation gen that opened the request.
func (c *Codec) Encrypt(plaintext []byte, gen interfaces.Generation, nonce [NonceSize]byte, callerKey interfaces.PublicKey) (*SecretMessage, error) {
	key, err := c.keyFor(gen, nonce, callerKey)
	if err != nil {
		return nil, err
	}
	defer cryptoutils.Wipe(key[:])

	ct, err := SealWithKey(key, Response, plaintext)
	if err != nil {
		return nil, err
	}
	return &SecretMessage{Nonce: nonce, PublicKey: callerKey, Ciphertext: ct}, nil
}
