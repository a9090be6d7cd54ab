package cryptoutils

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
)

var escrowLabel = []byte("admin-share-escrow")

// EncryptForAdmin encrypts data to an administrator's P-256 public key.
// A fresh ephemeral key is used for every call. The output is
// ephemeral public key (65 bytes, uncompressed) ‖ nonce ‖ ciphertext.
func EncryptForAdmin(publicKeyPEM []byte, data []byte) ([]byte, error) {
	pub, err := parseECDHPublicKey(publicKeyPEM)
	if err != nil {
		return nil, err
	}

	ephemeral, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral key: %w", err)
	}
	shared, err := ephemeral.ECDH(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to derive shared secret: %w", err)
	}
	defer Wipe(shared)

	ephemeralPub := ephemeral.PublicKey().Bytes()
	key := DeriveKey(shared, append(append([]byte{}, escrowLabel...), ephemeralPub...))
	defer Wipe(key[:])

	sealed, err := Seal(key, data, ephemeralPub)
	if err != nil {
		return nil, err
	}
	return append(ephemeralPub, sealed...), nil
}

// DecryptAsAdmin reverses EncryptForAdmin with the administrator's private key.
func DecryptAsAdmin(privateKeyPEM []byte, encrypted []byte) ([]byte, error) {
	priv, err := ParseAdminPrivateKey(privateKeyPEM)
	if err != nil {
		return nil, err
	}
	ecdhPriv, err := priv.ECDH()
	if err != nil {
		return nil, fmt.Errorf("failed to convert private key: %w", err)
	}

	const pubLen = 65
	if len(encrypted) < pubLen+NonceSize+TagSize {
		return nil, errors.New("encrypted share too short")
	}
	ephemeralPub, err := ecdh.P256().NewPublicKey(encrypted[:pubLen])
	if err != nil {
		return nil, fmt.Errorf("invalid ephemeral key: %w", err)
	}
	shared, err := ecdhPriv.ECDH(ephemeralPub)
	if err != nil {
		return nil, fmt.Errorf("failed to derive shared secret: %w", err)
	}
	defer Wipe(shared)

	key := DeriveKey(shared, append(append([]byte{}, escrowLabel...), encrypted[:pubLen]...))
	defer Wipe(key[:])
	return Open(key, encrypted[pubLen:], encrypted[:pubLen])
}

func parseECDHPublicKey(publicKeyPEM []byte) (*ecdh.PublicKey, error) {
	block, _ := pem.Decode(publicKeyPEM)
	if block == nil {
		return nil, errors.New("failed to decode public key PEM")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	ecPub, ok := parsed.(*ecdsa.PublicKey)
	if !ok || ecPub.Curve != elliptic.P256() {
		return nil, errors.New("not a P-256 public key")
	}
	return ecPub.ECDH()
}

// GenerateAdminKeyPair creates a P-256 administrator key pair as PEM.
func GenerateAdminKeyPair() (privateKeyPEM, publicKeyPEM []byte, err error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate ECDSA key: %w", err)
	}

	privateKeyBytes, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	publicKeyBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal public key: %w", err)
	}

	privateKeyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privateKeyBytes})
	publicKeyPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicKeyBytes})
	return privateKeyPEM, publicKeyPEM, nil
}

// ParseAdminPrivateKey parses an SEC 1 or PKCS#8 ECDSA private key.
func ParseAdminPrivateKey(privateKeyPEM []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(privateKeyPEM)
	if block == nil {
		return nil, errors.New("failed to decode PEM block containing private key")
	}

	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ECDSA private key: %w", err)
	}
	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not ECDSA")
	}
	return key, nil
}

// Fingerprint is the hex SHA-256 of a PEM public key.
func Fingerprint(publicKeyPEM []byte) string {
	sum := sha256.Sum256(publicKeyPEM)
	return hex.EncodeToString(sum[:])
}
