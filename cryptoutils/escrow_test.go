package cryptoutils

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscrow_RoundTrip(t *testing.T) {
	privPEM, pubPEM, err := GenerateAdminKeyPair()
	require.NoError(t, err)

	testCases := []struct {
		name string
		data []byte
	}{
		{"Share", []byte{0x01, 0x02, 0x03, 0xff}},
		{"Empty", []byte{}},
		{"Long", make([]byte, 1024)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			enc, err := EncryptForAdmin(pubPEM, tc.data)
			require.NoError(t, err)
			assert.Greater(t, len(enc), len(tc.data))

			dec, err := DecryptAsAdmin(privPEM, enc)
			require.NoError(t, err)
			assert.Equal(t, len(tc.data), len(dec))
			if len(tc.data) > 0 {
				assert.Equal(t, tc.data, dec)
			}
		})
	}
}

func TestEscrow_Rejections(t *testing.T) {
	privPEM, pubPEM, err := GenerateAdminKeyPair()
	require.NoError(t, err)
	otherPriv, _, err := GenerateAdminKeyPair()
	require.NoError(t, err)

	enc, err := EncryptForAdmin(pubPEM, []byte("share"))
	require.NoError(t, err)

	_, err = DecryptAsAdmin(otherPriv, enc)
	assert.Error(t, err, "wrong admin")

	tampered := append([]byte{}, enc...)
	tampered[len(tampered)-1] ^= 1
	_, err = DecryptAsAdmin(privPEM, tampered)
	assert.ErrorIs(t, err, ErrAuthentication)

	_, err = DecryptAsAdmin(privPEM, enc[:40])
	assert.Error(t, err)

	edPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(edPub)
	require.NoError(t, err)
	_, err = EncryptForAdmin(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), []byte("x"))
	assert.Error(t, err, "only P-256 admins can receive shares")

	_, err = EncryptForAdmin([]byte("garbage"), []byte("x"))
	assert.Error(t, err)
}

func TestParseAdminPrivateKey(t *testing.T) {
	privPEM, pubPEM, err := GenerateAdminKeyPair()
	require.NoError(t, err)

	key, err := ParseAdminPrivateKey(privPEM)
	require.NoError(t, err)

	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	pkcs8, err := ParseAdminPrivateKey(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
	require.NoError(t, err)
	assert.True(t, key.Equal(pkcs8))

	assert.Len(t, Fingerprint(pubPEM), 64)
	_, err = ParseAdminPrivateKey([]byte("nope"))
	assert.Error(t, err)
}
