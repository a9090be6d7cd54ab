package clients

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/scrtlabs/SecretNetwork-sub003/api"
	"github.com/scrtlabs/SecretNetwork-sub003/cryptoutils"
	"github.com/scrtlabs/SecretNetwork-sub003/httpserver"
	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
	"github.com/scrtlabs/SecretNetwork-sub003/keychain"
	"github.com/scrtlabs/SecretNetwork-sub003/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type admin struct {
	id      string
	key     *ecdsa.PrivateKey
	privPEM []byte
}

func newAdmins(t *testing.T, n int) ([]admin, map[string][]byte) {
	t.Helper()
	var admins []admin
	pubs := make(map[string][]byte)
	for i := 0; i < n; i++ {
		privPEM, pubPEM, err := cryptoutils.GenerateAdminKeyPair()
		require.NoError(t, err)
		key, err := cryptoutils.ParseAdminPrivateKey(privPEM)
		require.NoError(t, err)
		id := fmt.Sprintf("admin%d", i)
		admins = append(admins, admin{id: id, key: key, privPEM: privPEM})
		pubs[id] = pubPEM
	}
	return admins, pubs
}

func newNode(t *testing.T, pubs map[string][]byte) (*keychain.Keychain, string) {
	t.Helper()
	backend, err := storage.NewFileBackend(t.TempDir(), testLogger())
	require.NoError(t, err)
	sealer, err := storage.NewSealer(backend, bytes.Repeat([]byte{9}, 32), []byte("clients-test"), testLogger())
	require.NoError(t, err)
	keys := keychain.New(sealer, testLogger())

	r := chi.NewRouter()
	r.Mount("/admin", httpserver.NewAdminHandler(testLogger(), keys, pubs).AdminRouter())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return keys, srv.URL + "/admin"
}

func TestAdminClient_EscrowAndRecover(t *testing.T) {
	ctx := context.Background()
	admins, pubs := newAdmins(t, 3)

	source, sourceURL := newNode(t, pubs)
	require.NoError(t, source.Bootstrap(ctx))

	status, err := NewAdminClient(sourceURL, "", nil).GetStatus()
	require.NoError(t, err)
	assert.Equal(t, "ready", status.State)

	escrow, err := NewAdminClient(sourceURL, admins[0].id, admins[0].key).Escrow(2, 3)
	require.NoError(t, err)
	assert.Len(t, escrow.ShareAssignments, 3)

	var plain [][]byte
	for _, a := range admins[1:] {
		resp, err := NewAdminClient(sourceURL, a.id, a.key).FetchShare()
		require.NoError(t, err)
		enc, err := base64.StdEncoding.DecodeString(resp.EncryptedShare)
		require.NoError(t, err)
		share, err := cryptoutils.DecryptAsAdmin(a.privPEM, enc)
		require.NoError(t, err)
		plain = append(plain, share)
	}

	target, targetURL := newNode(t, pubs)
	require.NoError(t, NewAdminClient(targetURL, admins[0].id, admins[0].key).InitRecover(2))
	for i, a := range admins[1:] {
		require.NoError(t, NewAdminClient(targetURL, a.id, a.key).SubmitShare(plain[i]))
	}

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, NewAdminClient(targetURL, "", nil).WaitForReady(waitCtx, 10*time.Millisecond))

	want, err := source.IOKeyPair(interfaces.Current)
	require.NoError(t, err)
	got, err := target.IOKeyPair(interfaces.Current)
	require.NoError(t, err)
	assert.Equal(t, want.Public, got.Public)
}

func TestAdminClient_Errors(t *testing.T) {
	admins, pubs := newAdmins(t, 2)
	_, url := newNode(t, pubs)

	_, err := NewAdminClient(url, admins[0].id, admins[1].key).Escrow(2, 2)
	assert.ErrorContains(t, err, "401")

	_, err = NewAdminClient(url, admins[0].id, admins[0].key).Escrow(2, 2)
	assert.ErrorContains(t, err, "409")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, NewAdminClient(url, "", nil).WaitForReady(ctx, 5*time.Millisecond), context.DeadlineExceeded)
}

func TestSignAdminRequest(t *testing.T) {
	admins, _ := newAdmins(t, 1)
	body := []byte(`{"threshold":2}`)

	req, err := http.NewRequest(http.MethodPost, "http://node/admin/init/recover", bytes.NewReader(body))
	require.NoError(t, err)
	require.NoError(t, SignAdminRequest(req, admins[0].id, admins[0].key))

	assert.Equal(t, admins[0].id, req.Header.Get(api.HeaderAdminID))
	sig, err := base64.StdEncoding.DecodeString(req.Header.Get(api.HeaderAdminSignature))
	require.NoError(t, err)
	digest := api.AdminRequestDigest("/admin/init/recover", body)
	assert.True(t, ecdsa.VerifyASN1(&admins[0].key.PublicKey, digest[:], sig))

	restored, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, body, restored)

	assert.Error(t, SignAdminRequest(nil, "x", admins[0].key))
}
