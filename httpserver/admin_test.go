package httpserver

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/scrtlabs/SecretNetwork-sub003/api"
	"github.com/scrtlabs/SecretNetwork-sub003/api/clients"
	"github.com/scrtlabs/SecretNetwork-sub003/cryptoutils"
	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
	"github.com/scrtlabs/SecretNetwork-sub003/keychain"
	"github.com/scrtlabs/SecretNetwork-sub003/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testAdmin struct {
	key     *ecdsa.PrivateKey
	privPEM []byte
}

// generateAdmins creates n admin key pairs named admin1..adminN.
func generateAdmins(t *testing.T, n int) (map[string]testAdmin, map[string][]byte) {
	t.Helper()
	admins := make(map[string]testAdmin, n)
	pubs := make(map[string][]byte, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("admin%d", i+1)
		privPEM, pubPEM, err := cryptoutils.GenerateAdminKeyPair()
		require.NoError(t, err)
		key, err := cryptoutils.ParseAdminPrivateKey(privPEM)
		require.NoError(t, err)
		admins[id] = testAdmin{key: key, privPEM: privPEM}
		pubs[id] = pubPEM
	}
	return admins, pubs
}

func newTestKeychain(t *testing.T) *keychain.Keychain {
	t.Helper()
	backend, err := storage.NewFileBackend(t.TempDir(), testLogger())
	require.NoError(t, err)
	sealer, err := storage.NewSealer(backend, bytes.Repeat([]byte{7}, 32), []byte("httpserver-test"), testLogger())
	require.NoError(t, err)
	return keychain.New(sealer, testLogger())
}

func createTestServer(t *testing.T, handler *AdminHandler) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Mount("/admin", handler.AdminRouter())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func doSigned(t *testing.T, method, url string, body any, adminID string, key *ecdsa.PrivateKey) *http.Response {
	t.Helper()
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req, err := clients.CreateSignedAdminRequest(method, url, raw, adminID, key)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAdmin_Authentication(t *testing.T) {
	admins, pubs := generateAdmins(t, 2)
	srv := createTestServer(t, NewAdminHandler(testLogger(), newTestKeychain(t), pubs))

	t.Run("No headers", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/admin/init/recover", "application/json", strings.NewReader(`{"threshold":2}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Signature by another admin", func(t *testing.T) {
		resp := doSigned(t, http.MethodPost, srv.URL+"/admin/init/recover", api.RecoverRequest{Threshold: 2}, "admin1", admins["admin2"].key)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Tampered body", func(t *testing.T) {
		req, err := clients.CreateSignedAdminRequest(http.MethodPost, srv.URL+"/admin/init/recover", []byte(`{"threshold":2}`), "admin1", admins["admin1"].key)
		require.NoError(t, err)
		req.Body = io.NopCloser(strings.NewReader(`{"threshold":3}`))
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Unknown admin", func(t *testing.T) {
		resp := doSigned(t, http.MethodGet, srv.URL+"/admin/share", nil, "admin9", admins["admin1"].key)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestAdmin_EscrowAndRecover(t *testing.T) {
	ctx := context.Background()
	admins, pubs := generateAdmins(t, 3)

	source := newTestKeychain(t)
	require.NoError(t, source.Bootstrap(ctx))
	sourceHandler := NewAdminHandler(testLogger(), source, pubs)
	assert.Equal(t, StateReady, sourceHandler.State())
	sourceSrv := createTestServer(t, sourceHandler)

	resp := doSigned(t, http.MethodPost, sourceSrv.URL+"/admin/escrow", api.EscrowRequest{Threshold: 2, TotalShares: 4}, "admin1", admins["admin1"].key)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "more shares than admins")

	resp = doSigned(t, http.MethodPost, sourceSrv.URL+"/admin/escrow", api.EscrowRequest{Threshold: 2, TotalShares: 3}, "admin1", admins["admin1"].key)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var escrow api.EscrowResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&escrow))
	assert.Len(t, escrow.ShareAssignments, 3)

	shares := make(map[string][]byte)
	for _, id := range []string{"admin1", "admin3"} {
		resp := doSigned(t, http.MethodGet, sourceSrv.URL+"/admin/share", nil, id, admins[id].key)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var got api.AdminGetShareResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		enc, err := base64.StdEncoding.DecodeString(got.EncryptedShare)
		require.NoError(t, err)

		_, err = cryptoutils.DecryptAsAdmin(admins["admin2"].privPEM, enc)
		assert.Error(t, err, "a share only opens for its admin")

		share, err := cryptoutils.DecryptAsAdmin(admins[id].privPEM, enc)
		require.NoError(t, err)
		shares[id] = share
	}

	target := newTestKeychain(t)
	targetHandler := NewAdminHandler(testLogger(), target, pubs)
	targetSrv := createTestServer(t, targetHandler)
	assert.Equal(t, StateAwaitingSeed, targetHandler.State())

	resp = doSigned(t, http.MethodPost, targetSrv.URL+"/admin/escrow", api.EscrowRequest{Threshold: 2, TotalShares: 3}, "admin1", admins["admin1"].key)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "no seed to escrow")

	submit := func(id string) *http.Response {
		sig, err := keychain.SignShare(shares[id], admins[id].key)
		require.NoError(t, err)
		return doSigned(t, http.MethodPost, targetSrv.URL+"/admin/share", api.ShareSubmission{
			Share:     base64.StdEncoding.EncodeToString(shares[id]),
			Signature: base64.StdEncoding.EncodeToString(sig),
		}, id, admins[id].key)
	}

	resp = submit("admin1")
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "recovery not started")

	resp = doSigned(t, http.MethodPost, targetSrv.URL+"/admin/init/recover", api.RecoverRequest{Threshold: 2}, "admin2", admins["admin2"].key)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, StateRecovering, targetHandler.State())

	resp = submit("admin1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, target.IsInitialized())

	resp = submit("admin3")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, targetHandler.WaitForSeed(waitCtx))
	assert.Equal(t, StateReady, targetHandler.State())

	for _, gen := range []interfaces.Generation{interfaces.Genesis, interfaces.Current} {
		want, err := source.ExportSeed(gen)
		require.NoError(t, err)
		got, err := target.ExportSeed(gen)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	resp, err := http.Get(targetSrv.URL + "/admin/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	var status api.StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "ready", status.State)
	assert.Equal(t, source.SeedID(), status.SeedID)
}

func TestAdmin_WaitForSeedTimeout(t *testing.T) {
	_, pubs := generateAdmins(t, 2)
	h := NewAdminHandler(testLogger(), newTestKeychain(t), pubs)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.WaitForSeed(ctx), context.DeadlineExceeded)
}

func TestLoadAdminKeys(t *testing.T) {
	_, pubs := generateAdmins(t, 1)

	doc, err := json.Marshal(map[string]any{
		"admins": []map[string]string{{"id": "alice", "pubkey": string(pubs["admin1"])}},
	})
	require.NoError(t, err)

	keys, err := LoadAdminKeys(bytes.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, pubs["admin1"], keys["alice"])

	_, err = LoadAdminKeys(strings.NewReader(`{"admins":[{"id":"bob","pubkey":"nope"}]}`))
	assert.Error(t, err)
}
