package httpserver

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/scrtlabs/SecretNetwork-sub003/api"
	"github.com/scrtlabs/SecretNetwork-sub003/api/seedhandler"
	"github.com/scrtlabs/SecretNetwork-sub003/attestation"
	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
	"github.com/scrtlabs/SecretNetwork-sub003/seedexchange"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServerConfig() *api.HTTPServerConfig {
	return &api.HTTPServerConfig{
		ListenAddr:  "127.0.0.1:0",
		MetricsAddr: "",
		EnablePprof: false,
		Log:         testLogger(),
	}
}

func getStatus(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_HealthAndDrain(t *testing.T) {
	srv, err := New(newServerConfig(), nil, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.getRouter())
	defer ts.Close()

	tests := []struct {
		path       string
		wantCode   int
		wantStatus string
	}{
		{"/livez", http.StatusOK, "alive"},
		{"/readyz", http.StatusOK, `"ready"`},
		{"/drain", http.StatusOK, `"draining"`},
		{"/drain", http.StatusOK, "already draining"},
		{"/readyz", http.StatusServiceUnavailable, "not ready"},
		{"/undrain", http.StatusOK, `"ready"`},
		{"/undrain", http.StatusOK, "already ready"},
		{"/readyz", http.StatusOK, `"ready"`},
	}
	for _, tt := range tests {
		code, body := getStatus(t, ts.URL+tt.path)
		assert.Equal(t, tt.wantCode, code, tt.path)
		assert.Contains(t, body, tt.wantStatus, tt.path)
	}
}

func TestServer_AdminRequiresHandler(t *testing.T) {
	cfg := newServerConfig()
	cfg.EnableAdmin = true
	_, err := New(cfg, nil, nil)
	assert.Error(t, err)
}

func TestServer_ReadinessFollowsSeed(t *testing.T) {
	_, pubs := generateAdmins(t, 1)
	keys := newTestKeychain(t)
	admin := NewAdminHandler(testLogger(), keys, pubs)

	cfg := newServerConfig()
	cfg.EnableAdmin = true
	srv, err := New(cfg, nil, admin)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.getRouter())
	defer ts.Close()

	code, body := getStatus(t, ts.URL+"/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, "awaiting_seed")

	code, body = getStatus(t, ts.URL+"/admin/status")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "awaiting_seed")

	require.NoError(t, keys.Bootstrap(context.Background()))
	code, _ = getStatus(t, ts.URL+"/readyz")
	assert.Equal(t, http.StatusOK, code)
}

func TestServer_SeedRoutes(t *testing.T) {
	_, signingKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	attester := attestation.NewSoftwareAttester(signingKey, attestation.SoftwareClaims{Measurement: []byte{0xaa}, Signer: []byte{0x5a}, SVN: 1})
	verifier, err := attestation.NewVerifier(attestation.Policy{
		SigningMethod:       attestation.SigningMethodMeasurement,
		AllowedMeasurements: []attestation.HexBytes{{0xaa}},
		AllowedSigners:      []attestation.HexBytes{{0x5a}},
	}, testLogger(), attester)
	require.NoError(t, err)

	source := newTestKeychain(t)
	require.NoError(t, source.Bootstrap(context.Background()))
	provider := seedexchange.NewProvider(source, source, verifier, nil, testLogger())
	providerKey, err := provider.PublicKey()
	require.NoError(t, err)

	srv, err := New(newServerConfig(), seedhandler.NewHandler(provider, nil, testLogger()), nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.getRouter())
	defer ts.Close()

	code, body := getStatus(t, ts.URL+"/api/public/seed_exchange_key")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, hex.EncodeToString(providerKey[:]))

	joining := newTestKeychain(t)
	requester, err := seedexchange.NewRequester(attester, joining, providerKey, testLogger())
	require.NoError(t, err)
	cert, err := requester.Attest()
	require.NoError(t, err)

	resp, err := seedhandler.DefaultClient.RequestSeed(context.Background(), ts.URL, cert)
	require.NoError(t, err)
	assert.Equal(t, providerKey, resp.ProviderKey)
	require.NoError(t, requester.Accept(context.Background(), resp.Payload, resp.ProviderKey))
	assert.True(t, joining.IsInitialized())

	want, err := source.IOKeyPair(interfaces.Current)
	require.NoError(t, err)
	got, err := joining.IOKeyPair(interfaces.Current)
	require.NoError(t, err)
	assert.Equal(t, want.Public, got.Public)

	badResp, err := http.Post(ts.URL+"/api/attested/seed", "application/octet-stream", strings.NewReader("garbage"))
	require.NoError(t, err)
	defer badResp.Body.Close()
	assert.NotEqual(t, http.StatusOK, badResp.StatusCode)
}
