package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServer(t *testing.T) {
	srv, err := New("enclave-node", ":0")
	require.NoError(t, err)

	// A second server registers the same collectors into its own registry.
	_, err = New("enclave-node", ":0")
	require.NoError(t, err)

	EntrypointCalls.WithLabelValues("handle", "success").Inc()
	DoorbellBusy.Inc()

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "enclave_entrypoint_calls_total")
	assert.Contains(t, string(body), `service="enclave-node"`)
	assert.Contains(t, string(body), "enclave_doorbell_busy_total")
}

func TestNewRequiresService(t *testing.T) {
	_, err := New("", ":0")
	assert.Error(t, err)
}
