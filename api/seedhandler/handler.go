package seedhandler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
)

// PublicKeyHeader carries the provider's seed exchange public key, hex encoded.
const PublicKeyHeader = "X-Seed-Exchange-Public-Key"

// MaxCertificateSize bounds the request body.
const MaxCertificateSize = 1 << 20

// SeedProvider authenticates joining nodes and encrypts the seeds for them.
type SeedProvider interface {
	Authenticate(ctx context.Context, cert []byte) ([]byte, error)
	PublicKey() (interfaces.PublicKey, error)
}

// Handler serves the seed exchange to joining nodes. Rejection reasons are
// logged; peers only see a generic message.
type Handler struct {
	provider SeedProvider
	limiter  *PeerLimiter
	log      *slog.Logger
}

// NewHandler creates the handler. A nil limiter disables rate limiting.
func NewHandler(provider SeedProvider, limiter *PeerLimiter, log *slog.Logger) *Handler {
	return &Handler{
		provider: provider,
		limiter:  limiter,
		log:      log,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/attested/seed", h.HandleSeed)
	r.Get("/api/public/seed_exchange_key", h.HandlePublicKey)
}

// HandleSeed releases the encrypted seeds to an attested node.
//
// URL format: POST /api/attested/seed
// Request body: DER attestation certificate, or a combined certificate bundle
// Response: the seed payload, with the provider key in PublicKeyHeader
func (h *Handler) HandleSeed(w http.ResponseWriter, r *http.Request) {
	peer := peerAddress(r)
	if !h.limiter.Allow(peer, time.Now()) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
		return
	}

	cert, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxCertificateSize))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	if len(cert) == 0 {
		http.Error(w, "empty certificate in request body", http.StatusBadRequest)
		return
	}

	providerKey, err := h.provider.PublicKey()
	if err != nil {
		h.writeError(w, peer, err)
		return
	}

	payload, err := h.provider.Authenticate(r.Context(), cert)
	if err != nil {
		h.writeError(w, peer, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set(PublicKeyHeader, providerKey.String())
	if _, err := w.Write(payload); err != nil {
		h.log.Error("Failed to write seed payload", "err", err)
	}
}

// HandlePublicKey returns the provider's seed exchange public key.
//
// URL format: GET /api/public/seed_exchange_key
func (h *Handler) HandlePublicKey(w http.ResponseWriter, r *http.Request) {
	key, err := h.provider.PublicKey()
	if err != nil {
		h.writeError(w, peerAddress(r), err)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(key.String()))
}

func (h *Handler) writeError(w http.ResponseWriter, peer string, err error) {
	status, message := statusFor(err)
	h.log.Warn("Seed exchange request failed",
		slog.String("peer", peer),
		slog.String("kind", interfaces.KindOf(err).String()),
		"err", err)
	http.Error(w, message, status)
}

func statusFor(err error) (int, string) {
	switch interfaces.KindOf(err) {
	case interfaces.KindTrust:
		return http.StatusUnauthorized, interfaces.ErrAttestation.Error()
	case interfaces.KindInput:
		return http.StatusBadRequest, interfaces.ErrInvalidInput.Error()
	case interfaces.KindTransient:
		return http.StatusServiceUnavailable, "temporarily unavailable"
	case interfaces.KindConfiguration:
		if errors.Is(err, interfaces.ErrNotInitialized) {
			return http.StatusServiceUnavailable, "not ready"
		}
		return http.StatusInternalServerError, "internal error"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func peerAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
