package httpserver

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/scrtlabs/SecretNetwork-sub003/api"
	"github.com/scrtlabs/SecretNetwork-sub003/cryptoutils"
	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
	"github.com/scrtlabs/SecretNetwork-sub003/keychain"
)

// SeedState is where a node is in getting or escrowing its seed.
type SeedState int

const (
	// StateAwaitingSeed is a node with no seed and no recovery in progress.
	StateAwaitingSeed SeedState = iota

	// StateRecovering is collecting administrator shares.
	StateRecovering

	// StateReady holds a seed.
	StateReady
)

func (s SeedState) String() string {
	switch s {
	case StateAwaitingSeed:
		return "awaiting_seed"
	case StateRecovering:
		return "recovering"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// SecureShare is a seed share encrypted to one administrator.
type SecureShare struct {
	AdminID        string
	ShareIndex     int
	EncryptedShare []byte
	Retrieved      bool
}

// AdminHandler serves seed escrow and recovery to whitelisted administrators.
//
// A node holding the seed can split it into shares, each encrypted to one
// administrator. A node that lost its sealed seed can rebuild it from a
// threshold of signed shares.
type AdminHandler struct {
	mu           sync.RWMutex
	log          *slog.Logger
	keys         *keychain.Keychain
	adminPubKeys map[string][]byte
	recovery     *keychain.Recovery
	adminShares  map[string]*SecureShare
	recovering   bool
	completeOnce sync.Once
	completeChan chan struct{}

	threshold   int
	totalShares int
}

func NewAdminHandler(log *slog.Logger, keys *keychain.Keychain, adminPubKeys map[string][]byte) *AdminHandler {
	h := &AdminHandler{
		log:          log,
		keys:         keys,
		adminPubKeys: adminPubKeys,
		adminShares:  make(map[string]*SecureShare),
		completeChan: make(chan struct{}),
	}
	if keys.IsInitialized() {
		h.markComplete()
	}
	return h
}

func (h *AdminHandler) markComplete() {
	h.completeOnce.Do(func() { close(h.completeChan) })
}

// WaitForSeed blocks until the keychain holds a seed or ctx is done.
func (h *AdminHandler) WaitForSeed(ctx context.Context) error {
	select {
	case <-h.completeChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State reports the current seed state.
func (h *AdminHandler) State() SeedState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stateLocked()
}

func (h *AdminHandler) stateLocked() SeedState {
	switch {
	case h.keys.IsInitialized():
		return StateReady
	case h.recovering:
		return StateRecovering
	default:
		return StateAwaitingSeed
	}
}

func (h *AdminHandler) AdminRouter() chi.Router {
	r := chi.NewRouter()

	r.Get("/status", h.handleStatus)
	r.Post("/escrow", h.handleEscrow)
	r.Post("/init/recover", h.handleInitRecover)
	r.Post("/share", h.handleSubmitShare)
	r.Get("/share", h.handleGetShare)

	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// handleStatus reports the seed state.
//
// Endpoint: GET /admin/status
func (h *AdminHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	resp := api.StatusResponse{State: h.stateLocked().String()}
	if h.recovering || len(h.adminShares) > 0 {
		resp.Threshold = h.threshold
		resp.TotalShares = h.totalShares
	}
	h.mu.RUnlock()

	if h.keys.IsInitialized() {
		resp.SeedID = h.keys.SeedID()
	}
	writeJSON(w, resp)
}

// handleEscrow splits the seed and encrypts one share to each administrator.
// Only share assignments are returned; each administrator fetches their own
// share with GET /admin/share.
//
// Endpoint: POST /admin/escrow
func (h *AdminHandler) handleEscrow(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.verifyAdmin(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var params api.EscrowRequest
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(h.adminPubKeys) < params.TotalShares {
		http.Error(w, fmt.Sprintf("Not enough admins (%d) for the requested number of shares (%d)",
			len(h.adminPubKeys), params.TotalShares), http.StatusBadRequest)
		return
	}

	shares, err := h.keys.SplitSeed(params.TotalShares, params.Threshold)
	switch {
	case errors.Is(err, interfaces.ErrNotInitialized):
		http.Error(w, "Node holds no seed", http.StatusConflict)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer func() {
		for _, share := range shares {
			cryptoutils.Wipe(share)
		}
	}()

	adminIDs := make([]string, 0, len(h.adminPubKeys))
	for id := range h.adminPubKeys {
		adminIDs = append(adminIDs, id)
	}
	sort.Strings(adminIDs)

	escrowed := make(map[string]*SecureShare, len(shares))
	assignments := make([]api.ShareAssignment, 0, len(shares))
	for i, share := range shares {
		target := adminIDs[i]
		enc, err := cryptoutils.EncryptForAdmin(h.adminPubKeys[target], share)
		if err != nil {
			h.log.Error("Failed to encrypt share", "err", err, slog.String("adminID", target))
			http.Error(w, "Failed to encrypt shares", http.StatusInternalServerError)
			return
		}
		escrowed[target] = &SecureShare{AdminID: target, ShareIndex: i, EncryptedShare: enc}
		assignments = append(assignments, api.ShareAssignment{AdminID: target, ShareIndex: i})
	}

	h.mu.Lock()
	h.adminShares = escrowed
	h.threshold = params.Threshold
	h.totalShares = params.TotalShares
	h.mu.Unlock()

	writeJSON(w, api.EscrowResponse{
		Message:          "Seed shares generated, each admin must retrieve theirs with GET /admin/share",
		ShareAssignments: assignments,
		Threshold:        params.Threshold,
		TotalShares:      params.TotalShares,
	})

	h.log.Info("Seed escrowed to admins",
		slog.String("adminID", adminID),
		slog.Int("threshold", params.Threshold),
		slog.Int("totalShares", params.TotalShares))
}

// handleGetShare returns the requesting administrator's encrypted share.
//
// Endpoint: GET /admin/share
func (h *AdminHandler) handleGetShare(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.verifyAdmin(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	share, exists := h.adminShares[adminID]
	if !exists {
		http.Error(w, "No share assigned to this admin", http.StatusNotFound)
		return
	}
	share.Retrieved = true

	writeJSON(w, api.AdminGetShareResponse{
		ShareIndex:     share.ShareIndex,
		EncryptedShare: base64.StdEncoding.EncodeToString(share.EncryptedShare),
	})
	h.log.Info("Admin retrieved their share", slog.String("adminID", adminID), slog.Int("shareIndex", share.ShareIndex))
}

// handleInitRecover starts collecting shares on a node with no seed.
//
// Endpoint: POST /admin/init/recover
func (h *AdminHandler) handleInitRecover(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.verifyAdmin(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var params api.RecoverRequest
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stateLocked() != StateAwaitingSeed {
		http.Error(w, "Recovery already in progress or seed present", http.StatusConflict)
		return
	}

	pems := make([][]byte, 0, len(h.adminPubKeys))
	for _, pubKeyPEM := range h.adminPubKeys {
		pems = append(pems, pubKeyPEM)
	}
	recovery, err := keychain.NewRecovery(params.Threshold, pems, h.log)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.recovery = recovery
	h.recovering = true
	h.threshold = params.Threshold
	h.totalShares = len(h.adminPubKeys)

	writeJSON(w, api.MessageResponse{Message: "Recovery mode initiated, admins must submit their shares using POST /admin/share"})
	h.log.Info("Seed recovery initiated", slog.String("adminID", adminID), slog.Int("threshold", params.Threshold))
}

// handleSubmitShare accepts one signed share. The seed is restored and sealed
// as soon as the threshold is reached.
//
// Endpoint: POST /admin/share
func (h *AdminHandler) handleSubmitShare(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.verifyAdmin(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var submission api.ShareSubmission
	if err := json.NewDecoder(r.Body).Decode(&submission); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	share, err := base64.StdEncoding.DecodeString(submission.Share)
	if err != nil {
		http.Error(w, "Invalid share encoding", http.StatusBadRequest)
		return
	}
	defer cryptoutils.Wipe(share)
	signature, err := base64.StdEncoding.DecodeString(submission.Signature)
	if err != nil {
		http.Error(w, "Invalid signature encoding", http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stateLocked() != StateRecovering {
		http.Error(w, "Node not in recovery mode", http.StatusConflict)
		return
	}

	done, err := h.recovery.SubmitShare(share, signature, h.adminPubKeys[adminID])
	if err != nil {
		h.log.Warn("Share submission failed", "err", err, slog.String("adminID", adminID))
		http.Error(w, "Share submission failed", http.StatusBadRequest)
		return
	}
	if !done {
		writeJSON(w, api.MessageResponse{Message: "Share accepted, waiting for more shares"})
		h.log.Info("Share accepted", slog.String("adminID", adminID))
		return
	}

	if err := h.recovery.Restore(r.Context(), h.keys); err != nil {
		h.log.Error("Seed restore failed", "err", err)
		h.recovering = false
		h.recovery = nil
		http.Error(w, "Seed restore failed, start recovery again", http.StatusInternalServerError)
		return
	}
	h.recovering = false
	h.recovery = nil
	h.markComplete()

	writeJSON(w, api.MessageResponse{Message: "Seed restored, recovery complete"})
	h.log.Info("Seed restored from admin shares", slog.String("adminID", adminID), slog.Int("seedID", int(h.keys.SeedID())))
}

// verifyAdmin checks the X-Admin-Signature header: an ECDSA signature by a
// whitelisted admin over sha256(path ‖ body).
func (h *AdminHandler) verifyAdmin(r *http.Request) (string, bool) {
	adminID := r.Header.Get(api.HeaderAdminID)
	adminSignatureStr := r.Header.Get(api.HeaderAdminSignature)
	if adminID == "" || adminSignatureStr == "" {
		return "", false
	}

	h.mu.RLock()
	pubKeyPEM, exists := h.adminPubKeys[adminID]
	h.mu.RUnlock()
	if !exists {
		h.log.Warn("Authentication failed: unknown admin ID", slog.String("adminID", adminID))
		return adminID, false
	}

	adminSignature, err := base64.StdEncoding.DecodeString(adminSignatureStr)
	if err != nil {
		h.log.Warn("Authentication failed: invalid signature encoding", slog.String("adminID", adminID), "err", err)
		return adminID, false
	}

	block, _ := pem.Decode(pubKeyPEM)
	if block == nil {
		h.log.Error("Failed to decode admin public key PEM", slog.String("adminID", adminID))
		return adminID, false
	}
	pubKey, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		h.log.Error("Failed to parse admin public key", slog.String("adminID", adminID), "err", err)
		return adminID, false
	}
	ecdsaPubKey, ok := pubKey.(*ecdsa.PublicKey)
	if !ok {
		h.log.Error("Admin public key is not an ECDSA key", slog.String("adminID", adminID))
		return adminID, false
	}

	var bodyBytes []byte
	if r.Body != nil {
		bodyBytes, err = io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			h.log.Error("Failed to read request body", "err", err)
			return adminID, false
		}
		r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
	}

	hash := api.AdminRequestDigest(r.URL.Path, bodyBytes)
	if !ecdsa.VerifyASN1(ecdsaPubKey, hash[:], adminSignature) {
		h.log.Warn("Authentication failed: invalid signature", slog.String("adminID", adminID))
		return adminID, false
	}

	h.log.Debug("Admin authentication successful", slog.String("adminID", adminID))
	return adminID, true
}

// LoadAdminKeys reads {"admins":[{"id":..., "pubkey": PEM}]}.
func LoadAdminKeys(r io.Reader) (map[string][]byte, error) {
	var data struct {
		Admins []struct {
			ID     string `json:"id"`
			PubKey string `json:"pubkey"`
		} `json:"admins"`
	}

	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode admin keys JSON: %w", err)
	}

	result := make(map[string][]byte)
	for _, admin := range data.Admins {
		block, _ := pem.Decode([]byte(admin.PubKey))
		if block == nil {
			return nil, fmt.Errorf("invalid PEM data for admin %s", admin.ID)
		}
		if _, err := x509.ParsePKIXPublicKey(block.Bytes); err != nil {
			return nil, fmt.Errorf("invalid public key for admin %s: %w", admin.ID, err)
		}
		result[admin.ID] = []byte(admin.PubKey)
	}

	return result, nil
}
