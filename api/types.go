package api

import "crypto/sha256"

// Admin API request and response bodies shared by the server and the admin CLI.

// EscrowRequest asks a node holding the seed to split it among administrators.
type EscrowRequest struct {
	Threshold   int `json:"threshold"`
	TotalShares int `json:"total_shares"`
}

// EscrowResponse lists which administrator received which share.
type EscrowResponse struct {
	Message          string            `json:"message"`
	ShareAssignments []ShareAssignment `json:"share_assignments"`
	Threshold        int               `json:"threshold"`
	TotalShares      int               `json:"total_shares"`
}

type ShareAssignment struct {
	AdminID    string `json:"admin_id"`
	ShareIndex int    `json:"share_index"`
}

// AdminGetShareResponse carries one share encrypted to the requesting administrator.
type AdminGetShareResponse struct {
	ShareIndex     int    `json:"share_index"`
	EncryptedShare string `json:"encrypted_share"` // base64
}

// RecoverRequest starts collecting shares on a node without a seed.
type RecoverRequest struct {
	Threshold int `json:"threshold"`
}

// ShareSubmission is a decrypted share signed by its administrator.
type ShareSubmission struct {
	Share     string `json:"share"`     // base64
	Signature string `json:"signature"` // base64
}

type MessageResponse struct {
	Message string `json:"message"`
}

// StatusResponse reports the seed state of a node.
type StatusResponse struct {
	State       string `json:"state"`
	SeedID      uint16 `json:"seed_id,omitempty"`
	Threshold   int    `json:"threshold,omitempty"`
	TotalShares int    `json:"total_shares,omitempty"`
}

const (
	HeaderAdminID        = "X-Admin-ID"
	HeaderAdminSignature = "X-Admin-Signature"
)

// AdminRequestDigest is what X-Admin-Signature signs: sha256(path || body).
func AdminRequestDigest(path string, body []byte) [32]byte {
	return sha256.Sum256(append([]byte(path), body...))
}
