package clients

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/scrtlabs/SecretNetwork-sub003/api"
	"github.com/scrtlabs/SecretNetwork-sub003/keychain"
)

// AdminClient talks to a node's admin API. It signs every request with the
// administrator's key.
type AdminClient struct {
	baseURL    string
	adminID    string
	privateKey *ecdsa.PrivateKey
	httpClient *http.Client
}

// NewAdminClient creates a client for the admin API mounted at baseURL
// (e.g. "http://localhost:8080/admin"). timeout defaults to 30 seconds.
func NewAdminClient(baseURL, adminID string, privateKey *ecdsa.PrivateKey, timeout ...time.Duration) *AdminClient {
	clientTimeout := 30 * time.Second
	if len(timeout) > 0 {
		clientTimeout = timeout[0]
	}

	return &AdminClient{
		baseURL:    baseURL,
		adminID:    adminID,
		privateKey: privateKey,
		httpClient: &http.Client{
			Timeout: clientTimeout,
		},
	}
}

// GetStatus queries the node's seed state.
func (c *AdminClient) GetStatus() (*api.StatusResponse, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return nil, err
	}

	var status api.StatusResponse
	if err := c.do(req, "status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Escrow asks a node holding the seed to split it into totalShares shares,
// threshold of which rebuild it.
func (c *AdminClient) Escrow(threshold, totalShares int) (*api.EscrowResponse, error) {
	var resp api.EscrowResponse
	err := c.signedJSON(http.MethodPost, "/escrow", api.EscrowRequest{Threshold: threshold, TotalShares: totalShares}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchShare returns this administrator's encrypted share.
func (c *AdminClient) FetchShare() (*api.AdminGetShareResponse, error) {
	var resp api.AdminGetShareResponse
	if err := c.signedJSON(http.MethodGet, "/share", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// InitRecover puts a node without a seed into recovery mode.
func (c *AdminClient) InitRecover(threshold int) error {
	return c.signedJSON(http.MethodPost, "/init/recover", api.RecoverRequest{Threshold: threshold}, nil)
}

// SubmitShare signs a decrypted share and submits it to a recovering node.
func (c *AdminClient) SubmitShare(share []byte) error {
	signature, err := keychain.SignShare(share, c.privateKey)
	if err != nil {
		return fmt.Errorf("failed to sign share: %w", err)
	}
	return c.signedJSON(http.MethodPost, "/share", api.ShareSubmission{
		Share:     base64.StdEncoding.EncodeToString(share),
		Signature: base64.StdEncoding.EncodeToString(signature),
	}, nil)
}

// WaitForReady polls the node status until it holds a seed or ctx is done.
func (c *AdminClient) WaitForReady(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := c.GetStatus()
		if err != nil {
			return fmt.Errorf("failed to get node status: %w", err)
		}
		if status.State == "ready" {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for seed recovery: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *AdminClient) signedJSON(method, path string, body, out any) error {
	var reqJSON []byte
	if body != nil {
		var err error
		reqJSON, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	req, err := CreateSignedAdminRequest(method, c.baseURL+path, reqJSON, c.adminID, c.privateKey)
	if err != nil {
		return err
	}
	return c.do(req, method+" "+path, out)
}

func (c *AdminClient) do(req *http.Request, what string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", what, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s failed with code %d: %s", what, resp.StatusCode, string(body))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", what, err)
	}
	return nil
}

// CreateSignedAdminRequest creates an HTTP request carrying the admin
// authentication headers. The signature covers the URL path and the body.
func CreateSignedAdminRequest(method, reqUrl string, body []byte, adminID string, privateKey *ecdsa.PrivateKey) (*http.Request, error) {
	req, err := http.NewRequest(method, reqUrl, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	parsedURL, err := url.Parse(reqUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	signature, err := signDigest(privateKey, parsedURL.Path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set(api.HeaderAdminID, adminID)
	req.Header.Set(api.HeaderAdminSignature, signature)
	return req, nil
}

// SignAdminRequest adds the admin authentication headers to an existing
// request, reading and restoring its body.
func SignAdminRequest(req *http.Request, adminID string, privateKey *ecdsa.PrivateKey) error {
	if req == nil {
		return errors.New("request cannot be nil")
	}

	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return fmt.Errorf("failed to read request body: %w", err)
		}
		req.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
	}

	signature, err := signDigest(privateKey, req.URL.Path, bodyBytes)
	if err != nil {
		return err
	}
	req.Header.Set(api.HeaderAdminID, adminID)
	req.Header.Set(api.HeaderAdminSignature, signature)
	return nil
}

func signDigest(privateKey *ecdsa.PrivateKey, path string, body []byte) (string, error) {
	hash := api.AdminRequestDigest(path, body)
	signature, err := ecdsa.SignASN1(rand.Reader, privateKey, hash[:])
	if err != nil {
		return "", fmt.Errorf("failed to sign request: %w", err)
	}
	return base64.StdEncoding.EncodeToString(signature), nil
}
