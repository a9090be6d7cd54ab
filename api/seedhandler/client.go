package seedhandler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
)

// Client requests seeds from a provider, retrying transient failures.
type Client struct {
	HTTPClient *http.Client

	// MaxRetries bounds the retries after the first attempt.
	MaxRetries uint64
	// InitialInterval is the first backoff delay.
	InitialInterval time.Duration
	// MaxElapsedTime caps the whole exchange.
	MaxElapsedTime time.Duration
}

// DefaultClient retries five times over at most two minutes.
var DefaultClient = &Client{
	HTTPClient:      &http.Client{Timeout: 30 * time.Second},
	MaxRetries:      5,
	InitialInterval: 500 * time.Millisecond,
	MaxElapsedTime:  2 * time.Minute,
}

// SeedResponse is a provider's answer.
type SeedResponse struct {
	Payload     []byte
	ProviderKey interfaces.PublicKey
}

// RequestSeed posts cert to the provider at baseURL.
func (c *Client) RequestSeed(ctx context.Context, baseURL string, cert []byte) (*SeedResponse, error) {
	b := backoff.NewExponentialBackOff()
	if c.InitialInterval > 0 {
		b.InitialInterval = c.InitialInterval
	}
	b.MaxElapsedTime = c.MaxElapsedTime

	policy := backoff.WithContext(backoff.WithMaxRetries(b, c.MaxRetries), ctx)
	return backoff.RetryWithData(func() (*SeedResponse, error) {
		return c.requestOnce(ctx, baseURL, cert)
	}, policy)
}

func (c *Client) requestOnce(ctx context.Context, baseURL string, cert []byte) (*SeedResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/attested/seed", bytes.NewReader(cert))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("could not initialize request: %w", err))
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: could not reach seed provider: %v", interfaces.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxCertificateSize))
	if err != nil {
		return nil, fmt.Errorf("%w: could not read provider response: %v", interfaces.ErrBackendUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: provider returned %d: %s", interfaces.ErrBackendUnavailable, resp.StatusCode, bytes.TrimSpace(body))
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, backoff.Permanent(fmt.Errorf("%w: provider returned %d", interfaces.ErrAttestation, resp.StatusCode))
	default:
		return nil, backoff.Permanent(fmt.Errorf("%w: provider returned %d: %s", interfaces.ErrInvalidInput, resp.StatusCode, bytes.TrimSpace(body)))
	}

	key, err := interfaces.NewPublicKeyFromHex(resp.Header.Get(PublicKeyHeader))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("provider key header: %w", err))
	}

	return &SeedResponse{Payload: body, ProviderKey: key}, nil
}
