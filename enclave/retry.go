package enclave

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const DefaultRetries = 3

var retryInitialInterval = 200 * time.Millisecond

// WithRetry runs call again while it reports StatusBusy, at most maxRetries
// more times with exponential backoff. Any other status is returned at once.
func WithRetry(ctx context.Context, maxRetries int, call func() Result) Result {
	var last Result
	op := func() error {
		last = call()
		if last.Status == StatusBusy {
			return last.err
		}
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = retryInitialInterval
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(maxRetries)), ctx)

	// The last result carries the error when retries run out.
	_ = backoff.Retry(op, b)
	return last
}
