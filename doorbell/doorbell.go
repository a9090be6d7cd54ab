package doorbell

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
	"github.com/scrtlabs/SecretNetwork-sub003/metrics"
	"go.uber.org/atomic"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultCapacity = 8
	DefaultTimeout  = 30 * time.Second
)

// Doorbell bounds the number of outermost calls inside the enclave.
type Doorbell struct {
	sem      *semaphore.Weighted
	capacity int
	timeout  time.Duration
	held     atomic.Int64
}

func New(capacity int, timeout time.Duration) (*Doorbell, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: doorbell capacity must be positive, got %d", interfaces.ErrInvalidConfig, capacity)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("%w: doorbell timeout must be positive, got %s", interfaces.ErrInvalidConfig, timeout)
	}
	return &Doorbell{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: capacity,
		timeout:  timeout,
	}, nil
}

func (d *Doorbell) Capacity() int { return d.capacity }

// Occupancy is the number of outermost tokens currently held.
func (d *Doorbell) Occupancy() int { return int(d.held.Load()) }

// Acquire admits a call. Calls nested inside an admitted call get a token
// without taking a slot. An outermost call waits up to the configured
// timeout and then fails with ErrBusy. Cancellation of ctx is returned as is.
func (d *Doorbell) Acquire(ctx context.Context, cc *CallContext) (*Token, error) {
	if cc != nil && !cc.IsOutermost() {
		return &Token{}, nil
	}

	start := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.sem.Acquire(waitCtx, 1); err != nil {
		metrics.DoorbellWait.Observe(time.Since(start).Seconds())
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			metrics.DoorbellBusy.Inc()
			return nil, fmt.Errorf("%w: no enclave slot free after %s", interfaces.ErrBusy, d.timeout)
		}
		return nil, err
	}
	metrics.DoorbellWait.Observe(time.Since(start).Seconds())
	metrics.DoorbellOccupancy.Set(float64(d.held.Inc()))

	return &Token{release: func() {
		metrics.DoorbellOccupancy.Set(float64(d.held.Dec()))
		d.sem.Release(1)
	}}, nil
}

// Token is proof of admission. Release frees the slot and wakes one waiter.
type Token struct {
	once    sync.Once
	release func()
}

// Release is safe to call more than once and on a nil token.
func (t *Token) Release() {
	if t == nil || t.release == nil {
		return
	}
	t.once.Do(t.release)
}
