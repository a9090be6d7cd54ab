package doorbell

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
	"github.com/scrtlabs/SecretNetwork-sub003/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func outermost(t *testing.T, bell *Doorbell) *CallContext {
	t.Helper()
	cc, err := NewCallContext(bell, DefaultMaxDepth).Enter()
	require.NoError(t, err)
	return cc
}

func TestNew_Validation(t *testing.T) {
	_, err := New(0, time.Second)
	assert.ErrorIs(t, err, interfaces.ErrInvalidConfig)
	_, err = New(1, 0)
	assert.ErrorIs(t, err, interfaces.ErrInvalidConfig)
}

func TestDoorbell_BusyAfterTimeout(t *testing.T) {
	const capacity = 3
	bell, err := New(capacity, 50*time.Millisecond)
	require.NoError(t, err)
	ctx := context.Background()

	tokens := make([]*Token, 0, capacity)
	for i := 0; i < capacity; i++ {
		tok, err := bell.Acquire(ctx, outermost(t, bell))
		require.NoError(t, err)
		tokens = append(tokens, tok)
	}
	assert.Equal(t, capacity, bell.Occupancy())

	busyBefore := testutil.ToFloat64(metrics.DoorbellBusy)
	start := time.Now()
	_, err = bell.Acquire(ctx, outermost(t, bell))
	assert.ErrorIs(t, err, interfaces.ErrBusy)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, busyBefore+1, testutil.ToFloat64(metrics.DoorbellBusy))

	for _, tok := range tokens {
		tok.Release()
	}
	assert.Equal(t, 0, bell.Occupancy())
}

func TestDoorbell_WaiterAdmittedOnRelease(t *testing.T) {
	bell, err := New(1, 5*time.Second)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := bell.Acquire(ctx, outermost(t, bell))
	require.NoError(t, err)

	admitted := make(chan *Token)
	go func() {
		tok, err := bell.Acquire(ctx, outermost(t, bell))
		if err == nil {
			admitted <- tok
		}
		close(admitted)
	}()

	select {
	case <-admitted:
		t.Fatal("second caller admitted while the slot was held")
	case <-time.After(50 * time.Millisecond):
	}

	first.Release()
	tok, ok := <-admitted
	require.True(t, ok)
	require.NotNil(t, tok)
	tok.Release()
}

func TestDoorbell_NeverExceedsCapacity(t *testing.T) {
	const capacity = 4
	bell, err := New(capacity, 5*time.Second)
	require.NoError(t, err)

	var inside, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cc, err := NewCallContext(bell, DefaultMaxDepth).Enter()
			if err != nil {
				return
			}
			tok, err := cc.Acquire(context.Background())
			if err != nil {
				return
			}
			defer tok.Release()

			n := inside.Inc()
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Dec()
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int64(capacity))
	assert.Equal(t, 0, bell.Occupancy())
}

func TestDoorbell_ReentrantBypass(t *testing.T) {
	bell, err := New(1, 20*time.Millisecond)
	require.NoError(t, err)
	ctx := context.Background()

	outer := outermost(t, bell)
	tok, err := outer.Acquire(ctx)
	require.NoError(t, err)
	defer tok.Release()

	nested, err := outer.Enter()
	require.NoError(t, err)
	assert.False(t, nested.IsOutermost())

	inner, err := nested.Acquire(ctx)
	require.NoError(t, err, "nested call must not wait for its own caller's slot")
	inner.Release()
	assert.Equal(t, 1, bell.Occupancy())
}

func TestToken_ReleaseIdempotent(t *testing.T) {
	bell, err := New(1, 20*time.Millisecond)
	require.NoError(t, err)
	ctx := context.Background()

	tok, err := bell.Acquire(ctx, nil)
	require.NoError(t, err)
	tok.Release()
	tok.Release()
	assert.Equal(t, 0, bell.Occupancy())

	again, err := bell.Acquire(ctx, nil)
	require.NoError(t, err)
	_, err = bell.Acquire(ctx, nil)
	assert.ErrorIs(t, err, interfaces.ErrBusy, "double release must not free a second slot")
	again.Release()

	var nilToken *Token
	assert.NotPanics(t, nilToken.Release)
}

func TestDoorbell_ContextCanceled(t *testing.T) {
	bell, err := New(1, 5*time.Second)
	require.NoError(t, err)

	tok, err := bell.Acquire(context.Background(), nil)
	require.NoError(t, err)
	defer tok.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = bell.Acquire(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, interfaces.ErrBusy)
}

func TestCallContext_RecursionLimit(t *testing.T) {
	cc := NewCallContext(nil, 3)
	assert.Equal(t, 0, cc.Depth())

	var err error
	for i := 1; i <= 3; i++ {
		cc, err = cc.Enter()
		require.NoError(t, err)
		assert.Equal(t, i, cc.Depth())
		assert.Equal(t, i == 1, cc.IsOutermost())
	}
	_, err = cc.Enter()
	assert.ErrorIs(t, err, interfaces.ErrRecursionLimit)

	_, err = cc.Acquire(context.Background())
	assert.ErrorIs(t, err, interfaces.ErrNotInitialized)
}
