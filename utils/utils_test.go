package utils

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNow struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeNow) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeNow) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func newTestBreaker(opts ...BreakerOption) (*CircuitBreaker, *fakeNow) {
	clk := &fakeNow{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker("test", opts...)
	cb.now = clk.now
	return cb, clk
}

var errBackend = errors.New("backend down")

func fail() error    { return errBackend }
func succeed() error { return nil }

func TestCircuitBreaker_NewCircuitBreaker(t *testing.T) {
	cb := NewCircuitBreaker("redis")

	assert.Equal(t, "redis", cb.Name())
	assert.Equal(t, uint32(100), cb.maxRequests)
	assert.Equal(t, 60*time.Second, cb.timeout)
	assert.Equal(t, 0.6, cb.failureRatio)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_ExecuteCounts(t *testing.T) {
	cb, _ := newTestBreaker()
	ctx := context.Background()

	assert.NoError(t, cb.Execute(ctx, succeed, nil))
	assert.ErrorIs(t, cb.Execute(ctx, fail, nil), errBackend)

	assert.Equal(t, uint32(2), cb.counts.Requests)
	assert.Equal(t, uint32(1), cb.counts.TotalSuccesses)
	assert.Equal(t, uint32(1), cb.counts.TotalFailures)
}

func TestCircuitBreaker_ClosedToOpen(t *testing.T) {
	cb, _ := newTestBreaker(WithTripThreshold(5, 0.6))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, cb.Execute(ctx, succeed, nil))
	}
	for i := 0; i < 3; i++ {
		require.Error(t, cb.Execute(ctx, fail, nil))
	}

	assert.Equal(t, StateOpen, cb.State())

	err := cb.Execute(ctx, func() error {
		t.Fatal("request must not run while the breaker is open")
		return nil
	}, nil)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_IgnoresNonFailures(t *testing.T) {
	cb, _ := newTestBreaker(WithTripThreshold(3, 0.5))
	ctx := context.Background()
	businessErr := errors.New("sold out")

	for i := 0; i < 10; i++ {
		err := cb.Execute(ctx, func() error { return businessErr }, func(err error) bool {
			return !errors.Is(err, businessErr)
		})
		assert.ErrorIs(t, err, businessErr)
	}

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, uint32(10), cb.counts.TotalSuccesses)
}

func TestCircuitBreaker_OpenToHalfOpenToClosed(t *testing.T) {
	cb, clk := newTestBreaker(WithTripThreshold(2, 0.5), WithOpenTimeout(time.Second))
	ctx := context.Background()

	cb.Execute(ctx, fail, nil)
	cb.Execute(ctx, fail, nil)
	require.Equal(t, StateOpen, cb.State())

	clk.advance(2 * time.Second)
	assert.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Execute(ctx, succeed, nil))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenToOpen(t *testing.T) {
	cb, clk := newTestBreaker(WithTripThreshold(2, 0.5), WithOpenTimeout(time.Second))
	ctx := context.Background()

	cb.Execute(ctx, fail, nil)
	cb.Execute(ctx, fail, nil)
	clk.advance(2 * time.Second)
	require.Equal(t, StateHalfOpen, cb.State())

	require.Error(t, cb.Execute(ctx, fail, nil))
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_PanicRecovery(t *testing.T) {
	cb, _ := newTestBreaker()

	assert.Panics(t, func() {
		cb.Execute(context.Background(), func() error { panic("boom") }, nil)
	})
	assert.Equal(t, uint32(1), cb.counts.TotalFailures)
}

func TestCircuitBreaker_CancelledContext(t *testing.T) {
	cb, _ := newTestBreaker()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, cb.Execute(ctx, succeed, nil), context.Canceled)
	assert.Equal(t, uint32(0), cb.counts.Requests)
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	cb, _ := newTestBreaker()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cb.Execute(ctx, succeed, nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, uint32(50), cb.counts.TotalSuccesses)
}

func TestCircuitBreaker_StateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}

func TestRedisHealthCheck_Success(t *testing.T) {
	db, mock := redismock.NewClientMock()

	mock.ExpectPing().SetVal("PONG")

	assert.NoError(t, RedisHealthCheck(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisHealthCheck_Failure(t *testing.T) {
	db, mock := redismock.NewClientMock()

	mock.ExpectPing().SetErr(errors.New("connection refused"))

	err := RedisHealthCheck(context.Background(), db)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "redis health check failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}
