package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"ticket-ledger/internal/status"
	"ticket-ledger/utils"

	"github.com/redis/go-redis/v9"
)

// RedisStore commits applies with WATCH + MULTI/EXEC. A conflicting write
// to any watched key aborts EXEC and the apply is retried from a fresh read.
// One apply spans keys in unrelated hash slots, so it needs a single node
// (or sentinel failover) client rather than a cluster client.
type RedisStore struct {
	client  *redis.Client
	breaker *utils.CircuitBreaker
	retries int
}

type RedisOption func(*RedisStore)

// WithRetries bounds how many optimistic attempts an Apply makes.
func WithRetries(n int) RedisOption {
	return func(s *RedisStore) {
		if n > 0 {
			s.retries = n
		}
	}
}

func WithBreaker(cb *utils.CircuitBreaker) RedisOption {
	return func(s *RedisStore) {
		if cb != nil {
			s.breaker = cb
		}
	}
}

func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client:  client,
		breaker: utils.NewCircuitBreaker("redis-store"),
		retries: 16,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// isInfraFailure decides what counts against the breaker: missing keys and
// lost optimistic races are normal outcomes.
func isInfraFailure(err error) bool {
	return !errors.Is(err, redis.Nil) && !errors.Is(err, redis.TxFailedErr)
}

func unavailable(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", status.ErrStorageUnavailable, err)
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.breaker.Execute(ctx, func() error {
		var err error
		data, err = s.client.Get(ctx, key).Bytes()
		return err
	}, isInfraFailure)

	switch {
	case errors.Is(err, redis.Nil):
		return nil, ErrKeyNotFound
	case err != nil:
		return nil, unavailable(err)
	}
	return data, nil
}

func (s *RedisStore) Apply(ctx context.Context, keys []string, fn Mutation) error {
	keys = normalizeKeys(keys)

	for attempt := 0; attempt < s.retries; attempt++ {
		var fnErr error

		txf := func(tx *redis.Tx) error {
			current, err := readKeys(ctx, tx, keys)
			if err != nil {
				return err
			}

			writes, err := fn(current)
			if err != nil {
				fnErr = err
				return nil
			}
			if len(writes) == 0 {
				return nil
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for k, v := range writes {
					pipe.Set(ctx, k, v, 0)
				}
				return nil
			})
			return err
		}

		err := s.breaker.Execute(ctx, func() error {
			return s.client.Watch(ctx, txf, keys...)
		}, isInfraFailure)

		if fnErr != nil {
			return fnErr
		}
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return unavailable(err)
		}

		if err := backoff(ctx, attempt); err != nil {
			return err
		}
	}

	return fmt.Errorf("%w: apply on %v lost %d optimistic races", status.ErrStorageUnavailable, keys, s.retries)
}

func readKeys(ctx context.Context, tx *redis.Tx, keys []string) (map[string][]byte, error) {
	current := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return current, nil
	}

	values, err := tx.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		if v == nil {
			continue
		}
		str, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("store: unexpected %T under %s", v, keys[i])
		}
		current[keys[i]] = []byte(str)
	}
	return current, nil
}

func backoff(ctx context.Context, attempt int) error {
	base := time.Duration(attempt+1) * time.Millisecond
	jitter := time.Duration(rand.Int64N(int64(time.Millisecond)))

	t := time.NewTimer(base + jitter)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := utils.RedisHealthCheck(ctx, s.client); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
