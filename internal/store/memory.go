package store

import (
	"context"
	"fmt"
	"sync"

	"ticket-ledger/internal/status"
)

// MemoryStore keeps records in process memory. Apply serializes on the
// declared keys only, so applies over disjoint keys run in parallel.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool

	locksMu sync.Mutex
	locks   map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:  make(map[string][]byte),
		locks: make(map[string]*keyLock),
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("%w: memory store closed", status.ErrStorageUnavailable)
	}
	v, ok := s.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return clone(v), nil
}

func (s *MemoryStore) Apply(ctx context.Context, keys []string, fn Mutation) error {
	keys = normalizeKeys(keys)

	release := s.acquire(keys)
	defer release()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return fmt.Errorf("%w: memory store closed", status.ErrStorageUnavailable)
	}
	current := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok := s.data[k]; ok {
			current[k] = clone(v)
		}
	}
	s.mu.RUnlock()

	writes, err := fn(current)
	if err != nil {
		return err
	}
	if len(writes) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: memory store closed", status.ErrStorageUnavailable)
	}
	for k, v := range writes {
		s.data[k] = clone(v)
	}
	return nil
}

// acquire locks keys, which must already be sorted, and returns the
// matching release.
func (s *MemoryStore) acquire(keys []string) func() {
	held := make([]*keyLock, len(keys))
	for i, k := range keys {
		s.locksMu.Lock()
		l, ok := s.locks[k]
		if !ok {
			l = &keyLock{}
			s.locks[k] = l
		}
		l.refs++
		s.locksMu.Unlock()

		l.mu.Lock()
		held[i] = l
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
		}
		s.locksMu.Lock()
		for i, k := range keys {
			held[i].refs--
			if held[i].refs == 0 {
				delete(s.locks, k)
			}
		}
		s.locksMu.Unlock()
	}
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("%w: memory store closed", status.ErrStorageUnavailable)
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Len reports how many records are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
