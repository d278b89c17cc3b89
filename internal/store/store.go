// Package store is the durable, atomic-apply collaborator the ledger commits to.
//
// A Store holds opaque values under string keys. Apply is the only write
// path: it hands the current values of the declared keys to a pure
// Mutation and commits the returned writes as one unit, while no other
// Apply touching any declared key can interleave. Reads through Get never
// observe a partially committed Apply.
package store

import (
	"context"
	"errors"
	"sort"
)

var ErrKeyNotFound = errors.New("store: key not found")

// Mutation computes the writes for an Apply from the current values of the
// declared keys. Absent keys are absent from current. A mutation may write
// keys it did not declare only when their names derive from a declared
// key's value, so no concurrent Apply can target them. Returning an error
// aborts the Apply with nothing written.
type Mutation func(current map[string][]byte) (writes map[string][]byte, err error)

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Apply(ctx context.Context, keys []string, fn Mutation) error
	Ping(ctx context.Context) error
	Close() error
}

// normalizeKeys returns keys sorted and de-duplicated, the order every
// backend acquires them in. Empty keys are dropped.
func normalizeKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
